// Package localserver serves the admin API on a Unix domain socket.
//
// The socket carries the same router as the TCP listener. Access is
// controlled by file permissions: the socket is created mode 0600, so only
// the owning user can reach it. The CLI connects with a unix:// server
// address.
package localserver
