// Package tlsroots loads the TLS material of the admin API.
//
// Pool builds the trust store the CLI verifies the server against.
// KeyPair holds the server certificate and reloads it when either file
// changes on disk, so certificates can be rotated without a restart.
package tlsroots
