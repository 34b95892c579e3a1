// Package connection provides the HTTP client autosave-cli uses to talk
// to autosave-server.
//
// Every server response is wrapped in an envelope carrying a code, a
// message and a data payload. ParseResponse unwraps the payload on
// success and turns the envelope into an *APIError otherwise.
package connection
