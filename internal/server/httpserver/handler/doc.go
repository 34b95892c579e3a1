// Package handler provides the HTTP handlers of the autosave admin API.
//
// Handlers translate requests into engine commands and wait for their
// completion, so a 200 from POST /save means the file is on disk. Every
// JSON response uses the Response envelope.
package handler
