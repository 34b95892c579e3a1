// Package httpserver provides the HTTP admin server of autosave.
//
// It uses net/http routing with a small middleware chain (request IDs,
// panic recovery, request metrics, audit logging and per-client rate
// limiting on command endpoints). Handlers live in package handler.
package httpserver
