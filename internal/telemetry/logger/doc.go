// Package logger provides structured logging for autosave.
//
// It wraps log/slog:
//
//   - logger.go: handler construction and the process-wide level
//   - context.go: context-aware logging with request IDs
//   - redact.go: masking of mount credentials and secret-looking keys
//
// Components take a *slog.Logger so they can be handed any handler in
// tests. The level can be changed at runtime through SetLevel.
package logger
