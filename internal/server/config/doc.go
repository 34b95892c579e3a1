// Package config provides the autosave-server configuration.
//
// This package defines the server configuration structure and validation:
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation and conversion to engine tunables
//   - sanitize.go: Log sanitization (hide mount credentials)
//
// Configuration is loaded via internal/infra/confloader and supports
// multiple sources: files, environment variables, and maps.
package config
