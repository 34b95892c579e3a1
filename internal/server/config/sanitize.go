// Package config defines the server configuration structure.
package config

import "github.com/yndnr/autosave-go/internal/telemetry/logger"

// Sanitize returns a copy of the config with mount credentials and API key
// hashes masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	if sanitized.Storage.Remount.Options != "" {
		sanitized.Storage.Remount.Options = logger.RedactOptions(sanitized.Storage.Remount.Options)
	}
	if n := len(cfg.Server.HTTP.APIKeys); n > 0 {
		sanitized.Server.HTTP.APIKeys = make([]string, n)
		for i := range sanitized.Server.HTTP.APIKeys {
			sanitized.Server.HTTP.APIKeys[i] = "***"
		}
	}
	return &sanitized
}
