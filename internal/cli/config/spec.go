package config

import "time"

// CLIConfig is the configuration for autosave-cli.
type CLIConfig struct {
	Server  string        `yaml:"server" json:"server"`
	Output  string        `yaml:"output" json:"output"` // table, json, yaml
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// History is the REPL history file. Empty means "history" next to
	// the config file.
	History string `yaml:"history" json:"history"`
	// CAFile is a PEM bundle trusted for https servers in addition to the
	// system roots.
	CAFile string `yaml:"ca_file" json:"ca_file"`
	// APIKey is the bearer token sent to servers that require one.
	APIKey string `yaml:"api_key" json:"api_key"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:  "http://127.0.0.1:5090",
		Output:  "table",
		Timeout: 2 * time.Minute,
	}
}
