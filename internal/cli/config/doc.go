// Package config provides the local configuration of autosave-cli.
//
// The file lives at ~/.autosave/cli.yaml and holds the default server
// address, output format and request timeout. Flags and AUTOSAVE_*
// environment variables override it.
package config
