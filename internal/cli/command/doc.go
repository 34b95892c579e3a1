// Package command provides the autosave-cli commands.
//
// It uses urfave/cli/v2 for command parsing. Every command talks to a
// running autosave-server over its HTTP API and renders the result in
// the format selected by --output. The "shell" command runs the same
// commands interactively.
package command
