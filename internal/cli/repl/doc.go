// Package repl provides the interactive shell of autosave-cli.
//
// Each line is split into arguments, honouring single and double quotes,
// and executed as if it had been given on the command line. History is
// kept in memory and optionally persisted to a file.
package repl
