// Package output renders autosave-cli results as tables, JSON or YAML.
//
// Tables are built from slices of structs: exported fields become
// columns headed by their json name. A `table:"-"` tag hides a field and
// `table:"wide"` shows it only with --wide.
package output
