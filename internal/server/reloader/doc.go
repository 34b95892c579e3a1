// Package reloader reloads save sets when their definition files change.
//
// It watches the definition search path and, after a short quiet period,
// reloads every registered set whose resolved definition read one of the
// changed files. Sets keep their methods and macros across the reload.
package reloader
