// Package confloader loads configuration and watches files for change.
//
// Loading uses koanf with the priority Env > File > Default: the target
// struct is pre-filled with defaults, a YAML file is layered on top, then
// environment variables. Environment keys use a double underscore between
// levels so that key names keep their single underscores:
//
//	AUTOSAVE_SAVE__RETRY_INTERVAL=90s  ->  save.retry_interval
//
// The Watcher wraps fsnotify. It watches directories so editors that
// replace files by rename are still seen, and filters events down to the
// files or directories registered with it.
package confloader
