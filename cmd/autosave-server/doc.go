// Command autosave-server runs the save/restore scheduler.
//
// It loads its configuration from a YAML file and AUTOSAVE_* environment
// variables, defines the configured save sets, and serves the admin API
// and Prometheus metrics over HTTP until SIGINT or SIGTERM.
//
//	autosave-server -config /etc/autosave/server.yaml
//
// Bearer tokens for the admin API are configured as argon2id hashes:
//
//	echo -n "$KEY" | autosave-server -hash-api-key
package main
