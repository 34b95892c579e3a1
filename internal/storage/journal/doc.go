// Package journal keeps a per-set history of save attempts in Badger.
//
// Keys are "save/<set>/<ulid>" so a prefix scan in reverse yields the
// newest entries first. Each set keeps at most Config.Keep entries.
package journal
