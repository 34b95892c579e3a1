// Package status holds the status reports the scheduler publishes each
// cycle, and the in-memory board the admin API reads them from.
package status
