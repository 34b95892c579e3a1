// Package health tracks consecutive save-file I/O failures and drives
// remount attempts of the storage target once a threshold is crossed.
package health
