// Package registry owns the collection of save sets.
//
// Membership is only changed by the scheduler goroutine. Lookups from
// other goroutines take a short read lock. Removed sets are tombstoned and
// dropped from iteration by Compact, so a scan in progress never sees the
// slice shift underneath it.
package registry
