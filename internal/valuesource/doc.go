// Package valuesource defines the collaborator that connects to named
// points, reads and writes their values and reports changes.
//
// Implementations call back on their own goroutines through Event channels.
// Receivers must only update cached point state or set trigger bits from
// those goroutines.
package valuesource
