// Package trigger decides when a save set needs writing and owns the
// timers that feed its pending bits.
//
// PERIODIC, TRIGGERED and MANUAL are single-shot: any one of them makes a
// save needed. TIMER and CHANGE only count together. A failed set is also
// retried once the retry interval has passed or right after a remount.
package trigger
