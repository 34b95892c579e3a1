// Package clock abstracts wall time and one-shot timers for the engine.
//
// Production code uses Real. Tests use Fake, whose timers fire only when
// Advance moves time past their deadline, so trigger and backoff behavior
// can be checked without sleeping.
package clock
