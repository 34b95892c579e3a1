// Package engine runs the save/restore scheduler.
//
// One worker goroutine owns every save set. Each cycle it enables pending
// trigger sources, decides which sets need saving, writes them through the
// savefile and backup packages, rotates sequence files, publishes status
// and then serves queued commands until the cycle period is used up.
//
// Other goroutines interact only by flagging trigger bits on a live set
// (timers, value-source events, Trigger) or by pushing commands.
package engine
