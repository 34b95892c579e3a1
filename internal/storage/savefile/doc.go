// Package savefile reads and writes autosave files.
//
// A save file is line oriented:
//
//	# autosave V1	Automatically generated - DO NOT MODIFY - 2024-05-01T10:00:00Z
//	! 1 point(s) not connected
//	# label motor settings
//	A 1
//	#B 2
//	WF @array@ 3
//	"1"
//	"2"
//	"3"
//	@end@
//	<END>
//
// Lines starting with '#' are invalid points or comments and are never
// restored. A file is complete only when "<END>" is its final line.
//
// Writes go to a temporary file in the target directory which is synced,
// closed, re-opened and checked for the sentinel before it is renamed over
// the target, so a failed write leaves the previous file untouched.
package savefile
