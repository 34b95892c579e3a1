// Package definition resolves save-set definition resources into ordered
// point lists.
//
// A definition is a text file with one entry per line:
//
//	# comment
//	motor1.VAL
//	$(P)gain
//	file common.req P=ioc1:,R=m1
//	@path savePathPV
//	@name saveNamePV
//	@label beamline defaults
//
// Includes are expanded in place with their own macro scope layered over
// the parent's. Files are located on a search path; the first match wins.
package definition
