// Command autosave-cli manages a running autosave-server.
//
//	autosave-cli status
//	autosave-cli set define --method periodic --period 30s motor.req
//	autosave-cli save motor.req
//	autosave-cli restore --from file motor.sav
//	autosave-cli shell
package main
