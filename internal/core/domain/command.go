package domain

import "time"

// CommandKind identifies an operator request.
type CommandKind int

const (
	CmdDefine CommandKind = iota + 1
	CmdManualSave
	CmdManualRestore
	CmdRemove
	CmdReload
)

func (k CommandKind) String() string {
	switch k {
	case CmdDefine:
		return "define"
	case CmdManualSave:
		return "manual_save"
	case CmdManualRestore:
		return "manual_restore"
	case CmdRemove:
		return "remove"
	case CmdReload:
		return "reload"
	default:
		return "unknown"
	}
}

// RestoreFrom selects where a manual restore reads values from.
type RestoreFrom int

const (
	// RestoreFromPrimary restores a registered set from its primary file,
	// falling back to backup and sequence files.
	RestoreFromPrimary RestoreFrom = iota
	// RestoreFromFile restores from an arbitrary save file.
	RestoreFromFile
)

// ParseRestoreFrom accepts "primary" (or "set") and "file".
func ParseRestoreFrom(s string) (RestoreFrom, error) {
	switch s {
	case "", "primary", "set":
		return RestoreFromPrimary, nil
	case "file":
		return RestoreFromFile, nil
	default:
		return 0, ErrInvalidArgument.WithDetailsf("unknown restore source %q", s)
	}
}

// Result is delivered to a command's completion callback.
type Result struct {
	Status  Status
	Message string
	File    string
	Err     error
}

// Command is one externally requested operation, consumed exactly once by
// the scheduler.
type Command struct {
	ID   string
	Kind CommandKind

	// Name is the definition name (define/remove/reload/save) or the file
	// name for a restore.
	Name string
	// File overrides the output file for a manual save.
	File string

	Method   Method
	Schedule Schedule
	Macros   string
	From     RestoreFrom

	Enqueued time.Time

	// Done, if set, is invoked by the scheduler with the outcome.
	Done func(Result)
}

// Complete invokes the completion callback if there is one.
func (c *Command) Complete(r Result) {
	if c.Done != nil {
		c.Done(r)
	}
}
