package domain

// Status is an ordered save-status level. Lower is worse, except StatusInit
// which means "nothing attempted yet" and is ignored by Worst.
type Status int

const (
	StatusInit Status = iota
	StatusFail
	StatusWarn
	StatusSeqWarn
	StatusOK
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "init"
	case StatusFail:
		return "fail"
	case StatusWarn:
		return "warning"
	case StatusSeqWarn:
		return "seq-warning"
	case StatusOK:
		return "ok"
	default:
		return "unknown"
	}
}

// Worst returns the lower of two statuses, treating StatusInit as absent.
func Worst(a, b Status) Status {
	switch {
	case a == StatusInit:
		return b
	case b == StatusInit:
		return a
	case b < a:
		return b
	default:
		return a
	}
}
