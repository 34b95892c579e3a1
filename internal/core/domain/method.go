package domain

import (
	"fmt"
	"strings"
)

// Method is a bitset of trigger methods.
//
// The same vocabulary is used for a set's requested methods, the methods
// whose async source is wired (enabled), and the pending trigger reasons.
type Method uint32

const (
	MethodPeriodic Method = 1 << iota
	MethodTriggered
	MethodTimer
	MethodChange
	MethodManual
)

const (
	// MethodMonitored is the timer+change pair; both must be pending to save.
	MethodMonitored = MethodTimer | MethodChange

	// MethodSingleShot holds the reasons any one of which makes a save needed.
	MethodSingleShot = MethodPeriodic | MethodTriggered | MethodManual

	MethodAll = MethodSingleShot | MethodMonitored
)

var methodNames = []struct {
	m    Method
	name string
}{
	{MethodPeriodic, "periodic"},
	{MethodTriggered, "triggered"},
	{MethodMonitored, "monitored"},
	{MethodTimer, "timer"},
	{MethodChange, "change"},
	{MethodManual, "manual"},
}

// Has reports whether every bit of o is set in m.
func (m Method) Has(o Method) bool {
	return o != 0 && m&o == o
}

// Any reports whether any bit of o is set in m.
func (m Method) Any(o Method) bool {
	return m&o != 0
}

// String renders the set bits joined with "|", folding timer+change into "monitored".
func (m Method) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	rest := m
	for _, n := range methodNames {
		if rest.Has(n.m) {
			parts = append(parts, n.name)
			rest &^= n.m
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseMethod parses names like "periodic" or "periodic|monitored".
func ParseMethod(s string) (Method, error) {
	var m Method
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' || r == ' ' }) {
		found := false
		for _, n := range methodNames {
			if strings.EqualFold(part, n.name) {
				m |= n.m
				found = true
				break
			}
		}
		if !found {
			return 0, ErrInvalidArgument.WithDetailsf("unknown trigger method %q", part)
		}
	}
	if m == 0 {
		return 0, ErrInvalidArgument.WithDetails("trigger method required")
	}
	return m, nil
}
