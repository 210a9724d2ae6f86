// Package dialog provides the Sequence and Clip domain entities.
package dialog

import "strings"

// EventKind selects which clip list of a sequence is queued.
type EventKind int

const (
	EventDefault   EventKind = iota // Main line of the sequence
	EventInterrupt                  // Sequence displaced another one
	EventAbort                      // Sequence was aborted
	EventEarly                      // Sequence arrived before its predecessor or min time
	EventLate                       // Sequence arrived after its successor or max time
	EventReturn                     // Persistent sequence resumes after being displaced
)

// EventKinds lists every event kind in declaration order.
var EventKinds = []EventKind{
	EventDefault,
	EventInterrupt,
	EventAbort,
	EventEarly,
	EventLate,
	EventReturn,
}

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventDefault:
		return "default"
	case EventInterrupt:
		return "interrupt"
	case EventAbort:
		return "abort"
	case EventEarly:
		return "early"
	case EventLate:
		return "late"
	case EventReturn:
		return "return"
	default:
		return "unknown"
	}
}

// ParseEventKind parses an event kind name. Matching is case-insensitive.
func ParseEventKind(s string) (EventKind, bool) {
	for _, k := range EventKinds {
		if strings.EqualFold(k.String(), s) {
			return k, true
		}
	}
	return EventDefault, false
}
