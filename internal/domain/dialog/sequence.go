package dialog

import "time"

// Sequence is a named group of clip lists keyed by event kind.
// A loaded sequence is never mutated.
type Sequence struct {
	Name string

	clips map[EventKind][]string

	Unstoppable bool // Cannot be displaced once active
	Persistent  bool // Resumes through its Return clips after being displaced
	CanRepeat   bool // Not recorded in the seen-set when false

	PreviousSequence string // Early when this one has not been seen yet
	NextSequence     string // Late when this one has already been seen

	MinTime time.Duration // Early when requested within MinTime of the last queue
	MaxTime time.Duration // Late when requested MaxTime or more after the last queue
}

// NewSequence creates a sequence with an empty clip list for every event kind.
func NewSequence(name string) *Sequence {
	s := &Sequence{
		Name:  name,
		clips: make(map[EventKind][]string, len(EventKinds)),
	}
	for _, k := range EventKinds {
		s.clips[k] = []string{}
	}
	return s
}

// SetClips replaces the clip names for the given event kind.
// Intended for construction only.
func (s *Sequence) SetClips(kind EventKind, names []string) {
	if s.clips == nil {
		s.clips = make(map[EventKind][]string, len(EventKinds))
	}
	if names == nil {
		names = []string{}
	}
	s.clips[kind] = append([]string(nil), names...)
}

// Clips returns a copy of the clip names for the given event kind.
// The result is never nil.
func (s *Sequence) Clips(kind EventKind) []string {
	names, ok := s.clips[kind]
	if !ok {
		return []string{}
	}
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// ClipNames returns every clip name referenced by the sequence, in event order.
func (s *Sequence) ClipNames() []string {
	var names []string
	for _, k := range EventKinds {
		names = append(names, s.clips[k]...)
	}
	return names
}

// IsEmpty reports whether the sequence references no clips at all.
func (s *Sequence) IsEmpty() bool {
	for _, k := range EventKinds {
		if len(s.clips[k]) > 0 {
			return false
		}
	}
	return true
}
