package sequencer

import "time"

// QueuedClip describes a pending queue entry.
type QueuedClip struct {
	Sequence   string
	Clip       string
	EnqueuedAt time.Time
}

// Status is a snapshot of the sequencer state.
type Status struct {
	Active        []string     // Active sequence names, bottom to top
	Queue         []QueuedClip // Pending clips, head first
	Seen          []string
	LastQueueTime time.Time
	Playing       bool // A clip is in flight
}

// Status returns a snapshot of the current state.
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Active:        make([]string, 0, len(s.stack)),
		Queue:         make([]QueuedClip, 0, len(s.queue)),
		Seen:          make([]string, len(s.seen)),
		LastQueueTime: s.lastQueueTime,
		Playing:       s.playing,
	}
	for _, seq := range s.stack {
		st.Active = append(st.Active, seq.Name)
	}
	for _, e := range s.queue {
		st.Queue = append(st.Queue, QueuedClip{
			Sequence:   e.Owner.Name,
			Clip:       e.Clip.Name,
			EnqueuedAt: e.EnqueuedAt,
		})
	}
	copy(st.Seen, s.seen)
	return st
}

// IsIdle reports whether no sequence is active.
func (s *Sequencer) IsIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack) == 0 && len(s.queue) == 0
}
