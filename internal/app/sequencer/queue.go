package sequencer

import (
	"time"

	"github.com/osa030/narrator/internal/domain/dialog"
)

// Entry is a queued clip. Owner refers to the sequence on the stack that
// queued it; the entry does not own the sequence.
type Entry struct {
	Owner      *dialog.Sequence
	Clip       *dialog.Clip
	EnqueuedAt time.Time
}

// pushFront places entries at the head of the queue, preserving their order.
func (s *Sequencer) pushFront(entries []Entry) {
	if len(entries) == 0 {
		return
	}
	queue := make([]Entry, 0, len(entries)+len(s.queue))
	queue = append(queue, entries...)
	s.queue = append(queue, s.queue...)
}

// top returns the active sequence, or nil when the stack is empty.
func (s *Sequencer) top() *dialog.Sequence {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *Sequencer) pushSequence(seq *dialog.Sequence) {
	s.stack = append(s.stack, seq)
}

func (s *Sequencer) popSequence() {
	if len(s.stack) > 0 {
		s.stack[len(s.stack)-1] = nil
		s.stack = s.stack[:len(s.stack)-1]
	}
}

// dropOwnerHead removes entries from the head of the queue while they
// belong to owner.
func (s *Sequencer) dropOwnerHead(owner *dialog.Sequence) int {
	n := 0
	for n < len(s.queue) && s.queue[n].Owner == owner {
		n++
	}
	s.queue = s.queue[n:]
	return n
}

func (s *Sequencer) isSeen(name string) bool {
	for _, n := range s.seen {
		if n == name {
			return true
		}
	}
	return false
}
