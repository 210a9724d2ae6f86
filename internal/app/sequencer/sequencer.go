// Package sequencer provides the dialog sequencing state machine.
package sequencer

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/domain/dialog"
)

// ContentStore loads sequence and clip definitions by name.
type ContentStore interface {
	LoadSequence(ctx context.Context, name string) (*dialog.Sequence, error)
	LoadClip(ctx context.Context, name string) (*dialog.Clip, error)
}

// ClipPlayer plays one clip at a time.
// Play returns false when a clip is already in flight. onDone is called only
// when a clip plays to completion, never after Stop. Stop reports whether a
// clip was still in flight.
type ClipPlayer interface {
	Play(clip dialog.Clip, onDone func()) bool
	Stop() bool
}

// Config holds sequencer configuration.
type Config struct {
	ClipAgeMaximum time.Duration // Queued clips older than this are skipped
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) {
		s.now = now
	}
}

// Sequencer owns the active-sequence stack, the clip queue and the seen-set.
// All state is mutated under mu; the player reports completion back through
// the callback handed to Play.
type Sequencer struct {
	mu sync.Mutex

	store  ContentStore
	player ClipPlayer
	config Config
	now    func() time.Time

	stack         []*dialog.Sequence // Active sequences, top is last
	queue         []Entry            // Pending clips, head is first
	seen          []string           // Non-repeatable sequences already requested
	lastQueueTime time.Time          // Time of the last accepted request

	// playGen identifies the clip handed to the player; completions
	// carrying an older generation are ignored.
	playGen uint64
	playing bool

	eventCh chan Event
	closed  bool
}

// New creates a new sequencer.
func New(store ContentStore, player ClipPlayer, config Config, opts ...Option) *Sequencer {
	s := &Sequencer{
		store:   store,
		player:  player,
		config:  config,
		now:     time.Now,
		eventCh: make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastQueueTime = s.now()
	return s
}

// Events returns the event channel.
func (s *Sequencer) Events() <-chan Event {
	return s.eventCh
}

// PlaySequence requests a sequence by name.
// Duplicate, unknown and rejected requests are reported through the
// outcome and leave the queue untouched.
func (s *Sequencer) PlaySequence(ctx context.Context, name string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isSeen(name) {
		zlog.Debug().Msgf("sequencer: sequence already played: name=%s", name)
		s.sendEventLocked(Event{Type: EventSequenceIgnored, Sequence: name, Outcome: OutcomeAlreadySeen})
		return OutcomeAlreadySeen
	}

	next, err := s.store.LoadSequence(ctx, name)
	if err != nil {
		zlog.Warn().Msgf("sequencer: failed to load sequence: name=%s error=%v", name, err)
		s.sendEventLocked(Event{Type: EventSequenceIgnored, Sequence: name, Outcome: OutcomeNotFound})
		return OutcomeNotFound
	}
	// An accepted request is applied in full even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	// Recorded before anything else so rapid repeats cannot slip through
	if !next.CanRepeat {
		s.seen = append(s.seen, name)
	}

	if current := s.top(); current != nil {
		if current.Unstoppable {
			zlog.Debug().Msgf("sequencer: active sequence is unstoppable: active=%s requested=%s", current.Name, name)
			s.sendEventLocked(Event{Type: EventSequenceRejected, Sequence: name, Outcome: OutcomeRejected})
			return OutcomeRejected
		}
		s.stopCurrentClipLocked()
	}

	// Stopping may have retired the last clip of the active sequence
	interrupt := false
	if current := s.top(); current != nil {
		if current.Persistent {
			// Resume later through the Return clips; remaining clips stay queued
			s.queueEventFrontLocked(ctx, current, dialog.EventReturn)
		} else {
			s.dropOwnerHead(current)
			s.popSequence()
		}
		interrupt = true
	}

	s.queueEventFrontLocked(ctx, next, dialog.EventDefault)

	now := s.now()
	elapsed := now.Sub(s.lastQueueTime)
	switch {
	case s.isLate(next, elapsed):
		s.queueEventFrontLocked(ctx, next, dialog.EventLate)
	case s.isEarly(next, elapsed):
		s.queueEventFrontLocked(ctx, next, dialog.EventEarly)
	}

	if interrupt {
		s.queueEventFrontLocked(ctx, next, dialog.EventInterrupt)
	}

	s.pushSequence(next)
	s.lastQueueTime = now

	zlog.Info().Msgf("sequencer: queued sequence: name=%s interrupt=%v depth=%d queue=%d",
		name, interrupt, len(s.stack), len(s.queue))
	s.sendEventLocked(Event{Type: EventSequenceQueued, Sequence: name, Outcome: OutcomeQueued})

	s.playNextLocked()
	return OutcomeQueued
}

// AbortCurrentSequence replaces the active sequence's remaining clips with
// its Abort clips. Returns false when no sequence is active.
func (s *Sequencer) AbortCurrentSequence(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.top() == nil {
		return false
	}
	ctx = context.WithoutCancel(ctx)

	s.stopCurrentClipLocked()
	current := s.top()
	if current == nil {
		zlog.Debug().Msg("sequencer: nothing to abort, active sequence already finished")
		return false
	}
	dropped := s.dropOwnerHead(current)
	queued := s.queueEventFrontLocked(ctx, current, dialog.EventAbort)

	zlog.Info().Msgf("sequencer: aborted sequence: name=%s dropped=%d abort_clips=%d", current.Name, dropped, queued)
	s.sendEventLocked(Event{Type: EventSequenceAborted, Sequence: current.Name})

	s.playNextLocked()
	return true
}

// Reset stops playback and clears the stack, queue and seen-set.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopCurrentClipLocked()
	s.queue = nil
	s.stack = nil
	s.seen = nil
	s.lastQueueTime = s.now()

	zlog.Info().Msg("sequencer: reset")
	s.sendEventLocked(Event{Type: EventReset})
}

// Restore adds previously seen sequence names, e.g. from a saved session.
func (s *Sequencer) Restore(seen []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range seen {
		if name != "" && !s.isSeen(name) {
			s.seen = append(s.seen, name)
		}
	}
}

// Seen returns a copy of the seen-set in insertion order.
func (s *Sequencer) Seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.seen))
	copy(out, s.seen)
	return out
}

// Close stops playback and closes the event channel.
func (s *Sequencer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.stopCurrentClipLocked()
	s.closed = true
	close(s.eventCh)
}

// clipFinished is called by the player when the clip of generation gen
// has played to completion.
func (s *Sequencer) clipFinished(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.playGen || len(s.queue) == 0 {
		zlog.Debug().Msgf("sequencer: ignoring stale completion: gen=%d current=%d", gen, s.playGen)
		return
	}

	s.finishHeadLocked()
	s.playNextLocked()
}

// finishHeadLocked retires the head clip after it played to completion.
func (s *Sequencer) finishHeadLocked() {
	head := s.queue[0]
	s.playing = false
	s.sendEventLocked(Event{Type: EventClipFinished, Sequence: head.Owner.Name, Clip: head.Clip.Name})
	s.popHeadLocked()
}

// playNextLocked skips stale entries and hands the head clip to the player.
// An empty queue clears the stack.
func (s *Sequencer) playNextLocked() {
	if s.closed {
		return
	}

	for len(s.queue) > 0 && s.isStale(s.queue[0]) {
		head := s.queue[0]
		zlog.Debug().Msgf("sequencer: skipping stale clip: sequence=%s clip=%s age=%v",
			head.Owner.Name, head.Clip.Name, s.now().Sub(head.EnqueuedAt))
		s.sendEventLocked(Event{Type: EventClipStale, Sequence: head.Owner.Name, Clip: head.Clip.Name})
		s.popHeadLocked()
	}

	if len(s.queue) == 0 {
		s.drainLocked()
		return
	}

	s.syncStackToHeadLocked()

	head := s.queue[0]
	s.playGen++
	gen := s.playGen
	if !s.player.Play(*head.Clip, func() { s.clipFinished(gen) }) {
		zlog.Warn().Msgf("sequencer: player busy, clip not started: clip=%s", head.Clip.Name)
		return
	}
	s.playing = true
	s.sendEventLocked(Event{Type: EventClipStarted, Sequence: head.Owner.Name, Clip: head.Clip.Name})
}

// popHeadLocked removes the head entry and realigns the stack with the
// owner of the new head.
func (s *Sequencer) popHeadLocked() {
	s.queue[0] = Entry{}
	s.queue = s.queue[1:]

	if len(s.queue) > 0 {
		s.syncStackToHeadLocked()
	}
}

// syncStackToHeadLocked pops the stack once when its top does not own the
// queue head. A mismatch that survives the pop means the queue and stack
// have diverged, which is a programming error.
func (s *Sequencer) syncStackToHeadLocked() {
	owner := s.queue[0].Owner
	if s.top() == owner {
		return
	}

	s.popSequence()
	if s.top() != owner {
		top := sequenceName(s.top())
		zlog.Error().Msgf("sequencer: stack out of sync with queue: top=%s head_owner=%s head_clip=%s",
			top, sequenceName(owner), s.queue[0].Clip.Name)
		panic(errors.AssertionFailedf("sequence stack top %q does not own queue head %q (owner %q)",
			top, s.queue[0].Clip.Name, sequenceName(owner)))
	}
}

// queueEventFrontLocked loads the clips of an event list and places them at
// the head of the queue in list order. Unloadable clips are skipped.
func (s *Sequencer) queueEventFrontLocked(ctx context.Context, seq *dialog.Sequence, kind dialog.EventKind) int {
	names := seq.Clips(kind)
	if len(names) == 0 {
		return 0
	}

	now := s.now()
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		clip, err := s.store.LoadClip(ctx, name)
		if err != nil {
			zlog.Warn().Msgf("sequencer: skipping clip: sequence=%s event=%s clip=%s error=%v", seq.Name, kind, name, err)
			continue
		}
		entries = append(entries, Entry{Owner: seq, Clip: clip, EnqueuedAt: now})
	}

	s.pushFront(entries)
	zlog.Debug().Msgf("sequencer: queued clips: sequence=%s event=%s count=%d", seq.Name, kind, len(entries))
	return len(entries)
}

// drainLocked clears the stack once the queue is empty.
func (s *Sequencer) drainLocked() {
	if len(s.stack) > 0 {
		zlog.Info().Msgf("sequencer: queue drained: cleared=%d", len(s.stack))
		s.sendEventLocked(Event{Type: EventQueueDrained})
	}
	s.stack = nil
	s.playing = false
}

// stopCurrentClipLocked stops the clip in flight and invalidates its
// completion. A clip the player had already finished is retired here,
// since its pending completion will be ignored.
func (s *Sequencer) stopCurrentClipLocked() {
	stopped := s.player.Stop()
	if s.playing && !stopped && len(s.queue) > 0 {
		s.finishHeadLocked()
		if len(s.queue) == 0 {
			s.drainLocked()
		}
	}
	s.playing = false
	s.playGen++
}

// isLate reports whether seq arrives after its successor or its max time.
func (s *Sequencer) isLate(seq *dialog.Sequence, elapsed time.Duration) bool {
	if seq.NextSequence != "" && s.isSeen(seq.NextSequence) {
		return true
	}
	return seq.MaxTime > 0 && elapsed >= seq.MaxTime
}

// isEarly reports whether seq arrives before its predecessor or within its min time.
func (s *Sequencer) isEarly(seq *dialog.Sequence, elapsed time.Duration) bool {
	if seq.PreviousSequence != "" && !s.isSeen(seq.PreviousSequence) {
		return true
	}
	return seq.MinTime > 0 && elapsed <= seq.MinTime
}

func (s *Sequencer) isStale(e Entry) bool {
	return s.config.ClipAgeMaximum > 0 && s.now().Sub(e.EnqueuedAt) > s.config.ClipAgeMaximum
}

// sendEventLocked sends an event without blocking.
func (s *Sequencer) sendEventLocked(e Event) {
	if s.closed {
		return
	}
	if e.Time.IsZero() {
		e.Time = s.now()
	}
	select {
	case s.eventCh <- e:
	default:
		// Channel full, drop event
	}
}

func sequenceName(seq *dialog.Sequence) string {
	if seq == nil {
		return "<none>"
	}
	return seq.Name
}
