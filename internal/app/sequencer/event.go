package sequencer

import "time"

// EventType represents a sequencer event type.
type EventType int

const (
	EventSequenceQueued   EventType = iota // Sequence accepted and its clips queued
	EventSequenceIgnored                   // Request skipped (already seen or not found)
	EventSequenceRejected                  // Request refused by an unstoppable sequence
	EventSequenceAborted                   // Active sequence aborted
	EventClipStarted                       // Clip handed to the player
	EventClipFinished                      // Clip played to completion
	EventClipStale                         // Clip discarded for exceeding the age maximum
	EventQueueDrained                      // Queue emptied and stack cleared
	EventReset                             // Full reset
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSequenceQueued:
		return "sequence_queued"
	case EventSequenceIgnored:
		return "sequence_ignored"
	case EventSequenceRejected:
		return "sequence_rejected"
	case EventSequenceAborted:
		return "sequence_aborted"
	case EventClipStarted:
		return "clip_started"
	case EventClipFinished:
		return "clip_finished"
	case EventClipStale:
		return "clip_stale"
	case EventQueueDrained:
		return "queue_drained"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event represents a sequencer event.
type Event struct {
	Type     EventType
	Sequence string  // Sequence name (empty for some events)
	Clip     string  // Clip name (clip events only)
	Outcome  Outcome // Request outcome (request events only)
	Time     time.Time
}

// Outcome is the result of a sequence request.
type Outcome int

const (
	OutcomeQueued      Outcome = iota // Clips queued and playback triggered
	OutcomeAlreadySeen                // Non-repeatable sequence already played
	OutcomeNotFound                   // Sequence could not be loaded
	OutcomeRejected                   // Active sequence is unstoppable
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeQueued:
		return "queued"
	case OutcomeAlreadySeen:
		return "already_seen"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
