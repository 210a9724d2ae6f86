// Package playback provides the single-flight clip coordinator.
package playback

// State represents the coordinator state.
type State int

const (
	StateIdle       State = iota // No clip in flight
	StateRequested               // Waiting for the audio resource or its timeout
	StatePlaying                 // Audio playing, text displayed
	StateDisplaying              // Text only, audio unavailable or timed out
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequested:
		return "requested"
	case StatePlaying:
		return "playing"
	case StateDisplaying:
		return "displaying"
	default:
		return "unknown"
	}
}
