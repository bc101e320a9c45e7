// Package playback provides the playback state machine that drives an audio backend.
package playback

// State represents the playback state.
type State int

const (
	StateStopped State = iota // No track loaded or playback stopped
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
