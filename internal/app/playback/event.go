package playback

import (
	"time"

	"github.com/osa030/tunebox/internal/domain/track"
)

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted  EventType = iota // A track was loaded and started
	EventStateChanged                   // Playback state changed (pause/resume)
	EventStopped                        // Playback stopped
	EventVolumeChanged                  // Volume or mute changed
	EventSeeked                         // Position changed by seek
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventStateChanged:
		return "state_changed"
	case EventStopped:
		return "stopped"
	case EventVolumeChanged:
		return "volume_changed"
	case EventSeeked:
		return "seeked"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type     EventType
	Track    *track.Track  // Loaded track (nil when none)
	State    State         // Playback state after the event
	Position time.Duration // Position after a seek
	Volume   float64       // Effective volume
}
