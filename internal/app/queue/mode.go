package queue

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Loop represents the loop mode of the engine.
type Loop int

const (
	LoopOff      Loop = iota // Stop at the end of the context
	LoopTrack                // Repeat the current track indefinitely
	LoopPlaylist             // Wrap to the start of the context
)

// String returns the string representation of the loop mode.
func (l Loop) String() string {
	switch l {
	case LoopTrack:
		return "track"
	case LoopPlaylist:
		return "playlist"
	default:
		return "off"
	}
}

// Cycle returns the mode that follows l: off, track, playlist, off.
func (l Loop) Cycle() Loop {
	switch l {
	case LoopOff:
		return LoopTrack
	case LoopTrack:
		return LoopPlaylist
	default:
		return LoopOff
	}
}

// ParseLoop converts a string to a Loop.
func ParseLoop(s string) (Loop, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return LoopOff, nil
	case "track":
		return LoopTrack, nil
	case "playlist", "queue":
		return LoopPlaylist, nil
	default:
		return LoopOff, errors.Newf("invalid loop mode %q", s)
	}
}

// Kind is the kind of playback context.
type Kind int

const (
	KindNone     Kind = iota // Nothing opened
	KindTrack                // Single track
	KindPlaylist             // Named playlist
	KindLibrary              // Whole library in ID order
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindPlaylist:
		return "playlist"
	case KindLibrary:
		return "library"
	default:
		return "none"
	}
}

// Source tells where the current track was taken from.
type Source int

const (
	SourceNone      Source = iota // No current track
	SourceImmediate               // Popped from the immediate queue
	SourceContext                 // Loaded from the context cursor
)

// String returns the string representation of the source.
func (s Source) String() string {
	switch s {
	case SourceImmediate:
		return "queue"
	case SourceContext:
		return "context"
	default:
		return "none"
	}
}
