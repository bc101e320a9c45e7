package audio

import (
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/playback"
)

// Null is a silent backend. It tracks handles and positions but produces no
// sound and never ends a track on its own; Finish ends one explicitly.
type Null struct {
	mu       sync.Mutex
	next     playback.Handle
	current  playback.Handle
	position time.Duration
	length   time.Duration
	ended    chan playback.Handle
}

// NewNull creates a silent backend.
func NewNull() *Null {
	return &Null{ended: make(chan playback.Handle, 8)}
}

// SetLength sets the duration reported for loads made after the call.
func (n *Null) SetLength(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.length = d
}

func (n *Null) Load(path string) (playback.Handle, error) {
	if _, err := os.Stat(path); err != nil {
		return playback.NoHandle, errors.Wrap(err, "failed to open audio file")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	n.current = n.next
	n.position = 0
	return n.current, nil
}

func (n *Null) Play(h playback.Handle) error  { return n.check(h) }
func (n *Null) Pause(h playback.Handle) error { return n.check(h) }

func (n *Null) Stop(h playback.Handle) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if h == n.current {
		n.current = playback.NoHandle
		n.position = 0
	}
	return nil
}

func (n *Null) Seek(h playback.Handle, pos time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if h != n.current {
		return ErrStaleHandle
	}
	n.position = pos
	return nil
}

func (n *Null) SetVolume(h playback.Handle, _ float64) error { return n.check(h) }

func (n *Null) Position(h playback.Handle) time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	if h != n.current {
		return 0
	}
	return n.position
}

func (n *Null) Duration(h playback.Handle) time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	if h != n.current {
		return 0
	}
	return n.length
}

func (n *Null) Ended() <-chan playback.Handle {
	return n.ended
}

// Finish reports the current load as ended.
func (n *Null) Finish() {
	n.mu.Lock()
	h := n.current
	n.mu.Unlock()
	if h == playback.NoHandle {
		return
	}
	select {
	case n.ended <- h:
	default:
		zlog.Warn().Msgf("audio: end notification dropped handle=%d", h)
	}
}

func (n *Null) check(h playback.Handle) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if h != n.current {
		return ErrStaleHandle
	}
	return nil
}
