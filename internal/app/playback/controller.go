package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/domain/track"
)

// Errors
var (
	ErrNoTrack    = errors.New("no track selected")
	ErrNotPlaying = errors.New("not playing")
	ErrDecode     = errors.New("decode error")
)

// Handle identifies one load of a file by the backend. Every load gets a new
// handle, so a handle doubles as the epoch of end-of-track notifications.
type Handle uint64

// NoHandle means nothing is loaded.
const NoHandle Handle = 0

// Backend decodes and outputs audio.
type Backend interface {
	Load(path string) (Handle, error)
	Play(h Handle) error
	Pause(h Handle) error
	Stop(h Handle) error
	Seek(h Handle, pos time.Duration) error
	SetVolume(h Handle, v float64) error
	Position(h Handle) time.Duration
	Duration(h Handle) time.Duration
	// Ended delivers the handle of every load that finished naturally.
	Ended() <-chan Handle
}

// Config holds controller configuration.
type Config struct {
	Volume     float64 // Initial volume (1.0 is unity gain)
	VolumeStep float64 // Step applied by VolumeUp/VolumeDown
}

// DefaultVolumeStep is used when Config.VolumeStep is zero.
const DefaultVolumeStep = 0.3

// Status is a snapshot of the controller.
type Status struct {
	State    State
	Track    *track.Track
	Elapsed  time.Duration
	Duration time.Duration
	Volume   float64 // Volume ignoring mute
	Muted    bool
}

// Controller is the Stopped/Playing/Paused state machine over a Backend.
type Controller struct {
	mu sync.RWMutex

	backend Backend
	handle  Handle
	track   *track.Track // Kept after Stop so Play can reload it

	// Handle playing when another context was opened; its end must not advance
	superseded Handle
	state   State

	volume float64
	muted  bool
	config Config

	// Events
	eventCh chan Event

	// Context
	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a new playback controller.
func NewController(backend Backend, config Config) *Controller {
	if config.VolumeStep <= 0 {
		config.VolumeStep = DefaultVolumeStep
	}
	if config.Volume < 0 {
		config.Volume = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		backend: backend,
		state:   StateStopped,
		volume:  config.Volume,
		config:  config,
		eventCh: make(chan Event, 32),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Ended exposes the backend's end-of-track notifications.
func (c *Controller) Ended() <-chan Handle {
	return c.backend.Ended()
}

// Start loads t and plays it from the beginning, replacing whatever was loaded.
// On a decode error the controller is left Stopped with nothing loaded.
func (c *Controller) Start(t track.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.startLocked(t)
}

func (c *Controller) startLocked(t track.Track) error {
	c.releaseLocked()

	h, err := c.backend.Load(t.Path)
	if err != nil {
		c.track = nil
		c.state = StateStopped
		return errors.Mark(errors.Wrapf(err, "load %s", t.Path), ErrDecode)
	}
	if err := c.backend.SetVolume(h, c.effectiveLocked()); err != nil {
		zlog.Warn().Msgf("playback: set volume failed: %v", err)
	}
	if err := c.backend.Play(h); err != nil {
		_ = c.backend.Stop(h)
		c.track = nil
		c.state = StateStopped
		return errors.Mark(errors.Wrapf(err, "play %s", t.Path), ErrDecode)
	}

	c.handle = h
	c.track = &t
	c.state = StatePlaying
	zlog.Debug().Msgf("playback: started track=%d handle=%d path=%s", t.ID, h, t.Path)

	c.sendEventLocked(Event{
		Type:   EventTrackStarted,
		Track:  c.trackLocked(),
		State:  c.state,
		Volume: c.effectiveLocked(),
	})
	return nil
}

// Play resumes a paused track, or reloads the last track after a stop.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.playLocked()
}

func (c *Controller) playLocked() error {
	switch c.state {
	case StatePlaying:
		return nil
	case StatePaused:
		if err := c.backend.Play(c.handle); err != nil {
			return errors.Wrap(err, "resume")
		}
		c.state = StatePlaying
		c.sendEventLocked(Event{Type: EventStateChanged, Track: c.trackLocked(), State: c.state})
		return nil
	default:
		if c.track == nil {
			return ErrNoTrack
		}
		return c.startLocked(*c.track)
	}
}

// Pause pauses the current playback.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pauseLocked()
}

func (c *Controller) pauseLocked() error {
	if c.state != StatePlaying {
		return ErrNotPlaying
	}
	if err := c.backend.Pause(c.handle); err != nil {
		return errors.Wrap(err, "pause")
	}
	c.state = StatePaused
	c.sendEventLocked(Event{Type: EventStateChanged, Track: c.trackLocked(), State: c.state})
	return nil
}

// Toggle switches between playing and paused.
func (c *Controller) Toggle() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StatePlaying {
		return c.pauseLocked()
	}
	return c.playLocked()
}

// Stop stops playback and resets the position. The track stays selected.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
}

// Unload stops playback and forgets the track.
func (c *Controller) Unload() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.track = nil
}

func (c *Controller) stopLocked() {
	wasStopped := c.state == StateStopped && c.handle == NoHandle
	c.releaseLocked()
	c.state = StateStopped
	if !wasStopped {
		c.sendEventLocked(Event{Type: EventStopped, Track: c.trackLocked(), State: c.state})
	}
}

// releaseLocked stops the backend handle. Notifications for it are stale afterwards.
func (c *Controller) releaseLocked() {
	if c.handle == NoHandle {
		return
	}
	if err := c.backend.Stop(c.handle); err != nil {
		zlog.Warn().Msgf("playback: stop handle=%d failed: %v", c.handle, err)
	}
	c.handle = NoHandle
}

// TrackEnded reports whether an end-of-track notification for h is current.
// Stale handles and notifications arriving while not playing are discarded.
func (c *Controller) TrackEnded(h Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h != NoHandle && h == c.superseded {
		zlog.Debug().Msgf("playback: superseded track ended handle=%d", h)
		if h == c.handle {
			c.stopLocked()
		}
		return false
	}
	if h == NoHandle || h != c.handle || c.state != StatePlaying {
		zlog.Debug().Msgf("playback: discarding stale end notification handle=%d current=%d", h, c.handle)
		return false
	}
	return true
}

// Supersede marks the loaded handle as belonging to a replaced context. When
// it ends, playback stops instead of advancing.
func (c *Controller) Supersede() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.superseded = c.handle
}

// Seek moves the position by delta, clamped to the track bounds.
func (c *Controller) Seek(delta time.Duration) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == NoHandle {
		return 0, ErrNoTrack
	}
	return c.seekLocked(c.backend.Position(c.handle) + delta)
}

// SetPosition moves to pos, clamped to the track bounds.
func (c *Controller) SetPosition(pos time.Duration) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == NoHandle {
		return 0, ErrNoTrack
	}
	return c.seekLocked(pos)
}

func (c *Controller) seekLocked(pos time.Duration) (time.Duration, error) {
	pos = max(pos, 0)
	if d := c.backend.Duration(c.handle); d > 0 {
		pos = min(pos, d)
	}
	if err := c.backend.Seek(c.handle, pos); err != nil {
		return 0, errors.Wrap(err, "seek")
	}
	c.sendEventLocked(Event{Type: EventSeeked, Track: c.trackLocked(), State: c.state, Position: pos})
	return pos, nil
}

// SetVolume sets the volume. Negative values are clamped to zero; there is
// no upper bound. Setting the volume clears mute.
func (c *Controller) SetVolume(v float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.setVolumeLocked(v)
}

func (c *Controller) setVolumeLocked(v float64) float64 {
	c.volume = max(v, 0)
	c.muted = false
	c.applyVolumeLocked()
	return c.volume
}

// VolumeUp raises the volume by one step.
func (c *Controller) VolumeUp() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.setVolumeLocked(round(c.volume + c.config.VolumeStep))
}

// VolumeDown lowers the volume by one step, stopping at zero.
func (c *Controller) VolumeDown() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.setVolumeLocked(round(c.volume - c.config.VolumeStep))
}

// VolumeReset restores unity gain.
func (c *Controller) VolumeReset() float64 {
	return c.SetVolume(1.0)
}

// ToggleMute mutes or restores the volume and reports whether it is now muted.
func (c *Controller) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.muted = !c.muted
	c.applyVolumeLocked()
	return c.muted
}

func (c *Controller) applyVolumeLocked() {
	v := c.effectiveLocked()
	if c.handle != NoHandle {
		if err := c.backend.SetVolume(c.handle, v); err != nil {
			zlog.Warn().Msgf("playback: set volume failed: %v", err)
		}
	}
	c.sendEventLocked(Event{Type: EventVolumeChanged, Track: c.trackLocked(), State: c.state, Volume: v})
}

func (c *Controller) effectiveLocked() float64 {
	if c.muted {
		return 0
	}
	return c.volume
}

// Volume returns the volume ignoring mute.
func (c *Controller) Volume() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.volume
}

// GetState returns the playback state.
func (c *Controller) GetState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

// UpdateTrack refreshes the metadata of the loaded track when IDs match.
func (c *Controller) UpdateTrack(t track.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.track != nil && c.track.ID == t.ID {
		c.track = &t
	}
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{
		State:  c.state,
		Track:  c.trackLocked(),
		Volume: c.volume,
		Muted:  c.muted,
	}
	if c.handle != NoHandle {
		s.Elapsed = c.backend.Position(c.handle)
		s.Duration = c.backend.Duration(c.handle)
	}
	return s
}

// Close stops playback and releases resources.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseLocked()
	c.state = StateStopped
	c.cancel()
}

func (c *Controller) trackLocked() *track.Track {
	if c.track == nil {
		return nil
	}
	t := *c.track
	return &t
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	select {
	case c.eventCh <- e:
	case <-c.ctx.Done():
	default:
		zlog.Debug().Msgf("playback: event channel full, dropping %s", e.Type)
	}
}

// round trims float noise so repeated steps land on exact decimals.
// Explicitly set volumes are stored as given.
func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
