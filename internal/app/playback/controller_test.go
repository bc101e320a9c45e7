package playback

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunebox/internal/domain/track"
)

// fakeBackend records calls and keeps per-handle positions.
type fakeBackend struct {
	next     Handle
	broken   map[string]bool
	playing  map[Handle]bool
	stopped  map[Handle]bool
	position map[Handle]time.Duration
	volume   map[Handle]float64
	length   time.Duration
	ended    chan Handle
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		broken:   make(map[string]bool),
		playing:  make(map[Handle]bool),
		stopped:  make(map[Handle]bool),
		position: make(map[Handle]time.Duration),
		volume:   make(map[Handle]float64),
		length:   3 * time.Minute,
		ended:    make(chan Handle, 1),
	}
}

func (b *fakeBackend) Load(path string) (Handle, error) {
	if b.broken[path] {
		return NoHandle, errors.Newf("cannot decode %s", path)
	}
	b.next++
	return b.next, nil
}

func (b *fakeBackend) Play(h Handle) error  { b.playing[h] = true; return nil }
func (b *fakeBackend) Pause(h Handle) error { b.playing[h] = false; return nil }
func (b *fakeBackend) Stop(h Handle) error {
	b.playing[h] = false
	b.stopped[h] = true
	return nil
}
func (b *fakeBackend) Seek(h Handle, pos time.Duration) error { b.position[h] = pos; return nil }
func (b *fakeBackend) SetVolume(h Handle, v float64) error    { b.volume[h] = v; return nil }
func (b *fakeBackend) Position(h Handle) time.Duration        { return b.position[h] }
func (b *fakeBackend) Duration(Handle) time.Duration          { return b.length }
func (b *fakeBackend) Ended() <-chan Handle                   { return b.ended }

func newController(t *testing.T) (*Controller, *fakeBackend) {
	t.Helper()
	b := newFakeBackend()
	c := NewController(b, Config{Volume: 1.0})
	t.Cleanup(c.Close)
	return c, b
}

var song = track.Track{ID: 1, Path: "/music/song.mp3", Tag: track.Tag{Title: "Song"}}

func TestController_Transitions(t *testing.T) {
	c, b := newController(t)
	assert.Equal(t, StateStopped, c.GetState())
	assert.True(t, errors.Is(c.Play(), ErrNoTrack))
	assert.True(t, errors.Is(c.Pause(), ErrNotPlaying))

	require.NoError(t, c.Start(song))
	assert.Equal(t, StatePlaying, c.GetState())
	assert.True(t, b.playing[1])

	require.NoError(t, c.Pause())
	assert.Equal(t, StatePaused, c.GetState())
	assert.False(t, b.playing[1])

	require.NoError(t, c.Toggle())
	assert.Equal(t, StatePlaying, c.GetState())

	require.NoError(t, c.Toggle())
	assert.Equal(t, StatePaused, c.GetState())

	c.Stop()
	assert.Equal(t, StateStopped, c.GetState())
	assert.True(t, b.stopped[1])
	assert.Zero(t, c.Status().Elapsed)
	require.NotNil(t, c.Status().Track, "stop keeps the track selected")

	require.NoError(t, c.Play())
	assert.Equal(t, StatePlaying, c.GetState())
	assert.True(t, b.playing[2], "play after stop reloads with a new handle")
}

func TestController_DecodeErrorLeavesStopped(t *testing.T) {
	c, b := newController(t)
	require.NoError(t, c.Start(song))

	b.broken["/music/bad.mp3"] = true
	err := c.Start(track.Track{ID: 2, Path: "/music/bad.mp3"})

	assert.True(t, errors.Is(err, ErrDecode))
	assert.Equal(t, StateStopped, c.GetState())
	assert.Nil(t, c.Status().Track)
	assert.True(t, b.stopped[1], "previous load is released")
}

func TestController_TrackEndedDiscardsStaleHandles(t *testing.T) {
	c, _ := newController(t)
	require.NoError(t, c.Start(song))
	require.NoError(t, c.Start(track.Track{ID: 2, Path: "/music/two.mp3"}))

	assert.False(t, c.TrackEnded(1), "superseded load")
	assert.True(t, c.TrackEnded(2))

	c.Stop()
	assert.False(t, c.TrackEnded(2), "ended after stop")
	assert.False(t, c.TrackEnded(NoHandle))
}

func TestController_SupersededTrackStopsOnEnd(t *testing.T) {
	c, b := newController(t)
	require.NoError(t, c.Start(song))
	c.Supersede()

	assert.False(t, c.TrackEnded(1))
	assert.Equal(t, StateStopped, c.GetState())
	assert.True(t, b.stopped[1])
	assert.Equal(t, &song, c.Status().Track, "track stays selected")

	require.NoError(t, c.Start(track.Track{ID: 2, Path: "/music/two.mp3"}))
	assert.True(t, c.TrackEnded(2), "later loads end normally")
}

func TestController_SeekClamps(t *testing.T) {
	c, _ := newController(t)

	_, err := c.Seek(time.Second)
	assert.True(t, errors.Is(err, ErrNoTrack))

	require.NoError(t, c.Start(song))

	tests := []struct {
		name     string
		op       func() (time.Duration, error)
		expected time.Duration
	}{
		{name: "forward", op: func() (time.Duration, error) { return c.Seek(10 * time.Second) }, expected: 10 * time.Second},
		{name: "backward past start", op: func() (time.Duration, error) { return c.Seek(-time.Minute) }, expected: 0},
		{name: "position past end", op: func() (time.Duration, error) { return c.SetPosition(time.Hour) }, expected: 3 * time.Minute},
		{name: "negative position", op: func() (time.Duration, error) { return c.SetPosition(-time.Second) }, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.expected, c.Status().Elapsed)
		})
	}
}

func TestController_Volume(t *testing.T) {
	c, b := newController(t)
	require.NoError(t, c.Start(song))

	c.VolumeDown()
	c.VolumeDown()
	assert.Equal(t, 0.1, c.VolumeDown())
	assert.Equal(t, 0.1, b.volume[1])

	assert.Equal(t, 0.0, c.VolumeDown(), "clamped at zero")
	assert.Equal(t, 1.0, c.VolumeReset())
	assert.Equal(t, 1.3, c.VolumeUp())
	assert.Equal(t, 5.0, c.SetVolume(5), "no upper bound")
	assert.Equal(t, 0.0, c.SetVolume(-2))
	assert.Equal(t, 0.12345, c.SetVolume(0.12345), "explicit values are not rounded")
}

func TestController_ToggleMute(t *testing.T) {
	c, b := newController(t)
	require.NoError(t, c.Start(song))
	c.SetVolume(0.7)

	assert.True(t, c.ToggleMute())
	assert.Equal(t, 0.0, b.volume[1])
	assert.Equal(t, 0.7, c.Volume())

	assert.False(t, c.ToggleMute())
	assert.Equal(t, 0.7, b.volume[1])
}

func TestController_Events(t *testing.T) {
	c, _ := newController(t)
	require.NoError(t, c.Start(song))
	require.NoError(t, c.Pause())
	c.Stop()

	var types []EventType
	for len(c.Events()) > 0 {
		types = append(types, (<-c.Events()).Type)
	}
	assert.Equal(t, []EventType{EventTrackStarted, EventStateChanged, EventStopped}, types)
	assert.Equal(t, "track_started", EventTrackStarted.String())
	assert.Equal(t, "paused", StatePaused.String())
}

func TestController_UpdateTrack(t *testing.T) {
	c, _ := newController(t)
	require.NoError(t, c.Start(song))

	updated := song
	updated.Tag.Title = "Renamed"
	c.UpdateTrack(updated)
	c.UpdateTrack(track.Track{ID: 9, Tag: track.Tag{Title: "Other"}})

	assert.Equal(t, "Renamed", c.Status().Track.Tag.Title)
}
