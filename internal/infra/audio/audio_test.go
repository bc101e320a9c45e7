package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/domain/track"
)

func TestDecodeSettings(t *testing.T) {
	s, err := DecodeSettings(nil)
	require.NoError(t, err)
	assert.Equal(t, Settings{SampleRate: 44100, BufferMs: 100, Quality: 4}, s)

	s, err = DecodeSettings(map[string]any{"sample_rate": 48000, "quality": 2})
	require.NoError(t, err)
	assert.Equal(t, 48000, s.SampleRate)
	assert.Equal(t, 2, s.Quality)

	_, err = DecodeSettings(map[string]any{"quality": 9})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	b, err := New(BackendNull, nil)
	require.NoError(t, err)
	assert.IsType(t, &Null{}, b)

	_, err = New("alsa", nil)
	assert.Error(t, err)
}

func writeWAV(t *testing.T, samples int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	format := beep.Format{SampleRate: 8000, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(samples), format))
	require.NoError(t, f.Close())
	return path
}

func TestDecode(t *testing.T) {
	s, format, err := decode(writeWAV(t, 8000))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, beep.SampleRate(8000), format.SampleRate)
	assert.Equal(t, time.Second, format.SampleRate.D(s.Len()))

	_, _, err = decode("/music/cover.jpg")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, _, err = decode(filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)
}

func TestNull(t *testing.T) {
	n := NewNull()
	n.SetLength(time.Minute)
	path := writeWAV(t, 10)

	_, err := n.Load(filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)

	h1, err := n.Load(path)
	require.NoError(t, err)
	h2, err := n.Load(path)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	assert.True(t, errors.Is(n.Play(h1), ErrStaleHandle))
	require.NoError(t, n.Play(h2))
	require.NoError(t, n.Seek(h2, 10*time.Second))
	assert.Equal(t, 10*time.Second, n.Position(h2))
	assert.Equal(t, time.Minute, n.Duration(h2))
	assert.Zero(t, n.Position(h1))

	n.Finish()
	assert.Equal(t, h2, <-n.Ended())

	require.NoError(t, n.Stop(h2))
	n.Finish()
	assert.Empty(t, n.Ended(), "nothing loaded after stop")
}

func TestNull_DrivesController(t *testing.T) {
	n := NewNull()
	c := playback.NewController(n, playback.Config{Volume: 1})
	t.Cleanup(c.Close)

	require.NoError(t, c.Start(track.Track{ID: 1, Path: writeWAV(t, 10)}))
	n.Finish()
	h := <-c.Ended()
	assert.True(t, c.TrackEnded(h))
}
