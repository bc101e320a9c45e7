//go:build (linux && cgo) || windows || darwin

package audio

import (
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/playback"
)

// Available indicates whether audio output is supported in this build.
const Available = true

// voice is one loaded file on its way to the speaker.
type voice struct {
	handle   playback.Handle
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
}

// beepBackend plays files through the system speaker. Only one load is
// active at a time.
type beepBackend struct {
	mu sync.Mutex

	settings    Settings
	sampleRate  beep.SampleRate
	initialized bool

	next  playback.Handle
	cur   *voice
	ended chan playback.Handle
}

func newBeep(s Settings) (playback.Backend, error) {
	return &beepBackend{
		settings:   s,
		sampleRate: beep.SampleRate(s.SampleRate),
		ended:      make(chan playback.Handle, 8),
	}, nil
}

// initSpeakerLocked initializes the speaker on first use.
func (b *beepBackend) initSpeakerLocked() error {
	if b.initialized {
		return nil
	}
	buffer := time.Duration(b.settings.BufferMs) * time.Millisecond
	if err := speaker.Init(b.sampleRate, b.sampleRate.N(buffer)); err != nil {
		return errors.Wrap(err, "failed to initialize speaker")
	}
	b.initialized = true
	zlog.Debug().Msgf("audio: speaker initialized rate=%d buffer=%v", b.sampleRate, buffer)
	return nil
}

// Load decodes path and queues it paused on the speaker.
func (b *beepBackend) Load(path string) (playback.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseLocked()

	streamer, format, err := decode(path)
	if err != nil {
		return playback.NoHandle, err
	}
	if err := b.initSpeakerLocked(); err != nil {
		_ = streamer.Close()
		return playback.NoHandle, err
	}

	b.next++
	h := b.next
	resampled := beep.Resample(b.settings.Quality, format.SampleRate, b.sampleRate, streamer)
	volume := &effects.Volume{Streamer: resampled, Base: 2}
	v := &voice{
		handle:   h,
		streamer: streamer,
		format:   format,
		volume:   volume,
		ctrl:     &beep.Ctrl{Streamer: volume, Paused: true},
	}
	b.cur = v

	// The callback runs on the speaker goroutine and must not block.
	speaker.Play(beep.Seq(v.ctrl, beep.Callback(func() {
		select {
		case b.ended <- h:
		default:
			zlog.Warn().Msgf("audio: end notification dropped handle=%d", h)
		}
	})))

	return h, nil
}

func (b *beepBackend) Play(h playback.Handle) error {
	return b.withVoice(h, func(v *voice) error {
		v.ctrl.Paused = false
		return nil
	})
}

func (b *beepBackend) Pause(h playback.Handle) error {
	return b.withVoice(h, func(v *voice) error {
		v.ctrl.Paused = true
		return nil
	})
}

func (b *beepBackend) Stop(h playback.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil || b.cur.handle != h {
		return nil
	}
	b.releaseLocked()
	return nil
}

func (b *beepBackend) Seek(h playback.Handle, pos time.Duration) error {
	return b.withVoice(h, func(v *voice) error {
		n := v.format.SampleRate.N(pos)
		if last := v.streamer.Len() - 1; n > last {
			n = max(last, 0)
		}
		return v.streamer.Seek(n)
	})
}

// SetVolume applies a linear gain; 0 silences the output.
func (b *beepBackend) SetVolume(h playback.Handle, gain float64) error {
	return b.withVoice(h, func(v *voice) error {
		v.volume.Silent = gain <= 0
		if gain > 0 {
			v.volume.Volume = math.Log2(gain)
		}
		return nil
	})
}

func (b *beepBackend) Position(h playback.Handle) time.Duration {
	var d time.Duration
	_ = b.withVoice(h, func(v *voice) error {
		d = v.format.SampleRate.D(v.streamer.Position())
		return nil
	})
	return d
}

func (b *beepBackend) Duration(h playback.Handle) time.Duration {
	var d time.Duration
	_ = b.withVoice(h, func(v *voice) error {
		d = v.format.SampleRate.D(v.streamer.Len())
		return nil
	})
	return d
}

func (b *beepBackend) Ended() <-chan playback.Handle {
	return b.ended
}

// withVoice runs fn on the current voice under the speaker lock.
func (b *beepBackend) withVoice(h playback.Handle, fn func(v *voice) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil || b.cur.handle != h {
		return ErrStaleHandle
	}
	speaker.Lock()
	defer speaker.Unlock()
	return fn(b.cur)
}

// releaseLocked removes the current voice from the speaker and closes it.
func (b *beepBackend) releaseLocked() {
	if b.cur == nil {
		return
	}
	if b.initialized {
		speaker.Clear()
	}
	if err := b.cur.streamer.Close(); err != nil {
		zlog.Debug().Msgf("audio: close handle=%d: %v", b.cur.handle, err)
	}
	b.cur = nil
}
