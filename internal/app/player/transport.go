package player

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/domain/track"
)

// Status is a snapshot of the player.
type Status struct {
	playback.Status
	Loop     queue.Loop
	Shuffle  bool
	Context  queue.Kind
	Name     string // Playlist name of the context
	Position int    // Cursor position in the context, -1 when empty
	Length   int    // Context length
	Queued   int    // Immediate queue length
}

// QueueView lists what plays next.
type QueueView struct {
	Immediate []track.Track
	Upcoming  []track.Track // Context tracks after the cursor
}

func (p *Player) status() Status {
	snap := p.queue.Snapshot()
	return Status{
		Status:   p.playback.Status(),
		Loop:     snap.Loop,
		Shuffle:  snap.Shuffle,
		Context:  snap.Context.Kind,
		Name:     snap.Context.Name,
		Position: snap.Position(),
		Length:   snap.Context.Len(),
		Queued:   len(snap.Immediate),
	}
}

// playTrack hands id to the playback controller.
func (p *Player) playTrack(id track.ID) error {
	t, ok := p.library.Get(id)
	if !ok {
		return errors.Wrapf(track.ErrUnknownTrack, "track %d", id)
	}
	return p.playback.Start(t)
}

// advance asks the engine for the next track and plays it. At the end of
// the queue playback is unloaded.
func (p *Player) advance() error {
	id, err := p.queue.Next()
	if err != nil {
		if errors.Is(err, queue.ErrEndOfQueue) {
			p.playback.Unload()
		}
		return err
	}
	return p.playTrack(id)
}

// Enqueue appends a track to the immediate queue.
func (p *Player) Enqueue(id track.ID) error {
	return p.do(func() error {
		return p.queue.Enqueue(id)
	})
}

// EnqueueNext queues ids to play right after the current track.
func (p *Player) EnqueueNext(ids ...track.ID) error {
	return p.do(func() error {
		return p.queue.EnqueueNext(ids...)
	})
}

// ClearQueue empties the immediate queue.
func (p *Player) ClearQueue() (int, error) {
	return call(p, func() (int, error) {
		return p.queue.ClearQueue(), nil
	})
}

// Queue returns the immediate queue and up to limit upcoming context tracks.
func (p *Player) Queue(limit int) (QueueView, error) {
	return call(p, func() (QueueView, error) {
		snap := p.queue.Snapshot()
		lookup := func(ids []track.ID) []track.Track {
			return lo.FilterMap(ids, func(id track.ID, _ int) (track.Track, bool) {
				return p.library.Get(id)
			})
		}
		upcoming := snap.Upcoming(0)[len(snap.Immediate):]
		if limit > 0 && len(upcoming) > limit {
			upcoming = upcoming[:limit]
		}
		return QueueView{
			Immediate: lookup(snap.Immediate),
			Upcoming:  lookup(upcoming),
		}, nil
	})
}

// open replaces the context. The track still playing finishes but its end
// no longer advances into the new context.
func (p *Player) open(c queue.Context, pos int) error {
	if err := p.queue.Open(c, pos); err != nil {
		return err
	}
	p.playback.Supersede()
	return nil
}

// OpenTrack opens a single-track context.
func (p *Player) OpenTrack(id track.ID) error {
	return p.do(func() error {
		if !p.library.Has(id) {
			return errors.Wrapf(track.ErrUnknownTrack, "track %d", id)
		}
		return p.open(queue.Context{Kind: queue.KindTrack, Entries: []track.ID{id}}, 0)
	})
}

// OpenPlaylist opens a playlist at pos.
func (p *Player) OpenPlaylist(name string, pos int) error {
	return p.do(func() error {
		pl, dropped, err := p.playlists.Get(name)
		if err != nil {
			return err
		}
		if dropped > 0 {
			p.persist("playlist", p.store.PutPlaylist(p.ctx, pl))
		}
		return p.open(queue.Context{Kind: queue.KindPlaylist, Name: pl.Name, Entries: pl.Entries}, pos)
	})
}

// OpenLibrary opens the whole library, positioned at id (or the first track
// when id is track.None).
func (p *Player) OpenLibrary(id track.ID) error {
	return p.do(func() error {
		ids := p.library.IDs()
		pos := 0
		if id != track.None {
			pos = lo.IndexOf(ids, id)
			if pos < 0 {
				return errors.Wrapf(track.ErrUnknownTrack, "track %d", id)
			}
		}
		return p.open(queue.Context{Kind: queue.KindLibrary, Entries: ids}, pos)
	})
}

// Play starts playback: an opened item is loaded, a paused track resumes and
// a stopped track restarts.
func (p *Player) Play() error {
	return p.do(p.play)
}

func (p *Player) play() error {
	if p.queue.Primed() || p.playback.GetState() == playback.StateStopped {
		id, err := p.queue.Play()
		if err != nil {
			return err
		}
		return p.playTrack(id)
	}
	return p.playback.Play()
}

// Pause pauses playback.
func (p *Player) Pause() error {
	return p.do(p.playback.Pause)
}

// Toggle switches between playing and paused.
func (p *Player) Toggle() error {
	return p.do(func() error {
		if p.playback.GetState() == playback.StatePlaying && !p.queue.Primed() {
			return p.playback.Pause()
		}
		return p.play()
	})
}

// Stop stops playback and resets the position.
func (p *Player) Stop() error {
	return p.do(func() error {
		p.playback.Stop()
		return nil
	})
}

// Next plays the next track.
func (p *Player) Next() error {
	return p.do(p.advance)
}

// Previous plays the previous context track.
func (p *Player) Previous() error {
	return p.do(func() error {
		id, err := p.queue.Previous()
		if err != nil {
			return err
		}
		return p.playTrack(id)
	})
}

// Seek moves the position by delta.
func (p *Player) Seek(delta time.Duration) (time.Duration, error) {
	return call(p, func() (time.Duration, error) {
		return p.playback.Seek(delta)
	})
}

// SetPosition moves to pos.
func (p *Player) SetPosition(pos time.Duration) (time.Duration, error) {
	return call(p, func() (time.Duration, error) {
		return p.playback.SetPosition(pos)
	})
}

// SetVolume sets the volume.
func (p *Player) SetVolume(v float64) (float64, error) {
	return call(p, func() (float64, error) {
		return p.playback.SetVolume(v), nil
	})
}

// VolumeUp raises the volume by one step.
func (p *Player) VolumeUp() (float64, error) {
	return call(p, func() (float64, error) {
		return p.playback.VolumeUp(), nil
	})
}

// VolumeDown lowers the volume by one step.
func (p *Player) VolumeDown() (float64, error) {
	return call(p, func() (float64, error) {
		return p.playback.VolumeDown(), nil
	})
}

// VolumeReset restores the volume to 1.0.
func (p *Player) VolumeReset() (float64, error) {
	return call(p, func() (float64, error) {
		return p.playback.VolumeReset(), nil
	})
}

// ToggleMute mutes or unmutes and reports whether it is now muted.
func (p *Player) ToggleMute() (bool, error) {
	return call(p, func() (bool, error) {
		return p.playback.ToggleMute(), nil
	})
}

// SetLoop sets the loop mode.
func (p *Player) SetLoop(l queue.Loop) error {
	return p.do(func() error {
		p.queue.SetLoop(l)
		p.publish(notification.KindModeChanged)
		return nil
	})
}

// CycleLoop advances the loop mode.
func (p *Player) CycleLoop() (queue.Loop, error) {
	return call(p, func() (queue.Loop, error) {
		l := p.queue.CycleLoop()
		p.publish(notification.KindModeChanged)
		return l, nil
	})
}

// SetShuffle turns shuffling on or off.
func (p *Player) SetShuffle(on bool) error {
	return p.do(func() error {
		p.queue.SetShuffle(on)
		p.publish(notification.KindModeChanged)
		return nil
	})
}

// ToggleShuffle flips shuffling.
func (p *Player) ToggleShuffle() (bool, error) {
	return call(p, func() (bool, error) {
		on := p.queue.ToggleShuffle()
		p.publish(notification.KindModeChanged)
		return on, nil
	})
}

// Status returns a snapshot of the player.
func (p *Player) Status() (Status, error) {
	return call(p, func() (Status, error) {
		return p.status(), nil
	})
}
