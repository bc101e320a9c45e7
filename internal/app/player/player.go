// Package player owns the library, playlists, queue engine and playback
// controller, and serializes every operation on them onto one control loop.
package player

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/library"
	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/app/playlists"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/track"
)

// ErrClosed is returned by operations submitted after Close.
var ErrClosed = errors.New("player closed")

// Store persists the library and playlists. Every mutation is written
// through; failures are logged and do not undo the in-memory change.
type Store interface {
	PutTrack(ctx context.Context, t track.Track) error
	DeleteTracks(ctx context.Context, ids []track.ID) error
	PutPlaylist(ctx context.Context, p *playlist.Playlist) error
	DeletePlaylist(ctx context.Context, name string) error
	RenamePlaylist(ctx context.Context, from, to string) error
	SetNextID(ctx context.Context, id track.ID) error
}

// Tagger reads and writes file tags.
type Tagger interface {
	Read(path string) (track.Tag, error)
	Write(path string, field track.Field, value string) error
}

// Watcher reports library files that disappeared from disk.
type Watcher interface {
	Add(path string) error
	Removed() <-chan string
}

// Options configures a Player.
type Options struct {
	Backend playback.Backend
	Store   Store
	Tags    Tagger
	Watcher Watcher // Optional

	// Persisted state
	Tracks    []track.Track
	Playlists []*playlist.Playlist
	NextID    track.ID

	Volume     float64
	VolumeStep float64
	Loop       queue.Loop
	Shuffle    bool
	Extensions []string // Audio file extensions picked up from directories

	QueueOptions []queue.Option
}

type request struct {
	fn   func() error
	done chan error
}

// Player is the single owner of all player state.
type Player struct {
	library      *library.Library
	playlists    *playlists.Store
	queue        *queue.Engine
	playback     *playback.Controller
	notification *notification.Manager

	store      Store
	tags       Tagger
	watcher    Watcher
	extensions []string

	reqCh    chan request
	notifyCh chan notification.Notification

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a player from persisted state. Run must be running for any
// operation to complete.
func New(opts Options) *Player {
	ctx, cancel := context.WithCancel(context.Background())

	lib := library.New(opts.Tracks, opts.NextID)
	qopts := append([]queue.Option{queue.WithLoop(opts.Loop), queue.WithShuffle(opts.Shuffle)}, opts.QueueOptions...)

	p := &Player{
		library:   lib,
		playlists: playlists.New(opts.Playlists, lib.Has),
		queue:     queue.New(lib, qopts...),
		playback: playback.NewController(opts.Backend, playback.Config{
			Volume:     opts.Volume,
			VolumeStep: opts.VolumeStep,
		}),
		notification: notification.NewManager(),

		store:      opts.Store,
		tags:       opts.Tags,
		watcher:    opts.Watcher,
		extensions: opts.Extensions,

		reqCh:    make(chan request),
		notifyCh: make(chan notification.Notification, 64),

		ctx:    ctx,
		cancel: cancel,
	}

	if p.watcher != nil {
		for _, t := range opts.Tracks {
			if err := p.watcher.Add(t.Path); err != nil {
				zlog.Debug().Msgf("player: watch %s: %v", t.Path, err)
			}
		}
	}

	go p.notifyLoop()
	return p
}

// Run processes operations and backend notifications until ctx is done or
// the player is closed.
func (p *Player) Run(ctx context.Context) error {
	var removed <-chan string
	if p.watcher != nil {
		removed = p.watcher.Removed()
	}

	zlog.Debug().Msg("player: control loop started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.ctx.Done():
			return nil
		case req := <-p.reqCh:
			p.exec(req)
		case h := <-p.playback.Ended():
			p.guard("track ended", func() { p.onTrackEnded(h) })
		case ev := <-p.playback.Events():
			p.guard("playback event", func() { p.onPlaybackEvent(ev) })
		case path, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			p.guard("file removed", func() { p.onFileRemoved(path) })
		}
	}
}

// Subscribe registers a notification subscriber.
func (p *Player) Subscribe(s notification.Subscriber) string {
	return p.notification.Subscribe(s)
}

// Unsubscribe removes a notification subscriber.
func (p *Player) Unsubscribe(id string) {
	p.notification.Unsubscribe(id)
}

// Close stops playback and the control loop.
func (p *Player) Close() {
	p.cancel()
	p.playback.Close()
	p.notification.Close()
}

// do runs fn on the control loop and waits for its result.
func (p *Player) do(fn func() error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case p.reqCh <- req:
	case <-p.ctx.Done():
		return ErrClosed
	}
	return <-req.done
}

// call is do for operations returning a value.
func call[T any](p *Player, fn func() (T, error)) (T, error) {
	var out T
	err := p.do(func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

func (p *Player) exec(req request) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("player: operation panicked: %v", r)
			req.done <- errors.Newf("internal error: %v", r)
		}
	}()
	req.done <- req.fn()
}

func (p *Player) guard(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("player: %s handler panicked: %v", what, r)
		}
	}()
	fn()
}

// persist logs a failed write-through.
func (p *Player) persist(what string, err error) {
	if err != nil {
		zlog.Warn().Msgf("player: persist %s failed: %v", what, err)
	}
}

func (p *Player) onTrackEnded(h playback.Handle) {
	if !p.playback.TrackEnded(h) {
		return
	}
	if err := p.advance(); err != nil {
		if errors.Is(err, queue.ErrEndOfQueue) {
			zlog.Info().Msg("player: end of queue")
			return
		}
		zlog.Warn().Msgf("player: auto advance failed: %v", err)
	}
}

func (p *Player) onPlaybackEvent(ev playback.Event) {
	zlog.Debug().Msgf("player: playback event: type=%s state=%s", ev.Type, ev.State)

	switch ev.Type {
	case playback.EventTrackStarted:
		p.publish(notification.KindTrackChanged)
	case playback.EventStateChanged, playback.EventStopped:
		p.publish(notification.KindStateChanged)
	case playback.EventVolumeChanged:
		p.publish(notification.KindVolumeChanged)
	case playback.EventSeeked:
		p.publish(notification.KindSeeked)
	}
}

func (p *Player) onFileRemoved(path string) {
	t, ok := p.library.FindPath(path)
	if !ok {
		return
	}
	zlog.Info().Msgf("player: file removed from disk, dropping track=%d path=%s", t.ID, path)
	if err := p.removeTracks([]track.ID{t.ID}); err != nil {
		zlog.Warn().Msgf("player: drop track=%d failed: %v", t.ID, err)
	}
}

// publish queues a notification carrying the current status.
func (p *Player) publish(kind notification.Kind) {
	st := p.status()
	n := notification.Notification{
		Kind:     kind,
		Track:    st.Track,
		State:    st.State,
		Position: st.Elapsed,
		Duration: st.Duration,
		Volume:   st.Volume,
		Loop:     st.Loop,
		Shuffle:  st.Shuffle,
	}
	if st.Muted {
		n.Volume = 0
	}
	select {
	case p.notifyCh <- n:
	default:
		zlog.Debug().Msgf("player: notification channel full, dropping %s", kind)
	}
}

// notifyLoop broadcasts off the control loop so slow subscribers cannot stall it.
func (p *Player) notifyLoop() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case n := <-p.notifyCh:
			p.notification.Broadcast(n)
		}
	}
}
