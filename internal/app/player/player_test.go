package player

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/track"
)

// fakeBackend hands out sequential handles. Ended is unbuffered so a test
// send returns only once the control loop has taken the notification.
type fakeBackend struct {
	next   playback.Handle
	broken map[string]bool
	ended  chan playback.Handle
}

func (b *fakeBackend) Load(path string) (playback.Handle, error) {
	if b.broken[path] {
		return playback.NoHandle, errors.Newf("cannot decode %s", path)
	}
	b.next++
	return b.next, nil
}

func (b *fakeBackend) Play(playback.Handle) error                { return nil }
func (b *fakeBackend) Pause(playback.Handle) error               { return nil }
func (b *fakeBackend) Stop(playback.Handle) error                { return nil }
func (b *fakeBackend) Seek(playback.Handle, time.Duration) error { return nil }
func (b *fakeBackend) SetVolume(playback.Handle, float64) error  { return nil }
func (b *fakeBackend) Position(playback.Handle) time.Duration    { return 0 }
func (b *fakeBackend) Duration(playback.Handle) time.Duration    { return time.Minute }
func (b *fakeBackend) Ended() <-chan playback.Handle             { return b.ended }

type fakeStore struct {
	mu        sync.Mutex
	tracks    map[track.ID]track.Track
	deleted   []track.ID
	playlists map[string][]track.ID
	nextID    track.ID
}

func (s *fakeStore) PutTrack(_ context.Context, t track.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks[t.ID] = t
	return nil
}

func (s *fakeStore) DeleteTracks(_ context.Context, ids []track.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, ids...)
	return nil
}

func (s *fakeStore) PutPlaylist(_ context.Context, p *playlist.Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists[p.Name] = append([]track.ID(nil), p.Entries...)
	return nil
}

func (s *fakeStore) DeletePlaylist(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.playlists, name)
	return nil
}

func (s *fakeStore) RenamePlaylist(_ context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists[to] = s.playlists[from]
	delete(s.playlists, from)
	return nil
}

func (s *fakeStore) SetNextID(_ context.Context, id track.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = id
	return nil
}

type fakeTags struct {
	mu       sync.Mutex
	tags     map[string]track.Tag
	writeErr error
	writes   int
}

func (f *fakeTags) Read(path string) (track.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tag, ok := f.tags[path]
	if !ok {
		return track.Tag{}, errors.Newf("no tags in %s", path)
	}
	return tag, nil
}

func (f *fakeTags) Write(path string, field track.Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	tag := f.tags[path]
	if err := tag.Set(field, value); err != nil {
		return err
	}
	f.tags[path] = tag
	return nil
}

type fakeWatcher struct {
	removed chan string
}

func (w *fakeWatcher) Add(string) error       { return nil }
func (w *fakeWatcher) Removed() <-chan string { return w.removed }

type fixture struct {
	player  *Player
	backend *fakeBackend
	store   *fakeStore
	tags    *fakeTags
	watcher *fakeWatcher
}

func seedTracks() []track.Track {
	return []track.Track{
		{ID: 1, Path: "/music/a.mp3", Tag: track.Tag{Title: "A"}},
		{ID: 2, Path: "/music/b.mp3", Tag: track.Tag{Title: "B"}},
		{ID: 3, Path: "/music/c.mp3", Tag: track.Tag{Title: "C"}},
	}
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		backend: &fakeBackend{broken: make(map[string]bool), ended: make(chan playback.Handle)},
		store: &fakeStore{
			tracks:    make(map[track.ID]track.Track),
			playlists: make(map[string][]track.ID),
		},
		tags:    &fakeTags{tags: make(map[string]track.Tag)},
		watcher: &fakeWatcher{removed: make(chan string)},
	}
	opts := Options{
		Backend:      f.backend,
		Store:        f.store,
		Tags:         f.tags,
		Watcher:      f.watcher,
		Tracks:       seedTracks(),
		NextID:       4,
		Volume:       1.0,
		QueueOptions: []queue.Option{queue.WithSeed(7)},
	}
	for _, m := range mutate {
		m(&opts)
	}
	f.player = New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.player.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		f.player.Close()
	})
	return f
}

func (f *fixture) current(t *testing.T) track.ID {
	t.Helper()
	st, err := f.player.Status()
	require.NoError(t, err)
	if st.Track == nil {
		return track.None
	}
	return st.Track.ID
}

func (f *fixture) state(t *testing.T) playback.State {
	t.Helper()
	st, err := f.player.Status()
	require.NoError(t, err)
	return st.State
}

func TestPlayer_LibraryScenario(t *testing.T) {
	f := newFixture(t)
	p := f.player

	require.NoError(t, p.OpenLibrary(track.None))
	require.NoError(t, p.Next())
	assert.Equal(t, track.ID(1), f.current(t))

	require.NoError(t, p.Enqueue(3))
	require.NoError(t, p.Next())
	assert.Equal(t, track.ID(3), f.current(t))

	require.NoError(t, p.Next())
	assert.Equal(t, track.ID(2), f.current(t))

	require.NoError(t, p.Previous())
	assert.Equal(t, track.ID(1), f.current(t))
	assert.Equal(t, playback.StatePlaying, f.state(t))
}

func TestPlayer_OpenDoesNotStartPlayback(t *testing.T) {
	f := newFixture(t)
	p := f.player

	require.NoError(t, p.OpenTrack(2))
	assert.Equal(t, playback.StateStopped, f.state(t))

	require.NoError(t, p.Play())
	assert.Equal(t, track.ID(2), f.current(t))
	assert.Equal(t, playback.StatePlaying, f.state(t))

	require.NoError(t, p.Toggle())
	assert.Equal(t, playback.StatePaused, f.state(t))
	require.NoError(t, p.Toggle())
	assert.Equal(t, playback.StatePlaying, f.state(t))

	assert.True(t, errors.Is(p.OpenTrack(42), track.ErrUnknownTrack))
}

func TestPlayer_TrackEndAdvances(t *testing.T) {
	f := newFixture(t)
	p := f.player

	require.NoError(t, p.OpenLibrary(track.None))
	require.NoError(t, p.Next())
	first := f.backend.next
	require.NoError(t, p.Next())
	assert.Equal(t, track.ID(2), f.current(t))

	f.backend.ended <- first
	assert.Equal(t, track.ID(2), f.current(t), "stale end notification is discarded")

	f.backend.ended <- f.backend.next
	assert.Equal(t, track.ID(3), f.current(t))

	f.backend.ended <- f.backend.next
	assert.Equal(t, track.None, f.current(t), "loop off stops at the end")
	assert.Equal(t, playback.StateStopped, f.state(t))
}

func TestPlayer_EndNotificationAfterStopIsIgnored(t *testing.T) {
	f := newFixture(t)
	p := f.player

	require.NoError(t, p.OpenLibrary(track.None))
	require.NoError(t, p.Next())
	h := f.backend.next
	require.NoError(t, p.Stop())

	f.backend.ended <- h

	assert.Equal(t, playback.StateStopped, f.state(t))
	assert.Equal(t, track.ID(1), f.current(t))
}

func TestPlayer_OpenSupersedesEndOfPlayingTrack(t *testing.T) {
	f := newFixture(t)
	p := f.player

	require.NoError(t, p.OpenLibrary(track.None))
	require.NoError(t, p.Next())
	h := f.backend.next
	require.NoError(t, p.CreatePlaylist("Mix"))
	require.NoError(t, p.PlaylistAppend("Mix", 3, 2))
	require.NoError(t, p.OpenPlaylist("Mix", 0))

	f.backend.ended <- h

	assert.Equal(t, track.ID(1), f.current(t))
	assert.Equal(t, playback.StateStopped, f.state(t))
	assert.Equal(t, h, f.backend.next, "nothing new was loaded")

	require.NoError(t, p.Play())
	assert.Equal(t, track.ID(3), f.current(t))
	assert.Equal(t, playback.StatePlaying, f.state(t))
}

func TestPlayer_RemovingCurrentTrackStops(t *testing.T) {
	f := newFixture(t)
	p := f.player

	require.NoError(t, p.OpenLibrary(track.None))
	require.NoError(t, p.Next())

	require.NoError(t, p.RemoveTracks(1))

	assert.Equal(t, track.None, f.current(t))
	assert.Equal(t, playback.StateStopped, f.state(t))
	assert.Equal(t, []track.ID{1}, f.store.deleted)

	require.NoError(t, p.Next())
	assert.Equal(t, track.ID(2), f.current(t))

	assert.True(t, errors.Is(p.RemoveTracks(1), track.ErrUnknownTrack))
}

func TestPlayer_MixScenario(t *testing.T) {
	f := newFixture(t)
	p := f.player

	require.NoError(t, p.CreatePlaylist("Mix"))
	require.NoError(t, p.PlaylistAppend("Mix", 2, 1, 3))
	require.NoError(t, p.OpenPlaylist("Mix", 0))
	require.NoError(t, p.Next())
	assert.Equal(t, track.ID(2), f.current(t))

	require.NoError(t, p.RemoveTracks(1))

	mix, err := p.Playlist("Mix")
	require.NoError(t, err)
	assert.Equal(t, []track.ID{2, 3}, mix.Entries)
	assert.Equal(t, []track.ID{2, 3}, f.store.playlists["Mix"], "pruned playlist is written back")

	require.NoError(t, p.Next())
	assert.Equal(t, track.ID(3), f.current(t))
}

func TestPlayer_PlaylistEdits(t *testing.T) {
	f := newFixture(t)
	p := f.player

	require.NoError(t, p.CreatePlaylist("P"))
	assert.True(t, errors.Is(p.CreatePlaylist("P"), playlist.ErrExists))
	assert.True(t, errors.Is(p.PlaylistAppend("P", 99), track.ErrUnknownTrack))

	require.NoError(t, p.PlaylistAppend("P", 1, 2))
	require.NoError(t, p.PlaylistInsert("P", 0, 3))
	require.NoError(t, p.PlaylistMove("P", 0, 2))
	assert.Equal(t, []track.ID{1, 2, 3}, f.store.playlists["P"])

	require.NoError(t, p.PlaylistRemove("P", 1))
	assert.True(t, errors.Is(p.PlaylistRemove("P", 5), playlist.ErrIndexOutOfRange))

	require.NoError(t, p.RenamePlaylist("P", "Q"))
	lists, err := p.Playlists()
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "Q", lists[0].Name)
	assert.Equal(t, []track.ID{1, 3}, lists[0].Entries)

	require.NoError(t, p.DeletePlaylist("Q"))
	_, err = p.Playlist("Q")
	assert.True(t, errors.Is(err, playlist.ErrUnknownPlaylist))
	assert.Empty(t, f.store.playlists)
}

func TestPlayer_DeletedPlaylistIsDetached(t *testing.T) {
	f := newFixture(t)
	p := f.player

	require.NoError(t, p.CreatePlaylist("Mix"))
	require.NoError(t, p.PlaylistAppend("Mix", 1, 2, 3))
	require.NoError(t, p.OpenPlaylist("Mix", 0))
	require.NoError(t, p.Next())

	require.NoError(t, p.DeletePlaylist("Mix"))
	require.NoError(t, p.CreatePlaylist("Mix"))
	require.NoError(t, p.PlaylistAppend("Mix", 3))

	st, err := p.Status()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Length)
	assert.Empty(t, st.Name)

	view, err := p.Queue(0)
	require.NoError(t, err)
	assert.Equal(t, []track.ID{2, 3}, lo.Map(view.Upcoming, func(tr track.Track, _ int) track.ID { return tr.ID }))

	require.NoError(t, p.Previous())
	assert.Equal(t, track.ID(1), f.current(t))
}

func TestPlayer_DecodeErrorLeavesStopped(t *testing.T) {
	f := newFixture(t)
	f.backend.broken["/music/b.mp3"] = true
	p := f.player

	require.NoError(t, p.OpenTrack(2))
	err := p.Play()

	assert.True(t, errors.Is(err, playback.ErrDecode))
	assert.Equal(t, playback.StateStopped, f.state(t))
}

func TestPlayer_SetTag(t *testing.T) {
	f := newFixture(t)
	p := f.player
	f.tags.tags["/music/a.mp3"] = track.Tag{Title: "A"}

	got, err := p.SetTag(1, track.FieldArtist, "Band")
	require.NoError(t, err)
	assert.Equal(t, "Band", got.Tag.Artist)
	assert.Equal(t, "Band", f.store.tracks[1].Tag.Artist)

	_, err = p.SetTag(1, track.FieldYear, "soon")
	assert.True(t, errors.Is(err, track.ErrTag))
	assert.Equal(t, 1, f.tags.writes, "invalid value is not written")

	f.tags.writeErr = errors.New("read-only file")
	_, err = p.SetTag(1, track.FieldTitle, "New")
	assert.True(t, errors.Is(err, track.ErrTag))

	stale, err := p.Track(1)
	require.NoError(t, err)
	assert.Equal(t, "A", stale.Tag.Title, "library keeps the old value")
}

func TestPlayer_Rescan(t *testing.T) {
	f := newFixture(t)
	p := f.player
	f.tags.tags["/music/c.mp3"] = track.Tag{Title: "Fresh", Year: 1999}

	got, err := p.Rescan(3)
	require.NoError(t, err)
	assert.Equal(t, track.Tag{Title: "Fresh", Year: 1999}, got.Tag)

	_, err = p.Rescan(2)
	assert.True(t, errors.Is(err, track.ErrTag))
}

func TestPlayer_AddTracks(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Extensions = []string{"mp3", "flac"} })
	p := f.player

	dir := t.TempDir()
	for _, name := range []string{"one.mp3", "two.FLAC", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	f.tags.tags[filepath.Join(dir, "one.mp3")] = track.Tag{Title: "One"}

	require.NoError(t, p.OpenLibrary(track.None))

	added, err := p.AddTracks(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, track.ID(4), added[0].ID)
	assert.Equal(t, "One", added[0].Tag.Title)
	assert.Equal(t, track.ID(5), added[1].ID)
	assert.Equal(t, track.ID(6), f.store.nextID)

	again, err := p.AddTracks(context.Background(), filepath.Join(dir, "one.mp3"))
	require.NoError(t, err)
	assert.Equal(t, track.ID(4), again[0].ID, "known path keeps its id")

	view, err := p.Queue(0)
	require.NoError(t, err)
	assert.Len(t, view.Upcoming, 5, "library context grows with imports")

	_, err = p.AddTracks(context.Background(), filepath.Join(dir, "missing.mp3"))
	assert.Error(t, err)
}

func TestPlayer_WatcherRemovesTrack(t *testing.T) {
	f := newFixture(t)
	p := f.player

	f.watcher.removed <- "/music/b.mp3"
	f.watcher.removed <- "/music/unknown.mp3"

	tracks, err := p.Tracks()
	require.NoError(t, err)
	assert.Len(t, tracks, 2)
	_, err = p.Track(2)
	assert.True(t, errors.Is(err, track.ErrUnknownTrack))

	ok, err := p.RemovePath("/music/c.mp3")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.RemovePath("/music/c.mp3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPlayer_Modes(t *testing.T) {
	f := newFixture(t)
	p := f.player

	l, err := p.CycleLoop()
	require.NoError(t, err)
	assert.Equal(t, queue.LoopTrack, l)
	require.NoError(t, p.SetLoop(queue.LoopPlaylist))

	on, err := p.ToggleShuffle()
	require.NoError(t, err)
	assert.True(t, on)

	st, err := p.Status()
	require.NoError(t, err)
	assert.Equal(t, queue.LoopPlaylist, st.Loop)
	assert.True(t, st.Shuffle)

	for range 3 {
		_, err = p.VolumeDown()
		require.NoError(t, err)
	}
	st, _ = p.Status()
	assert.Equal(t, 0.1, st.Volume)

	v, err := p.VolumeReset()
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	muted, err := p.ToggleMute()
	require.NoError(t, err)
	assert.True(t, muted)
}

func TestPlayer_Notifications(t *testing.T) {
	f := newFixture(t)
	p := f.player

	var mu sync.Mutex
	var got []notification.Notification
	p.Subscribe(notification.SubscriberFunc(func(n *notification.Notification) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, *n)
		return nil
	}))

	require.NoError(t, p.OpenTrack(3))
	require.NoError(t, p.Play())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, n := range got {
			if n.Kind == notification.KindTrackChanged && n.Track != nil && n.Track.ID == 3 {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestPlayer_ClosedRejectsOperations(t *testing.T) {
	p := New(Options{
		Backend: &fakeBackend{ended: make(chan playback.Handle)},
		Store:   &fakeStore{},
		Tags:    &fakeTags{},
	})
	p.Close()

	assert.True(t, errors.Is(p.Play(), ErrClosed))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/music/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "music/a.mp3"), got)

	got, err = ExpandPath("file:///tmp/x.mp3")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.mp3", got)
}
