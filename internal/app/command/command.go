// Package command implements the textual command surface of the player.
package command

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/tunebox/internal/app/player"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/track"
)

// Errors
var (
	ErrExit  = errors.New("exit requested")
	ErrUsage = errors.New("usage error")
)

// Player is the set of player operations the commands drive.
type Player interface {
	AddTracks(ctx context.Context, paths ...string) ([]track.Track, error)
	RemoveTracks(ids ...track.ID) error
	SetTag(id track.ID, field track.Field, value string) (track.Track, error)
	Rescan(id track.ID) (track.Track, error)
	Track(id track.ID) (track.Track, error)
	Tracks() ([]track.Track, error)

	CreatePlaylist(name string) error
	DeletePlaylist(name string) error
	RenamePlaylist(from, to string) error
	PlaylistAppend(name string, ids ...track.ID) error
	PlaylistInsert(name string, pos int, id track.ID) error
	PlaylistRemove(name string, pos int) error
	PlaylistMove(name string, from, to int) error
	Playlist(name string) (*playlist.Playlist, error)
	Playlists() ([]*playlist.Playlist, error)

	Enqueue(id track.ID) error
	EnqueueNext(ids ...track.ID) error
	ClearQueue() (int, error)
	Queue(limit int) (player.QueueView, error)
	OpenTrack(id track.ID) error
	OpenPlaylist(name string, pos int) error
	OpenLibrary(id track.ID) error

	Play() error
	Pause() error
	Toggle() error
	Stop() error
	Next() error
	Previous() error
	Seek(delta time.Duration) (time.Duration, error)
	SetPosition(pos time.Duration) (time.Duration, error)

	SetVolume(v float64) (float64, error)
	VolumeUp() (float64, error)
	VolumeDown() (float64, error)
	VolumeReset() (float64, error)
	ToggleMute() (bool, error)

	SetLoop(l queue.Loop) error
	CycleLoop() (queue.Loop, error)
	SetShuffle(on bool) error
	ToggleShuffle() (bool, error)

	Status() (player.Status, error)
}

// Config configures an Executor.
type Config struct {
	SeekStep   time.Duration // Default seek forward/backward amount
	Width      int           // Status line width; 0 disables truncation
	QueueLimit int           // Upcoming tracks listed by "queue list"
}

type handler func(ctx context.Context, args []string) error

// Executor parses and runs command lines.
type Executor struct {
	player   Player
	out      io.Writer
	config   Config
	handlers map[string]handler
}

// New creates an executor writing its output to out.
func New(p Player, out io.Writer, cfg Config) *Executor {
	if cfg.SeekStep <= 0 {
		cfg.SeekStep = 5 * time.Second
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = 20
	}
	e := &Executor{player: p, out: out, config: cfg}
	e.handlers = map[string]handler{
		"open":     e.open,
		"queue":    e.queue,
		"next":     e.simple(p.Next),
		"prev":     e.simple(p.Previous),
		"previous": e.simple(p.Previous),
		"toggle":   e.simple(p.Toggle),
		"play":     e.simple(p.Play),
		"pause":    e.simple(p.Pause),
		"stop":     e.simple(p.Stop),
		"status":   e.status,
		"loop":     e.loop,
		"shuffle":  e.shuffle,
		"volume":   e.volume,
		"mute":     e.mute,
		"position": e.position,
		"seek":     e.seek,
		"add":      e.add,
		"rm":       e.remove,
		"tracks":   e.tracks,
		"track":    e.track,
		"tag":      e.tag,
		"rescan":   e.rescan,
		"playlist": e.playlist,
		"library":  e.library,
		"help":     e.help,
		"exit":     e.exit,
		"quit":     e.exit,
	}
	return e
}

// Execute runs one command line. ErrExit is returned for exit.
func (e *Executor) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	h, ok := e.handlers[strings.ToLower(fields[0])]
	if !ok {
		return errors.Mark(errors.Newf("unknown command: '%s'", strings.TrimSpace(line)), ErrUsage)
	}
	return h(ctx, fields[1:])
}

func usage(s string) error {
	return errors.Mark(errors.Newf("usage: %s", s), ErrUsage)
}

func (e *Executor) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.out, format, args...)
}

func (e *Executor) simple(fn func() error) handler {
	return func(_ context.Context, args []string) error {
		if len(args) != 0 {
			return errors.Mark(errors.New("command takes no arguments"), ErrUsage)
		}
		return fn()
	}
}

// resolve turns an id or a path into track ids, importing files as needed.
func (e *Executor) resolve(ctx context.Context, target string) ([]track.ID, error) {
	if id, err := track.ParseID(target); err == nil {
		if _, err := e.player.Track(id); err == nil {
			return []track.ID{id}, nil
		}
	}
	tracks, err := e.player.AddTracks(ctx, target)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, errors.Newf("no audio files at %s", target)
	}
	return lo.Map(tracks, func(t track.Track, _ int) track.ID { return t.ID }), nil
}

func parseIDs(args []string) ([]track.ID, error) {
	ids := make([]track.ID, 0, len(args))
	for _, a := range args {
		id, err := track.ParseID(a)
		if err != nil {
			return nil, errors.Mark(err, ErrUsage)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parsePos parses a 1-based position typed by the user.
func parsePos(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.Mark(errors.Newf("invalid position %q", s), ErrUsage)
	}
	return n - 1, nil
}

func (e *Executor) open(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("open <id|path>")
	}
	ids, err := e.resolve(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if err := e.player.OpenTrack(ids[0]); err != nil {
		return err
	}
	for _, id := range ids[1:] {
		if err := e.player.Enqueue(id); err != nil {
			return err
		}
	}
	if err := e.player.Play(); err != nil {
		return err
	}
	if len(ids) > 1 {
		e.printf("Queued %d more tracks\n", len(ids)-1)
	}
	return nil
}

func (e *Executor) queue(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("queue [next] <id|path> | queue list | queue clear")
	}
	switch args[0] {
	case "list":
		view, err := e.player.Queue(e.config.QueueLimit)
		if err != nil {
			return err
		}
		renderQueue(e.out, view)
		return nil
	case "clear":
		n, err := e.player.ClearQueue()
		if err != nil {
			return err
		}
		e.printf("Cleared %d queued tracks\n", n)
		return nil
	case "next":
		if len(args) < 2 {
			return usage("queue next <id|path>")
		}
		ids, err := e.resolve(ctx, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if err := e.player.EnqueueNext(ids...); err != nil {
			return err
		}
		e.printf("Queued %d tracks next\n", len(ids))
		return nil
	}

	ids, err := e.resolve(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := e.player.Enqueue(id); err != nil {
			return err
		}
	}
	e.printf("Queued %d tracks\n", len(ids))
	return nil
}

func (e *Executor) status(_ context.Context, args []string) error {
	if len(args) != 0 {
		return usage("status")
	}
	st, err := e.player.Status()
	if err != nil {
		return err
	}
	e.printf("%s\n", StatusLine(st, e.config.Width))
	if st.Track != nil {
		e.printf("%s\n%s\n", progress(st.Elapsed, st.Duration), st.Track.Metadata())
	}
	return nil
}

func (e *Executor) loop(_ context.Context, args []string) error {
	switch {
	case len(args) == 0:
		l, err := e.player.CycleLoop()
		if err != nil {
			return err
		}
		e.printf("loop: %s\n", l)
		return nil
	case len(args) == 1 && args[0] == "get":
		st, err := e.player.Status()
		if err != nil {
			return err
		}
		e.printf("loop: %s\n", st.Loop)
		return nil
	case len(args) == 1:
		l, err := queue.ParseLoop(args[0])
		if err != nil {
			return errors.Mark(err, ErrUsage)
		}
		return e.player.SetLoop(l)
	default:
		return usage("loop [off|track|playlist|get]")
	}
}

func (e *Executor) shuffle(_ context.Context, args []string) error {
	if len(args) > 1 {
		return usage("shuffle [on|off|get|toggle]")
	}
	sub := "toggle"
	if len(args) == 1 {
		sub = args[0]
	}
	switch sub {
	case "on", "off":
		return e.player.SetShuffle(sub == "on")
	case "toggle":
		on, err := e.player.ToggleShuffle()
		if err != nil {
			return err
		}
		e.printf("shuffle: %s\n", onOff(on))
		return nil
	case "get":
		st, err := e.player.Status()
		if err != nil {
			return err
		}
		e.printf("shuffle: %s\n", onOff(st.Shuffle))
		return nil
	default:
		return usage("shuffle [on|off|get|toggle]")
	}
}

func (e *Executor) volume(_ context.Context, args []string) error {
	const help = "volume up|down|set <v>|get|reset"
	if len(args) == 0 {
		return usage(help)
	}
	var (
		v   float64
		err error
	)
	switch {
	case args[0] == "up" && len(args) == 1:
		v, err = e.player.VolumeUp()
	case args[0] == "down" && len(args) == 1:
		v, err = e.player.VolumeDown()
	case args[0] == "reset" && len(args) == 1:
		v, err = e.player.VolumeReset()
	case args[0] == "set" && len(args) == 2:
		target, perr := strconv.ParseFloat(args[1], 64)
		if perr != nil {
			return errors.Mark(errors.Newf("invalid volume %q", args[1]), ErrUsage)
		}
		v, err = e.player.SetVolume(target)
	case args[0] == "get" && len(args) == 1:
		st, serr := e.player.Status()
		v, err = st.Volume, serr
	default:
		return usage(help)
	}
	if err != nil {
		return err
	}
	e.printf("volume: %.2f\n", v)
	return nil
}

func (e *Executor) mute(_ context.Context, args []string) error {
	if len(args) != 0 {
		return usage("mute")
	}
	muted, err := e.player.ToggleMute()
	if err != nil {
		return err
	}
	if muted {
		e.printf("muted\n")
	} else {
		e.printf("unmuted\n")
	}
	return nil
}

func (e *Executor) position(_ context.Context, args []string) error {
	switch {
	case len(args) == 1 && args[0] == "get":
		st, err := e.player.Status()
		if err != nil {
			return err
		}
		e.printf("%s\n", progress(st.Elapsed, st.Duration))
		return nil
	case len(args) == 2 && args[0] == "set":
		secs, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return errors.Mark(errors.Newf("invalid position %q", args[1]), ErrUsage)
		}
		pos, err := e.player.SetPosition(time.Duration(secs * float64(time.Second)))
		if err != nil {
			return err
		}
		e.printf("position: %s\n", clock(pos))
		return nil
	default:
		return usage("position set <seconds> | position get")
	}
}

func (e *Executor) seek(_ context.Context, args []string) error {
	const help = "seek forward|backward [seconds]"
	if len(args) == 0 || len(args) > 2 {
		return usage(help)
	}
	step := e.config.SeekStep
	if len(args) == 2 {
		secs, err := strconv.ParseFloat(args[1], 64)
		if err != nil || secs <= 0 {
			return errors.Mark(errors.Newf("invalid seek amount %q", args[1]), ErrUsage)
		}
		step = time.Duration(secs * float64(time.Second))
	}
	switch args[0] {
	case "forward":
	case "backward":
		step = -step
	default:
		return usage(help)
	}
	pos, err := e.player.Seek(step)
	if err != nil {
		return err
	}
	e.printf("position: %s\n", clock(pos))
	return nil
}

func (e *Executor) add(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("add <path...>")
	}
	tracks, err := e.player.AddTracks(ctx, args...)
	if err != nil {
		return err
	}
	renderTracks(e.out, tracks)
	return nil
}

func (e *Executor) remove(_ context.Context, args []string) error {
	if len(args) == 0 {
		return usage("rm <id...>")
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	if err := e.player.RemoveTracks(ids...); err != nil {
		return err
	}
	e.printf("Removed %d tracks\n", len(lo.Uniq(ids)))
	return nil
}

func (e *Executor) tracks(_ context.Context, args []string) error {
	if len(args) != 0 {
		return usage("tracks")
	}
	tracks, err := e.player.Tracks()
	if err != nil {
		return err
	}
	renderTracks(e.out, tracks)
	return nil
}

func (e *Executor) track(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usage("track <id>")
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	t, err := e.player.Track(ids[0])
	if err != nil {
		return err
	}
	e.printf("ID: %d\nPath: %s\n%s\n", t.ID, t.Path, t.Metadata())
	return nil
}

func (e *Executor) tag(_ context.Context, args []string) error {
	const help = "tag <id> title|album|artist|year <value>"
	if len(args) < 2 {
		return usage(help)
	}
	ids, err := parseIDs(args[:1])
	if err != nil {
		return err
	}
	field, ok := track.ParseField(args[1])
	if !ok {
		return usage(help)
	}
	t, err := e.player.SetTag(ids[0], field, strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	e.printf("%s\n", t.Metadata())
	return nil
}

func (e *Executor) rescan(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usage("rescan <id>")
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	t, err := e.player.Rescan(ids[0])
	if err != nil {
		return err
	}
	e.printf("%s\n", t.Metadata())
	return nil
}

func (e *Executor) library(_ context.Context, args []string) error {
	if len(args) == 0 || len(args) > 2 || args[0] != "play" {
		return usage("library play [id]")
	}
	id := track.None
	if len(args) == 2 {
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}
		id = ids[0]
	}
	if err := e.player.OpenLibrary(id); err != nil {
		return err
	}
	return e.player.Play()
}

func (e *Executor) exit(context.Context, []string) error {
	return ErrExit
}

func (e *Executor) help(context.Context, []string) error {
	e.printf("%s", helpText)
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

const helpText = `Playback:
  open <id|path>                  open and play a track
  play | pause | toggle | stop
  next | prev
  status
  seek forward|backward [secs]
  position set <secs> | position get
  volume up|down|set <v>|get|reset
  mute
  loop [off|track|playlist|get]
  shuffle [on|off|get|toggle]
Queue:
  queue [next] <id|path> | queue list | queue clear
Library:
  add <path...> | rm <id...> | tracks | track <id>
  tag <id> title|album|artist|year <value>
  rescan <id>
  library play [id]
Playlists:
  playlist new|rm <name>
  playlist rename <from> <to>
  playlist add <name> <id...>
  playlist insert <name> <pos> <id>
  playlist remove <name> <pos>
  playlist move <name> <from> <to>
  playlist show <name> | playlist list
  playlist play <name> [pos]
exit
`
