// Package mpris exposes the player on the D-Bus session bus as an MPRIS2
// media player.
package mpris

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/player"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/domain/track"
)

const (
	objectPath  = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	ifaceRoot   = "org.mpris.MediaPlayer2"
	ifacePlayer = "org.mpris.MediaPlayer2.Player"
	busPrefix   = "org.mpris.MediaPlayer2."

	positionInterval = time.Second
)

// ErrNameTaken is returned when another process owns the bus name.
var ErrNameTaken = errors.New("mpris bus name already taken")

// Controller is the part of the player driven over D-Bus.
type Controller interface {
	Play() error
	Pause() error
	Toggle() error
	Stop() error
	Next() error
	Previous() error
	Seek(delta time.Duration) (time.Duration, error)
	SetPosition(pos time.Duration) (time.Duration, error)
	SetVolume(v float64) (float64, error)
	SetLoop(l queue.Loop) error
	SetShuffle(on bool) error
	AddTracks(ctx context.Context, paths ...string) ([]track.Track, error)
	OpenTrack(id track.ID) error
	Status() (player.Status, error)
	Subscribe(s notification.Subscriber) string
	Unsubscribe(id string)
}

// Options configures the server.
type Options struct {
	Name     string // Bus name suffix
	Identity string
	Quit     func() // Optional; enables the Quit method
}

// Server owns the bus connection and mirrors player state into MPRIS
// properties.
type Server struct {
	conn  *dbus.Conn
	ctl   Controller
	props *prop.Properties
	subID string

	current dbus.ObjectPath

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// Start connects to the session bus and publishes the player.
func Start(ctl Controller, opts Options) (*Server, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to session bus")
	}

	s := &Server{conn: conn, ctl: ctl, current: noTrack, done: make(chan struct{})}
	if err := s.export(opts); err != nil {
		_ = conn.Close()
		return nil, err
	}

	reply, err := conn.RequestName(busPrefix+opts.Name, dbus.NameFlagDoNotQueue)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to request bus name")
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Close()
		return nil, errors.Wrapf(ErrNameTaken, "%s%s", busPrefix, opts.Name)
	}

	s.subID = ctl.Subscribe(s)
	s.wg.Add(1)
	go s.positionLoop()

	zlog.Info().Msgf("mpris: published name=%s%s", busPrefix, opts.Name)
	return s, nil
}

func (s *Server) export(opts Options) error {
	st, err := s.ctl.Status()
	if err != nil {
		return errors.Wrap(err, "failed to read player status")
	}

	root := &rootObject{quit: opts.Quit}
	pl := &playerObject{server: s}
	if err := s.conn.Export(root, objectPath, ifaceRoot); err != nil {
		return errors.Wrap(err, "failed to export root object")
	}
	if err := s.conn.Export(pl, objectPath, ifacePlayer); err != nil {
		return errors.Wrap(err, "failed to export player object")
	}

	s.props, err = prop.Export(s.conn, objectPath, s.propMap(opts, st))
	if err != nil {
		return errors.Wrap(err, "failed to export properties")
	}

	node := &introspect.Node{
		Name: string(objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{Name: ifaceRoot, Methods: introspect.Methods(root), Properties: s.props.Introspection(ifaceRoot)},
			{
				Name:       ifacePlayer,
				Methods:    introspect.Methods(pl),
				Properties: s.props.Introspection(ifacePlayer),
				Signals: []introspect.Signal{{
					Name: "Seeked",
					Args: []introspect.Arg{{Name: "Position", Type: "x"}},
				}},
			},
		},
	}
	if err := s.conn.Export(introspect.NewIntrospectable(node), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return errors.Wrap(err, "failed to export introspection")
	}
	return nil
}

func (s *Server) propMap(opts Options, st player.Status) prop.Map {
	fixed := func(v any) *prop.Prop {
		return &prop.Prop{Value: v, Emit: prop.EmitConst}
	}
	return prop.Map{
		ifaceRoot: {
			"CanQuit":             fixed(opts.Quit != nil),
			"CanRaise":            fixed(false),
			"HasTrackList":        fixed(false),
			"Identity":            fixed(opts.Identity),
			"SupportedUriSchemes": fixed([]string{"file"}),
			"SupportedMimeTypes":  fixed([]string{"audio/mpeg", "audio/flac", "audio/x-wav", "audio/ogg"}),
		},
		ifacePlayer: {
			"PlaybackStatus": {Value: playbackStatus(st.State), Emit: prop.EmitTrue},
			"LoopStatus":     {Value: loopStatus(st.Loop), Writable: true, Emit: prop.EmitTrue, Callback: s.onLoopStatus},
			"Shuffle":        {Value: st.Shuffle, Writable: true, Emit: prop.EmitTrue, Callback: s.onShuffle},
			"Volume":         {Value: effectiveVolume(st), Writable: true, Emit: prop.EmitTrue, Callback: s.onVolume},
			"Metadata":       {Value: metadata(st.Track, st.Duration), Emit: prop.EmitTrue},
			"Position":       {Value: micros(st.Elapsed), Emit: prop.EmitFalse},
			"Rate":           fixed(1.0),
			"MinimumRate":    fixed(1.0),
			"MaximumRate":    fixed(1.0),
			"CanGoNext":      fixed(true),
			"CanGoPrevious":  fixed(true),
			"CanPlay":        fixed(true),
			"CanPause":       fixed(true),
			"CanSeek":        fixed(true),
			"CanControl":     fixed(true),
		},
	}
}

func effectiveVolume(st player.Status) float64 {
	if st.Muted {
		return 0
	}
	return st.Volume
}

// Send implements notification.Subscriber.
func (s *Server) Send(n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	switch n.Kind {
	case notification.KindTrackChanged, notification.KindStateChanged, notification.KindLibraryChanged:
		s.props.SetMust(ifacePlayer, "PlaybackStatus", playbackStatus(n.State))
		s.props.SetMust(ifacePlayer, "Metadata", metadata(n.Track, n.Duration))
		s.current = noTrack
		if n.Track != nil {
			s.current = trackPath(n.Track.ID)
		}
	case notification.KindVolumeChanged:
		s.props.SetMust(ifacePlayer, "Volume", n.Volume)
	case notification.KindModeChanged:
		s.props.SetMust(ifacePlayer, "LoopStatus", loopStatus(n.Loop))
		s.props.SetMust(ifacePlayer, "Shuffle", n.Shuffle)
	case notification.KindSeeked:
		s.props.SetMust(ifacePlayer, "Position", micros(n.Position))
		if err := s.conn.Emit(objectPath, ifacePlayer+".Seeked", micros(n.Position)); err != nil {
			return errors.Wrap(err, "failed to emit Seeked")
		}
		return nil
	}
	s.props.SetMust(ifacePlayer, "Position", micros(n.Position))
	return nil
}

// positionLoop refreshes Position, which MPRIS clients poll.
func (s *Server) positionLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(positionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			st, err := s.ctl.Status()
			if err != nil {
				return
			}
			s.mu.Lock()
			if !s.closed {
				s.props.SetMust(ifacePlayer, "Position", micros(st.Elapsed))
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) onLoopStatus(c *prop.Change) *dbus.Error {
	v, ok := c.Value.(string)
	if !ok {
		return prop.ErrInvalidArg
	}
	l, err := parseLoopStatus(v)
	if err != nil {
		return prop.ErrInvalidArg
	}
	return dbusError(s.ctl.SetLoop(l))
}

func (s *Server) onShuffle(c *prop.Change) *dbus.Error {
	v, ok := c.Value.(bool)
	if !ok {
		return prop.ErrInvalidArg
	}
	return dbusError(s.ctl.SetShuffle(v))
}

func (s *Server) onVolume(c *prop.Change) *dbus.Error {
	v, ok := c.Value.(float64)
	if !ok {
		return prop.ErrInvalidArg
	}
	_, err := s.ctl.SetVolume(v)
	return dbusError(err)
}

// Close releases the bus name and connection.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.ctl.Unsubscribe(s.subID)
	s.wg.Wait()
	return s.conn.Close()
}

func dbusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	return dbus.MakeFailedError(err)
}

type rootObject struct {
	quit func()
}

func (r *rootObject) Raise() *dbus.Error { return nil }

func (r *rootObject) Quit() *dbus.Error {
	if r.quit != nil {
		r.quit()
	}
	return nil
}

type playerObject struct {
	server *Server
}

func (p *playerObject) Next() *dbus.Error      { return dbusError(p.server.ctl.Next()) }
func (p *playerObject) Previous() *dbus.Error  { return dbusError(p.server.ctl.Previous()) }
func (p *playerObject) Pause() *dbus.Error     { return dbusError(p.server.ctl.Pause()) }
func (p *playerObject) PlayPause() *dbus.Error { return dbusError(p.server.ctl.Toggle()) }
func (p *playerObject) Stop() *dbus.Error      { return dbusError(p.server.ctl.Stop()) }
func (p *playerObject) Play() *dbus.Error      { return dbusError(p.server.ctl.Play()) }

// Seek moves by offset microseconds.
func (p *playerObject) Seek(offset int64) *dbus.Error {
	_, err := p.server.ctl.Seek(time.Duration(offset) * time.Microsecond)
	return dbusError(err)
}

// SetPosition is ignored unless trackID names the current track.
func (p *playerObject) SetPosition(trackID dbus.ObjectPath, pos int64) *dbus.Error {
	p.server.mu.Lock()
	current := p.server.current
	p.server.mu.Unlock()
	if trackID != current || current == noTrack {
		return nil
	}
	_, err := p.server.ctl.SetPosition(time.Duration(pos) * time.Microsecond)
	return dbusError(err)
}

// OpenUri imports a file:// URI and plays it.
func (p *playerObject) OpenUri(uri string) *dbus.Error {
	tracks, err := p.server.ctl.AddTracks(context.Background(), uri)
	if err != nil {
		return dbusError(err)
	}
	if len(tracks) == 0 {
		return dbus.MakeFailedError(errors.Newf("nothing to play at %s", uri))
	}
	if err := p.server.ctl.OpenTrack(tracks[0].ID); err != nil {
		return dbusError(err)
	}
	return dbusError(p.server.ctl.Play())
}
