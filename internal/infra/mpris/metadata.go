package mpris

import (
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"

	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/domain/track"
)

const noTrack = dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")

func trackPath(id track.ID) dbus.ObjectPath {
	return dbus.ObjectPath("/org/tunebox/track/" + id.String())
}

func playbackStatus(s playback.State) string {
	switch s {
	case playback.StatePlaying:
		return "Playing"
	case playback.StatePaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

func loopStatus(l queue.Loop) string {
	switch l {
	case queue.LoopTrack:
		return "Track"
	case queue.LoopPlaylist:
		return "Playlist"
	default:
		return "None"
	}
}

func parseLoopStatus(s string) (queue.Loop, error) {
	switch s {
	case "None":
		return queue.LoopOff, nil
	case "Track":
		return queue.LoopTrack, nil
	case "Playlist":
		return queue.LoopPlaylist, nil
	default:
		return queue.LoopOff, errors.Newf("invalid loop status %q", s)
	}
}

func micros(d time.Duration) int64 {
	return d.Microseconds()
}

// metadata builds the xesam/mpris metadata map of t.
func metadata(t *track.Track, length time.Duration) map[string]dbus.Variant {
	if t == nil {
		return map[string]dbus.Variant{"mpris:trackid": dbus.MakeVariant(noTrack)}
	}
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackPath(t.ID)),
		"xesam:url":     dbus.MakeVariant((&url.URL{Scheme: "file", Path: t.Path}).String()),
		"xesam:title":   dbus.MakeVariant(t.Tag.DisplayTitle()),
		"xesam:album":   dbus.MakeVariant(t.Tag.DisplayAlbum()),
		"xesam:artist":  dbus.MakeVariant([]string{t.Tag.DisplayArtist()}),
	}
	if length > 0 {
		m["mpris:length"] = dbus.MakeVariant(micros(length))
	}
	if t.Tag.Year > 0 {
		m["xesam:contentCreated"] = dbus.MakeVariant(strconv.Itoa(t.Tag.Year))
	}
	return m
}
