package player

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/domain/track"
)

// ExpandPath resolves a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "file://")
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "resolve home directory")
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

// collect expands paths into audio files. Directories are walked
// recursively and filtered by extension; files named explicitly are kept.
func (p *Player) collect(paths []string) ([]string, error) {
	var files []string
	for _, raw := range paths {
		path, err := ExpandPath(raw)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", raw)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(file string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && p.audioFile(file) {
				files = append(files, file)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", raw)
		}
	}
	return lo.Uniq(files), nil
}

func (p *Player) audioFile(path string) bool {
	if len(p.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return lo.Contains(p.extensions, ext)
}

// AddTracks imports files and directories into the library and returns the
// resulting tracks. Paths already in the library return their existing
// track. Unreadable tags are logged and imported as unknown.
func (p *Player) AddTracks(ctx context.Context, paths ...string) ([]track.Track, error) {
	files, err := p.collect(paths)
	if err != nil {
		return nil, err
	}

	type scanned struct {
		path string
		tag  track.Tag
	}
	items := make([]scanned, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tag, err := p.tags.Read(f)
		if err != nil {
			zlog.Warn().Msgf("player: read tags %s: %v", f, err)
		}
		items = append(items, scanned{path: f, tag: tag})
	}

	return call(p, func() ([]track.Track, error) {
		out := make([]track.Track, 0, len(items))
		added := 0
		for _, it := range items {
			if t, ok := p.library.FindPath(it.path); ok {
				out = append(out, t)
				continue
			}
			t := p.library.Add(it.path, it.tag)
			added++
			p.persist("track", p.store.PutTrack(p.ctx, t))
			p.queue.ReconcileLibraryAdd(t.ID)
			if p.watcher != nil {
				if err := p.watcher.Add(t.Path); err != nil {
					zlog.Debug().Msgf("player: watch %s: %v", t.Path, err)
				}
			}
			out = append(out, t)
		}
		if added > 0 {
			p.persist("next id", p.store.SetNextID(p.ctx, p.library.NextID()))
			p.publish(notification.KindLibraryChanged)
			zlog.Info().Msgf("player: imported %d tracks", added)
		}
		return out, nil
	})
}

// RemoveTracks removes tracks from the library. When the current track is
// among them playback stops.
func (p *Player) RemoveTracks(ids ...track.ID) error {
	return p.do(func() error {
		return p.removeTracks(ids)
	})
}

// RemovePath removes the track stored at path. It reports whether such a
// track existed.
func (p *Player) RemovePath(path string) (bool, error) {
	return call(p, func() (bool, error) {
		t, ok := p.library.FindPath(path)
		if !ok {
			return false, nil
		}
		return true, p.removeTracks([]track.ID{t.ID})
	})
}

func (p *Player) removeTracks(ids []track.ID) error {
	removed, err := p.library.Remove(ids...)
	if err != nil {
		return err
	}
	p.persist("delete tracks", p.store.DeleteTracks(p.ctx, removed))
	if p.queue.ReconcileLibrary(removed) {
		zlog.Info().Msg("player: current track removed, stopping")
		p.playback.Unload()
	}
	p.publish(notification.KindLibraryChanged)
	return nil
}

// Track returns a library track.
func (p *Player) Track(id track.ID) (track.Track, error) {
	return call(p, func() (track.Track, error) {
		t, ok := p.library.Get(id)
		if !ok {
			return t, errors.Wrapf(track.ErrUnknownTrack, "track %d", id)
		}
		return t, nil
	})
}

// Tracks returns all library tracks in ID order.
func (p *Player) Tracks() ([]track.Track, error) {
	return call(p, func() ([]track.Track, error) {
		return p.library.Tracks(), nil
	})
}

// SetTag writes one tag field to the file and then to the library. When the
// file write fails the library keeps the old value.
func (p *Player) SetTag(id track.ID, field track.Field, value string) (track.Track, error) {
	t, err := p.Track(id)
	if err != nil {
		return t, err
	}
	probe := t.Tag
	if err := probe.Set(field, value); err != nil {
		return t, errors.Mark(err, track.ErrTag)
	}
	if err := p.tags.Write(t.Path, field, value); err != nil {
		return t, errors.Mark(errors.Wrapf(err, "write %s tag of %s", field, t.Path), track.ErrTag)
	}

	return call(p, func() (track.Track, error) {
		updated, err := p.library.SetTag(id, field, value)
		if err != nil {
			return updated, err
		}
		p.retagged(updated)
		return updated, nil
	})
}

// Rescan re-reads a track's tags from disk.
func (p *Player) Rescan(id track.ID) (track.Track, error) {
	t, err := p.Track(id)
	if err != nil {
		return t, err
	}
	tag, err := p.tags.Read(t.Path)
	if err != nil {
		return t, errors.Mark(errors.Wrapf(err, "read tags of %s", t.Path), track.ErrTag)
	}

	return call(p, func() (track.Track, error) {
		updated, err := p.library.ReplaceTag(id, tag)
		if err != nil {
			return updated, err
		}
		p.retagged(updated)
		return updated, nil
	})
}

func (p *Player) retagged(t track.Track) {
	p.persist("track", p.store.PutTrack(p.ctx, t))
	p.playback.UpdateTrack(t)
	p.publish(notification.KindLibraryChanged)
}
