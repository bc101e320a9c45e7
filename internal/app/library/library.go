// Package library provides the in-memory track library.
package library

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/tunebox/internal/domain/track"
)

// Library maps track IDs to tracks. IDs are assigned from a monotonically
// increasing counter and are never reused, even after removal.
//
// A Library is not safe for concurrent use; the player loop owns it.
type Library struct {
	tracks map[track.ID]*track.Track
	byPath map[string]track.ID
	nextID track.ID
}

// New creates a library from persisted tracks. nextID is raised above the
// highest known ID if necessary.
func New(tracks []track.Track, nextID track.ID) *Library {
	l := &Library{
		tracks: make(map[track.ID]*track.Track, len(tracks)),
		byPath: make(map[string]track.ID, len(tracks)),
		nextID: nextID,
	}
	if l.nextID <= track.None {
		l.nextID = 1
	}
	for i := range tracks {
		t := tracks[i]
		l.tracks[t.ID] = &t
		l.byPath[t.Path] = t.ID
		if t.ID >= l.nextID {
			l.nextID = t.ID + 1
		}
	}
	return l
}

// Add inserts a track for path and returns it with its new ID.
func (l *Library) Add(path string, tag track.Tag) track.Track {
	t := &track.Track{ID: l.nextID, Path: path, Tag: tag}
	l.nextID++
	l.tracks[t.ID] = t
	l.byPath[path] = t.ID
	return *t
}

// Remove deletes the given tracks. Nothing is removed if any ID is unknown.
func (l *Library) Remove(ids ...track.ID) ([]track.ID, error) {
	for _, id := range ids {
		if _, ok := l.tracks[id]; !ok {
			return nil, errors.Wrapf(track.ErrUnknownTrack, "track %d", id)
		}
	}
	removed := lo.Uniq(ids)
	for _, id := range removed {
		delete(l.byPath, l.tracks[id].Path)
		delete(l.tracks, id)
	}
	return removed, nil
}

// Get returns a copy of the track.
func (l *Library) Get(id track.ID) (track.Track, bool) {
	t, ok := l.tracks[id]
	if !ok {
		return track.Track{}, false
	}
	return *t, true
}

// Has reports whether id is in the library.
func (l *Library) Has(id track.ID) bool {
	_, ok := l.tracks[id]
	return ok
}

// FindPath returns the track stored for path.
func (l *Library) FindPath(path string) (track.Track, bool) {
	id, ok := l.byPath[path]
	if !ok {
		return track.Track{}, false
	}
	return l.Get(id)
}

// SetTag updates one tag field in place.
func (l *Library) SetTag(id track.ID, field track.Field, value string) (track.Track, error) {
	t, ok := l.tracks[id]
	if !ok {
		return track.Track{}, errors.Wrapf(track.ErrUnknownTrack, "track %d", id)
	}
	if err := t.Tag.Set(field, value); err != nil {
		return *t, err
	}
	return *t, nil
}

// ReplaceTag overwrites the whole tag bundle.
func (l *Library) ReplaceTag(id track.ID, tag track.Tag) (track.Track, error) {
	t, ok := l.tracks[id]
	if !ok {
		return track.Track{}, errors.Wrapf(track.ErrUnknownTrack, "track %d", id)
	}
	t.Tag = tag
	return *t, nil
}

// IDs returns all IDs in insertion order.
func (l *Library) IDs() []track.ID {
	ids := lo.Keys(l.tracks)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Tracks returns copies of all tracks in insertion order.
func (l *Library) Tracks() []track.Track {
	return lo.Map(l.IDs(), func(id track.ID, _ int) track.Track {
		return *l.tracks[id]
	})
}

// Len returns the number of tracks.
func (l *Library) Len() int {
	return len(l.tracks)
}

// NextID returns the ID the next Add will assign.
func (l *Library) NextID() track.ID {
	return l.nextID
}
