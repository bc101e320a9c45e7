// Package playlists holds the named playlists of the player.
package playlists

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/track"
)

// ErrInvalidName is returned for blank playlist names.
var ErrInvalidName = errors.New("invalid playlist name")

// Store maps playlist names to playlists.
//
// Entries may reference tracks that have left the library. They are pruned
// lazily whenever a playlist is read or edited, using the exists func given
// to New.
type Store struct {
	lists  map[string]*playlist.Playlist
	exists func(track.ID) bool
}

// New creates a store over the given playlists.
func New(lists []*playlist.Playlist, exists func(track.ID) bool) *Store {
	s := &Store{
		lists:  make(map[string]*playlist.Playlist, len(lists)),
		exists: exists,
	}
	for _, p := range lists {
		s.lists[p.Name] = p.Clone()
	}
	return s
}

func normalize(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

func unknown(name string) error {
	return errors.Wrapf(playlist.ErrUnknownPlaylist, "playlist %q", name)
}

// Create adds an empty playlist.
func (s *Store) Create(name string) (*playlist.Playlist, error) {
	name, err := normalize(name)
	if err != nil {
		return nil, err
	}
	if _, ok := s.lists[name]; ok {
		return nil, errors.Wrapf(playlist.ErrExists, "playlist %q", name)
	}
	p := playlist.New(name)
	s.lists[name] = p
	return p.Clone(), nil
}

// Delete removes a playlist.
func (s *Store) Delete(name string) error {
	if _, ok := s.lists[name]; !ok {
		return unknown(name)
	}
	delete(s.lists, name)
	return nil
}

// Rename changes a playlist's name.
func (s *Store) Rename(from, to string) error {
	to, err := normalize(to)
	if err != nil {
		return err
	}
	p, ok := s.lists[from]
	if !ok {
		return unknown(from)
	}
	if from == to {
		return nil
	}
	if _, ok := s.lists[to]; ok {
		return errors.Wrapf(playlist.ErrExists, "playlist %q", to)
	}
	delete(s.lists, from)
	p.Name = to
	s.lists[to] = p
	return nil
}

// Get returns a pruned copy of the playlist and the number of entries
// pruned by this access.
func (s *Store) Get(name string) (*playlist.Playlist, int, error) {
	p, ok := s.lists[name]
	if !ok {
		return nil, 0, unknown(name)
	}
	dropped := p.Prune(s.exists)
	return p.Clone(), dropped, nil
}

// Apply prunes the playlist and then performs the edit. Positions in e refer
// to the pruned playlist.
func (s *Store) Apply(name string, e playlist.Edit) (playlist.Edit, *playlist.Playlist, error) {
	p, ok := s.lists[name]
	if !ok {
		return e, nil, unknown(name)
	}
	p.Prune(s.exists)
	applied, err := p.Apply(e)
	if err != nil {
		return e, nil, err
	}
	return applied, p.Clone(), nil
}

// Has reports whether a playlist exists.
func (s *Store) Has(name string) bool {
	_, ok := s.lists[name]
	return ok
}

// Names returns all playlist names, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.lists))
	for name := range s.lists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
