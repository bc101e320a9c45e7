// Package playlist provides the Playlist domain entity.
package playlist

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/tunebox/internal/domain/track"
)

// Errors
var (
	ErrIndexOutOfRange = errors.New("index out of range") // Edit references a nonexistent position
	ErrUnknownPlaylist = errors.New("unknown playlist")
	ErrExists          = errors.New("playlist already exists")
)

// Op is the kind of a positional playlist edit.
type Op int

const (
	OpInsert Op = iota // Insert ID before Pos (Pos == Len appends)
	OpRemove           // Remove the entry at Pos
)

// String returns the string representation of the op.
func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Edit is a single positional change to a playlist.
type Edit struct {
	Op  Op
	Pos int
	ID  track.ID // Inserted ID (OpInsert) or removed ID (OpRemove, filled by Apply)
}

// Insert returns an insertion edit.
func Insert(pos int, id track.ID) Edit {
	return Edit{Op: OpInsert, Pos: pos, ID: id}
}

// Remove returns a removal edit.
func Remove(pos int) Edit {
	return Edit{Op: OpRemove, Pos: pos}
}

// Playlist is a named, ordered sequence of track IDs.
// Duplicates are allowed and entries may reference tracks no longer in the library.
type Playlist struct {
	Name    string
	Entries []track.ID
}

// New creates an empty playlist.
func New(name string) *Playlist {
	return &Playlist{Name: name, Entries: make([]track.ID, 0)}
}

// Len returns the number of entries.
func (p *Playlist) Len() int {
	return len(p.Entries)
}

// At returns the entry at pos.
func (p *Playlist) At(pos int) (track.ID, bool) {
	if pos < 0 || pos >= len(p.Entries) {
		return track.None, false
	}
	return p.Entries[pos], true
}

// Apply performs the edit and returns it with ID filled in for removals.
func (p *Playlist) Apply(e Edit) (Edit, error) {
	switch e.Op {
	case OpInsert:
		if e.Pos < 0 || e.Pos > len(p.Entries) {
			return e, errors.Wrapf(ErrIndexOutOfRange, "insert at %d (len %d)", e.Pos, len(p.Entries))
		}
		p.Entries = append(p.Entries, track.None)
		copy(p.Entries[e.Pos+1:], p.Entries[e.Pos:])
		p.Entries[e.Pos] = e.ID
	case OpRemove:
		if e.Pos < 0 || e.Pos >= len(p.Entries) {
			return e, errors.Wrapf(ErrIndexOutOfRange, "remove at %d (len %d)", e.Pos, len(p.Entries))
		}
		e.ID = p.Entries[e.Pos]
		p.Entries = append(p.Entries[:e.Pos], p.Entries[e.Pos+1:]...)
	default:
		return e, errors.Newf("unknown playlist op %d", e.Op)
	}
	return e, nil
}

// MoveEdits returns the removal and insertion that move the entry at from so
// that it ends up at index to.
func (p *Playlist) MoveEdits(from, to int) ([]Edit, error) {
	n := len(p.Entries)
	if from < 0 || from >= n || to < 0 || to >= n {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "move %d -> %d (len %d)", from, to, n)
	}
	id := p.Entries[from]
	return []Edit{Remove(from), Insert(to, id)}, nil
}

// Prune drops entries for which exists returns false and returns how many were dropped.
func (p *Playlist) Prune(exists func(track.ID) bool) int {
	kept := p.Entries[:0]
	for _, id := range p.Entries {
		if exists(id) {
			kept = append(kept, id)
		}
	}
	dropped := len(p.Entries) - len(kept)
	p.Entries = kept
	return dropped
}

// Clone returns a deep copy.
func (p *Playlist) Clone() *Playlist {
	entries := make([]track.ID, len(p.Entries))
	copy(entries, p.Entries)
	return &Playlist{Name: p.Name, Entries: entries}
}
