// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrUnknownTrack = errors.New("unknown track")
	ErrTag          = errors.New("tag error")
)

// Unknown is rendered for tag values that are absent.
const Unknown = "unknown"

// ID identifies a library track. IDs are assigned on insertion and never reused.
type ID int64

// None is the zero ID, meaning "no track".
const None ID = 0

// String returns the decimal form of the ID.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses a decimal track ID.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v <= 0 {
		return None, errors.Newf("invalid track id %q", s)
	}
	return ID(v), nil
}

// Field names a mutable tag field.
type Field string

const (
	FieldTitle  Field = "title"
	FieldAlbum  Field = "album"
	FieldArtist Field = "artist"
	FieldYear   Field = "year"
)

// ParseField converts a string to a Field.
func ParseField(s string) (Field, bool) {
	switch f := Field(strings.ToLower(s)); f {
	case FieldTitle, FieldAlbum, FieldArtist, FieldYear:
		return f, true
	default:
		return "", false
	}
}

// Tag is the metadata bundle read from a file. Empty values mean "absent".
type Tag struct {
	Title  string
	Album  string
	Artist string
	Year   int
}

// Set updates a single field from its textual value.
func (t *Tag) Set(field Field, value string) error {
	switch field {
	case FieldTitle:
		t.Title = value
	case FieldAlbum:
		t.Album = value
	case FieldArtist:
		t.Artist = value
	case FieldYear:
		if value == "" {
			t.Year = 0
			return nil
		}
		y, err := strconv.Atoi(value)
		if err != nil || y < 0 {
			return errors.Newf("invalid year %q", value)
		}
		t.Year = y
	default:
		return errors.Newf("unknown tag field %q", field)
	}
	return nil
}

// DisplayTitle returns the title or Unknown.
func (t Tag) DisplayTitle() string { return orUnknown(t.Title) }

// DisplayAlbum returns the album or Unknown.
func (t Tag) DisplayAlbum() string { return orUnknown(t.Album) }

// DisplayArtist returns the artist or Unknown.
func (t Tag) DisplayArtist() string { return orUnknown(t.Artist) }

// DisplayYear returns the year or Unknown.
func (t Tag) DisplayYear() string {
	if t.Year <= 0 {
		return Unknown
	}
	return strconv.Itoa(t.Year)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}

// Track represents a library entry backed by a local audio file.
type Track struct {
	ID   ID     // Library ID
	Path string // Absolute file path
	Tag  Tag    // Tag bundle (mutable in place)
}

// Metadata returns the multi-line metadata block shown by the status command.
func (t *Track) Metadata() string {
	return fmt.Sprintf("Title: %s\nArtist: %s\nAlbum: %s\nYear: %s",
		t.Tag.DisplayTitle(), t.Tag.DisplayArtist(), t.Tag.DisplayAlbum(), t.Tag.DisplayYear())
}

// Summary returns "Title - Artist".
func (t *Track) Summary() string {
	return t.Tag.DisplayTitle() + " - " + t.Tag.DisplayArtist()
}
