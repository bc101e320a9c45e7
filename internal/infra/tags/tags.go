// Package tags reads and writes audio file metadata.
package tags

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"

	"github.com/osa030/tunebox/internal/domain/track"
)

// IO reads tags with dhowden/tag and writes ID3v2 tags to mp3 files.
type IO struct{}

// New creates a tag reader/writer.
func New() *IO {
	return &IO{}
}

// Read returns the tag bundle of path. A file without tags yields an empty
// bundle.
func (*IO) Read(path string) (track.Tag, error) {
	f, err := os.Open(path)
	if err != nil {
		return track.Tag{}, errors.Wrap(err, "failed to open file")
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return track.Tag{}, nil
	}
	if err != nil {
		return track.Tag{}, errors.Mark(errors.Wrapf(err, "failed to read tags of %s", filepath.Base(path)), track.ErrTag)
	}

	return track.Tag{
		Title:  strings.TrimSpace(m.Title()),
		Album:  strings.TrimSpace(m.Album()),
		Artist: strings.TrimSpace(m.Artist()),
		Year:   max(m.Year(), 0),
	}, nil
}

// Write stores one field. Only mp3 files are writable.
func (*IO) Write(path string, field track.Field, value string) error {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return errors.Mark(errors.Newf("cannot write tags to %s", filepath.Base(path)), track.ErrTag)
	}

	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed to open id3v2 tag"), track.ErrTag)
	}
	defer t.Close()
	t.SetDefaultEncoding(id3v2.EncodingUTF8)

	id, err := frameID(t, field)
	if err != nil {
		return err
	}
	t.DeleteFrames(id)
	if value != "" {
		if field == track.FieldYear {
			if _, err := strconv.Atoi(value); err != nil {
				return errors.Mark(errors.Newf("invalid year %q", value), track.ErrTag)
			}
		}
		t.AddTextFrame(id, t.DefaultEncoding(), value)
	}

	if err := t.Save(); err != nil {
		return errors.Mark(errors.Wrap(err, "failed to save id3v2 tag"), track.ErrTag)
	}
	return nil
}

func frameID(t *id3v2.Tag, field track.Field) (string, error) {
	switch field {
	case track.FieldTitle:
		return t.CommonID("Title"), nil
	case track.FieldAlbum:
		return t.CommonID("Album/Movie/Show title"), nil
	case track.FieldArtist:
		return t.CommonID("Artist"), nil
	case track.FieldYear:
		return t.CommonID("Year"), nil
	default:
		return "", errors.Mark(errors.Newf("unknown tag field %q", field), track.ErrTag)
	}
}
