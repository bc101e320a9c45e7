package audio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// decode opens path and picks a decoder by extension. Closing the returned
// streamer closes the file.
func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "mp3", "flac", "wav", "ogg", "oga":
	default:
		return nil, beep.Format{}, errors.Mark(errors.Newf("%s: .%s", path, ext), ErrUnsupportedFormat)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(err, "failed to open audio file")
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch ext {
	case "mp3":
		s, format, err = mp3.Decode(f)
	case "flac":
		s, format, err = flac.Decode(f)
	case "wav":
		s, format, err = wav.Decode(f)
	default:
		s, format, err = vorbis.Decode(f)
	}
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "failed to decode %s", filepath.Base(path))
	}
	return s, format, nil
}
