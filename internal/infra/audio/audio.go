// Package audio provides playback backends for the controller.
package audio

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/tunebox/internal/app/playback"
)

// Errors
var (
	ErrUnavailable       = errors.New("audio output not available in this build")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrStaleHandle       = errors.New("stale playback handle")
)

// Backend names accepted by New.
const (
	BackendBeep = "beep"
	BackendNull = "null"
)

// Settings tunes the beep backend.
type Settings struct {
	SampleRate int `mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs   int `mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	Quality    int `mapstructure:"quality" default:"4" validate:"gte=1,lte=6"`
}

// DecodeSettings decodes free-form backend settings.
func DecodeSettings(raw map[string]any) (Settings, error) {
	var s Settings
	if err := mapstructure.Decode(raw, &s); err != nil {
		return s, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&s); err != nil {
		return s, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(s); err != nil {
		return s, errors.Wrap(err, "validation failed")
	}
	return s, nil
}

// New creates the named backend.
func New(name string, raw map[string]any) (playback.Backend, error) {
	switch name {
	case BackendNull:
		return NewNull(), nil
	case BackendBeep:
		s, err := DecodeSettings(raw)
		if err != nil {
			return nil, err
		}
		return newBeep(s)
	default:
		return nil, errors.Newf("unknown audio backend: %s", name)
	}
}
