//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"github.com/osa030/tunebox/internal/app/playback"
)

// Available indicates whether audio output is supported in this build.
// Speaker output requires cgo on Linux.
const Available = false

func newBeep(Settings) (playback.Backend, error) {
	return nil, ErrUnavailable
}
