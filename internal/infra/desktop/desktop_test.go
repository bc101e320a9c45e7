package desktop

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/domain/track"
)

type posted struct {
	title, message string
}

func newNotifier(err error) (*Notifier, *[]posted) {
	var got []posted
	return &Notifier{notify: func(title, message string, _ any) error {
		got = append(got, posted{title, message})
		return err
	}}, &got
}

func TestNotifier_Send(t *testing.T) {
	n, got := newNotifier(nil)
	song := &track.Track{ID: 1, Tag: track.Tag{Title: "Song", Artist: "Band"}}

	require.NoError(t, n.Send(&notification.Notification{Kind: notification.KindVolumeChanged, Track: song}))
	require.NoError(t, n.Send(&notification.Notification{Kind: notification.KindTrackChanged}))
	require.NoError(t, n.Send(&notification.Notification{Kind: notification.KindTrackChanged, Track: song}))

	assert.Equal(t, []posted{{title: "Song", message: "Band - unknown"}}, *got)
}

func TestNotifier_SendError(t *testing.T) {
	n, _ := newNotifier(errors.New("no bus"))
	err := n.Send(&notification.Notification{Kind: notification.KindTrackChanged, Track: &track.Track{ID: 1}})
	assert.Error(t, err)
}
