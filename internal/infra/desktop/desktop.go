// Package desktop announces track changes as desktop notifications.
package desktop

import (
	"github.com/cockroachdb/errors"
	"github.com/gen2brain/beeep"

	"github.com/osa030/tunebox/internal/app/notification"
)

// Notifier is a notification subscriber that pops up the track that just
// started.
type Notifier struct {
	notify func(title, message string, icon any) error
}

// New creates a notifier posting under appName.
func New(appName string) *Notifier {
	beeep.AppName = appName
	return &Notifier{notify: beeep.Notify}
}

// Send implements notification.Subscriber.
func (n *Notifier) Send(ev *notification.Notification) error {
	if ev.Kind != notification.KindTrackChanged || ev.Track == nil {
		return nil
	}
	tag := ev.Track.Tag
	message := tag.DisplayArtist() + " - " + tag.DisplayAlbum()
	if err := n.notify(tag.DisplayTitle(), message, ""); err != nil {
		return errors.Wrap(err, "failed to post desktop notification")
	}
	return nil
}
