// Package notification provides the notification manager for broadcasting player changes.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/domain/track"
)

// Kind represents a notification kind.
type Kind int

const (
	KindTrackChanged    Kind = iota // A new track started
	KindStateChanged                // Playing/paused/stopped changed
	KindVolumeChanged               // Volume or mute changed
	KindSeeked                      // Position jumped
	KindModeChanged                 // Loop or shuffle changed
	KindLibraryChanged              // Tracks added, removed or retagged
	KindPlaylistChanged             // Playlist created, edited, renamed or deleted
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindTrackChanged:
		return "track_changed"
	case KindStateChanged:
		return "state_changed"
	case KindVolumeChanged:
		return "volume_changed"
	case KindSeeked:
		return "seeked"
	case KindModeChanged:
		return "mode_changed"
	case KindLibraryChanged:
		return "library_changed"
	case KindPlaylistChanged:
		return "playlist_changed"
	default:
		return "unknown"
	}
}

// Notification is a snapshot of the player sent to subscribers.
type Notification struct {
	SequenceNo uint64
	Kind       Kind
	Track      *track.Track // Loaded track (nil when none)
	State      playback.State
	Position   time.Duration
	Duration   time.Duration
	Volume     float64 // Effective volume (0 when muted)
	Loop       queue.Loop
	Shuffle    bool
}

// Subscriber receives notifications.
type Subscriber interface {
	Send(*Notification) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(*Notification) error

// Send calls f(n).
func (f SubscriberFunc) Send(n *Notification) error {
	return f(n)
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id         string
	subscriber Subscriber
}

// DefaultSendTimeout bounds a single subscriber send during Broadcast.
const DefaultSendTimeout = 500 * time.Millisecond

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	sendTimeout   time.Duration
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   DefaultSendTimeout,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(s Subscriber) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:         id,
		subscriber: s,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast stamps n with the next sequence number and sends it to all
// subscribers. Each send runs in its own goroutine bounded by the send timeout,
// so a slow subscriber never stalls the caller for longer than that.
func (m *Manager) Broadcast(n Notification) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	n.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			msg := n
			done := make(chan error, 1)
			go func() {
				done <- s.subscriber.Send(&msg)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Warn().Msgf("notification: send failed: subscription=%s kind=%s err=%v", s.id, n.Kind, err)
				}
			case <-ctx.Done():
				zlog.Warn().Msgf("notification: send timed out: subscription=%s kind=%s", s.id, n.Kind)
			}
		}(sub)
	}

	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
