package notification

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recorder) Send(n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, *n)
	return nil
}

func TestManager_BroadcastStampsSequence(t *testing.T) {
	m := NewManager()
	r := &recorder{}
	m.Subscribe(r)

	m.Broadcast(Notification{Kind: KindTrackChanged})
	m.Broadcast(Notification{Kind: KindStateChanged})

	if assert.Len(t, r.got, 2) {
		assert.Equal(t, uint64(1), r.got[0].SequenceNo)
		assert.Equal(t, uint64(2), r.got[1].SequenceNo)
		assert.Equal(t, KindStateChanged, r.got[1].Kind)
	}
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager()
	r := &recorder{}
	id := m.Subscribe(r)
	assert.Equal(t, 1, m.SubscriberCount())

	m.Unsubscribe(id)
	m.Broadcast(Notification{Kind: KindSeeked})

	assert.Empty(t, r.got)
	assert.Zero(t, m.SubscriberCount())
}

func TestManager_SlowAndFailingSubscribers(t *testing.T) {
	m := NewManager()
	m.sendTimeout = 20 * time.Millisecond

	release := make(chan struct{})
	defer close(release)
	m.Subscribe(SubscriberFunc(func(*Notification) error {
		<-release
		return nil
	}))
	m.Subscribe(SubscriberFunc(func(*Notification) error {
		return errors.New("boom")
	}))
	r := &recorder{}
	m.Subscribe(r)

	start := time.Now()
	m.Broadcast(Notification{Kind: KindVolumeChanged})

	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, r.got, 1)
}

func TestManager_Close(t *testing.T) {
	m := NewManager()
	m.Subscribe(&recorder{})
	m.Close()
	assert.Zero(t, m.SubscriberCount())
	assert.Equal(t, "library_changed", KindLibraryChanged.String())
}
