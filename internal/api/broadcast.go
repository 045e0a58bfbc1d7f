package api

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/banshee-data/sweeper/internal/sweep"
)

// subscriberBuffer is the per-subscriber queue; events beyond it are dropped
// for that subscriber only.
const subscriberBuffer = 256

// Broadcaster fans sweep events out to SSE subscribers. Publish never blocks,
// so a stalled client cannot hold up the session relay.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]chan sweep.Event
	closed      bool
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]chan sweep.Event)}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new subscriber. The channel is closed by Unsubscribe
// or Close.
func (b *Broadcaster) Subscribe() (string, <-chan sweep.Event) {
	id := randomID()
	ch := make(chan sweep.Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Publish delivers ev to every subscriber with room for it.
func (b *Broadcaster) Publish(ev sweep.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// if the channel is full skip so as not to block the relay
		}
	}
}

// Len returns the number of subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel. Later subscribers receive an
// already-closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
