package bus

import (
	"sync"

	"github.com/google/uuid"

	"github.com/loadboard/loadboard/internal/domain/event"
)

// Subscriber is one connected viewer. Events arrive on a buffered channel;
// a subscriber that cannot keep up loses events and is expected to re-fetch
// state on reconnect.
type Subscriber struct {
	ID       string
	Channels []string
	Events   chan *event.Event

	closeOnce sync.Once
}

func newSubscriber(channels []string) *Subscriber {
	return &Subscriber{
		ID:       uuid.NewString(),
		Channels: channels,
		Events:   make(chan *event.Event, 64),
	}
}

func (s *Subscriber) watches(channelKey string) bool {
	for _, c := range s.Channels {
		if c == channelKey {
			return true
		}
	}
	return false
}

// Close closes the subscriber's event channel.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		close(s.Events)
	})
}

// Hub fans negotiation events out to subscribers by channel key. Events on
// one channel are delivered in publish order; no ordering is guaranteed
// across channels.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]*Subscriber),
	}
}

// Subscribe registers a viewer for the given channel keys.
func (h *Hub) Subscribe(channels []string) *Subscriber {
	sub := newSubscriber(channels)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		s.Close()
		delete(h.subs, id)
	}
}

// Publish delivers the event to every subscriber of the channel key.
func (h *Hub) Publish(channelKey string, ev *event.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.watches(channelKey) {
			trySend(s, ev)
		}
	}
}

// SubscriberCount reports currently connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stop disconnects all subscribers.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		s.Close()
		delete(h.subs, id)
	}
}

func trySend(s *Subscriber, ev *event.Event) bool {
	select {
	case s.Events <- ev:
		return true
	default:
		return false
	}
}
