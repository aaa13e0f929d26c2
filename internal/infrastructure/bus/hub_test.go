package bus

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadboard/loadboard/internal/domain/event"
)

func testEvent(typ event.Type) *event.Event {
	return event.New(typ, uuid.New(), uuid.New(), "ADMIN", "", nil)
}

func receive(t *testing.T, sub *Subscriber) *event.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events:
		require.True(t, ok, "subscriber channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestHub_PublishReachesMatchingSubscribers(t *testing.T) {
	h := NewHub()
	defer h.Stop()

	carrierID := uuid.New()
	admin := h.Subscribe([]string{event.ChannelAdmin})
	carrier := h.Subscribe([]string{event.ChannelCarrier(carrierID)})

	ev := testEvent(event.TypeBidReceived)
	h.Publish(event.ChannelAdmin, ev)
	h.Publish(event.ChannelCarrier(carrierID), ev)

	assert.Same(t, ev, receive(t, admin))
	assert.Same(t, ev, receive(t, carrier))

	select {
	case <-admin.Events:
		t.Fatal("admin received an event for the carrier channel")
	default:
	}
}

func TestHub_MultiChannelSubscriber(t *testing.T) {
	h := NewHub()
	defer h.Stop()

	carrierID := uuid.New()
	sub := h.Subscribe([]string{event.ChannelAdmin, event.ChannelCarrier(carrierID)})

	h.Publish(event.ChannelCarrier(carrierID), testEvent(event.TypeBidCountered))
	got := receive(t, sub)
	assert.Equal(t, event.TypeBidCountered, got.Type)
}

func TestHub_PerChannelOrdering(t *testing.T) {
	h := NewHub()
	defer h.Stop()

	sub := h.Subscribe([]string{event.ChannelAdmin})
	types := []event.Type{
		event.TypeBidReceived,
		event.TypeBidCountered,
		event.TypeNegotiationMessage,
		event.TypeBidAccepted,
	}
	for _, typ := range types {
		h.Publish(event.ChannelAdmin, testEvent(typ))
	}
	for _, want := range types {
		assert.Equal(t, want, receive(t, sub).Type)
	}
}

func TestHub_SlowSubscriberDropsNotBlocks(t *testing.T) {
	h := NewHub()
	defer h.Stop()

	sub := h.Subscribe([]string{event.ChannelAdmin})
	// never read: fill the buffer and then some
	for i := 0; i < cap(sub.Events)+10; i++ {
		h.Publish(event.ChannelAdmin, testEvent(event.TypeNegotiationMessage))
	}
	assert.Len(t, sub.Events, cap(sub.Events))
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	defer h.Stop()

	sub := h.Subscribe([]string{event.ChannelAdmin})
	assert.Equal(t, 1, h.SubscriberCount())

	h.Unsubscribe(sub.ID)
	assert.Equal(t, 0, h.SubscriberCount())

	_, ok := <-sub.Events
	assert.False(t, ok)

	// unknown id is a no-op
	h.Unsubscribe(sub.ID)
}

func TestHub_Stop(t *testing.T) {
	h := NewHub()
	a := h.Subscribe([]string{event.ChannelAdmin})
	b := h.Subscribe([]string{event.ChannelLoad(uuid.New())})

	h.Stop()
	assert.Equal(t, 0, h.SubscriberCount())
	for _, sub := range []*Subscriber{a, b} {
		_, ok := <-sub.Events
		assert.False(t, ok)
	}
}
