package negotiation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadboard/loadboard/internal/domain/bid"
)

func ptr(v float64) *float64 { return &v }

func newThreadBid(t *testing.T, amount float64) *bid.Bid {
	t.Helper()
	b, err := bid.New(uuid.New(), uuid.New(), amount, nil)
	require.NoError(t, err)
	return b
}

func TestNewMessage_RejectsNonPositiveAmount(t *testing.T) {
	_, err := NewMessage(uuid.New(), RoleCarrier, KindChat, "can do it cheaper", ptr(-1))
	assert.ErrorIs(t, err, bid.ErrInvalidPrice)
	_, err = NewMessage(uuid.New(), RoleCarrier, KindChat, "", ptr(0))
	assert.ErrorIs(t, err, bid.ErrInvalidPrice)
}

func TestCurrentAmount_FallsBackToBidAmount(t *testing.T) {
	b := newThreadBid(t, 38000)
	assert.Equal(t, 38000.0, CurrentAmount(b, nil))

	// chat without amounts does not move the price
	msgs := []*Message{
		{BidID: b.BidID, SenderRole: RoleAdmin, Kind: KindChat, Body: "can you do better?"},
		{BidID: b.BidID, SenderRole: RoleCarrier, Kind: KindChat, Body: "checking with my driver"},
	}
	assert.Equal(t, 38000.0, CurrentAmount(b, msgs))
}

func TestCurrentAmount_CounterOverridesOriginal(t *testing.T) {
	b := newThreadBid(t, 38000)
	require.NoError(t, b.Counter(40000))
	assert.Equal(t, 40000.0, CurrentAmount(b, nil))
}

func TestCurrentAmount_ChatOverridesCounter(t *testing.T) {
	b := newThreadBid(t, 38000)
	require.NoError(t, b.Counter(40000))
	msgs := []*Message{
		{BidID: b.BidID, SenderRole: RoleAdmin, Kind: KindCounterOffer, Amount: ptr(40000)},
		{BidID: b.BidID, SenderRole: RoleCarrier, Kind: KindChat, Body: "meet in the middle", Amount: ptr(39000)},
	}
	assert.Equal(t, 39000.0, CurrentAmount(b, msgs))
}

func TestCurrentAmount_LatestAmountWins(t *testing.T) {
	b := newThreadBid(t, 38000)
	msgs := []*Message{
		{Amount: ptr(41000)},
		{Body: "too high"},
		{Amount: ptr(39500)},
		{Body: "ok let me think"},
	}
	assert.Equal(t, 39500.0, CurrentAmount(b, msgs))
}

// The priority chain must hold for any interleaving of chat, amount-bearing
// chat and counters: latest positive message amount, else counter, else the
// original bid amount.
func TestCurrentAmount_RandomInterleavings(t *testing.T) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < 200; i++ {
		b := newThreadBid(t, float64(1000+rng.Intn(50000)))

		var msgs []*Message
		var lastMsgAmount *float64
		countered := false

		steps := rng.Intn(12)
		for j := 0; j < steps; j++ {
			switch rng.Intn(3) {
			case 0: // plain chat
				msgs = append(msgs, &Message{Kind: KindChat, Body: "..."})
			case 1: // chat with a price proposal
				amount := float64(1000 + rng.Intn(50000))
				msgs = append(msgs, &Message{Kind: KindChat, Amount: ptr(amount)})
				lastMsgAmount = ptr(amount)
			case 2: // structured counter (also lands in the thread)
				amount := float64(1000 + rng.Intn(50000))
				require.NoError(t, b.Counter(amount))
				msgs = append(msgs, &Message{Kind: KindCounterOffer, Amount: ptr(amount)})
				lastMsgAmount = ptr(amount)
				countered = true
			}
		}

		want := b.Amount
		if countered {
			want = *b.CounterAmount
		}
		if lastMsgAmount != nil {
			want = *lastMsgAmount
		}
		assert.Equal(t, want, CurrentAmount(b, msgs), "interleaving %d", i)
	}
}
