package negotiation

import (
	"time"

	"github.com/google/uuid"

	"github.com/loadboard/loadboard/internal/domain/bid"
)

// SenderRole identifies which side of the negotiation sent a message.
type SenderRole string

const (
	RoleAdmin   SenderRole = "ADMIN"
	RoleCarrier SenderRole = "CARRIER"
)

// Kind distinguishes plain chat from structured price events in the thread.
type Kind string

const (
	KindChat         Kind = "CHAT"
	KindCounterOffer Kind = "COUNTER_OFFER"
)

// Message is one entry in a bid's append-only negotiation thread. Amount is
// a structured optional proposal; free text is never parsed for prices.
type Message struct {
	ID         int64      `json:"id"`
	MessageID  uuid.UUID  `json:"messageId"`
	BidID      uuid.UUID  `json:"bidId"`
	SenderRole SenderRole `json:"senderRole"`
	Kind       Kind       `json:"kind"`
	Body       string     `json:"message"`
	Amount     *float64   `json:"amount,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// NewMessage creates a thread entry. Amount, when present, must be positive.
func NewMessage(bidID uuid.UUID, role SenderRole, kind Kind, body string, amount *float64) (*Message, error) {
	if amount != nil && *amount <= 0 {
		return nil, bid.ErrInvalidPrice
	}
	return &Message{
		MessageID:  uuid.New(),
		BidID:      bidID,
		SenderRole: role,
		Kind:       kind,
		Body:       body,
		Amount:     amount,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// CurrentAmount derives the effective negotiated price of a bid from its
// thread. Precedence: the most recent message carrying a positive amount,
// else the structured counter amount, else the original bid amount. Live
// chat proposals deliberately outrank a stale structured counter; every
// margin display depends on this ordering being computed identically.
// Messages must be ordered oldest first (CreatedAt, then insertion id).
func CurrentAmount(b *bid.Bid, messages []*Message) float64 {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Amount != nil && *m.Amount > 0 {
			return *m.Amount
		}
	}
	if b.CounterAmount != nil && *b.CounterAmount > 0 {
		return *b.CounterAmount
	}
	return b.Amount
}
