package event

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates negotiation events pushed to connected viewers.
type Type string

const (
	TypeBidReceived        Type = "bid_received"
	TypeBidCountered       Type = "bid_countered"
	TypeBidAccepted        Type = "bid_accepted"
	TypeBidRejected        Type = "bid_rejected"
	TypeNegotiationMessage Type = "negotiation_message"
)

// Event is the wire payload delivered over any push transport.
type Event struct {
	EventID    uuid.UUID `json:"eventId"`
	Type       Type      `json:"eventType"`
	BidID      uuid.UUID `json:"bidId"`
	LoadID     uuid.UUID `json:"loadId"`
	SenderRole string    `json:"senderRole"`
	Message    string    `json:"message,omitempty"`
	Amount     *float64  `json:"amount,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// New creates an event with a fresh id and timestamp.
func New(t Type, bidID, loadID uuid.UUID, senderRole, message string, amount *float64) *Event {
	return &Event{
		EventID:    uuid.New(),
		Type:       t,
		BidID:      bidID,
		LoadID:     loadID,
		SenderRole: senderRole,
		Message:    message,
		Amount:     amount,
		CreatedAt:  time.Now().UTC(),
	}
}

// Channel keys. Admin consoles watch the broadcast channel, carrier apps
// their own channel, and any open negotiation view the load channel.
const ChannelAdmin = "admin"

func ChannelCarrier(carrierID uuid.UUID) string {
	return "carrier:" + carrierID.String()
}

func ChannelLoad(loadID uuid.UUID) string {
	return "load:" + loadID.String()
}
