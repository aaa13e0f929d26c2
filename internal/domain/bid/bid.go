package bid

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a bid.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCountered Status = "COUNTERED"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
)

var (
	ErrInvalidTransition      = errors.New("invalid bid status transition")
	ErrBidFinalized           = errors.New("bid already finalized")
	ErrThreadFrozen           = errors.New("negotiation thread is frozen")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrConcurrentModification = errors.New("bid modified concurrently")
	ErrNotFound               = errors.New("bid not found")
)

// Bid represents a carrier's priced offer to carry a specific load.
type Bid struct {
	ID            int64      `json:"id"`
	BidID         uuid.UUID  `json:"bidId"`
	LoadID        uuid.UUID  `json:"loadId"`
	CarrierID     uuid.UUID  `json:"carrierId"`
	Amount        float64    `json:"amount"`
	CounterAmount *float64   `json:"counterAmount,omitempty"`
	FinalPrice    *float64   `json:"finalPrice,omitempty"`
	Status        Status     `json:"status"`
	Notes         *string    `json:"notes,omitempty"`
	RejectReason  *string    `json:"rejectReason,omitempty"`
	Version       int        `json:"version"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	DecidedAt     *time.Time `json:"decidedAt,omitempty"`
}

// New creates a pending bid for a load.
func New(loadID, carrierID uuid.UUID, amount float64, notes *string) (*Bid, error) {
	if amount <= 0 {
		return nil, ErrInvalidPrice
	}
	now := time.Now().UTC()
	return &Bid{
		BidID:     uuid.New(),
		LoadID:    loadID,
		CarrierID: carrierID,
		Amount:    amount,
		Status:    StatusPending,
		Notes:     notes,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanTransitionTo checks if a transition to the target status is valid.
// ACCEPTED and REJECTED are terminal. COUNTERED -> COUNTERED covers
// repeated negotiation rounds.
func (b *Bid) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusPending:   {StatusCountered, StatusAccepted, StatusRejected},
		StatusCountered: {StatusCountered, StatusAccepted, StatusRejected},
		StatusAccepted:  {},
		StatusRejected:  {},
	}

	allowed, ok := transitions[b.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true once the bid is accepted or rejected.
func (b *Bid) IsTerminal() bool {
	return b.Status == StatusAccepted || b.Status == StatusRejected
}

// Counter records a structured counter-offer. Re-countering updates the
// counter amount without changing status.
func (b *Bid) Counter(amount float64) error {
	if b.IsTerminal() {
		return ErrBidFinalized
	}
	if amount <= 0 {
		return ErrInvalidPrice
	}
	if !b.CanTransitionTo(StatusCountered) {
		return ErrInvalidTransition
	}
	b.Status = StatusCountered
	b.CounterAmount = &amount
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// Accept finalizes the bid at the agreed price.
func (b *Bid) Accept(finalPrice float64) error {
	if b.IsTerminal() {
		return ErrBidFinalized
	}
	if finalPrice <= 0 {
		return ErrInvalidPrice
	}
	if !b.CanTransitionTo(StatusAccepted) {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	b.Status = StatusAccepted
	b.FinalPrice = &finalPrice
	b.UpdatedAt = now
	b.DecidedAt = &now
	return nil
}

// Reject finalizes the bid with an optional reason.
func (b *Bid) Reject(reason *string) error {
	if b.IsTerminal() {
		return ErrBidFinalized
	}
	if !b.CanTransitionTo(StatusRejected) {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	b.Status = StatusRejected
	b.RejectReason = reason
	b.UpdatedAt = now
	b.DecidedAt = &now
	return nil
}
