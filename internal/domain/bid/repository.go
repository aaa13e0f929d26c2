package bid

import (
	"context"

	"github.com/google/uuid"
)

// Filter controls bid listing.
type Filter struct {
	LoadID    *uuid.UUID
	CarrierID *uuid.UUID
	Status    *Status
}

// Repository defines persistence for bids. Update performs an optimistic
// version check and returns ErrConcurrentModification on a stale write.
type Repository interface {
	Create(ctx context.Context, b *Bid) error
	Update(ctx context.Context, b *Bid) error
	GetByID(ctx context.Context, bidID uuid.UUID) (*Bid, error)
	ListByLoad(ctx context.Context, loadID uuid.UUID) ([]*Bid, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Bid, error)
}
