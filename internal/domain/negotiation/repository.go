package negotiation

import (
	"context"

	"github.com/google/uuid"

	"github.com/loadboard/loadboard/internal/domain/bid"
)

// Repository defines persistence for negotiation threads. Threads are
// append-only; entries are never mutated or deleted.
type Repository interface {
	Append(ctx context.Context, m *Message) error
	// AppendWithBid appends a thread entry and updates its bid in one
	// transaction, so a counter never commits half-way. The bid update
	// carries an optimistic version check.
	AppendWithBid(ctx context.Context, m *Message, b *bid.Bid) error
	// ListByBid returns the thread oldest first, ordered by created_at
	// with insertion id as the tie-break.
	ListByBid(ctx context.Context, bidID uuid.UUID) ([]*Message, error)
}
