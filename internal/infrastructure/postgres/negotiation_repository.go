package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loadboard/loadboard/internal/domain/bid"
	"github.com/loadboard/loadboard/internal/domain/negotiation"
)

// NegotiationRepository implements negotiation.Repository.
type NegotiationRepository struct {
	pool *pgxpool.Pool
}

func NewNegotiationRepository(pool *pgxpool.Pool) *NegotiationRepository {
	return &NegotiationRepository{pool: pool}
}

func (r *NegotiationRepository) Append(ctx context.Context, m *negotiation.Message) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO negotiation_messages
		(message_id, bid_id, sender_role, kind, body, amount, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, m.MessageID, m.BidID, m.SenderRole, m.Kind, m.Body, m.Amount, m.CreatedAt).Scan(&m.ID)
}

// AppendWithBid appends the message and updates the bid within one
// transaction. The bid update keeps the optimistic version check so a
// concurrent writer on another instance cannot be silently overwritten.
func (r *NegotiationRepository) AppendWithBid(ctx context.Context, m *negotiation.Message, b *bid.Bid) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE bids
		SET counter_amount=$1, final_price=$2, status=$3, reject_reason=$4, version=version+1, updated_at=$5, decided_at=$6
		WHERE bid_id=$7 AND version=$8
	`, b.CounterAmount, b.FinalPrice, b.Status, b.RejectReason, b.UpdatedAt, b.DecidedAt, b.BidID, b.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return bid.ErrConcurrentModification
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO negotiation_messages
		(message_id, bid_id, sender_role, kind, body, amount, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, m.MessageID, m.BidID, m.SenderRole, m.Kind, m.Body, m.Amount, m.CreatedAt).Scan(&m.ID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	b.Version++
	return nil
}

func (r *NegotiationRepository) ListByBid(ctx context.Context, bidID uuid.UUID) ([]*negotiation.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, message_id, bid_id, sender_role, kind, body, amount, created_at
		FROM negotiation_messages WHERE bid_id=$1 ORDER BY created_at ASC, id ASC
	`, bidID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []*negotiation.Message
	for rows.Next() {
		var m negotiation.Message
		if err := rows.Scan(&m.ID, &m.MessageID, &m.BidID, &m.SenderRole, &m.Kind, &m.Body, &m.Amount, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
