package postgres

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loadboard/loadboard/internal/domain/bid"
)

// BidRepository implements bid.Repository.
type BidRepository struct {
	pool *pgxpool.Pool
}

func NewBidRepository(pool *pgxpool.Pool) *BidRepository {
	return &BidRepository{pool: pool}
}

const bidColumns = `id, bid_id, load_id, carrier_id, amount, counter_amount, final_price, status, notes, reject_reason, version, created_at, updated_at, decided_at`

func (r *BidRepository) Create(ctx context.Context, b *bid.Bid) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO bids
		(bid_id, load_id, carrier_id, amount, counter_amount, final_price, status, notes, reject_reason, version, created_at, updated_at, decided_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id
	`, b.BidID, b.LoadID, b.CarrierID, b.Amount, b.CounterAmount, b.FinalPrice, b.Status, b.Notes, b.RejectReason, b.Version, b.CreatedAt, b.UpdatedAt, b.DecidedAt).Scan(&b.ID)
}

// Update writes the bid guarded by an optimistic version check. A stale
// write returns bid.ErrConcurrentModification.
func (r *BidRepository) Update(ctx context.Context, b *bid.Bid) error {
	tag, err := r.pool.Exec(ctx, `
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
	b.Version++
	return nil
}

func (r *BidRepository) GetByID(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE bid_id=$1`, bidID)
	return scanBid(row)
}

func (r *BidRepository) ListByLoad(ctx context.Context, loadID uuid.UUID) ([]*bid.Bid, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bidColumns+` FROM bids WHERE load_id=$1 ORDER BY created_at ASC, id ASC`, loadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBids(rows)
}

func (r *BidRepository) List(ctx context.Context, filter bid.Filter, limit, offset int) ([]*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids`
	args := []interface{}{}
	where := ""
	idx := 1
	add := func(cond string, val interface{}) {
		if where == "" {
			where = " WHERE " + cond + "$" + itoa(idx)
		} else {
			where += " AND " + cond + "$" + itoa(idx)
		}
		args = append(args, val)
		idx++
	}
	if filter.LoadID != nil {
		add("load_id=", *filter.LoadID)
	}
	if filter.CarrierID != nil {
		add("carrier_id=", *filter.CarrierID)
	}
	if filter.Status != nil {
		add("status=", *filter.Status)
	}
	query += where + " ORDER BY created_at DESC LIMIT $" + itoa(idx) + " OFFSET $" + itoa(idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBids(rows)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func collectBids(rows pgx.Rows) ([]*bid.Bid, error) {
	var bids []*bid.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func scanBid(row pgx.Row) (*bid.Bid, error) {
	var b bid.Bid
	if err := row.Scan(&b.ID, &b.BidID, &b.LoadID, &b.CarrierID, &b.Amount, &b.CounterAmount, &b.FinalPrice, &b.Status, &b.Notes, &b.RejectReason, &b.Version, &b.CreatedAt, &b.UpdatedAt, &b.DecidedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}
