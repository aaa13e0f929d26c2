package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loadboard/loadboard/internal/domain/load"
)

// LoadRepository implements load.Repository over the load service's table.
// The negotiation core only reads loads and flips assignment.
type LoadRepository struct {
	pool *pgxpool.Pool
}

func NewLoadRepository(pool *pgxpool.Pool) *LoadRepository {
	return &LoadRepository{pool: pool}
}

func (r *LoadRepository) GetByID(ctx context.Context, loadID uuid.UUID) (*load.Load, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, load_id, origin, destination, distance_km, weight_tons, load_type, region, required_truck_type, admin_final_price, final_price, status, assigned_carrier_id, created_at
		FROM loads WHERE load_id=$1
	`, loadID)
	var l load.Load
	if err := row.Scan(&l.ID, &l.LoadID, &l.Origin, &l.Destination, &l.DistanceKm, &l.WeightTons, &l.LoadType, &l.Region, &l.RequiredTruckType, &l.AdminFinalPrice, &l.FinalPrice, &l.Status, &l.AssignedCarrierID, &l.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *LoadRepository) AssignCarrier(ctx context.Context, loadID, carrierID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE loads SET status=$1, assigned_carrier_id=$2 WHERE load_id=$3
	`, load.StatusAssigned, carrierID, loadID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return load.ErrNotFound
	}
	return nil
}
