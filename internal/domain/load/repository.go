package load

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the boundary to the load service. The negotiation core
// reads load records and signals finalization; everything else about loads
// is owned elsewhere.
type Repository interface {
	GetByID(ctx context.Context, loadID uuid.UUID) (*Load, error)
	// AssignCarrier marks the load assigned to the winning carrier after an
	// accept commits.
	AssignCarrier(ctx context.Context, loadID, carrierID uuid.UUID) error
}
