package load

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("load not found")

// Status reflects the posting workflow, owned outside the negotiation core.
type Status string

const (
	StatusPosted   Status = "POSTED"
	StatusAssigned Status = "ASSIGNED"
)

// Load is the reference record a negotiation runs against. Pricing fields
// are read-only inputs here; they are set by the pricing/posting workflow.
type Load struct {
	ID                int64      `json:"id"`
	LoadID            uuid.UUID  `json:"loadId"`
	Origin            string     `json:"origin"`
	Destination       string     `json:"destination"`
	DistanceKm        float64    `json:"distanceKm"`
	WeightTons        float64    `json:"weightTons"`
	LoadType          string     `json:"loadType"`
	Region            string     `json:"region"`
	RequiredTruckType string     `json:"requiredTruckType"`
	AdminFinalPrice   *float64   `json:"adminFinalPrice,omitempty"`
	FinalPrice        *float64   `json:"finalPrice,omitempty"`
	Status            Status     `json:"status"`
	AssignedCarrierID *uuid.UUID `json:"assignedCarrierId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}
