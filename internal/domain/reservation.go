package domain

import "time"

// ReservationStatus represents the state of a stock reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationReleased  ReservationStatus = "RELEASED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// StockReservation is a time-bounded claim on a quantity of inventory for
// one owner. ExpiresAt is fixed at creation; the lifecycle only ever moves
// forward (PENDING -> CONFIRMED | RELEASED | EXPIRED).
type StockReservation struct {
	ID          string            `json:"id"`
	ProductID   string            `json:"product_id"`
	VariationID string            `json:"variation_id,omitempty"`
	Quantity    int               `json:"quantity"`
	OwnerRef    string            `json:"owner_ref"`
	Status      ReservationStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// IsExpired reports whether the TTL has elapsed, regardless of whether the
// sweeper has observed it yet.
func (r *StockReservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Active reports whether the reservation currently holds stock.
func (r *StockReservation) Active(now time.Time) bool {
	switch r.Status {
	case ReservationPending:
		return !r.IsExpired(now)
	case ReservationConfirmed:
		return true
	default:
		return false
	}
}

// StockStatus mirrors the upstream catalog's availability classification.
type StockStatus string

const (
	StockInStock     StockStatus = "IN_STOCK"
	StockOutOfStock  StockStatus = "OUT_OF_STOCK"
	StockOnBackorder StockStatus = "ON_BACKORDER"
)
