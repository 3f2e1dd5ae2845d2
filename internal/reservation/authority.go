package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
)

const (
	// MaxTTL bounds how long a single reservation may hold stock. Longer
	// holds starve inventory and are rejected outright.
	MaxTTL = time.Hour

	// DefaultTTL is used when callers pass a zero ttl.
	DefaultTTL = 5 * time.Minute
)

var (
	ErrInvalidQuantity = errors.New("reservation quantity must be positive")
	ErrInvalidTTL      = errors.New("reservation ttl must be positive and at most the maximum")
	ErrNotAdjustable   = errors.New("reservation is not adjustable in its current state")
)

// Authority holds short-lived claims on inventory units. It is the only
// component allowed to assert how many units of a variant are claimed;
// all mutation of available stock goes through its serialized per-product
// path.
type Authority interface {
	// CheckAvailable returns current available stock: authoritative stock
	// minus the sum of active (pending + confirmed) reservations.
	CheckAvailable(ctx context.Context, productID, variationID string) (int, error)

	// Reserve atomically creates a PENDING claim for qty units. The check
	// and the claim happen inside one per-product critical section, so two
	// concurrent callers can never both win the last unit. A zero ttl means
	// DefaultTTL; a negative ttl or one above MaxTTL fails with
	// ErrInvalidTTL.
	Reserve(ctx context.Context, productID, variationID string, qty int, ownerRef string, ttl time.Duration) (*domain.StockReservation, error)

	// Adjust grows or shrinks an existing PENDING reservation by delta
	// units. Growth is validated against available stock; the expiry is
	// not extended. The resulting quantity must stay positive.
	Adjust(ctx context.Context, reservationID string, delta int) error

	// Release frees a claim. Idempotent: releasing an already released or
	// expired reservation is a no-op success.
	Release(ctx context.Context, reservationID string) error

	// Confirm locks in a claim for checkout. Fails with
	// domain.ErrReservationExpired when the TTL elapsed and with
	// domain.ErrReservationReleased when the claim was given up, so
	// callers can tell the two apart.
	Confirm(ctx context.Context, reservationID string) error

	// Get returns a copy of the reservation for inspection.
	Get(ctx context.Context, reservationID string) (*domain.StockReservation, error)
}
