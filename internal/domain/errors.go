package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientStock means a reservation was denied; the caller can
	// recover by reducing quantity.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrReservationExpired means the hold lapsed; re-reserve and retry.
	ErrReservationExpired = errors.New("reservation has expired")

	// ErrReservationReleased is distinct from expired so callers can tell
	// "this hold was given up" from "you were too slow".
	ErrReservationReleased = errors.New("reservation was released")

	ErrReservationNotFound = errors.New("reservation not found")

	// ErrCartConverted is fatal for the cart: a converted cart is immutable.
	ErrCartConverted = errors.New("cart already converted to order")

	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
	ErrEmptyCart    = errors.New("cart is empty")

	// ErrStaleVersion means the local snapshot lost a version race; the
	// holder must refetch and re-apply its intent.
	ErrStaleVersion = errors.New("stale snapshot version")

	// ErrMutationInFlight means another mutation on the same cart line has
	// not completed yet.
	ErrMutationInFlight = errors.New("mutation already in flight for this item")
)

// MergeConflict reports one line that could not be merged at its full
// requested quantity. Granted may be zero when the line was dropped.
type MergeConflict struct {
	ProductID   string      `json:"product_id"`
	VariationID string      `json:"variation_id,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
	Requested   int         `json:"requested"`
	Granted     int         `json:"granted"`
}

func (c MergeConflict) String() string {
	return fmt.Sprintf("product %s/%s: requested %d, granted %d",
		c.ProductID, c.VariationID, c.Requested, c.Granted)
}
