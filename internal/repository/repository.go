package repository

import (
	"context"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
)

// CartRepository is durable storage for carts. The consumer (the cart
// service) defines the shape; Mongo and memory implementations satisfy it.
//
// Carts are written whole: the dedup/reservation logic lives in the
// service layer, which holds a per-cart lock while it mutates, so partial
// item-array updates buy nothing here.
type CartRepository interface {
	// GetOpenByOwnerKey returns the single OPEN cart for an owner key.
	GetOpenByOwnerKey(ctx context.Context, ownerKey string) (*domain.Cart, error)
	GetByID(ctx context.Context, cartID string) (*domain.Cart, error)
	Upsert(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, cartID string) error
}
