package cache

import (
	"context"
	"errors"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
)

// CartCache is the server-side read cache, keyed by owner key.
type CartCache interface {
	Get(ctx context.Context, ownerKey string) (*domain.Cart, error)
	Set(ctx context.Context, ownerKey string, cart *domain.Cart) error
	Delete(ctx context.Context, ownerKey string) error
}

var ErrCacheMiss = errors.New("cache miss")
