package repository

import (
	"context"
	"sync"
	"time"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
)

// MemoryRepository keeps carts in process memory. It backs tests and
// local runs without a Mongo instance.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart // cartID -> cart
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{carts: make(map[string]*domain.Cart)}
}

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = make([]domain.CartItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}

func (m *MemoryRepository) GetOpenByOwnerKey(_ context.Context, ownerKey string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cart := range m.carts {
		if cart.OwnerKey == ownerKey && cart.Status == domain.CartStatusOpen {
			return cloneCart(cart), nil
		}
	}
	return nil, domain.ErrCartNotFound
}

func (m *MemoryRepository) GetByID(_ context.Context, cartID string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cart, ok := m.carts[cartID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (m *MemoryRepository) Upsert(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	m.carts[cart.ID] = cloneCart(cart)
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[cartID]; !ok {
		return domain.ErrCartNotFound
	}
	delete(m.carts, cartID)
	return nil
}
