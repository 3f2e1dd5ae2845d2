package catalog

import (
	"context"
	"sync"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
)

// AuthoritativeStock is the upstream commerce platform's answer for one
// product variant. Quantity is nil when the platform does not track a
// count (typically ON_BACKORDER).
type AuthoritativeStock struct {
	Status   domain.StockStatus `json:"status"`
	Quantity *int               `json:"quantity"`
}

// StockSource is the boundary to the catalog/inventory system that owns
// the product records. The reservation authority is its only consumer.
type StockSource interface {
	GetAuthoritativeStock(ctx context.Context, productID, variationID string) (AuthoritativeStock, error)
}

// StaticSource is an in-memory stock source for tests and local runs.
type StaticSource struct {
	mu     sync.RWMutex
	levels map[string]AuthoritativeStock
}

func NewStaticSource() *StaticSource {
	return &StaticSource{levels: make(map[string]AuthoritativeStock)}
}

func (s *StaticSource) SetStock(productID, variationID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := domain.StockInStock
	if quantity == 0 {
		status = domain.StockOutOfStock
	}
	q := quantity
	s.levels[productID+"|"+variationID] = AuthoritativeStock{Status: status, Quantity: &q}
}

func (s *StaticSource) SetBackorder(productID, variationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[productID+"|"+variationID] = AuthoritativeStock{Status: domain.StockOnBackorder}
}

func (s *StaticSource) GetAuthoritativeStock(_ context.Context, productID, variationID string) (AuthoritativeStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if level, ok := s.levels[productID+"|"+variationID]; ok {
		return level, nil
	}
	zero := 0
	return AuthoritativeStock{Status: domain.StockOutOfStock, Quantity: &zero}, nil
}
