package reservation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/catalog"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
	"github.com/abhijeets54/ankkorwoo-sub001/pkg/logger"
)

// unboundedAvailable stands in for "no tracked count" on backorder
// variants, which may always be reserved.
const unboundedAvailable = 1 << 30

// DefaultRefreshMaxAge is how long a fetched authoritative count is
// trusted before re-asking the upstream source.
const DefaultRefreshMaxAge = 30 * time.Second

// productState serializes all reservation activity for one
// (productID, variationID) key. Held quantity is derived from the live
// reservations rather than kept as a counter, so it cannot drift.
type productState struct {
	mu            sync.Mutex
	fetched       bool
	fetchedAt     time.Time
	authoritative int
	backorder     bool
	reservations  map[string]*domain.StockReservation
}

// MemoryAuthority is the in-process reservation authority. A single
// logical authority is assumed; per-product mutexes serialize the
// check-then-reserve path.
type MemoryAuthority struct {
	source catalog.StockSource
	log    *logger.Logger

	// RefreshMaxAge bounds how stale a cached authoritative count may be.
	// Zero means every call re-reads the upstream source.
	RefreshMaxAge time.Duration

	mu     sync.Mutex
	states map[string]*productState
	index  map[string]string // reservationID -> product key
}

func NewMemoryAuthority(source catalog.StockSource, log *logger.Logger) *MemoryAuthority {
	return &MemoryAuthority{
		source:        source,
		log:           log,
		RefreshMaxAge: DefaultRefreshMaxAge,
		states:        make(map[string]*productState),
		index:         make(map[string]string),
	}
}

func productKey(productID, variationID string) string {
	return productID + "|" + variationID
}

func (a *MemoryAuthority) state(key string) *productState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.states[key]
	if !ok {
		st = &productState{reservations: make(map[string]*domain.StockReservation)}
		a.states[key] = st
	}
	return st
}

// refreshLocked re-reads authoritative stock from the upstream source when
// the cached value is stale. Caller holds st.mu. A transient source error
// after a successful fetch falls back to the last known value.
func (a *MemoryAuthority) refreshLocked(ctx context.Context, st *productState, productID, variationID string) error {
	if st.fetched && a.RefreshMaxAge > 0 && time.Since(st.fetchedAt) < a.RefreshMaxAge {
		return nil
	}

	stock, err := a.source.GetAuthoritativeStock(ctx, productID, variationID)
	if err != nil {
		if st.fetched {
			a.log.Warn("stock source unavailable, using last known count",
				"product_id", productID, "variation_id", variationID, "error", err)
			return nil
		}
		return fmt.Errorf("fetch authoritative stock: %w", err)
	}

	st.backorder = stock.Status == domain.StockOnBackorder && stock.Quantity == nil
	if stock.Quantity != nil {
		st.authoritative = *stock.Quantity
	} else {
		st.authoritative = 0
	}
	if stock.Status == domain.StockOutOfStock {
		st.authoritative = 0
	}
	st.fetched = true
	st.fetchedAt = time.Now()
	return nil
}

// heldLocked sums active claims. Caller holds st.mu.
func heldLocked(st *productState, now time.Time) int {
	held := 0
	for _, r := range st.reservations {
		if r.Active(now) {
			held += r.Quantity
		}
	}
	return held
}

func availableLocked(st *productState, now time.Time) int {
	if st.backorder {
		return unboundedAvailable
	}
	avail := st.authoritative - heldLocked(st, now)
	if avail < 0 {
		return 0
	}
	return avail
}

func (a *MemoryAuthority) CheckAvailable(ctx context.Context, productID, variationID string) (int, error) {
	st := a.state(productKey(productID, variationID))
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := a.refreshLocked(ctx, st, productID, variationID); err != nil {
		return 0, err
	}
	return availableLocked(st, time.Now()), nil
}

func (a *MemoryAuthority) Reserve(ctx context.Context, productID, variationID string, qty int, ownerRef string, ttl time.Duration) (*domain.StockReservation, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if ttl < 0 || ttl > MaxTTL {
		return nil, ErrInvalidTTL
	}

	key := productKey(productID, variationID)
	st := a.state(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := a.refreshLocked(ctx, st, productID, variationID); err != nil {
		return nil, err
	}

	now := time.Now()
	if availableLocked(st, now) < qty {
		return nil, domain.ErrInsufficientStock
	}

	res := &domain.StockReservation{
		ID:          uuid.New().String(),
		ProductID:   productID,
		VariationID: variationID,
		Quantity:    qty,
		OwnerRef:    ownerRef,
		Status:      domain.ReservationPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	st.reservations[res.ID] = res

	a.mu.Lock()
	a.index[res.ID] = key
	a.mu.Unlock()

	out := *res
	return &out, nil
}

func (a *MemoryAuthority) lookup(reservationID string) (*productState, bool) {
	a.mu.Lock()
	key, ok := a.index[reservationID]
	if !ok {
		a.mu.Unlock()
		return nil, false
	}
	st := a.states[key]
	a.mu.Unlock()
	return st, st != nil
}

func (a *MemoryAuthority) Adjust(_ context.Context, reservationID string, delta int) error {
	if delta == 0 {
		return nil
	}

	st, ok := a.lookup(reservationID)
	if !ok {
		return domain.ErrReservationNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	res := st.reservations[reservationID]
	if res == nil {
		return domain.ErrReservationNotFound
	}

	now := time.Now()
	switch {
	case res.Status == domain.ReservationReleased:
		return domain.ErrReservationReleased
	case res.Status == domain.ReservationExpired, res.Status == domain.ReservationPending && res.IsExpired(now):
		res.Status = domain.ReservationExpired
		return domain.ErrReservationExpired
	case res.Status != domain.ReservationPending:
		return ErrNotAdjustable
	}

	if res.Quantity+delta <= 0 {
		return ErrInvalidQuantity
	}
	if delta > 0 && availableLocked(st, now) < delta {
		return domain.ErrInsufficientStock
	}

	res.Quantity += delta
	return nil
}

func (a *MemoryAuthority) Release(_ context.Context, reservationID string) error {
	st, ok := a.lookup(reservationID)
	if !ok {
		return domain.ErrReservationNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	res := st.reservations[reservationID]
	if res == nil {
		return domain.ErrReservationNotFound
	}

	switch res.Status {
	case domain.ReservationReleased, domain.ReservationExpired:
		return nil
	case domain.ReservationPending:
		if res.IsExpired(time.Now()) {
			res.Status = domain.ReservationExpired
			return nil
		}
		res.Status = domain.ReservationReleased
	case domain.ReservationConfirmed:
		res.Status = domain.ReservationReleased
	}
	return nil
}

func (a *MemoryAuthority) Confirm(_ context.Context, reservationID string) error {
	st, ok := a.lookup(reservationID)
	if !ok {
		return domain.ErrReservationNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	res := st.reservations[reservationID]
	if res == nil {
		return domain.ErrReservationNotFound
	}

	switch res.Status {
	case domain.ReservationConfirmed:
		return nil
	case domain.ReservationReleased:
		return domain.ErrReservationReleased
	case domain.ReservationExpired:
		return domain.ErrReservationExpired
	}

	if res.IsExpired(time.Now()) {
		res.Status = domain.ReservationExpired
		return domain.ErrReservationExpired
	}

	res.Status = domain.ReservationConfirmed
	return nil
}

func (a *MemoryAuthority) Get(_ context.Context, reservationID string) (*domain.StockReservation, error) {
	st, ok := a.lookup(reservationID)
	if !ok {
		return nil, domain.ErrReservationNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	res := st.reservations[reservationID]
	if res == nil {
		return nil, domain.ErrReservationNotFound
	}
	out := *res
	return &out, nil
}

// SweepExpired transitions PENDING reservations past their expiry to
// EXPIRED, freeing their quantity. It takes the same per-product lock as
// the reserve path.
func (a *MemoryAuthority) SweepExpired() {
	a.mu.Lock()
	states := make([]*productState, 0, len(a.states))
	for _, st := range a.states {
		states = append(states, st)
	}
	a.mu.Unlock()

	now := time.Now()
	swept := 0
	for _, st := range states {
		st.mu.Lock()
		for _, res := range st.reservations {
			if res.Status == domain.ReservationPending && res.IsExpired(now) {
				res.Status = domain.ReservationExpired
				swept++
			}
		}
		st.mu.Unlock()
	}

	if swept > 0 {
		a.log.Info("expired reservations swept", "count", swept)
	}
}

// RunSweeper runs SweepExpired on a fixed interval until ctx is done.
// Failures inside a sweep are logged and retried on the next tick.
func (a *MemoryAuthority) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.SweepExpired()
		case <-ctx.Done():
			return
		}
	}
}
