package clientcart

import (
	"context"
	"errors"
	"time"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/service"
	"github.com/abhijeets54/ankkorwoo-sub001/pkg/logger"
)

// CartServer is the slice of the cart service the client cache talks to.
type CartServer interface {
	AddItem(ctx context.Context, cartID string, input service.ItemInput) (*domain.CartItem, error)
	UpdateQuantity(ctx context.Context, cartID, itemID string, newQuantity int) error
	RemoveItem(ctx context.Context, cartID, itemID string) error
}

// Cache is the optimistic, locally persisted mirror of the server cart.
// Every mutation produces a new snapshot with an incremented version and
// is written through before the server call; a confirmed server failure
// rolls back just that mutation's edit, so the cache never diverges from
// a known failure while lines acknowledged in the meantime survive.
// Mutations are serialized per item, not globally.
type Cache struct {
	server CartServer
	store  SnapshotStore
	log    *logger.Logger

	mu       chan struct{} // guards snap + inflight; channel so waiters stay cancellable
	snap     *domain.ClientCartSnapshot
	inflight map[string]struct{} // dedup key of lines with a server call in flight
}

func NewCache(server CartServer, store SnapshotStore, log *logger.Logger) *Cache {
	c := &Cache{
		server:   server,
		store:    store,
		log:      log,
		mu:       make(chan struct{}, 1),
		snap:     emptySnapshot(),
		inflight: make(map[string]struct{}),
	}
	return c
}

func emptySnapshot() *domain.ClientCartSnapshot {
	return &domain.ClientCartSnapshot{SchemaVersion: domain.SnapshotSchemaVersion}
}

func (c *Cache) lock() {
	c.mu <- struct{}{}
}

func (c *Cache) unlock() {
	<-c.mu
}

// Load restores the persisted snapshot. A schema mismatch or a missing
// snapshot yields a fresh empty one; the caller is expected to reconcile
// from the server afterwards.
func (c *Cache) Load(ctx context.Context) error {
	snap, err := c.store.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoSnapshot):
		snap = emptySnapshot()
	case errors.Is(err, ErrSchemaMismatch):
		c.log.Warn("discarding snapshot with stale schema")
		if err := c.store.Clear(ctx); err != nil {
			return err
		}
		snap = emptySnapshot()
	default:
		return err
	}

	c.lock()
	c.snap = snap
	c.unlock()
	return nil
}

// Snapshot returns a copy of the current local state.
func (c *Cache) Snapshot() *domain.ClientCartSnapshot {
	c.lock()
	defer c.unlock()
	return c.snap.Clone()
}

// AddLocally applies the item optimistically, persists, then awaits the
// server. On any server failure the optimistic edit is rolled back and
// the typed error surfaced; the caller decides what to tell the user.
func (c *Cache) AddLocally(ctx context.Context, cartID string, input service.ItemInput) (*domain.CartItem, error) {
	key := domain.DedupKey(input.ProductID, input.VariationID, input.Attributes)

	c.lock()
	if _, busy := c.inflight[key]; busy {
		c.unlock()
		return nil, domain.ErrMutationInFlight
	}
	c.inflight[key] = struct{}{}

	var prevLine *domain.CartItem
	if existing := findByDedupKey(c.snap, key); existing != nil {
		cp := *existing
		prevLine = &cp
	}
	next := applyAdd(c.snap, input)
	if err := c.store.Save(ctx, next); err != nil {
		delete(c.inflight, key)
		c.unlock()
		return nil, err
	}
	c.snap = next
	c.unlock()

	item, err := c.server.AddItem(ctx, cartID, input)

	c.lock()
	defer c.unlock()
	delete(c.inflight, key)

	if err != nil {
		c.rollbackLine(key, prevLine)
		return nil, err
	}

	// carry the server-issued ids into the local line
	c.snap = withServerItem(c.snap, key, item)
	c.persistLocked(c.snap)
	return item, nil
}

// UpdateLocally optimistically sets a line's quantity and awaits the
// server, rolling back on failure.
func (c *Cache) UpdateLocally(ctx context.Context, cartID, itemID string, newQuantity int) error {
	return c.mutateLine(ctx, itemID, func(snap *domain.ClientCartSnapshot) *domain.ClientCartSnapshot {
		return applyQuantity(snap, itemID, newQuantity)
	}, func() error {
		return c.server.UpdateQuantity(ctx, cartID, itemID, newQuantity)
	})
}

// RemoveLocally optimistically drops a line and awaits the server,
// rolling back on failure.
func (c *Cache) RemoveLocally(ctx context.Context, cartID, itemID string) error {
	return c.mutateLine(ctx, itemID, func(snap *domain.ClientCartSnapshot) *domain.ClientCartSnapshot {
		return applyRemove(snap, itemID)
	}, func() error {
		return c.server.RemoveItem(ctx, cartID, itemID)
	})
}

func (c *Cache) mutateLine(ctx context.Context, itemID string, reduce func(*domain.ClientCartSnapshot) *domain.ClientCartSnapshot, call func() error) error {
	c.lock()
	line := findItem(c.snap, itemID)
	if line == nil {
		c.unlock()
		return domain.ErrItemNotFound
	}
	key := line.DedupKey()
	if _, busy := c.inflight[key]; busy {
		c.unlock()
		return domain.ErrMutationInFlight
	}
	c.inflight[key] = struct{}{}

	prevLine := *line
	next := reduce(c.snap)
	if err := c.store.Save(ctx, next); err != nil {
		delete(c.inflight, key)
		c.unlock()
		return err
	}
	c.snap = next
	c.unlock()

	err := call()

	c.lock()
	defer c.unlock()
	delete(c.inflight, key)

	if err != nil {
		c.rollbackLine(key, &prevLine)
		return err
	}
	return nil
}

// Reconcile replaces local state wholesale when the server cart is newer.
// A stale server view is a no-op: last writer wins at version
// granularity, and the stale side must refetch rather than merge.
func (c *Cache) Reconcile(ctx context.Context, serverCart *domain.Cart) bool {
	c.lock()
	defer c.unlock()

	if serverCart.Version <= c.snap.Version {
		return false
	}

	next := &domain.ClientCartSnapshot{
		SchemaVersion: domain.SnapshotSchemaVersion,
		CartID:        serverCart.ID,
		Version:       serverCart.Version,
		LastSyncedAt:  time.Now(),
	}
	next.Items = make([]domain.CartItem, len(serverCart.Items))
	copy(next.Items, serverCart.Items)

	if err := c.store.Save(ctx, next); err != nil {
		c.log.Error("failed to persist reconciled snapshot", "error", err)
		return false
	}
	c.snap = next
	return true
}

// rollbackLine undoes only the failing mutation's own edit, against the
// current snapshot. Mutations on other dedup keys may have been
// acknowledged while this one was in flight; their lines must survive.
// prevLine nil means the line did not exist before the mutation.
func (c *Cache) rollbackLine(key string, prevLine *domain.CartItem) {
	next := c.snap.Clone()
	next.Version++

	restored := false
	for i := range next.Items {
		if next.Items[i].DedupKey() != key {
			continue
		}
		if prevLine == nil {
			next.Items = append(next.Items[:i], next.Items[i+1:]...)
		} else {
			next.Items[i] = *prevLine
		}
		restored = true
		break
	}
	if !restored && prevLine != nil {
		next.Items = append(next.Items, *prevLine)
	}

	c.snap = next
	c.persistLocked(next)
}

func (c *Cache) persistLocked(snap *domain.ClientCartSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.store.Save(ctx, snap); err != nil {
		c.log.Error("failed to persist snapshot", "error", err)
	}
}
