package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/cache"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/repository"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/reservation"
	"github.com/abhijeets54/ankkorwoo-sub001/pkg/logger"
)

const cartLockStripes = 64

// ItemInput is the caller's request to put units of a purchasable
// configuration into a cart. UnitPrice is snapshotted at add time.
type ItemInput struct {
	ProductID   string
	VariationID string
	Quantity    int
	UnitPrice   int64
	Currency    string
	Attributes  []domain.Attribute
}

func (in ItemInput) dedupKey() string {
	return domain.DedupKey(in.ProductID, in.VariationID, in.Attributes)
}

// CartService orchestrates repository reads/writes and keeps every cart
// line backed by a live stock reservation. Item-level operations within
// one cart are linearized by a striped per-cart lock.
type CartService struct {
	repo      repository.CartRepository
	cache     cache.CartCache
	authority reservation.Authority
	log       *logger.Logger
	ttl       time.Duration

	sfg   singleflight.Group // prevents cache stampede on reads
	locks [cartLockStripes]sync.Mutex
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, authority reservation.Authority, log *logger.Logger, reservationTTL time.Duration) *CartService {
	if reservationTTL == 0 {
		reservationTTL = reservation.DefaultTTL
	}
	return &CartService{
		repo:      repo,
		cache:     c,
		authority: authority,
		log:       log,
		ttl:       reservationTTL,
	}
}

func (s *CartService) lockCart(cartID string) func() {
	h := fnv.New32a()
	h.Write([]byte(cartID))
	idx := h.Sum32() % cartLockStripes
	s.locks[idx].Lock()
	return s.locks[idx].Unlock
}

// lockCarts acquires stripes for two carts in a stable order so
// concurrent merges cannot deadlock.
func (s *CartService) lockCarts(a, b string) func() {
	ha := fnv.New32a()
	ha.Write([]byte(a))
	hb := fnv.New32a()
	hb.Write([]byte(b))
	ia := ha.Sum32() % cartLockStripes
	ib := hb.Sum32() % cartLockStripes

	if ia == ib {
		s.locks[ia].Lock()
		return s.locks[ia].Unlock
	}
	if ia > ib {
		ia, ib = ib, ia
	}
	s.locks[ia].Lock()
	s.locks[ib].Lock()
	return func() {
		s.locks[ib].Unlock()
		s.locks[ia].Unlock()
	}
}

// GetOrCreate returns the single OPEN cart for the owner, creating it on
// first use. It never merges a session cart into a user cart; merge is an
// explicit operation.
func (s *CartService) GetOrCreate(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	key := owner.Key()
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, key)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cart cache get failed", "owner", key, "error", err)
		}

		cart, err = s.repo.GetOpenByOwnerKey(ctx, key)
		if errors.Is(err, domain.ErrCartNotFound) {
			cart = &domain.Cart{
				ID:       uuid.New().String(),
				Owner:    owner,
				OwnerKey: key,
				Status:   domain.CartStatusOpen,
			}
			if err := s.repo.Upsert(ctx, cart); err != nil {
				return nil, fmt.Errorf("create cart: %w", err)
			}
		} else if err != nil {
			return nil, err
		}

		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(cacheCtx, key, cart); err != nil {
				s.log.Warn("cart cache set failed", "owner", key, "error", err)
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// CartByID fetches a cart regardless of status.
func (s *CartService) CartByID(ctx context.Context, cartID string) (*domain.Cart, error) {
	return s.repo.GetByID(ctx, cartID)
}

func (s *CartService) loadOpen(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, err := s.repo.GetByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !cart.IsOpen() {
		return nil, domain.ErrCartConverted
	}
	return cart, nil
}

func (s *CartService) persist(ctx context.Context, cart *domain.Cart) error {
	cart.Version++
	if err := s.repo.Upsert(ctx, cart); err != nil {
		cart.Version--
		return err
	}
	s.invalidateCache(cart.OwnerKey)
	return nil
}

// AddItem puts quantity units of the input's configuration into the cart.
// A line matching the dedup tuple is grown in place: only the additional
// quantity is validated against stock, so a failure cannot lose the stock
// already held for the existing quantity.
func (s *CartService) AddItem(ctx context.Context, cartID string, input ItemInput) (*domain.CartItem, error) {
	if input.Quantity <= 0 {
		return nil, reservation.ErrInvalidQuantity
	}

	unlock := s.lockCart(cartID)
	defer unlock()

	cart, err := s.loadOpen(ctx, cartID)
	if err != nil {
		return nil, err
	}

	ownerRef := cart.OwnerKey
	if existing := cart.FindByDedupKey(input.dedupKey()); existing != nil {
		prevResID := existing.ReservationID
		if err := s.growLine(ctx, existing, input.Quantity, ownerRef); err != nil {
			return nil, err
		}
		existing.Quantity += input.Quantity
		if err := s.persist(ctx, cart); err != nil {
			s.ungrowLine(ctx, existing, prevResID, input.Quantity)
			return nil, err
		}
		out := *existing
		return &out, nil
	}

	res, err := s.authority.Reserve(ctx, input.ProductID, input.VariationID, input.Quantity, ownerRef, s.ttl)
	if err != nil {
		return nil, err
	}

	item := domain.CartItem{
		ID:            uuid.New().String(),
		ProductID:     input.ProductID,
		VariationID:   input.VariationID,
		Quantity:      input.Quantity,
		UnitPrice:     input.UnitPrice,
		Currency:      input.Currency,
		Attributes:    input.Attributes,
		ReservationID: res.ID,
		AddedAt:       time.Now(),
	}
	cart.Items = append(cart.Items, item)

	if err := s.persist(ctx, cart); err != nil {
		// the row never landed; don't leave the hold dangling
		if relErr := s.authority.Release(ctx, res.ID); relErr != nil {
			s.log.Error("failed to release reservation after persist error",
				"reservation_id", res.ID, "error", relErr)
		}
		return nil, err
	}
	return &item, nil
}

// growLine secures stock for delta additional units on an existing line.
// An active reservation is adjusted; a lapsed one is replaced by a fresh
// hold for the whole new total.
func (s *CartService) growLine(ctx context.Context, line *domain.CartItem, delta int, ownerRef string) error {
	if line.ReservationID != "" {
		err := s.authority.Adjust(ctx, line.ReservationID, delta)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrInsufficientStock):
			return err
		case errors.Is(err, domain.ErrReservationExpired),
			errors.Is(err, domain.ErrReservationReleased),
			errors.Is(err, domain.ErrReservationNotFound):
			// fall through to re-reserve the full total
		default:
			return err
		}
	}

	res, err := s.authority.Reserve(ctx, line.ProductID, line.VariationID, line.Quantity+delta, ownerRef, s.ttl)
	if err != nil {
		return err
	}
	line.ReservationID = res.ID
	return nil
}

// ungrowLine undoes a growLine whose cart write failed, so the hold
// matches the persisted quantity again. Best effort: a hold the
// authority cannot shrink lapses at TTL anyway.
func (s *CartService) ungrowLine(ctx context.Context, line *domain.CartItem, prevResID string, delta int) {
	if line.ReservationID != prevResID {
		// growLine replaced a lapsed hold; the persisted row still
		// carries the old reservation id, so drop the replacement
		if err := s.authority.Release(ctx, line.ReservationID); err != nil {
			s.log.Error("failed to release replacement reservation after persist error",
				"reservation_id", line.ReservationID, "error", err)
		}
		line.ReservationID = prevResID
		return
	}
	if err := s.authority.Adjust(ctx, line.ReservationID, -delta); err != nil {
		s.log.Error("failed to shrink reservation after persist error",
			"reservation_id", line.ReservationID, "error", err)
	}
}

// UpdateQuantity sets a line to newQuantity. Growth reserves only the
// delta and fails whole leaving the prior quantity untouched; shrink
// frees the excess.
func (s *CartService) UpdateQuantity(ctx context.Context, cartID, itemID string, newQuantity int) error {
	if newQuantity <= 0 {
		return reservation.ErrInvalidQuantity
	}

	unlock := s.lockCart(cartID)
	defer unlock()

	cart, err := s.loadOpen(ctx, cartID)
	if err != nil {
		return err
	}

	line := cart.FindItem(itemID)
	if line == nil {
		return domain.ErrItemNotFound
	}

	delta := newQuantity - line.Quantity
	if delta == 0 {
		return nil
	}

	prevResID := line.ReservationID
	if delta > 0 {
		if err := s.growLine(ctx, line, delta, cart.OwnerKey); err != nil {
			return err
		}
	} else if line.ReservationID != "" {
		if err := s.authority.Adjust(ctx, line.ReservationID, delta); err != nil {
			switch {
			case errors.Is(err, domain.ErrReservationExpired),
				errors.Is(err, domain.ErrReservationReleased),
				errors.Is(err, domain.ErrReservationNotFound):
				// lapsed hold: re-reserve at the reduced quantity
				res, resErr := s.authority.Reserve(ctx, line.ProductID, line.VariationID, newQuantity, cart.OwnerKey, s.ttl)
				if resErr != nil {
					return resErr
				}
				line.ReservationID = res.ID
			default:
				return err
			}
		}
	}

	line.Quantity = newQuantity
	if err := s.persist(ctx, cart); err != nil {
		if delta > 0 {
			s.ungrowLine(ctx, line, prevResID, delta)
		}
		return err
	}
	return nil
}

// RemoveItem releases the line's reservation, then deletes the line.
func (s *CartService) RemoveItem(ctx context.Context, cartID, itemID string) error {
	unlock := s.lockCart(cartID)
	defer unlock()

	cart, err := s.loadOpen(ctx, cartID)
	if err != nil {
		return err
	}

	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.ErrItemNotFound
	}

	s.releaseLine(ctx, &cart.Items[idx])
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	return s.persist(ctx, cart)
}

// Clear releases every reservation and empties the cart. The cart itself
// stays OPEN.
func (s *CartService) Clear(ctx context.Context, cartID string) error {
	unlock := s.lockCart(cartID)
	defer unlock()

	cart, err := s.loadOpen(ctx, cartID)
	if err != nil {
		return err
	}

	for i := range cart.Items {
		s.releaseLine(ctx, &cart.Items[i])
	}
	cart.Items = nil
	return s.persist(ctx, cart)
}

func (s *CartService) releaseLine(ctx context.Context, line *domain.CartItem) {
	if line.ReservationID == "" {
		return
	}
	if err := s.authority.Release(ctx, line.ReservationID); err != nil &&
		!errors.Is(err, domain.ErrReservationNotFound) {
		s.log.Warn("failed to release reservation",
			"reservation_id", line.ReservationID, "error", err)
	}
}

// ConvertToOrder confirms every line's reservation and freezes the cart.
// Any confirm failure aborts the conversion; reservations confirmed so
// far stay CONFIRMED (they still hold stock correctly) and the cart
// remains OPEN for the caller to fix and retry.
func (s *CartService) ConvertToOrder(ctx context.Context, cartID, orderRef string) error {
	unlock := s.lockCart(cartID)
	defer unlock()

	cart, err := s.repo.GetByID(ctx, cartID)
	if err != nil {
		return err
	}
	if !cart.IsOpen() {
		return domain.ErrCartConverted
	}
	if len(cart.Items) == 0 {
		return domain.ErrEmptyCart
	}

	for _, line := range cart.Items {
		if line.ReservationID == "" {
			return fmt.Errorf("item %s has no reservation: %w", line.ID, domain.ErrReservationExpired)
		}
		if err := s.authority.Confirm(ctx, line.ReservationID); err != nil {
			return fmt.Errorf("confirm reservation for item %s: %w", line.ID, err)
		}
	}

	cart.Status = domain.CartStatusConverted
	cart.OrderRef = orderRef
	return s.persist(ctx, cart)
}

func (s *CartService) invalidateCache(ownerKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, ownerKey); err != nil {
		s.log.Warn("cart cache invalidate failed", "owner", ownerKey, "error", err)
	}
}
