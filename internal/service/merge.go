package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
	"github.com/google/uuid"
)

// MergeGuestIntoUser folds the session cart into the user's cart on
// login. Each session line goes through the same dedup-and-add logic as
// AddItem, re-validated against stock under the user's identity since the
// session's holds are released first. Lines that cannot be granted in
// full are reported as conflicts, never silently dropped or capped. The
// session cart is deleted once the merge completes.
func (s *CartService) MergeGuestIntoUser(ctx context.Context, sessionID, userID string) (*domain.Cart, []domain.MergeConflict, error) {
	if sessionID == "" || userID == "" {
		return nil, nil, errors.New("both session id and user id are required")
	}

	sessionKey := domain.SessionOwner(sessionID).Key()
	sessionCart, err := s.repo.GetOpenByOwnerKey(ctx, sessionKey)
	if errors.Is(err, domain.ErrCartNotFound) {
		// nothing to merge
		cart, err := s.GetOrCreate(ctx, domain.UserOwner(userID))
		return cart, nil, err
	}
	if err != nil {
		return nil, nil, err
	}

	userCart, err := s.GetOrCreate(ctx, domain.UserOwner(userID))
	if err != nil {
		return nil, nil, err
	}

	unlock := s.lockCarts(sessionCart.ID, userCart.ID)
	defer unlock()

	// reload both under the lock; GetOrCreate may have raced
	sessionCart, err = s.repo.GetByID(ctx, sessionCart.ID)
	if err != nil {
		return nil, nil, err
	}
	userCart, err = s.loadOpen(ctx, userCart.ID)
	if err != nil {
		return nil, nil, err
	}

	// the session's holds belong to the session identity; free them before
	// re-reserving under the user
	for i := range sessionCart.Items {
		s.releaseLine(ctx, &sessionCart.Items[i])
	}

	var conflicts []domain.MergeConflict
	userRef := userCart.OwnerKey

	for _, line := range sessionCart.Items {
		granted, err := s.mergeLine(ctx, userCart, line, userRef)
		if err != nil {
			return nil, nil, fmt.Errorf("merge item %s: %w", line.ID, err)
		}
		if granted < line.Quantity {
			conflicts = append(conflicts, domain.MergeConflict{
				ProductID:   line.ProductID,
				VariationID: line.VariationID,
				Attributes:  line.Attributes,
				Requested:   line.Quantity,
				Granted:     granted,
			})
		}
	}

	if err := s.persist(ctx, userCart); err != nil {
		return nil, nil, err
	}

	if err := s.repo.Delete(ctx, sessionCart.ID); err != nil &&
		!errors.Is(err, domain.ErrCartNotFound) {
		s.log.Warn("failed to delete session cart after merge",
			"cart_id", sessionCart.ID, "error", err)
	}
	s.invalidateCache(sessionKey)

	return userCart, conflicts, nil
}

// mergeLine moves one session line into the user cart, granting as much
// of the requested quantity as stock allows. Returns the granted count.
func (s *CartService) mergeLine(ctx context.Context, userCart *domain.Cart, line domain.CartItem, userRef string) (int, error) {
	want := line.Quantity
	key := line.DedupKey()

	if existing := userCart.FindByDedupKey(key); existing != nil {
		granted, err := s.growLineUpTo(ctx, existing, want, userRef)
		if err != nil {
			return 0, err
		}
		existing.Quantity += granted
		return granted, nil
	}

	granted, reservationID, err := s.reserveUpTo(ctx, line.ProductID, line.VariationID, want, userRef)
	if err != nil {
		return 0, err
	}
	if granted == 0 {
		return 0, nil
	}

	item := line
	item.ID = uuid.New().String()
	item.Quantity = granted
	item.ReservationID = reservationID
	userCart.Items = append(userCart.Items, item)
	return granted, nil
}

// growLineUpTo grows an existing line's hold by up to want units.
func (s *CartService) growLineUpTo(ctx context.Context, line *domain.CartItem, want int, ownerRef string) (int, error) {
	err := s.growLine(ctx, line, want, ownerRef)
	if err == nil {
		return want, nil
	}
	if !errors.Is(err, domain.ErrInsufficientStock) {
		return 0, err
	}

	avail, err := s.authority.CheckAvailable(ctx, line.ProductID, line.VariationID)
	if err != nil {
		return 0, err
	}
	if avail <= 0 {
		return 0, nil
	}
	if avail > want {
		avail = want
	}
	if err := s.growLine(ctx, line, avail, ownerRef); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			return 0, nil
		}
		return 0, err
	}
	return avail, nil
}

// reserveUpTo reserves up to want units, settling for what is achievable.
func (s *CartService) reserveUpTo(ctx context.Context, productID, variationID string, want int, ownerRef string) (int, string, error) {
	res, err := s.authority.Reserve(ctx, productID, variationID, want, ownerRef, s.ttl)
	if err == nil {
		return want, res.ID, nil
	}
	if !errors.Is(err, domain.ErrInsufficientStock) {
		return 0, "", err
	}

	avail, err := s.authority.CheckAvailable(ctx, productID, variationID)
	if err != nil {
		return 0, "", err
	}
	if avail <= 0 {
		return 0, "", nil
	}
	if avail > want {
		avail = want
	}
	res, err = s.authority.Reserve(ctx, productID, variationID, avail, ownerRef, s.ttl)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			return 0, "", nil
		}
		return 0, "", err
	}
	return avail, res.ID, nil
}
