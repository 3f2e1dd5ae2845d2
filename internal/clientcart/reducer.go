package clientcart

import (
	"time"

	"github.com/google/uuid"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/service"
)

// Reducers: each takes a snapshot and returns a new one with the version
// bumped. The input snapshot is never mutated.

func applyAdd(snap *domain.ClientCartSnapshot, input service.ItemInput) *domain.ClientCartSnapshot {
	next := snap.Clone()
	next.Version++

	key := domain.DedupKey(input.ProductID, input.VariationID, input.Attributes)
	for i := range next.Items {
		if next.Items[i].DedupKey() == key {
			next.Items[i].Quantity += input.Quantity
			return next
		}
	}

	next.Items = append(next.Items, domain.CartItem{
		// provisional id, replaced once the server acknowledges
		ID:          uuid.New().String(),
		ProductID:   input.ProductID,
		VariationID: input.VariationID,
		Quantity:    input.Quantity,
		UnitPrice:   input.UnitPrice,
		Currency:    input.Currency,
		Attributes:  input.Attributes,
		AddedAt:     time.Now(),
	})
	return next
}

func applyQuantity(snap *domain.ClientCartSnapshot, itemID string, quantity int) *domain.ClientCartSnapshot {
	next := snap.Clone()
	next.Version++
	for i := range next.Items {
		if next.Items[i].ID == itemID {
			next.Items[i].Quantity = quantity
			break
		}
	}
	return next
}

func applyRemove(snap *domain.ClientCartSnapshot, itemID string) *domain.ClientCartSnapshot {
	next := snap.Clone()
	next.Version++
	for i := range next.Items {
		if next.Items[i].ID == itemID {
			next.Items = append(next.Items[:i], next.Items[i+1:]...)
			break
		}
	}
	return next
}

// withServerItem swaps the provisional line for the server's view of it.
func withServerItem(snap *domain.ClientCartSnapshot, dedupKey string, item *domain.CartItem) *domain.ClientCartSnapshot {
	next := snap.Clone()
	for i := range next.Items {
		if next.Items[i].DedupKey() == dedupKey {
			next.Items[i] = *item
			return next
		}
	}
	return next
}

func findByDedupKey(snap *domain.ClientCartSnapshot, key string) *domain.CartItem {
	for i := range snap.Items {
		if snap.Items[i].DedupKey() == key {
			return &snap.Items[i]
		}
	}
	return nil
}

func findItem(snap *domain.ClientCartSnapshot, itemID string) *domain.CartItem {
	for i := range snap.Items {
		if snap.Items[i].ID == itemID {
			return &snap.Items[i]
		}
	}
	return nil
}
