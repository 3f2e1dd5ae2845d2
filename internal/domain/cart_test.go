package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupKey_AttributeOrderDoesNotMatter(t *testing.T) {
	a := DedupKey("shirt-1", "size-m", []Attribute{
		{Name: "color", Value: "red"},
		{Name: "gift_wrap", Value: "yes"},
	})
	b := DedupKey("shirt-1", "size-m", []Attribute{
		{Name: "gift_wrap", Value: "yes"},
		{Name: "color", Value: "red"},
	})
	assert.Equal(t, a, b)
}

func TestDedupKey_DifferentAttributesDiffer(t *testing.T) {
	a := DedupKey("shirt-1", "size-m", []Attribute{{Name: "color", Value: "red"}})
	b := DedupKey("shirt-1", "size-m", []Attribute{{Name: "color", Value: "blue"}})
	c := DedupKey("shirt-1", "size-l", []Attribute{{Name: "color", Value: "red"}})
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCart_SubtotalAndTotalQuantity(t *testing.T) {
	cart := &Cart{
		Status: CartStatusOpen,
		Items: []CartItem{
			{ProductID: "shirt-1", Quantity: 2, UnitPrice: 1999},
			{ProductID: "mug-2", Quantity: 1, UnitPrice: 750},
		},
	}
	assert.Equal(t, 3, cart.TotalQuantity())
	assert.Equal(t, int64(2*1999), cart.Items[0].Subtotal())
	assert.Equal(t, int64(750), cart.Items[1].Subtotal())
}

func TestSnapshot_CloneIsIndependent(t *testing.T) {
	snap := &ClientCartSnapshot{
		SchemaVersion: SnapshotSchemaVersion,
		Version:       3,
		Items: []CartItem{
			{ID: "item-1", ProductID: "shirt-1", Quantity: 2,
				Attributes: []Attribute{{Name: "color", Value: "red"}}},
		},
	}

	clone := snap.Clone()
	clone.Items[0].Quantity = 9
	clone.Items[0].Attributes[0].Value = "blue"
	clone.Version = 4

	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, "red", snap.Items[0].Attributes[0].Value)
	assert.Equal(t, int64(3), snap.Version)
}
