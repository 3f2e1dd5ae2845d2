package domain

import (
	"sort"
	"strings"
	"time"
)

type CartStatus string

const (
	CartStatusOpen      CartStatus = "OPEN"
	CartStatusConverted CartStatus = "CONVERTED"
)

// Cart is the server-held authoritative cart. Version increments on every
// persisted mutation and is what the client snapshot reconciles against.
type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id"`
	Owner     Owner      `bson:"owner" json:"owner"`
	OwnerKey  string     `bson:"owner_key" json:"owner_key"`
	Status    CartStatus `bson:"status" json:"status"`
	Items     []CartItem `bson:"items" json:"items"`
	Version   int64      `bson:"version" json:"version"`
	OrderRef  string     `bson:"order_ref,omitempty" json:"order_ref,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// Attribute is one ordered name/value pair on a line, e.g. size=M.
type Attribute struct {
	Name  string `bson:"name" json:"name"`
	Value string `bson:"value" json:"value"`
}

type CartItem struct {
	ID          string      `bson:"item_id" json:"item_id"`
	ProductID   string      `bson:"product_id" json:"product_id"`
	VariationID string      `bson:"variation_id,omitempty" json:"variation_id,omitempty"`
	Quantity    int         `bson:"quantity" json:"quantity"`
	UnitPrice   int64       `bson:"unit_price" json:"unit_price"` // minor units
	Currency    string      `bson:"currency" json:"currency"`
	Attributes  []Attribute `bson:"attributes,omitempty" json:"attributes,omitempty"`
	// ReservationID points at the stock hold backing this line. A line whose
	// reservation expired keeps its ReservationID but is "at risk" and must
	// be re-validated before checkout.
	ReservationID string    `bson:"reservation_id,omitempty" json:"reservation_id,omitempty"`
	AddedAt       time.Time `bson:"added_at" json:"added_at"`
}

// DedupKey identifies a purchasable configuration: two lines with the same
// key in one cart must be collapsed into one by summing quantity.
func (i CartItem) DedupKey() string {
	return DedupKey(i.ProductID, i.VariationID, i.Attributes)
}

func DedupKey(productID, variationID string, attrs []Attribute) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, a.Name+"="+a.Value)
	}
	sort.Strings(parts)
	return productID + "|" + variationID + "|" + strings.Join(parts, ",")
}

// Subtotal returns the line total in minor units.
func (i CartItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// FindItem returns a pointer into Items for the given item id, or nil.
func (c *Cart) FindItem(itemID string) *CartItem {
	for idx := range c.Items {
		if c.Items[idx].ID == itemID {
			return &c.Items[idx]
		}
	}
	return nil
}

// FindByDedupKey returns the line matching the dedup key, or nil.
func (c *Cart) FindByDedupKey(key string) *CartItem {
	for idx := range c.Items {
		if c.Items[idx].DedupKey() == key {
			return &c.Items[idx]
		}
	}
	return nil
}

// TotalQuantity sums quantities across all lines.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

func (c *Cart) IsOpen() bool {
	return c.Status == CartStatusOpen
}
