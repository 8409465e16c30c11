package domain

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a product as it is added to the cart, before it has a quantity.
type Item struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageURL  string          `json:"image_url,omitempty"`
	Artisan   string          `json:"artisan,omitempty"`
}

// LineItem is one product entry in the cart. Quantity is at least 1 while the
// item is present.
type LineItem struct {
	Item
	Quantity int `json:"quantity"`
}

// Subtotal is UnitPrice × Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Totals are derived from the line items and never stored.
type Totals struct {
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Cart is an immutable snapshot of a session's cart. Every reducer returns a
// new snapshot and leaves its receiver untouched.
type Cart struct {
	SessionID string     `json:"session_id"`
	Items     []LineItem `json:"items"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// NewCart returns an empty cart for sessionID expiring ttl after now.
func NewCart(sessionID string, now time.Time, ttl time.Duration) Cart {
	return Cart{
		SessionID: sessionID,
		Items:     []LineItem{},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (c Cart) index(productID string) int {
	return slices.IndexFunc(c.Items, func(li LineItem) bool { return li.ProductID == productID })
}

func (c Cart) withItems(items []LineItem) Cart {
	c.Items = items
	return c
}

// Add increments the quantity of an existing entry for item.ProductID, or
// appends a new entry with quantity 1.
func (c Cart) Add(item Item) Cart {
	items := slices.Clone(c.Items)
	if i := c.index(item.ProductID); i >= 0 {
		items[i].Quantity++
		return c.withItems(items)
	}
	return c.withItems(append(items, LineItem{Item: item, Quantity: 1}))
}

// Remove deletes the entry for productID. Absent ids are a no-op.
func (c Cart) Remove(productID string) Cart {
	i := c.index(productID)
	if i < 0 {
		return c
	}
	return c.withItems(slices.Delete(slices.Clone(c.Items), i, i+1))
}

// SetQuantity sets the quantity of productID to q exactly. q < 1 removes the
// entry; unknown ids are a no-op.
func (c Cart) SetQuantity(productID string, q int) Cart {
	if q < 1 {
		return c.Remove(productID)
	}
	i := c.index(productID)
	if i < 0 {
		return c
	}
	items := slices.Clone(c.Items)
	items[i].Quantity = q
	return c.withItems(items)
}

// Clear empties the cart.
func (c Cart) Clear() Cart {
	return c.withItems([]LineItem{})
}

// Subtract lowers each entry by the quantity other holds for the same
// product. Entries that reach zero are removed; products only in c are kept.
func (c Cart) Subtract(other Cart) Cart {
	next := c
	for _, li := range other.Items {
		if cur, ok := next.Find(li.ProductID); ok {
			next = next.SetQuantity(li.ProductID, cur.Quantity-li.Quantity)
		}
	}
	return next
}

// Touch stamps the snapshot as modified at now and pushes its expiry out.
func (c Cart) Touch(now time.Time, ttl time.Duration) Cart {
	c.UpdatedAt = now
	c.ExpiresAt = now.Add(ttl)
	return c
}

// Find returns the entry for productID.
func (c Cart) Find(productID string) (LineItem, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

// Len is the number of distinct products in the cart.
func (c Cart) Len() int { return len(c.Items) }

// IsEmpty reports whether the cart has no entries.
func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Totals sums quantities and unit price × quantity with exact decimal
// arithmetic. An empty cart yields {0, 0}.
func (c Cart) Totals() Totals {
	t := Totals{TotalPrice: decimal.Zero}
	for _, li := range c.Items {
		t.TotalItems += li.Quantity
		t.TotalPrice = t.TotalPrice.Add(li.Subtotal())
	}
	return t
}

// MarshalJSON adds the derived totals to the snapshot.
func (c Cart) MarshalJSON() ([]byte, error) {
	type snapshot Cart
	items := c.Items
	if items == nil {
		items = []LineItem{}
	}
	c.Items = items
	return json.Marshal(struct {
		snapshot
		Totals
	}{snapshot(c), c.Totals()})
}
