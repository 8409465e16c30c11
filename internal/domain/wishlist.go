package domain

import "slices"

// Wishlist is an immutable snapshot of the products a session has saved, in
// the order they were saved.
type Wishlist struct {
	SessionID  string   `json:"session_id"`
	ProductIDs []string `json:"product_ids"`
}

// NewWishlist returns an empty wishlist for sessionID.
func NewWishlist(sessionID string) Wishlist {
	return Wishlist{SessionID: sessionID, ProductIDs: []string{}}
}

// Contains reports whether productID is saved.
func (w Wishlist) Contains(productID string) bool {
	return slices.Contains(w.ProductIDs, productID)
}

// Add saves productID. Saving it twice is a no-op.
func (w Wishlist) Add(productID string) Wishlist {
	if w.Contains(productID) {
		return w
	}
	w.ProductIDs = append(slices.Clone(w.ProductIDs), productID)
	return w
}

// Remove unsaves productID. Absent ids are a no-op.
func (w Wishlist) Remove(productID string) Wishlist {
	i := slices.Index(w.ProductIDs, productID)
	if i < 0 {
		return w
	}
	w.ProductIDs = slices.Delete(slices.Clone(w.ProductIDs), i, i+1)
	return w
}

// Toggle flips the saved state of productID and reports whether it is saved
// afterwards.
func (w Wishlist) Toggle(productID string) (Wishlist, bool) {
	if w.Contains(productID) {
		return w.Remove(productID), false
	}
	return w.Add(productID), true
}

// Len is the number of saved products.
func (w Wishlist) Len() int { return len(w.ProductIDs) }
