package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWishlist_AddIsIdempotent(t *testing.T) {
	w := NewWishlist("session-1").Add("p1").Add("p2").Add("p1")
	assert.Equal(t, []string{"p1", "p2"}, w.ProductIDs)
}

func TestWishlist_Remove(t *testing.T) {
	w := NewWishlist("session-1").Add("p1").Add("p2")

	assert.Equal(t, []string{"p2"}, w.Remove("p1").ProductIDs)
	assert.Equal(t, []string{"p1", "p2"}, w.Remove("missing").ProductIDs)
	assert.Equal(t, []string{"p1", "p2"}, w.ProductIDs)
}

func TestWishlist_Toggle(t *testing.T) {
	w := NewWishlist("session-1")

	w, saved := w.Toggle("p1")
	assert.True(t, saved)
	assert.True(t, w.Contains("p1"))

	w, saved = w.Toggle("p1")
	assert.False(t, saved)
	assert.False(t, w.Contains("p1"))
	assert.Zero(t, w.Len())
}
