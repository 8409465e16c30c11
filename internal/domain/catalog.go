package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/Arya602/craft-heart-connect/pkg/errors"
)

// Product is a catalog listing as served by the product API.
type Product struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Artisan   string          `json:"artisan"`
	Category  string          `json:"category"`
	Region    string          `json:"region,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Rating    float64         `json:"rating"`
	Reviews   int             `json:"reviews"`
	ImageURL  string          `json:"image_url,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// CartItem converts the listing into the shape the cart stores.
func (p Product) CartItem() Item {
	return Item{
		ProductID: p.ID,
		Title:     p.Title,
		UnitPrice: p.Price,
		ImageURL:  p.ImageURL,
		Artisan:   p.Artisan,
	}
}

// SortOrder names a catalog ordering.
type SortOrder string

const (
	SortFeatured  SortOrder = "featured"
	SortPriceLow  SortOrder = "price-low"
	SortPriceHigh SortOrder = "price-high"
	SortRating    SortOrder = "rating"
	SortNewest    SortOrder = "newest"
)

// ParseSortOrder maps a query value to a SortOrder. Empty means featured.
func ParseSortOrder(s string) (SortOrder, error) {
	switch so := SortOrder(strings.ToLower(strings.TrimSpace(s))); so {
	case "":
		return SortFeatured, nil
	case SortFeatured, SortPriceLow, SortPriceHigh, SortRating, SortNewest:
		return so, nil
	default:
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown sort %q", s))
	}
}

// Filter selects and orders catalog products. Zero values match everything.
type Filter struct {
	Category  string
	Region    string
	Query     string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	MinRating float64
	Sort      SortOrder
}

func matchesAll(v string) bool {
	return v == "" || strings.EqualFold(v, "all")
}

// Match reports whether p passes every criterion of f. Price bounds are
// inclusive; Query is a case-insensitive substring of title or artisan.
func (f Filter) Match(p Product) bool {
	if !matchesAll(f.Category) && !strings.EqualFold(f.Category, p.Category) {
		return false
	}
	if !matchesAll(f.Region) && !strings.EqualFold(f.Region, p.Region) {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if p.Rating < f.MinRating {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Artisan), q) {
			return false
		}
	}
	return true
}

// Apply returns the matching products in the filter's order. The input is not
// modified and ties keep their input order.
func (f Filter) Apply(products []Product) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if f.Match(p) {
			out = append(out, p)
		}
	}

	var cmp func(a, b Product) int
	switch f.Sort {
	case SortPriceLow:
		cmp = func(a, b Product) int { return a.Price.Cmp(b.Price) }
	case SortPriceHigh:
		cmp = func(a, b Product) int { return b.Price.Cmp(a.Price) }
	case SortRating:
		cmp = func(a, b Product) int {
			switch {
			case a.Rating > b.Rating:
				return -1
			case a.Rating < b.Rating:
				return 1
			}
			return 0
		}
	case SortNewest:
		cmp = func(a, b Product) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
	if cmp != nil {
		slices.SortStableFunc(out, cmp)
	}
	return out
}
