package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Policy holds the checkout tax and shipping rules.
type Policy struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
}

// DefaultPolicy charges 18% tax and a flat 50 shipping fee unless the
// subtotal exceeds 1000.
func DefaultPolicy() Policy {
	return Policy{
		TaxRate:               decimal.RequireFromString("0.18"),
		FreeShippingThreshold: decimal.NewFromInt(1000),
		ShippingFee:           decimal.NewFromInt(50),
	}
}

// Validate checks that the policy can produce a sensible quote.
func (p Policy) Validate() error {
	var errs []error
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, errors.New("tax rate must be between 0 and 1"))
	}
	if p.FreeShippingThreshold.IsNegative() {
		errs = append(errs, errors.New("free shipping threshold must not be negative"))
	}
	if p.ShippingFee.IsNegative() {
		errs = append(errs, errors.New("shipping fee must not be negative"))
	}
	return errors.Join(errs...)
}

// Quote is the payable breakdown for a subtotal.
type Quote struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Shipping   decimal.Decimal `json:"shipping"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// Quote prices subtotal. Shipping is free only when the subtotal is strictly
// greater than the threshold.
func (p Policy) Quote(subtotal decimal.Decimal) Quote {
	tax := subtotal.Mul(p.TaxRate)
	shipping := p.ShippingFee
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	return Quote{
		Subtotal:   subtotal,
		Tax:        tax,
		Shipping:   shipping,
		GrandTotal: subtotal.Add(tax).Add(shipping),
	}
}

// Rounded rounds each component to two places. The grand total is the sum of
// the rounded components so the parts always add up on a receipt.
func (q Quote) Rounded() Quote {
	r := Quote{
		Subtotal: q.Subtotal.Round(2),
		Tax:      q.Tax.Round(2),
		Shipping: q.Shipping.Round(2),
	}
	r.GrandTotal = r.Subtotal.Add(r.Tax).Add(r.Shipping)
	return r
}

// FreeShippingGap is how much more must be spent before shipping becomes
// free, or zero when it already is. A subtotal exactly at the threshold still
// pays shipping, so the gap there is one paisa.
func (p Policy) FreeShippingGap(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		return decimal.Zero
	}
	return p.FreeShippingThreshold.Sub(subtotal).Add(decimal.New(1, -2))
}
