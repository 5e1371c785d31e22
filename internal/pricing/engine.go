package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidInput is returned for structurally malformed products or policies.
	ErrInvalidInput = errors.New("pricing: invalid input")
	// ErrInvalidQuantity is returned when the requested quantity is not positive.
	ErrInvalidQuantity = errors.New("pricing: quantity must be positive")
	// ErrCouponNotFound marks a coupon code that matches no coupon in the policy.
	ErrCouponNotFound = errors.New("pricing: coupon not found")
)

// Discount types recorded in Result.AppliedDiscounts.
const (
	DiscountOverride      = "override"
	DiscountGlobalPercent = "global_percent"
	DiscountGlobalFixed   = "global_fixed"
	DiscountCoupon        = "coupon"
)

const defaultOverrideNote = "Override applied"

var hundred = decimal.NewFromInt(100)

// Product is the catalog data the engine needs.
type Product struct {
	SKU   string          `json:"sku"`
	Price decimal.Decimal `json:"price"`
}

// AppliedDiscount records one discount step. Description is display text only.
type AppliedDiscount struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	// Markup is set when an override raises the price above the original.
	Markup bool `json:"markup,omitempty"`
}

// Result is the pricing of one line item.
type Result struct {
	UnitPrice        decimal.Decimal   `json:"unitPrice"`
	LineSubtotal     decimal.Decimal   `json:"lineSubtotal"`
	OriginalSubtotal decimal.Decimal   `json:"originalSubtotal"`
	TotalSavings     decimal.Decimal   `json:"totalSavings"`
	OriginalPrice    decimal.Decimal   `json:"originalPrice"`
	Quantity         int               `json:"quantity"`
	AppliedDiscounts []AppliedDiscount `json:"appliedDiscounts"`
}

// HasDiscount reports whether any discount step fired.
func (r Result) HasDiscount() bool {
	return len(r.AppliedDiscounts) > 0
}

// DiscountTypes lists the type of each applied discount, in application order.
func (r Result) DiscountTypes() []string {
	types := make([]string, 0, len(r.AppliedDiscounts))
	for _, d := range r.AppliedDiscounts {
		types = append(types, d.Type)
	}
	return types
}

// ComputePrice prices quantity units of product under policy. couponCode may be empty.
//
// Tiers run in order, each on the unit price left by the previous one: an override
// replaces the price and disables the global tier; otherwise an eligible SKU gets the
// global percent (or, failing that, the fixed amount clamped at zero); a matching coupon
// then takes its percentage off the current unit price.
func ComputePrice(product Product, quantity int, policy Policy, couponCode string) (Result, error) {
	if strings.TrimSpace(product.SKU) == "" {
		return Result{}, fmt.Errorf("product sku is required: %w", ErrInvalidInput)
	}
	if product.Price.IsNegative() {
		return Result{}, fmt.Errorf("product %s has negative price: %w", product.SKU, ErrInvalidInput)
	}
	if quantity <= 0 {
		return Result{}, fmt.Errorf("quantity %d: %w", quantity, ErrInvalidQuantity)
	}

	original := product.Price
	unit := original
	applied := make([]AppliedDiscount, 0, 2)

	if override, ok := policy.OverrideFor(product.SKU); ok && override.TargetPrice != nil {
		target := *override.TargetPrice
		if target.IsNegative() {
			return Result{}, fmt.Errorf("override for %s has negative target price: %w", product.SKU, ErrInvalidInput)
		}
		note := strings.TrimSpace(override.Note)
		if note == "" {
			note = defaultOverrideNote
		}
		unit = target
		applied = append(applied, AppliedDiscount{
			Type:        DiscountOverride,
			Amount:      original.Sub(target),
			Description: "Special price: " + note,
			Markup:      target.GreaterThan(original),
		})
	} else if policy.IsEligible(product.SKU) && policy.Global != nil {
		global := policy.Global
		switch {
		case global.Percent.IsPositive():
			amount := original.Mul(global.Percent).Div(hundred)
			unit = original.Sub(amount)
			applied = append(applied, AppliedDiscount{
				Type:        DiscountGlobalPercent,
				Amount:      amount,
				Description: global.Percent.String() + "% discount",
			})
		case global.Fixed.IsPositive():
			unit = decimal.Max(decimal.Zero, original.Sub(global.Fixed))
			applied = append(applied, AppliedDiscount{
				Type:        DiscountGlobalFixed,
				Amount:      decimal.Min(global.Fixed, original),
				Description: "৳" + global.Fixed.String() + " off",
			})
		}
	}

	if couponCode != "" {
		if coupon, ok := policy.CouponFor(couponCode); ok && coupon.Percent.IsPositive() {
			amount := unit.Mul(coupon.Percent).Div(hundred)
			unit = unit.Sub(amount)
			applied = append(applied, AppliedDiscount{
				Type:        DiscountCoupon,
				Amount:      amount,
				Description: fmt.Sprintf("Coupon %s: %s%% off", couponCode, coupon.Percent.String()),
			})
		}
	}

	qty := decimal.NewFromInt(int64(quantity))
	lineSubtotal := unit.Mul(qty)
	originalSubtotal := original.Mul(qty)

	return Result{
		UnitPrice:        RoundCents(unit),
		LineSubtotal:     RoundCents(lineSubtotal),
		OriginalSubtotal: originalSubtotal,
		TotalSavings:     RoundCents(originalSubtotal.Sub(lineSubtotal)),
		OriginalPrice:    original,
		Quantity:         quantity,
		AppliedDiscounts: applied,
	}, nil
}

// Summary aggregates priced lines into order totals.
type Summary struct {
	OriginalSubtotal decimal.Decimal `json:"originalSubtotal"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Discount         decimal.Decimal `json:"discount"`
	Total            decimal.Decimal `json:"total"`
	ItemCount        int             `json:"itemCount"`
}

// Summarize sums already-rounded line values. Rounding happens per line, never on the sum.
func Summarize(lines []Result) Summary {
	summary := Summary{
		OriginalSubtotal: decimal.Zero,
		Subtotal:         decimal.Zero,
		Discount:         decimal.Zero,
	}
	for _, line := range lines {
		summary.OriginalSubtotal = summary.OriginalSubtotal.Add(line.OriginalSubtotal)
		summary.Subtotal = summary.Subtotal.Add(line.LineSubtotal)
		summary.Discount = summary.Discount.Add(line.TotalSavings)
		summary.ItemCount += line.Quantity
	}
	summary.Total = summary.Subtotal
	return summary
}
