package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/electromart/internal/obs"
	"github.com/noah-isme/electromart/internal/pricing"
)

// PolicySource yields the discount policy in force.
type PolicySource interface {
	Policy() pricing.Policy
}

// PriceTag is the display pricing shown next to a product.
type PriceTag struct {
	UnitPrice        decimal.Decimal           `json:"unitPrice"`
	OriginalPrice    decimal.Decimal           `json:"originalPrice"`
	Quantity         int                       `json:"quantity"`
	LineSubtotal     decimal.Decimal           `json:"lineSubtotal"`
	OriginalSubtotal decimal.Decimal           `json:"originalSubtotal"`
	TotalSavings     decimal.Decimal           `json:"totalSavings"`
	DiscountPercent  int                       `json:"discountPercent"`
	HasDiscount      bool                      `json:"hasDiscount"`
	Discounts        []pricing.AppliedDiscount `json:"discounts"`
	Display          PriceDisplay              `json:"display"`
}

// PriceDisplay holds preformatted taka strings.
type PriceDisplay struct {
	UnitPrice     string `json:"unitPrice"`
	OriginalPrice string `json:"originalPrice"`
	LineSubtotal  string `json:"lineSubtotal"`
}

// ProductView pairs a product with its price tag.
type ProductView struct {
	Product
	InStock bool     `json:"inStock"`
	Pricing PriceTag `json:"pricing"`
}

// Quote prices qty units of p without a coupon.
func Quote(p Product, qty int, policy pricing.Policy, metrics *obs.DomainMetrics) (PriceTag, error) {
	res, err := pricing.ComputePrice(p.PricingProduct(), qty, policy, "")
	if err != nil {
		metrics.ObserveQuote(obs.ResultInvalid)
		return PriceTag{}, err
	}
	metrics.ObserveQuote(obs.ResultOK, res.DiscountTypes()...)
	return PriceTag{
		UnitPrice:        res.UnitPrice,
		OriginalPrice:    res.OriginalPrice,
		Quantity:         res.Quantity,
		LineSubtotal:     res.LineSubtotal,
		OriginalSubtotal: res.OriginalSubtotal,
		TotalSavings:     res.TotalSavings,
		DiscountPercent:  pricing.DiscountPercent(res.OriginalPrice, res.UnitPrice),
		HasDiscount:      res.HasDiscount(),
		Discounts:        res.AppliedDiscounts,
		Display: PriceDisplay{
			UnitPrice:     pricing.FormatBDT(res.UnitPrice),
			OriginalPrice: pricing.FormatBDT(res.OriginalPrice),
			LineSubtotal:  pricing.FormatBDT(res.LineSubtotal),
		},
	}, nil
}
