package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/electromart/internal/pricing"
)

// Product is a read-only catalog record.
type Product struct {
	ID          string          `json:"id" validate:"required"`
	SKU         string          `json:"sku" validate:"required"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name" validate:"required"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price" validate:"min=0"`
	Stock       int             `json:"stock" validate:"min=0"`
	Image       string          `json:"image,omitempty"`
}

// PricingProduct returns the subset the pricing engine consumes.
func (p Product) PricingProduct() pricing.Product {
	return pricing.Product{SKU: p.SKU, Price: p.Price}
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// ListFilter narrows ListProducts. Query is a case-insensitive substring match over name,
// category, description and sku. Category matches exactly; "" and "all" disable it.
type ListFilter struct {
	Query    string
	Category string
	Limit    int
	Offset   int
}

var validate = pricing.NewValidator()

// Validate checks a product record before it is written to the catalog.
func (p Product) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("product %q: %w", p.SKU, err)
	}
	return nil
}
