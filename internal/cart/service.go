package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/electromart/internal/catalog"
	"github.com/noah-isme/electromart/internal/obs"
	"github.com/noah-isme/electromart/internal/pricing"
)

// MaxQuantity caps a single cart line.
const MaxQuantity = 999

// Catalog resolves live product data for cart lines.
type Catalog interface {
	GetBySKU(ctx context.Context, sku string) (catalog.Product, error)
}

// Locker serialises mutations of one cart.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Service implements the session cart.
type Service struct {
	Store   Store
	Locker  Locker
	Catalog Catalog
	Policy  catalog.PolicySource
	Metrics *obs.DomainMetrics
	Logger  zerolog.Logger
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create starts an empty cart.
func (s *Service) Create(ctx context.Context) (Cart, error) {
	c := Cart{ID: uuid.NewString(), Items: []Item{}, UpdatedAt: s.now()}
	if err := s.Store.Save(ctx, c); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// Get returns the cart with id.
func (s *Service) Get(ctx context.Context, id string) (Cart, error) {
	return s.Store.Load(ctx, id)
}

// mutate loads, changes and saves a cart while holding its lock.
func (s *Service) mutate(ctx context.Context, id string, fn func(context.Context, *Cart) error) (Cart, error) {
	var out Cart
	err := s.Locker.WithLock(ctx, id, func(ctx context.Context) error {
		c, err := s.Store.Load(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, &c); err != nil {
			return err
		}
		c.UpdatedAt = s.now()
		if err := s.Store.Save(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// AddItem adds qty units of sku, incrementing an existing line. A zero qty adds one unit.
func (s *Service) AddItem(ctx context.Context, id, sku string, qty int) (Cart, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return Cart{}, fmt.Errorf("sku is required: %w", ErrInvalidInput)
	}
	if qty == 0 {
		qty = 1
	}
	if qty < 0 || qty > MaxQuantity {
		return Cart{}, fmt.Errorf("quantity must be between 1 and %d: %w", MaxQuantity, ErrInvalidInput)
	}
	return s.mutate(ctx, id, func(ctx context.Context, c *Cart) error {
		p, err := s.Catalog.GetBySKU(ctx, sku)
		if err != nil {
			return err
		}
		if !p.InStock() {
			return fmt.Errorf("%s: %w", sku, ErrOutOfStock)
		}
		if i := c.indexOf(sku); i >= 0 {
			next := c.Items[i].Quantity + qty
			if next > MaxQuantity {
				return fmt.Errorf("quantity must be between 1 and %d: %w", MaxQuantity, ErrInvalidInput)
			}
			c.Items[i].Quantity = next
			c.Items[i].Name, c.Items[i].Price, c.Items[i].Image = p.Name, p.Price, p.Image
			return nil
		}
		c.Items = append(c.Items, Item{SKU: p.SKU, Name: p.Name, Price: p.Price, Image: p.Image, Quantity: qty})
		return nil
	})
}

// SetQuantity sets the line for sku to qty. A qty of zero or less removes the line.
func (s *Service) SetQuantity(ctx context.Context, id, sku string, qty int) (Cart, error) {
	if qty > MaxQuantity {
		return Cart{}, fmt.Errorf("quantity must be between 1 and %d: %w", MaxQuantity, ErrInvalidInput)
	}
	return s.mutate(ctx, id, func(_ context.Context, c *Cart) error {
		if qty <= 0 {
			c.remove(sku)
			return nil
		}
		i := c.indexOf(sku)
		if i < 0 {
			return fmt.Errorf("line %s: %w", sku, ErrLineNotFound)
		}
		c.Items[i].Quantity = qty
		return nil
	})
}

// RemoveItem drops the line for sku. Removing a missing line is not an error.
func (s *Service) RemoveItem(ctx context.Context, id, sku string) (Cart, error) {
	return s.mutate(ctx, id, func(_ context.Context, c *Cart) error {
		c.remove(sku)
		return nil
	})
}

// Clear empties the cart and drops its coupon.
func (s *Service) Clear(ctx context.Context, id string) (Cart, error) {
	return s.mutate(ctx, id, func(_ context.Context, c *Cart) error {
		c.Items = []Item{}
		c.CouponCode = ""
		return nil
	})
}

// CouponError carries the message shown to the shopper when a coupon is refused.
type CouponError struct {
	Message string
	Err     error
}

func (e *CouponError) Error() string { return e.Message }

func (e *CouponError) Unwrap() error { return e.Err }

// ApplyCoupon validates code against the current policy and stores it on success. The
// existing coupon is kept when validation fails.
func (s *Service) ApplyCoupon(ctx context.Context, id, code string) (Cart, pricing.CouponValidation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		s.Metrics.ObserveCoupon(obs.ResultInvalid)
		return Cart{}, pricing.CouponValidation{}, &CouponError{Message: "Please enter a coupon code", Err: ErrInvalidInput}
	}
	var res pricing.CouponValidation
	c, err := s.mutate(ctx, id, func(_ context.Context, c *Cart) error {
		res = pricing.ValidateCoupon(code, s.Policy.Policy())
		if !res.Valid {
			s.Metrics.ObserveCoupon(obs.ResultInvalid)
			return &CouponError{Message: res.Message, Err: res.Err}
		}
		s.Metrics.ObserveCoupon(obs.ResultOK)
		c.CouponCode = code
		return nil
	})
	if err != nil {
		return Cart{}, res, err
	}
	return c, res, nil
}

// RemoveCoupon clears the active coupon.
func (s *Service) RemoveCoupon(ctx context.Context, id string) (Cart, error) {
	return s.mutate(ctx, id, func(_ context.Context, c *Cart) error {
		c.CouponCode = ""
		return nil
	})
}

// Line is a priced cart line. Lines whose product left the catalog are reported as
// unavailable and excluded from the totals.
type Line struct {
	Item
	Available       bool            `json:"available"`
	DiscountPercent int             `json:"discountPercent"`
	Pricing         *pricing.Result `json:"pricing,omitempty"`
}

// Totals holds preformatted taka strings for the summary.
type Totals struct {
	OriginalSubtotal string `json:"originalSubtotal"`
	Subtotal         string `json:"subtotal"`
	Discount         string `json:"discount"`
	Total            string `json:"total"`
}

// Quote is a cart priced under the current policy.
type Quote struct {
	CartID     string                    `json:"cartId"`
	CouponCode string                    `json:"couponCode,omitempty"`
	Coupon     *pricing.CouponValidation `json:"coupon,omitempty"`
	Lines      []Line                    `json:"lines"`
	Summary    pricing.Summary           `json:"summary"`
	Display    Totals                    `json:"display"`
	UpdatedAt  time.Time                 `json:"updatedAt"`
}

// Quote prices every line against the live catalog price and the current policy. Totals are
// sums of the per-line rounded values.
func (s *Service) Quote(ctx context.Context, c Cart) (Quote, error) {
	policy := s.Policy.Policy()
	q := Quote{
		CartID:     c.ID,
		CouponCode: c.CouponCode,
		Lines:      make([]Line, 0, len(c.Items)),
		UpdatedAt:  c.UpdatedAt,
	}
	if c.CouponCode != "" {
		v := pricing.ValidateCoupon(c.CouponCode, policy)
		q.Coupon = &v
	}

	priced := make([]pricing.Result, 0, len(c.Items))
	for _, it := range c.Items {
		p, err := s.Catalog.GetBySKU(ctx, it.SKU)
		if errors.Is(err, catalog.ErrNotFound) {
			s.Logger.Warn().Str("cart_id", c.ID).Str("sku", it.SKU).Msg("cart line no longer in catalog")
			q.Lines = append(q.Lines, Line{Item: it})
			continue
		}
		if err != nil {
			return Quote{}, err
		}
		res, err := pricing.ComputePrice(p.PricingProduct(), it.Quantity, policy, c.CouponCode)
		if err != nil {
			s.Metrics.ObserveQuote(obs.ResultInvalid)
			return Quote{}, fmt.Errorf("price %s: %w", it.SKU, err)
		}
		s.Metrics.ObserveQuote(obs.ResultOK, res.DiscountTypes()...)
		it.Name, it.Price, it.Image = p.Name, p.Price, p.Image
		priced = append(priced, res)
		q.Lines = append(q.Lines, Line{
			Item:            it,
			Available:       true,
			DiscountPercent: pricing.DiscountPercent(res.OriginalPrice, res.UnitPrice),
			Pricing:         &res,
		})
	}

	q.Summary = pricing.Summarize(priced)
	q.Display = Totals{
		OriginalSubtotal: pricing.FormatBDT(q.Summary.OriginalSubtotal),
		Subtotal:         pricing.FormatBDT(q.Summary.Subtotal),
		Discount:         pricing.FormatBDT(q.Summary.Discount),
		Total:            pricing.FormatBDT(q.Summary.Total),
	}
	return q, nil
}

// Settle quotes the cart under its lock and hands the quote to fn. The cart is emptied only
// when fn succeeds. Carts without a priceable line fail with ErrEmpty.
func (s *Service) Settle(ctx context.Context, id string, fn func(context.Context, Quote) error) (Quote, error) {
	var out Quote
	_, err := s.mutate(ctx, id, func(ctx context.Context, c *Cart) error {
		q, err := s.Quote(ctx, *c)
		if err != nil {
			return err
		}
		if q.Summary.ItemCount == 0 {
			return ErrEmpty
		}
		if err := fn(ctx, q); err != nil {
			return err
		}
		c.Items = []Item{}
		c.CouponCode = ""
		out = q
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	return out, nil
}
