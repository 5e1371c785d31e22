// Package checkout turns a priced cart into an order snapshot. Payment capture and order
// storage live outside this service; a placed order is logged and the cart is emptied.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/electromart/internal/cart"
	"github.com/noah-isme/electromart/internal/pricing"
)

// ErrInvalidInput marks a checkout form that failed validation.
var ErrInvalidInput = errors.New("checkout: invalid input")

// Customer is the shipping contact captured by the checkout form.
type Customer struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode,omitempty"`
}

func (c Customer) trimmed() Customer {
	return Customer{
		Name:       strings.TrimSpace(c.Name),
		Email:      strings.TrimSpace(c.Email),
		Phone:      strings.TrimSpace(c.Phone),
		Address:    strings.TrimSpace(c.Address),
		City:       strings.TrimSpace(c.City),
		PostalCode: strings.TrimSpace(c.PostalCode),
	}
}

// Input is the checkout request.
type Input struct {
	CartID   string   `json:"cartId" validate:"required"`
	Customer Customer `json:"customer"`
}

// ValidationError lists the offending fields of a checkout form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	return "invalid checkout fields: " + strings.Join(names, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// OrderLine is one priced line of a placed order.
type OrderLine struct {
	SKU           string                    `json:"sku"`
	Name          string                    `json:"name"`
	Image         string                    `json:"image,omitempty"`
	Quantity      int                       `json:"quantity"`
	UnitPrice     decimal.Decimal           `json:"unitPrice"`
	LineTotal     decimal.Decimal           `json:"lineTotal"`
	OriginalPrice decimal.Decimal           `json:"originalPrice"`
	Savings       decimal.Decimal           `json:"savings"`
	Discounts     []pricing.AppliedDiscount `json:"discounts"`
}

// Totals of an order. Subtotal is the pre-discount amount.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Order is the immutable snapshot returned to the shopper.
type Order struct {
	ID       string      `json:"id"`
	CartID   string      `json:"cartId"`
	Customer Customer    `json:"customer"`
	Items    []OrderLine `json:"items"`
	Totals   Totals      `json:"totals"`
	Display  cart.Totals `json:"display"`
	Coupon   string      `json:"coupon,omitempty"`
	PlacedAt time.Time   `json:"placedAt"`
}

// Service places orders.
type Service struct {
	Carts  *cart.Service
	Logger zerolog.Logger
	Now    func() time.Time

	validate *validator.Validate
}

// NewService constructs a Service.
func NewService(carts *cart.Service, logger zerolog.Logger) (*Service, error) {
	if carts == nil {
		return nil, errors.New("checkout: cart service is required")
	}
	return &Service{Carts: carts, Logger: logger, validate: pricing.NewValidator()}, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Place validates the form, prices the cart and empties it once the order is recorded.
func (s *Service) Place(ctx context.Context, in Input) (Order, error) {
	in.CartID = strings.TrimSpace(in.CartID)
	in.Customer = in.Customer.trimmed()
	if err := s.validateInput(in); err != nil {
		return Order{}, err
	}

	var order Order
	_, err := s.Carts.Settle(ctx, in.CartID, func(_ context.Context, q cart.Quote) error {
		order = buildOrder(in, q, s.now())
		return s.record(order)
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *Service) validateInput(in Input) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate checkout: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[name] = name + " is required"
		case "email":
			fields[name] = "email is not a valid address"
		default:
			fields[name] = name + " is invalid"
		}
	}
	return &ValidationError{Fields: fields}
}

func buildOrder(in Input, q cart.Quote, now time.Time) Order {
	lines := make([]OrderLine, 0, len(q.Lines))
	for _, l := range q.Lines {
		if !l.Available || l.Pricing == nil {
			continue
		}
		lines = append(lines, OrderLine{
			SKU:           l.SKU,
			Name:          l.Name,
			Image:         l.Image,
			Quantity:      l.Quantity,
			UnitPrice:     l.Pricing.UnitPrice,
			LineTotal:     l.Pricing.LineSubtotal,
			OriginalPrice: l.Pricing.OriginalPrice,
			Savings:       l.Pricing.TotalSavings,
			Discounts:     l.Pricing.AppliedDiscounts,
		})
	}
	return Order{
		ID:       "ORD-" + uuid.NewString(),
		CartID:   in.CartID,
		Customer: in.Customer,
		Items:    lines,
		Totals: Totals{
			Subtotal: q.Summary.OriginalSubtotal,
			Discount: q.Summary.Discount,
			Total:    q.Summary.Total,
		},
		Display:  q.Display,
		Coupon:   q.CouponCode,
		PlacedAt: now,
	}
}

// record writes the order snapshot to the log. Contact details stay out of it.
func (s *Service) record(o Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.ID, err)
	}
	s.Logger.Info().
		Str("order_id", o.ID).
		Str("cart_id", o.CartID).
		Str("coupon", o.Coupon).
		Str("subtotal", o.Totals.Subtotal.String()).
		Str("discount", o.Totals.Discount.String()).
		Str("total", o.Totals.Total.String()).
		Str("city", o.Customer.City).
		RawJSON("items", items).
		Msg("order placed")
	return nil
}
