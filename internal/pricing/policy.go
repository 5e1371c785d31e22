package pricing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// GlobalDiscount is the discount granted to every eligible SKU. Percent wins over Fixed.
type GlobalDiscount struct {
	Percent decimal.Decimal `json:"percent" validate:"min=0,max=100"`
	Fixed   decimal.Decimal `json:"fixed" validate:"min=0"`
}

// Override replaces the unit price of a single SKU.
type Override struct {
	SKU         string           `json:"sku" validate:"required"`
	TargetPrice *decimal.Decimal `json:"targetPrice" validate:"required,min=0"`
	Note        string           `json:"note,omitempty"`
}

// Coupon is a percentage reduction identified by a case-sensitive code.
type Coupon struct {
	Code    string          `json:"code" validate:"required"`
	Percent decimal.Decimal `json:"percent" validate:"min=0,max=100"`
}

// Policy is a validated discount policy document. Build it with ParsePolicy.
type Policy struct {
	EligibleSKUs []string        `json:"eligibleSkus" validate:"dive,required"`
	Global       *GlobalDiscount `json:"global,omitempty"`
	Overrides    []Override      `json:"overrides,omitempty" validate:"dive"`
	Coupons      []Coupon        `json:"coupons,omitempty" validate:"dive"`
}

// IsEligible reports whether sku takes part in the global discount tier.
func (p Policy) IsEligible(sku string) bool {
	for _, s := range p.EligibleSKUs {
		if s == sku {
			return true
		}
	}
	return false
}

// OverrideFor returns the first override registered for sku.
func (p Policy) OverrideFor(sku string) (Override, bool) {
	for _, o := range p.Overrides {
		if o.SKU == sku {
			return o, true
		}
	}
	return Override{}, false
}

// CouponFor returns the first coupon whose code matches exactly.
func (p Policy) CouponFor(code string) (Coupon, bool) {
	for _, c := range p.Coupons {
		if c.Code == code {
			return c, true
		}
	}
	return Coupon{}, false
}

var validate = NewValidator()

// NewValidator returns a validator that reports json field names and compares decimal
// amounts numerically.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// ParsePolicy decodes and validates a raw discount policy document.
func ParsePolicy(raw []byte) (Policy, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Policy{}, fmt.Errorf("discounts must be an object: %w", ErrInvalidInput)
	}
	if kind := jsonKind(fields["eligibleSkus"]); kind != '[' {
		return Policy{}, fmt.Errorf("eligibleSkus must be an array: %w", ErrInvalidInput)
	}
	if kind := jsonKind(fields["global"]); kind != 0 && kind != 'n' && kind != '{' {
		return Policy{}, fmt.Errorf("global must be an object: %w", ErrInvalidInput)
	}
	if kind := jsonKind(fields["overrides"]); kind != 0 && kind != 'n' && kind != '[' {
		return Policy{}, fmt.Errorf("overrides must be an array: %w", ErrInvalidInput)
	}
	if kind := jsonKind(fields["coupons"]); kind != 0 && kind != 'n' && kind != '[' {
		return Policy{}, fmt.Errorf("coupons must be an array: %w", ErrInvalidInput)
	}

	var policy Policy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("decode discounts: %v: %w", err, ErrInvalidInput)
	}
	if err := validate.Struct(policy); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Policy{}, fmt.Errorf("invalid %s: %w", fieldPath(verrs[0]), ErrInvalidInput)
		}
		return Policy{}, fmt.Errorf("validate discounts: %v: %w", err, ErrInvalidInput)
	}
	if policy.EligibleSKUs == nil {
		policy.EligibleSKUs = []string{}
	}
	return policy, nil
}

// jsonKind returns the first significant byte of a raw JSON value, 'n' for null, 0 when absent.
func jsonKind(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}
	return ns
}
