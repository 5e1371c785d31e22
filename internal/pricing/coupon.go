package pricing

import (
	"fmt"
	"strings"
)

// CouponValidation is the outcome of looking up a coupon code.
type CouponValidation struct {
	Valid   bool    `json:"valid"`
	Coupon  *Coupon `json:"coupon,omitempty"`
	Message string  `json:"message"`
	Err     error   `json:"-"`
}

// ValidateCoupon looks code up in policy. It never prices anything; callers must get a
// valid result before storing a code as the active coupon.
func ValidateCoupon(code string, policy Policy) CouponValidation {
	if strings.TrimSpace(code) == "" || policy.Coupons == nil {
		return CouponValidation{Message: "Invalid coupon code", Err: ErrCouponNotFound}
	}
	coupon, ok := policy.CouponFor(code)
	if !ok {
		return CouponValidation{
			Message: "Coupon code not found",
			Err:     fmt.Errorf("code %q: %w", code, ErrCouponNotFound),
		}
	}
	return CouponValidation{
		Valid:   true,
		Coupon:  &coupon,
		Message: fmt.Sprintf("Coupon applied: %s%% off", coupon.Percent.String()),
	}
}
