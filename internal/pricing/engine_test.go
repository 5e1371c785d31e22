package pricing

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func decPtr(value string) *decimal.Decimal {
	d := dec(value)
	return &d
}

func TestComputePriceNoDiscountBaseline(t *testing.T) {
	product := Product{SKU: "CAB-USB", Price: dec("450")}
	result, err := ComputePrice(product, 3, Policy{EligibleSKUs: []string{}}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Result{
		UnitPrice:        dec("450"),
		LineSubtotal:     dec("1350"),
		OriginalSubtotal: dec("1350"),
		TotalSavings:     dec("0"),
		OriginalPrice:    dec("450"),
		Quantity:         3,
		AppliedDiscounts: []AppliedDiscount{},
	}
	if diff := cmp.Diff(want, result, decimalComparer); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestComputePriceGlobalPercentThenCoupon(t *testing.T) {
	policy := Policy{
		EligibleSKUs: []string{"ULT44"},
		Global:       &GlobalDiscount{Percent: dec("10")},
		Coupons:      []Coupon{{Code: "SAVE5", Percent: dec("5")}},
	}
	result, err := ComputePrice(Product{SKU: "ULT44", Price: dec("1650")}, 2, policy, "SAVE5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Result{
		UnitPrice:        dec("1410.75"),
		LineSubtotal:     dec("2821.50"),
		OriginalSubtotal: dec("3300"),
		TotalSavings:     dec("478.50"),
		OriginalPrice:    dec("1650"),
		Quantity:         2,
		AppliedDiscounts: []AppliedDiscount{
			{Type: DiscountGlobalPercent, Amount: dec("165"), Description: "10% discount"},
			{Type: DiscountCoupon, Amount: dec("74.25"), Description: "Coupon SAVE5: 5% off"},
		},
	}
	if diff := cmp.Diff(want, result, decimalComparer); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestComputePriceCouponStacksOnDiscountedPrice(t *testing.T) {
	policy := Policy{
		EligibleSKUs: []string{"SKU-1"},
		Global:       &GlobalDiscount{Percent: dec("10")},
		Coupons:      []Coupon{{Code: "TEN", Percent: dec("10")}},
	}
	result, err := ComputePrice(Product{SKU: "SKU-1", Price: dec("1000")}, 1, policy, "TEN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.UnitPrice.Equal(dec("810")) {
		t.Fatalf("expected 810 unit price, got %s", result.UnitPrice)
	}
	if diff := cmp.Diff([]string{DiscountGlobalPercent, DiscountCoupon}, result.DiscountTypes()); diff != "" {
		t.Fatalf("unexpected discount order (-want +got):\n%s", diff)
	}
}

func TestComputePriceOverrideBeatsGlobal(t *testing.T) {
	policy := Policy{
		EligibleSKUs: []string{"KB-87"},
		Global:       &GlobalDiscount{Percent: dec("20")},
		Overrides:    []Override{{SKU: "KB-87", TargetPrice: decPtr("2999"), Note: "Launch week"}},
	}
	result, err := ComputePrice(Product{SKU: "KB-87", Price: dec("3500")}, 1, policy, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.AppliedDiscounts) != 1 {
		t.Fatalf("expected exactly one discount, got %d", len(result.AppliedDiscounts))
	}
	got := result.AppliedDiscounts[0]
	if got.Type != DiscountOverride || got.Description != "Special price: Launch week" || !got.Amount.Equal(dec("501")) {
		t.Fatalf("unexpected override entry %+v", got)
	}
	if got.Markup {
		t.Fatal("override below original price must not be flagged as markup")
	}
	if !result.UnitPrice.Equal(dec("2999")) {
		t.Fatalf("expected 2999 unit price, got %s", result.UnitPrice)
	}
}

func TestComputePriceOverrideDefaultNoteAndMarkup(t *testing.T) {
	policy := Policy{Overrides: []Override{{SKU: "RARE", TargetPrice: decPtr("150")}}}
	result, err := ComputePrice(Product{SKU: "RARE", Price: dec("100")}, 2, policy, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := result.AppliedDiscounts[0]
	if got.Description != "Special price: Override applied" {
		t.Fatalf("unexpected description %q", got.Description)
	}
	if !got.Amount.Equal(dec("-50")) || !got.Markup {
		t.Fatalf("expected markup entry of -50, got %+v", got)
	}
	if !result.UnitPrice.Equal(dec("150")) || !result.TotalSavings.Equal(dec("-100")) {
		t.Fatalf("unexpected totals: unit %s savings %s", result.UnitPrice, result.TotalSavings)
	}
}

func TestComputePriceOverrideToZero(t *testing.T) {
	policy := Policy{Overrides: []Override{{SKU: "GIFT", TargetPrice: decPtr("0")}}}
	result, err := ComputePrice(Product{SKU: "GIFT", Price: dec("75")}, 1, policy, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.UnitPrice.IsZero() || len(result.AppliedDiscounts) != 1 {
		t.Fatalf("expected free override, got %+v", result)
	}
}

func TestComputePricePercentWinsOverFixed(t *testing.T) {
	policy := Policy{
		EligibleSKUs: []string{"SKU-1"},
		Global:       &GlobalDiscount{Percent: dec("10"), Fixed: dec("50")},
	}
	result, err := ComputePrice(Product{SKU: "SKU-1", Price: dec("200")}, 1, policy, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.AppliedDiscounts) != 1 || result.AppliedDiscounts[0].Type != DiscountGlobalPercent {
		t.Fatalf("expected only global_percent, got %+v", result.AppliedDiscounts)
	}
	if !result.UnitPrice.Equal(dec("180")) {
		t.Fatalf("expected 180, got %s", result.UnitPrice)
	}
}

func TestComputePriceFixedDiscountFloorsAtZero(t *testing.T) {
	policy := Policy{
		EligibleSKUs: []string{"SKU-1"},
		Global:       &GlobalDiscount{Fixed: dec("500")},
	}
	result, err := ComputePrice(Product{SKU: "SKU-1", Price: dec("300")}, 2, policy, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.UnitPrice.IsZero() {
		t.Fatalf("expected zero unit price, got %s", result.UnitPrice)
	}
	got := result.AppliedDiscounts[0]
	if got.Type != DiscountGlobalFixed || !got.Amount.Equal(dec("300")) || got.Description != "৳500 off" {
		t.Fatalf("unexpected fixed entry %+v", got)
	}
	if !result.TotalSavings.Equal(dec("600")) {
		t.Fatalf("expected savings 600, got %s", result.TotalSavings)
	}
}

func TestComputePriceEligibleWithoutUsableGlobal(t *testing.T) {
	cases := map[string]*GlobalDiscount{
		"no global":    nil,
		"empty global": {},
		"zero values":  {Percent: dec("0"), Fixed: dec("0")},
	}
	for name, global := range cases {
		t.Run(name, func(t *testing.T) {
			policy := Policy{EligibleSKUs: []string{"SKU-1"}, Global: global}
			result, err := ComputePrice(Product{SKU: "SKU-1", Price: dec("99")}, 1, policy, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.HasDiscount() || !result.UnitPrice.Equal(dec("99")) {
				t.Fatalf("expected undiscounted result, got %+v", result)
			}
		})
	}
}

func TestComputePriceNotEligible(t *testing.T) {
	policy := Policy{
		EligibleSKUs: []string{"OTHER"},
		Global:       &GlobalDiscount{Percent: dec("50")},
	}
	result, err := ComputePrice(Product{SKU: "SKU-1", Price: dec("99")}, 1, policy, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasDiscount() {
		t.Fatalf("expected no discount, got %+v", result.AppliedDiscounts)
	}
}

func TestComputePriceCouponMismatchIsNoop(t *testing.T) {
	policy := Policy{Coupons: []Coupon{{Code: "SAVE5", Percent: dec("5")}, {Code: "ZERO", Percent: dec("0")}}}
	for _, code := range []string{"save5", "BADCODE", "ZERO"} {
		result, err := ComputePrice(Product{SKU: "SKU-1", Price: dec("100")}, 1, policy, code)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", code, err)
		}
		if result.HasDiscount() {
			t.Fatalf("expected coupon %q to be ignored, got %+v", code, result.AppliedDiscounts)
		}
	}
}

func TestComputePriceCouponAfterOverride(t *testing.T) {
	policy := Policy{
		Overrides: []Override{{SKU: "SKU-1", TargetPrice: decPtr("80")}},
		Coupons:   []Coupon{{Code: "HALF", Percent: dec("50")}},
	}
	result, err := ComputePrice(Product{SKU: "SKU-1", Price: dec("100")}, 1, policy, "HALF")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.AppliedDiscounts) != 2 {
		t.Fatalf("expected override and coupon, got %+v", result.AppliedDiscounts)
	}
	if result.AppliedDiscounts[0].Type != DiscountOverride || result.AppliedDiscounts[1].Type != DiscountCoupon {
		t.Fatalf("unexpected order %+v", result.AppliedDiscounts)
	}
	if !result.UnitPrice.Equal(dec("40")) {
		t.Fatalf("expected 40, got %s", result.UnitPrice)
	}
}

func TestComputePriceRoundsFromUnroundedUnitPrice(t *testing.T) {
	policy := Policy{EligibleSKUs: []string{"SKU-1"}, Global: &GlobalDiscount{Percent: dec("15")}}
	result, err := ComputePrice(Product{SKU: "SKU-1", Price: dec("99.99")}, 3, policy, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.UnitPrice.Equal(dec("84.99")) {
		t.Fatalf("expected unit 84.99, got %s", result.UnitPrice)
	}
	if !result.LineSubtotal.Equal(dec("254.97")) {
		t.Fatalf("expected line 254.97, got %s", result.LineSubtotal)
	}
	if !result.OriginalSubtotal.Equal(dec("299.97")) {
		t.Fatalf("expected original 299.97, got %s", result.OriginalSubtotal)
	}
	if !result.TotalSavings.Equal(dec("45")) {
		t.Fatalf("expected savings 45, got %s", result.TotalSavings)
	}
	if !result.AppliedDiscounts[0].Amount.Equal(dec("14.9985")) {
		t.Fatalf("discount amount must stay unrounded, got %s", result.AppliedDiscounts[0].Amount)
	}
}

func TestComputePriceRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name    string
		product Product
		qty     int
		want    error
	}{
		{name: "zero quantity", product: Product{SKU: "A", Price: dec("1")}, qty: 0, want: ErrInvalidQuantity},
		{name: "negative quantity", product: Product{SKU: "A", Price: dec("1")}, qty: -2, want: ErrInvalidQuantity},
		{name: "missing sku", product: Product{Price: dec("1")}, qty: 1, want: ErrInvalidInput},
		{name: "negative price", product: Product{SKU: "A", Price: dec("-1")}, qty: 1, want: ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputePrice(tc.product, tc.qty, Policy{}, "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestComputePriceIsDeterministic(t *testing.T) {
	policy := Policy{
		EligibleSKUs: []string{"SKU-1"},
		Global:       &GlobalDiscount{Fixed: dec("12.5")},
		Coupons:      []Coupon{{Code: "C", Percent: dec("7")}},
	}
	product := Product{SKU: "SKU-1", Price: dec("123.45")}
	first, err := ComputePrice(product, 4, policy, "C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ComputePrice(product, 4, policy, "C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(first, second, decimalComparer); diff != "" {
		t.Fatalf("repeated calls differ:\n%s", diff)
	}
}

func TestSummarizeAddsRoundedLines(t *testing.T) {
	policy := Policy{EligibleSKUs: []string{"A"}, Global: &GlobalDiscount{Percent: dec("15")}}
	a, err := ComputePrice(Product{SKU: "A", Price: dec("99.99")}, 3, policy, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ComputePrice(Product{SKU: "B", Price: dec("10")}, 2, policy, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary := Summarize([]Result{a, b})
	want := Summary{
		OriginalSubtotal: dec("319.97"),
		Subtotal:         dec("274.97"),
		Discount:         dec("45"),
		Total:            dec("274.97"),
		ItemCount:        5,
	}
	if diff := cmp.Diff(want, summary, decimalComparer); diff != "" {
		t.Fatalf("unexpected summary (-want +got):\n%s", diff)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	if !summary.Total.IsZero() || summary.ItemCount != 0 {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}

func TestComputePriceHalfCentRoundsUp(t *testing.T) {
	policy := Policy{EligibleSKUs: []string{}, Coupons: []Coupon{{Code: "HALF", Percent: dec("50")}}}
	result, err := ComputePrice(Product{SKU: "CAB-1", Price: dec("10.05")}, 1, policy, "HALF")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for name, got := range map[string]decimal.Decimal{
		"unit price":    result.UnitPrice,
		"line subtotal": result.LineSubtotal,
		"total savings": result.TotalSavings,
	} {
		if !got.Equal(dec("5.03")) {
			t.Fatalf("%s: expected 5.025 to round to 5.03, got %s", name, got)
		}
	}
	if !result.AppliedDiscounts[0].Amount.Equal(dec("5.025")) {
		t.Fatalf("coupon amount should stay unrounded, got %s", result.AppliedDiscounts[0].Amount)
	}
}

func TestComputePriceMarkupHalfCentSavingsRoundsToZero(t *testing.T) {
	policy := Policy{
		EligibleSKUs: []string{},
		Overrides:    []Override{{SKU: "PEN-1", TargetPrice: decPtr("1.005")}},
	}
	result, err := ComputePrice(Product{SKU: "PEN-1", Price: dec("1")}, 1, policy, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.UnitPrice.Equal(dec("1.01")) {
		t.Fatalf("expected unit price 1.01, got %s", result.UnitPrice)
	}
	if !result.TotalSavings.IsZero() {
		t.Fatalf("expected -0.005 savings to round to 0, got %s", result.TotalSavings)
	}
	if !result.AppliedDiscounts[0].Markup || !result.AppliedDiscounts[0].Amount.Equal(dec("-0.005")) {
		t.Fatalf("unexpected override entry %+v", result.AppliedDiscounts[0])
	}
}

func TestComputePriceCouponAfterGlobalFixed(t *testing.T) {
	policy := Policy{
		EligibleSKUs: []string{"HUB-7", "STK-1"},
		Global:       &GlobalDiscount{Fixed: dec("30")},
		Coupons:      []Coupon{{Code: "SAVE10", Percent: dec("10")}},
	}

	result, err := ComputePrice(Product{SKU: "HUB-7", Price: dec("100")}, 2, policy, "SAVE10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Result{
		UnitPrice:        dec("63"),
		LineSubtotal:     dec("126"),
		OriginalSubtotal: dec("200"),
		TotalSavings:     dec("74"),
		OriginalPrice:    dec("100"),
		Quantity:         2,
		AppliedDiscounts: []AppliedDiscount{
			{Type: DiscountGlobalFixed, Amount: dec("30"), Description: "৳30 off"},
			{Type: DiscountCoupon, Amount: dec("7"), Description: "Coupon SAVE10: 10% off"},
		},
	}
	if diff := cmp.Diff(want, result, decimalComparer); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}

	clamped, err := ComputePrice(Product{SKU: "STK-1", Price: dec("20")}, 1, policy, "SAVE10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !clamped.UnitPrice.IsZero() || !clamped.TotalSavings.Equal(dec("20")) {
		t.Fatalf("expected coupon on clamped price to leave 0, got unit %s savings %s", clamped.UnitPrice, clamped.TotalSavings)
	}
	if got := clamped.AppliedDiscounts[1].Amount; !got.IsZero() {
		t.Fatalf("coupon on a zero unit price should absorb nothing, got %s", got)
	}
}
