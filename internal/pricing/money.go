package pricing

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var half = decimal.NewFromFloat(0.5)

// RoundCents rounds to two decimal places, halves toward positive infinity.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Mul(hundred).Add(half).Floor().Div(hundred)
}

// DiscountPercent returns the whole percentage saved going from original to discounted.
func DiscountPercent(original, discounted decimal.Decimal) int {
	if original.IsZero() {
		return 0
	}
	pct := original.Sub(discounted).Div(original).Mul(hundred)
	return int(pct.Add(half).Floor().IntPart())
}

var bdtPrinter = message.NewPrinter(language.English)

// FormatBDT renders amount as taka with thousands grouping and at most two decimals.
func FormatBDT(amount decimal.Decimal) string {
	f, _ := amount.Float64()
	return "৳ " + bdtPrinter.Sprint(number.Decimal(f, number.MaxFractionDigits(2)))
}
