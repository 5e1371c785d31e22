package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the domain counters.
const (
	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// DomainMetrics holds the pricing counters. A nil *DomainMetrics is valid and records nothing.
type DomainMetrics struct {
	QuotesTotal             *prometheus.CounterVec
	DiscountsAppliedTotal   *prometheus.CounterVec
	CouponValidationsTotal  *prometheus.CounterVec
	PolicyReplacementsTotal *prometheus.CounterVec
}

// NewDomainMetrics initialises and registers the pricing collectors.
func NewDomainMetrics(namespace string, reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &DomainMetrics{
		QuotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_quotes_total",
			Help:      "Count of price computations by outcome.",
		}, []string{"result"}),
		DiscountsAppliedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_discounts_applied_total",
			Help:      "Count of discount steps applied, by discount type.",
		}, []string{"type"}),
		CouponValidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_validations_total",
			Help:      "Count of coupon code lookups by outcome.",
		}, []string{"result"}),
		PolicyReplacementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_replacements_total",
			Help:      "Count of discount policy replacement attempts by outcome.",
		}, []string{"result"}),
	}
	m.QuotesTotal = Register(reg, m.QuotesTotal)
	m.DiscountsAppliedTotal = Register(reg, m.DiscountsAppliedTotal)
	m.CouponValidationsTotal = Register(reg, m.CouponValidationsTotal)
	m.PolicyReplacementsTotal = Register(reg, m.PolicyReplacementsTotal)
	return m
}

// ObserveQuote counts one price computation and each discount type it applied.
func (m *DomainMetrics) ObserveQuote(result string, discountTypes ...string) {
	if m == nil {
		return
	}
	m.QuotesTotal.WithLabelValues(result).Inc()
	for _, t := range discountTypes {
		m.DiscountsAppliedTotal.WithLabelValues(t).Inc()
	}
}

// ObserveCoupon counts one coupon lookup.
func (m *DomainMetrics) ObserveCoupon(result string) {
	if m == nil {
		return
	}
	m.CouponValidationsTotal.WithLabelValues(result).Inc()
}

// ObservePolicyReplace counts one policy replacement attempt.
func (m *DomainMetrics) ObservePolicyReplace(result string) {
	if m == nil {
		return
	}
	m.PolicyReplacementsTotal.WithLabelValues(result).Inc()
}
