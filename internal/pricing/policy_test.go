package pricing_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/electromart/internal/pricing"
)

const samplePolicy = `{
  "eligibleSkus": ["ULT44", "KB-87"],
  "global": {"percent": 10},
  "overrides": [{"sku": "MOUSE-1", "targetPrice": 799, "note": "Clearance"}],
  "coupons": [{"code": "SAVE5", "percent": 5}, {"code": "save5", "percent": "7.5"}]
}`

func TestParsePolicy(t *testing.T) {
	policy, err := pricing.ParsePolicy([]byte(samplePolicy))
	require.NoError(t, err)
	require.Equal(t, []string{"ULT44", "KB-87"}, policy.EligibleSKUs)
	require.NotNil(t, policy.Global)
	require.Equal(t, "10", policy.Global.Percent.String())
	require.True(t, policy.Global.Fixed.IsZero())
	require.Len(t, policy.Overrides, 1)
	require.Equal(t, "799", policy.Overrides[0].TargetPrice.String())
	require.Len(t, policy.Coupons, 2)
	require.Equal(t, "7.5", policy.Coupons[1].Percent.String())

	override, ok := policy.OverrideFor("MOUSE-1")
	require.True(t, ok)
	require.Equal(t, "Clearance", override.Note)
	require.True(t, policy.IsEligible("KB-87"))
	require.False(t, policy.IsEligible("kb-87"))
}

func TestParsePolicyMinimalDocument(t *testing.T) {
	policy, err := pricing.ParsePolicy([]byte(`{"eligibleSkus": []}`))
	require.NoError(t, err)
	require.Empty(t, policy.EligibleSKUs)
	require.Nil(t, policy.Global)
	require.Nil(t, policy.Overrides)
	require.Nil(t, policy.Coupons)
}

func TestParsePolicyStructuralErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		msg  string
	}{
		{name: "not json", doc: `{`, msg: "discounts must be an object"},
		{name: "array document", doc: `[]`, msg: "discounts must be an object"},
		{name: "null document", doc: `null`, msg: "discounts must be an object"},
		{name: "missing eligible", doc: `{}`, msg: "eligibleSkus must be an array"},
		{name: "eligible not array", doc: `{"eligibleSkus": "ULT44"}`, msg: "eligibleSkus must be an array"},
		{name: "global not object", doc: `{"eligibleSkus": [], "global": 10}`, msg: "global must be an object"},
		{name: "overrides not array", doc: `{"eligibleSkus": [], "overrides": {}}`, msg: "overrides must be an array"},
		{name: "coupons not array", doc: `{"eligibleSkus": [], "coupons": "SAVE5"}`, msg: "coupons must be an array"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pricing.ParsePolicy([]byte(tc.doc))
			require.Error(t, err)
			require.True(t, errors.Is(err, pricing.ErrInvalidInput))
			require.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestParsePolicyFieldValidation(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		msg  string
	}{
		{name: "percent above 100", doc: `{"eligibleSkus": [], "global": {"percent": 120}}`, msg: "global.percent"},
		{name: "negative fixed", doc: `{"eligibleSkus": [], "global": {"fixed": -5}}`, msg: "global.fixed"},
		{name: "empty sku", doc: `{"eligibleSkus": ["A", ""]}`, msg: "eligibleSkus[1]"},
		{name: "override without target", doc: `{"eligibleSkus": [], "overrides": [{"sku": "A"}]}`, msg: "overrides[0].targetPrice"},
		{name: "negative target", doc: `{"eligibleSkus": [], "overrides": [{"sku": "A", "targetPrice": -1}]}`, msg: "overrides[0].targetPrice"},
		{name: "coupon without code", doc: `{"eligibleSkus": [], "coupons": [{"percent": 5}]}`, msg: "coupons[0].code"},
		{name: "non numeric price", doc: `{"eligibleSkus": [], "overrides": [{"sku": "A", "targetPrice": "cheap"}]}`, msg: "decode discounts"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pricing.ParsePolicy([]byte(tc.doc))
			require.ErrorIs(t, err, pricing.ErrInvalidInput)
			require.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestParsePolicyAllowsZeroTargetPrice(t *testing.T) {
	policy, err := pricing.ParsePolicy([]byte(`{"eligibleSkus": [], "overrides": [{"sku": "A", "targetPrice": 0}]}`))
	require.NoError(t, err)
	require.True(t, policy.Overrides[0].TargetPrice.IsZero())
}
