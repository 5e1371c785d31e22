package policy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/electromart/internal/obs"
)

func newHandler(t *testing.T) (*Handler, *obs.DomainMetrics) {
	t.Helper()
	h := NewHolder()
	_, err := h.Replace([]byte(`{"eligibleSkus":["ULT44"],"global":{"percent":15},"coupons":[{"code":"SAVE5","percent":5}]}`))
	require.NoError(t, err)
	metrics := obs.NewDomainMetrics("test", prometheus.NewRegistry())
	return &Handler{Holder: h, Metrics: metrics, Logger: zerolog.Nop()}, metrics
}

func TestGetPolicy(t *testing.T) {
	handler, _ := newHandler(t)
	rr := httptest.NewRecorder()
	handler.Get(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/discounts", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data struct {
			Discounts json.RawMessage `json:"discounts"`
			Version   int64           `json:"version"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, int64(1), body.Data.Version)
	require.Contains(t, string(body.Data.Discounts), `"SAVE5"`)
}

func TestGetPolicyUnavailable(t *testing.T) {
	handler := &Handler{Holder: NewHolder(), Logger: zerolog.Nop()}
	rr := httptest.NewRecorder()
	handler.Get(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/discounts", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestReplacePolicy(t *testing.T) {
	handler, metrics := newHandler(t)

	rr := httptest.NewRecorder()
	body := `{"eligibleSkus":["ULT44","KB-87"],"global":{"fixed":200}}`
	handler.Replace(rr, httptest.NewRequest(http.MethodPut, "/api/v1/admin/discounts", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, int64(2), handler.Holder.Version())
	require.True(t, handler.Holder.Policy().IsEligible("KB-87"))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.PolicyReplacementsTotal.WithLabelValues(obs.ResultOK)))
}

func TestReplacePolicyInvalid(t *testing.T) {
	handler, metrics := newHandler(t)

	rr := httptest.NewRecorder()
	body := `{"eligibleSkus":[],"global":{"percent":150}}`
	handler.Replace(rr, httptest.NewRequest(http.MethodPut, "/api/v1/admin/discounts", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "INVALID_POLICY", resp.Error.Code)
	require.Equal(t, "invalid global.percent", resp.Error.Message)
	require.Equal(t, int64(1), handler.Holder.Version())
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.PolicyReplacementsTotal.WithLabelValues(obs.ResultInvalid)))
}

func TestValidateCouponEndpoint(t *testing.T) {
	handler, metrics := newHandler(t)

	cases := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{name: "valid", body: `{"code":" SAVE5 "}`, status: http.StatusOK, message: "Coupon applied: 5% off"},
		{name: "unknown", body: `{"code":"BADCODE"}`, status: http.StatusUnprocessableEntity, message: "Coupon code not found"},
		{name: "blank", body: `{"code":"   "}`, status: http.StatusUnprocessableEntity, message: "Invalid coupon code"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ValidateCoupon(rr, httptest.NewRequest(http.MethodPost, "/api/v1/coupons/validate", strings.NewReader(tc.body)))
			require.Equal(t, tc.status, rr.Code)

			var resp struct {
				Data struct {
					Valid   bool   `json:"valid"`
					Message string `json:"message"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			require.Equal(t, tc.message, resp.Data.Message)
			require.Equal(t, tc.status == http.StatusOK, resp.Data.Valid)
		})
	}

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.CouponValidationsTotal.WithLabelValues(obs.ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.CouponValidationsTotal.WithLabelValues(obs.ResultNotFound)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.CouponValidationsTotal.WithLabelValues(obs.ResultInvalid)))
}
