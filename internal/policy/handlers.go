package policy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/electromart/internal/common"
	"github.com/noah-isme/electromart/internal/obs"
	"github.com/noah-isme/electromart/internal/pricing"
)

// Handler exposes the admin policy endpoints and public coupon validation.
type Handler struct {
	Holder  *Holder
	Metrics *obs.DomainMetrics
	Logger  zerolog.Logger
}

type policyResponse struct {
	Discounts json.RawMessage `json:"discounts"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toResponse(snap Snapshot) policyResponse {
	return policyResponse{Discounts: snap.Raw, Version: snap.Version, UpdatedAt: snap.UpdatedAt}
}

// Get handles GET /api/v1/admin/discounts.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.Holder.Current()
	if !ok {
		common.JSONError(w, http.StatusServiceUnavailable, "POLICY_UNAVAILABLE", "no discount policy loaded", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(snap)})
}

// Replace handles PUT /api/v1/admin/discounts. The body is the full policy document.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	snap, err := h.Holder.Replace(raw)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidInput) {
			h.Metrics.ObservePolicyReplace(obs.ResultInvalid)
			common.JSONError(w, http.StatusBadRequest, "INVALID_POLICY", policyMessage(err), nil)
			return
		}
		h.Metrics.ObservePolicyReplace(obs.ResultError)
		h.Logger.Error().Err(err).Msg("replace discount policy")
		common.WriteError(w, err)
		return
	}
	h.Metrics.ObservePolicyReplace(obs.ResultOK)
	subject, _ := common.AdminSubject(r.Context())
	h.Logger.Info().
		Int64("version", snap.Version).
		Str("admin", subject).
		Int("overrides", len(snap.Policy.Overrides)).
		Int("coupons", len(snap.Policy.Coupons)).
		Msg("discount policy replaced")
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(snap)})
}

// policyMessage strips the package sentinel so clients see only the validation message.
func policyMessage(err error) string {
	msg := err.Error()
	msg = strings.TrimSuffix(msg, ": "+pricing.ErrInvalidInput.Error())
	return strings.TrimSpace(msg)
}

type validateRequest struct {
	Code string `json:"code"`
}

// ValidateCoupon handles POST /api/v1/coupons/validate.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	result := pricing.ValidateCoupon(strings.TrimSpace(req.Code), h.Holder.Policy())
	status := http.StatusOK
	switch {
	case result.Valid:
		h.Metrics.ObserveCoupon(obs.ResultOK)
	case errors.Is(result.Err, pricing.ErrCouponNotFound) && strings.TrimSpace(req.Code) != "":
		h.Metrics.ObserveCoupon(obs.ResultNotFound)
		status = http.StatusUnprocessableEntity
	default:
		h.Metrics.ObserveCoupon(obs.ResultInvalid)
		status = http.StatusUnprocessableEntity
	}
	common.JSON(w, status, map[string]any{"data": result})
}
