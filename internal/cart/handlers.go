package cart

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/electromart/internal/catalog"
	"github.com/noah-isme/electromart/internal/common"
	"github.com/noah-isme/electromart/internal/lock"
	"github.com/noah-isme/electromart/internal/pricing"
	"github.com/noah-isme/electromart/internal/resilience"
)

// IDParam is the chi URL parameter holding the cart id.
const IDParam = "id"

// Handler wires the cart service to HTTP.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

// Create handles POST /api/v1/carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Create(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusCreated, c, nil)
}

// Get handles GET /api/v1/carts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Get(r.Context(), chi.URLParam(r, IDParam))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, nil)
}

// AddItem handles POST /api/v1/carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SKU      string `json:"sku"`
		Quantity int    `json:"quantity"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, IDParam), payload.SKU, payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, nil)
}

// UpdateItem handles PUT /api/v1/carts/{id}/items/{sku}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Quantity *int `json:"quantity"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	if payload.Quantity == nil {
		common.WriteError(w, common.InvalidInput("quantity is required", nil).WithDetails(map[string]any{"field": "quantity"}))
		return
	}
	c, err := h.Svc.SetQuantity(r.Context(), chi.URLParam(r, IDParam), chi.URLParam(r, "sku"), *payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, nil)
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items/{sku}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, IDParam), chi.URLParam(r, "sku"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, nil)
}

// Clear handles DELETE /api/v1/carts/{id}/items.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Clear(r.Context(), chi.URLParam(r, IDParam))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, nil)
}

// ApplyCoupon handles POST /api/v1/carts/{id}/coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code string `json:"code"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	c, res, err := h.Svc.ApplyCoupon(r.Context(), chi.URLParam(r, IDParam), payload.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, &res)
}

// RemoveCoupon handles DELETE /api/v1/carts/{id}/coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.RemoveCoupon(r.Context(), chi.URLParam(r, IDParam))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, nil)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, c Cart, coupon *pricing.CouponValidation) {
	q, err := h.Svc.Quote(r.Context(), c)
	if err != nil {
		h.writeError(w, err)
		return
	}
	body := map[string]any{"data": q}
	if coupon != nil {
		body["message"] = coupon.Message
	}
	common.JSON(w, status, body)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	WriteError(w, h.Logger, err)
}

// WriteError maps cart and catalog errors to the JSON error envelope.
func WriteError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var couponErr *CouponError
	switch {
	case errors.As(err, &couponErr):
		status := http.StatusUnprocessableEntity
		if errors.Is(err, ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		common.JSONError(w, status, "INVALID_COUPON", couponErr.Message, nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "item not in cart", nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, ErrOutOfStock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", "product is out of stock", nil)
	case errors.Is(err, ErrEmpty):
		common.JSONError(w, http.StatusUnprocessableEntity, "CART_EMPTY", "cart is empty", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", strings.TrimSuffix(err.Error(), ": "+ErrInvalidInput.Error()), nil)
	case errors.Is(err, lock.ErrNotAcquired):
		common.JSONError(w, http.StatusConflict, "CART_BUSY", "cart is being updated, retry shortly", nil)
	case errors.Is(err, resilience.ErrOpen):
		common.JSONError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "catalog temporarily unavailable", nil)
	default:
		logger.Error().Err(err).Msg("cart request failed")
		common.WriteError(w, err)
	}
}
