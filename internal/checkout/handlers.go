package checkout

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/electromart/internal/cart"
	"github.com/noah-isme/electromart/internal/common"
)

// Handler exposes POST /api/v1/checkout.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

// Checkout places an order for the cart named in the body.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var payload Input
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	order, err := h.Svc.Place(r.Context(), payload)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", "checkout form is incomplete", map[string]any{"fields": verr.Fields})
			return
		}
		cart.WriteError(w, h.Logger, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": order})
}
