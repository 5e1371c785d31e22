package auth

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/electromart/internal/common"
)

// Handler exposes the admin login endpoint.
type Handler struct {
	Service *Service
	Logger  zerolog.Logger
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login handles POST /api/v1/admin/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Service.Login(r.Context(), req.Password)
	if err != nil {
		if !common.IsAppError(err) {
			h.Logger.Error().Err(err).Msg("admin login failed")
		} else {
			h.Logger.Warn().Str("client_ip", common.ClientIP(r)).Msg("admin login rejected")
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}
