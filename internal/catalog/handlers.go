package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/electromart/internal/common"
	"github.com/noah-isme/electromart/internal/obs"
	"github.com/noah-isme/electromart/internal/pricing"
	"github.com/noah-isme/electromart/internal/resilience"
)

const (
	defaultPerPage = 24
	maxPerPage     = 100
	maxDetailQty   = 999
)

// Handler exposes public catalog endpoints.
type Handler struct {
	Service *Service
	Policy  PolicySource
	Metrics *obs.DomainMetrics
	Logger  zerolog.Logger
}

// Products handles GET /api/v1/products?q=&category=&page=&limit=.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, defaultPerPage, maxPerPage)
	pg := common.Pagination{Page: page, PerPage: perPage}
	query := r.URL.Query()
	products, total, err := h.Service.Search(r.Context(), ListFilter{
		Query:    query.Get("q"),
		Category: query.Get("category"),
		Limit:    perPage,
		Offset:   pg.Offset(),
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	policy := h.Policy.Policy()
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		tag, err := Quote(p, 1, policy, h.Metrics)
		if err != nil {
			h.Logger.Warn().Err(err).Str("sku", p.SKU).Msg("skip unpriceable product")
			continue
		}
		views = append(views, ProductView{Product: p, InStock: p.InStock(), Pricing: tag})
	}
	pg.TotalItems = total
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{"data": views, "pagination": pg})
}

// ProductDetail handles GET /api/v1/products/{slug}?qty=.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	qty := common.AtoiDefault(r.URL.Query().Get("qty"), 1)
	if qty < 1 || qty > maxDetailQty {
		common.WriteError(w, common.InvalidInput("qty must be between 1 and 999", nil).WithDetails(map[string]any{"field": "qty"}))
		return
	}
	p, err := h.Service.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, err)
		return
	}
	tag, err := Quote(p, qty, h.Policy.Policy(), h.Metrics)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ProductView{Product: p, InStock: p.InStock(), Pricing: tag}})
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Service.Categories(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": categories})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.WriteError(w, common.NotFound("product not found", err))
	case errors.Is(err, pricing.ErrInvalidInput), errors.Is(err, pricing.ErrInvalidQuantity):
		common.WriteError(w, common.InvalidInput(err.Error(), err))
	case errors.Is(err, resilience.ErrOpen):
		common.WriteError(w, common.Unavailable("catalog temporarily unavailable", err))
	default:
		h.Logger.Error().Err(err).Msg("catalog request failed")
		common.WriteError(w, err)
	}
}
