package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/electromart/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
	// Message replaces the default 429 message.
	Message string
}

// Handler enforces sliding window limits before delegating to the next handler.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// Middleware fails open: a Redis outage is reported through OnError and the request proceeds.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		decision, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(0, h.Config.Max)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := max(0, int(time.Until(decision.ResetAt).Seconds()))
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			msg := h.Config.Message
			if msg == "" {
				msg = "too many coupon attempts, try again later"
			}
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", msg, nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientKey keys attempts by client IP.
func ClientKey(r *http.Request) string {
	return "ip:" + common.ClientIP(r)
}

// CartClientKey keys attempts by cart and client IP, so one shopper cannot exhaust another's budget.
func CartClientKey(param string) func(*http.Request) string {
	return func(r *http.Request) string {
		return "cart:" + chi.URLParam(r, param) + ":ip:" + common.ClientIP(r)
	}
}
