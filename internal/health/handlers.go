package health

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/electromart/internal/common"
)

var draining atomic.Bool

// SetReady toggles readiness. The API flips it off when shutdown begins so load balancers
// stop routing before connections drain.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Deps probes the catalog database and the cart Redis.
type Deps struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

// PingDB pings Postgres within timeout.
func (d Deps) PingDB(ctx context.Context, timeout time.Duration) error {
	if d.DB == nil {
		return errors.New("database not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.DB.Ping(ctx)
}

// PingRedis pings Redis within timeout.
func (d Deps) PingRedis(ctx context.Context, timeout time.Duration) error {
	if d.Redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}

// PolicyVersion reports the version of the active discount policy, 0 when none is loaded.
type PolicyVersion func() int64

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	Policy       PolicyVersion
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type readiness struct {
	DB            string `json:"db"`
	Redis         string `json:"redis"`
	PolicyVersion int64  `json:"policyVersion"`
	Draining      bool   `json:"draining,omitempty"`
}

// Ready reports readiness based on dependency probes and the loaded discount policy.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "dependencies unavailable", nil)
		return
	}
	ctx := r.Context()
	status := readiness{DB: "ok", Redis: "ok", Draining: draining.Load()}
	if err := h.Checker.PingDB(ctx, h.dbTimeout()); err != nil {
		status.DB = err.Error()
	}
	if err := h.Checker.PingRedis(ctx, h.redisTimeout()); err != nil {
		status.Redis = err.Error()
	}
	if h.Policy != nil {
		status.PolicyVersion = h.Policy()
	}

	code := http.StatusOK
	if status.DB != "ok" || status.Redis != "ok" || status.Draining || (h.Policy != nil && status.PolicyVersion == 0) {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

func (h Handler) dbTimeout() time.Duration {
	if h.DBTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.DBTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
