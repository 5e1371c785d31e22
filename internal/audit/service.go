package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/electromart/internal/common"
	"github.com/noah-isme/electromart/internal/obs"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	// ActorKindAdmin is an authenticated administrator.
	ActorKindAdmin ActorKind = "admin"
	// ActorKindAnonymous represents unauthenticated actors, such as a failed login.
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes the entity performing the action.
type Actor struct {
	Kind    ActorKind `json:"kind"`
	Subject string    `json:"subject,omitempty"`
}

// Entry is one audited admin action.
type Entry struct {
	ID        string          `json:"id"`
	At        time.Time       `json:"at"`
	Actor     Actor           `json:"actor"`
	Action    string          `json:"action"`
	Resource  string          `json:"resource"`
	Method    string          `json:"method"`
	Path      string          `json:"path"`
	Route     string          `json:"route,omitempty"`
	Status    int             `json:"status"`
	IP        string          `json:"ip,omitempty"`
	UserAgent string          `json:"userAgent,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Store persists audit entries, newest first.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, limit, offset int) ([]Entry, error)
}

// RedisStore keeps the most recent MaxEntries entries in a Redis list.
type RedisStore struct {
	R          *redis.Client
	Key        string
	MaxEntries int64
}

func (s RedisStore) key() string {
	if s.Key == "" {
		return "audit:admin"
	}
	return s.Key
}

// Append pushes e and trims the list.
func (s RedisStore) Append(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	keep := s.MaxEntries
	if keep <= 0 {
		keep = 1000
	}
	pipe := s.R.TxPipeline()
	pipe.LPush(ctx, s.key(), raw)
	pipe.LTrim(ctx, s.key(), 0, keep-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// List returns up to limit entries starting at offset, newest first.
func (s RedisStore) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	raws, err := s.R.LRange(ctx, s.key(), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Service records audit entries for admin flows.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
	Now          func() time.Time
}

// Record persists an audit entry when auditing is enabled.
func (s Service) Record(ctx context.Context, actor Actor, action, resourceType string, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 && rand.Float64() > s.SamplingRate {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if rc := chi.RouteContext(req.Context()); route == "" && rc != nil {
		route = rc.RoutePattern()
	}
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if status == 0 {
		status = http.StatusOK
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	if actor.Kind != ActorKindAdmin {
		actor = Actor{Kind: ActorKindAnonymous}
	}

	return s.Store.Append(ctx, Entry{
		ID:        uuid.NewString(),
		At:        now,
		Actor:     actor,
		Action:    buildAction(action, req.Method, route),
		Resource:  buildResource(resourceType, route),
		Method:    req.Method,
		Path:      req.URL.Path,
		Route:     route,
		Status:    status,
		IP:        common.ClientIP(req),
		UserAgent: strings.TrimSpace(req.Header.Get("User-Agent")),
		RequestID: strings.TrimSpace(req.Header.Get("X-Request-ID")),
		Metadata:  toMetadata(metadata, req.URL.RawQuery),
	})
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

// buildResource derives a dotted resource name from the route: /api/v1/admin/discounts becomes admin.discounts.
func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		return strings.Join(segments[2:], ".")
	}
	return strings.Join(segments, ".")
}

func toMetadata(metadata []byte, query string) json.RawMessage {
	if len(metadata) > 0 {
		return metadata
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	data, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil
	}
	return data
}
