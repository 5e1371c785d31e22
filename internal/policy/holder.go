// Package policy keeps the active discount policy in memory and serves it over HTTP.
package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/noah-isme/electromart/internal/pricing"
)

// Snapshot is an immutable view of one accepted policy document.
type Snapshot struct {
	Policy    pricing.Policy
	Raw       json.RawMessage
	Version   int64
	UpdatedAt time.Time
}

// Holder owns the current policy. Readers never block; replacements are serialised so
// versions stay strictly increasing.
type Holder struct {
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
	now     func() time.Time
}

// NewHolder returns a Holder with no policy loaded.
func NewHolder() *Holder {
	return &Holder{now: time.Now}
}

// LoadFile reads, validates and installs the policy document at path.
func LoadFile(path string) (*Holder, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read discount policy: %w", err)
	}
	h := NewHolder()
	if _, err := h.Replace(raw); err != nil {
		return nil, fmt.Errorf("load discount policy %s: %w", path, err)
	}
	return h, nil
}

// Current returns the active snapshot. ok is false before the first successful Replace.
func (h *Holder) Current() (Snapshot, bool) {
	snap := h.current.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

// Policy returns the active policy, or an empty policy that grants no discounts.
func (h *Holder) Policy() pricing.Policy {
	if snap, ok := h.Current(); ok {
		return snap.Policy
	}
	return pricing.Policy{EligibleSKUs: []string{}}
}

// Version returns the active version, 0 when nothing is loaded.
func (h *Holder) Version() int64 {
	if snap := h.current.Load(); snap != nil {
		return snap.Version
	}
	return 0
}

// Replace validates raw and swaps it in. An invalid document leaves the current policy as is.
func (h *Holder) Replace(raw []byte) (Snapshot, error) {
	if len(raw) == 0 {
		return Snapshot{}, fmt.Errorf("empty document: %w", pricing.ErrInvalidInput)
	}
	parsed, err := pricing.ParsePolicy(raw)
	if err != nil {
		return Snapshot{}, err
	}
	compact, err := compactJSON(raw)
	if err != nil {
		return Snapshot{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	next := &Snapshot{
		Policy:    parsed,
		Raw:       compact,
		Version:   h.Version() + 1,
		UpdatedAt: h.now().UTC(),
	}
	h.current.Store(next)
	return *next, nil
}

// compactJSON strips insignificant whitespace and keeps number literals and key order as sent.
func compactJSON(raw []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, errors.Join(pricing.ErrInvalidInput, err)
	}
	return buf.Bytes(), nil
}
