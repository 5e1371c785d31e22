package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the cart does not exist or has expired.
	ErrNotFound = errors.New("cart: not found")
	// ErrInvalidInput is returned for malformed cart mutations.
	ErrInvalidInput = errors.New("cart: invalid input")
	// ErrOutOfStock is returned when adding a product that has no stock left.
	ErrOutOfStock = errors.New("cart: product out of stock")
	// ErrLineNotFound is returned when a mutation names a SKU that is not in the cart.
	ErrLineNotFound = errors.New("cart: line not found")
	// ErrEmpty is returned when a cart with no priceable lines is checked out.
	ErrEmpty = errors.New("cart: empty")
)

const keyPrefix = "cart:"

// Item is one cart line. Name, price and image are captured when the line is added; quotes
// always reprice against the live catalog.
type Item struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image,omitempty"`
	Quantity int             `json:"quantity"`
}

// Cart is the session cart document stored under cart:<id>.
type Cart struct {
	ID         string    `json:"id"`
	Items      []Item    `json:"items"`
	CouponCode string    `json:"couponCode,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (c *Cart) indexOf(sku string) int {
	for i := range c.Items {
		if c.Items[i].SKU == sku {
			return i
		}
	}
	return -1
}

func (c *Cart) remove(sku string) {
	if i := c.indexOf(sku); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}
}

// ItemCount is the total number of units in the cart.
func (c Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Store persists carts as JSON documents in Redis. Every save refreshes the TTL.
type Store struct {
	R   *redis.Client
	TTL time.Duration
}

func (s Store) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func storeKey(id string) string {
	return keyPrefix + id
}

// validID rejects anything that is not a canonical UUID so arbitrary input never reaches Redis keys.
func validID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}

// Load returns the cart with id.
func (s Store) Load(ctx context.Context, id string) (Cart, error) {
	if !validID(id) {
		return Cart{}, ErrNotFound
	}
	raw, err := s.R.Get(ctx, storeKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{}, ErrNotFound
	}
	if err != nil {
		return Cart{}, fmt.Errorf("load cart %s: %w", id, err)
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cart{}, fmt.Errorf("decode cart %s: %w", id, err)
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return c, nil
}

// Save writes c and resets its expiry.
func (s Store) Save(ctx context.Context, c Cart) error {
	if c.Items == nil {
		c.Items = []Item{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", c.ID, err)
	}
	if err := s.R.Set(ctx, storeKey(c.ID), raw, s.ttl()).Err(); err != nil {
		return fmt.Errorf("save cart %s: %w", c.ID, err)
	}
	return nil
}
