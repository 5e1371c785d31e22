package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/electromart/internal/cart"
	"github.com/noah-isme/electromart/internal/catalog"
	"github.com/noah-isme/electromart/internal/lock"
	"github.com/noah-isme/electromart/internal/pricing"
)

type fakeCatalog map[string]catalog.Product

func (f fakeCatalog) GetBySKU(_ context.Context, sku string) (catalog.Product, error) {
	p, ok := f[sku]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

type staticPolicy struct{ policy pricing.Policy }

func (s staticPolicy) Policy() pricing.Policy { return s.policy }

func newCarts(t *testing.T) *cart.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	policy, err := pricing.ParsePolicy([]byte(`{
		"eligibleSkus": ["ULT44"],
		"global": {"percent": 10},
		"coupons": [{"code": "SAVE5", "percent": 5}]
	}`))
	require.NoError(t, err)
	return &cart.Service{
		Store:  cart.Store{R: rdb, TTL: time.Hour},
		Locker: lock.Locker{R: rdb, Prefix: "lock:cart:"},
		Catalog: fakeCatalog{
			"ULT44":  {ID: "p1", SKU: "ULT44", Name: "Ultrabook 14", Price: decimal.RequireFromString("1650"), Stock: 3},
			"TRI-01": {ID: "p2", SKU: "TRI-01", Name: "Tripod", Price: decimal.RequireFromString("99.99"), Stock: 8},
		},
		Policy: staticPolicy{policy: policy},
		Logger: zerolog.Nop(),
	}
}

func validCustomer() Customer {
	return Customer{
		Name:    "Rahim Uddin",
		Email:   "rahim@example.com",
		Phone:   "+8801700000000",
		Address: "House 12, Road 5",
		City:    "Dhaka",
	}
}

func TestPlaceBuildsSnapshotAndClearsCart(t *testing.T) {
	carts := newCarts(t)
	ctx := context.Background()
	c, err := carts.Create(ctx)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, c.ID, "ULT44", 2)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, c.ID, "TRI-01", 1)
	require.NoError(t, err)
	_, _, err = carts.ApplyCoupon(ctx, c.ID, "SAVE5")
	require.NoError(t, err)

	var logs bytes.Buffer
	svc, err := NewService(carts, zerolog.New(&logs))
	require.NoError(t, err)
	svc.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	customer := validCustomer()
	customer.Name = "  Rahim Uddin "
	order, err := svc.Place(ctx, Input{CartID: c.ID, Customer: customer})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(order.ID, "ORD-"))
	require.Equal(t, "Rahim Uddin", order.Customer.Name)
	require.Equal(t, "SAVE5", order.Coupon)
	require.Len(t, order.Items, 2)

	laptop := order.Items[0]
	require.Equal(t, "1410.75", laptop.UnitPrice.String())
	require.Equal(t, "2821.5", laptop.LineTotal.String())
	require.Equal(t, "1650", laptop.OriginalPrice.String())
	require.Equal(t, "478.5", laptop.Savings.String())

	tripod := order.Items[1]
	require.Equal(t, "94.99", tripod.UnitPrice.String())

	require.Equal(t, "3399.99", order.Totals.Subtotal.String())
	require.Equal(t, "483.5", order.Totals.Discount.String())
	require.Equal(t, "2916.49", order.Totals.Total.String())

	emptied, err := carts.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, emptied.Items)
	require.Empty(t, emptied.CouponCode)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	require.Equal(t, "order placed", entry["message"])
	require.Equal(t, order.ID, entry["order_id"])
	require.Equal(t, "2916.49", entry["total"])
	require.NotContains(t, logs.String(), "rahim@example.com")
}

func TestPlaceValidatesCustomer(t *testing.T) {
	svc, err := NewService(newCarts(t), zerolog.Nop())
	require.NoError(t, err)

	customer := validCustomer()
	customer.Email = "not-an-email"
	customer.City = "   "
	_, err = svc.Place(context.Background(), Input{CartID: "x", Customer: customer})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Equal(t, map[string]string{
		"email": "email is not a valid address",
		"city":  "city is required",
	}, verr.Fields)
}

func TestPlaceEmptyCart(t *testing.T) {
	carts := newCarts(t)
	c, err := carts.Create(context.Background())
	require.NoError(t, err)
	svc, err := NewService(carts, zerolog.Nop())
	require.NoError(t, err)

	_, err = svc.Place(context.Background(), Input{CartID: c.ID, Customer: validCustomer()})
	require.ErrorIs(t, err, cart.ErrEmpty)
}

func TestCheckoutHandler(t *testing.T) {
	carts := newCarts(t)
	ctx := context.Background()
	c, err := carts.Create(ctx)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, c.ID, "TRI-01", 3)
	require.NoError(t, err)

	svc, err := NewService(carts, zerolog.Nop())
	require.NoError(t, err)
	h := &Handler{Svc: svc, Logger: zerolog.Nop()}

	post := func(body any) *httptest.ResponseRecorder {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(raw))
		rec := httptest.NewRecorder()
		h.Checkout(rec, req)
		return rec
	}

	rec := post(Input{CartID: c.ID, Customer: Customer{Name: "Rahim"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"phone":"phone is required"`)

	rec = post(Input{CartID: "00000000-0000-0000-0000-000000000000", Customer: validCustomer()})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(Input{CartID: c.ID, Customer: validCustomer()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Data struct {
			ID     string `json:"id"`
			Totals struct {
				Subtotal string `json:"subtotal"`
				Discount string `json:"discount"`
				Total    string `json:"total"`
			} `json:"totals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	require.Equal(t, "299.97", resp.Data.Totals.Subtotal)
	require.Equal(t, "0", resp.Data.Totals.Discount)
	require.Equal(t, "299.97", resp.Data.Totals.Total)

	rec = post(Input{CartID: c.ID, Customer: validCustomer()})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "CART_EMPTY")
}
