package catalog

import (
	"context"
	"errors"

	"github.com/noah-isme/electromart/internal/resilience"
)

// GuardedStore trips a breaker when the underlying store keeps failing, so catalog reads
// fail fast instead of queueing on a dead database.
type GuardedStore struct {
	Store   Querier
	Breaker *resilience.Breaker
}

func storeFailure(err error) bool {
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled)
}

func (g GuardedStore) GetProductBySKU(ctx context.Context, sku string) (p Product, err error) {
	err = g.Breaker.Do(ctx, func(ctx context.Context) error {
		p, err = g.Store.GetProductBySKU(ctx, sku)
		return err
	}, storeFailure)
	return p, err
}

func (g GuardedStore) GetProductBySlug(ctx context.Context, slug string) (p Product, err error) {
	err = g.Breaker.Do(ctx, func(ctx context.Context) error {
		p, err = g.Store.GetProductBySlug(ctx, slug)
		return err
	}, storeFailure)
	return p, err
}

func (g GuardedStore) ListProducts(ctx context.Context, filter ListFilter) (products []Product, total int, err error) {
	err = g.Breaker.Do(ctx, func(ctx context.Context) error {
		products, total, err = g.Store.ListProducts(ctx, filter)
		return err
	}, storeFailure)
	return products, total, err
}

func (g GuardedStore) ListCategories(ctx context.Context) (categories []string, err error) {
	err = g.Breaker.Do(ctx, func(ctx context.Context) error {
		categories, err = g.Store.ListCategories(ctx)
		return err
	}, storeFailure)
	return categories, err
}
