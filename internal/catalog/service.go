package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Service fronts the catalog store with a Redis cache on SKU lookups, which the cart and
// checkout hit on every quote.
type Service struct {
	store  Querier
	cache  *Cache
	logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(store Querier, cache *Cache, logger zerolog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("catalog: store is required")
	}
	return &Service{store: store, cache: cache, logger: logger}, nil
}

// GetBySKU returns the product with sku, consulting the cache first.
func (s *Service) GetBySKU(ctx context.Context, sku string) (Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return Product{}, ErrNotFound
	}
	key := skuCacheKey(sku)
	var cached Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("sku", sku).Msg("catalog cache read failed")
	} else if ok {
		return cached, nil
	}

	p, err := s.store.GetProductBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, err
		}
		return Product{}, fmt.Errorf("get product %s: %w", sku, err)
	}
	if err := s.cache.SetJSON(ctx, key, p); err != nil {
		s.logger.Warn().Err(err).Str("sku", sku).Msg("catalog cache write failed")
	}
	return p, nil
}

// GetBySlug returns the product with slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Product{}, ErrNotFound
	}
	p, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, err
		}
		return Product{}, fmt.Errorf("get product by slug %s: %w", slug, err)
	}
	return p, nil
}

// Search returns one page of products matching filter and the total number of matches.
func (s *Service) Search(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	filter.Category = strings.TrimSpace(filter.Category)
	products, total, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("search products: %w", err)
	}
	return products, total, nil
}

// Categories returns the sorted distinct product categories.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// Invalidate drops cached lookups for skus.
func (s *Service) Invalidate(ctx context.Context, skus ...string) error {
	keys := make([]string, 0, len(skus))
	for _, sku := range skus {
		keys = append(keys, skuCacheKey(sku))
	}
	return s.cache.Delete(ctx, keys...)
}
