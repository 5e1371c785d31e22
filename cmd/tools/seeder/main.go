package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/electromart/internal/catalog"
	"github.com/noah-isme/electromart/internal/obs"
)

func main() {
	_ = godotenv.Load()
	var (
		file        = flag.String("file", "data/products.json", "JSON array of products to upsert")
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
		redisURL    = flag.String("redis-url", os.Getenv("REDIS_URL"), "Redis URL; when set, cached SKU lookups are invalidated")
		skipMigrate = flag.Bool("skip-migrate", false, "do not run catalog migrations first")
		dryRun      = flag.Bool("dry-run", false, "validate the file without touching the database")
	)
	flag.Parse()

	logger := obs.NewLogger("console", "info")
	if err := run(logger, *file, *databaseURL, *redisURL, *skipMigrate, *dryRun); err != nil {
		logger.Fatal().Err(err).Msg("seed catalog")
	}
}

func run(logger zerolog.Logger, file, databaseURL, redisURL string, skipMigrate, dryRun bool) error {
	products, err := readProducts(file)
	if err != nil {
		return err
	}
	logger.Info().Int("products", len(products)).Str("file", file).Msg("products validated")
	if dryRun {
		return nil
	}
	if strings.TrimSpace(databaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}

	if !skipMigrate {
		if err := catalog.Migrate(databaseURL); err != nil {
			return err
		}
		logger.Info().Msg("catalog migrations applied")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := catalog.NewPool(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := catalog.PGStore{Pool: pool}
	skus := make([]string, 0, len(products))
	for _, p := range products {
		if err := store.UpsertProduct(ctx, p); err != nil {
			return err
		}
		skus = append(skus, p.SKU)
	}
	logger.Info().Int("products", len(products)).Msg("products upserted")

	if strings.TrimSpace(redisURL) == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	svc, err := catalog.NewService(store, catalog.NewCache(rdb, time.Minute), logger)
	if err != nil {
		return err
	}
	if err := svc.Invalidate(ctx, skus...); err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	logger.Info().Int("keys", len(skus)).Msg("catalog cache invalidated")
	return nil
}

// readProducts decodes and validates the seed file. Slugs default to the slugified name.
func readProducts(path string) ([]catalog.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var products []catalog.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	seen := make(map[string]struct{}, len(products))
	for i := range products {
		p := &products[i]
		if strings.TrimSpace(p.Slug) == "" {
			p.Slug = catalog.Slugify(p.Name)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("products[%d]: %w", i, err)
		}
		if _, dup := seen[p.SKU]; dup {
			return nil, fmt.Errorf("products[%d]: duplicate sku %q", i, p.SKU)
		}
		seen[p.SKU] = struct{}{}
	}
	return products, nil
}
