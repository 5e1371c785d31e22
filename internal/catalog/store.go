package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/electromart/internal/obs"
)

// ErrNotFound is returned when no product matches a lookup.
var ErrNotFound = errors.New("catalog: product not found")

// Querier is the narrow data access surface used by Service.
type Querier interface {
	GetProductBySKU(ctx context.Context, sku string) (Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// NewPool opens a pgx pool with query tracing enabled.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	return pool, nil
}

// PGStore implements Querier on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const productColumns = `id, sku, slug, name, category, description, price::text, stock, image`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.SKU, &p.Slug, &p.Name, &p.Category, &p.Description, &price, &p.Stock, &p.Image); err != nil {
		return Product{}, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("product %s price %q: %w", p.SKU, price, err)
	}
	p.Price = parsed
	return p, nil
}

func (s PGStore) getOne(ctx context.Context, where, arg string) (Product, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE `+where, arg)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// GetProductBySKU returns the product with the exact sku.
func (s PGStore) GetProductBySKU(ctx context.Context, sku string) (Product, error) {
	return s.getOne(ctx, `sku = $1`, sku)
}

// GetProductBySlug returns the product with slug.
func (s PGStore) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	return s.getOne(ctx, `slug = $1`, slug)
}

// ListProducts searches name, category, description and sku case-insensitively and returns
// one page plus the total match count.
func (s PGStore) ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%[1]d OR category ILIKE $%[1]d OR description ILIKE $%[1]d OR sku ILIKE $%[1]d)", n))
	}
	if c := strings.TrimSpace(filter.Category); c != "" && c != "all" {
		args = append(args, c)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM products WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, max(filter.Offset, 0))
	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY name, sku LIMIT $%d OFFSET $%d`,
		productColumns, clause, len(args)-1, len(args))
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// ListCategories returns the distinct non-empty categories in ascending order.
func (s PGStore) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// UpsertProduct inserts p or updates the row with the same id.
func (s PGStore) UpsertProduct(ctx context.Context, p Product) error {
	_, err := s.Pool.Exec(ctx, `
INSERT INTO products (id, sku, slug, name, category, description, price, stock, image, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, now())
ON CONFLICT (id) DO UPDATE SET
	sku = EXCLUDED.sku,
	slug = EXCLUDED.slug,
	name = EXCLUDED.name,
	category = EXCLUDED.category,
	description = EXCLUDED.description,
	price = EXCLUDED.price,
	stock = EXCLUDED.stock,
	image = EXCLUDED.image,
	updated_at = now()`,
		p.ID, p.SKU, p.Slug, p.Name, p.Category, p.Description, p.Price.String(), p.Stock, p.Image)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.SKU, err)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
