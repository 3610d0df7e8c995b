package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/tendant/simple-product/pkg/catalog"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Schema creates the product table and its case-insensitive title index.
// owner_id is cleared through ClearOwner since users live outside this store.
const Schema = `
CREATE TABLE IF NOT EXISTS product (
	id          BIGSERIAL PRIMARY KEY,
	owner_id    BIGINT,
	title       VARCHAR(120) NOT NULL,
	content     TEXT,
	price       NUMERIC(15, 2) NOT NULL DEFAULT 29.99,
	public      BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS product_title_lower_key ON product (lower(title));
CREATE INDEX IF NOT EXISTS product_owner_id_idx ON product (owner_id);
`

const productColumns = `id, owner_id, title, COALESCE(content, ''), price::text, public, created_at, updated_at`

// Repository implements catalog.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate applies Schema. Safe to run on every start.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.ErrProductNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return catalog.ErrDuplicateTitle
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "22003": // numeric_value_out_of_range
			return fmt.Errorf("price out of range: %s", pgErr.Message)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*catalog.Product, error) {
	var (
		product catalog.Product
		price   string
	)
	err := row.Scan(
		&product.ID, &product.OwnerID, &product.Title, &product.Content,
		&price, &product.Public, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, err
	}

	product.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
	}
	return &product, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *catalog.Product) error {
	query := `
		INSERT INTO product (owner_id, title, content, price, public, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		product.OwnerID, product.Title, product.Content,
		product.Price.StringFixed(catalog.PriceScale), product.Public,
		product.CreatedAt, product.UpdatedAt,
	).Scan(&product.ID)
	if err != nil {
		return r.handlePostgresError("create product", err)
	}

	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	query := `SELECT ` + productColumns + ` FROM product WHERE id = $1`

	product, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get product", err)
	}
	return product, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, product *catalog.Product) error {
	query := `
		UPDATE product SET
			owner_id = $2, title = $3, content = $4, price = $5::numeric,
			public = $6, updated_at = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		product.ID, product.OwnerID, product.Title, product.Content,
		product.Price.StringFixed(catalog.PriceScale), product.Public, product.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update product", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM product WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func (r *Repository) ListProducts(ctx context.Context, limit, offset int) ([]*catalog.Product, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM product`).Scan(&total); err != nil {
		return nil, 0, r.handlePostgresError("count products", err)
	}

	query := `SELECT ` + productColumns + ` FROM product ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, r.handlePostgresError("list products", err)
	}
	defer rows.Close()

	products := []*catalog.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, r.handlePostgresError("scan product", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, r.handlePostgresError("list products", err)
	}

	return products, total, nil
}

func (r *Repository) FindByTitle(ctx context.Context, title string) (*catalog.Product, error) {
	query := `SELECT ` + productColumns + ` FROM product WHERE lower(title) = lower($1)`

	product, err := scanProduct(r.db.QueryRow(ctx, query, title))
	if err != nil {
		return nil, r.handlePostgresError("find product by title", err)
	}
	return product, nil
}

func (r *Repository) ClearOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	query := `UPDATE product SET owner_id = NULL, updated_at = NOW() WHERE owner_id = $1 RETURNING id`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, r.handlePostgresError("clear owner", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, r.handlePostgresError("clear owner", err)
	}
	return ids, nil
}

var _ catalog.Repository = (*Repository)(nil)
