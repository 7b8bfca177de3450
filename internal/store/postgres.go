package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/storepulse/sales-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id       BIGINT PRIMARY KEY,
	name     TEXT NOT NULL,
	category TEXT NOT NULL,
	price    NUMERIC(12, 2) NOT NULL,
	active   BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS orders (
	id         UUID PRIMARY KEY,
	product_id BIGINT NOT NULL REFERENCES products(id),
	quantity   BIGINT NOT NULL CHECK (quantity > 0),
	unit_price NUMERIC(12, 2) NOT NULL CHECK (unit_price >= 0),
	total      NUMERIC(14, 2) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_created_at_idx ON orders (created_at);`

// EnsureSchema creates the tables if missing and inserts seed products
// that are not yet present.
func (s *PostgresStore) EnsureSchema(ctx context.Context, seed []model.Product) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	for _, p := range seed {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO products (id, name, category, price, active)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5)
			 ON CONFLICT (id) DO NOTHING`,
			p.ID, p.Name, p.Category, p.Price.String(), p.Active)
		if err != nil {
			return fmt.Errorf("seed product %d: %w", p.ID, err)
		}
	}
	return nil
}

func (s *PostgresStore) AppendOrder(ctx context.Context, o *model.Order) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (id, product_id, quantity, unit_price, total, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6)`,
		o.ID, o.ProductID, o.Quantity,
		o.UnitPrice.String(), o.Total.String(),
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append order %s: %w", o.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListOrderLines(ctx context.Context) ([]model.OrderLine, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT o.id::TEXT, o.product_id, o.quantity,
		        o.unit_price::TEXT, o.total::TEXT, o.created_at,
		        p.name, p.category, p.price::TEXT, p.active
		 FROM orders o
		 JOIN products p ON p.id = o.product_id
		 ORDER BY o.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []model.OrderLine
	for rows.Next() {
		var l model.OrderLine
		var unitPriceS, totalS, priceS string
		if err := rows.Scan(&l.Order.ID, &l.Order.ProductID, &l.Order.Quantity,
			&unitPriceS, &totalS, &l.Order.CreatedAt,
			&l.Product.Name, &l.Product.Category, &priceS, &l.Product.Active); err != nil {
			return nil, err
		}
		l.Order.UnitPrice, _ = decimal.NewFromString(unitPriceS)
		l.Order.Total, _ = decimal.NewFromString(totalS)
		l.Product.ID = l.Order.ProductID
		l.Product.Price, _ = decimal.NewFromString(priceS)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *PostgresStore) ListOrdersSince(ctx context.Context, since time.Time) ([]model.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, product_id, quantity, unit_price::TEXT, total::TEXT, created_at
		 FROM orders WHERE created_at >= $1 ORDER BY created_at`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var unitPriceS, totalS string
		if err := rows.Scan(&o.ID, &o.ProductID, &o.Quantity,
			&unitPriceS, &totalS, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.UnitPrice, _ = decimal.NewFromString(unitPriceS)
		o.Total, _ = decimal.NewFromString(totalS)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	var p model.Product
	var priceS string

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, category, price::TEXT, active
		 FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Category, &priceS, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrProductNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	p.Price, _ = decimal.NewFromString(priceS)
	return &p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, category, price::TEXT, active
		 FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *PostgresStore) ListActiveByCategory(ctx context.Context, category string) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, category, price::TEXT, active
		 FROM products WHERE active AND category = $1 ORDER BY id`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

// pgxRows is the subset of pgx.Rows used by the scanners.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanProducts(rows pgxRows) ([]model.Product, error) {
	var products []model.Product
	for rows.Next() {
		var p model.Product
		var priceS string
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &priceS, &p.Active); err != nil {
			return nil, err
		}
		p.Price, _ = decimal.NewFromString(priceS)
		products = append(products, p)
	}
	return products, rows.Err()
}
