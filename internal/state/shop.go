package state

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ryanmello/lilli/internal/shop"
)

var _ shop.Store = (*DB)(nil)

// ImportShop upserts every record of ds in one transaction.
func (db *DB) ImportShop(ctx context.Context, ds *shop.Dataset) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, p := range ds.Products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, color, category, quantity, low_stock_alert, stem_length_cm, retail_price, inactive)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				color = excluded.color,
				category = excluded.category,
				quantity = excluded.quantity,
				low_stock_alert = excluded.low_stock_alert,
				stem_length_cm = excluded.stem_length_cm,
				retail_price = excluded.retail_price,
				inactive = excluded.inactive
		`, p.ID, p.Name, p.Color, p.Category, p.Quantity, p.LowStockAlert, p.StemLengthCM, p.RetailPrice, p.Inactive)
		if err != nil {
			return fmt.Errorf("import product %s: %w", p.ID, err)
		}
	}

	for _, c := range ds.Customers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO customers (id, name, email, phone, phone_digits)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				email = excluded.email,
				phone = excluded.phone,
				phone_digits = excluded.phone_digits
		`, c.ID, c.Name, c.Email, c.Phone, shop.Digits(c.Phone))
		if err != nil {
			return fmt.Errorf("import customer %s: %w", c.ID, err)
		}
	}

	for _, o := range ds.Orders {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, customer_id, number, status, total, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				customer_id = excluded.customer_id,
				number = excluded.number,
				status = excluded.status,
				total = excluded.total,
				created_at = excluded.created_at
		`, o.ID, o.CustomerID, o.Number, o.Status, o.Total, formatTime(o.CreatedAt))
		if err != nil {
			return fmt.Errorf("import order %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// CountProducts returns the number of product rows, active or not.
func (db *DB) CountProducts(ctx context.Context) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var n int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// SearchProducts implements shop.Store. Structured filters run in SQL; the
// free-text match runs over the result.
func (db *DB) SearchProducts(ctx context.Context, q shop.ProductQuery) ([]shop.Product, error) {
	var where []string
	var args []any
	if !q.IncludeInactive {
		where = append(where, "inactive = 0")
	}
	if q.Category != "" {
		where = append(where, "lower(category) = lower(?)")
		args = append(args, q.Category)
	}
	if q.Color != "" {
		where = append(where, "lower(color) = lower(?)")
		args = append(args, q.Color)
	}
	if q.LowStockOnly {
		where = append(where, "quantity <= low_stock_alert")
	}

	query := `SELECT id, name, color, category, quantity, low_stock_alert, stem_length_cm, retail_price, inactive FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	db.mu.RLock()
	defer db.mu.RUnlock()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	var products []shop.Product
	for rows.Next() {
		var p shop.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Color, &p.Category, &p.Quantity, &p.LowStockAlert, &p.StemLengthCM, &p.RetailPrice, &p.Inactive); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}

	// SQL already applied the structured filters; Filter adds the text match.
	return shop.Filter(products, shop.ProductQuery{Text: q.Text, IncludeInactive: true}), nil
}

// FindCustomers implements shop.Store.
func (db *DB) FindCustomers(ctx context.Context, query string) ([]shop.Customer, error) {
	terms := shop.CustomerTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var conds []string
	var args []any
	for _, t := range terms {
		conds = append(conds, "(' ' || lower(name) || ' ') LIKE ? OR lower(email) = ? OR (phone_digits != '' AND phone_digits = ?)")
		args = append(args, "% "+t+" %", t, t)
	}

	db.mu.RLock()
	defer db.mu.RUnlock()
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, name, email, phone FROM customers WHERE "+strings.Join(conds, " OR ")+" ORDER BY name",
		args...)
	if err != nil {
		return nil, fmt.Errorf("find customers: %w", err)
	}
	defer rows.Close()

	var out []shop.Customer
	for rows.Next() {
		var c shop.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CustomerOrders implements shop.Store.
func (db *DB) CustomerOrders(ctx context.Context, customerID string, limit int) ([]shop.Order, error) {
	query := `SELECT id, customer_id, number, status, total, created_at FROM orders
		WHERE customer_id = ? ORDER BY created_at DESC`
	args := []any{customerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	db.mu.RLock()
	defer db.mu.RUnlock()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orders for %s: %w", customerID, err)
	}
	defer rows.Close()

	var out []shop.Order
	for rows.Next() {
		var o shop.Order
		var created string
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Number, &o.Status, &o.Total, &created); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.CreatedAt = parseOrderTime(created)
		out = append(out, o)
	}
	return out, rows.Err()
}

func parseOrderTime(s string) time.Time {
	t, err := parseTime(s)
	if err != nil {
		return time.Time{}
	}
	return t
}
