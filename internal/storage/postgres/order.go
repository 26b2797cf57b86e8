package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averline/marketplace/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The order
// row and all its item rows are written in one transaction, so readers never
// observe a partial order.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and its items atomically.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, user_id, status, total, shipping_address, contact_email, contact_phone, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.UserID, string(o.Status), o.Total,
		o.Metadata.ShippingAddress, o.Metadata.ContactEmail, o.Metadata.ContactPhone,
		o.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "insert order %s", o.ID)
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(
			`INSERT INTO order_items (order_id, product_id, vendor_id, quantity, price, subtotal)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, item.ProductID, item.VendorID, item.Quantity, item.Price, item.Subtotal)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, "insert items for order %s", o.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit order")
	}
	return nil
}

const orderColumns = `id, user_id, status, total, shipping_address, contact_email, contact_phone, created_at`

func scanOrder(row pgx.Row) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &status, &o.Total,
		&o.Metadata.ShippingAddress, &o.Metadata.ContactEmail, &o.Metadata.ContactPhone,
		&o.CreatedAt)
	o.Status = order.Status(status)
	return o, err
}

// GetByID returns one order with all its items, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %s", id)
	}

	items, err := r.loadItems(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	return &o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
}

// ListByVendor returns orders containing at least one of the vendor's items,
// newest first. Membership comes from the vendor snapshot on order_items, not
// the live catalog.
func (r *OrderRepository) ListByVendor(ctx context.Context, vendorID string) ([]order.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE id IN (SELECT DISTINCT order_id FROM order_items WHERE vendor_id = $1)
		 ORDER BY created_at DESC`,
		vendorID)
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

// UpdateStatus applies a compare-and-set transition. It reports false when no
// row matched (id, from): the order is gone or its status moved concurrently.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, errors.Wrapf(err, "update status of order %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// loadItems fetches the items for the given order ids in one query, grouped
// by order id.
func (r *OrderRepository) loadItems(ctx context.Context, ids []string) (map[string][]order.Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT order_id, product_id, vendor_id, quantity, price, subtotal
		 FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, product_id`,
		ids)
	if err != nil {
		return nil, errors.Wrap(err, "load order items")
	}
	defer rows.Close()

	items := make(map[string][]order.Item, len(ids))
	for rows.Next() {
		var (
			orderID string
			item    order.Item
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.VendorID,
			&item.Quantity, &item.Price, &item.Subtotal); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		items[orderID] = append(items[orderID], item)
	}
	return items, rows.Err()
}
