package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averline/marketplace/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Per-item
// read-modify-write is pushed into single upsert statements so concurrent
// mutations of the same cart never lose an update.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetOrCreate returns the user's cart with its items, inserting an empty cart
// on first access. The upsert races cleanly: concurrent first accesses for
// the same user converge on one row.
func (r *CartRepository) GetOrCreate(ctx context.Context, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := r.pool.QueryRow(ctx,
		`INSERT INTO carts (id, user_id)
		 VALUES (gen_random_uuid()::text, $1)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING id, user_id, created_at, updated_at`,
		userID).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "get or create cart for user %s", userID)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT product_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY product_id`,
		c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart items")
	}
	defer rows.Close()

	for rows.Next() {
		var item cart.Item
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, errors.Wrap(err, "scan cart item")
		}
		c.Items = append(c.Items, item)
	}
	return &c, rows.Err()
}

// AddItem merges quantity into the existing row for (cart, product) or
// inserts a new one, atomically.
func (r *CartRepository) AddItem(ctx context.Context, cartID, productID string, quantity int) (*cart.Item, error) {
	item := cart.Item{ProductID: productID}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cart_items (cart_id, product_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (cart_id, product_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity,
		               updated_at = now()
		 RETURNING quantity`,
		cartID, productID, quantity).Scan(&item.Quantity)
	if err != nil {
		return nil, errors.Wrapf(err, "upsert cart item %s", productID)
	}
	return &item, nil
}

// SetItemQuantity replaces the quantity of an existing item.
func (r *CartRepository) SetItemQuantity(ctx context.Context, cartID, productID string, quantity int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = $3, updated_at = now()
		 WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID, quantity)
	if err != nil {
		return errors.Wrapf(err, "set quantity for cart item %s", productID)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// RemoveItem deletes one item; a second removal of the same item reports
// cart.ErrItemNotFound.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, productID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID)
	if err != nil {
		return errors.Wrapf(err, "remove cart item %s", productID)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// Clear removes every item from the cart. The cart row survives. Clearing an
// empty cart is a no-op.
func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return errors.Wrapf(err, "clear cart %s", cartID)
	}
	return nil
}
