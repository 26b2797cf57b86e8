// Package cart owns the per-user pre-purchase cart: one active cart per
// user, created lazily, emptied on checkout, never deleted.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// ErrItemNotFound is returned when a cart item for the given product does not
// exist. A second removal of the same item reports this rather than
// succeeding silently, so callers can tell "already gone" from "never there".
var ErrItemNotFound = errors.New("cart item not found")

// InvalidQuantityError reports a non-positive quantity for a cart item.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be a positive integer for product %s, got %d", e.ProductID, e.Quantity)
}

// Cart holds a user's desired products and quantities. A cart with no items
// is valid and means "empty".
type Cart struct {
	ID        string
	UserID    string
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is one (product, quantity) entry. At most one Item exists per product
// in a cart; adding the same product again merges quantities.
type Item struct {
	ProductID string
	Quantity  int
}

// Repository defines persistence for carts. Implementations must keep
// per-item read-modify-write atomic: two concurrent AddItem calls for the
// same (cart, product) must both be reflected in the final quantity.
type Repository interface {
	// GetOrCreate returns the user's cart, creating an empty one on first
	// access. Idempotent.
	GetOrCreate(ctx context.Context, userID string) (*Cart, error)
	// AddItem merges quantity into the existing item for the product, or
	// inserts a new item. Returns the resulting item.
	AddItem(ctx context.Context, cartID, productID string, quantity int) (*Item, error)
	// SetItemQuantity replaces the quantity of an existing item.
	// Returns ErrItemNotFound if the product is not in the cart.
	SetItemQuantity(ctx context.Context, cartID, productID string, quantity int) error
	// RemoveItem deletes the item. Returns ErrItemNotFound if absent.
	RemoveItem(ctx context.Context, cartID, productID string) error
	// Clear removes all items. Clearing an already-empty cart succeeds.
	Clear(ctx context.Context, cartID string) error
}
