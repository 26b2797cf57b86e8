// Package order holds the immutable order record and the checkout engine
// that converts a cart into one.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when checkout runs against a cart with no
	// items. Nothing is written in that case.
	ErrEmptyCart = errors.New("cart is empty")
)

// ProductUnavailableError aborts a checkout whose cart references a product
// the catalog no longer has. The whole checkout fails; no partial order is
// written.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is no longer available", e.ProductID)
}

// Order is the permanent record of a purchase. Everything except Status is
// immutable after creation.
type Order struct {
	ID        string
	UserID    string
	Status    Status
	Items     []Item
	Total     decimal.Decimal
	Metadata  Metadata
	CreatedAt time.Time
}

// Item is one purchased line. Price is the catalog snapshot taken at
// checkout; Subtotal = Price × Quantity. VendorID is captured alongside so
// vendor-scoped visibility survives later catalog changes.
type Item struct {
	ProductID string
	VendorID  string
	Quantity  int
	Price     decimal.Decimal
	Subtotal  decimal.Decimal
}

// Metadata carries the shipping/contact fields supplied at checkout. The
// engine stores them verbatim and never interprets them.
type Metadata struct {
	ShippingAddress string
	ContactEmail    string
	ContactPhone    string
}

// VendorIDs returns the distinct vendors referenced by the order's items.
func (o *Order) VendorIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.VendorID]; ok {
			continue
		}
		seen[item.VendorID] = struct{}{}
		ids = append(ids, item.VendorID)
	}
	return ids
}

// Repository defines persistence for orders.
type Repository interface {
	// Create persists the order and all its items as a single atomic unit.
	// A concurrent reader must never observe the order without its items.
	Create(ctx context.Context, o *Order) error
	// GetByID returns one order with its items, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Order, error)
	// ListByUser returns orders purchased by the user, newest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// ListByVendor returns orders containing at least one item of the vendor.
	ListByVendor(ctx context.Context, vendorID string) ([]Order, error)
	// ListAll returns every order, newest first.
	ListAll(ctx context.Context) ([]Order, error)
	// UpdateStatus transitions id from one status to another. It reports
	// false when no row matched (id, from), which means the order is gone or
	// its status moved concurrently.
	UpdateStatus(ctx context.Context, id string, from, to Status) (bool, error)
}
