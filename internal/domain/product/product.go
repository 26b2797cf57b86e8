// Package product defines the catalog entity and the snapshot-read contract
// the checkout engine consumes. Prices read here are frozen into order items
// at checkout time and never revisited.
package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item offered by a single vendor.
type Product struct {
	ID        string
	VendorID  string
	Name      string
	Category  string
	Price     decimal.Decimal
	CreatedAt time.Time
}

// Repository defines catalog reads plus the vendor-gated management writes.
// The checkout path uses only the read half, as a point-in-time snapshot with
// no coordination against concurrent catalog changes.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)

	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
