package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/averline/marketplace/internal/domain/auth"
)

// InvalidFieldError reports a validation failure naming the offending field.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CreateInput holds the caller-supplied fields for a new product.
type CreateInput struct {
	Name     string
	Category string
	Price    decimal.Decimal
	// VendorID is honoured only for admins; vendors always create products
	// under their own id.
	VendorID string
}

// UpdateInput holds the mutable fields of an existing product.
type UpdateInput struct {
	Name     string
	Category string
	Price    decimal.Decimal
}

// Service applies the authorization policy to catalog writes. Reads are
// public and go straight to the repository.
type Service struct {
	products Repository
}

// NewService creates a product Service over the given repository.
func NewService(products Repository) *Service {
	return &Service{products: products}
}

// List returns the full catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.products.List(ctx)
}

// Get returns one product or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// Create adds a product to the catalog. Vendors create under their own id;
// admins may create on behalf of any vendor.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*Product, error) {
	if err := auth.CanCreateProduct(actor); err != nil {
		return nil, err
	}
	if err := validateFields(in.Name, in.Price); err != nil {
		return nil, err
	}

	vendorID := actor.UserID
	if actor.Role == auth.RoleAdmin && in.VendorID != "" {
		vendorID = in.VendorID
	}

	p := &Product{
		ID:        uuid.New().String(),
		VendorID:  vendorID,
		Name:      in.Name,
		Category:  in.Category,
		Price:     in.Price,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Update edits an existing product. Only the owning vendor or an admin may.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id string, in UpdateInput) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.CanManageProduct(actor, p.VendorID); err != nil {
		return nil, err
	}
	if err := validateFields(in.Name, in.Price); err != nil {
		return nil, err
	}

	p.Name = in.Name
	p.Category = in.Category
	p.Price = in.Price
	if err := s.products.Update(ctx, p); err != nil {
		return nil, errors.Wrapf(err, "update product %s", id)
	}
	return p, nil
}

// Delete removes a product from the catalog. Orders that already reference it
// keep their captured price and vendor.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id string) error {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.CanManageProduct(actor, p.VendorID); err != nil {
		return err
	}
	return s.products.Delete(ctx, id)
}

func validateFields(name string, price decimal.Decimal) error {
	if name == "" {
		return &InvalidFieldError{Field: "name", Reason: "must not be empty"}
	}
	if price.IsNegative() || price.IsZero() {
		return &InvalidFieldError{Field: "price", Reason: "must be positive"}
	}
	return nil
}
