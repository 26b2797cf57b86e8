package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/averline/marketplace/internal/domain/product"
)

// DetailedItem is a cart item annotated with its current catalog snapshot.
// Product is nil when the catalog no longer has the product, which can happen
// legitimately (vendor removed it, or the cart is stale after a checkout
// whose clear step failed) and must not break cart reads.
type DetailedItem struct {
	Item
	Product *product.Product
}

// Service implements the cart operations. Ownership is implicit: every
// operation acts on the calling user's own cart.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service with its store and the catalog reader.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products}
}

// GetCart returns the user's cart with each item resolved against the
// catalog. The cart is created empty on first access.
func (s *Service) GetCart(ctx context.Context, userID string) (*Cart, []DetailedItem, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get cart")
	}

	details := make([]DetailedItem, len(c.Items))
	for i, item := range c.Items {
		p, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				details[i] = DetailedItem{Item: item}
				continue
			}
			return nil, nil, errors.Wrapf(err, "resolve product %s", item.ProductID)
		}
		details[i] = DetailedItem{Item: item, Product: p}
	}
	return c, details, nil
}

// AddItem adds quantity of a product to the user's cart, merging with any
// existing entry for the same product. The product must exist in the catalog.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*Item, error) {
	if quantity <= 0 {
		return nil, &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	item, err := s.carts.AddItem(ctx, c.ID, productID, quantity)
	if err != nil {
		return nil, errors.Wrapf(err, "add product %s", productID)
	}
	return item, nil
}

// SetItemQuantity replaces the quantity of an item already in the cart.
func (s *Service) SetItemQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}
	return s.carts.SetItemQuantity(ctx, c.ID, productID, quantity)
}

// RemoveItem deletes one item from the cart. Removing an absent item reports
// ErrItemNotFound.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}
	return s.carts.RemoveItem(ctx, c.ID, productID)
}

// Clear empties the cart. The cart itself survives.
func (s *Service) Clear(ctx context.Context, userID string) error {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}
	return s.carts.Clear(ctx, c.ID)
}
