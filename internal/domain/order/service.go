package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/averline/marketplace/internal/domain/auth"
	"github.com/averline/marketplace/internal/domain/cart"
	"github.com/averline/marketplace/internal/domain/product"
)

// Service is the order transaction engine: it converts carts into orders and
// drives the status lifecycle under the authorization policy.
type Service struct {
	carts    cart.Repository
	products product.Repository
	orders   Repository
	now      func() time.Time
}

// NewService creates an order Service with the stores it orchestrates.
func NewService(carts cart.Repository, products product.Repository, orders Repository) *Service {
	return &Service{
		carts:    carts,
		products: products,
		orders:   orders,
		now:      time.Now,
	}
}

// Checkout converts the user's cart into an order.
//
// The cart is snapshotted against the catalog in a single batch read; any
// missing product aborts the whole checkout with nothing written. The order
// and its items commit atomically, and only after that commit is the cart
// cleared. A failed clear is logged and tolerated: the committed order is
// authoritative and the stale cart reconciles on its next read.
func (s *Service) Checkout(ctx context.Context, userID string, meta Metadata) (*Order, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]Item, len(c.Items))
	total := decimal.Zero
	for i, ci := range c.Items {
		p, ok := byID[ci.ProductID]
		if !ok {
			return nil, &ProductUnavailableError{ProductID: ci.ProductID}
		}
		subtotal := p.Price.Mul(decimal.NewFromInt(int64(ci.Quantity)))
		items[i] = Item{
			ProductID: ci.ProductID,
			VendorID:  p.VendorID,
			Quantity:  ci.Quantity,
			Price:     p.Price,
			Subtotal:  subtotal,
		}
		total = total.Add(subtotal)
	}

	o := &Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    StatusPending,
		Items:     items,
		Total:     total,
		Metadata:  meta,
		CreatedAt: s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	// The order is committed; a failed clear must not fail the checkout.
	if err := s.carts.Clear(ctx, c.ID); err != nil {
		zctx.From(ctx).Warn("cart clear after checkout failed",
			zap.String("cart_id", c.ID),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}

	return o, nil
}

// List returns the orders visible to the actor: own purchases for customers,
// orders containing at least one own product for vendors, everything for
// admins.
func (s *Service) List(ctx context.Context, actor auth.Actor) ([]Order, error) {
	scope, err := auth.ListOrdersScope(actor)
	if err != nil {
		return nil, err
	}
	switch scope {
	case auth.ScopeOwn:
		return s.orders.ListByUser(ctx, actor.UserID)
	case auth.ScopeVendor:
		return s.orders.ListByVendor(ctx, actor.UserID)
	case auth.ScopeAll:
		return s.orders.ListAll(ctx)
	default:
		return nil, auth.ErrUnauthorized
	}
}

// Get returns a single order. Existence is checked before authorization, so a
// missing id is NotFound for everyone and an invisible order is a distinct
// authorization failure.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.CanReadOrder(actor, o.UserID, o.VendorIDs()); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateStatus transitions an order's fulfilment status. Authority: vendors
// only on orders containing their products, admins on any order, customers
// never. The transition itself must be legal under the state machine; the
// store applies it as a compare-and-set so a concurrent transition from the
// same state cannot be applied twice.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Actor, id, label string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.CanUpdateOrderStatus(actor, o.VendorIDs()); err != nil {
		return nil, err
	}

	next, ok := ParseStatus(label)
	if !ok {
		return nil, &InvalidTransitionError{From: o.Status, To: label}
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, &InvalidTransitionError{From: o.Status, To: label}
	}

	updated, err := s.orders.UpdateStatus(ctx, id, o.Status, next)
	if err != nil {
		return nil, errors.Wrapf(err, "update order %s status", id)
	}
	if !updated {
		// The status moved under us; the transition we validated no longer
		// applies.
		return nil, &InvalidTransitionError{From: o.Status, To: label}
	}

	o.Status = next
	return o, nil
}
