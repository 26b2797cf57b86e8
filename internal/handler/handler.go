// Package handler exposes the marketplace core over HTTP. Routing uses
// method-qualified ServeMux patterns; request identity is resolved once per
// request by the security middleware and enforced per operation by the
// authorization policy.
package handler

import (
	"net/http"

	"github.com/averline/marketplace/internal/domain/cart"
	"github.com/averline/marketplace/internal/domain/order"
	"github.com/averline/marketplace/internal/domain/product"
)

// Handler bundles the domain services behind the HTTP surface.
type Handler struct {
	carts    *cart.Service
	orders   *order.Service
	products *product.Service
}

// New constructs a Handler with the required domain services.
func New(carts *cart.Service, orders *order.Service, products *product.Service) *Handler {
	return &Handler{
		carts:    carts,
		orders:   orders,
		products: products,
	}
}

// Routes returns the API routing table. The caller mounts it under /api/ and
// wraps it with the security middleware.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("POST /api/cart/items", h.addCartItem)
	mux.HandleFunc("PUT /api/cart/items/{productID}", h.setCartItemQuantity)
	mux.HandleFunc("DELETE /api/cart/items/{productID}", h.removeCartItem)
	mux.HandleFunc("DELETE /api/cart", h.clearCart)

	mux.HandleFunc("POST /api/orders", h.checkout)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("PUT /api/orders/{id}/status", h.updateOrderStatus)

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("POST /api/products", h.createProduct)
	mux.HandleFunc("PUT /api/products/{id}", h.updateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", h.deleteProduct)

	return mux
}
