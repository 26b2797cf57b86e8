package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/averline/marketplace/internal/domain/auth"
	"github.com/averline/marketplace/internal/domain/cart"
)

type cartResponse struct {
	ID     string             `json:"id"`
	UserID string             `json:"userId"`
	Items  []cartItemResponse `json:"items"`
}

type cartItemResponse struct {
	ProductID string              `json:"productId"`
	Quantity  int                 `json:"quantity"`
	Product   *cartProductDetail  `json:"product,omitempty"`
	Available bool                `json:"available"`
}

type cartProductDetail struct {
	Name     string          `json:"name"`
	VendorID string          `json:"vendorId"`
	Price    decimal.Decimal `json:"price"`
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func toCartResponse(c *cart.Cart, details []cart.DetailedItem) cartResponse {
	items := make([]cartItemResponse, len(details))
	for i, d := range details {
		item := cartItemResponse{
			ProductID: d.ProductID,
			Quantity:  d.Quantity,
			Available: d.Product != nil,
		}
		if d.Product != nil {
			item.Product = &cartProductDetail{
				Name:     d.Product.Name,
				VendorID: d.Product.VendorID,
				Price:    d.Product.Price,
			}
		}
		items[i] = item
	}
	return cartResponse{ID: c.ID, UserID: c.UserID, Items: items}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if err := auth.RequireShopper(actor); err != nil {
		writeError(w, r, err)
		return
	}

	c, details, err := h.carts.GetCart(r.Context(), actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartResponse(c, details))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if err := auth.RequireShopper(actor); err != nil {
		writeError(w, r, err)
		return
	}

	var req addCartItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.carts.AddItem(r.Context(), actor.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, cartItemResponse{
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Available: true,
	})
}

func (h *Handler) setCartItemQuantity(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if err := auth.RequireShopper(actor); err != nil {
		writeError(w, r, err)
		return
	}

	var req setQuantityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	productID := r.PathValue("productID")
	if err := h.carts.SetItemQuantity(r.Context(), actor.UserID, productID, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cartItemResponse{
		ProductID: productID,
		Quantity:  req.Quantity,
		Available: true,
	})
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if err := auth.RequireShopper(actor); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.carts.RemoveItem(r.Context(), actor.UserID, r.PathValue("productID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusNoContent, nil)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if err := auth.RequireShopper(actor); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.carts.Clear(r.Context(), actor.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusNoContent, nil)
}
