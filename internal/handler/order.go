package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/averline/marketplace/internal/domain/auth"
	"github.com/averline/marketplace/internal/domain/order"
)

type orderResponse struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	Status    string              `json:"status"`
	Total     decimal.Decimal     `json:"total"`
	Items     []orderItemResponse `json:"items"`
	CreatedAt time.Time           `json:"createdAt"`
}

type orderItemResponse struct {
	ProductID string          `json:"productId"`
	VendorID  string          `json:"vendorId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type checkoutRequest struct {
	ShippingAddress string `json:"shippingAddress"`
	ContactEmail    string `json:"contactEmail"`
	ContactPhone    string `json:"contactPhone"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ProductID: item.ProductID,
			VendorID:  item.VendorID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Subtotal:  item.Subtotal,
		}
	}
	return orderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		Status:    string(o.Status),
		Total:     o.Total,
		Items:     items,
		CreatedAt: o.CreatedAt,
	}
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if err := auth.RequireShopper(actor); err != nil {
		writeError(w, r, err)
		return
	}

	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Checkout(r.Context(), actor.UserID, order.Metadata{
		ShippingAddress: req.ShippingAddress,
		ContactEmail:    req.ContactEmail,
		ContactPhone:    req.ContactPhone,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), ActorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), ActorFromContext(r.Context()), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}
