package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/averline/marketplace/internal/domain/product"
)

type productResponse struct {
	ID        string          `json:"id"`
	VendorID  string          `json:"vendorId"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"createdAt"`
}

type productRequest struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	VendorID string          `json:"vendorId,omitempty"`
}

func toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		VendorID:  p.VendorID,
		Name:      p.Name,
		Category:  p.Category,
		Price:     p.Price,
		CreatedAt: p.CreatedAt,
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i := range products {
		resp[i] = toProductResponse(&products[i])
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProductResponse(p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.Create(r.Context(), ActorFromContext(r.Context()), product.CreateInput{
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		VendorID: req.VendorID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toProductResponse(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.Update(r.Context(), ActorFromContext(r.Context()), r.PathValue("id"), product.UpdateInput{
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProductResponse(p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), ActorFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusNoContent, nil)
}
