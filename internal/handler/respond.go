package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/averline/marketplace/internal/domain/auth"
	"github.com/averline/marketplace/internal/domain/cart"
	"github.com/averline/marketplace/internal/domain/order"
	"github.com/averline/marketplace/internal/domain/product"
)

// errorBody is the uniform error envelope. Field is set for validation
// failures so clients can point at the offending input.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses:
// Unauthenticated 401, Unauthorized 403, NotFound 404, InvalidInput 400,
// EmptyCart and ProductUnavailable 422, InvalidTransition 409. Anything
// unmapped is a 500 with the detail kept out of the response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status = http.StatusInternalServerError
		body   = errorBody{Message: "internal error"}
	)

	var (
		quantityErr   *cart.InvalidQuantityError
		fieldErr      *product.InvalidFieldError
		unavailable   *order.ProductUnavailableError
		badTransition *order.InvalidTransitionError
	)

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		status, body.Message = http.StatusUnauthorized, "authentication required"
	case errors.Is(err, auth.ErrUnauthorized):
		status, body.Message = http.StatusForbidden, "insufficient privileges"
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrNotFound):
		status, body.Message = http.StatusNotFound, err.Error()
	case errors.As(err, &quantityErr):
		status, body.Message, body.Field = http.StatusBadRequest, quantityErr.Error(), "quantity"
	case errors.As(err, &fieldErr):
		status, body.Message, body.Field = http.StatusBadRequest, fieldErr.Error(), fieldErr.Field
	case errors.Is(err, order.ErrEmptyCart):
		status, body.Message = http.StatusUnprocessableEntity, err.Error()
	case errors.As(err, &unavailable):
		status, body.Message = http.StatusUnprocessableEntity, unavailable.Error()
	case errors.As(err, &badTransition):
		status, body.Message = http.StatusConflict, badTransition.Error()
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
	}

	body.Code = status
	writeJSON(w, r, status, body)
}

// decodeBody parses a JSON request body into dst, treating malformed input as
// a client error.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &product.InvalidFieldError{Field: "body", Reason: "malformed JSON"}
	}
	return nil
}
