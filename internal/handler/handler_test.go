package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averline/marketplace/internal/domain/auth"
	"github.com/averline/marketplace/internal/domain/cart"
	"github.com/averline/marketplace/internal/domain/order"
	"github.com/averline/marketplace/internal/domain/product"
)

// --- In-memory repositories ---

type memProductRepo struct {
	byID map[string]*product.Product
}

func (m *memProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProductRepo) Create(_ context.Context, p *product.Product) error {
	m.byID[p.ID] = p
	return nil
}

func (m *memProductRepo) Update(_ context.Context, p *product.Product) error {
	if _, ok := m.byID[p.ID]; !ok {
		return product.ErrNotFound
	}
	m.byID[p.ID] = p
	return nil
}

func (m *memProductRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return product.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memCartRepo struct {
	byUser map[string]*cart.Cart
}

func (m *memCartRepo) GetOrCreate(_ context.Context, userID string) (*cart.Cart, error) {
	if c, ok := m.byUser[userID]; ok {
		return c, nil
	}
	c := &cart.Cart{ID: "cart-" + userID, UserID: userID}
	m.byUser[userID] = c
	return c, nil
}

func (m *memCartRepo) AddItem(_ context.Context, cartID, productID string, quantity int) (*cart.Item, error) {
	c := m.byCartID(cartID)
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			return &c.Items[i], nil
		}
	}
	c.Items = append(c.Items, cart.Item{ProductID: productID, Quantity: quantity})
	return &c.Items[len(c.Items)-1], nil
}

func (m *memCartRepo) SetItemQuantity(_ context.Context, cartID, productID string, quantity int) error {
	c := m.byCartID(cartID)
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			return nil
		}
	}
	return cart.ErrItemNotFound
}

func (m *memCartRepo) RemoveItem(_ context.Context, cartID, productID string) error {
	c := m.byCartID(cartID)
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return cart.ErrItemNotFound
}

func (m *memCartRepo) Clear(_ context.Context, cartID string) error {
	m.byCartID(cartID).Items = nil
	return nil
}

func (m *memCartRepo) byCartID(cartID string) *cart.Cart {
	for _, c := range m.byUser {
		if c.ID == cartID {
			return c
		}
	}
	panic("unknown cart " + cartID)
}

type memOrderRepo struct {
	byID map[string]*order.Order
}

func (m *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.byID[o.ID] = o
	return nil
}

func (m *memOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *memOrderRepo) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) ListByVendor(_ context.Context, vendorID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		for _, v := range o.VendorIDs() {
			if v == vendorID {
				out = append(out, *o)
				break
			}
		}
	}
	return out, nil
}

func (m *memOrderRepo) ListAll(_ context.Context) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		out = append(out, *o)
	}
	return out, nil
}

func (m *memOrderRepo) UpdateStatus(_ context.Context, id string, from, to order.Status) (bool, error) {
	o, ok := m.byID[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

type memKeyRepo struct {
	byHash map[string]*auth.APIKey
}

func (m *memKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKey, error) {
	k, ok := m.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("no such key")
	}
	return k, nil
}

// --- Test environment ---

// Raw API keys recognized by the test authenticator.
const (
	keyCustomer = "key-customer"
	keyVendorA  = "key-vendor-a"
	keyVendorB  = "key-vendor-b"
	keyAdmin    = "key-admin"
)

type testEnv struct {
	api      http.Handler
	products *memProductRepo
	orders   *memOrderRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	products := &memProductRepo{byID: map[string]*product.Product{
		"p1": {ID: "p1", VendorID: "vendor-a", Name: "Widget", Category: "tools", Price: decimal.RequireFromString("10.00")},
		"p2": {ID: "p2", VendorID: "vendor-b", Name: "Gadget", Category: "tools", Price: decimal.RequireFromString("3.50")},
	}}
	carts := &memCartRepo{byUser: make(map[string]*cart.Cart)}
	orders := &memOrderRepo{byID: make(map[string]*order.Order)}

	pepper := []byte("test-pepper")
	hasher := auth.NewAuthenticator(nil, pepper)
	keys := &memKeyRepo{byHash: map[string]*auth.APIKey{}}
	for raw, actor := range map[string]auth.Actor{
		keyCustomer: {UserID: "user-casey", Role: auth.RoleCustomer},
		keyVendorA:  {UserID: "vendor-a", Role: auth.RoleVendor},
		keyVendorB:  {UserID: "vendor-b", Role: auth.RoleVendor},
		keyAdmin:    {UserID: "root", Role: auth.RoleAdmin},
	} {
		hash := hasher.HashKey(raw)
		keys.byHash[hash] = &auth.APIKey{KeyHash: hash, UserID: actor.UserID, Role: actor.Role}
	}

	h := New(
		cart.NewService(carts, products),
		order.NewService(carts, products, orders),
		product.NewService(products),
	)

	return &testEnv{
		api:      Security(auth.NewAuthenticator(keys, pepper))(h.Routes()),
		products: products,
		orders:   orders,
	}
}

func (e *testEnv) do(t *testing.T, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}

	rec := httptest.NewRecorder()
	e.api.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// --- Security ---

func TestSecurity_InvalidKeyRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/products", "key-bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSecurity_BearerTokenAccepted(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+keyCustomer)
	rec := httptest.NewRecorder()
	env.api.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- Products ---

func TestListProducts_Public(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]productResponse](t, rec), 2)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/products/p1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Widget", decode[productResponse](t, rec).Name)

	rec = env.do(t, http.MethodGet, "/api/products/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProduct_Policy(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"name": "Doohickey", "category": "tools", "price": "4.20"}

	rec := env.do(t, http.MethodPost, "/api/products", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/products", keyCustomer, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/products", keyVendorA, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[productResponse](t, rec)
	assert.Equal(t, "vendor-a", created.VendorID)
	assert.NotEmpty(t, created.ID)
}

func TestCreateProduct_Validation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/products", keyVendorA,
		map[string]any{"name": "", "price": "4.20"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name", decode[errorBody](t, rec).Field)

	rec = env.do(t, http.MethodPost, "/api/products", keyVendorA,
		map[string]any{"name": "X", "price": "-1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "price", decode[errorBody](t, rec).Field)
}

func TestUpdateProduct_OwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"name": "Widget v2", "category": "tools", "price": "11.00"}

	rec := env.do(t, http.MethodPut, "/api/products/p1", keyVendorB, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/products/p1", keyVendorA, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Widget v2", decode[productResponse](t, rec).Name)
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/api/products/p1", keyAdmin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/products/p1", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Cart ---

func TestCart_RequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/cart/items"},
		{http.MethodPut, "/api/cart/items/p1"},
		{http.MethodDelete, "/api/cart/items/p1"},
		{http.MethodDelete, "/api/cart"},
	} {
		rec := env.do(t, req.method, req.path, "", map[string]any{"quantity": 1})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", req.method, req.path)
	}
}

func TestCart_AddAndMerge(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cart/items", keyCustomer,
		addCartItemRequest{ProductID: "p1", Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/cart/items", keyCustomer,
		addCartItemRequest{ProductID: "p1", Quantity: 3})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 5, decode[cartItemResponse](t, rec).Quantity)

	rec = env.do(t, http.MethodGet, "/api/cart", keyCustomer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[cartResponse](t, rec)
	require.Len(t, c.Items, 1)
	assert.True(t, c.Items[0].Available)
	require.NotNil(t, c.Items[0].Product)
	assert.Equal(t, "Widget", c.Items[0].Product.Name)
}

func TestCart_AddErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cart/items", keyCustomer,
		addCartItemRequest{ProductID: "p1", Quantity: 0})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "quantity", decode[errorBody](t, rec).Field)

	rec = env.do(t, http.MethodPost, "/api/cart/items", keyCustomer,
		addCartItemRequest{ProductID: "missing", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", bytes.NewBufferString("{not json"))
	req.Header.Set(APIKeyHeader, keyCustomer)
	rec = httptest.NewRecorder()
	env.api.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCart_SetQuantityAndRemove(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cart/items", keyCustomer,
		addCartItemRequest{ProductID: "p1", Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/cart/items/p1", keyCustomer, setQuantityRequest{Quantity: 7})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, decode[cartItemResponse](t, rec).Quantity)

	rec = env.do(t, http.MethodDelete, "/api/cart/items/p1", keyCustomer, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Second removal reports the item is gone.
	rec = env.do(t, http.MethodDelete, "/api/cart/items/p1", keyCustomer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCart_Clear(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cart/items", keyCustomer,
		addCartItemRequest{ProductID: "p1", Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/cart", keyCustomer, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/cart", keyCustomer, nil).Code)

	c := decode[cartResponse](t, env.do(t, http.MethodGet, "/api/cart", keyCustomer, nil))
	assert.Empty(t, c.Items)
}

// --- Orders ---

func checkoutCart(t *testing.T, env *testEnv, key string) orderResponse {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/orders", key,
		checkoutRequest{ShippingAddress: "1 Main St", ContactEmail: "c@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[orderResponse](t, rec)
}

func TestCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/orders", keyCustomer, checkoutRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCheckout_Success(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/cart/items", keyCustomer, addCartItemRequest{ProductID: "p1", Quantity: 2})
	env.do(t, http.MethodPost, "/api/cart/items", keyCustomer, addCartItemRequest{ProductID: "p2", Quantity: 1})

	o := checkoutCart(t, env, keyCustomer)
	assert.Equal(t, "pending", o.Status)
	assert.True(t, decimal.RequireFromString("23.50").Equal(o.Total))
	require.Len(t, o.Items, 2)

	// The cart is empty afterwards.
	c := decode[cartResponse](t, env.do(t, http.MethodGet, "/api/cart", keyCustomer, nil))
	assert.Empty(t, c.Items)
}

func TestCheckout_ProductRemovedBeforeCheckout(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/cart/items", keyCustomer, addCartItemRequest{ProductID: "p1", Quantity: 1})
	delete(env.products.byID, "p1")

	rec := env.do(t, http.MethodPost, "/api/orders", keyCustomer, checkoutRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, env.orders.byID, "no order may be written")
}

func TestGetOrder_Visibility(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/cart/items", keyCustomer, addCartItemRequest{ProductID: "p1", Quantity: 1})
	o := checkoutCart(t, env, keyCustomer)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/orders/"+o.ID, keyCustomer, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/orders/"+o.ID, keyVendorA, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/orders/"+o.ID, keyVendorB, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/orders/"+o.ID, keyAdmin, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/orders/"+o.ID, "", nil).Code)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/orders/missing", keyAdmin, nil).Code)
}

func TestListOrders_Scoped(t *testing.T) {
	env := newTestEnv(t)

	// One order containing only vendor-a's product.
	env.do(t, http.MethodPost, "/api/cart/items", keyCustomer, addCartItemRequest{ProductID: "p1", Quantity: 1})
	checkoutCart(t, env, keyCustomer)

	assert.Len(t, decode[[]orderResponse](t, env.do(t, http.MethodGet, "/api/orders", keyCustomer, nil)), 1)
	assert.Len(t, decode[[]orderResponse](t, env.do(t, http.MethodGet, "/api/orders", keyVendorA, nil)), 1)
	assert.Empty(t, decode[[]orderResponse](t, env.do(t, http.MethodGet, "/api/orders", keyVendorB, nil)))
	assert.Len(t, decode[[]orderResponse](t, env.do(t, http.MethodGet, "/api/orders", keyAdmin, nil)), 1)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/orders", "", nil).Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/cart/items", keyCustomer, addCartItemRequest{ProductID: "p1", Quantity: 1})
	o := checkoutCart(t, env, keyCustomer)
	statusPath := "/api/orders/" + o.ID + "/status"

	// The purchaser cannot drive fulfilment.
	rec := env.do(t, http.MethodPut, statusPath, keyCustomer, updateStatusRequest{Status: "cancelled"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Nor can a vendor without items in the order.
	rec = env.do(t, http.MethodPut, statusPath, keyVendorB, updateStatusRequest{Status: "shipped"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Skipping a state is a conflict.
	rec = env.do(t, http.MethodPut, statusPath, keyVendorA, updateStatusRequest{Status: "delivered"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPut, statusPath, keyVendorA, updateStatusRequest{Status: "shipped"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shipped", decode[orderResponse](t, rec).Status)

	rec = env.do(t, http.MethodPut, statusPath, keyVendorA, updateStatusRequest{Status: "delivered"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Delivered is terminal.
	rec = env.do(t, http.MethodPut, statusPath, keyAdmin, updateStatusRequest{Status: "cancelled"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPut, statusPath, keyAdmin, updateStatusRequest{Status: "refunded"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
