package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/checkout"
	"storefront/internal/database"
	"storefront/internal/idempotency"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/payments"
)

const testUserHeader = "X-Test-User"

type testServer struct {
	router  *gin.Engine
	store   *database.MemoryStore
	metrics *metrics.ServerMetrics
}

// newTestServer wires the real handlers without JWT checks. The caller's
// user id comes from testUserHeader.
func newTestServer(t *testing.T) *testServer {
	return newTestServerWithGateway(t, payments.NewSimulatedGateway())
}

func newTestServerWithGateway(t *testing.T, gateway payments.Gateway) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := database.NewMemoryStore()
	svc := checkout.NewService(store, gateway, nil, checkout.Options{
		AllowSimulatedPayments: true,
	})
	m := metrics.NewServerMetrics(prometheus.NewRegistry())
	keys := idempotency.NewMemoryStore(time.Hour)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader(testUserHeader); id != "" {
			c.Set(middleware.ContextUserID, id)
		}
		c.Next()
	})

	r.GET("/health", Health(store))
	r.GET("/products", GetProducts(store))
	r.GET("/products/:id", GetProduct(store))
	r.POST("/coupons/validate", ValidateCoupon(svc))
	r.POST("/payments/intent", CreatePaymentIntent(svc))
	r.POST("/payments/confirm", ConfirmPayment(svc, keys, m))
	r.GET("/orders", GetMyOrders(svc))
	r.GET("/orders/:number", GetMyOrder(svc))
	r.PUT("/orders/:number/cancel", CancelMyOrder(svc))

	carts := checkout.NewCartService(store, nil)
	r.GET("/cart", GetCart(carts))
	r.DELETE("/cart", ClearCart(carts))
	r.POST("/cart/items", AddCartItem(carts))
	r.PUT("/cart/items/:id", UpdateCartItem(carts))
	r.DELETE("/cart/items/:id", RemoveCartItem(carts))

	admin := r.Group("/admin/api")
	admin.GET("/products", GetAllProducts(store))
	admin.POST("/products", CreateProduct(store))
	admin.PUT("/products/:id", UpdateProduct(store))
	admin.DELETE("/products/:id", DeleteProduct(store))
	admin.GET("/coupons", GetAllCoupons(store))
	admin.POST("/coupons", CreateCoupon(store))
	admin.PUT("/coupons/:id", UpdateCoupon(store))
	admin.GET("/orders", GetAllOrders(svc))
	admin.PUT("/orders/:number/status", UpdateOrderStatus(svc))
	admin.DELETE("/orders/:number", DeleteOrder(svc))

	return &testServer{router: r, store: store, metrics: m}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (s *testServer) seedProduct(t *testing.T, id, price string, stock int, active bool) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, s.store.InsertProduct(context.Background(), &models.Product{
		ID:        id,
		Name:      "Product " + id,
		Price:     dec(price),
		Stock:     stock,
		IsActive:  active,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func (s *testServer) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := s.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func confirmBody(intentID string, items ...map[string]any) map[string]any {
	return map[string]any{
		"paymentIntentId": intentID,
		"order": map[string]any{
			"fullName":     "Ana Torres",
			"email":        "ana@example.com",
			"phone":        "+51 999 888 777",
			"addressLine1": "Av. Larco 123",
			"city":         "Lima",
			"state":        "Lima",
			"postalCode":   "15074",
			"country":      "PE",
			"items":        items,
		},
	}
}

func item(productID string, qty int) map[string]any {
	return map[string]any{"productId": productID, "quantity": qty}
}

func TestConfirmPaymentCreatesOrderAndReplaysIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "p1", "25.00", 5, true)
	headers := map[string]string{idempotency.Header: "key-1", testUserHeader: "u-1"}

	rec, body := s.do(t, http.MethodPost, "/payments/confirm", confirmBody("sim_first", item("p1", 2)), headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	orderNumber, _ := body["orderNumber"].(string)
	require.NotEmpty(t, orderNumber)
	order := body["order"].(map[string]any)
	assert.Equal(t, "50.00", order["total"])
	assert.Equal(t, "confirmed", order["status"])
	assert.Equal(t, true, order["isPaid"])
	assert.Equal(t, 3, s.stock(t, "p1"))

	rec, body = s.do(t, http.MethodPost, "/payments/confirm", confirmBody("sim_first", item("p1", 2)), headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, orderNumber, body["orderNumber"])
	assert.Equal(t, 3, s.stock(t, "p1"))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Checkouts.WithLabelValues(metrics.OutcomeCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Checkouts.WithLabelValues(metrics.OutcomeReplayed)))
}

func TestConfirmPaymentInsufficientStock(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "p1", "25.00", 5, true)

	rec, body := s.do(t, http.MethodPost, "/payments/confirm", confirmBody("sim_x", item("p1", 10)), nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient stock", body["error"])
	assert.Equal(t, "p1", body["productId"])
	assert.Equal(t, 5.0, body["available"])
	assert.Equal(t, 10.0, body["requested"])
	assert.Equal(t, 5, s.stock(t, "p1"))
}

func TestConfirmPaymentReleasesKeyOnFailure(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "p1", "25.00", 5, true)
	headers := map[string]string{idempotency.Header: "key-retry"}

	rec, _ := s.do(t, http.MethodPost, "/payments/confirm", confirmBody("sim_retry", item("p1", 10)), headers)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/payments/confirm", confirmBody("sim_retry", item("p1", 1)), headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestConfirmPaymentValidation(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "p1", "25.00", 5, true)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing items", confirmBody("sim_v")},
		{"zero quantity", confirmBody("sim_v", item("p1", 0))},
		{"quantity above line cap", confirmBody("sim_v", item("p1", checkout.MaxLineQuantity+1))},
		{"missing intent", confirmBody("", item("p1", 1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodPost, "/payments/confirm", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation failed", body["error"])
		})
	}
	assert.Equal(t, 5, s.stock(t, "p1"))
}

func TestConfirmPaymentRejectsOverflowingDuplicateLines(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "p1", "25.00", 5, true)

	rec, body := s.do(t, http.MethodPost, "/payments/confirm", confirmBody("sim_big", item("p1", math.MaxInt), item("p1", 2)), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation failed", body["error"])
	assert.Equal(t, 5, s.stock(t, "p1"))
}

// panickingGateway blows up the first time an intent is looked up.
type panickingGateway struct {
	payments.Gateway
	calls int
}

func (g *panickingGateway) RetrieveIntent(ctx context.Context, id string) (payments.Intent, error) {
	g.calls++
	if g.calls == 1 {
		panic("gateway exploded")
	}
	return g.Gateway.RetrieveIntent(ctx, id)
}

func TestConfirmPaymentReleasesKeyAfterPanic(t *testing.T) {
	gateway := &panickingGateway{Gateway: payments.NewSimulatedGateway()}
	s := newTestServerWithGateway(t, gateway)
	s.seedProduct(t, "p1", "25.00", 5, true)
	headers := map[string]string{idempotency.Header: "key-panic"}

	rec, _ := s.do(t, http.MethodPost, "/payments/confirm", confirmBody("pi_unknown", item("p1", 1)), headers)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// The key is free again, so the retry reaches the gateway instead of
	// being told a request is in progress.
	rec, _ = s.do(t, http.MethodPost, "/payments/confirm", confirmBody("pi_unknown", item("p1", 1)), headers)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Equal(t, 2, gateway.calls)
	assert.Equal(t, 5, s.stock(t, "p1"))
}

func TestConfirmPaymentScopesIdempotencyKeyPerCaller(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "p1", "25.00", 5, true)

	rec, first := s.do(t, http.MethodPost, "/payments/confirm", confirmBody("sim_alice", item("p1", 1)),
		map[string]string{idempotency.Header: "shared", testUserHeader: "u-alice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, second := s.do(t, http.MethodPost, "/payments/confirm", confirmBody("sim_bob", item("p1", 1)),
		map[string]string{idempotency.Header: "shared", testUserHeader: "u-bob"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.NotEqual(t, first["orderNumber"], second["orderNumber"])
	assert.Equal(t, 3, s.stock(t, "p1"))
}

func TestConfirmPaymentUnknownProduct(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/payments/confirm", confirmBody("sim_u", item("ghost", 1)), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePaymentIntent(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/payments/intent", map[string]any{"amount": 5000}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, body["paymentIntentId"], payments.SimulatedPrefix)
	assert.NotEmpty(t, body["clientSecret"])

	rec, _ = s.do(t, http.MethodPost, "/payments/intent", map[string]any{"amount": 0}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateCoupon(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.store.InsertCoupon(context.Background(), &models.Coupon{
		ID:            "c1",
		Code:          "SAVE10",
		DiscountType:  models.DiscountPercent,
		DiscountValue: dec("10"),
		IsActive:      true,
	}))

	rec, body := s.do(t, http.MethodPost, "/coupons/validate", map[string]any{"code": " save10 "}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "10.00", body["discount"])
	assert.Equal(t, "percent", body["type"])

	rec, body = s.do(t, http.MethodPost, "/coupons/validate", map[string]any{"code": "NOPE"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "0.00", body["discount"])
	assert.NotContains(t, body, "type")
}

func TestPublicProducts(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "on", "12.5", 3, true)
	s.seedProduct(t, "off", "9", 3, false)

	rec, body := s.do(t, http.MethodGet, "/products/on", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12.50", body["price"])

	rec, _ = s.do(t, http.MethodGet, "/products/off", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/products?page=1&limit=10", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, 1.0, body["pagination"].(map[string]any)["total"])

	rec, body = s.do(t, http.MethodGet, "/admin/api/products", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 2)

	rec, _ = s.do(t, http.MethodGet, "/products?page=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminProductLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/admin/api/products", map[string]any{
		"name":  "Coffee",
		"sku":   "CF-1",
		"price": "19.99",
		"stock": 3,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := body["id"].(string)
	assert.Equal(t, "19.99", body["effectivePrice"])

	rec, _ = s.do(t, http.MethodPost, "/admin/api/products", map[string]any{
		"name": "Coffee again", "sku": "CF-1", "price": "5", "stock": 1,
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/admin/api/products", map[string]any{
		"name": "Bad", "price": "5", "discountPrice": "6", "stock": 1,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.do(t, http.MethodPut, "/admin/api/products/"+id, map[string]any{
		"discountEnabled": true,
		"discountPrice":   "15",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "15.00", body["effectivePrice"])
	assert.Equal(t, true, body["onDiscount"])

	rec, body = s.do(t, http.MethodPut, "/admin/api/products/"+id, map[string]any{"discountEnabled": false}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "19.99", body["effectivePrice"])
	assert.Nil(t, body["discountPrice"])

	rec, _ = s.do(t, http.MethodDelete, "/admin/api/products/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/products/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = s.do(t, http.MethodPut, "/admin/api/products/"+id, map[string]any{"stock": 9}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCoupons(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/admin/api/coupons", map[string]any{
		"code":          "welcome",
		"discountType":  "amount",
		"discountValue": "15",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "WELCOME", body["code"])
	id := body["id"].(string)

	rec, _ = s.do(t, http.MethodPost, "/admin/api/coupons", map[string]any{
		"code": "WELCOME", "discountType": "amount", "discountValue": "5",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/admin/api/coupons", map[string]any{
		"code": "TOOMUCH", "discountType": "percent", "discountValue": "150",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.do(t, http.MethodPut, "/admin/api/coupons/"+id, map[string]any{"isActive": false}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["isActive"])

	rec, _ = s.do(t, http.MethodPut, "/admin/api/coupons/missing", map[string]any{"isActive": true}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "p1", "10", 4, true)
	owner := map[string]string{testUserHeader: "u-1"}
	stranger := map[string]string{testUserHeader: "u-2"}

	rec, body := s.do(t, http.MethodPost, "/payments/confirm", confirmBody("sim_life", item("p1", 3)), owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	number := body["orderNumber"].(string)

	rec, body = s.do(t, http.MethodGet, "/orders", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)

	rec, body = s.do(t, http.MethodGet, "/orders", nil, stranger)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 0)

	rec, _ = s.do(t, http.MethodGet, "/orders/"+number, nil, stranger)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/orders/"+number, nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["history"], 1)

	rec, body = s.do(t, http.MethodPut, "/orders/"+number+"/cancel", map[string]any{"comment": "changed my mind"}, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", body["order"].(map[string]any)["status"])
	assert.Equal(t, 4, s.stock(t, "p1"))

	rec, _ = s.do(t, http.MethodPut, "/orders/"+number+"/cancel", nil, owner)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(t, http.MethodPut, "/admin/api/orders/"+number+"/status", map[string]any{"status": "shipped"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminOrderStatus(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "p1", "10", 4, true)

	rec, body := s.do(t, http.MethodPost, "/payments/confirm", confirmBody("sim_admin", item("p1", 1)), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	number := body["orderNumber"].(string)

	rec, _ = s.do(t, http.MethodPut, "/admin/api/orders/"+number+"/status", map[string]any{"status": "lost"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.do(t, http.MethodPut, "/admin/api/orders/"+number+"/status", map[string]any{
		"status":         "shipped",
		"trackingNumber": "TRK-9",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order := body["order"].(map[string]any)
	assert.Equal(t, "shipped", order["status"])
	assert.Equal(t, "TRK-9", order["trackingNumber"])

	rec, body = s.do(t, http.MethodPut, "/admin/api/orders/"+number+"/status", map[string]any{
		"status":            "in_transit",
		"estimatedDelivery": "2025-07-04",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order = body["order"].(map[string]any)
	assert.Equal(t, "2025-07-04", order["estimatedDelivery"])
	assert.Equal(t, "TRK-9", order["trackingNumber"])

	rec, body = s.do(t, http.MethodPut, "/admin/api/orders/"+number+"/status", map[string]any{
		"status":            "in_transit",
		"estimatedDelivery": "next friday",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["details"], "estimatedDelivery must be a date formatted as 2006-01-02")

	rec, body = s.do(t, http.MethodGet, "/admin/api/orders?status=in_transit", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)

	rec, _ = s.do(t, http.MethodGet, "/admin/api/orders?from=yesterday", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/admin/api/orders/"+number, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, "/admin/api/orders/"+number, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGuestCartFlow(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "p1", "12.50", 3, true)

	rec, _ := s.do(t, http.MethodGet, "/cart", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session := rec.Header().Get(CartSessionHeader)
	require.NotEmpty(t, session)
	guest := map[string]string{CartSessionHeader: session}

	rec, body := s.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "p1"}, guest)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, session, rec.Header().Get(CartSessionHeader))
	cart := body["cart"].(map[string]any)
	assert.Equal(t, "12.50", cart["totalPrice"])
	assert.Equal(t, 1.0, cart["totalItems"])
	itemID := cart["items"].([]any)[0].(map[string]any)["id"].(string)

	rec, body = s.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "p1", "quantity": 3}, guest)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "quantity", body["field"])

	rec, body = s.do(t, http.MethodPut, "/cart/items/"+itemID, map[string]any{"quantity": 3}, guest)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "37.50", body["cart"].(map[string]any)["totalPrice"])

	rec, _ = s.do(t, http.MethodPut, "/cart/items/"+itemID, map[string]any{"quantity": 0}, guest)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A different session sees its own, empty cart.
	rec, body = s.do(t, http.MethodGet, "/cart", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["cart"].(map[string]any)["items"])

	rec, _ = s.do(t, http.MethodDelete, "/cart/items/"+itemID, nil, guest)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, "/cart/items/"+itemID, nil, guest)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 3, s.stock(t, "p1"))
}

func TestSignedInCartIgnoresGuestSession(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "p1", "10.00", 9, true)

	rec, _ := s.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "p1", "quantity": 2}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := rec.Header().Get(CartSessionHeader)

	rec, body := s.do(t, http.MethodGet, "/cart", nil, map[string]string{testUserHeader: "u-1", CartSessionHeader: session})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get(CartSessionHeader))
	cart := body["cart"].(map[string]any)
	assert.Equal(t, "u-1", cart["userId"])
	assert.Equal(t, 0.0, cart["totalItems"])

	rec, body = s.do(t, http.MethodGet, "/cart", nil, map[string]string{CartSessionHeader: session})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "20.00", body["cart"].(map[string]any)["totalPrice"])

	rec, body = s.do(t, http.MethodDelete, "/cart", nil, map[string]string{CartSessionHeader: session})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.00", body["cart"].(map[string]any)["totalPrice"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
