package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avelir/storefront/internal/domain/auth"
	"github.com/avelir/storefront/internal/domain/coupon"
	"github.com/avelir/storefront/internal/domain/order"
	"github.com/avelir/storefront/internal/domain/product"
	"github.com/avelir/storefront/internal/invoice"
	"github.com/avelir/storefront/internal/payment"
	"github.com/avelir/storefront/internal/repository"
	"github.com/avelir/storefront/internal/session"
)

// --- Mock implementations ---

type mockProductRepo struct {
	products []product.Product
	byID     map[string]*product.Product
	listErr  error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, m.listErr
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

type mockCouponValidator struct {
	coupons map[string]*coupon.Coupon
	err     error
}

func (m *mockCouponValidator) Resolve(_ context.Context, code string) (*coupon.Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

type mockOrderRepo struct {
	orders    map[string]*order.Order
	createErr error
	paid      []string
	stripeIDs map[string]string
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{
		orders:    make(map[string]*order.Order),
		stripeIDs: make(map[string]string),
	}
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) SetStripeID(_ context.Context, id, stripeID string) error {
	o, ok := m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.StripeID = stripeID
	m.stripeIDs[id] = stripeID
	return nil
}

func (m *mockOrderRepo) MarkPaid(_ context.Context, id, gatewayRef string) error {
	o, ok := m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Paid = true
	if gatewayRef != "" {
		o.StripeID = gatewayRef
	}
	m.paid = append(m.paid, id)
	return nil
}

type mockEnqueuer struct {
	enqueued []string
}

func (m *mockEnqueuer) EnqueueOrderCreated(_ context.Context, orderID string) error {
	m.enqueued = append(m.enqueued, orderID)
	return nil
}

type mockGateway struct {
	session *payment.Session
	err     error
	last    *order.Order
}

func (m *mockGateway) CreateCheckoutSession(_ context.Context, o *order.Order, _, _ string) (*payment.Session, error) {
	m.last = o
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

type mockVerifier struct {
	event payment.WebhookEvent
	err   error
}

func (m *mockVerifier) VerifyEvent(_ []byte, _ string) (payment.WebhookEvent, error) {
	return m.event, m.err
}

type mockAPIKeyRepo struct {
	byHash map[string]*auth.APIKeyInfo
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return info, nil
}

// --- Test harness ---

type harness struct {
	mux      *http.ServeMux
	products *mockProductRepo
	coupons  *mockCouponValidator
	orders   *mockOrderRepo
	gateway  *mockGateway
	verifier *mockVerifier
	apikeys  *mockAPIKeyRepo
	queue    *mockEnqueuer
}

const testPepper = "test-pepper"

func newHarness(t *testing.T) *harness {
	t.Helper()

	products := newProductRepo(
		newTestProduct("p1", "Waffle with Berries", "6.50"),
		newTestProduct("p2", "Pistachio Baklava", "19.99"),
	)
	coupons := &mockCouponValidator{coupons: map[string]*coupon.Coupon{
		"HAPPYHRS": {ID: "c1", Code: "HAPPYHRS", DiscountPercent: 10, Active: true},
	}}
	orders := newMockOrderRepo()
	gateway := &mockGateway{session: &payment.Session{ID: "cs_1", URL: "https://pay.example.com/cs_1"}}
	verifier := &mockVerifier{}
	apikeys := &mockAPIKeyRepo{byHash: map[string]*auth.APIKeyInfo{}}
	queue := &mockEnqueuer{}

	sessions := session.NewMemoryStore()
	carts := repository.NewSessionCartStore(sessions)
	pending := session.NewPendingOrders(sessions)
	checkout := order.NewService(carts, coupons, orders, pending, queue, zap.NewNop())

	h := NewHandler(
		Config{BaseURL: "https://shop.example.com", APIKeyPepper: testPepper},
		products, carts, coupons, checkout, orders, pending,
		gateway, verifier, invoice.NewRenderer("Storefront"), apikeys,
		zap.NewNop(),
	)
	return &harness{
		mux:      h.Routes(),
		products: products,
		coupons:  coupons,
		orders:   orders,
		gateway:  gateway,
		verifier: verifier,
		apikeys:  apikeys,
		queue:    queue,
	}
}

func newTestProduct(id, name, price string) product.Product {
	return product.Product{
		ID:       id,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Category: "dessert",
	}
}

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &mockProductRepo{products: products, byID: byID}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
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
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "8b51f0f1-91a5-4cf0-9d47-f4602e9d2536"})
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func decodeResp[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

var checkoutForm = order.CheckoutForm{
	FirstName:  "Ada",
	LastName:   "Lovelace",
	Email:      "ada@example.com",
	Address:    "12 Analytical Lane",
	PostalCode: "10115",
	City:       "Berlin",
}

// --- Tests ---

func TestListProducts(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResp[[]productResponse](t, rec)
	require.Len(t, resp, 2)
	assert.Equal(t, "p1", resp[0].ID)
	assert.Equal(t, "6.50", resp[0].Price)
}

func TestGetProduct(t *testing.T) {
	h := newHarness(t)

	t.Run("found", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/products/p2", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResp[productResponse](t, rec)
		assert.Equal(t, "Pistachio Baklava", resp.Name)
		assert.Equal(t, "19.99", resp.Price)
	})

	t.Run("not found returns 404", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/products/missing", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)

		resp := decodeResp[apiError](t, rec)
		assert.Equal(t, 404, resp.Code)
	})
}

func TestCartFlow(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "p2", Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResp[cartResponse](t, rec)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, 2, resp.Lines[0].Quantity)
	assert.Equal(t, "39.98", resp.Subtotal)
	assert.Equal(t, "39.98", resp.Total)

	// Adding again increments the line.
	rec = h.do(t, http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "p2", Quantity: 1})
	resp = decodeResp[cartResponse](t, rec)
	assert.Equal(t, 3, resp.Lines[0].Quantity)

	// Override pins the quantity.
	rec = h.do(t, http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "p2", Quantity: 2, Override: true})
	resp = decodeResp[cartResponse](t, rec)
	assert.Equal(t, 2, resp.Lines[0].Quantity)

	rec = h.do(t, http.MethodPut, "/cart/items/p2", setQuantityRequest{Quantity: 5})
	resp = decodeResp[cartResponse](t, rec)
	assert.Equal(t, 5, resp.Lines[0].Quantity)

	rec = h.do(t, http.MethodDelete, "/cart/items/p2", nil)
	resp = decodeResp[cartResponse](t, rec)
	assert.Empty(t, resp.Lines)
}

func TestAddCartItem_Errors(t *testing.T) {
	h := newHarness(t)

	t.Run("unknown product returns 422", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "nope", Quantity: 1})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("zero quantity returns 422", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "p1", Quantity: 0})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("garbage body returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader("not json"))
		rec := httptest.NewRecorder()
		h.mux.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSetCartItemQuantity_NotInCart(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPut, "/cart/items/p1", setQuantityRequest{Quantity: 2})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCoupon(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "p2", Quantity: 2})

	t.Run("apply discounts totals", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/cart/coupon", applyCouponRequest{Code: "HAPPYHRS"})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResp[cartResponse](t, rec)
		assert.Equal(t, "HAPPYHRS", resp.CouponCode)
		assert.Equal(t, 10, resp.DiscountPercent)
		assert.Equal(t, "39.98", resp.Subtotal)
		assert.Equal(t, "4.00", resp.Discount)
		assert.Equal(t, "35.98", resp.Total)
	})

	t.Run("invalid code returns 422", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/cart/coupon", applyCouponRequest{Code: "BOGUS"})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		resp := decodeResp[apiError](t, rec)
		assert.Equal(t, "invalid coupon code", resp.Message)
	})

	t.Run("remove detaches", func(t *testing.T) {
		rec := h.do(t, http.MethodDelete, "/cart/coupon", nil)
		resp := decodeResp[cartResponse](t, rec)
		assert.Empty(t, resp.CouponCode)
		assert.Equal(t, "39.98", resp.Total)
	})
}

func TestCheckout(t *testing.T) {
	t.Run("creates order and clears cart", func(t *testing.T) {
		h := newHarness(t)
		h.do(t, http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "p2", Quantity: 2})
		h.do(t, http.MethodPost, "/cart/coupon", applyCouponRequest{Code: "HAPPYHRS"})

		rec := h.do(t, http.MethodPost, "/checkout", checkoutForm)
		require.Equal(t, http.StatusCreated, rec.Code)

		resp := decodeResp[checkoutResponse](t, rec)
		assert.NotEmpty(t, resp.OrderID)
		assert.Equal(t, "35.98", resp.Total)
		assert.Equal(t, "4.00", resp.Discount)
		assert.Equal(t, "https://shop.example.com/payment/process", resp.NextURL)

		o := h.orders.orders[resp.OrderID]
		require.NotNil(t, o)
		assert.Equal(t, 10, o.Discount)
		assert.Equal(t, []string{resp.OrderID}, h.queue.enqueued)

		cartRec := h.do(t, http.MethodGet, "/cart", nil)
		cartResp := decodeResp[cartResponse](t, cartRec)
		assert.Empty(t, cartResp.Lines)
	})

	t.Run("empty cart returns 422", func(t *testing.T) {
		h := newHarness(t)

		rec := h.do(t, http.MethodPost, "/checkout", checkoutForm)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		resp := decodeResp[apiError](t, rec)
		assert.Equal(t, "cart is empty", resp.Message)
	})

	t.Run("invalid form returns field errors", func(t *testing.T) {
		h := newHarness(t)
		h.do(t, http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "p1", Quantity: 1})

		form := checkoutForm
		form.Email = "not-an-email"
		form.City = ""
		rec := h.do(t, http.MethodPost, "/checkout", form)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		resp := decodeResp[validationErrorResponse](t, rec)
		assert.Contains(t, resp.Fields, "email")
		assert.Contains(t, resp.Fields, "city")
	})
}

func TestProcessPayment(t *testing.T) {
	t.Run("redirects to gateway session", func(t *testing.T) {
		h := newHarness(t)
		h.do(t, http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "p2", Quantity: 1})
		rec := h.do(t, http.MethodPost, "/checkout", checkoutForm)
		resp := decodeResp[checkoutResponse](t, rec)

		payRec := h.do(t, http.MethodPost, "/payment/process", nil)
		require.Equal(t, http.StatusSeeOther, payRec.Code)
		assert.Equal(t, "https://pay.example.com/cs_1", payRec.Header().Get("Location"))
		assert.Equal(t, "cs_1", h.orders.stripeIDs[resp.OrderID])
		require.NotNil(t, h.gateway.last)
		assert.Equal(t, resp.OrderID, h.gateway.last.ID)
	})

	t.Run("no pending order returns 404", func(t *testing.T) {
		h := newHarness(t)

		rec := h.do(t, http.MethodPost, "/payment/process", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("gateway failure returns 502", func(t *testing.T) {
		h := newHarness(t)
		h.do(t, http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "p1", Quantity: 1})
		h.do(t, http.MethodPost, "/checkout", checkoutForm)

		h.gateway.err = errors.New("stripe down")
		rec := h.do(t, http.MethodPost, "/payment/process", nil)
		require.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestPaymentReturnPages(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "p1", Quantity: 1})
	rec := h.do(t, http.MethodPost, "/checkout", checkoutForm)
	resp := decodeResp[checkoutResponse](t, rec)

	t.Run("completed reports unpaid before webhook", func(t *testing.T) {
		done := h.do(t, http.MethodGet, "/payment/completed", nil)
		require.Equal(t, http.StatusOK, done.Code)

		status := decodeResp[paymentStatusResponse](t, done)
		assert.Equal(t, resp.OrderID, status.OrderID)
		assert.False(t, status.Paid)
	})

	t.Run("cancelled keeps pending order", func(t *testing.T) {
		cancelled := h.do(t, http.MethodGet, "/payment/cancelled", nil)
		require.Equal(t, http.StatusOK, cancelled.Code)

		again := h.do(t, http.MethodPost, "/payment/process", nil)
		require.Equal(t, http.StatusSeeOther, again.Code)
	})
}

func TestPaymentWebhook(t *testing.T) {
	setup := func(t *testing.T) (*harness, string) {
		h := newHarness(t)
		h.do(t, http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "p1", Quantity: 1})
		rec := h.do(t, http.MethodPost, "/checkout", checkoutForm)
		return h, decodeResp[checkoutResponse](t, rec).OrderID
	}

	t.Run("paid event marks order", func(t *testing.T) {
		h, orderID := setup(t)
		h.verifier.event = payment.WebhookEvent{
			Type:      payment.EventCheckoutCompleted,
			OrderID:   orderID,
			SessionID: "cs_1",
			Paid:      true,
		}

		rec := h.do(t, http.MethodPost, "/payment/webhook", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{orderID}, h.orders.paid)
		assert.True(t, h.orders.orders[orderID].Paid)
	})

	t.Run("unpaid completion does not mark", func(t *testing.T) {
		h, orderID := setup(t)
		h.verifier.event = payment.WebhookEvent{
			Type:    payment.EventCheckoutCompleted,
			OrderID: orderID,
			Paid:    false,
		}

		rec := h.do(t, http.MethodPost, "/payment/webhook", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, h.orders.paid)
	})

	t.Run("bad signature returns 400", func(t *testing.T) {
		h, _ := setup(t)
		h.verifier.err = errors.New("bad signature")

		rec := h.do(t, http.MethodPost, "/payment/webhook", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, h.orders.paid)
	})

	t.Run("unrelated event type is acknowledged", func(t *testing.T) {
		h, _ := setup(t)
		h.verifier.event = payment.WebhookEvent{Type: "charge.refunded"}

		rec := h.do(t, http.MethodPost, "/payment/webhook", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, h.orders.paid)
	})
}

func TestAdminOrder(t *testing.T) {
	staffKey := "staff-key-1"

	setup := func(t *testing.T) (*harness, string) {
		h := newHarness(t)
		h.apikeys.byHash[hashAPIKey(testPepper, staffKey)] = &auth.APIKeyInfo{
			ID:      "k1",
			KeyHash: hashAPIKey(testPepper, staffKey),
			Name:    "ops",
			Scopes:  []string{auth.ScopeStaff},
		}
		h.do(t, http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "p2", Quantity: 2})
		rec := h.do(t, http.MethodPost, "/checkout", checkoutForm)
		return h, decodeResp[checkoutResponse](t, rec).OrderID
	}

	adminGet := func(h *harness, path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if key != "" {
			req.Header.Set(apiKeyHeader, key)
		}
		rec := httptest.NewRecorder()
		h.mux.ServeHTTP(rec, req)
		return rec
	}

	t.Run("staff key reads order", func(t *testing.T) {
		h, orderID := setup(t)

		rec := adminGet(h, "/admin/orders/"+orderID, staffKey)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResp[adminOrderResponse](t, rec)
		assert.Equal(t, orderID, resp.ID)
		assert.Equal(t, "Ada", resp.FirstName)
		assert.Equal(t, "39.98", resp.Total)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "19.99", resp.Items[0].Price)
	})

	t.Run("missing key returns 401", func(t *testing.T) {
		h, orderID := setup(t)

		rec := adminGet(h, "/admin/orders/"+orderID, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown key returns 401", func(t *testing.T) {
		h, orderID := setup(t)

		rec := adminGet(h, "/admin/orders/"+orderID, "wrong-key")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("key without staff scope returns 403", func(t *testing.T) {
		h, orderID := setup(t)
		h.apikeys.byHash[hashAPIKey(testPepper, "reporter")] = &auth.APIKeyInfo{
			ID:      "k2",
			KeyHash: hashAPIKey(testPepper, "reporter"),
			Scopes:  []string{"reports"},
		}

		rec := adminGet(h, "/admin/orders/"+orderID, "reporter")
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown order returns 404", func(t *testing.T) {
		h, _ := setup(t)

		rec := adminGet(h, "/admin/orders/missing", staffKey)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invoice streams pdf", func(t *testing.T) {
		h, orderID := setup(t)

		rec := adminGet(h, "/admin/orders/"+orderID+"/invoice", staffKey)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	})
}

func TestSessionCookieMinted(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
}
