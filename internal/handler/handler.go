// Package handler exposes the storefront HTTP API: catalog, cart, checkout,
// payment flow and the staff-only order views.
package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/avelir/storefront/internal/domain/auth"
	"github.com/avelir/storefront/internal/domain/cart"
	"github.com/avelir/storefront/internal/domain/coupon"
	"github.com/avelir/storefront/internal/domain/order"
	"github.com/avelir/storefront/internal/domain/product"
	"github.com/avelir/storefront/internal/invoice"
	"github.com/avelir/storefront/internal/payment"
	"github.com/avelir/storefront/internal/session"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// BaseURL is the externally reachable origin used to build the payment
	// redirect URLs, e.g. "https://shop.example.com".
	BaseURL string
	// APIKeyPepper keys the HMAC applied to staff API keys before lookup.
	APIKeyPepper string
}

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	cfg      Config
	products product.Repository
	carts    cart.Store
	coupons  coupon.Validator
	checkout *order.Service
	orders   order.Repository
	pending  *session.PendingOrders
	gateway  payment.Gateway
	events   EventVerifier
	invoices *invoice.Renderer
	apikeys  auth.Repository
	lg       *zap.Logger
}

// EventVerifier checks a webhook payload signature and parses the event.
type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (payment.WebhookEvent, error)
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(
	cfg Config,
	products product.Repository,
	carts cart.Store,
	coupons coupon.Validator,
	checkout *order.Service,
	orders order.Repository,
	pending *session.PendingOrders,
	gateway payment.Gateway,
	events EventVerifier,
	invoices *invoice.Renderer,
	apikeys auth.Repository,
	lg *zap.Logger,
) *Handler {
	return &Handler{
		cfg:      cfg,
		products: products,
		carts:    carts,
		coupons:  coupons,
		checkout: checkout,
		orders:   orders,
		pending:  pending,
		gateway:  gateway,
		events:   events,
		invoices: invoices,
		apikeys:  apikeys,
		lg:       lg,
	}
}

// Routes returns the full route table on a fresh mux. Session middleware is
// applied per route group so the webhook and admin surfaces stay cookie-free.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /products", h.ListProducts)
	mux.HandleFunc("GET /products/{id}", h.GetProduct)

	mux.Handle("GET /cart", h.withSession(h.GetCart))
	mux.Handle("POST /cart/items", h.withSession(h.AddCartItem))
	mux.Handle("PUT /cart/items/{productID}", h.withSession(h.SetCartItemQuantity))
	mux.Handle("DELETE /cart/items/{productID}", h.withSession(h.RemoveCartItem))
	mux.Handle("POST /cart/coupon", h.withSession(h.ApplyCoupon))
	mux.Handle("DELETE /cart/coupon", h.withSession(h.RemoveCoupon))

	mux.Handle("POST /checkout", h.withSession(h.Checkout))

	mux.Handle("POST /payment/process", h.withSession(h.ProcessPayment))
	mux.Handle("GET /payment/completed", h.withSession(h.PaymentCompleted))
	mux.Handle("GET /payment/cancelled", h.withSession(h.PaymentCancelled))
	mux.HandleFunc("POST /payment/webhook", h.PaymentWebhook)

	mux.Handle("GET /admin/orders/{id}", h.withStaffKey(h.AdminGetOrder))
	mux.Handle("GET /admin/orders/{id}/invoice", h.withStaffKey(h.AdminOrderInvoice))

	return mux
}
