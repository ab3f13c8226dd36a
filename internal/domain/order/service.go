package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelir/storefront/internal/domain/cart"
	"github.com/avelir/storefront/internal/domain/coupon"
)

// Enqueuer dispatches the asynchronous order-created notification. Enqueue
// failures never fail a checkout: the order is already committed.
type Enqueuer interface {
	EnqueueOrderCreated(ctx context.Context, orderID string) error
}

// PendingOrders associates the freshly created order with the customer's
// session so the payment flow can locate it without re-authentication.
type PendingOrders interface {
	SetPendingOrder(ctx context.Context, token, orderID string) error
	PendingOrder(ctx context.Context, token string) (string, error)
}

// Service turns a session cart into a persisted order: the checkout
// orchestrator.
type Service struct {
	carts    cart.Store
	coupons  coupon.Validator
	orders   Repository
	sessions PendingOrders
	queue    Enqueuer
	lg       *zap.Logger
	now      func() time.Time
}

// NewService creates the checkout Service with its collaborators.
func NewService(
	carts cart.Store,
	coupons coupon.Validator,
	orders Repository,
	sessions PendingOrders,
	queue Enqueuer,
	lg *zap.Logger,
) *Service {
	return &Service{
		carts:    carts,
		coupons:  coupons,
		orders:   orders,
		sessions: sessions,
		queue:    queue,
		lg:       lg,
		now:      time.Now,
	}
}

// Checkout validates the submitted customer details, persists an order with
// one item per cart line (unit prices copied from the cart's captured
// values, coupon percent snapshotted from its current state), clears the
// cart, records the pending order on the session, and enqueues the
// confirmation notification.
//
// On any failure before the order commit, nothing is mutated and the cart
// stays intact.
func (s *Service) Checkout(ctx context.Context, token string, form CheckoutForm) (*Order, error) {
	ct, err := s.carts.Load(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if ct.IsEmpty() {
		return nil, ErrEmptyCart
	}

	if err := form.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		ID:         uuid.New().String(),
		FirstName:  form.FirstName,
		LastName:   form.LastName,
		Email:      form.Email,
		Address:    form.Address,
		PostalCode: form.PostalCode,
		City:       form.City,
		Created:    now,
		Updated:    now,
	}

	// Snapshot the coupon's current percent. A coupon that went stale since
	// it was applied to the cart silently contributes no discount; the order
	// is the durable record, the cart reference is only advisory.
	if ct.CouponID != "" {
		c, err := s.coupons.Resolve(ctx, ct.CouponCode)
		switch {
		case err == nil:
			o.CouponID = c.ID
			o.Discount = c.DiscountPercent
		case errors.Is(err, coupon.ErrNotFound), errors.Is(err, coupon.ErrNotUsable):
			s.lg.Info("applied coupon no longer usable, checking out without discount",
				zap.String("coupon_code", ct.CouponCode))
		default:
			return nil, errors.Wrap(err, "resolve coupon")
		}
	}

	o.Items = make([]Item, len(ct.Lines))
	for i, l := range ct.Lines {
		o.Items[i] = Item{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Price:       l.UnitPrice,
			Quantity:    l.Quantity,
		}
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	// The cart is cleared exactly once, only after the order and all of its
	// items are durably persisted.
	if err := s.carts.Clear(ctx, token); err != nil {
		s.lg.Warn("failed to clear cart after checkout",
			zap.String("order_id", o.ID), zap.Error(err))
	}

	if err := s.sessions.SetPendingOrder(ctx, token, o.ID); err != nil {
		return nil, errors.Wrap(err, "set pending order")
	}

	if err := s.queue.EnqueueOrderCreated(ctx, o.ID); err != nil {
		s.lg.Warn("failed to enqueue order notification",
			zap.String("order_id", o.ID), zap.Error(err))
	}

	return o, nil
}
