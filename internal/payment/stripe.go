// Package payment adapts orders to the Stripe hosted-checkout flow.
package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/avelir/storefront/internal/domain/order"
)

var minorUnitFactor = decimal.NewFromInt(100)

// Session is a created hosted-checkout session: the gateway identifier to
// persist on the order and the URL to redirect the customer to.
type Session struct {
	ID  string
	URL string
}

// Gateway creates hosted payment sessions for orders.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, o *order.Order, successURL, cancelURL string) (*Session, error)
}

var _ Gateway = (*StripeGateway)(nil)

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	client        *client.API
	currency      string
	webhookSecret string
}

// NewStripeGateway returns a gateway using the given secret key. Currency is
// the lowercase ISO code for all line items, e.g. "usd".
func NewStripeGateway(secretKey, webhookSecret, currency string) *StripeGateway {
	return &StripeGateway{
		client:        client.New(secretKey, nil),
		currency:      currency,
		webhookSecret: webhookSecret,
	}
}

// CreateCheckoutSession builds a one-off hosted checkout session from the
// order's frozen snapshot. The order ID travels as the client reference so
// the webhook can find its way back.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, o *order.Order, successURL, cancelURL string) (*Session, error) {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.currency),
				UnitAmount: stripe.Int64(MinorUnits(it.Price)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.ProductName),
				},
			},
			Quantity: stripe.Int64(int64(it.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         items,
		ClientReferenceID: stripe.String(o.ID),
		CustomerEmail:     stripe.String(o.Email),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
	}

	if o.Discount > 0 {
		c, err := g.client.Coupons.New(&stripe.CouponParams{
			Params:     stripe.Params{Context: ctx},
			PercentOff: stripe.Float64(float64(o.Discount)),
			Duration:   stripe.String(string(stripe.CouponDurationOnce)),
		})
		if err != nil {
			return nil, fmt.Errorf("creating stripe coupon: %w", err)
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(c.ID)},
		}
	}

	sess, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating stripe checkout session: %w", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// WebhookEvent is a verified, gateway-neutral payment event.
type WebhookEvent struct {
	Type string
	// OrderID is the client reference carried through the checkout session.
	// Empty for event types that do not reference a session.
	OrderID string
	// SessionID is the gateway checkout-session identifier.
	SessionID string
	// Paid reports whether the session's payment has actually settled.
	// Completed sessions with deferred payment methods arrive unpaid.
	Paid bool
}

// EventCheckoutCompleted is the event type emitted when a hosted checkout
// session finishes.
const EventCheckoutCompleted = "checkout.session.completed"

// VerifyEvent checks the webhook signature and parses the event payload.
func (g *StripeGateway) VerifyEvent(payload []byte, signature string) (WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("verifying stripe event: %w", err)
	}

	out := WebhookEvent{Type: string(event.Type)}
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return WebhookEvent{}, fmt.Errorf("decoding checkout session event: %w", err)
		}
		out.OrderID = sess.ClientReferenceID
		out.SessionID = sess.ID
		out.Paid = sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	}
	return out, nil
}

// MinorUnits converts a decimal major-unit amount to the integer minor units
// Stripe expects, e.g. 19.99 to 1999.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitFactor).Round(0).IntPart()
}
