package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when checkout is attempted with no cart lines.
	ErrEmptyCart = errors.New("cart is empty")
)

var hundred = decimal.NewFromInt(100)

// Item is one priced, quantified line within an order. Price is a snapshot
// of the unit price at order time and must never be recomputed from the
// live catalog.
type Item struct {
	ProductID   string
	ProductName string
	Price       decimal.Decimal
	Quantity    int
}

// Cost returns Price * Quantity.
func (i Item) Cost() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the durable record of a completed checkout. After creation only
// Paid, StripeID and Updated may change; everything else is frozen,
// independent of later catalog or coupon changes.
type Order struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	Address    string
	PostalCode string
	City       string
	Created    time.Time
	Updated    time.Time
	Paid       bool
	StripeID   string

	// CouponID references the coupon applied at creation time; it nullifies
	// if the coupon row is later deleted. Discount is the frozen percent
	// snapshot and survives regardless.
	CouponID string
	Discount int

	Items []Item
}

// TotalBeforeDiscount returns the sum of item costs.
func (o *Order) TotalBeforeDiscount() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Cost())
	}
	return sum
}

// DiscountAmount returns the monetary discount derived from the frozen
// percent. A zero discount yields exactly decimal.Zero.
func (o *Order) DiscountAmount() decimal.Decimal {
	if o.Discount == 0 {
		return decimal.Zero
	}
	return o.TotalBeforeDiscount().Mul(decimal.NewFromInt(int64(o.Discount))).Div(hundred)
}

// TotalCost returns the order total after discount, rounded to two decimal
// places per currency convention.
func (o *Order) TotalCost() decimal.Decimal {
	return o.TotalBeforeDiscount().Sub(o.DiscountAmount()).Round(2)
}

// Repository defines persistence operations for orders. Create must write
// the order and all of its items as one atomic unit: a partial write leaves
// no trace.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// SetStripeID records the gateway checkout-session identifier.
	SetStripeID(ctx context.Context, id, stripeID string) error
	// MarkPaid flags the order as paid and records the gateway payment
	// reference. Only the trusted webhook path may call it.
	MarkPaid(ctx context.Context, id, gatewayRef string) error
}
