package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned when a line operation would set a
// non-positive quantity through Add.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

var hundred = decimal.NewFromInt(100)

// Line is one pending purchase line. UnitPrice is captured when the line is
// first added and never refreshed from the catalog.
type Line struct {
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// Cost returns UnitPrice * Quantity.
func (l Line) Cost() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the ephemeral, session-scoped collection of pending purchase
// lines plus an optionally applied coupon reference. The coupon is stored
// by identifier only and re-resolved on every read.
type Cart struct {
	Lines      []Line
	CouponID   string
	CouponCode string
}

// Totals holds the computed cart cost breakdown.
type Totals struct {
	Subtotal        decimal.Decimal
	DiscountPercent int
	Discount        decimal.Decimal
	Total           decimal.Decimal
}

// Add inserts a line for the product or, when override is false, increments
// the existing line's quantity. The unit price of an existing line is kept
// as captured.
func (c *Cart) Add(productID, productName string, unitPrice decimal.Decimal, quantity int, override bool) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID != productID {
			continue
		}
		if override {
			c.Lines[i].Quantity = quantity
		} else {
			c.Lines[i].Quantity += quantity
		}
		return nil
	}
	c.Lines = append(c.Lines, Line{
		ProductID:   productID,
		ProductName: productName,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
	})
	return nil
}

// SetQuantity sets the quantity of an existing line. A quantity of zero or
// less removes the line entirely. It reports whether the product was present.
func (c *Cart) SetQuantity(productID string, quantity int) bool {
	for i := range c.Lines {
		if c.Lines[i].ProductID != productID {
			continue
		}
		if quantity <= 0 {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		} else {
			c.Lines[i].Quantity = quantity
		}
		return true
	}
	return false
}

// Remove deletes the line for the given product. It reports whether the
// product was present.
func (c *Cart) Remove(productID string) bool {
	return c.SetQuantity(productID, 0)
}

// ApplyCoupon attaches a coupon reference to the cart.
func (c *Cart) ApplyCoupon(id, code string) {
	c.CouponID = id
	c.CouponCode = code
}

// RemoveCoupon detaches any applied coupon.
func (c *Cart) RemoveCoupon() {
	c.CouponID = ""
	c.CouponCode = ""
}

// Clear empties the cart: all lines and the coupon reference.
func (c *Cart) Clear() {
	c.Lines = nil
	c.RemoveCoupon()
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// TotalQuantity returns the sum of quantities across all lines.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

// Subtotal returns the sum of line costs before any discount.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.Cost())
	}
	return sum
}

// ComputeTotals applies the given percent discount to the subtotal. A zero
// percent yields an exact decimal.Zero discount, never a rounded near-zero.
func (c *Cart) ComputeTotals(discountPercent int) Totals {
	subtotal := c.Subtotal()
	discount := decimal.Zero
	if discountPercent > 0 {
		discount = subtotal.Mul(decimal.NewFromInt(int64(discountPercent))).Div(hundred)
	}
	return Totals{
		Subtotal:        subtotal,
		DiscountPercent: discountPercent,
		Discount:        discount.Round(2),
		Total:           subtotal.Sub(discount).Round(2),
	}
}

// Store persists carts keyed by an opaque session token.
type Store interface {
	Load(ctx context.Context, token string) (*Cart, error)
	Save(ctx context.Context, token string, c *Cart) error
	Clear(ctx context.Context, token string) error
}
