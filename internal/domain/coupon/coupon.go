package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a coupon code does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotUsable is returned when a coupon exists but is inactive or
	// outside its validity window.
	ErrNotUsable = errors.New("coupon not usable")
)

// Coupon is an administrator-defined percent-off code with an inclusive
// validity window. The checkout flow only ever reads coupons.
type Coupon struct {
	ID              string
	Code            string
	DiscountPercent int
	ValidFrom       time.Time
	ValidTo         time.Time
	Active          bool
}

// UsableAt reports whether the coupon may be applied at the given time:
// it must be active and t must fall inside [ValidFrom, ValidTo].
func (c *Coupon) UsableAt(t time.Time) bool {
	if !c.Active {
		return false
	}
	return !t.Before(c.ValidFrom) && !t.After(c.ValidTo)
}

// Repository provides lookup of coupons.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// ListCodes returns every known coupon code, used to warm the code filter.
	ListCodes(ctx context.Context) ([]string, error)
}
