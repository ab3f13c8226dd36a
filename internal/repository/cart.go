package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/avelir/storefront/internal/domain/cart"
	"github.com/avelir/storefront/internal/session"
)

const cartSessionField = "cart"

var _ cart.Store = (*SessionCartStore)(nil)

// SessionCartStore keeps carts in the session store, one JSON blob per
// session token. Prices travel as strings so they round-trip exactly.
type SessionCartStore struct {
	sessions session.Store
}

// NewSessionCartStore returns a SessionCartStore over the given session store.
func NewSessionCartStore(sessions session.Store) *SessionCartStore {
	return &SessionCartStore{sessions: sessions}
}

// Load returns the cart for the given session token. A token with no saved
// cart yields an empty cart, not an error.
func (s *SessionCartStore) Load(ctx context.Context, token string) (*cart.Cart, error) {
	raw, err := s.sessions.Get(ctx, token, cartSessionField)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return &cart.Cart{}, nil
		}
		return nil, fmt.Errorf("loading cart: %w", err)
	}
	c, err := decodeCart(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding cart: %w", err)
	}
	return c, nil
}

// Save persists the cart under the session token.
func (s *SessionCartStore) Save(ctx context.Context, token string, c *cart.Cart) error {
	if err := s.sessions.Set(ctx, token, cartSessionField, encodeCart(c)); err != nil {
		return fmt.Errorf("saving cart: %w", err)
	}
	return nil
}

// Clear removes the saved cart for the session token.
func (s *SessionCartStore) Clear(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token, cartSessionField); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}

func encodeCart(c *cart.Cart) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("coupon_id", func(e *jx.Encoder) {
			e.Str(c.CouponID)
		})
		e.Field("coupon_code", func(e *jx.Encoder) {
			e.Str(c.CouponCode)
		})
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range c.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) {
							e.Str(l.ProductID)
						})
						e.Field("product_name", func(e *jx.Encoder) {
							e.Str(l.ProductName)
						})
						e.Field("unit_price", func(e *jx.Encoder) {
							e.Str(l.UnitPrice.String())
						})
						e.Field("quantity", func(e *jx.Encoder) {
							e.Int(l.Quantity)
						})
					})
				}
			})
		})
	})
	return e.Bytes()
}

func decodeCart(raw []byte) (*cart.Cart, error) {
	var c cart.Cart
	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "coupon_id":
			v, err := d.Str()
			c.CouponID = v
			return err
		case "coupon_code":
			v, err := d.Str()
			c.CouponCode = v
			return err
		case "lines":
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeCartLine(d)
				if err != nil {
					return err
				}
				c.Lines = append(c.Lines, l)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeCartLine(d *jx.Decoder) (cart.Line, error) {
	var l cart.Line
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Str()
			l.ProductID = v
			return err
		case "product_name":
			v, err := d.Str()
			l.ProductName = v
			return err
		case "unit_price":
			v, err := d.Str()
			if err != nil {
				return err
			}
			l.UnitPrice, err = decimal.NewFromString(v)
			return err
		case "quantity":
			v, err := d.Int()
			l.Quantity = v
			return err
		default:
			return d.Skip()
		}
	})
	return l, err
}
