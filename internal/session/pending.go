package session

import (
	"context"

	"github.com/go-faster/errors"
)

const fieldPendingOrder = "order_id"

// PendingOrders records which order a session is currently paying for.
// It satisfies the checkout orchestrator's PendingOrders dependency.
type PendingOrders struct {
	store Store
}

// NewPendingOrders creates a PendingOrders helper over the given Store.
func NewPendingOrders(store Store) *PendingOrders {
	return &PendingOrders{store: store}
}

// SetPendingOrder associates an order with the session token.
func (p *PendingOrders) SetPendingOrder(ctx context.Context, token, orderID string) error {
	return p.store.Set(ctx, token, fieldPendingOrder, []byte(orderID))
}

// PendingOrder returns the order associated with the session token, or
// ErrNotFound when the session has none.
func (p *PendingOrders) PendingOrder(ctx context.Context, token string) (string, error) {
	val, err := p.store.Get(ctx, token, fieldPendingOrder)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", errors.Wrap(err, "pending order")
	}
	return string(val), nil
}
