package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelir/storefront/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, first_name, last_name, email, address, postal_code, city,
			created, updated, paid, stripe_id, coupon_id, discount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, product_name, price, quantity)
		VALUES ($1, $2, $3, $4, $5)`

	getOrderSQL = `SELECT id, first_name, last_name, email, address, postal_code, city,
			created, updated, paid, stripe_id, coupon_id, discount
		FROM orders WHERE id = $1`

	getOrderItemsSQL = `SELECT product_id, product_name, price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id`

	setOrderStripeIDSQL = `UPDATE orders SET stripe_id = $2, updated = now() WHERE id = $1`

	markOrderPaidSQL = `UPDATE orders SET paid = TRUE, updated = now(),
			stripe_id = CASE WHEN $2 <> '' THEN $2 ELSE stripe_id END
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and all of its items in a single transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var couponID *string
		if o.CouponID != "" {
			couponID = &o.CouponID
		}
		_, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.FirstName, o.LastName, o.Email, o.Address, o.PostalCode, o.City,
			o.Created, o.Updated, o.Paid, o.StripeID, couponID, o.Discount)
		if err != nil {
			return fmt.Errorf("inserting order %q: %w", o.ID, err)
		}
		for _, it := range o.Items {
			_, err := tx.Exec(ctx, insertOrderItemSQL,
				o.ID, it.ProductID, it.ProductName, it.Price, it.Quantity)
			if err != nil {
				return fmt.Errorf("inserting order item %q: %w", it.ProductID, err)
			}
		}
		return nil
	})
}

// GetByID returns an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	itemRows, err := r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}
	return &o, nil
}

// SetStripeID records the gateway session identifier for an order.
func (r *OrderRepository) SetStripeID(ctx context.Context, id, stripeID string) error {
	tag, err := r.pool.Exec(ctx, setOrderStripeIDSQL, id, stripeID)
	if err != nil {
		return fmt.Errorf("setting stripe id for order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// MarkPaid flags an order as paid, keeping the existing gateway reference
// unless a non-empty one is supplied.
func (r *OrderRepository) MarkPaid(ctx context.Context, id, gatewayRef string) error {
	tag, err := r.pool.Exec(ctx, markOrderPaidSQL, id, gatewayRef)
	if err != nil {
		return fmt.Errorf("marking order %q paid: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		stripeID *string
		couponID *string
	)
	err := row.Scan(&o.ID, &o.FirstName, &o.LastName, &o.Email, &o.Address, &o.PostalCode, &o.City,
		&o.Created, &o.Updated, &o.Paid, &stripeID, &couponID, &o.Discount)
	if stripeID != nil {
		o.StripeID = *stripeID
	}
	if couponID != nil {
		o.CouponID = *couponID
	}
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(&it.ProductID, &it.ProductName, &it.Price, &it.Quantity)
	return it, err
}
