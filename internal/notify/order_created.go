package notify

import (
	"context"
	"fmt"

	"github.com/go-faster/jx"

	"github.com/avelir/storefront/internal/domain/order"
	"github.com/avelir/storefront/internal/task"
)

// TaskOrderCreated is the queue task emitted after a successful checkout.
const TaskOrderCreated = "order.created"

var _ order.Enqueuer = (*OrderEnqueuer)(nil)

// OrderEnqueuer publishes order-created tasks onto the queue.
type OrderEnqueuer struct {
	queue task.Queue
}

// NewOrderEnqueuer returns an enqueuer over the given queue.
func NewOrderEnqueuer(queue task.Queue) *OrderEnqueuer {
	return &OrderEnqueuer{queue: queue}
}

// EnqueueOrderCreated queues a confirmation-email task for the order.
func (e *OrderEnqueuer) EnqueueOrderCreated(ctx context.Context, orderID string) error {
	return e.queue.Enqueue(ctx, task.Task{
		Name:    TaskOrderCreated,
		Payload: encodeOrderCreated(orderID),
	})
}

// OrderCreatedHandler sends the confirmation email for a freshly created
// order. It reloads the order from storage rather than trusting the payload
// so a retried task always sees current data.
type OrderCreatedHandler struct {
	orders order.Repository
	mailer Mailer
}

// NewOrderCreatedHandler returns the task handler for TaskOrderCreated.
func NewOrderCreatedHandler(orders order.Repository, mailer Mailer) *OrderCreatedHandler {
	return &OrderCreatedHandler{orders: orders, mailer: mailer}
}

// Handle decodes the payload, loads the order and sends the email.
func (h *OrderCreatedHandler) Handle(ctx context.Context, t task.Task) error {
	orderID, err := decodeOrderCreated(t.Payload)
	if err != nil {
		return fmt.Errorf("decoding order created payload: %w", err)
	}
	o, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("loading order %q: %w", orderID, err)
	}
	msg := Message{
		To:      o.Email,
		Subject: fmt.Sprintf("Order confirmation %s", o.ID),
		Body: fmt.Sprintf(
			"Hi %s,\n\nThanks for your order!\n\nOrder number: %s\nTotal: %s\n\nWe will let you know once your payment is confirmed.\n",
			o.FirstName, o.ID, o.TotalCost().StringFixed(2)),
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending order confirmation: %w", err)
	}
	return nil
}

func encodeOrderCreated(orderID string) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("order_id", func(e *jx.Encoder) {
			e.Str(orderID)
		})
	})
	return e.Bytes()
}

func decodeOrderCreated(raw []byte) (string, error) {
	var orderID string
	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "order_id":
			v, err := d.Str()
			orderID = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", err
	}
	if orderID == "" {
		return "", fmt.Errorf("payload has no order_id")
	}
	return orderID, nil
}
