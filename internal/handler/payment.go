package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/avelir/storefront/internal/domain/order"
	"github.com/avelir/storefront/internal/payment"
	"github.com/avelir/storefront/internal/session"
)

// webhookBodyLimit bounds the webhook payload we are willing to read.
const webhookBodyLimit = 1 << 16

// ProcessPayment handles POST /payment/process: it creates a hosted
// checkout session for the session's pending order and redirects to it.
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r.Context())
	orderID, err := h.pending.PendingOrder(r.Context(), token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "no pending order")
			return
		}
		h.respondInternal(w, errors.Wrap(err, "load pending order"))
		return
	}

	o, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "no pending order")
			return
		}
		h.respondInternal(w, errors.Wrapf(err, "get order %s", orderID))
		return
	}

	sess, err := h.gateway.CreateCheckoutSession(r.Context(), o,
		h.cfg.BaseURL+"/payment/completed",
		h.cfg.BaseURL+"/payment/cancelled")
	if err != nil {
		h.respondGateway(w, errors.Wrap(err, "create checkout session"))
		return
	}

	if err := h.orders.SetStripeID(r.Context(), o.ID, sess.ID); err != nil {
		h.respondInternal(w, errors.Wrapf(err, "set stripe id for order %s", o.ID))
		return
	}

	http.Redirect(w, r, sess.URL, http.StatusSeeOther)
}

type paymentStatusResponse struct {
	OrderID string `json:"order_id"`
	Paid    bool   `json:"paid"`
	Status  string `json:"status"`
}

// PaymentCompleted handles GET /payment/completed, the return URL after a
// successful gateway checkout. It only reports state; payment confirmation
// arrives exclusively through the webhook.
func (h *Handler) PaymentCompleted(w http.ResponseWriter, r *http.Request) {
	h.paymentReturn(w, r, "completed")
}

// PaymentCancelled handles GET /payment/cancelled. The pending order stays
// in place so the customer can retry.
func (h *Handler) PaymentCancelled(w http.ResponseWriter, r *http.Request) {
	h.paymentReturn(w, r, "cancelled")
}

func (h *Handler) paymentReturn(w http.ResponseWriter, r *http.Request, status string) {
	orderID, err := h.pending.PendingOrder(r.Context(), sessionToken(r.Context()))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "no pending order")
			return
		}
		h.respondInternal(w, errors.Wrap(err, "load pending order"))
		return
	}
	o, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		h.respondInternal(w, errors.Wrapf(err, "get order %s", orderID))
		return
	}
	h.respondJSON(w, http.StatusOK, paymentStatusResponse{
		OrderID: o.ID,
		Paid:    o.Paid,
		Status:  status,
	})
}

// PaymentWebhook handles POST /payment/webhook. A verified completed-and-paid
// checkout session is the only path that marks an order paid.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	event, err := h.events.VerifyEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.lg.Warn("Webhook verification failed", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if event.Type != payment.EventCheckoutCompleted || !event.Paid {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.orders.MarkPaid(r.Context(), event.OrderID, event.SessionID); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			h.lg.Warn("Webhook references unknown order",
				zap.String("order_id", event.OrderID))
			w.WriteHeader(http.StatusOK)
			return
		}
		// Non-2xx so the gateway redelivers; MarkPaid is idempotent.
		h.respondInternal(w, errors.Wrapf(err, "mark order %s paid", event.OrderID))
		return
	}
	w.WriteHeader(http.StatusOK)
}
