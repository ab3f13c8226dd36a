package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/avelir/storefront/internal/domain/auth"
	"github.com/avelir/storefront/internal/domain/order"
)

const apiKeyHeader = "X-Api-Key"

// hashAPIKey computes the peppered HMAC-SHA256 of a presented key. Keys are
// stored only in this form.
func hashAPIKey(pepper, key string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// withStaffKey authenticates a request by hashing the presented API key,
// looking it up, and comparing in constant time. The key must additionally
// carry the staff scope.
func (h *Handler) withStaffKey(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			h.respondError(w, http.StatusUnauthorized, "missing api key")
			return
		}

		hexHash := hashAPIKey(h.cfg.APIKeyPepper, key)
		info, err := h.apikeys.FindByHash(r.Context(), hexHash)
		if err != nil {
			h.respondError(w, http.StatusUnauthorized, "invalid api key")
			return
		}

		// Constant-time comparison guards against timing side-channels even
		// though the lookup already succeeded: the stored hash could differ
		// from what we computed if the repository returns a stale row.
		storedBytes, err := hex.DecodeString(info.KeyHash)
		if err != nil {
			h.respondError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		computed, _ := hex.DecodeString(hexHash)
		if subtle.ConstantTimeCompare(computed, storedBytes) != 1 {
			h.respondError(w, http.StatusUnauthorized, "invalid api key")
			return
		}

		if !info.HasScope(auth.ScopeStaff) {
			h.respondError(w, http.StatusForbidden, "staff scope required")
			return
		}

		next(w, r)
	})
}

type adminOrderItemResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Price       string `json:"price"`
	Quantity    int    `json:"quantity"`
	Cost        string `json:"cost"`
}

type adminOrderResponse struct {
	ID         string                   `json:"id"`
	FirstName  string                   `json:"first_name"`
	LastName   string                   `json:"last_name"`
	Email      string                   `json:"email"`
	Address    string                   `json:"address"`
	PostalCode string                   `json:"postal_code"`
	City       string                   `json:"city"`
	Created    time.Time                `json:"created"`
	Updated    time.Time                `json:"updated"`
	Paid       bool                     `json:"paid"`
	StripeID   string                   `json:"stripe_id,omitempty"`
	Discount   int                      `json:"discount"`
	Subtotal   string                   `json:"subtotal"`
	Total      string                   `json:"total"`
	Items      []adminOrderItemResponse `json:"items"`
}

// AdminGetOrder handles GET /admin/orders/{id}.
func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	items := make([]adminOrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, adminOrderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       it.Price.StringFixed(2),
			Quantity:    it.Quantity,
			Cost:        it.Cost().StringFixed(2),
		})
	}
	h.respondJSON(w, http.StatusOK, adminOrderResponse{
		ID:         o.ID,
		FirstName:  o.FirstName,
		LastName:   o.LastName,
		Email:      o.Email,
		Address:    o.Address,
		PostalCode: o.PostalCode,
		City:       o.City,
		Created:    o.Created,
		Updated:    o.Updated,
		Paid:       o.Paid,
		StripeID:   o.StripeID,
		Discount:   o.Discount,
		Subtotal:   o.TotalBeforeDiscount().StringFixed(2),
		Total:      o.TotalCost().StringFixed(2),
		Items:      items,
	})
}

// AdminOrderInvoice handles GET /admin/orders/{id}/invoice, streaming the
// rendered PDF.
func (h *Handler) AdminOrderInvoice(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice-`+o.ID+`.pdf"`)
	if err := h.invoices.Render(o, w); err != nil {
		// Headers are out; all we can do is log.
		h.lg.Error("Invoice rendering failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (h *Handler) loadOrder(w http.ResponseWriter, r *http.Request) (*order.Order, bool) {
	id := r.PathValue("id")
	o, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "order not found")
			return nil, false
		}
		h.respondInternal(w, errors.Wrapf(err, "get order %s", id))
		return nil, false
	}
	return o, true
}
