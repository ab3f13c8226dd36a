package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/avelir/storefront/internal/domain/order"
)

type checkoutResponse struct {
	OrderID  string `json:"order_id"`
	Total    string `json:"total"`
	Discount string `json:"discount"`
	// NextURL points at the payment step for the created order.
	NextURL string `json:"next_url"`
}

type validationErrorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

// Checkout handles POST /checkout: it turns the session cart into an order
// and directs the client to the payment step.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var form order.CheckoutForm
	if err := decodeBody(r, &form); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.checkout.Checkout(r.Context(), sessionToken(r.Context()), form)
	if err != nil {
		var verr *order.ValidationError
		switch {
		case errors.Is(err, order.ErrEmptyCart):
			h.respondError(w, http.StatusUnprocessableEntity, "cart is empty")
		case errors.As(err, &verr):
			h.respondJSON(w, http.StatusUnprocessableEntity, validationErrorResponse{
				Code:    http.StatusUnprocessableEntity,
				Message: "invalid checkout form",
				Fields:  verr.Fields,
			})
		default:
			h.respondInternal(w, errors.Wrap(err, "checkout"))
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:  o.ID,
		Total:    o.TotalCost().StringFixed(2),
		Discount: o.DiscountAmount().Round(2).StringFixed(2),
		NextURL:  h.cfg.BaseURL + "/payment/process",
	})
}
