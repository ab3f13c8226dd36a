package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/avelir/storefront/internal/domain/cart"
	"github.com/avelir/storefront/internal/domain/coupon"
	"github.com/avelir/storefront/internal/domain/product"
)

type cartLineResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Cost        string `json:"cost"`
}

type cartResponse struct {
	Lines           []cartLineResponse `json:"lines"`
	CouponCode      string             `json:"coupon_code,omitempty"`
	TotalQuantity   int                `json:"total_quantity"`
	Subtotal        string             `json:"subtotal"`
	DiscountPercent int                `json:"discount_percent"`
	Discount        string             `json:"discount"`
	Total           string             `json:"total"`
}

// cartView resolves the applied coupon against current data and computes
// totals. A coupon that has since expired or vanished contributes nothing.
func (h *Handler) cartView(r *http.Request, c *cart.Cart) cartResponse {
	percent := 0
	if c.CouponCode != "" {
		cp, err := h.coupons.Resolve(r.Context(), c.CouponCode)
		switch {
		case err == nil:
			percent = cp.DiscountPercent
		case errors.Is(err, coupon.ErrNotFound), errors.Is(err, coupon.ErrNotUsable):
			// Shown without discount; checkout applies the same rule.
		default:
			h.lg.Warn("Coupon resolution failed on cart read",
				zap.String("code", c.CouponCode), zap.Error(err))
		}
	}
	totals := c.ComputeTotals(percent)

	lines := make([]cartLineResponse, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, cartLineResponse{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Quantity:    l.Quantity,
			Cost:        l.Cost().StringFixed(2),
		})
	}
	return cartResponse{
		Lines:           lines,
		CouponCode:      c.CouponCode,
		TotalQuantity:   c.TotalQuantity(),
		Subtotal:        totals.Subtotal.StringFixed(2),
		DiscountPercent: totals.DiscountPercent,
		Discount:        totals.Discount.StringFixed(2),
		Total:           totals.Total.StringFixed(2),
	}
}

// GetCart handles GET /cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Load(r.Context(), sessionToken(r.Context()))
	if err != nil {
		h.respondInternal(w, errors.Wrap(err, "load cart"))
		return
	}
	h.respondJSON(w, http.StatusOK, h.cartView(r, c))
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// Override replaces the line quantity instead of incrementing it.
	Override bool `json:"override,omitempty"`
}

// AddCartItem handles POST /cart/items. The product's current catalog price
// is captured into the line and kept for the cart's lifetime.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity <= 0 {
		h.respondError(w, http.StatusUnprocessableEntity, "quantity must be greater than 0")
		return
	}

	p, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			h.respondError(w, http.StatusUnprocessableEntity, "product "+req.ProductID+" not found")
			return
		}
		h.respondInternal(w, errors.Wrapf(err, "get product %s", req.ProductID))
		return
	}

	token := sessionToken(r.Context())
	c, err := h.carts.Load(r.Context(), token)
	if err != nil {
		h.respondInternal(w, errors.Wrap(err, "load cart"))
		return
	}
	if err := c.Add(p.ID, p.Name, p.Price, req.Quantity, req.Override); err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.carts.Save(r.Context(), token, c); err != nil {
		h.respondInternal(w, errors.Wrap(err, "save cart"))
		return
	}
	h.respondJSON(w, http.StatusOK, h.cartView(r, c))
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// SetCartItemQuantity handles PUT /cart/items/{productID}. A quantity of
// zero removes the line.
func (h *Handler) SetCartItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token := sessionToken(r.Context())
	c, err := h.carts.Load(r.Context(), token)
	if err != nil {
		h.respondInternal(w, errors.Wrap(err, "load cart"))
		return
	}
	if !c.SetQuantity(r.PathValue("productID"), req.Quantity) {
		h.respondError(w, http.StatusNotFound, "product not in cart")
		return
	}
	if err := h.carts.Save(r.Context(), token, c); err != nil {
		h.respondInternal(w, errors.Wrap(err, "save cart"))
		return
	}
	h.respondJSON(w, http.StatusOK, h.cartView(r, c))
}

// RemoveCartItem handles DELETE /cart/items/{productID}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r.Context())
	c, err := h.carts.Load(r.Context(), token)
	if err != nil {
		h.respondInternal(w, errors.Wrap(err, "load cart"))
		return
	}
	if !c.Remove(r.PathValue("productID")) {
		h.respondError(w, http.StatusNotFound, "product not in cart")
		return
	}
	if err := h.carts.Save(r.Context(), token, c); err != nil {
		h.respondInternal(w, errors.Wrap(err, "save cart"))
		return
	}
	h.respondJSON(w, http.StatusOK, h.cartView(r, c))
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

// ApplyCoupon handles POST /cart/coupon. The coupon must be usable right
// now; it is stored by reference and re-checked on every later read.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := decodeBody(r, &req); err != nil || req.Code == "" {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cp, err := h.coupons.Resolve(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) || errors.Is(err, coupon.ErrNotUsable) {
			h.respondError(w, http.StatusUnprocessableEntity, "invalid coupon code")
			return
		}
		h.respondInternal(w, errors.Wrap(err, "resolve coupon"))
		return
	}

	token := sessionToken(r.Context())
	c, err := h.carts.Load(r.Context(), token)
	if err != nil {
		h.respondInternal(w, errors.Wrap(err, "load cart"))
		return
	}
	c.ApplyCoupon(cp.ID, cp.Code)
	if err := h.carts.Save(r.Context(), token, c); err != nil {
		h.respondInternal(w, errors.Wrap(err, "save cart"))
		return
	}
	h.respondJSON(w, http.StatusOK, h.cartView(r, c))
}

// RemoveCoupon handles DELETE /cart/coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r.Context())
	c, err := h.carts.Load(r.Context(), token)
	if err != nil {
		h.respondInternal(w, errors.Wrap(err, "load cart"))
		return
	}
	c.RemoveCoupon()
	if err := h.carts.Save(r.Context(), token, c); err != nil {
		h.respondInternal(w, errors.Wrap(err, "save cart"))
		return
	}
	h.respondJSON(w, http.StatusOK, h.cartView(r, c))
}
