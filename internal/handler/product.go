package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/avelir/storefront/internal/domain/product"
)

// productResponse is the JSON shape of a catalog product. Price travels as
// a string to keep the decimal exact.
type productResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Category string `json:"category"`
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price.StringFixed(2),
		Category: p.Category,
	}
}

// ListProducts handles GET /products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.respondInternal(w, errors.Wrap(err, "list products"))
		return
	}
	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "product not found")
			return
		}
		h.respondInternal(w, errors.Wrapf(err, "get product %s", id))
		return
	}
	h.respondJSON(w, http.StatusOK, toProductResponse(*p))
}
