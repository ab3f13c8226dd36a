package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// apiError is the JSON shape of every error response.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.lg.Warn("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, apiError{Code: status, Message: message})
}

// respondInternal logs the cause and returns an opaque 500 or 502. Internal
// detail never leaks to the client.
func (h *Handler) respondInternal(w http.ResponseWriter, err error) {
	h.lg.Error("Request failed", zap.Error(err))
	h.respondError(w, http.StatusInternalServerError, "internal error")
}

func (h *Handler) respondGateway(w http.ResponseWriter, err error) {
	h.lg.Error("Payment gateway call failed", zap.Error(err))
	h.respondError(w, http.StatusBadGateway, "payment provider unavailable")
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
