package httpx

import (
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"log/slog"
	"net/http"
)

type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor is the single mapping from error kind to HTTP status.
func statusFor(k orders.Kind) int {
	switch k {
	case orders.KindValidation, orders.KindInvalidTransition:
		return http.StatusBadRequest
	case orders.KindUnauthorized:
		return http.StatusUnauthorized
	case orders.KindForbidden:
		return http.StatusForbidden
	case orders.KindNotFound:
		return http.StatusNotFound
	case orders.KindInsufficientStock, orders.KindConflict:
		return http.StatusConflict
	case orders.KindUpstreamUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := orders.KindOf(err)
	code := statusFor(kind)
	switch {
	case code >= 500:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	case errors.Is(err, orders.ErrUnauthorized), errors.Is(err, orders.ErrForbidden):
		slog.InfoContext(r.Context(), "request denied", "path", r.URL.Path, "kind", kind)
	}
	if kind == "" {
		kind = "internal_error"
	}
	writeJSON(w, code, ErrorBody{Error: string(kind), Message: orders.PublicMessage(err)})
}
