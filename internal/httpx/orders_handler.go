package httpx

import (
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxBodyBytes    = 64 << 10
)

type OrdersHandler struct {
	Orchestrator *orders.Orchestrator
	Lifecycle    *orders.Lifecycle
	Verifier     *auth.Verifier
}

// AddressReq is the body of POST /orders and PATCH /orders/{id}/address.
type AddressReq struct {
	ShippingAddress *orders.Address `json:"shippingAddress"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(Authenticate(h.Verifier))

		r.With(RequireRoles(auth.RoleUser)).Post("/", h.createOrder)
		// /me must be registered before /{id}
		r.With(RequireRoles(auth.RoleUser)).Get("/me", h.listMyOrders)

		r.Group(func(r chi.Router) {
			r.Use(RequireRoles(auth.RoleUser, auth.RoleAdmin))
			r.Get("/{id}", h.getOrder)
			r.Post("/{id}/cancel", h.cancelOrder)
			r.Patch("/{id}/address", h.updateAddress)
		})
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req AddressReq
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	who, _ := auth.FromContext(r.Context())

	o, replayed, err := h.Orchestrator.CreateOrder(r.Context(), orders.CreateRequest{
		Caller:          who,
		Token:           auth.TokenFromContext(r.Context()),
		ShippingAddress: req.ShippingAddress,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		writeJSON(w, http.StatusOK, o)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := intParam(q.Get("pageSize"), "pageSize", defaultPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	who, _ := auth.FromContext(r.Context())
	p, err := h.Lifecycle.ListMyOrders(r.Context(), who, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())
	o, err := h.Lifecycle.GetOrder(r.Context(), chi.URLParam(r, "id"), who)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())
	o, err := h.Lifecycle.CancelOrder(r.Context(), chi.URLParam(r, "id"), who)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateAddress(w http.ResponseWriter, r *http.Request) {
	var req AddressReq
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	who, _ := auth.FromContext(r.Context())
	o, err := h.Lifecycle.UpdateShippingAddress(r.Context(), chi.URLParam(r, "id"), who, req.ShippingAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// decodeBody accepts an empty body as {} so a missing address is reported
// by validation rather than as malformed JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return orders.Validationf("invalid json body")
}

func intParam(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, orders.Validationf("%s must be a positive integer", name)
	}
	return n, nil
}
