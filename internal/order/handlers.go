package order

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/payment"
)

// AnonIDHeader mirrors the cart header so guests can review their own orders.
const AnonIDHeader = "X-Anon-Id"

// Handler exposes order history and receipts for storefront clients.
type Handler struct {
	Store *Store
}

// List handles GET /api/v1/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	userID, _ := common.UserID(r.Context())
	anonID := strings.TrimSpace(r.Header.Get(AnonIDHeader))
	orders := h.Store.ListByOwner(userID, anonID)
	page, perPage := common.ParsePagination(r, 20)
	lo, hi := common.PageBounds(page, perPage, len(orders))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": orders[lo:hi],
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(orders)},
	})
}

// Detail handles GET /api/v1/orders/{id}.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	o, err := h.Store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	userID, _ := common.UserID(r.Context())
	anonID := strings.TrimSpace(r.Header.Get(AnonIDHeader))
	if !owns(o, userID, anonID) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

func owns(o Order, userID, anonID string) bool {
	if userID != "" {
		return o.UserID == userID
	}
	return anonID != "" && o.AnonID == anonID
}

// AdminHandler exposes back-office order management.
type AdminHandler struct {
	Store    *Store
	Payments *payment.Service
	Bus      *events.Bus
}

// List handles GET /api/v1/admin/orders.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	orders := h.Store.List()
	page, perPage := common.ParsePagination(r, 20)
	lo, hi := common.PageBounds(page, perPage, len(orders))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": orders[lo:hi],
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(orders)},
	})
}

// Cancel handles POST /api/v1/admin/orders/{id}/cancel.
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	o, err := h.Store.SetStatus(chi.URLParam(r, "id"), StatusCanceled)
	if err != nil {
		writeError(w, err)
		return
	}
	h.emit(r, events.TopicOrderCanceled, o.ID)
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// Refund handles POST /api/v1/admin/orders/{id}/refund. The settled
// transaction is voided at the gateway before the order transitions.
func (h *AdminHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := h.Store.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Payments != nil && o.TransactionID != "" {
		if _, err := h.Payments.Cancel(r.Context(), o.TransactionID); err != nil && !errors.Is(err, payment.ErrNotFound) {
			common.WriteError(w, err)
			return
		}
	}
	o, err = h.Store.SetStatus(id, StatusRefunded)
	if err != nil {
		writeError(w, err)
		return
	}
	h.emit(r, events.TopicOrderRefunded, o.ID)
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

func (h *AdminHandler) emit(r *http.Request, topic, orderID string) {
	if h.Bus == nil {
		return
	}
	_, _ = h.Bus.Emit(r.Context(), topic, orderID, nil)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}
