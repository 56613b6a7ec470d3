package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/voucher"
)

// AnonIDHeader carries the anonymous session identifier for guest carts.
const AnonIDHeader = "X-Anon-Id"

// Handler wires cart operations to HTTP.
type Handler struct {
	Svc *Service
}

func owner(r *http.Request) (userID, anonID string) {
	userID, _ = common.UserID(r.Context())
	anonID = strings.TrimSpace(r.Header.Get(AnonIDHeader))
	return userID, anonID
}

type cartView struct {
	Cart
	Totals Totals `json:"totals"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, c Cart) {
	totals, err := h.Svc.price(c)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, status, map[string]any{"data": cartView{Cart: c, Totals: totals}})
}

// Get handles GET /api/v1/cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, anonID := owner(r)
	c, err := h.Svc.EnsureCart(r.Context(), userID, anonID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, c)
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	userID, anonID := owner(r)
	c, err := h.Svc.AddItem(r.Context(), userID, anonID, req.ProductID, req.Qty)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, c)
}

type updateQtyRequest struct {
	Qty int `json:"qty"`
}

// UpdateQuantity handles PATCH /api/v1/cart/items/{productId}.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var req updateQtyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	userID, anonID := owner(r)
	c, err := h.Svc.UpdateQuantity(r.Context(), userID, anonID, chi.URLParam(r, "productId"), req.Qty)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, c)
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, anonID := owner(r)
	c, err := h.Svc.RemoveItem(r.Context(), userID, anonID, chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, c)
}

// Clear handles DELETE /api/v1/cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, anonID := owner(r)
	c, err := h.Svc.Clear(r.Context(), userID, anonID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, c)
}

type applyVoucherRequest struct {
	Code string `json:"code"`
}

// ApplyVoucher handles POST /api/v1/cart/voucher.
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var req applyVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	userID, anonID := owner(r)
	c, err := h.Svc.ApplyVoucher(r.Context(), userID, anonID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, c)
}

// RemoveVoucher handles DELETE /api/v1/cart/voucher.
func (h *Handler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, anonID := owner(r)
	c, err := h.Svc.RemoveVoucher(r.Context(), userID, anonID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, c)
}

// Totals handles GET /api/v1/cart/totals.
func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, anonID := owner(r)
	totals, err := h.Svc.Totals(r.Context(), userID, anonID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": totals})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, voucher.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "voucher not found", nil)
	case errors.Is(err, voucher.ErrMinimumSpendUnmet),
		errors.Is(err, voucher.ErrVoucherInactive),
		errors.Is(err, voucher.ErrVoucherExpired),
		errors.Is(err, voucher.ErrUsageLimitReached):
		common.JSONError(w, http.StatusUnprocessableEntity, "VOUCHER_NOT_ELIGIBLE", err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}
