package voucher

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/common"
)

// Handler exposes coupon preview for storefront clients.
type Handler struct {
	Svc *Service
}

type previewRequest struct {
	Code     string `json:"code"`
	Subtotal int64  `json:"subtotal"`
}

// Preview evaluates a coupon against a hypothetical subtotal without consuming it.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher service not configured", nil)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	discount, err := h.Svc.Evaluate(req.Code, req.Subtotal)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"code":     normaliseCode(req.Code),
		"discount": discount,
	}})
}

// AdminHandler exposes back-office coupon management.
type AdminHandler struct {
	Svc *Service
}

// List returns every coupon definition.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Svc.List()})
}

// Create registers a new coupon.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var v Voucher
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	created, err := h.Svc.Create(v)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update modifies an existing coupon.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	var v Voucher
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	updated, err := h.Svc.Update(chi.URLParam(r, "code"), v)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Delete removes a coupon.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(chi.URLParam(r, "code")); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": nil})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "voucher not found", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrMinimumSpendUnmet),
		errors.Is(err, ErrVoucherInactive),
		errors.Is(err, ErrVoucherExpired),
		errors.Is(err, ErrUsageLimitReached),
		errors.Is(err, ErrNotEligible):
		common.JSONError(w, http.StatusUnprocessableEntity, "VOUCHER_NOT_ELIGIBLE", err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}
