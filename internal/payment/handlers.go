package payment

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/common"
)

// Handler exposes settled transaction lookup.
type Handler struct {
	Svc *Service
}

// Transaction handles GET /api/v1/payments/{transactionId}.
func (h *Handler) Transaction(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment service not configured", nil)
		return
	}
	result, err := h.Svc.Transaction(chi.URLParam(r, "transactionId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "transaction not found", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// AdminHandler exposes back-office refunds.
type AdminHandler struct {
	Svc *Service
}

// Cancel handles POST /api/v1/admin/payments/{transactionId}/cancel.
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	result, err := h.Svc.Cancel(r.Context(), chi.URLParam(r, "transactionId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "transaction not found", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}
