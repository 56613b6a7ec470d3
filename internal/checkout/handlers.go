package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/common"
)

// IdempotencyKeyHeader carries the client-supplied settlement key.
const IdempotencyKeyHeader = "Idempotency-Key"

// Handler wires checkout to HTTP.
type Handler struct {
	Svc *Service
}

// sourceToken may be omitted when the buyer has a saved default method.
type checkoutRequest struct {
	SourceToken    string `json:"sourceToken"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	if key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)); key != "" {
		req.IdempotencyKey = key
	}

	userID, _ := common.UserID(r.Context())
	anonID := strings.TrimSpace(r.Header.Get(cart.AnonIDHeader))

	out, err := h.Svc.Checkout(r.Context(), userID, anonID, Input{
		SourceToken:    req.SourceToken,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyCart):
			common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart is empty", nil)
		case errors.Is(err, ErrNoPaymentMethod):
			common.JSONError(w, http.StatusBadRequest, "PAYMENT_METHOD_REQUIRED", "provide a sourceToken or save a default payment method", nil)
		case errors.Is(err, cart.ErrInvalidInput):
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		default:
			common.WriteError(w, err)
		}
		return
	}

	status := http.StatusOK
	if !out.Settled {
		status = http.StatusPaymentRequired
	}
	common.JSON(w, status, map[string]any{"data": out})
}
