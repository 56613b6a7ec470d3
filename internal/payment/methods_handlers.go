package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/storefront-api/internal/common"
)

// AnonIDHeader mirrors the cart header so guests keep their saved methods.
const AnonIDHeader = "X-Anon-Id"

// MethodsHandler exposes the shopper's saved payment methods.
type MethodsHandler struct {
	Store    *MethodStore
	Validate *validator.Validate
}

func methodOwner(r *http.Request) string {
	if userID, ok := common.UserID(r.Context()); ok && userID != "" {
		return "user:" + userID
	}
	if anonID := strings.TrimSpace(r.Header.Get(AnonIDHeader)); anonID != "" {
		return "anon:" + anonID
	}
	return ""
}

type addMethodRequest struct {
	Type           string `json:"type" validate:"required,oneof=credit_card bank_transfer apple_pay google_pay"`
	LastFourDigits string `json:"lastFourDigits"`
	CardType       string `json:"cardType"`
	ExpiryMonth    int    `json:"expiryMonth"`
	ExpiryYear     int    `json:"expiryYear"`
	CardholderName string `json:"cardholderName"`
	BankName       string `json:"bankName"`
	BranchName     string `json:"branchName"`
	AccountType    string `json:"accountType"`
	AccountNumber  string `json:"accountNumber"`
	AccountHolder  string `json:"accountHolder"`
	TokenID        string `json:"tokenId"`
	DisplayName    string `json:"displayName"`
}

// List handles GET /api/v1/me/payment-methods.
func (h *MethodsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment method store not configured", nil)
		return
	}
	owner := methodOwner(r)
	if owner == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "login or an anonymous id is required", nil)
		return
	}
	methods, err := h.Store.List(r.Context(), owner)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": methods})
}

// Add handles POST /api/v1/me/payment-methods.
func (h *MethodsHandler) Add(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment method store not configured", nil)
		return
	}
	owner := methodOwner(r)
	if owner == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "login or an anonymous id is required", nil)
		return
	}
	var req addMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "a known payment method type is required", nil)
			return
		}
	}
	created, err := h.Store.Add(r.Context(), owner, SavedMethod{
		Type:           req.Type,
		LastFourDigits: req.LastFourDigits,
		CardType:       req.CardType,
		ExpiryMonth:    req.ExpiryMonth,
		ExpiryYear:     req.ExpiryYear,
		CardholderName: req.CardholderName,
		BankName:       req.BankName,
		BranchName:     req.BranchName,
		AccountType:    req.AccountType,
		AccountNumber:  req.AccountNumber,
		AccountHolder:  req.AccountHolder,
		TokenID:        req.TokenID,
		DisplayName:    req.DisplayName,
	})
	if err != nil {
		writeMethodError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Delete handles DELETE /api/v1/me/payment-methods/{id}.
func (h *MethodsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), methodOwner(r), chi.URLParam(r, "id")); err != nil {
		writeMethodError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": nil})
}

// SetDefault handles POST /api/v1/me/payment-methods/{id}/default.
func (h *MethodsHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.SetDefault(r.Context(), methodOwner(r), chi.URLParam(r, "id")); err != nil {
		writeMethodError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": nil})
}

func writeMethodError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMethodNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "payment method not found", nil)
	case errors.Is(err, ErrInvalidMethod):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}
