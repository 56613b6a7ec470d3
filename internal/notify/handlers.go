package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/common"
)

// AnonIDHeader mirrors the cart header so guests keep their own feed state.
const AnonIDHeader = "X-Anon-Id"

// Handler exposes the notification feed.
type Handler struct {
	Store *Store
}

func owner(r *http.Request) string {
	if userID, ok := common.UserID(r.Context()); ok && userID != "" {
		return "user:" + userID
	}
	if anonID := strings.TrimSpace(r.Header.Get(AnonIDHeader)); anonID != "" {
		return "anon:" + anonID
	}
	return ""
}

// List handles GET /api/v1/notifications.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "notification store not configured", nil)
		return
	}
	items, err := h.Store.List(r.Context(), owner(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// MarkRead handles POST /api/v1/notifications/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.MarkRead(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": nil})
}

// Dismiss handles POST /api/v1/notifications/{id}/dismiss.
func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Dismiss(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": nil})
}

// AdminHandler exposes back-office broadcasts.
type AdminHandler struct {
	Store *Store
}

type broadcastRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Tag    string `json:"tag"`
	Method string `json:"method"`
}

// Broadcast handles POST /api/v1/admin/notifications.
func (h *AdminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	n, err := h.Store.Broadcast(req.Title, req.Body, req.Tag, req.Method)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": n})
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "notification not found", nil)
		return
	}
	common.WriteError(w, err)
}
