package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

// Handler wires the product catalog to HTTP.
type Handler struct {
	Store  *Store
	TaxBps int
}

type productView struct {
	Product
	PriceWithTax pricing.Money `json:"priceWithTax"`
	PriceDisplay string        `json:"priceDisplay"`
}

func (h *Handler) view(p Product) productView {
	return productView{
		Product:      p,
		PriceWithTax: pricing.TaxIncluded(p.Price, h.TaxBps),
		PriceDisplay: pricing.FormatIncludedTax(p.Price, h.TaxBps),
	}
}

// Products lists catalog entries with optional search and pagination.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	all := h.Store.List(r.URL.Query().Get("q"), r.URL.Query().Get("category"))
	page, perPage := common.ParsePagination(r, 20)
	lo, hi := common.PageBounds(page, perPage, len(all))
	items := make([]productView, 0, hi-lo)
	for _, p := range all[lo:hi] {
		items = append(items, h.view(p))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": items,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(all)},
	})
}

// Categories lists the distinct category labels.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Store.Categories()})
}

// ProductDetail returns a single product.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	p, ok := h.Store.Product(chi.URLParam(r, "id"))
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(p)})
}

// AdminHandler exposes the back-office catalog CRUD.
type AdminHandler struct {
	Store *Store
}

type productPayload struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Price       pricing.Money `json:"price"`
	Stock       int           `json:"stock"`
	ImageURL    string        `json:"imageUrl"`
}

// Create adds a product to the catalog.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	p, err := h.Store.Create(Product{
		ID:          payload.ID,
		Name:        payload.Name,
		Description: payload.Description,
		Category:    payload.Category,
		Price:       payload.Price,
		Stock:       payload.Stock,
		ImageURL:    payload.ImageURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// Update modifies an existing product.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	p, err := h.Store.Update(chi.URLParam(r, "id"), Product{
		Name:        payload.Name,
		Description: payload.Description,
		Category:    payload.Category,
		Price:       payload.Price,
		Stock:       payload.Stock,
		ImageURL:    payload.ImageURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Delete removes a product from the catalog.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": nil})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}
