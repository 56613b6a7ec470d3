package dashboard

import (
	"net/http"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/order"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/user"
)

// Handler aggregates back-office counters from the in-memory stores.
type Handler struct {
	Orders  *order.Store
	Catalog *catalog.Store
	Users   *user.Store
	Bus     *events.Bus
	MaxFeed int
}

type summary struct {
	Orders         int            `json:"orders"`
	Revenue        pricing.Money  `json:"revenue"`
	RevenueDisplay string         `json:"revenueDisplay"`
	Products       int            `json:"products"`
	Users          int            `json:"users"`
	RecentEvents   []events.Event `json:"recentEvents"`
}

// Summary handles GET /api/v1/admin/dashboard.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	if h.Orders == nil || h.Catalog == nil || h.Users == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "dashboard not configured", nil)
		return
	}
	revenue := h.Orders.Revenue()
	feed := h.MaxFeed
	if feed <= 0 {
		feed = 20
	}
	var recent []events.Event
	if h.Bus != nil {
		recent = h.Bus.Recent(feed)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary{
		Orders:         h.Orders.Count(),
		Revenue:        revenue,
		RevenueDisplay: pricing.Format(revenue),
		Products:       h.Catalog.Count(),
		Users:          len(h.Users.List()),
		RecentEvents:   recent,
	}})
}
