package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tiffinstash/ops-front/internal/export"
	jsonwriter "github.com/tiffinstash/ops-front/internal/json"
	"github.com/tiffinstash/ops-front/internal/log"
	"github.com/tiffinstash/ops-front/internal/shopify"
)

// OrderHandlers serves the Shopify order endpoints. client is nil when
// no Shopify credentials are configured.
type OrderHandlers struct {
	client *shopify.Client
}

// NewOrderHandlers creates order handlers with dependency injection
func NewOrderHandlers(client *shopify.Client) *OrderHandlers {
	return &OrderHandlers{client: client}
}

func (h *OrderHandlers) dateRange(r *http.Request) (string, string, error) {
	start := r.URL.Query().Get("start_date")
	end := r.URL.Query().Get("end_date")
	if start == "" || end == "" {
		return "", "", fmt.Errorf("start_date and end_date are required (YYYY-MM-DD)")
	}
	return start, end, nil
}

// OrdersHandler returns orders for a date range as JSON
func (h *OrderHandlers) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		jsonwriter.WriteServiceUnavailable(w, "Order export is not configured")
		return
	}

	start, end, err := h.dateRange(r)
	if err != nil {
		jsonwriter.WriteBadRequest(w, err.Error())
		return
	}

	orders, err := h.client.FetchOrders(r.Context(), start, end)
	if err != nil {
		log.LogError("Failed to fetch orders: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to fetch orders")
		return
	}

	_ = jsonwriter.Write(w, orders)
}

// ExportHandler returns orders for a date range as a CSV download, one
// row per line item. Without an explicit range it exports yesterday's
// cutoff window.
func (h *OrderHandlers) ExportHandler(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		jsonwriter.WriteServiceUnavailable(w, "Order export is not configured")
		return
	}

	start := r.URL.Query().Get("start_date")
	end := r.URL.Query().Get("end_date")
	if start == "" && end == "" {
		now := time.Now()
		start = now.AddDate(0, 0, -1).Format("2006-01-02")
		end = now.Format("2006-01-02")
	}
	if start == "" || end == "" {
		jsonwriter.WriteBadRequest(w, "start_date and end_date are required (YYYY-MM-DD)")
		return
	}

	orders, err := h.client.FetchOrders(r.Context(), start, end)
	if err != nil {
		log.LogError("Failed to fetch orders for export: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to fetch orders")
		return
	}

	filename := fmt.Sprintf("tiffinstash_orders_%s_%s.csv", start, end)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := export.WriteCSV(w, orders); err != nil {
		// Headers are gone at this point; log is all we can do
		log.LogError("Failed to write csv export: %v", err)
	}
}
