package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/tiffinstash/ops-front/internal/deliveries"
	jsonwriter "github.com/tiffinstash/ops-front/internal/json"
	"github.com/tiffinstash/ops-front/internal/log"
)

// DeliveryHandlers serves the delivery database endpoints. store is nil
// when no database is configured.
type DeliveryHandlers struct {
	store *deliveries.Store
}

// NewDeliveryHandlers creates delivery handlers with dependency injection
func NewDeliveryHandlers(store *deliveries.Store) *DeliveryHandlers {
	return &DeliveryHandlers{store: store}
}

func (h *DeliveryHandlers) unavailable(w http.ResponseWriter) bool {
	if h.store == nil {
		jsonwriter.WriteServiceUnavailable(w, "Delivery database is not configured")
		return true
	}
	return false
}

// ListHandler returns delivery rows
func (h *DeliveryHandlers) ListHandler(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonwriter.WriteBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rows, err := h.store.List(r.Context(), limit)
	if err != nil {
		log.LogError("Failed to list deliveries: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to list deliveries")
		return
	}
	_ = jsonwriter.Write(w, rows)
}

// OrderDetailHandler returns all line rows for one order
func (h *DeliveryHandlers) OrderDetailHandler(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}

	orderID := r.PathValue("id")
	if orderID == "" {
		jsonwriter.WriteBadRequest(w, "Missing order id")
		return
	}

	rows, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, deliveries.ErrOrderNotFound) {
			jsonwriter.WriteNotFound(w, "Order not found")
			return
		}
		log.LogError("Failed to fetch order %s: %v", orderID, err)
		jsonwriter.WriteInternalServerError(w, "Failed to fetch order")
		return
	}
	_ = jsonwriter.Write(w, rows)
}

// SkipOrderHandler consumes a skip slot for an order line
func (h *DeliveryHandlers) SkipOrderHandler(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}

	var req deliveries.SkipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid JSON body")
		return
	}
	if req.OrderID == "" || req.SkipDate == "" {
		jsonwriter.WriteBadRequest(w, "order_id and skip_date are required")
		return
	}

	slot, err := h.store.SkipOrder(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, deliveries.ErrOrderNotFound):
			jsonwriter.WriteNotFound(w, "Order not found")
		case errors.Is(err, deliveries.ErrSkipCapacityFull):
			jsonwriter.WriteConflict(w, "Skip capacity full for this order")
		default:
			log.LogError("Failed to skip order %s: %v", req.OrderID, err)
			jsonwriter.WriteInternalServerError(w, "Failed to record skip")
		}
		return
	}

	_ = jsonwriter.Write(w, map[string]any{"status": "success", "slot": slot})
}

// UpdateOrderHandler applies team-lead edits to an order line
func (h *DeliveryHandlers) UpdateOrderHandler(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}

	var update deliveries.OrderUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid JSON body")
		return
	}
	if update.OrderID == "" {
		jsonwriter.WriteBadRequest(w, "order_id is required")
		return
	}

	if err := h.store.UpdateOrder(r.Context(), update); err != nil {
		if errors.Is(err, deliveries.ErrOrderNotFound) {
			jsonwriter.WriteNotFound(w, "Order not found")
			return
		}
		log.LogError("Failed to update order %s: %v", update.OrderID, err)
		jsonwriter.WriteInternalServerError(w, "Failed to update order")
		return
	}

	_ = jsonwriter.Write(w, map[string]string{"status": "success"})
}

// MasterDataHandler returns the editable master rows
func (h *DeliveryHandlers) MasterDataHandler(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}

	rows, err := h.store.ListMaster(r.Context())
	if err != nil {
		log.LogError("Failed to list master data: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to list master data")
		return
	}
	_ = jsonwriter.Write(w, rows)
}

// UpdateMasterRowHandler applies an optimistic free-form edit
func (h *DeliveryHandlers) UpdateMasterRowHandler(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}

	var update deliveries.MasterRowUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid JSON body")
		return
	}
	if update.OrderID == "" {
		jsonwriter.WriteBadRequest(w, "order_id is required")
		return
	}

	if err := h.store.UpdateMasterRow(r.Context(), update); err != nil {
		if errors.Is(err, deliveries.ErrRowChanged) {
			jsonwriter.WriteConflict(w, "Row changed since it was loaded; reload and retry")
			return
		}
		log.LogError("Failed to update master row %s: %v", update.OrderID, err)
		jsonwriter.WriteInternalServerError(w, "Failed to update master row")
		return
	}

	_ = jsonwriter.Write(w, map[string]string{"status": "success"})
}

// UploadMasterDataHandler bulk-upserts master rows
func (h *DeliveryHandlers) UploadMasterDataHandler(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}

	var rows []map[string]string
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid JSON body")
		return
	}
	if len(rows) == 0 {
		jsonwriter.WriteBadRequest(w, "Empty upload")
		return
	}

	stats, err := h.store.UploadMaster(r.Context(), rows)
	if err != nil {
		log.LogError("Failed to upload master data: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to upload master data")
		return
	}
	_ = jsonwriter.Write(w, stats)
}

// SellersHandler returns the per-seller quantity rollup
func (h *DeliveryHandlers) SellersHandler(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}

	summaries, err := h.store.Sellers(r.Context())
	if err != nil {
		log.LogError("Failed to aggregate sellers: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to aggregate sellers")
		return
	}
	_ = jsonwriter.Write(w, summaries)
}
