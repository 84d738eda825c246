package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tiffinstash/ops-front/internal/deliveries"
)

func TestDeliveryHandlersUnavailableWithoutDatabase(t *testing.T) {
	h := NewDeliveryHandlers(nil)

	endpoints := []func(http.ResponseWriter, *http.Request){
		h.ListHandler,
		h.OrderDetailHandler,
		h.SkipOrderHandler,
		h.UpdateOrderHandler,
		h.MasterDataHandler,
		h.UpdateMasterRowHandler,
		h.UploadMasterDataHandler,
		h.SellersHandler,
	}

	for _, endpoint := range endpoints {
		rec := httptest.NewRecorder()
		endpoint(rec, httptest.NewRequest(http.MethodGet, "/api/deliveries", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	}
}

// validation runs before any query, so a store with no connection works
// for the 400 paths
func validationStore() *DeliveryHandlers {
	return NewDeliveryHandlers(deliveries.NewStore(nil))
}

func TestListHandlerRejectsBadLimit(t *testing.T) {
	h := validationStore()

	for _, limit := range []string{"abc", "-5", "1.5"} {
		rec := httptest.NewRecorder()
		h.ListHandler(rec, httptest.NewRequest(http.MethodGet, "/api/deliveries?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestOrderDetailHandlerRequiresID(t *testing.T) {
	h := validationStore()

	rec := httptest.NewRecorder()
	h.OrderDetailHandler(rec, httptest.NewRequest(http.MethodGet, "/api/orders/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSkipOrderHandlerValidation(t *testing.T) {
	h := validationStore()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing order_id", `{"skip_date": "2026-08-25"}`},
		{"missing skip_date", `{"order_id": "1001"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/skip-order", strings.NewReader(tt.body))
			h.SkipOrderHandler(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdateOrderHandlerValidation(t *testing.T) {
	h := validationStore()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/update-order", strings.NewReader(`{"ts_notes": "x"}`))
	h.UpdateOrderHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateMasterRowHandlerValidation(t *testing.T) {
	h := validationStore()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/master-data", strings.NewReader(`{"updates": {"seller": "x"}}`))
	h.UpdateMasterRowHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadMasterDataHandlerValidation(t *testing.T) {
	h := validationStore()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/master-data/upload", strings.NewReader(`[]`))
	h.UploadMasterDataHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/master-data/upload", strings.NewReader(`{"not": "an array"}`))
	h.UploadMasterDataHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
