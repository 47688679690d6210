package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	"github.com/jvaguiar05/smart-park-system/pkg/repositories"
)

func newCatalogTestHandler() (*CatalogHandler, *mockCatalogService, *mockCallerLoader) {
	svc := &mockCatalogService{}
	callers := &mockCallerLoader{caller: testCaller()}
	return NewCatalogHandler(svc, callers, zap.NewNop()), svc, callers
}

func TestCatalogHandler_ListEstablishments(t *testing.T) {
	h, svc, callers := newCatalogTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/establishments?search=north&page=2", nil)
	rec := httptest.NewRecorder()
	h.ListEstablishments(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "north", svc.lastOpts.Search)
	assert.Equal(t, 2, svc.lastOpts.Page)
	assert.Equal(t, 1, callers.calls)

	var page models.Page[models.Establishment]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "North Mall", page.Items[0].Name)
}

func TestCatalogHandler_CreateEstablishment(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		h, svc, _ := newCatalogTestHandler()
		body := `{"client_id": 3, "name": "East Mall", "city": "Recife", "lat": -8.05, "lng": -34.9}`
		req := httptest.NewRequest(http.MethodPost, "/api/establishments", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.CreateEstablishment(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, int64(3), svc.lastClientID)
		assert.Equal(t, "East Mall", svc.lastEst.Name)
		require.NotNil(t, svc.lastEst.City)
		assert.Equal(t, "Recife", *svc.lastEst.City)
	})

	t.Run("missing fields", func(t *testing.T) {
		h, _, callers := newCatalogTestHandler()
		req := httptest.NewRequest(http.MethodPost, "/api/establishments", strings.NewReader(`{"client_id": 3}`))
		rec := httptest.NewRecorder()
		h.CreateEstablishment(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body ValidationErrorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Contains(t, body.Fields, "name")
		assert.Zero(t, callers.calls, "invalid input is rejected before identity lookup")
	})

	t.Run("missing client id", func(t *testing.T) {
		h, _, _ := newCatalogTestHandler()
		req := httptest.NewRequest(http.MethodPost, "/api/establishments", strings.NewReader(`{"name": "East"}`))
		rec := httptest.NewRecorder()
		h.CreateEstablishment(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body ValidationErrorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Contains(t, body.Fields, "client_id")
	})

	t.Run("latitude out of range", func(t *testing.T) {
		h, _, _ := newCatalogTestHandler()
		req := httptest.NewRequest(http.MethodPost, "/api/establishments", strings.NewReader(`{"client_id": 3, "name": "East", "lat": 123}`))
		rec := httptest.NewRecorder()
		h.CreateEstablishment(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body ValidationErrorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Contains(t, body.Fields, "lat")
	})

	t.Run("unknown field", func(t *testing.T) {
		h, _, _ := newCatalogTestHandler()
		req := httptest.NewRequest(http.MethodPost, "/api/establishments", strings.NewReader(`{"client_id": 3, "name": "East", "owner": "x"}`))
		rec := httptest.NewRecorder()
		h.CreateEstablishment(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCatalogHandler_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"forbidden", apperrors.ErrForbidden, http.StatusForbidden},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound},
		{"has children", apperrors.ErrHasChildren, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, svc, _ := newCatalogTestHandler()
			svc.err = tt.err

			req := httptest.NewRequest(http.MethodDelete, "/api/establishments/4", nil)
			req.SetPathValue("id", "4")
			rec := httptest.NewRecorder()
			h.DeleteEstablishment(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, []int64{4}, svc.deleted)
		})
	}
}

func TestCatalogHandler_DeleteEstablishment(t *testing.T) {
	h, svc, _ := newCatalogTestHandler()

	req := httptest.NewRequest(http.MethodDelete, "/api/establishments/4", nil)
	req.SetPathValue("id", "4")
	rec := httptest.NewRecorder()
	h.DeleteEstablishment(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int64{4}, svc.deleted)
}

func TestCatalogHandler_Lots(t *testing.T) {
	h, svc, _ := newCatalogTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/lots?establishment_id=9", nil)
	rec := httptest.NewRecorder()
	h.ListLots(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastEstFilter)
	assert.Equal(t, int64(9), *svc.lastEstFilter)

	req = httptest.NewRequest(http.MethodGet, "/api/lots?establishment_id=abc", nil)
	rec = httptest.NewRecorder()
	h.ListLots(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/lots", strings.NewReader(`{"establishment_id": 9, "lot_code": "P2"}`))
	rec = httptest.NewRecorder()
	h.CreateLot(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(9), svc.lastParentID)
	assert.Equal(t, "P2", svc.lastLot.LotCode)

	req = httptest.NewRequest(http.MethodPost, "/api/lots", strings.NewReader(`{"lot_code": "P2"}`))
	rec = httptest.NewRecorder()
	h.CreateLot(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogHandler_Slots(t *testing.T) {
	h, svc, _ := newCatalogTestHandler()

	body := `{"slot_code": "A01", "slot_type_id": 1, "polygon": [[0,0],[1,0],[1,1]]}`
	req := httptest.NewRequest(http.MethodPost, "/api/lots/5/slots", strings.NewReader(body))
	req.SetPathValue("id", "5")
	rec := httptest.NewRecorder()
	h.CreateSlot(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(5), svc.lastParentID)
	assert.Nil(t, svc.lastSlot.Active, "omitted active is left to the service")
	assert.JSONEq(t, `[[0,0],[1,0],[1,1]]`, string(svc.lastSlot.Polygon))

	req = httptest.NewRequest(http.MethodPut, "/api/slots/30", strings.NewReader(`{"slot_code": "A01", "slot_type_id": 1, "active": false}`))
	req.SetPathValue("id", "30")
	rec = httptest.NewRecorder()
	h.UpdateSlot(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastSlot.Active)
	assert.False(t, *svc.lastSlot.Active)
	assert.Nil(t, svc.lastSlot.Polygon, "omitted polygon keeps the stored geometry")

	req = httptest.NewRequest(http.MethodPut, "/api/slots/30", strings.NewReader(`{"slot_code": "A01", "slot_type_id": 1}`))
	req.SetPathValue("id", "30")
	rec = httptest.NewRecorder()
	h.UpdateSlot(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.lastSlot.Active, "omitted active keeps the stored flag")

	req = httptest.NewRequest(http.MethodPost, "/api/lots/5/slots", strings.NewReader(`{"slot_code": "A02"}`))
	req.SetPathValue("id", "5")
	rec = httptest.NewRecorder()
	h.CreateSlot(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogHandler_Routes(t *testing.T) {
	svc := &mockCatalogService{}
	h := NewCatalogHandler(svc, &mockCallerLoader{caller: testCaller()}, zap.NewNop())

	mux := http.NewServeMux()
	authMiddleware := newTestAuthMiddleware(t)
	h.RegisterRoutes(mux, authMiddleware, passthroughScope)

	t.Run("lookup tables", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/vehicle-types", nil)
		req.Header.Set("Authorization", "Bearer "+testToken(t))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, repositories.VehicleTypes, svc.lastTable)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/establishments", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("path ids are routed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/slots/77", nil)
		req.Header.Set("Authorization", "Bearer "+testToken(t))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var slot models.Slot
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&slot))
		assert.Equal(t, int64(77), slot.ID)
	})
}
