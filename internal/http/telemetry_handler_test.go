package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"respira-data/internal/ingest"
	"respira-data/internal/repository"
	"respira-data/internal/service"
	"respira-data/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (*Router, *repository.MemoryTelemetryRepository, *repository.MemoryDeviceConfigRepository, store.KV) {
	t.Helper()
	logger := zap.NewNop()

	telemetry := repository.NewMemoryTelemetryRepository()
	configs := repository.NewMemoryDeviceConfigRepository()
	kv := store.NewMemoryKV()

	svc := service.NewTelemetryService(telemetry, configs, ingest.NewSectionDecoder(), nil, kv, nil, logger)

	router := NewRouter(logger)
	router.RegisterRootRoutes("respira-data", "test")
	telemetryHandler := NewTelemetryHandler(svc, logger)
	router.RegisterIoTRoutes(telemetryHandler)
	router.RegisterDeviceRoutes(NewDeviceHandler(configs, telemetry, kv, logger), telemetryHandler)
	return router, telemetry, configs, kv
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestWebhook_StoresAndResponds(t *testing.T) {
	router, telemetry, _, _ := newTestRouter(t)

	w, resp := doJSON(t, router, http.MethodPost, "/api/iot/webhook",
		`{"device_status":1,"device_data":"S,1,G,2,H,3,I,4","device_id":"cpap-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, resp["success"])
	require.NotEmpty(t, resp["requestId"])

	data := resp["data"].(map[string]any)
	require.Equal(t, "cpap-1", data["device_id"])

	configUpdate := resp["config_update"].(map[string]any)
	require.Equal(t, false, configUpdate["available"])

	records, err := telemetry.ListByDevice(context.Background(), "cpap-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestDeviceDataEndpoint_SamePipelineAsWebhook(t *testing.T) {
	router, telemetry, _, _ := newTestRouter(t)

	w, resp := doJSON(t, router, http.MethodPost, "/api/devices/data",
		`{"device_status":1,"device_data":"S,1,G,2,H,3,I,4","device_id":"cpap-direct"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, resp["success"])

	records, err := telemetry.ListByDevice(context.Background(), "cpap-direct", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	w, _ = doJSON(t, router, http.MethodGet, "/api/devices/data", "")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestWebhook_MissingStatusIs400(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	w, resp := doJSON(t, router, http.MethodPost, "/api/iot/webhook",
		`{"device_data":"S,1"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, false, resp["success"])
	require.Contains(t, resp["message"], "device_status")
}

func TestWebhook_UndecodableDataIs400(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	w, resp := doJSON(t, router, http.MethodPost, "/api/iot/webhook",
		`{"device_status":1,"device_data":"what is this,S,1","device_id":"d"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, resp["message"], "failed to parse device data")
}

func TestWebhook_ConfirmEchoesParams(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	w, resp := doJSON(t, router, http.MethodGet, "/api/iot/webhook?confirmationToken=abc123", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, resp["success"])

	params := resp["params"].(map[string]any)
	require.Equal(t, "abc123", params["confirmationToken"])
}

func TestDeviceConfig_RoundTrip(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	// no config yet
	w, _ := doJSON(t, router, http.MethodGet, "/api/devices/cpap-9/config", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	// set it
	w, resp := doJSON(t, router, http.MethodPost, "/api/devices/cpap-9/config",
		`{"config_values":{"pressure":8.5,"humidity":3}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, resp["success"])

	// read it back, pending
	w, resp = doJSON(t, router, http.MethodGet, "/api/devices/cpap-9/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	require.Equal(t, true, data["pending_update"])

	// mark delivered
	w, _ = doJSON(t, router, http.MethodPost, "/api/devices/cpap-9/config/delivered", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = doJSON(t, router, http.MethodGet, "/api/devices/cpap-9/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	data = resp["data"].(map[string]any)
	require.Equal(t, false, data["pending_update"])
}

func TestDeviceConfig_EmptyValuesRejected(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/api/devices/cpap-9/config", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeviceStatusLatest(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	// nothing seen yet
	w, _ := doJSON(t, router, http.MethodGet, "/api/devices/cpap-5/status/latest", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	// ingest telemetry, snapshot appears
	w, _ = doJSON(t, router, http.MethodPost, "/api/iot/webhook",
		`{"device_status":2,"device_data":"S,1,G,2,H,3,I,4","device_id":"cpap-5"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := doJSON(t, router, http.MethodGet, "/api/devices/cpap-5/status/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	require.Equal(t, "cpap-5", data["device_id"])
	require.Equal(t, 2.0, data["device_status"])
}

func TestDeviceDataHistory(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	for i := 0; i < 3; i++ {
		w, _ := doJSON(t, router, http.MethodPost, "/api/iot/webhook",
			`{"device_status":1,"device_data":"S,1,G,2,H,3,I,4","device_id":"cpap-6"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, resp := doJSON(t, router, http.MethodGet, "/api/devices/cpap-6/data?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2.0, resp["count"])
}

func TestRootAndHealth(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	w, resp := doJSON(t, router, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, resp["message"], "respira-data")

	w, resp = doJSON(t, router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "healthy", resp["status"])

	w, _ = doJSON(t, router, http.MethodGet, "/no/such/route", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}
