package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"respira-data/internal/domain"
	"respira-data/internal/repository"
	"respira-data/internal/service"
	"respira-data/internal/store"

	"go.uber.org/zap"
)

// DeviceHandler serves the device-scoped endpoints:
//
//	GET  /api/devices/{id}/config
//	POST /api/devices/{id}/config
//	POST /api/devices/{id}/config/delivered
//	GET  /api/devices/{id}/data
//	GET  /api/devices/{id}/status/latest
type DeviceHandler struct {
	configs   repository.DeviceConfigRepository
	telemetry repository.TelemetryRepository
	kv        store.KV // nil = latest-status disabled
	logger    *zap.Logger
}

func NewDeviceHandler(configs repository.DeviceConfigRepository, telemetry repository.TelemetryRepository, kv store.KV, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{configs: configs, telemetry: telemetry, kv: kv, logger: logger}
}

func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/devices/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) < 2 || segments[0] == "" {
		writeJSON(w, http.StatusNotFound, fail("Route not found"))
		return
	}
	deviceID := segments[0]
	action := strings.Join(segments[1:], "/")

	switch {
	case action == "config" && r.Method == http.MethodGet:
		h.getConfig(w, r, deviceID)
	case action == "config" && r.Method == http.MethodPost:
		h.setConfig(w, r, deviceID)
	case action == "config/delivered" && r.Method == http.MethodPost:
		h.markDelivered(w, r, deviceID)
	case action == "data" && r.Method == http.MethodGet:
		h.dataHistory(w, r, deviceID)
	case action == "status/latest" && r.Method == http.MethodGet:
		h.latestStatus(w, r, deviceID)
	default:
		writeJSON(w, http.StatusNotFound, fail("Route not found"))
	}
}

func (h *DeviceHandler) getConfig(w http.ResponseWriter, r *http.Request, deviceID string) {
	cfg, err := h.configs.Get(r.Context(), deviceID)
	if err != nil {
		h.logger.Error("failed to get device config", zap.String("device_id", deviceID), zap.Error(err))
		writeError(w, err)
		return
	}
	if cfg == nil {
		writeJSON(w, http.StatusNotFound, fail("Device configuration not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": cfg})
}

func (h *DeviceHandler) setConfig(w http.ResponseWriter, r *http.Request, deviceID string) {
	var body struct {
		ConfigValues map[string]any `json:"config_values"`
	}
	if err := readBodyJSON(r, maxTelemetryBody, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, fail("request body must be valid JSON"))
		return
	}
	if len(body.ConfigValues) == 0 {
		writeJSON(w, http.StatusBadRequest, fail("config_values is required"))
		return
	}

	cfg := &domain.DeviceConfig{DeviceID: deviceID, ConfigValues: body.ConfigValues}
	if err := h.configs.Upsert(r.Context(), cfg); err != nil {
		h.logger.Error("failed to upsert device config", zap.String("device_id", deviceID), zap.Error(err))
		writeError(w, err)
		return
	}

	h.logger.Info("device config queued for delivery", zap.String("device_id", deviceID))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Device configuration updated, pending delivery on next contact",
		"data":    cfg,
	})
}

func (h *DeviceHandler) markDelivered(w http.ResponseWriter, r *http.Request, deviceID string) {
	if err := h.configs.MarkDelivered(r.Context(), deviceID); err != nil {
		h.logger.Error("failed to mark config delivered", zap.String("device_id", deviceID), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Configuration marked as delivered",
	})
}

func (h *DeviceHandler) dataHistory(w http.ResponseWriter, r *http.Request, deviceID string) {
	limit := parseIntQuery(r, "limit", 100)
	records, err := h.telemetry.ListByDevice(r.Context(), deviceID, limit)
	if err != nil {
		h.logger.Error("failed to list telemetry", zap.String("device_id", deviceID), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    records,
		"count":   len(records),
	})
}

func (h *DeviceHandler) latestStatus(w http.ResponseWriter, r *http.Request, deviceID string) {
	if h.kv == nil {
		writeJSON(w, http.StatusNotFound, fail("Latest status not available"))
		return
	}
	raw, err := h.kv.Get(r.Context(), service.PresenceKey(deviceID))
	if err != nil {
		if err == store.ErrMiss {
			writeJSON(w, http.StatusNotFound, fail("No recent status for device"))
			return
		}
		h.logger.Error("failed to read presence snapshot", zap.String("device_id", deviceID), zap.Error(err))
		writeError(w, err)
		return
	}

	var snapshot map[string]any
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": snapshot})
}
