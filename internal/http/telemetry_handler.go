package httpapi

import (
	"io"
	"net/http"
	"time"

	"respira-data/internal/service"

	"go.uber.org/zap"
)

const maxTelemetryBody = 1 << 20 // 1MB

// TelemetryHandler serves the IoT Core webhook.
type TelemetryHandler struct {
	svc    *service.TelemetryService
	logger *zap.Logger
}

func NewTelemetryHandler(svc *service.TelemetryService, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{svc: svc, logger: logger}
}

// Webhook handles POST /api/iot/webhook, the IoT Core rule action target.
func (h *TelemetryHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTelemetryBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, fail("failed to read request body"))
		return
	}

	result, err := h.svc.Ingest(r.Context(), body)
	if err != nil {
		h.logger.Warn("telemetry ingestion failed", zap.Error(err))
		writeError(w, err)
		return
	}

	configUpdate := map[string]any{"available": false}
	if result.ConfigAvailable {
		configUpdate = map[string]any{
			"available": true,
			"published": result.ConfigPublished,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "IoT data received and processed successfully",
		"data": map[string]any{
			"device_id": result.DeviceID,
			"timestamp": result.ReceivedAt.Format(time.RFC3339Nano),
		},
		"config_update": configUpdate,
		"requestId":     result.RequestID,
	})
}

// Confirm handles GET /api/iot/webhook. IoT Core HTTPS destinations send a
// GET with confirmation query params to prove endpoint ownership; answering
// 200 and echoing the params completes the handshake.
func (h *TelemetryHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	params := map[string]string{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	h.logger.Info("IoT destination confirmation request", zap.Any("params", params))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "IoT destination confirmed",
		"endpoint":  "/api/iot/webhook",
		"params":    params,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
