package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Router uses the standard library http.ServeMux (no third-party router
// dependency needed for a surface this small).
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler supports the http.Handler interface (prefix handlers).
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterIoTRoutes wires the IoT Core webhook endpoint. GET serves the
// destination-confirmation handshake, POST the telemetry ingest.
func (r *Router) RegisterIoTRoutes(t *TelemetryHandler) {
	r.Handle("/api/iot/webhook", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			t.Confirm(w, req)
		case http.MethodPost:
			t.Webhook(w, req)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, fail("Method not allowed"))
		}
	})
}

// RegisterDeviceRoutes wires the device-scoped config and history endpoints,
// plus the direct ingestion endpoint hardware can post to without going
// through the IoT Core webhook. Both paths run the same pipeline.
func (r *Router) RegisterDeviceRoutes(d *DeviceHandler, t *TelemetryHandler) {
	r.Handle("/api/devices/data", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, fail("Method not allowed"))
			return
		}
		t.Webhook(w, req)
	})
	r.HandleHandler("/api/devices/", d)
}

// RegisterECGRoutes wires the ECG ingestion and read-side endpoints.
func (r *Router) RegisterECGRoutes(e *ECGHandler) {
	r.HandleHandler("/api/ecg/data", e)
	r.HandleHandler("/api/ecg/data/", e)
}

// RegisterRootRoutes wires the service banner and the health probe. The "/"
// pattern doubles as the 404 fallthrough for unregistered paths.
func (r *Router) RegisterRootRoutes(serviceName, version string) {
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"service":   serviceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.Handle("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			writeJSON(w, http.StatusNotFound, fail("Route not found"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": serviceName + " is running",
			"version": version,
			"endpoints": []string{
				"GET  /health",
				"GET  /api/iot/webhook",
				"POST /api/iot/webhook",
				"POST /api/devices/data",
				"GET  /api/devices/{id}/config",
				"POST /api/devices/{id}/config",
				"POST /api/devices/{id}/config/delivered",
				"GET  /api/devices/{id}/data",
				"GET  /api/devices/{id}/status/latest",
				"POST /api/ecg/data",
				"GET  /api/ecg/data",
				"GET  /api/ecg/data/export",
				"GET  /api/ecg/data/{recordId}",
				"POST /api/ecg/data/{recordId}/presigned-urls",
			},
		})
	})
}
