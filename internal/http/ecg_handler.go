package httpapi

import (
	"net/http"
	"strings"
	"time"

	"respira-data/internal/repository"
	"respira-data/internal/service"

	"go.uber.org/zap"
)

const maxECGBody = 50 << 20 // 50MB, PDFs included inline

// ECGHandler serves the ECG ingestion and read-side endpoints:
//
//	POST /api/ecg/data
//	GET  /api/ecg/data
//	GET  /api/ecg/data/export
//	GET  /api/ecg/data/{recordId}
//	POST /api/ecg/data/{recordId}/presigned-urls
type ECGHandler struct {
	svc    *service.ECGService
	logger *zap.Logger
}

func NewECGHandler(svc *service.ECGService, logger *zap.Logger) *ECGHandler {
	return &ECGHandler{svc: svc, logger: logger}
}

func (h *ECGHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/ecg/data"), "/")

	switch {
	case rest == "" && r.Method == http.MethodPost:
		h.ingest(w, r)
	case rest == "" && r.Method == http.MethodGet:
		h.list(w, r)
	case rest == "export" && r.Method == http.MethodGet:
		h.export(w, r)
	case strings.HasSuffix(rest, "/presigned-urls") && r.Method == http.MethodPost:
		h.presignedURLs(w, r, strings.TrimSuffix(rest, "/presigned-urls"))
	case !strings.Contains(rest, "/") && rest != "" && r.Method == http.MethodGet:
		h.getByID(w, r, rest)
	default:
		writeJSON(w, http.StatusNotFound, fail("Route not found"))
	}
}

func (h *ECGHandler) ingest(w http.ResponseWriter, r *http.Request) {
	var req service.ECGIngestRequest
	if err := readBodyJSON(r, maxECGBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, fail("request body must be valid JSON"))
		return
	}

	rec, requestID, err := h.svc.Ingest(r.Context(), &req)
	if err != nil {
		h.logger.Warn("ecg ingestion failed",
			zap.String("request_id", requestID),
			zap.String("device_id", req.DeviceID),
			zap.Error(err),
		)
		status, body := errorResponse(err)
		body["requestId"] = requestID
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "ECG data received and saved successfully",
		"data": map[string]any{
			"ecg_record_id":  rec.RecordID,
			"device_id":      rec.DeviceID,
			"patient_id":     rec.PatientID,
			"session_id":     rec.SessionID,
			"json_url":       rec.JSONArtifact.URL,
			"pdf_url":        rec.PDFArtifact.URL,
			"recording_date": rec.RecordingDate.Format(time.RFC3339),
			"timestamp":      rec.ReceivedAt.Format(time.RFC3339Nano),
		},
		"requestId": requestID,
	})
}

func (h *ECGHandler) list(w http.ResponseWriter, r *http.Request) {
	filter, limit, offset := ecgFilterFromQuery(r)

	records, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list ecg records", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    records,
		"pagination": map[string]any{
			"total":   total,
			"limit":   limit,
			"offset":  offset,
			"hasMore": offset+len(records) < total,
		},
	})
}

func (h *ECGHandler) getByID(w http.ResponseWriter, r *http.Request, recordID string) {
	rec, err := h.svc.GetByID(r.Context(), recordID)
	if err != nil {
		h.logger.Error("failed to get ecg record", zap.String("record_id", recordID), zap.Error(err))
		writeError(w, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, fail("ECG record not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": rec})
}

func (h *ECGHandler) presignedURLs(w http.ResponseWriter, r *http.Request, recordID string) {
	var body struct {
		ExpiresIn        *int `json:"expiresIn"`
		ExpiresInSeconds *int `json:"expiresInSeconds"`
	}
	if err := readBodyJSON(r, maxTelemetryBody, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, fail("request body must be valid JSON"))
		return
	}
	expiresIn := 3600 // default 1 hour
	if body.ExpiresInSeconds != nil {
		expiresIn = *body.ExpiresInSeconds
	} else if body.ExpiresIn != nil {
		expiresIn = *body.ExpiresIn
	}
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	rec, jsonURL, pdfURL, err := h.svc.PresignedURLs(r.Context(), recordID, time.Duration(expiresIn)*time.Second)
	if err != nil {
		h.logger.Error("failed to issue presigned urls", zap.String("record_id", recordID), zap.Error(err))
		writeError(w, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, fail("ECG record not found"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"json_url":   jsonURL,
			"pdf_url":    pdfURL,
			"expires_in": expiresIn,
		},
	})
}

// ecgFilterFromQuery reads list/export filters. Both date bounds are
// inclusive and independently optional.
func ecgFilterFromQuery(r *http.Request) (repository.ECGFilter, int, int) {
	q := r.URL.Query()

	// camelCase per the public API docs, snake_case kept for the older
	// software clients
	get := func(camel, snake string) string {
		if v := q.Get(camel); v != "" {
			return v
		}
		return q.Get(snake)
	}

	limit := parseIntQuery(r, "limit", 100)
	offset := parseIntQuery(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	filter := repository.ECGFilter{
		DeviceID:  get("deviceId", "device_id"),
		PatientID: get("patientId", "patient_id"),
		SessionID: get("sessionId", "session_id"),
		Status:    q.Get("status"),
		Limit:     limit,
		Offset:    offset,
	}
	if ts, ok := parseDateQuery(get("startDate", "start_date")); ok {
		filter.StartDate = &ts
	}
	if ts, ok := parseDateQuery(get("endDate", "end_date")); ok {
		filter.EndDate = &ts
	}

	return filter, limit, offset
}

func parseDateQuery(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
