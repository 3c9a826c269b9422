package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"respira-data/internal/domain"
	"respira-data/internal/objectstore"
	"respira-data/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const pdfDataURLPrefix = "data:application/pdf;base64,"

// ECGIngestRequest is the wire shape of POST /api/ecg/data. The JSON payload
// may arrive as an object or as a JSON-encoded string; the PDF arrives
// base64-encoded (optionally with a data-URL prefix) or as raw bytes.
type ECGIngestRequest struct {
	DeviceID  string `json:"device_id"`
	PatientID string `json:"patient_id"`
	SessionID string `json:"session_id"`

	ECGJSONData json.RawMessage `json:"ecg_json_data"`
	ECGPDFData  string          `json:"ecg_pdf_data"`
	ECGPDFBytes []byte          `json:"ecg_pdf_buffer"`

	RecordingDate     string   `json:"recording_date"`
	RecordingDuration float64  `json:"recording_duration"`
	SampleRate        float64  `json:"sample_rate"`
	Leads             []string `json:"leads"`
	DataSource        string   `json:"data_source"`

	LinkedDeviceID   string `json:"linked_device_id"`
	LinkedDeviceType string `json:"linked_device_type"`
}

// ECGService sequences the dual-artifact ingestion pipeline: validate ->
// parse -> upload both artifacts concurrently -> persist the binding record.
// A record is only created once both artifacts are stored; a partial upload
// leaves at most one orphan object and no record.
type ECGService struct {
	records  repository.ECGRepository
	objects  objectstore.Store
	analysis *AnalysisClient // nil = notification disabled
	health   Pinger
	logger   *zap.Logger
}

func NewECGService(
	records repository.ECGRepository,
	objects objectstore.Store,
	analysis *AnalysisClient,
	health Pinger,
	logger *zap.Logger,
) *ECGService {
	return &ECGService{
		records:  records,
		objects:  objects,
		analysis: analysis,
		health:   health,
		logger:   logger,
	}
}

// Ingest processes one ECG reading. Returns the persisted record and the
// request correlation id, or a *domain.ValidationError / *PartialUploadError
// / ErrStoreUnavailable. The request id is valid on error paths too so
// callers can echo it for tracing.
func (s *ECGService) Ingest(ctx context.Context, req *ECGIngestRequest) (*domain.ECGRecord, string, error) {
	requestID := uuid.NewString()

	if req.DeviceID == "" {
		return nil, requestID, domain.NewValidationError("device_id")
	}
	if len(req.ECGJSONData) == 0 || string(req.ECGJSONData) == "null" {
		return nil, requestID, domain.NewValidationError("ecg_json_data")
	}

	payload, err := parseECGPayload(req.ECGJSONData)
	if err != nil {
		return nil, requestID, &domain.ValidationError{Field: "ecg_json_data", Message: fmt.Sprintf("invalid JSON data: %v", err)}
	}

	if req.ECGPDFData == "" && len(req.ECGPDFBytes) == 0 {
		return nil, requestID, &domain.ValidationError{Field: "ecg_pdf_data", Message: "ecg_pdf_data (base64) or ecg_pdf_buffer is required"}
	}
	pdfBytes, err := decodePDF(req)
	if err != nil || len(pdfBytes) == 0 {
		return nil, requestID, &domain.ValidationError{Field: "ecg_pdf_data", Message: "invalid PDF data"}
	}

	recordingDate := effectiveRecordingDate(req.RecordingDate, payload)

	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, requestID, fmt.Errorf("failed to re-encode ecg payload: %w", err)
	}

	metadata := map[string]string{
		"device_id":      req.DeviceID,
		"patient_id":     req.PatientID,
		"session_id":     req.SessionID,
		"recording_date": recordingDate.Format(time.RFC3339),
	}

	jsonKey := ArtifactKey(req.DeviceID, "json", recordingDate)
	pdfKey := ArtifactKey(req.DeviceID, "pdf", recordingDate)

	s.logger.Info("uploading ecg artifacts",
		zap.String("request_id", requestID),
		zap.String("device_id", req.DeviceID),
		zap.String("json_key", jsonKey),
		zap.String("pdf_key", pdfKey),
	)

	jsonResult, pdfResult, err := s.uploadBoth(ctx,
		objectstore.PutInput{Key: jsonKey, Body: jsonBytes, ContentType: "application/json", Metadata: metadata},
		objectstore.PutInput{Key: pdfKey, Body: pdfBytes, ContentType: "application/pdf", Metadata: metadata},
	)
	if err != nil {
		return nil, requestID, err
	}

	rec := composeRecord(req, payload, jsonResult, pdfResult, recordingDate)

	err = withReconnect(ctx, s.health, func() error {
		return s.records.Insert(ctx, rec)
	})
	if err != nil {
		return nil, requestID, err
	}

	s.logger.Info("ecg record stored",
		zap.String("request_id", requestID),
		zap.String("ecg_record_id", rec.RecordID),
		zap.String("device_id", rec.DeviceID),
	)

	if s.analysis != nil {
		// best-effort; the analysis service also polls the list endpoint
		if err := s.analysis.NotifyNewRecord(ctx, rec); err != nil {
			s.logger.Warn("analysis notification failed",
				zap.String("ecg_record_id", rec.RecordID),
				zap.Error(err),
			)
		}
	}

	return rec, requestID, nil
}

// uploadBoth stores the two artifacts concurrently and waits for both.
// Either failure aborts record creation; the successful sibling stays as an
// orphan (no rollback across the store boundary).
func (s *ECGService) uploadBoth(ctx context.Context, jsonIn, pdfIn objectstore.PutInput) (*objectstore.PutResult, *objectstore.PutResult, error) {
	var (
		wg         sync.WaitGroup
		jsonResult *objectstore.PutResult
		pdfResult  *objectstore.PutResult
		jsonErr    error
		pdfErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		jsonResult, jsonErr = s.objects.Put(ctx, jsonIn)
	}()
	go func() {
		defer wg.Done()
		pdfResult, pdfErr = s.objects.Put(ctx, pdfIn)
	}()
	wg.Wait()

	if jsonErr != nil {
		return nil, nil, &PartialUploadError{Artifact: "json", Err: jsonErr}
	}
	if pdfErr != nil {
		return nil, nil, &PartialUploadError{Artifact: "pdf", Err: pdfErr}
	}
	return jsonResult, pdfResult, nil
}

// List runs the read-side query. ECGData is excluded from list results.
func (s *ECGService) List(ctx context.Context, f repository.ECGFilter) ([]*domain.ECGRecord, int, error) {
	return s.records.List(ctx, f)
}

// GetByID returns the full record or nil when absent.
func (s *ECGService) GetByID(ctx context.Context, recordID string) (*domain.ECGRecord, error) {
	return s.records.GetByID(ctx, recordID)
}

// PresignedURLs issues read URLs for both artifacts of a record. Returns
// nil record when the id does not exist (handler maps to 404).
func (s *ECGService) PresignedURLs(ctx context.Context, recordID string, expires time.Duration) (*domain.ECGRecord, string, string, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil || rec == nil {
		return nil, "", "", err
	}

	jsonURL, err := s.objects.SignedURL(rec.JSONArtifact.StorageKey, expires)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to sign json url: %w", err)
	}
	pdfURL, err := s.objects.SignedURL(rec.PDFArtifact.StorageKey, expires)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to sign pdf url: %w", err)
	}

	return rec, jsonURL, pdfURL, nil
}

// ArtifactKey builds the deterministic storage key for one artifact:
// unique per (device, artifact-type, timestamp), human-traceable, and
// independent of record-store ids (artifacts exist before the record).
func ArtifactKey(deviceID, kind string, ts time.Time) string {
	ext := kind
	return fmt.Sprintf("ecg-data/%s/%s/%04d/%02d/%02d/%d.%s",
		deviceID, kind, ts.Year(), int(ts.Month()), ts.Day(), ts.UnixMilli(), ext)
}

// parseECGPayload accepts an object or a JSON-encoded string of an object.
func parseECGPayload(raw json.RawMessage) (map[string]any, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		raw = json.RawMessage(asString)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func decodePDF(req *ECGIngestRequest) ([]byte, error) {
	if len(req.ECGPDFBytes) > 0 {
		return req.ECGPDFBytes, nil
	}
	data := strings.TrimPrefix(req.ECGPDFData, pdfDataURLPrefix)
	return base64.StdEncoding.DecodeString(data)
}

// effectiveRecordingDate prefers the explicit request field, then the
// payload's recording_date/timestamp, then now.
func effectiveRecordingDate(explicit string, payload map[string]any) time.Time {
	if ts, ok := parseTimestamp(explicit); ok {
		return ts
	}
	for _, key := range []string{"recording_date", "timestamp"} {
		if v, ok := payload[key].(string); ok {
			if ts, ok := parseTimestamp(v); ok {
				return ts
			}
		}
	}
	return time.Now().UTC()
}

func parseTimestamp(s string) (time.Time, bool) {
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

// composeRecord merges explicit request fields with fields extracted from
// the payload. Explicit request fields always win; the payload recognizes
// synonymous key names (duration/recording_duration, sample_rate/
// sampling_rate, leads/channels).
func composeRecord(req *ECGIngestRequest, payload map[string]any, jsonResult, pdfResult *objectstore.PutResult, recordingDate time.Time) *domain.ECGRecord {
	rec := &domain.ECGRecord{
		DeviceID:  req.DeviceID,
		PatientID: req.PatientID,
		SessionID: req.SessionID,
		ECGData:   payload,
		JSONArtifact: domain.ArtifactRef{
			StorageKey:  jsonResult.Key,
			URL:         jsonResult.URL,
			Bucket:      jsonResult.Bucket,
			SizeBytes:   jsonResult.SizeBytes,
			ContentType: "application/json",
		},
		PDFArtifact: domain.ArtifactRef{
			StorageKey:  pdfResult.Key,
			URL:         pdfResult.URL,
			Bucket:      pdfResult.Bucket,
			SizeBytes:   pdfResult.SizeBytes,
			ContentType: "application/pdf",
		},
		RecordingDate:     recordingDate,
		RecordingDuration: req.RecordingDuration,
		SampleRate:        req.SampleRate,
		Leads:             req.Leads,
		Status:            domain.ECGStatusUploaded,
		DataSource:        req.DataSource,
		LinkedDeviceID:    req.LinkedDeviceID,
		LinkedDeviceType:  domain.DeviceFamily(req.LinkedDeviceType),
		ReceivedAt:        time.Now().UTC(),
	}

	if rec.PatientID == "" {
		rec.PatientID, _ = payload["patient_id"].(string)
	}
	if rec.SessionID == "" {
		rec.SessionID, _ = payload["session_id"].(string)
	}
	if rec.RecordingDuration == 0 {
		rec.RecordingDuration = payloadNumber(payload, "duration", "recording_duration")
	}
	if rec.SampleRate == 0 {
		rec.SampleRate = payloadNumber(payload, "sample_rate", "sampling_rate")
	}
	if len(rec.Leads) == 0 {
		rec.Leads = payloadStrings(payload, "leads", "channels")
	}
	if rec.Leads == nil {
		rec.Leads = []string{}
	}
	if rec.DataSource == "" {
		rec.DataSource = domain.ECGSourceSoftware
	}

	return rec
}

func payloadNumber(payload map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if v, ok := payload[key].(float64); ok {
			return v
		}
	}
	return 0
}

func payloadStrings(payload map[string]any, keys ...string) []string {
	for _, key := range keys {
		items, ok := payload[key].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
