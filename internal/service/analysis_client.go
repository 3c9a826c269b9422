package service

import (
	"context"
	"fmt"
	"time"

	"respira-data/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// AnalysisClient notifies the downstream ECG analysis service of new
// records. The analysis service fetches artifacts via the URLs, runs its
// pipeline, and advances record status out-of-band.
type AnalysisClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewAnalysisClient(baseURL, authToken string, logger *zap.Logger) *AnalysisClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if authToken != "" {
		client.SetAuthToken(authToken)
	}

	return &AnalysisClient{
		httpClient: client,
		logger:     logger,
	}
}

type analysisNotification struct {
	ECGRecordID   string `json:"ecg_record_id"`
	DeviceID      string `json:"device_id"`
	PatientID     string `json:"patient_id,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	JSONURL       string `json:"json_url"`
	PDFURL        string `json:"pdf_url"`
	RecordingDate string `json:"recording_date"`
}

// NotifyNewRecord posts the new-record event. Callers treat failure as
// non-fatal; the record is already persisted.
func (c *AnalysisClient) NotifyNewRecord(ctx context.Context, rec *domain.ECGRecord) error {
	notification := analysisNotification{
		ECGRecordID:   rec.RecordID,
		DeviceID:      rec.DeviceID,
		PatientID:     rec.PatientID,
		SessionID:     rec.SessionID,
		JSONURL:       rec.JSONArtifact.URL,
		PDFURL:        rec.PDFArtifact.URL,
		RecordingDate: rec.RecordingDate.Format(time.RFC3339),
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(notification).
		Post("/api/v1/ecg/records")
	if err != nil {
		return fmt.Errorf("failed to call analysis service: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("analysis service returned %d", resp.StatusCode())
	}

	c.logger.Info("analysis service notified",
		zap.String("ecg_record_id", rec.RecordID),
		zap.Int("status_code", resp.StatusCode()),
	)
	return nil
}
