package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"respira-data/internal/domain"
	"respira-data/internal/objectstore"
	"respira-data/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyStore fails Put for one content type to exercise the partial-upload
// path.
type flakyStore struct {
	inner       *objectstore.MemoryStore
	failContent string
}

func (s *flakyStore) Put(ctx context.Context, in objectstore.PutInput) (*objectstore.PutResult, error) {
	if in.ContentType == s.failContent {
		return nil, errors.New("bucket write failed")
	}
	return s.inner.Put(ctx, in)
}

func (s *flakyStore) SignedURL(key string, expires time.Duration) (string, error) {
	return s.inner.SignedURL(key, expires)
}

func newECGSvc(t *testing.T) (*ECGService, *repository.MemoryECGRepository, *objectstore.MemoryStore) {
	t.Helper()
	records := repository.NewMemoryECGRepository()
	objects := objectstore.NewMemoryStore("test-bucket")
	svc := NewECGService(records, objects, nil, nil, zap.NewNop())
	return svc, records, objects
}

var testPDF = base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 test"))

func ecgRequest() *ECGIngestRequest {
	return &ECGIngestRequest{
		DeviceID:    "ecg-monitor-01",
		PatientID:   "patient-42",
		SessionID:   "session-7",
		ECGJSONData: json.RawMessage(`{"sample_rate":250,"channels":["I","II","III"],"readings":[1,2,3]}`),
		ECGPDFData:  testPDF,
	}
}

func TestECGIngest_UploadsBothAndStoresRecord(t *testing.T) {
	svc, _, objects := newECGSvc(t)

	rec, requestID, err := svc.Ingest(context.Background(), ecgRequest())
	require.NoError(t, err)
	require.NotEmpty(t, requestID)
	require.NotEmpty(t, rec.RecordID)
	require.Equal(t, "ecg-monitor-01", rec.DeviceID)
	require.Equal(t, domain.ECGStatusUploaded, rec.Status)
	require.Equal(t, domain.ECGSourceSoftware, rec.DataSource)

	// payload extraction
	require.Equal(t, 250.0, rec.SampleRate)
	require.Equal(t, []string{"I", "II", "III"}, rec.Leads)

	// both artifacts stored
	require.Equal(t, 2, objects.Len())
	require.True(t, strings.HasPrefix(rec.JSONArtifact.StorageKey, "ecg-data/ecg-monitor-01/json/"))
	require.True(t, strings.HasPrefix(rec.PDFArtifact.StorageKey, "ecg-data/ecg-monitor-01/pdf/"))

	pdf, ok := objects.Object(rec.PDFArtifact.StorageKey)
	require.True(t, ok)
	require.Equal(t, []byte("%PDF-1.4 test"), pdf.Body)
}

func TestECGIngest_ExplicitFieldsWinOverPayload(t *testing.T) {
	svc, _, _ := newECGSvc(t)

	req := ecgRequest()
	req.SampleRate = 500
	req.Leads = []string{"V1", "V2"}
	req.RecordingDuration = 30

	rec, _, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 500.0, rec.SampleRate)
	require.Equal(t, []string{"V1", "V2"}, rec.Leads)
	require.Equal(t, 30.0, rec.RecordingDuration)
}

func TestECGIngest_PayloadSynonyms(t *testing.T) {
	svc, _, _ := newECGSvc(t)

	req := ecgRequest()
	req.ECGJSONData = json.RawMessage(`{"sampling_rate":125,"duration":60.5,"channels":["I"]}`)

	rec, _, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 125.0, rec.SampleRate)
	require.Equal(t, 60.5, rec.RecordingDuration)
	require.Equal(t, []string{"I"}, rec.Leads)
}

func TestECGIngest_JSONDataAsString(t *testing.T) {
	svc, _, _ := newECGSvc(t)

	req := ecgRequest()
	req.ECGJSONData = json.RawMessage(`"{\"sample_rate\":100}"`)

	rec, _, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 100.0, rec.SampleRate)
}

func TestECGIngest_DataURLPrefixStripped(t *testing.T) {
	svc, _, objects := newECGSvc(t)

	req := ecgRequest()
	req.ECGPDFData = pdfDataURLPrefix + testPDF

	rec, _, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)

	pdf, ok := objects.Object(rec.PDFArtifact.StorageKey)
	require.True(t, ok)
	require.Equal(t, []byte("%PDF-1.4 test"), pdf.Body)
}

func TestECGIngest_RecordingDateFromPayload(t *testing.T) {
	svc, _, _ := newECGSvc(t)

	req := ecgRequest()
	req.ECGJSONData = json.RawMessage(`{"recording_date":"2026-03-15T10:30:00Z","sample_rate":250}`)

	rec, _, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC), rec.RecordingDate)
}

func TestECGIngest_ValidationOrder(t *testing.T) {
	svc, _, _ := newECGSvc(t)
	ctx := context.Background()

	_, requestID, err := svc.Ingest(ctx, &ECGIngestRequest{})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "device_id", verr.Field)
	// correlation id is issued even for rejected requests
	require.NotEmpty(t, requestID)

	_, _, err = svc.Ingest(ctx, &ECGIngestRequest{DeviceID: "d"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "ecg_json_data", verr.Field)

	_, _, err = svc.Ingest(ctx, &ECGIngestRequest{DeviceID: "d", ECGJSONData: json.RawMessage(`{not json`)})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "ecg_json_data", verr.Field)

	_, _, err = svc.Ingest(ctx, &ECGIngestRequest{DeviceID: "d", ECGJSONData: json.RawMessage(`{}`)})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "ecg_pdf_data", verr.Field)

	_, _, err = svc.Ingest(ctx, &ECGIngestRequest{DeviceID: "d", ECGJSONData: json.RawMessage(`{}`), ECGPDFData: "!!not-base64!!"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "ecg_pdf_data", verr.Field)
}

func TestECGIngest_PartialUploadCreatesNoRecord(t *testing.T) {
	records := repository.NewMemoryECGRepository()
	objects := &flakyStore{inner: objectstore.NewMemoryStore("test-bucket"), failContent: "application/pdf"}
	svc := NewECGService(records, objects, nil, nil, zap.NewNop())

	_, _, err := svc.Ingest(context.Background(), ecgRequest())
	var perr *PartialUploadError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "pdf", perr.Artifact)

	// no record behind the failed upload
	list, total, err := records.List(context.Background(), repository.ECGFilter{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, list)
}

func TestECGList_ProjectsPayloadOut(t *testing.T) {
	svc, _, _ := newECGSvc(t)

	_, _, err := svc.Ingest(context.Background(), ecgRequest())
	require.NoError(t, err)

	list, total, err := svc.List(context.Background(), repository.ECGFilter{DeviceID: "ecg-monitor-01"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Nil(t, list[0].ECGData)

	// GetByID returns the payload
	full, err := svc.GetByID(context.Background(), list[0].RecordID)
	require.NoError(t, err)
	require.NotNil(t, full.ECGData)
}

func TestECGPresignedURLs_MissingRecord(t *testing.T) {
	svc, _, _ := newECGSvc(t)

	rec, jsonURL, pdfURL, err := svc.PresignedURLs(context.Background(), "no-such-id", time.Hour)
	require.NoError(t, err)
	require.Nil(t, rec)
	require.Empty(t, jsonURL)
	require.Empty(t, pdfURL)
}

func TestECGPresignedURLs_SignsBothArtifacts(t *testing.T) {
	svc, _, _ := newECGSvc(t)

	stored, _, err := svc.Ingest(context.Background(), ecgRequest())
	require.NoError(t, err)

	rec, jsonURL, pdfURL, err := svc.PresignedURLs(context.Background(), stored.RecordID, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Contains(t, jsonURL, stored.JSONArtifact.StorageKey)
	require.Contains(t, pdfURL, stored.PDFArtifact.StorageKey)
}

func TestArtifactKey_Layout(t *testing.T) {
	ts := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	key := ArtifactKey("dev-1", "json", ts)
	require.Equal(t, "ecg-data/dev-1/json/2026/01/05/1767614400000.json", key)
}
