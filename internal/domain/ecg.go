package domain

import "time"

// ECG record lifecycle. Records are created as "uploaded"; the analysis
// service advances them out-of-band.
const (
	ECGStatusUploaded  = "uploaded"
	ECGStatusProcessed = "processed"
	ECGStatusAnalyzed  = "analyzed"
	ECGStatusError     = "error"
)

// ECG data sources.
const (
	ECGSourceSoftware = "software"
	ECGSourceAPI      = "api"
	ECGSourceWebhook  = "webhook"
	ECGSourceDirect   = "direct"
)

// ArtifactRef points at one stored object (JSON or PDF) belonging to an
// ECG record.
type ArtifactRef struct {
	StorageKey  string `json:"storage_key"`
	URL         string `json:"url"`
	Bucket      string `json:"bucket"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
}

// ECGRecord binds the two stored artifacts of one logical ECG reading.
// Invariant: a record is only created after both artifacts exist in the
// object store; there is no record-without-artifacts state.
type ECGRecord struct {
	RecordID  string `json:"ecg_record_id"`
	DeviceID  string `json:"device_id"`
	PatientID string `json:"patient_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Parsed waveform/metadata payload. Excluded from list views.
	ECGData map[string]any `json:"ecg_data,omitempty"`

	JSONArtifact ArtifactRef `json:"json_artifact"`
	PDFArtifact  ArtifactRef `json:"pdf_artifact"`

	RecordingDate     time.Time `json:"recording_date"`
	RecordingDuration float64   `json:"recording_duration,omitempty"` // seconds
	SampleRate        float64   `json:"sample_rate,omitempty"`        // Hz
	Leads             []string  `json:"leads"`

	Status     string `json:"status"`
	DataSource string `json:"data_source"`

	// Optional link to the respiratory device of the same patient.
	LinkedDeviceID   string       `json:"linked_device_id,omitempty"`
	LinkedDeviceType DeviceFamily `json:"linked_device_type,omitempty"`

	ReceivedAt time.Time `json:"timestamp"`
}
