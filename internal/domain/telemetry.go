package domain

import "time"

// DeviceFamily is the closed set of respiratory device families. The family
// decides which decoder grammar applies to the raw data string.
type DeviceFamily string

const (
	FamilyCPAP  DeviceFamily = "CPAP"
	FamilyBIPAP DeviceFamily = "BIPAP"
)

// Valid reports whether f is one of the known families.
func (f DeviceFamily) Valid() bool {
	return f == FamilyCPAP || f == FamilyBIPAP
}

// TelemetryRecord is one durable inbound telemetry event. Records are
// append-only: RawData is preserved verbatim for audit/replay and is never
// mutated after creation.
type TelemetryRecord struct {
	RecordID     string         `json:"record_id"`
	DeviceFamily DeviceFamily   `json:"device_type"`
	DeviceID     string         `json:"device_id"`
	DeviceStatus int            `json:"device_status"`
	RawData      string         `json:"raw_data"`
	ParsedData   map[string]any `json:"parsed_data"`
	ReceivedAt   time.Time      `json:"timestamp"`
}
