package repository

import (
	"context"
	"time"

	"respira-data/internal/domain"
)

// TelemetryRepository stores inbound device telemetry. Append-only: there is
// no update path, every event becomes its own record.
type TelemetryRepository interface {
	Insert(ctx context.Context, rec *domain.TelemetryRecord) error

	// ListByDevice returns the newest records first.
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]*domain.TelemetryRecord, error)
}

// DeviceConfigRepository owns queued configuration changes, keyed by device.
type DeviceConfigRepository interface {
	// Get returns nil, nil when the device has no config row.
	Get(ctx context.Context, deviceID string) (*domain.DeviceConfig, error)

	// GetPending returns the config only when pending_update is set,
	// nil otherwise.
	GetPending(ctx context.Context, deviceID string) (*domain.DeviceConfig, error)

	// Upsert stores the config values and flags them as pending delivery.
	Upsert(ctx context.Context, cfg *domain.DeviceConfig) error

	// MarkDelivered clears the pending flag after the device confirmed
	// receipt. A missing row is not an error.
	MarkDelivered(ctx context.Context, deviceID string) error
}

// ECGFilter narrows ECG record queries. Zero values mean "no constraint";
// both date bounds are inclusive and independently optional.
type ECGFilter struct {
	DeviceID  string
	PatientID string
	SessionID string
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// ECGRepository stores the record binding the two artifacts of a reading.
type ECGRepository interface {
	// Insert persists rec and fills in RecordID.
	Insert(ctx context.Context, rec *domain.ECGRecord) error

	// List returns matching records (newest first, ECGData projected out)
	// plus the total match count for pagination.
	List(ctx context.Context, f ECGFilter) ([]*domain.ECGRecord, int, error)

	// GetByID returns the full record including ECGData, or nil, nil when
	// the id does not exist.
	GetByID(ctx context.Context, recordID string) (*domain.ECGRecord, error)
}
