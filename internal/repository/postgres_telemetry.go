package repository

import (
	"context"
	"database/sql"
	"fmt"

	"respira-data/internal/domain"
)

// PostgresTelemetryRepository telemetry record store backed by postgres
type PostgresTelemetryRepository struct {
	db *sql.DB
}

func NewPostgresTelemetryRepository(db *sql.DB) *PostgresTelemetryRepository {
	return &PostgresTelemetryRepository{db: db}
}

var _ TelemetryRepository = (*PostgresTelemetryRepository)(nil)

func (r *PostgresTelemetryRepository) Insert(ctx context.Context, rec *domain.TelemetryRecord) error {
	if rec == nil || rec.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	parsed, err := marshalJSONB(rec.ParsedData)
	if err != nil {
		return fmt.Errorf("failed to encode parsed_data: %w", err)
	}

	query := `
		INSERT INTO telemetry_records (
			device_type, device_id, device_status, raw_data, parsed_data, received_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING record_id::text
	`
	err = r.db.QueryRowContext(ctx, query,
		string(rec.DeviceFamily),
		rec.DeviceID,
		rec.DeviceStatus,
		rec.RawData,
		parsed,
		rec.ReceivedAt,
	).Scan(&rec.RecordID)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry record: %w", err)
	}

	return nil
}

func (r *PostgresTelemetryRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*domain.TelemetryRecord, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT
			record_id::text,
			device_type,
			device_id,
			device_status,
			raw_data,
			COALESCE(parsed_data, 'null'::jsonb),
			received_at
		FROM telemetry_records
		WHERE device_id = $1
		ORDER BY received_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list telemetry records: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.TelemetryRecord, 0)
	for rows.Next() {
		var rec domain.TelemetryRecord
		var family string
		var parsed []byte
		if err := rows.Scan(
			&rec.RecordID,
			&family,
			&rec.DeviceID,
			&rec.DeviceStatus,
			&rec.RawData,
			&parsed,
			&rec.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry record: %w", err)
		}
		rec.DeviceFamily = domain.DeviceFamily(family)
		rec.ParsedData = unmarshalMap(parsed)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate telemetry records: %w", err)
	}

	return records, nil
}
