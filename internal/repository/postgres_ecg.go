package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"respira-data/internal/domain"
)

// PostgresECGRepository ECG record store backed by postgres
type PostgresECGRepository struct {
	db *sql.DB
}

func NewPostgresECGRepository(db *sql.DB) *PostgresECGRepository {
	return &PostgresECGRepository{db: db}
}

var _ ECGRepository = (*PostgresECGRepository)(nil)

func (r *PostgresECGRepository) Insert(ctx context.Context, rec *domain.ECGRecord) error {
	if rec == nil || rec.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	ecgData, err := marshalJSONB(rec.ECGData)
	if err != nil {
		return fmt.Errorf("failed to encode ecg_data: %w", err)
	}
	leads, err := marshalJSONB(rec.Leads)
	if err != nil {
		return fmt.Errorf("failed to encode leads: %w", err)
	}

	query := `
		INSERT INTO ecg_records (
			device_id, patient_id, session_id, ecg_data,
			json_storage_key, json_url, pdf_storage_key, pdf_url, bucket,
			json_size, pdf_size, json_content_type, pdf_content_type,
			recording_date, recording_duration, sample_rate, leads,
			status, data_source, linked_device_id, linked_device_type, received_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, $21, $22
		)
		RETURNING record_id::text
	`
	err = r.db.QueryRowContext(ctx, query,
		rec.DeviceID,
		nullString(rec.PatientID),
		nullString(rec.SessionID),
		ecgData,
		rec.JSONArtifact.StorageKey,
		rec.JSONArtifact.URL,
		rec.PDFArtifact.StorageKey,
		rec.PDFArtifact.URL,
		rec.JSONArtifact.Bucket,
		rec.JSONArtifact.SizeBytes,
		rec.PDFArtifact.SizeBytes,
		rec.JSONArtifact.ContentType,
		rec.PDFArtifact.ContentType,
		rec.RecordingDate,
		nullFloat(rec.RecordingDuration),
		nullFloat(rec.SampleRate),
		leads,
		rec.Status,
		rec.DataSource,
		nullString(rec.LinkedDeviceID),
		nullString(string(rec.LinkedDeviceType)),
		rec.ReceivedAt,
	).Scan(&rec.RecordID)
	if err != nil {
		return fmt.Errorf("failed to insert ecg record: %w", err)
	}

	return nil
}

// List returns matching records newest first. ECGData is projected out of
// list views; GetByID returns it.
func (r *PostgresECGRepository) List(ctx context.Context, f ECGFilter) ([]*domain.ECGRecord, int, error) {
	where := []string{"1=1"}
	args := []any{}

	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.DeviceID != "" {
		add("device_id = $%d", f.DeviceID)
	}
	if f.PatientID != "" {
		add("patient_id = $%d", f.PatientID)
	}
	if f.SessionID != "" {
		add("session_id = $%d", f.SessionID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.StartDate != nil {
		add("recording_date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("recording_date <= $%d", *f.EndDate)
	}

	whereSQL := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM ecg_records WHERE " + whereSQL
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ecg records: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM ecg_records
		WHERE %s
		ORDER BY received_at DESC
		LIMIT $%d OFFSET $%d
	`, ecgColumns(false), whereSQL, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ecg records: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.ECGRecord, 0)
	for rows.Next() {
		rec, err := scanECGRecord(rows, false)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan ecg record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate ecg records: %w", err)
	}

	return records, total, nil
}

func (r *PostgresECGRepository) GetByID(ctx context.Context, recordID string) (*domain.ECGRecord, error) {
	if recordID == "" {
		return nil, fmt.Errorf("record_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM ecg_records
		WHERE record_id::text = $1
	`, ecgColumns(true))

	row := r.db.QueryRowContext(ctx, query, recordID)
	rec, err := scanECGRecord(row, true)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ecg record: %w", err)
	}

	return rec, nil
}

func ecgColumns(withPayload bool) string {
	payload := "'null'::jsonb"
	if withPayload {
		payload = "COALESCE(ecg_data, 'null'::jsonb)"
	}
	return fmt.Sprintf(`
		record_id::text,
		device_id,
		COALESCE(patient_id, ''),
		COALESCE(session_id, ''),
		%s,
		json_storage_key, json_url, pdf_storage_key, pdf_url, bucket,
		json_size, pdf_size, json_content_type, pdf_content_type,
		recording_date,
		COALESCE(recording_duration, 0),
		COALESCE(sample_rate, 0),
		COALESCE(leads, 'null'::jsonb),
		status,
		data_source,
		COALESCE(linked_device_id, ''),
		COALESCE(linked_device_type, ''),
		received_at
	`, payload)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanECGRecord(row rowScanner, withPayload bool) (*domain.ECGRecord, error) {
	var rec domain.ECGRecord
	var ecgData, leads []byte
	var linkedType string
	err := row.Scan(
		&rec.RecordID,
		&rec.DeviceID,
		&rec.PatientID,
		&rec.SessionID,
		&ecgData,
		&rec.JSONArtifact.StorageKey,
		&rec.JSONArtifact.URL,
		&rec.PDFArtifact.StorageKey,
		&rec.PDFArtifact.URL,
		&rec.JSONArtifact.Bucket,
		&rec.JSONArtifact.SizeBytes,
		&rec.PDFArtifact.SizeBytes,
		&rec.JSONArtifact.ContentType,
		&rec.PDFArtifact.ContentType,
		&rec.RecordingDate,
		&rec.RecordingDuration,
		&rec.SampleRate,
		&leads,
		&rec.Status,
		&rec.DataSource,
		&rec.LinkedDeviceID,
		&linkedType,
		&rec.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.PDFArtifact.Bucket = rec.JSONArtifact.Bucket
	rec.LinkedDeviceType = domain.DeviceFamily(linkedType)
	if withPayload {
		rec.ECGData = unmarshalMap(ecgData)
	}
	rec.Leads = unmarshalStrings(leads)

	return &rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}
