package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"respira-data/internal/domain"
)

// PostgresDeviceConfigRepository device config store backed by postgres
type PostgresDeviceConfigRepository struct {
	db *sql.DB
}

func NewPostgresDeviceConfigRepository(db *sql.DB) *PostgresDeviceConfigRepository {
	return &PostgresDeviceConfigRepository{db: db}
}

var _ DeviceConfigRepository = (*PostgresDeviceConfigRepository)(nil)

func (r *PostgresDeviceConfigRepository) Get(ctx context.Context, deviceID string) (*domain.DeviceConfig, error) {
	return r.get(ctx, deviceID, false)
}

func (r *PostgresDeviceConfigRepository) GetPending(ctx context.Context, deviceID string) (*domain.DeviceConfig, error) {
	return r.get(ctx, deviceID, true)
}

func (r *PostgresDeviceConfigRepository) get(ctx context.Context, deviceID string, pendingOnly bool) (*domain.DeviceConfig, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `
		SELECT device_id, COALESCE(config_values, 'null'::jsonb), pending_update, updated_at
		FROM device_configs
		WHERE device_id = $1
	`
	if pendingOnly {
		query += ` AND pending_update = true`
	}

	var cfg domain.DeviceConfig
	var values []byte
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&cfg.DeviceID,
		&values,
		&cfg.PendingUpdate,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get device config: %w", err)
	}
	cfg.ConfigValues = unmarshalMap(values)

	return &cfg, nil
}

func (r *PostgresDeviceConfigRepository) Upsert(ctx context.Context, cfg *domain.DeviceConfig) error {
	if cfg == nil || cfg.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	values, err := marshalJSONB(cfg.ConfigValues)
	if err != nil {
		return fmt.Errorf("failed to encode config_values: %w", err)
	}

	query := `
		INSERT INTO device_configs (device_id, config_values, pending_update, updated_at)
		VALUES ($1, $2, true, $3)
		ON CONFLICT (device_id)
		DO UPDATE SET config_values = EXCLUDED.config_values,
		              pending_update = true,
		              updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	if _, err := r.db.ExecContext(ctx, query, cfg.DeviceID, values, now); err != nil {
		return fmt.Errorf("failed to upsert device config: %w", err)
	}
	cfg.PendingUpdate = true
	cfg.UpdatedAt = now

	return nil
}

func (r *PostgresDeviceConfigRepository) MarkDelivered(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	query := `
		UPDATE device_configs
		SET pending_update = false, updated_at = $2
		WHERE device_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, deviceID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark config delivered: %w", err)
	}

	return nil
}
