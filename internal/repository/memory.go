package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"respira-data/internal/domain"

	"github.com/google/uuid"
)

// In-memory repositories for local dev without a database and for tests.
// Same contracts as the postgres implementations, no durability.

// MemoryTelemetryRepository in-memory TelemetryRepository
type MemoryTelemetryRepository struct {
	mu      sync.RWMutex
	records []*domain.TelemetryRecord
}

func NewMemoryTelemetryRepository() *MemoryTelemetryRepository {
	return &MemoryTelemetryRepository{}
}

var _ TelemetryRepository = (*MemoryTelemetryRepository)(nil)

func (r *MemoryTelemetryRepository) Insert(_ context.Context, rec *domain.TelemetryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *rec
	cp.RecordID = uuid.NewString()
	r.records = append(r.records, &cp)
	rec.RecordID = cp.RecordID
	return nil
}

func (r *MemoryTelemetryRepository) ListByDevice(_ context.Context, deviceID string, limit int) ([]*domain.TelemetryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	out := make([]*domain.TelemetryRecord, 0)
	for _, rec := range r.records {
		if rec.DeviceID == deviceID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryDeviceConfigRepository in-memory DeviceConfigRepository
type MemoryDeviceConfigRepository struct {
	mu      sync.RWMutex
	configs map[string]*domain.DeviceConfig
}

func NewMemoryDeviceConfigRepository() *MemoryDeviceConfigRepository {
	return &MemoryDeviceConfigRepository{configs: map[string]*domain.DeviceConfig{}}
}

var _ DeviceConfigRepository = (*MemoryDeviceConfigRepository)(nil)

func (r *MemoryDeviceConfigRepository) Get(_ context.Context, deviceID string) (*domain.DeviceConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[deviceID]
	if !ok {
		return nil, nil
	}
	cp := *cfg
	return &cp, nil
}

func (r *MemoryDeviceConfigRepository) GetPending(ctx context.Context, deviceID string) (*domain.DeviceConfig, error) {
	cfg, err := r.Get(ctx, deviceID)
	if err != nil || cfg == nil || !cfg.PendingUpdate {
		return nil, err
	}
	return cfg, nil
}

func (r *MemoryDeviceConfigRepository) Upsert(_ context.Context, cfg *domain.DeviceConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *cfg
	cp.PendingUpdate = true
	cp.UpdatedAt = time.Now()
	r.configs[cfg.DeviceID] = &cp
	cfg.PendingUpdate = true
	return nil
}

func (r *MemoryDeviceConfigRepository) MarkDelivered(_ context.Context, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg, ok := r.configs[deviceID]; ok {
		cfg.PendingUpdate = false
		cfg.UpdatedAt = time.Now()
	}
	return nil
}

// MemoryECGRepository in-memory ECGRepository
type MemoryECGRepository struct {
	mu      sync.RWMutex
	records []*domain.ECGRecord
}

func NewMemoryECGRepository() *MemoryECGRepository {
	return &MemoryECGRepository{}
}

var _ ECGRepository = (*MemoryECGRepository)(nil)

func (r *MemoryECGRepository) Insert(_ context.Context, rec *domain.ECGRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *rec
	cp.RecordID = uuid.NewString()
	r.records = append(r.records, &cp)
	rec.RecordID = cp.RecordID
	return nil
}

func (r *MemoryECGRepository) List(_ context.Context, f ECGFilter) ([]*domain.ECGRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*domain.ECGRecord, 0)
	for _, rec := range r.records {
		if !matchECG(rec, f) {
			continue
		}
		cp := *rec
		cp.ECGData = nil // excluded from list views
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ReceivedAt.After(matched[j].ReceivedAt) })

	total := len(matched)
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*domain.ECGRecord{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *MemoryECGRepository) GetByID(_ context.Context, recordID string) (*domain.ECGRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if rec.RecordID == recordID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func matchECG(rec *domain.ECGRecord, f ECGFilter) bool {
	if f.DeviceID != "" && rec.DeviceID != f.DeviceID {
		return false
	}
	if f.PatientID != "" && rec.PatientID != f.PatientID {
		return false
	}
	if f.SessionID != "" && rec.SessionID != f.SessionID {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.StartDate != nil && rec.RecordingDate.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && rec.RecordingDate.After(*f.EndDate) {
		return false
	}
	return true
}
