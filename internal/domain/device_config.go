package domain

import "time"

// DeviceConfig is a configuration change queued for one device. The webhook
// path only reads PendingUpdate; the config CRUD endpoints own the lifecycle
// (set on update, cleared by the delivered acknowledgment).
type DeviceConfig struct {
	DeviceID      string         `json:"device_id"`
	ConfigValues  map[string]any `json:"config_values"`
	PendingUpdate bool           `json:"pending_update"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
