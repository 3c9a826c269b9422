package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"respira-data/internal/domain"
	"respira-data/internal/ingest"
	"respira-data/internal/mqttpub"
	"respira-data/internal/repository"
	"respira-data/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// presenceTTL bounds how long a device counts as "seen". Devices report at
// least daily, so a stale snapshot past this window means the device is gone.
const presenceTTL = 48 * time.Hour

// TelemetryService sequences the inbound telemetry pipeline:
// normalize -> classify -> decode -> persist -> push pending config ->
// acknowledge. Exactly one durable write per event; config push and ack are
// best-effort side channels.
type TelemetryService struct {
	telemetry repository.TelemetryRepository
	configs   repository.DeviceConfigRepository
	decoder   ingest.Decoder
	publisher mqttpub.Publisher // nil = outbound publishing disabled
	kv        store.KV          // nil = presence snapshot disabled
	health    Pinger            // nil = no reconnect handling (memory repos)
	logger    *zap.Logger
}

func NewTelemetryService(
	telemetry repository.TelemetryRepository,
	configs repository.DeviceConfigRepository,
	decoder ingest.Decoder,
	publisher mqttpub.Publisher,
	kv store.KV,
	health Pinger,
	logger *zap.Logger,
) *TelemetryService {
	return &TelemetryService{
		telemetry: telemetry,
		configs:   configs,
		decoder:   decoder,
		publisher: publisher,
		kv:        kv,
		health:    health,
		logger:    logger,
	}
}

// TelemetryResult is the webhook response payload.
type TelemetryResult struct {
	RequestID       string
	DeviceID        string
	ReceivedAt      time.Time
	ConfigAvailable bool
	ConfigPublished bool
}

// Ingest processes one raw webhook body. Returned errors are typed:
// *domain.ValidationError and *ingest.DecodeError are caller faults,
// ErrStoreUnavailable means the store is down, anything else is internal.
func (s *TelemetryService) Ingest(ctx context.Context, body []byte) (*TelemetryResult, error) {
	requestID := uuid.NewString()

	env, err := ingest.NormalizeTelemetry(body)
	if err != nil {
		return nil, err
	}

	deviceID, family := ingest.Classify(env)

	parsed, err := s.decoder.Decode(env.RawData, family)
	if err != nil {
		return nil, err
	}

	rec := &domain.TelemetryRecord{
		DeviceFamily: family,
		DeviceID:     deviceID,
		DeviceStatus: env.DeviceStatus,
		RawData:      env.RawData,
		ParsedData:   parsed,
		ReceivedAt:   time.Now().UTC(),
	}
	err = withReconnect(ctx, s.health, func() error {
		return s.telemetry.Insert(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("telemetry record stored",
		zap.String("request_id", requestID),
		zap.String("device_id", deviceID),
		zap.String("device_type", string(family)),
		zap.Int("device_status", env.DeviceStatus),
	)

	s.updatePresence(ctx, rec)

	result := &TelemetryResult{
		RequestID:  requestID,
		DeviceID:   deviceID,
		ReceivedAt: rec.ReceivedAt,
	}

	cfg, err := s.configs.GetPending(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending config: %w", err)
	}
	if cfg != nil {
		result.ConfigAvailable = true
		if s.publisher != nil {
			result.ConfigPublished = s.publishConfig(requestID, env.Topic, deviceID, cfg)
		}
	}

	if env.MessageID != "" && s.publisher != nil {
		s.publishAck(requestID, deviceID, env.MessageID)
	}

	return result, nil
}

// publishConfig pushes the pending config to the channel the device listens
// on. Failures are logged and swallowed: the telemetry is already durably
// recorded and config delivery has its own confirmation flow.
func (s *TelemetryService) publishConfig(requestID, topic, deviceID string, cfg *domain.DeviceConfig) bool {
	channel := ingest.ConfigChannel(topic, deviceID)
	payload, err := json.Marshal(map[string]any{
		"device_id": deviceID,
		"config":    cfg.ConfigValues,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Error("failed to encode config payload",
			zap.String("request_id", requestID),
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return false
	}

	if err := s.publisher.Publish(channel, payload); err != nil {
		s.logger.Warn("config publish failed",
			zap.String("request_id", requestID),
			zap.String("device_id", deviceID),
			zap.String("channel", channel),
			zap.Error(err),
		)
		return false
	}

	s.logger.Info("config published",
		zap.String("request_id", requestID),
		zap.String("device_id", deviceID),
		zap.String("channel", channel),
	)
	return true
}

// publishAck confirms receipt to the device. Best-effort like publishConfig.
func (s *TelemetryService) publishAck(requestID, deviceID, messageID string) {
	payload, _ := json.Marshal(map[string]any{
		"device_id":  deviceID,
		"message_id": messageID,
		"status":     "received",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})

	channel := "devices/" + deviceID + "/ack"
	if err := s.publisher.Publish(channel, payload); err != nil {
		s.logger.Warn("acknowledgment publish failed",
			zap.String("request_id", requestID),
			zap.String("device_id", deviceID),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}

// updatePresence refreshes the per-device snapshot read by the latest-status
// endpoint. Best-effort: a KV failure never fails the request.
func (s *TelemetryService) updatePresence(ctx context.Context, rec *domain.TelemetryRecord) {
	if s.kv == nil {
		return
	}
	snapshot, _ := json.Marshal(map[string]any{
		"device_id":     rec.DeviceID,
		"device_type":   rec.DeviceFamily,
		"device_status": rec.DeviceStatus,
		"last_seen":     rec.ReceivedAt.Format(time.RFC3339),
	})
	if err := s.kv.Set(ctx, PresenceKey(rec.DeviceID), string(snapshot), presenceTTL); err != nil {
		s.logger.Warn("presence snapshot update failed",
			zap.String("device_id", rec.DeviceID),
			zap.Error(err),
		)
	}
}

// PresenceKey is the KV key holding a device's latest-status snapshot.
func PresenceKey(deviceID string) string {
	return "device:last:" + deviceID
}
