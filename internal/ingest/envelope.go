package ingest

import (
	"encoding/base64"
	"encoding/json"

	"respira-data/internal/domain"
)

// TelemetryEnvelope is the normalized, flat representation of one inbound
// device event, independent of transport encoding. It lives for the duration
// of a single request and is never persisted.
type TelemetryEnvelope struct {
	DeviceStatus   int
	RawData        string
	DeclaredFamily string // device_type as sent, may be empty or unknown
	DeclaredID     string // device_id as sent, may be empty
	Topic          string // IoT Core routing topic, may be empty
	MessageID      string // correlation id for acknowledgment, may be empty
}

// wireEnvelope is the on-the-wire shape. The IoT Core HTTPS rule action may
// deliver the event flat, nested under "payload", or nested as a base64
// string, depending on how the rule is configured.
type wireEnvelope struct {
	DeviceStatus *int            `json:"device_status"`
	DeviceData   string          `json:"device_data"`
	DeviceType   string          `json:"device_type"`
	DeviceID     string          `json:"device_id"`
	Topic        string          `json:"topic"`
	MessageID    string          `json:"messageId"`
	Payload      json.RawMessage `json:"payload"`
}

// NormalizeTelemetry unwraps a raw webhook body into a TelemetryEnvelope.
// Unwrapping order for a string payload: base64-decode-then-parse first
// (the primary transport wraps JSON in base64), direct parse second.
// device_status = 0 is a valid status and must not be rejected.
func NormalizeTelemetry(body []byte) (*TelemetryEnvelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &domain.ValidationError{Field: "body", Message: "request body must be valid JSON"}
	}

	if len(wire.Payload) > 0 && string(wire.Payload) != "null" {
		var inner wireEnvelope
		var wrapped string
		if err := json.Unmarshal(wire.Payload, &wrapped); err == nil {
			// payload is a string: try base64 first, then plain JSON
			decoded, derr := base64.StdEncoding.DecodeString(wrapped)
			if derr == nil && json.Unmarshal(decoded, &inner) == nil {
				wire = inner
			} else if json.Unmarshal([]byte(wrapped), &inner) == nil {
				wire = inner
			} else {
				return nil, &domain.ValidationError{Field: "payload", Message: "payload is not decodable as JSON"}
			}
		} else {
			if err := json.Unmarshal(wire.Payload, &inner); err != nil {
				return nil, &domain.ValidationError{Field: "payload", Message: "payload is not decodable as JSON"}
			}
			wire = inner
		}
	}

	if wire.DeviceStatus == nil {
		return nil, domain.NewValidationError("device_status")
	}
	if wire.DeviceData == "" {
		return nil, domain.NewValidationError("device_data")
	}

	return &TelemetryEnvelope{
		DeviceStatus:   *wire.DeviceStatus,
		RawData:        wire.DeviceData,
		DeclaredFamily: wire.DeviceType,
		DeclaredID:     wire.DeviceID,
		Topic:          wire.Topic,
		MessageID:      wire.MessageID,
	}, nil
}
