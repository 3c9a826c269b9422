package ingest

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"respira-data/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTelemetry_FlatBody(t *testing.T) {
	body := []byte(`{"device_status":1,"device_data":"S,1,2,G,3","device_type":"CPAP","device_id":"cpap-01","topic":"devices/cpap-01/data","messageId":"m-1"}`)

	env, err := NormalizeTelemetry(body)
	require.NoError(t, err)
	require.Equal(t, 1, env.DeviceStatus)
	require.Equal(t, "S,1,2,G,3", env.RawData)
	require.Equal(t, "CPAP", env.DeclaredFamily)
	require.Equal(t, "cpap-01", env.DeclaredID)
	require.Equal(t, "devices/cpap-01/data", env.Topic)
	require.Equal(t, "m-1", env.MessageID)
}

func TestNormalizeTelemetry_Base64Payload(t *testing.T) {
	inner := `{"device_status":0,"device_data":"S,1,G,2,H,3,I,4","device_id":"cpap-02"}`
	wrapped, err := json.Marshal(map[string]string{
		"payload": base64.StdEncoding.EncodeToString([]byte(inner)),
	})
	require.NoError(t, err)

	env, err := NormalizeTelemetry(wrapped)
	require.NoError(t, err)
	require.Equal(t, 0, env.DeviceStatus)
	require.Equal(t, "cpap-02", env.DeclaredID)
}

func TestNormalizeTelemetry_StringPayloadPlainJSON(t *testing.T) {
	// payload as a JSON-encoded string that is NOT base64
	wrapped, err := json.Marshal(map[string]string{
		"payload": `{"device_status":2,"device_data":"S,9"}`,
	})
	require.NoError(t, err)

	env, err := NormalizeTelemetry(wrapped)
	require.NoError(t, err)
	require.Equal(t, 2, env.DeviceStatus)
	require.Equal(t, "S,9", env.RawData)
}

func TestNormalizeTelemetry_ObjectPayload(t *testing.T) {
	body := []byte(`{"payload":{"device_status":1,"device_data":"S,1","device_id":"d-3"}}`)

	env, err := NormalizeTelemetry(body)
	require.NoError(t, err)
	require.Equal(t, "d-3", env.DeclaredID)
}

func TestNormalizeTelemetry_StatusZeroIsValid(t *testing.T) {
	env, err := NormalizeTelemetry([]byte(`{"device_status":0,"device_data":"S,1"}`))
	require.NoError(t, err)
	require.Equal(t, 0, env.DeviceStatus)
}

func TestNormalizeTelemetry_MissingStatus(t *testing.T) {
	_, err := NormalizeTelemetry([]byte(`{"device_data":"S,1"}`))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "device_status", verr.Field)
}

func TestNormalizeTelemetry_MissingData(t *testing.T) {
	_, err := NormalizeTelemetry([]byte(`{"device_status":1}`))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "device_data", verr.Field)
}

func TestNormalizeTelemetry_UndecodablePayload(t *testing.T) {
	_, err := NormalizeTelemetry([]byte(`{"payload":"not json and not base64!!"}`))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "payload", verr.Field)
}

func TestNormalizeTelemetry_InvalidBody(t *testing.T) {
	_, err := NormalizeTelemetry([]byte(`not json`))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}
