package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTopic_PerDevice(t *testing.T) {
	g, id, ok := ParseTopic("devices/cpap-17/data")
	require.True(t, ok)
	require.Equal(t, "per-device", g.Name())
	require.Equal(t, "cpap-17", id)
	require.Equal(t, "devices/cpap-17/config/update", g.ReplyChannel("devices/cpap-17/data", id))
}

func TestParseTopic_LegacyFlat(t *testing.T) {
	g, id, ok := ParseTopic("esp32/data24")
	require.True(t, ok)
	require.Equal(t, "legacy-flat", g.Name())
	require.Equal(t, "24", id)
	// legacy devices listen on the topic they publish on
	require.Equal(t, "esp32/data24", g.ReplyChannel("esp32/data24", id))
}

func TestParseTopic_LegacyFlatBareID(t *testing.T) {
	_, id, ok := ParseTopic("esp32/42")
	require.True(t, ok)
	require.Equal(t, "42", id)
}

func TestParseTopic_LegacyFlatDataOnly(t *testing.T) {
	// "esp32/data" strips to empty, falls back to the segment itself
	_, id, ok := ParseTopic("esp32/data")
	require.True(t, ok)
	require.Equal(t, "data", id)
}

func TestParseTopic_NoMatch(t *testing.T) {
	_, _, ok := ParseTopic("sensors/foo/data")
	require.False(t, ok)

	_, _, ok = ParseTopic("devices")
	require.False(t, ok)

	_, _, ok = ParseTopic("")
	require.False(t, ok)
}

func TestConfigChannel_DefaultsToPerDevice(t *testing.T) {
	require.Equal(t, "devices/d1/config/update", ConfigChannel("", "d1"))
	require.Equal(t, "devices/d1/config/update", ConfigChannel("unknown/topic", "d1"))
	require.Equal(t, "esp32/data7", ConfigChannel("esp32/data7", "7"))
}
