package ingest

import "strings"

// TopicGrammar is one named topic convention devices publish under. Each
// grammar knows how to recover the device id from a topic and which channel
// the device listens on for config updates. Adding a convention means adding
// a grammar, not editing existing branches.
type TopicGrammar interface {
	// Name tags the grammar for logs.
	Name() string
	// DeviceID extracts the device id from the already-split topic segments.
	DeviceID(segments []string) string
	// ReplyChannel derives the channel a config push for this device goes to.
	ReplyChannel(topic string, deviceID string) string
}

// perDeviceGrammar: devices/{device_id}/data. Config replies go to the
// device's dedicated config channel.
type perDeviceGrammar struct{}

func (perDeviceGrammar) Name() string { return "per-device" }

func (perDeviceGrammar) DeviceID(segments []string) string {
	return segments[1]
}

func (perDeviceGrammar) ReplyChannel(_ string, deviceID string) string {
	return "devices/" + deviceID + "/config/update"
}

// legacyFlatGrammar: esp32/data{id} or esp32/{id}. These devices subscribe
// on the same topic they publish on, so config replies reuse the inbound
// topic. (An earlier esp32/config{id} convention existed in the field but
// was never shipped to hardware; it is intentionally not supported.)
type legacyFlatGrammar struct{}

func (legacyFlatGrammar) Name() string { return "legacy-flat" }

func (legacyFlatGrammar) DeviceID(segments []string) string {
	// esp32/data24 -> 24
	id := strings.Replace(segments[1], "data", "", 1)
	if id == "" {
		id = segments[1]
	}
	if id == "" {
		id = "esp32"
	}
	return id
}

func (legacyFlatGrammar) ReplyChannel(topic string, _ string) string {
	return topic
}

// grammars keyed by the first topic segment.
var grammars = map[string]TopicGrammar{
	"devices": perDeviceGrammar{},
	"esp32":   legacyFlatGrammar{},
}

// ParseTopic matches a routing topic against the known grammar variants.
// Returns the matching grammar and the recovered device id, or ok=false when
// no convention matches.
func ParseTopic(topic string) (TopicGrammar, string, bool) {
	if topic == "" {
		return nil, "", false
	}
	segments := strings.Split(topic, "/")
	if len(segments) < 2 {
		return nil, "", false
	}
	g, ok := grammars[segments[0]]
	if !ok {
		return nil, "", false
	}
	return g, g.DeviceID(segments), true
}

// ConfigChannel picks the channel a pending config for deviceID should be
// published to. When the inbound topic matches a grammar, that grammar's
// reply rule applies; otherwise the per-device convention is the default.
func ConfigChannel(topic string, deviceID string) string {
	if g, _, ok := ParseTopic(topic); ok {
		return g.ReplyChannel(topic, deviceID)
	}
	return perDeviceGrammar{}.ReplyChannel(topic, deviceID)
}
