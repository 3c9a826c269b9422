package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"respira-data/internal/domain"
)

// familyRule is one content-sniffing predicate. Rules are evaluated in
// order; the first match wins.
type familyRule struct {
	name   string
	match  func(raw string) bool
	family domain.DeviceFamily
}

var sectionMarker = regexp.MustCompile(`[A-Z],`)

// familyRules resolves the device family from the raw data string.
// BIPAP-unique markers are checked before CPAP markers: CPAP markers can
// appear as substrings of ambiguous data while the BIPAP markers are
// distinctive. Reordering these silently misclassifies devices.
var familyRules = []familyRule{
	{"vaps-marker", func(raw string) bool { return strings.Contains(raw, "VAPS_MODE") }, domain.FamilyBIPAP},
	{"bipap-marker", func(raw string) bool { return strings.Contains(raw, "BIPAP") }, domain.FamilyBIPAP},
	{"cpap-marker", func(raw string) bool { return strings.Contains(raw, "CPAP") }, domain.FamilyCPAP},
	{"manual-mode-marker", func(raw string) bool { return strings.Contains(raw, "MANUALMODE") }, domain.FamilyCPAP},
	// CPAP data carries G, H, I sections; BIPAP carries A through F
	{"cpap-sections", func(raw string) bool {
		return strings.Contains(raw, "G,") && strings.Contains(raw, "H,") && strings.Contains(raw, "I,")
	}, domain.FamilyCPAP},
	// structural fallback: CPAP typically has 4 sections (S,G,H,I), BIPAP 7.
	// More than 5 markers means BIPAP, anything else (zero included) CPAP.
	{"section-count-high", func(raw string) bool {
		return len(sectionMarker.FindAllString(raw, -1)) > 5
	}, domain.FamilyBIPAP},
	{"section-count-low", func(raw string) bool {
		return len(sectionMarker.FindAllString(raw, -1)) <= 5
	}, domain.FamilyCPAP},
}

// Classify resolves a fully usable (deviceID, family) pair for an envelope.
// It is a total function: ambiguous input gets deterministic defaults so
// downstream persistence is never blocked by classification.
func Classify(env *TelemetryEnvelope) (string, domain.DeviceFamily) {
	deviceID := env.DeclaredID
	if deviceID == "" {
		if _, id, ok := ParseTopic(env.Topic); ok {
			deviceID = id
		}
	}
	if deviceID == "" {
		// synthesize so the record is still stored and traceable
		deviceID = fmt.Sprintf("device_%d", time.Now().UnixMilli())
	}

	family := domain.DeviceFamily(env.DeclaredFamily)
	if !family.Valid() {
		family = sniffFamily(env.RawData)
	}

	return deviceID, family
}

func sniffFamily(raw string) domain.DeviceFamily {
	for _, rule := range familyRules {
		if rule.match(raw) {
			return rule.family
		}
	}
	return domain.FamilyBIPAP
}
