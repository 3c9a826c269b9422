package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"respira-data/internal/domain"
)

// Decoder turns a raw device data string into structured fields. The grammar
// differs per device family, which is why classification must happen first.
type Decoder interface {
	Decode(raw string, family domain.DeviceFamily) (map[string]any, error)
}

// DecodeError marks a payload the decoder rejected. Terminal: a malformed
// payload will not self-correct on retry, so handlers map it to HTTP 400.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to parse device data: %s", e.Reason)
}

// expected data sections per family (S is the shared status section)
var familySections = map[domain.DeviceFamily][]string{
	domain.FamilyCPAP:  {"S", "G", "H", "I"},
	domain.FamilyBIPAP: {"S", "A", "B", "C", "D", "E", "F"},
}

// SectionDecoder decodes the comma-separated section format both families
// report in: a single uppercase letter opens a section, everything up to the
// next section letter is that section's values.
type SectionDecoder struct{}

func NewSectionDecoder() *SectionDecoder { return &SectionDecoder{} }

var _ Decoder = (*SectionDecoder)(nil)

func (d *SectionDecoder) Decode(raw string, family domain.DeviceFamily) (map[string]any, error) {
	sections := map[string][]any{}
	current := ""
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if len(tok) == 1 && tok[0] >= 'A' && tok[0] <= 'Z' {
			current = tok
			if _, ok := sections[current]; !ok {
				sections[current] = []any{}
			}
			continue
		}
		if current == "" {
			// mode markers (VAPS_MODE, MANUALMODE, ...) before the first
			// section are tolerated; anything else is garbage
			if strings.HasSuffix(tok, "_MODE") || strings.HasSuffix(tok, "MODE") ||
				tok == string(domain.FamilyCPAP) || tok == string(domain.FamilyBIPAP) {
				continue
			}
			return nil, &DecodeError{Reason: fmt.Sprintf("unexpected token %q before first section", tok)}
		}
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			sections[current] = append(sections[current], f)
		} else {
			sections[current] = append(sections[current], tok)
		}
	}

	if len(sections) == 0 {
		return nil, &DecodeError{Reason: "no recognizable data sections"}
	}

	missing := []string{}
	for _, name := range familySections[family] {
		if _, ok := sections[name]; !ok {
			missing = append(missing, name)
		}
	}

	fields := map[string]any{
		"device_type": string(family),
		"sections":    sections,
	}
	if len(missing) > 0 {
		// partial frames happen on flaky links; record what is absent
		// instead of rejecting data that was already transmitted
		fields["missing_sections"] = missing
	}
	return fields, nil
}
