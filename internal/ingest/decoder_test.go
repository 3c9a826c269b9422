package ingest

import (
	"testing"

	"respira-data/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestSectionDecoder_CPAP(t *testing.T) {
	d := NewSectionDecoder()

	fields, err := d.Decode("S,1,0,G,4.5,6,H,7,I,8", domain.FamilyCPAP)
	require.NoError(t, err)
	require.Equal(t, "CPAP", fields["device_type"])

	sections := fields["sections"].(map[string][]any)
	require.Equal(t, []any{1.0, 0.0}, sections["S"])
	require.Equal(t, []any{4.5, 6.0}, sections["G"])
	require.NotContains(t, fields, "missing_sections")
}

func TestSectionDecoder_ModeMarkerTolerated(t *testing.T) {
	d := NewSectionDecoder()

	fields, err := d.Decode("VAPS_MODE,S,1,A,2,B,3,C,4,D,5,E,6,F,7", domain.FamilyBIPAP)
	require.NoError(t, err)
	require.NotContains(t, fields, "missing_sections")
}

func TestSectionDecoder_MissingSectionsRecorded(t *testing.T) {
	d := NewSectionDecoder()

	fields, err := d.Decode("S,1,G,2", domain.FamilyCPAP)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"H", "I"}, fields["missing_sections"])
}

func TestSectionDecoder_GarbageBeforeFirstSection(t *testing.T) {
	d := NewSectionDecoder()

	_, err := d.Decode("garbage,S,1", domain.FamilyCPAP)
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
}

func TestSectionDecoder_NoSections(t *testing.T) {
	d := NewSectionDecoder()

	_, err := d.Decode("CPAP", domain.FamilyCPAP)
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)

	_, err = d.Decode("", domain.FamilyCPAP)
	require.ErrorAs(t, err, &derr)
}

func TestSectionDecoder_NonNumericValuesKept(t *testing.T) {
	d := NewSectionDecoder()

	fields, err := d.Decode("S,ok,1", domain.FamilyCPAP)
	require.NoError(t, err)
	sections := fields["sections"].(map[string][]any)
	require.Equal(t, []any{"ok", 1.0}, sections["S"])
}
