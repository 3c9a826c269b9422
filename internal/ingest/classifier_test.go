package ingest

import (
	"strings"
	"testing"

	"respira-data/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestClassify_DeclaredFieldsWin(t *testing.T) {
	env := &TelemetryEnvelope{
		DeclaredID:     "bipap-9",
		DeclaredFamily: "BIPAP",
		Topic:          "devices/other-id/data",
		RawData:        "CPAP,G,1,H,2,I,3", // content says CPAP, declaration wins
	}
	id, family := Classify(env)
	require.Equal(t, "bipap-9", id)
	require.Equal(t, domain.FamilyBIPAP, family)
}

func TestClassify_IDFromTopic(t *testing.T) {
	env := &TelemetryEnvelope{Topic: "devices/cpap-3/data", RawData: "S,1"}
	id, _ := Classify(env)
	require.Equal(t, "cpap-3", id)
}

func TestClassify_SynthesizedID(t *testing.T) {
	env := &TelemetryEnvelope{RawData: "S,1"}
	id, _ := Classify(env)
	require.True(t, strings.HasPrefix(id, "device_"))
}

func TestClassify_InvalidDeclaredFamilySniffs(t *testing.T) {
	env := &TelemetryEnvelope{DeclaredFamily: "VENTILATOR", RawData: "CPAP,G,1,H,2,I,3"}
	_, family := Classify(env)
	require.Equal(t, domain.FamilyCPAP, family)
}

func TestSniffFamily_MarkerPrecedence(t *testing.T) {
	// BIPAP markers are checked before CPAP markers
	require.Equal(t, domain.FamilyBIPAP, sniffFamily("BIPAP,CPAP,S,1"))
	require.Equal(t, domain.FamilyBIPAP, sniffFamily("VAPS_MODE,S,1,A,2"))
	require.Equal(t, domain.FamilyCPAP, sniffFamily("CPAP,S,1"))
	require.Equal(t, domain.FamilyCPAP, sniffFamily("MANUALMODE,S,1"))
}

func TestSniffFamily_CPAPSections(t *testing.T) {
	require.Equal(t, domain.FamilyCPAP, sniffFamily("S,1,G,2,H,3,I,4"))
}

func TestSniffFamily_SectionCount(t *testing.T) {
	// seven sections, BIPAP shape
	require.Equal(t, domain.FamilyBIPAP, sniffFamily("S,1,A,2,B,3,C,4,D,5,E,6,F,7"))
	// two sections without the full G/H/I trio, CPAP shape
	require.Equal(t, domain.FamilyCPAP, sniffFamily("S,1,2,3,J,4"))
}

func TestSniffFamily_FewOrNoMarkersIsCPAP(t *testing.T) {
	// a bare section letter decodes fine and must land on CPAP, not the
	// BIPAP default
	require.Equal(t, domain.FamilyCPAP, sniffFamily("S"))
	require.Equal(t, domain.FamilyCPAP, sniffFamily("nothing recognizable"))
}
