package plant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlNames_CountAndUniqueness(t *testing.T) {
	names := ControlNames()
	require.Len(t, names, 100)

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		_, dup := seen[name]
		require.False(t, dup, "duplicate control name %s", name)
		seen[name] = struct{}{}
	}
}

func TestOutputNames_CountAndUniqueness(t *testing.T) {
	names := OutputNames()
	require.Len(t, names, 62)

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		_, dup := seen[name]
		require.False(t, dup, "duplicate output name %s", name)
		seen[name] = struct{}{}
	}
}

func TestControlNames_StableOrder(t *testing.T) {
	first := ControlNames()
	second := ControlNames()
	assert.Equal(t, first, second)

	// Известные якоря порядка
	assert.Equal(t, "U_CT1", first[0])
	assert.Equal(t, "Ffan_CT1_01", first[6])
	assert.Equal(t, "CDWP01_rpm", first[18])
	assert.Equal(t, "CHWP01_rpm", first[24])
	assert.Equal(t, "CHI01", first[30])
	assert.Equal(t, "CHI01_CW1", first[36])
	assert.Equal(t, "CHI01_CHW1", first[60])
	assert.Equal(t, "CDWP01_ONOFF", first[84])
	assert.Equal(t, "CWP_activatedNumber", first[99])
}

func TestControlNames_ReturnsCopy(t *testing.T) {
	names := ControlNames()
	names[0] = "mutated"
	assert.Equal(t, "U_CT1", ControlNames()[0])
}

func TestIsControlIsOutput(t *testing.T) {
	assert.True(t, IsControl("CHI03"))
	assert.True(t, IsControl("Tchws_set_CHI"))
	assert.False(t, IsControl("Pchi1"))
	assert.False(t, IsControl("Head_required"))

	assert.True(t, IsOutput("P_Chillers_sum"))
	assert.True(t, IsOutput("VolumeFlowRate_cw"))
	assert.False(t, IsOutput("CHI01"))
}

func TestMetadata_CoversEveryName(t *testing.T) {
	inputs := InputsMetadata()
	require.Len(t, inputs, ControlCount())
	for _, name := range ControlNames() {
		md, ok := inputs[name]
		require.True(t, ok, "no metadata for input %s", name)
		assert.NotEmpty(t, md.Description)
	}

	outputs := OutputsMetadata()
	require.Len(t, outputs, OutputCount())
	for _, name := range OutputNames() {
		md, ok := outputs[name]
		require.True(t, ok, "no metadata for output %s", name)
		assert.NotEmpty(t, md.Description)
	}
}

func TestDefaultControls(t *testing.T) {
	frame := DefaultControls()
	require.Len(t, frame, 100)

	assert.Equal(t, 0.0, frame["CHI01"])
	assert.Equal(t, 0.0, frame["CWP_speedInput"])
	assert.Equal(t, DefaultChilledSupplySetpoint, frame["Tchws_set_CHI"])
	assert.Equal(t, DefaultHexSupplySetpoint, frame["Tchws_set_HEX"])
}
