package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinforge/aaskit/errors"
)

func TestValueStringScalarKinds(t *testing.T) {
	prop := NewProperty("Voltage", ValueTypeDouble)
	prop.Value = "230.5"
	got, err := ValueString(prop)
	require.NoError(t, err)
	assert.Equal(t, "230.5", got)

	file := NewFile("Manual", "application/pdf")
	file.Value = "/docs/manual.pdf"
	got, err = ValueString(file)
	require.NoError(t, err)
	assert.Equal(t, "/docs/manual.pdf", got)

	blob := NewBlob("Firmware", "application/octet-stream")
	blob.Value = []byte{0xde, 0xad, 0xbe, 0xef}
	got, err = ValueString(blob)
	require.NoError(t, err)
	assert.Equal(t, "3q2+7w==", got)

	mlp := NewMultiLanguageProperty("Label")
	mlp.Value = LangStringSet{"de": "Motor", "en": "engine"}
	got, err = ValueString(mlp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"de":"Motor","en":"engine"}`, got)
}

func TestSetValueStringAppliesInbound(t *testing.T) {
	prop := NewProperty("Voltage", ValueTypeDouble)
	require.NoError(t, SetValueString(prop, "231.0"))
	assert.Equal(t, "231.0", prop.Value)

	blob := NewBlob("Firmware", "application/octet-stream")
	require.NoError(t, SetValueString(blob, "3q2+7w=="))
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, blob.Value)

	err := SetValueString(blob, "not base64!!")
	require.Error(t, err)

	mlp := NewMultiLanguageProperty("Label")
	require.NoError(t, SetValueString(mlp, `{"en":"pump"}`))
	assert.Equal(t, "pump", mlp.Value["en"])

	err = SetValueString(mlp, "{broken")
	require.Error(t, err)
}

func TestValueStringUnsupportedKinds(t *testing.T) {
	_, err := ValueString(NewOperation("Calibrate"))
	assert.True(t, errors.Is(err, errors.ErrUnsupported))

	err = SetValueString(NewSubmodelElementCollection("Nameplate"), "x")
	assert.True(t, errors.Is(err, errors.ErrUnsupported))
}
