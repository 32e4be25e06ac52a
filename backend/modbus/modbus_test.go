package modbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/model"
)

func TestParseSpecNormalizesConventionalAddresses(t *testing.T) {
	spec, err := parseSpec(backend.Source{backend.KeyAddress: "40001"})
	require.NoError(t, err)
	assert.Equal(t, uint16(0), spec.address)
	assert.False(t, spec.input)
	assert.Equal(t, uint16(1), spec.quantity)
	assert.Equal(t, "uint16", spec.dataType)

	spec, err = parseSpec(backend.Source{
		backend.KeyAddress:  "30005",
		backend.KeyFunction: "input",
	})
	require.NoError(t, err)
	assert.Equal(t, uint16(4), spec.address)
	assert.True(t, spec.input)

	// Zero-based offsets pass through untouched.
	spec, err = parseSpec(backend.Source{backend.KeyAddress: "100"})
	require.NoError(t, err)
	assert.Equal(t, uint16(100), spec.address)
}

func TestParseSpecQuantityFollowsDataType(t *testing.T) {
	spec, err := parseSpec(backend.Source{
		backend.KeyAddress:  "40001",
		backend.KeyDataType: "float32",
	})
	require.NoError(t, err)
	assert.Equal(t, uint16(2), spec.quantity)

	spec, err = parseSpec(backend.Source{
		backend.KeyAddress:  "40001",
		backend.KeyQuantity: "2",
		backend.KeyDataType: "uint32",
	})
	require.NoError(t, err)
	assert.Equal(t, uint16(2), spec.quantity)

	_, err = parseSpec(backend.Source{
		backend.KeyAddress:  "40001",
		backend.KeyQuantity: "2",
		backend.KeyDataType: "uint16",
	})
	assert.True(t, errors.IsConstraint(err))
}

func TestParseSpecRejectsBadSources(t *testing.T) {
	_, err := parseSpec(backend.Source{backend.KeyFunction: "coil", backend.KeyAddress: "1"})
	assert.True(t, errors.IsConstraint(err))

	_, err = parseSpec(backend.Source{backend.KeyAddress: "1", backend.KeyDataType: "string"})
	assert.True(t, errors.IsConstraint(err))

	_, err = parseSpec(backend.Source{})
	assert.True(t, errors.IsConstraint(err))

	_, err = parseSpec(backend.Source{backend.KeyAddress: "70000"})
	assert.True(t, errors.IsConstraint(err))
}

func TestRegisterCodecRoundTrips(t *testing.T) {
	cases := []struct {
		dataType string
		value    string
	}{
		{"uint16", "512"},
		{"uint16", "0"},
		{"int16", "-42"},
		{"uint32", "70000"},
		{"float32", "3.14"},
		{"float32", "-0.5"},
	}
	for _, tc := range cases {
		raw, err := encodeRegisters(tc.value, tc.dataType)
		require.NoError(t, err, tc.value)

		got, err := decodeRegisters(raw, tc.dataType)
		require.NoError(t, err, tc.value)
		assert.Equal(t, tc.value, got, "%s as %s", tc.value, tc.dataType)
	}
}

func TestEncodeRejectsUnparsableValues(t *testing.T) {
	_, err := encodeRegisters("not-a-number", "uint16")
	require.Error(t, err)

	_, err = encodeRegisters("-1", "uint16")
	require.Error(t, err)

	_, err = encodeRegisters("99999", "int16")
	require.Error(t, err)
}

func TestDecodeRejectsShortReads(t *testing.T) {
	_, err := decodeRegisters([]byte{0x01}, "uint16")
	assert.True(t, errors.IsBackendUnavailable(err))

	_, err = decodeRegisters([]byte{0x01, 0x02}, "float32")
	assert.True(t, errors.IsBackendUnavailable(err))
}

func TestDeviceAddr(t *testing.T) {
	got, err := deviceAddr("modbus://plc.local")
	require.NoError(t, err)
	assert.Equal(t, "plc.local:502", got)

	got, err = deviceAddr("tcp://10.0.0.7:1502/")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7:1502", got)

	_, err = deviceAddr("")
	assert.True(t, errors.IsConstraint(err))
}

func TestCommitToInputRegistersIsRefused(t *testing.T) {
	b := New(Config{})
	prop := model.NewProperty("Speed", model.ValueTypeInt)
	prop.Value = "900"

	err := b.CommitValue(context.Background(), prop, backend.Source{
		backend.KeyBase:     "modbus://plc.local",
		backend.KeyAddress:  "30001",
		backend.KeyFunction: "input",
	})
	assert.True(t, errors.IsConstraint(err))
}

func TestUnreachableDeviceIsBackendUnavailable(t *testing.T) {
	b := New(Config{Timeout: 200 * time.Millisecond})
	prop := model.NewProperty("Speed", model.ValueTypeInt)

	err := b.UpdateValue(context.Background(), prop, backend.Source{
		backend.KeyBase:    "modbus://127.0.0.1:1",
		backend.KeyAddress: "40001",
	})
	require.Error(t, err)
	assert.True(t, errors.IsBackendUnavailable(err))
}
