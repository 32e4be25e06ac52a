package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstruction(t *testing.T) {
	assert.EqualError(t, New("empty identifier"), "empty identifier")
	assert.EqualError(t, Newf("no backend for protocol %d", 3), "no backend for protocol 3")
}

func TestWrapPreservesSentinel(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "submodel lookup")

	assert.Contains(t, wrapped.Error(), "submodel lookup")
	assert.Contains(t, wrapped.Error(), "not found")
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.False(t, Is(wrapped, ErrConstraint))
}

func TestWrapfPreservesSentinel(t *testing.T) {
	wrapped := Wrapf(ErrConstraint, "id short %q already present", "Voltage")

	assert.Contains(t, wrapped.Error(), `id short "Voltage" already present`)
	assert.True(t, Is(wrapped, ErrConstraint))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrConstraint,
		ErrUnknownBackend,
		ErrBackendKind,
		ErrBackendUnavailable,
		ErrUnsupported,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				assert.True(t, Is(a, b))
				continue
			}
			assert.False(t, Is(a, b), "%v must not match %v", a, b)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(Wrap(ErrNotFound, "no identifiable")))
	assert.True(t, IsNotFound(NewNotFound("no submodel with id %q", "urn:x")))
	assert.False(t, IsNotFound(ErrConstraint))
	assert.False(t, IsNotFound(New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestIsConstraint(t *testing.T) {
	assert.True(t, IsConstraint(ErrConstraint))
	assert.True(t, IsConstraint(Wrap(ErrConstraint, "duplicate")))
	assert.True(t, IsConstraint(NewConstraint("duplicate id short %q", "Temp")))
	assert.False(t, IsConstraint(ErrNotFound))
	assert.False(t, IsConstraint(nil))
}

func TestIsBackendUnavailable(t *testing.T) {
	assert.True(t, IsBackendUnavailable(ErrBackendUnavailable))
	assert.True(t, IsBackendUnavailable(Wrapf(ErrBackendUnavailable, "GET %s", "http://plant/val")))
	assert.False(t, IsBackendUnavailable(ErrUnknownBackend))
	assert.False(t, IsBackendUnavailable(nil))
}

func TestNewNotFoundMessage(t *testing.T) {
	err := NewNotFound("no source for hash %s", "ab12")

	assert.Contains(t, err.Error(), "no source for hash ab12")
	assert.Contains(t, err.Error(), "not found")
	assert.True(t, Is(err, ErrNotFound))
}

func TestNewConstraintMessage(t *testing.T) {
	err := NewConstraint("identifier %q collides", "urn:sm:1")

	assert.Contains(t, err.Error(), `identifier "urn:sm:1" collides`)
	assert.True(t, Is(err, ErrConstraint))
}

func TestIsAnyAcrossSentinels(t *testing.T) {
	err := Wrap(ErrBackendKind, "MQTT registered as value backend only")

	assert.True(t, IsAny(err, ErrUnknownBackend, ErrBackendKind))
	assert.False(t, IsAny(err, ErrNotFound, ErrConstraint))
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

func TestAsReachesThroughWrapping(t *testing.T) {
	wrapped := Wrap(&statusError{code: 503}, "fetching submodel value")

	var sErr *statusError
	require.True(t, As(wrapped, &sErr))
	assert.Equal(t, 503, sErr.code)
}

func TestHintsAndDetails(t *testing.T) {
	err := Wrap(ErrBackendUnavailable, "no broker at tcp://plant:1883")
	err = WithHintf(err, "is the broker running on %s?", "plant")
	err = WithDetail(err, "subscription topic: shells/+/temperature")

	assert.Equal(t, []string{"is the broker running on plant?"}, GetAllHints(err))
	assert.Equal(t, []string{"subscription topic: shells/+/temperature"}, GetAllDetails(err))
}

func TestVerboseFormatCarriesStack(t *testing.T) {
	err := Newf("decoding row %d", 7)

	assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")
}

func TestUnwrapLayers(t *testing.T) {
	err := Wrap(Wrap(ErrBackendUnavailable, "middle"), "top")

	require.NotNil(t, Unwrap(err))
	assert.True(t, Is(UnwrapAll(err), ErrBackendUnavailable))
}

func TestNilPassthrough(t *testing.T) {
	for _, err := range []error{
		Wrap(nil, "update"),
		Wrapf(nil, "commit %s", "HTTP"),
		WithStack(nil),
		WithHint(nil, "hint"),
		WithDetail(nil, "detail"),
	} {
		assert.NoError(t, err)
	}
}

func TestChainedContextSurvivesWrapping(t *testing.T) {
	err := Wrap(ErrBackendUnavailable, "dialing broker")
	err = WithHint(err, "check the broker address in aaskit.toml")
	err = WithDetail(err, "tcp://broker:1883")
	err = Wrapf(err, "value update for %s", "Voltage")

	assert.True(t, IsBackendUnavailable(err))
	assert.Contains(t, err.Error(), "value update for Voltage")
	assert.Contains(t, err.Error(), "dialing broker")
	assert.Contains(t, GetAllHints(err), "check the broker address in aaskit.toml")
	assert.Contains(t, GetAllDetails(err), "tcp://broker:1883")
}

func ExampleNewNotFound() {
	err := NewNotFound("no identifiable with id %q", "urn:plant:sm1")
	fmt.Println(IsNotFound(err))
	// Output: true
}

func ExampleWrap() {
	err := Wrap(New("connection refused"), "reaching CouchDB at plant-db:5984")
	fmt.Println(err)
	// Output: reaching CouchDB at plant-db:5984: connection refused
}
