package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/model"
)

type fakeObjectBackend struct{ name string }

func (f *fakeObjectBackend) UpdateObject(ctx context.Context, updated, store model.Referable, relPath []string, source Source) error {
	return nil
}

func (f *fakeObjectBackend) CommitObject(ctx context.Context, committed, store model.Referable, relPath []string, source Source) error {
	return nil
}

type fakeValueBackend struct{}

func (f *fakeValueBackend) UpdateValue(ctx context.Context, updated model.Referable, source Source) error {
	return nil
}

func (f *fakeValueBackend) CommitValue(ctx context.Context, committed model.Referable, source Source) error {
	return nil
}

type fakeSubscription struct{ stopped bool }

func (s *fakeSubscription) Stop() { s.stopped = true }

type fakeSubscribingBackend struct{ fakeValueBackend }

func (f *fakeSubscribingBackend) SubscribeValue(ctx context.Context, source Source, deliver func(payload []byte)) (Subscription, error) {
	return &fakeSubscription{}, nil
}

func TestRegistryResolvesByKind(t *testing.T) {
	reg := NewRegistry()
	ob := &fakeObjectBackend{name: "primary"}
	vb := &fakeValueBackend{}

	require.NoError(t, reg.Register(HTTP, ob))
	require.NoError(t, reg.Register(MQTT, vb))

	got, err := reg.ObjectBackend(HTTP)
	require.NoError(t, err)
	assert.Same(t, ob, got)

	gotValue, err := reg.ValueBackend(MQTT)
	require.NoError(t, err)
	assert.Same(t, vb, gotValue)
}

func TestRegistryUnknownProtocol(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.ObjectBackend(MODBUS)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownBackend))
	assert.Contains(t, err.Error(), "MODBUS")

	hints := errors.GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Contains(t, hints[0], "Registry.Register")
}

func TestRegistryKindMismatch(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(MQTT, &fakeValueBackend{}))
	require.NoError(t, reg.Register(COUCHDB, &fakeObjectBackend{}))

	_, err := reg.ObjectBackend(MQTT)
	assert.True(t, errors.Is(err, errors.ErrBackendKind))

	_, err = reg.ValueBackend(COUCHDB)
	assert.True(t, errors.Is(err, errors.ErrBackendKind))

	// A plain value backend without subscription support is also a kind
	// mismatch when a subscriber is requested.
	_, err = reg.ValueSubscriber(MQTT)
	assert.True(t, errors.Is(err, errors.ErrBackendKind))
}

func TestRegistryLastWriterWins(t *testing.T) {
	reg := NewRegistry()
	first := &fakeObjectBackend{name: "first"}
	second := &fakeObjectBackend{name: "second"}

	require.NoError(t, reg.Register(FILE, first))
	require.NoError(t, reg.Register(FILE, second))

	got, err := reg.ObjectBackend(FILE)
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestRegistryRejectsNonBackend(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(HTTP, "not a backend")
	require.Error(t, err)
	assert.True(t, errors.IsConstraint(err))
	assert.False(t, reg.Contains(HTTP))
}

func TestRegistryCustomProtocolString(t *testing.T) {
	reg := NewRegistry()
	sub := &fakeSubscribingBackend{}
	require.NoError(t, reg.Register(Protocol("WS"), sub))

	got, err := reg.ValueSubscriber(Protocol("WS"))
	require.NoError(t, err)
	assert.Same(t, sub, got)

	handle, err := got.SubscribeValue(context.Background(), Source{KeyProtocol: "WS"}, func([]byte) {})
	require.NoError(t, err)
	handle.Stop()
}

func TestRegistryDeregister(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(MOCK, &fakeValueBackend{}))

	assert.True(t, reg.Deregister(MOCK))
	assert.False(t, reg.Deregister(MOCK))

	_, err := reg.ValueBackend(MOCK)
	assert.True(t, errors.Is(err, errors.ErrUnknownBackend))
}

func TestRegistryProtocolsSorted(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(MQTT, &fakeValueBackend{}))
	require.NoError(t, reg.Register(COUCHDB, &fakeObjectBackend{}))
	require.NoError(t, reg.Register(HTTP, &fakeObjectBackend{}))

	assert.Equal(t, []Protocol{COUCHDB, HTTP, MQTT}, reg.Protocols())
}
