package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/model"
)

// pumpFixture builds a three-level tree: submodel, collection, property.
func pumpFixture(t *testing.T) (*model.Submodel, *model.SubmodelElementCollection, *model.Property) {
	t.Helper()
	sm := model.NewSubmodel("https://example.com/ids/sm/pump-42")
	engine := model.NewSubmodelElementCollection("Engine")
	temp := model.NewProperty("Temperature", model.ValueTypeDouble)
	require.NoError(t, engine.Add(temp))
	require.NoError(t, sm.Add(engine))
	return sm, engine, temp
}

func TestAddSourceAndLookup(t *testing.T) {
	s := New(nil)
	sm, _, _ := pumpFixture(t)

	require.NoError(t, s.AddSource(sm, backend.HTTP, backend.Source{
		backend.KeyBase: "http://plc.local/api",
	}))

	src, ok := s.Source(sm, backend.HTTP)
	require.True(t, ok)
	assert.Equal(t, "http://plc.local/api", src[backend.KeyBase])
	assert.Equal(t, string(backend.HTTP), src[backend.KeyProtocol],
		"stored sources name their protocol")

	_, ok = s.Source(sm, backend.MQTT)
	assert.False(t, ok, "other protocols stay unmapped")
}

func TestSourceReturnsACopy(t *testing.T) {
	s := New(nil)
	sm, _, _ := pumpFixture(t)
	require.NoError(t, s.AddSource(sm, backend.HTTP, backend.Source{
		backend.KeyBase: "http://plc.local/api",
	}))

	src, ok := s.Source(sm, backend.HTTP)
	require.True(t, ok)
	src[backend.KeyBase] = "http://evil.local"

	again, ok := s.Source(sm, backend.HTTP)
	require.True(t, ok)
	assert.Equal(t, "http://plc.local/api", again[backend.KeyBase])
}

func TestAddSourceRequiresAnchoredElement(t *testing.T) {
	s := New(nil)
	loose := model.NewProperty("Voltage", model.ValueTypeString)
	err := s.AddSource(loose, backend.HTTP, backend.Source{backend.KeyBase: "http://plc.local"})
	assert.Error(t, err, "detached elements have no structural path")
}

func TestEmptySourceUnmaps(t *testing.T) {
	s := New(nil)
	sm, _, _ := pumpFixture(t)
	require.NoError(t, s.AddSource(sm, backend.HTTP, backend.Source{backend.KeyBase: "http://plc.local"}))
	require.NoError(t, s.AddSource(sm, backend.MQTT, backend.Source{
		backend.KeyBase:  "broker.local:1883",
		backend.KeyTopic: "plant/pump-42",
	}))

	require.NoError(t, s.AddSource(sm, backend.HTTP, nil))

	_, ok := s.Source(sm, backend.HTTP)
	assert.False(t, ok)
	_, ok = s.Source(sm, backend.MQTT)
	assert.True(t, ok, "unmapping one protocol leaves the others alone")
}

func TestFindSourceWalksAncestors(t *testing.T) {
	s := New(nil)
	sm, engine, temp := pumpFixture(t)
	require.NoError(t, s.AddSource(sm, backend.MOCK, backend.Source{backend.KeyBase: "mock://x"}))

	owner, relPath, ok := s.FindSource(temp, backend.MOCK)
	require.True(t, ok)
	assert.Same(t, sm, owner)
	assert.Equal(t, []string{"Engine", "Temperature"}, relPath)

	owner, relPath, ok = s.FindSource(engine, backend.MOCK)
	require.True(t, ok)
	assert.Same(t, sm, owner)
	assert.Equal(t, []string{"Engine"}, relPath)
}

func TestFindSourceIsSelfInclusive(t *testing.T) {
	s := New(nil)
	_, engine, _ := pumpFixture(t)
	require.NoError(t, s.AddSource(engine, backend.MOCK, backend.Source{backend.KeyBase: "mock://x"}))

	owner, relPath, ok := s.FindSource(engine, backend.MOCK)
	require.True(t, ok)
	assert.Same(t, engine, owner)
	assert.Empty(t, relPath)
}

func TestFindSourceNearestAncestorWins(t *testing.T) {
	s := New(nil)
	sm, engine, temp := pumpFixture(t)
	require.NoError(t, s.AddSource(sm, backend.MOCK, backend.Source{backend.KeyBase: "mock://root"}))
	require.NoError(t, s.AddSource(engine, backend.MOCK, backend.Source{backend.KeyBase: "mock://mid"}))

	owner, relPath, ok := s.FindSource(temp, backend.MOCK)
	require.True(t, ok)
	assert.Same(t, engine, owner)
	assert.Equal(t, []string{"Temperature"}, relPath)
}

func TestFindSourceIsProtocolSpecific(t *testing.T) {
	s := New(nil)
	sm, _, temp := pumpFixture(t)
	require.NoError(t, s.AddSource(sm, backend.HTTP, backend.Source{backend.KeyBase: "http://plc.local"}))

	owner, relPath, ok := s.FindSource(temp, backend.MQTT)
	assert.False(t, ok)
	assert.Nil(t, owner)
	assert.Nil(t, relPath)
}

func TestFirstAvailableProtocolFollowsInsertionOrder(t *testing.T) {
	s := New(nil)
	sm, _, _ := pumpFixture(t)
	require.NoError(t, s.AddSource(sm, backend.MQTT, backend.Source{
		backend.KeyBase:  "broker.local:1883",
		backend.KeyTopic: "plant/pump-42",
	}))
	require.NoError(t, s.AddSource(sm, backend.HTTP, backend.Source{backend.KeyBase: "http://plc.local"}))

	hash, err := structuralHash(sm)
	require.NoError(t, err)
	p, _, ok := s.mapping.first(hash)
	require.True(t, ok)
	assert.Equal(t, backend.MQTT, p)

	// dropping the earliest mapping promotes the next one
	require.NoError(t, s.AddSource(sm, backend.MQTT, nil))
	p, _, ok = s.mapping.first(hash)
	require.True(t, ok)
	assert.Equal(t, backend.HTTP, p)
}

func TestProtocolsListsRegistrationOrder(t *testing.T) {
	s := New(nil)
	sm, engine, _ := pumpFixture(t)

	assert.Nil(t, s.Protocols(sm), "unmapped elements have no protocols")

	require.NoError(t, s.AddSource(sm, backend.MQTT, backend.Source{
		backend.KeyBase:  "broker.local:1883",
		backend.KeyTopic: "plant/pump-42",
	}))
	require.NoError(t, s.AddSource(sm, backend.HTTP, backend.Source{backend.KeyBase: "http://plc.local"}))

	assert.Equal(t, []backend.Protocol{backend.MQTT, backend.HTTP}, s.Protocols(sm))
	assert.Nil(t, s.Protocols(engine), "mappings do not leak to children")

	require.NoError(t, s.AddSource(sm, backend.MQTT, nil))
	assert.Equal(t, []backend.Protocol{backend.HTTP}, s.Protocols(sm))
}
