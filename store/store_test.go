package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/model"
)

func TestAddAndLookup(t *testing.T) {
	s := New(nil)
	sm := model.NewSubmodel("https://example.com/ids/sm/pump-42")
	require.NoError(t, s.Add(sm))

	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains(sm))
	assert.True(t, s.ContainsID(sm.ID()))

	got, ok := s.Get(sm.ID())
	require.True(t, ok)
	assert.Same(t, sm, got)

	strict, err := s.GetIdentifiable(sm.ID())
	require.NoError(t, err)
	assert.Same(t, sm, strict)

	_, err = s.GetIdentifiable("https://example.com/ids/sm/unknown")
	assert.True(t, errors.IsNotFound(err))
}

func TestAddSameInstanceIsIdempotent(t *testing.T) {
	s := New(nil)
	sm := model.NewSubmodel("https://example.com/ids/sm/pump-42")
	require.NoError(t, s.Add(sm))
	require.NoError(t, s.Add(sm))
	assert.Equal(t, 1, s.Len())
}

func TestAddRejectsCollidingInstance(t *testing.T) {
	s := New(nil)
	first := model.NewSubmodel("https://example.com/ids/sm/pump-42")
	second := model.NewSubmodel("https://example.com/ids/sm/pump-42")
	require.NoError(t, s.Add(first))

	err := s.Add(second)
	assert.True(t, errors.IsConstraint(err))
	assert.Equal(t, 1, s.Len())
	got, _ := s.Get(first.ID())
	assert.Same(t, first, got, "collision leaves the stored instance in place")
}

func TestAddRejectsMissingIdentifier(t *testing.T) {
	s := New(nil)
	err := s.Add(model.NewSubmodel(""))
	assert.True(t, errors.IsConstraint(err))
	assert.Zero(t, s.Len())
}

func TestDiscardChecksIdentity(t *testing.T) {
	s := New(nil)
	sm := model.NewSubmodel("https://example.com/ids/sm/pump-42")
	require.NoError(t, s.Add(sm))

	stranger := model.NewSubmodel("https://example.com/ids/sm/pump-42")
	assert.True(t, errors.IsConstraint(s.Discard(stranger)))
	assert.True(t, s.Contains(sm))

	require.NoError(t, s.Discard(sm))
	assert.False(t, s.Contains(sm))
	assert.True(t, errors.IsNotFound(s.Discard(sm)))
}

func TestEachAndAll(t *testing.T) {
	s := New(nil)
	a := model.NewSubmodel("https://example.com/ids/sm/a")
	b := model.NewSubmodel("https://example.com/ids/sm/b")
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	assert.ElementsMatch(t, []model.Identifiable{a, b}, s.All())

	var visited int
	require.NoError(t, s.Each(func(model.Identifiable) bool {
		visited++
		return false
	}))
	assert.Equal(t, 1, visited, "Each stops when fn returns false")
}

func TestAddFrom(t *testing.T) {
	src := New(nil)
	require.NoError(t, src.Add(model.NewSubmodel("https://example.com/ids/sm/a")))
	require.NoError(t, src.Add(model.NewSubmodel("https://example.com/ids/sm/b")))

	dst := New(nil)
	require.NoError(t, dst.AddFrom(src))
	assert.Equal(t, 2, dst.Len())

	conflicting := New(nil)
	require.NoError(t, conflicting.Add(model.NewSubmodel("https://example.com/ids/sm/a")))
	err := conflicting.AddFrom(src)
	assert.True(t, errors.IsConstraint(err))
}

func TestSyncCounts(t *testing.T) {
	objA := model.NewSubmodel("https://example.com/ids/sm/a")
	objB := model.NewSubmodel("https://example.com/ids/sm/b")
	objB2 := model.NewSubmodel("https://example.com/ids/sm/b")
	objC := model.NewSubmodel("https://example.com/ids/sm/c")

	build := func() (*Store, *Store) {
		s := New(nil)
		require.NoError(t, s.Add(objA))
		require.NoError(t, s.Add(objB))
		other := New(nil)
		require.NoError(t, other.Add(objB2))
		require.NoError(t, other.Add(objC))
		return s, other
	}

	s, other := build()
	counts, err := s.Sync(other, true)
	require.NoError(t, err)
	assert.Equal(t, SyncCounts{Added: 1, Overwritten: 1}, counts)
	assert.Equal(t, 3, s.Len())
	got, _ := s.Get(objB.ID())
	assert.Same(t, objB2, got, "overwrite replaces the stored instance")

	// everything already matches instance-wise, so a second pass skips all
	counts, err = s.Sync(other, true)
	require.NoError(t, err)
	assert.Equal(t, SyncCounts{Skipped: 2}, counts)

	s, other = build()
	counts, err = s.Sync(other, false)
	require.NoError(t, err)
	assert.Equal(t, SyncCounts{Added: 1, Skipped: 1}, counts)
	got, _ = s.Get(objB.ID())
	assert.Same(t, objB, got, "without overwrite the stored instance stays")
}
