package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinforge/aaskit/errors"
)

func TestAddRegistersMemberUnderParent(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	speed := NewProperty("RotationSpeed", ValueTypeInt)

	require.NoError(t, sm.Add(speed))

	assert.Same(t, sm, speed.Parent())
	got, err := sm.Elements().Get(AttrIDShort, "RotationSpeed")
	require.NoError(t, err)
	assert.Same(t, speed, got)
	assert.Equal(t, 1, sm.Elements().Len())
}

func TestAddRequiresIDShort(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	unnamed := NewProperty("", ValueTypeString)

	err := sm.Add(unnamed)

	require.Error(t, err)
	assert.True(t, errors.IsConstraint(err))
	assert.Nil(t, unnamed.Parent())
}

func TestAddDuplicateIDShortFailsWithoutSideEffects(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	voltage := NewProperty("Voltage", ValueTypeDouble)
	require.NoError(t, sm.Add(voltage))

	// id-shorts compare case-insensitively
	dup := NewProperty("VOLTAGE", ValueTypeDouble)
	err := sm.Add(dup)

	require.Error(t, err)
	assert.True(t, errors.IsConstraint(err))
	assert.Nil(t, dup.Parent())
	assert.Equal(t, 1, sm.Elements().Len())

	got, err := sm.Elements().Get(AttrIDShort, "voltage")
	require.NoError(t, err)
	assert.Same(t, voltage, got)
}

func TestAddRejectsMemberOfAnotherNamespace(t *testing.T) {
	left := NewSubmodel("https://example.com/ids/sm/left")
	right := NewSubmodel("https://example.com/ids/sm/right")
	temp := NewProperty("Temperature", ValueTypeDouble)
	require.NoError(t, left.Add(temp))

	err := right.Add(temp)

	require.Error(t, err)
	assert.True(t, errors.IsConstraint(err))
	assert.Same(t, left, temp.Parent())
	assert.Equal(t, 0, right.Elements().Len())
}

func TestReAddSameInstanceFails(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	temp := NewProperty("Temperature", ValueTypeDouble)
	require.NoError(t, sm.Add(temp))

	err := sm.Add(temp)

	require.Error(t, err)
	assert.True(t, errors.IsConstraint(err))
	assert.Same(t, sm, temp.Parent())
	assert.Equal(t, 1, sm.Elements().Len())
}

func TestRemoveDetachesMember(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	temp := NewProperty("Temperature", ValueTypeDouble)
	require.NoError(t, sm.Add(temp))

	require.NoError(t, sm.Elements().Remove(temp))

	assert.Nil(t, temp.Parent())
	assert.Equal(t, 0, sm.Elements().Len())
	_, err := sm.Elements().Get(AttrIDShort, "Temperature")
	assert.True(t, errors.IsNotFound(err))

	err = sm.Elements().Remove(temp)
	assert.True(t, errors.IsNotFound(err))
}

func TestRemoveForeignInstanceFails(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	stored := NewProperty("Temperature", ValueTypeDouble)
	require.NoError(t, sm.Add(stored))

	// same id-short, different object: identity mismatch, nothing removed
	imposter := NewProperty("Temperature", ValueTypeDouble)
	err := sm.Elements().Remove(imposter)

	assert.True(t, errors.IsNotFound(err))
	assert.True(t, sm.Elements().Contains(stored))
}

func TestRemoveByID(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	temp := NewProperty("Temperature", ValueTypeDouble)
	require.NoError(t, sm.Add(temp))

	require.NoError(t, sm.Elements().RemoveByID(AttrIDShort, "temperature"))
	assert.Nil(t, temp.Parent())

	err := sm.Elements().RemoveByID(AttrIDShort, "Temperature")
	assert.True(t, errors.IsNotFound(err))
}

func TestIDShortFrozenWhileAttached(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	speed := NewProperty("RotationSpeed", ValueTypeInt)
	require.NoError(t, sm.Add(speed))

	err := speed.SetIDShort("Rpm")
	require.Error(t, err)
	assert.True(t, errors.IsConstraint(err))
	assert.Equal(t, "RotationSpeed", speed.IDShort())

	require.NoError(t, sm.Elements().Remove(speed))
	require.NoError(t, speed.SetIDShort("Rpm"))
	assert.Equal(t, "Rpm", speed.IDShort())
}

func TestGetOrDefault(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	fallback := NewProperty("Fallback", ValueTypeString)

	got := sm.Elements().GetOrDefault(AttrIDShort, "Missing", fallback)

	assert.Same(t, fallback, got)
}

func TestContains(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	voltage := NewProperty("Voltage", ValueTypeDouble)
	require.NoError(t, sm.Add(voltage))

	assert.True(t, sm.Elements().Contains(voltage))
	assert.False(t, sm.Elements().Contains(NewProperty("Voltage", ValueTypeDouble)))
	assert.True(t, sm.Elements().ContainsValue(AttrIDShort, "volTAGE"))
	assert.False(t, sm.Elements().ContainsValue(AttrIDShort, "Current"))
}

func TestEachStopsEarly(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	require.NoError(t, sm.Add(NewProperty("A", ValueTypeString)))
	require.NoError(t, sm.Add(NewProperty("B", ValueTypeString)))
	require.NoError(t, sm.Add(NewProperty("C", ValueTypeString)))

	var seen []string
	sm.Elements().Each(func(e SubmodelElement) bool {
		seen = append(seen, e.IDShort())
		return len(seen) < 2
	})

	assert.Equal(t, []string{"A", "B"}, seen)
}

func TestClearDetachesEveryMember(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	a := NewProperty("A", ValueTypeString)
	b := NewProperty("B", ValueTypeString)
	require.NoError(t, sm.Add(a))
	require.NoError(t, sm.Add(b))

	sm.Elements().Clear()

	assert.Equal(t, 0, sm.Elements().Len())
	assert.Nil(t, a.Parent())
	assert.Nil(t, b.Parent())
}

func TestNamespaceUniquenessSpansSiblingSets(t *testing.T) {
	// input and output variables are separate sets of one operation, yet
	// share a single id-short namespace
	op := NewOperation("Calibrate")
	target := NewProperty("Target", ValueTypeDouble)
	require.NoError(t, op.InputVariables().Add(target))

	err := op.OutputVariables().Add(NewProperty("Target", ValueTypeDouble))

	require.Error(t, err)
	assert.True(t, errors.IsConstraint(err))
	assert.True(t, op.InputVariables().ContainsValue(AttrIDShort, "Target"))
	assert.False(t, op.OutputVariables().ContainsValue(AttrIDShort, "Target"))
}

func TestQualifierTypesAreCaseSensitive(t *testing.T) {
	pressure := NewProperty("Pressure", ValueTypeDouble)
	require.NoError(t, pressure.Qualifiers().Add(NewQualifier("Max", ValueTypeDouble, "10.0")))
	require.NoError(t, pressure.Qualifiers().Add(NewQualifier("max", ValueTypeDouble, "9.5")))

	err := pressure.Qualifiers().Add(NewQualifier("Max", ValueTypeDouble, "11.0"))
	require.Error(t, err)
	assert.True(t, errors.IsConstraint(err))

	q, err := pressure.GetQualifier("max")
	require.NoError(t, err)
	assert.Equal(t, "9.5", q.Value)
}

func TestQualifierTypesAndIDShortsDoNotCollide(t *testing.T) {
	// a qualifier type may equal an element id-short: different attributes
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	require.NoError(t, sm.Add(NewProperty("Limit", ValueTypeDouble)))
	require.NoError(t, sm.Qualifiers().Add(NewQualifier("Limit", ValueTypeString, "hard")))

	assert.True(t, sm.Elements().ContainsValue(AttrIDShort, "Limit"))
	q, err := sm.GetQualifier("Limit")
	require.NoError(t, err)
	assert.Equal(t, "hard", q.Value)
}

func TestBulkConstructionRollsBack(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	a := NewProperty("Phase", ValueTypeInt)
	b := NewProperty("PHASE", ValueTypeInt)

	set, err := NewNamespaceSet[SubmodelElement](sm, []AttrSpec[SubmodelElement]{
		{Name: AttrIDShort, Get: SubmodelElement.IDShort},
	}, a, b)

	require.Error(t, err)
	assert.Nil(t, set)
	assert.Nil(t, a.Parent())
	assert.Nil(t, b.Parent())
}

func TestNewNamespaceSetRequiresParentAndAttrs(t *testing.T) {
	_, err := NewNamespaceSet[SubmodelElement](nil, []AttrSpec[SubmodelElement]{
		{Name: AttrIDShort, Get: SubmodelElement.IDShort},
	})
	assert.True(t, errors.IsConstraint(err))

	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	_, err = NewNamespaceSet[SubmodelElement](sm, nil)
	assert.True(t, errors.IsConstraint(err))
}

func TestDualIndexedSetFindsBySemanticID(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/sensors")
	set, err := NewNamespaceSet(sm, []AttrSpec[SubmodelElement]{
		{Name: AttrIDShort, Get: SubmodelElement.IDShort},
		{Name: AttrSemanticID, CaseSensitive: true, Get: func(e SubmodelElement) string {
			return e.(HasSemantics).SemanticID().String()
		}},
	})
	require.NoError(t, err)

	temp := NewProperty("Temperature", ValueTypeDouble)
	tempRef := NewExternalReference("0173-1#02-AAB663#005")
	temp.SetSemanticID(tempRef)
	require.NoError(t, set.Add(temp))

	// aggregate lookup through the parent namespace
	got, err := sm.GetBySemanticID(tempRef)
	require.NoError(t, err)
	assert.Same(t, temp, got)

	// the concept is taken, in this set and in sibling sets alike
	dup := NewProperty("Temperature2", ValueTypeDouble)
	dup.SetSemanticID(NewExternalReference("0173-1#02-AAB663#005"))
	err = set.Add(dup)
	assert.True(t, errors.IsConstraint(err))
	err = sm.Add(dup)
	assert.True(t, errors.IsConstraint(err))

	require.NoError(t, sm.RemoveBySemanticID(tempRef))
	assert.Nil(t, temp.Parent())
	_, err = sm.GetBySemanticID(tempRef)
	assert.True(t, errors.IsNotFound(err))
}

func TestNamespaceAggregateOps(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	voltage := NewProperty("Voltage", ValueTypeDouble)
	require.NoError(t, sm.Add(voltage))

	got, err := sm.GetReferable("voltage")
	require.NoError(t, err)
	assert.Same(t, voltage, got)

	current := NewProperty("Current", ValueTypeDouble)
	require.NoError(t, sm.AddReferable(current))
	assert.Same(t, sm, current.Parent())

	var order []string
	sm.EachReferable(func(r Referable) bool {
		order = append(order, r.IDShort())
		return true
	})
	assert.Equal(t, []string{"Voltage", "Current"}, order)

	require.NoError(t, sm.RemoveReferable("Current"))
	assert.Nil(t, current.Parent())

	_, err = sm.GetReferable("Current")
	assert.True(t, errors.IsNotFound(err))
}

func TestOrderedSetInsertAndGetAt(t *testing.T) {
	op := NewOperation("Transform")
	in := op.InputVariables()
	first := NewProperty("In1", ValueTypeString)
	second := NewProperty("In2", ValueTypeString)
	require.NoError(t, in.Add(first))
	require.NoError(t, in.Add(second))

	inserted := NewProperty("In0", ValueTypeString)
	require.NoError(t, in.Insert(0, inserted))

	got, err := in.GetAt(0)
	require.NoError(t, err)
	assert.Same(t, inserted, got)
	got, err = in.GetAt(1)
	require.NoError(t, err)
	assert.Same(t, first, got)
	got, err = in.GetAt(2)
	require.NoError(t, err)
	assert.Same(t, second, got)

	assert.Equal(t, 0, in.Index(inserted))
	assert.Equal(t, -1, in.Index(NewProperty("In9", ValueTypeString)))

	_, err = in.GetAt(3)
	assert.True(t, errors.IsNotFound(err))
}

func TestOrderedSetInsertOutOfRange(t *testing.T) {
	op := NewOperation("Transform")
	stray := NewProperty("In1", ValueTypeString)

	err := op.InputVariables().Insert(3, stray)

	require.Error(t, err)
	assert.True(t, errors.IsConstraint(err))
	assert.Nil(t, stray.Parent())
}

func TestOrderedSetSetAtReplaces(t *testing.T) {
	op := NewOperation("Transform")
	in := op.InputVariables()
	old := NewProperty("In1", ValueTypeString)
	keep := NewProperty("In2", ValueTypeString)
	require.NoError(t, in.Add(old))
	require.NoError(t, in.Add(keep))

	replacement := NewProperty("In9", ValueTypeString)
	require.NoError(t, in.SetAt(0, replacement))

	assert.Equal(t, 2, in.Len())
	got, err := in.GetAt(0)
	require.NoError(t, err)
	assert.Same(t, replacement, got)
	assert.Nil(t, old.Parent())

	// the slot's current occupant still counts for uniqueness
	err = in.SetAt(1, NewProperty("In2", ValueTypeString))
	require.Error(t, err)
	assert.True(t, errors.IsConstraint(err))
	assert.Same(t, keep, in.GetOrDefault(AttrIDShort, "In2", nil))
}

func TestOrderedSetDeleteAt(t *testing.T) {
	op := NewOperation("Transform")
	in := op.InputVariables()
	first := NewProperty("In1", ValueTypeString)
	second := NewProperty("In2", ValueTypeString)
	require.NoError(t, in.Add(first))
	require.NoError(t, in.Add(second))

	require.NoError(t, in.DeleteAt(0))

	assert.Nil(t, first.Parent())
	assert.Equal(t, 1, in.Len())
	got, err := in.GetAt(0)
	require.NoError(t, err)
	assert.Same(t, second, got)

	err = in.DeleteAt(5)
	assert.True(t, errors.IsNotFound(err))
}

func TestRenameReindexesInPlace(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	speed := NewProperty("RotationSpeed", ValueTypeInt)
	require.NoError(t, sm.Add(speed))

	require.NoError(t, Rename(speed, "Rpm"))

	assert.Equal(t, "Rpm", speed.IDShort())
	assert.Same(t, sm, speed.Parent())
	assert.False(t, sm.Elements().ContainsValue(AttrIDShort, "RotationSpeed"))
	got, err := sm.Elements().Get(AttrIDShort, "rpm")
	require.NoError(t, err)
	assert.Same(t, speed, got)
}

func TestRenameCaseOnly(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	speed := NewProperty("RotationSpeed", ValueTypeInt)
	require.NoError(t, sm.Add(speed))

	require.NoError(t, Rename(speed, "ROTATIONSPEED"))

	assert.Equal(t, "ROTATIONSPEED", speed.IDShort())
	got, err := sm.GetReferable("rotationspeed")
	require.NoError(t, err)
	assert.Same(t, speed, got)
}

func TestRenameRejectsCollision(t *testing.T) {
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	speed := NewProperty("RotationSpeed", ValueTypeInt)
	torque := NewProperty("Torque", ValueTypeDouble)
	require.NoError(t, sm.Add(speed))
	require.NoError(t, sm.Add(torque))

	err := Rename(speed, "torque")

	require.Error(t, err)
	assert.True(t, errors.IsConstraint(err))
	assert.Equal(t, "RotationSpeed", speed.IDShort())
}

func TestRenameDetachedSetsIDShort(t *testing.T) {
	loose := NewProperty("Old", ValueTypeString)

	require.NoError(t, Rename(loose, "New"))

	assert.Equal(t, "New", loose.IDShort())
}

func TestRenameRejectsEmptyIDShort(t *testing.T) {
	err := Rename(NewProperty("Old", ValueTypeString), "")
	assert.True(t, errors.IsConstraint(err))
}

func TestRenameRejectsListMembers(t *testing.T) {
	list := NewSubmodelElementList("Cells")
	cell := NewProperty("", ValueTypeDouble)
	require.NoError(t, list.Add(cell))

	err := Rename(cell, "Cell0")

	require.Error(t, err)
	assert.True(t, errors.IsConstraint(err))
	assert.Equal(t, "0", cell.IDShort())
}
