package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCodecFixture(t *testing.T) *Submodel {
	t.Helper()
	sm := NewSubmodel("https://example.com/ids/sm/pump-42")
	require.NoError(t, sm.SetIDShort("PumpTelemetry"))
	sm.Category = "VARIABLE"
	sm.Description = LangStringSet{"en": "telemetry of pump 42"}
	sm.SetKind(KindInstance)
	sm.SetSemanticID(NewExternalReference("https://example.com/ids/concept/pump-telemetry"))
	sm.SetAdministration(&AdministrativeInformation{Version: "1", Revision: "4", TemplateID: "https://example.com/ids/tpl/pump"})
	sm.SetSource("couchdb")
	require.NoError(t, sm.Qualifiers().Add(NewQualifier("Lifecycle", ValueTypeString, "released")))
	require.NoError(t, sm.Extensions().Add(NewExtension("plant", "hamburg-03")))

	voltage := NewProperty("Voltage", ValueTypeDouble)
	voltage.Value = "230.0"
	voltage.ValueID = NewExternalReference("0173-1#05-AAA123#002")
	voltage.SetSource("http")
	require.NoError(t, voltage.Qualifiers().Add(NewQualifier("Max", ValueTypeDouble, "250")))
	require.NoError(t, sm.Add(voltage))

	label := NewMultiLanguageProperty("Label")
	label.Value = LangStringSet{"de": "Pumpe", "en": "pump"}
	require.NoError(t, sm.Add(label))

	speedRange := NewRange("SpeedRange", ValueTypeInt)
	speedRange.Min = "0"
	speedRange.Max = "3000"
	require.NoError(t, sm.Add(speedRange))

	firmware := NewBlob("Firmware", "application/octet-stream")
	firmware.Value = []byte{0x01, 0x02, 0x03}
	require.NoError(t, sm.Add(firmware))

	manual := NewFile("Manual", "application/pdf")
	manual.Value = "/docs/pump-42.pdf"
	require.NoError(t, sm.Add(manual))

	concept := NewReferenceElement("ConceptLink")
	concept.Value = NewExternalReference("https://example.com/ids/concept/pump")
	require.NoError(t, sm.Add(concept))

	rel := NewRelationshipElement("FeedsInto",
		NewModelReference(Key{Type: KeyTypeSubmodel, Value: "https://example.com/ids/sm/tank"}),
		NewModelReference(Key{Type: KeyTypeSubmodel, Value: "https://example.com/ids/sm/pump-42"}))
	require.NoError(t, sm.Add(rel))

	annotated := NewAnnotatedRelationshipElement("CoupledWith",
		NewModelReference(Key{Type: KeyTypeSubmodel, Value: "https://example.com/ids/sm/motor"}),
		NewModelReference(Key{Type: KeyTypeSubmodel, Value: "https://example.com/ids/sm/pump-42"}))
	note := NewProperty("CouplingType", ValueTypeString)
	note.Value = "rigid"
	require.NoError(t, annotated.Annotations().Add(note))
	require.NoError(t, sm.Add(annotated))

	plate := NewSubmodelElementCollection("Nameplate")
	maker := NewProperty("Manufacturer", ValueTypeString)
	maker.Value = "Twinforge GmbH"
	require.NoError(t, plate.Add(maker))
	require.NoError(t, sm.Add(plate))

	cells := NewSubmodelElementList("CellVoltages")
	for _, v := range []string{"3.6", "3.7"} {
		cell := NewProperty("", ValueTypeDouble)
		cell.Value = v
		require.NoError(t, cells.Add(cell))
	}
	require.NoError(t, sm.Add(cells))

	calibrate := NewOperation("Calibrate")
	require.NoError(t, calibrate.InputVariables().Add(NewProperty("Target", ValueTypeDouble)))
	require.NoError(t, calibrate.OutputVariables().Add(NewProperty("Achieved", ValueTypeDouble)))
	require.NoError(t, sm.Add(calibrate))

	require.NoError(t, sm.Add(NewCapability("SelfTest")))

	drive := NewEntity("Drive", SelfManagedEntity)
	drive.GlobalAssetID = "https://example.com/ids/asset/drive-7"
	stmt := NewProperty("MountPosition", ValueTypeString)
	stmt.Value = "left"
	require.NoError(t, drive.Statements().Add(stmt))
	require.NoError(t, sm.Add(drive))

	alarm := NewBasicEventElement("OverTemp",
		NewModelReference(
			Key{Type: KeyTypeSubmodel, Value: "https://example.com/ids/sm/pump-42"},
			Key{Type: KeyTypeProperty, Value: "Voltage"},
		))
	alarm.Direction = "output"
	alarm.State = "on"
	require.NoError(t, sm.Add(alarm))

	return sm
}

func TestCodecRoundTripSubmodel(t *testing.T) {
	codec := NewJSONCodec()
	sm := buildCodecFixture(t)

	raw, err := codec.Encode(sm)
	require.NoError(t, err)

	decoded, err := codec.Decode(raw)
	require.NoError(t, err)
	got, ok := decoded.(*Submodel)
	require.True(t, ok)

	assert.Equal(t, sm.ID(), got.ID())
	assert.Equal(t, "PumpTelemetry", got.IDShort())
	assert.Equal(t, "couchdb", got.Source())
	assert.Equal(t, "1.4", got.Administration().VersionString())
	assert.True(t, got.SemanticID().Equal(sm.SemanticID()))
	assert.Equal(t, sm.Elements().Len(), got.Elements().Len())

	voltage, err := got.GetReferable("Voltage")
	require.NoError(t, err)
	prop, ok := voltage.(*Property)
	require.True(t, ok)
	assert.Equal(t, "230.0", prop.Value)
	assert.Equal(t, "http", prop.Source())
	max, err := prop.GetQualifier("Max")
	require.NoError(t, err)
	assert.Equal(t, "250", max.Value)

	cellsRef, err := got.GetReferable("CellVoltages")
	require.NoError(t, err)
	cells, ok := cellsRef.(*SubmodelElementList)
	require.True(t, ok)
	require.Equal(t, 2, cells.Len())
	second, err := cells.GetAt(1)
	require.NoError(t, err)
	assert.Equal(t, "1", second.IDShort())
	assert.Equal(t, "3.7", second.(*Property).Value)

	// a second encode of the decoded tree is byte-identical
	again, err := codec.Encode(got)
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestCodecRoundTripShell(t *testing.T) {
	codec := NewJSONCodec()
	aas := NewAssetAdministrationShell("https://example.com/ids/aas/pump-42", AssetInformation{
		AssetKind:     AssetKindInstance,
		GlobalAssetID: "https://example.com/ids/asset/pump-42",
	})
	require.NoError(t, aas.SetIDShort("Pump42"))
	aas.AddSubmodelReference(NewModelReference(Key{Type: KeyTypeSubmodel, Value: "https://example.com/ids/sm/pump-42"}))
	require.NoError(t, aas.Extensions().Add(NewExtension("site", "hamburg")))

	raw, err := codec.Encode(aas)
	require.NoError(t, err)
	decoded, err := codec.Decode(raw)
	require.NoError(t, err)

	got, ok := decoded.(*AssetAdministrationShell)
	require.True(t, ok)
	assert.Equal(t, aas.ID(), got.ID())
	assert.Equal(t, AssetKindInstance, got.AssetInformation.AssetKind)
	assert.Equal(t, "https://example.com/ids/asset/pump-42", got.AssetInformation.GlobalAssetID)
	require.Len(t, got.Submodels, 1)
	assert.True(t, got.Submodels[0].Equal(aas.Submodels[0]))

	again, err := codec.Encode(got)
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestCodecRoundTripConceptDescription(t *testing.T) {
	codec := NewJSONCodec()
	cd := NewConceptDescription("https://example.com/ids/cd/temperature")
	cd.IsCaseOf = []*Reference{NewExternalReference("0173-1#02-AAB663#005")}

	raw, err := codec.Encode(cd)
	require.NoError(t, err)
	decoded, err := codec.Decode(raw)
	require.NoError(t, err)

	got, ok := decoded.(*ConceptDescription)
	require.True(t, ok)
	assert.Equal(t, cd.ID(), got.ID())
	require.Len(t, got.IsCaseOf, 1)
	assert.True(t, got.IsCaseOf[0].Equal(cd.IsCaseOf[0]))
}

func TestCodecRejectsUnknownKind(t *testing.T) {
	codec := NewJSONCodec()

	_, err := codec.Decode([]byte(`{"kind":"Widget","id":"x"}`))
	require.Error(t, err)

	_, err = codec.Decode([]byte(`{broken`))
	require.Error(t, err)

	_, err = codec.Encode(nil)
	require.Error(t, err)
}
