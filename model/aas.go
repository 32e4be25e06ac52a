package model

// Submodel structures one aspect of an asset into a namespace of submodel
// elements.
type Submodel struct {
	identifiableBase
	withSemantics
	withKind
	qualifiable
	extensible
	namespaceBase

	elements *NamespaceSet[SubmodelElement]
}

// NewSubmodel creates an empty submodel with the given global identifier.
func NewSubmodel(id string) *Submodel {
	sm := &Submodel{}
	sm.id = id
	sm.initQualifiable(sm)
	sm.initExtensible(sm)
	sm.elements = newMemberSet(sm, idShortAttr[SubmodelElement]())
	return sm
}

// Elements is the namespace of top-level submodel elements.
func (sm *Submodel) Elements() *NamespaceSet[SubmodelElement] { return sm.elements }

// Add inserts an element into the submodel.
func (sm *Submodel) Add(e SubmodelElement) error {
	return sm.elements.Add(e)
}

// AssetKind distinguishes asset types from asset instances.
type AssetKind string

const (
	AssetKindType     AssetKind = "Type"
	AssetKindInstance AssetKind = "Instance"
)

// AssetInformation identifies the asset a shell represents.
type AssetInformation struct {
	AssetKind     AssetKind
	GlobalAssetID string
}

// AssetAdministrationShell is the root element describing one asset. It
// references its submodels rather than containing them.
type AssetAdministrationShell struct {
	identifiableBase
	extensible
	namespaceBase

	AssetInformation AssetInformation
	DerivedFrom      *Reference
	Submodels        []*Reference
}

// NewAssetAdministrationShell creates a shell for the given asset.
func NewAssetAdministrationShell(id string, asset AssetInformation) *AssetAdministrationShell {
	aas := &AssetAdministrationShell{AssetInformation: asset}
	aas.id = id
	aas.initExtensible(aas)
	return aas
}

// AddSubmodelReference records a reference to a submodel of this shell.
func (aas *AssetAdministrationShell) AddSubmodelReference(ref *Reference) {
	if ref != nil {
		aas.Submodels = append(aas.Submodels, ref)
	}
}

// ConceptDescription defines the semantics of elements that reference it.
type ConceptDescription struct {
	identifiableBase
	extensible
	namespaceBase

	IsCaseOf []*Reference
}

// NewConceptDescription creates a concept description.
func NewConceptDescription(id string) *ConceptDescription {
	cd := &ConceptDescription{}
	cd.id = id
	cd.initExtensible(cd)
	return cd
}
