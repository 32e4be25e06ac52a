package model

import (
	"strconv"
)

// SubmodelElement is any element that can live inside a submodel,
// collection, or list.
type SubmodelElement interface {
	Referable
	isSubmodelElement()
}

// submodelElement marks a type as usable inside submodel namespaces.
type submodelElement struct{}

func (submodelElement) isSubmodelElement() {}

// elementCore bundles what every submodel element carries: the referable
// base, semantic id, modeling kind, qualifier and extension namespaces.
type elementCore struct {
	base
	withSemantics
	withKind
	qualifiable
	extensible
	namespaceBase
	submodelElement
}

type elementInit interface {
	Namespace
	initQualifiable(Namespace)
	initExtensible(Namespace)
}

func initCore(e elementInit, idShort string) {
	e.refBase().setIDShortRaw(idShort)
	e.initQualifiable(e)
	e.initExtensible(e)
}

func idShortAttr[T Referable]() []AttrSpec[T] {
	return []AttrSpec[T]{{
		Name: AttrIDShort,
		Get:  func(x T) string { return x.IDShort() },
	}}
}

// Property is a data element with a single typed value.
type Property struct {
	elementCore

	ValueType ValueType
	Value     string
	ValueID   *Reference
}

// NewProperty creates a property with the given id-short and value type.
func NewProperty(idShort string, valueType ValueType) *Property {
	p := &Property{ValueType: valueType}
	initCore(p, idShort)
	return p
}

// MultiLanguageProperty is a data element with one value per language.
type MultiLanguageProperty struct {
	elementCore

	Value   LangStringSet
	ValueID *Reference
}

// NewMultiLanguageProperty creates an empty multi-language property.
func NewMultiLanguageProperty(idShort string) *MultiLanguageProperty {
	m := &MultiLanguageProperty{Value: LangStringSet{}}
	initCore(m, idShort)
	return m
}

// Range is a data element describing a min/max value band.
type Range struct {
	elementCore

	ValueType ValueType
	Min       string
	Max       string
}

// NewRange creates a range with the given value type.
func NewRange(idShort string, valueType ValueType) *Range {
	r := &Range{ValueType: valueType}
	initCore(r, idShort)
	return r
}

// Blob is a data element holding binary content inline.
type Blob struct {
	elementCore

	ContentType string
	Value       []byte
}

// NewBlob creates a blob with the given content type.
func NewBlob(idShort, contentType string) *Blob {
	b := &Blob{ContentType: contentType}
	initCore(b, idShort)
	return b
}

// File is a data element pointing at external file content.
type File struct {
	elementCore

	ContentType string
	Value       string
}

// NewFile creates a file element with the given content type.
func NewFile(idShort, contentType string) *File {
	f := &File{ContentType: contentType}
	initCore(f, idShort)
	return f
}

// ReferenceElement is a data element whose value is a reference.
type ReferenceElement struct {
	elementCore

	Value *Reference
}

// NewReferenceElement creates a reference element.
func NewReferenceElement(idShort string) *ReferenceElement {
	r := &ReferenceElement{}
	initCore(r, idShort)
	return r
}

// RelationshipElement relates two referables.
type RelationshipElement struct {
	elementCore

	First  *Reference
	Second *Reference
}

// NewRelationshipElement creates a relationship between two references.
func NewRelationshipElement(idShort string, first, second *Reference) *RelationshipElement {
	r := &RelationshipElement{First: first, Second: second}
	initCore(r, idShort)
	return r
}

// AnnotatedRelationshipElement is a relationship carrying data-element
// annotations.
type AnnotatedRelationshipElement struct {
	RelationshipElement

	annotations *NamespaceSet[SubmodelElement]
}

// NewAnnotatedRelationshipElement creates an annotated relationship.
func NewAnnotatedRelationshipElement(idShort string, first, second *Reference) *AnnotatedRelationshipElement {
	r := &AnnotatedRelationshipElement{}
	r.First = first
	r.Second = second
	initCore(r, idShort)
	r.annotations = newMemberSet(r, idShortAttr[SubmodelElement]())
	return r
}

// Annotations is the namespace of annotation elements.
func (r *AnnotatedRelationshipElement) Annotations() *NamespaceSet[SubmodelElement] {
	return r.annotations
}

// SubmodelElementCollection is an unordered namespace of nested elements.
type SubmodelElementCollection struct {
	elementCore

	elements *NamespaceSet[SubmodelElement]
}

// NewSubmodelElementCollection creates an empty collection.
func NewSubmodelElementCollection(idShort string) *SubmodelElementCollection {
	c := &SubmodelElementCollection{}
	initCore(c, idShort)
	c.elements = newMemberSet(c, idShortAttr[SubmodelElement]())
	return c
}

// Elements is the namespace of contained elements.
func (c *SubmodelElementCollection) Elements() *NamespaceSet[SubmodelElement] {
	return c.elements
}

// Add inserts an element into the collection.
func (c *SubmodelElementCollection) Add(e SubmodelElement) error {
	return c.elements.Add(e)
}

// SubmodelElementList is an ordered namespace whose members carry
// index-derived numeric id-shorts ("0", "1", ...). Structural changes
// through the list keep id-shorts aligned with positions; a source mapping
// below a list therefore follows positions, not member identity.
type SubmodelElementList struct {
	elementCore

	elements *OrderedNamespaceSet[SubmodelElement]
}

// NewSubmodelElementList creates an empty list.
func NewSubmodelElementList(idShort string) *SubmodelElementList {
	l := &SubmodelElementList{}
	initCore(l, idShort)
	l.elements = newOrderedHookedSet(l, idShortAttr[SubmodelElement](),
		func(e SubmodelElement) { e.refBase().setIDShortRaw(strconv.Itoa(l.elements.Len())) },
		func(e SubmodelElement) { e.refBase().setIDShortRaw("") },
	)
	return l
}

// Elements is the ordered namespace of contained elements. Mutate through
// the list methods so derived id-shorts stay aligned with positions.
func (l *SubmodelElementList) Elements() *OrderedNamespaceSet[SubmodelElement] {
	return l.elements
}

// Add appends an element; its id-short becomes the new index.
func (l *SubmodelElementList) Add(e SubmodelElement) error {
	return l.elements.Add(e)
}

// Insert places an element at position i and renumbers the tail.
func (l *SubmodelElementList) Insert(i int, e SubmodelElement) error {
	if err := l.elements.Insert(i, e); err != nil {
		return err
	}
	l.renumber()
	return nil
}

// Remove detaches an element and renumbers the remainder.
func (l *SubmodelElementList) Remove(e SubmodelElement) error {
	if err := l.elements.Remove(e); err != nil {
		return err
	}
	l.renumber()
	return nil
}

// DeleteAt removes the element at position i and renumbers the remainder.
func (l *SubmodelElementList) DeleteAt(i int) error {
	if err := l.elements.DeleteAt(i); err != nil {
		return err
	}
	l.renumber()
	return nil
}

// GetAt returns the element at position i.
func (l *SubmodelElementList) GetAt(i int) (SubmodelElement, error) {
	return l.elements.GetAt(i)
}

// Len reports the number of elements.
func (l *SubmodelElementList) Len() int { return l.elements.Len() }

func (l *SubmodelElementList) renumber() {
	for i, e := range l.elements.All() {
		want := strconv.Itoa(i)
		if e.IDShort() != want {
			l.elements.rekeyIDShort(e, want)
		}
	}
}

// Operation is an element with input, output, and in/output variables. The
// id-shorts of all variables share one namespace.
type Operation struct {
	elementCore

	inputVariables    *OrderedNamespaceSet[SubmodelElement]
	outputVariables   *OrderedNamespaceSet[SubmodelElement]
	inoutputVariables *OrderedNamespaceSet[SubmodelElement]
}

// NewOperation creates an operation with empty variable namespaces.
func NewOperation(idShort string) *Operation {
	o := &Operation{}
	initCore(o, idShort)
	o.inputVariables = newOrderedMemberSet(o, idShortAttr[SubmodelElement]())
	o.outputVariables = newOrderedMemberSet(o, idShortAttr[SubmodelElement]())
	o.inoutputVariables = newOrderedMemberSet(o, idShortAttr[SubmodelElement]())
	return o
}

func (o *Operation) InputVariables() *OrderedNamespaceSet[SubmodelElement] {
	return o.inputVariables
}

func (o *Operation) OutputVariables() *OrderedNamespaceSet[SubmodelElement] {
	return o.outputVariables
}

func (o *Operation) InOutputVariables() *OrderedNamespaceSet[SubmodelElement] {
	return o.inoutputVariables
}

// Capability expresses an ability of the asset without invocation details.
type Capability struct {
	elementCore
}

// NewCapability creates a capability.
func NewCapability(idShort string) *Capability {
	c := &Capability{}
	initCore(c, idShort)
	return c
}

// EntityType distinguishes self-managed from co-managed entities.
type EntityType string

const (
	CoManagedEntity   EntityType = "CoManagedEntity"
	SelfManagedEntity EntityType = "SelfManagedEntity"
)

// Entity describes a part of the asset, with statement elements.
type Entity struct {
	elementCore

	EntityType    EntityType
	GlobalAssetID string

	statements *NamespaceSet[SubmodelElement]
}

// NewEntity creates an entity of the given type.
func NewEntity(idShort string, entityType EntityType) *Entity {
	e := &Entity{EntityType: entityType}
	initCore(e, idShort)
	e.statements = newMemberSet(e, idShortAttr[SubmodelElement]())
	return e
}

// Statements is the namespace of statement elements.
func (e *Entity) Statements() *NamespaceSet[SubmodelElement] { return e.statements }

// BasicEventElement declares an observable event source.
type BasicEventElement struct {
	elementCore

	Observed  *Reference
	Direction string
	State     string
}

// NewBasicEventElement creates an event element observing the given
// reference.
func NewBasicEventElement(idShort string, observed *Reference) *BasicEventElement {
	b := &BasicEventElement{Observed: observed}
	initCore(b, idShort)
	return b
}
