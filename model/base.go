// Package model implements the Asset Administration Shell metamodel core:
// referable elements, identifiables, multi-index namespace sets, references,
// and traversal utilities. Serialization is left to codecs behind the Codec
// interface.
package model

import (
	"github.com/twinforge/aaskit/errors"
)

// Attribute names under which namespace sets index their members.
const (
	AttrIDShort       = "idShort"
	AttrSemanticID    = "semanticId"
	AttrQualifierType = "type"
	AttrExtensionName = "name"
)

// LangStringSet maps a language tag to a text in that language.
type LangStringSet map[string]string

// Copy returns an independent copy of the set.
func (l LangStringSet) Copy() LangStringSet {
	if l == nil {
		return nil
	}
	out := make(LangStringSet, len(l))
	for lang, text := range l {
		out[lang] = text
	}
	return out
}

// ModelingKind distinguishes templates from concrete instances.
type ModelingKind string

const (
	KindTemplate ModelingKind = "Template"
	KindInstance ModelingKind = "Instance"
)

// ValueType names the XSD value type of a property or range.
type ValueType string

const (
	ValueTypeString  ValueType = "xs:string"
	ValueTypeBoolean ValueType = "xs:boolean"
	ValueTypeInt     ValueType = "xs:int"
	ValueTypeDouble  ValueType = "xs:double"
	ValueTypeFloat   ValueType = "xs:float"
)

// Member is anything a NamespaceSet can own: referables, qualifiers,
// extensions. Membership management is internal to this package; a member
// belongs to at most one set at a time.
type Member interface {
	Parent() Referable
	setParent(Referable)
}

// owned carries the weak back-reference to the owning namespace element.
type owned struct {
	parent Referable
}

func (o *owned) Parent() Referable     { return o.parent }
func (o *owned) setParent(p Referable) { o.parent = p }

// Referable is a model node with an id-short that is unique among its
// siblings. Once attached to a namespace the id-short is frozen; use
// Rename to change it in place.
type Referable interface {
	Member
	IDShort() string
	SetIDShort(idShort string) error
	Source() string
	SetSource(source string)
	refBase() *base
}

// base is the embedded core of every referable element.
type base struct {
	owned
	idShort string
	source  string

	Category    string
	Description LangStringSet
}

func (b *base) refBase() *base { return b }

func (b *base) IDShort() string { return b.idShort }

// SetIDShort sets the id-short of a detached element. Attached elements are
// indexed under their id-short and must be renamed through Rename.
func (b *base) SetIDShort(idShort string) error {
	if b.parent != nil {
		return errors.NewConstraint("id short of %q is frozen while attached to a namespace, use Rename", b.idShort)
	}
	b.idShort = idShort
	return nil
}

// setIDShortRaw bypasses the attachment guard for internal re-indexing.
func (b *base) setIDShortRaw(idShort string) { b.idShort = idShort }

func (b *base) Source() string          { return b.source }
func (b *base) SetSource(source string) { b.source = source }

// HasSemantics is implemented by elements carrying a semantic identifier.
type HasSemantics interface {
	SemanticID() *Reference
	SetSemanticID(ref *Reference)
	SupplementalSemanticIDs() []*Reference
}

// withSemantics is the embedded carrier for HasSemantics.
type withSemantics struct {
	semanticID   *Reference
	supplemental []*Reference
}

func (w *withSemantics) SemanticID() *Reference       { return w.semanticID }
func (w *withSemantics) SetSemanticID(ref *Reference) { w.semanticID = ref }

func (w *withSemantics) SupplementalSemanticIDs() []*Reference { return w.supplemental }

// AddSupplementalSemanticID appends a further semantic identifier.
func (w *withSemantics) AddSupplementalSemanticID(ref *Reference) {
	if ref != nil {
		w.supplemental = append(w.supplemental, ref)
	}
}

// HasKind is implemented by elements that distinguish template from instance.
type HasKind interface {
	Kind() ModelingKind
}

type withKind struct {
	kind ModelingKind
}

func (w *withKind) Kind() ModelingKind {
	if w.kind == "" {
		return KindInstance
	}
	return w.kind
}

func (w *withKind) SetKind(kind ModelingKind) { w.kind = kind }

// Qualifier further qualifies an element, unique per qualifiable element by
// its Type. Do not mutate Type while the qualifier is attached.
type Qualifier struct {
	owned
	withSemantics

	Type      string
	ValueType ValueType
	Value     string
	ValueID   *Reference
}

// NewQualifier creates a qualifier of the given type.
func NewQualifier(qualifierType string, valueType ValueType, value string) *Qualifier {
	return &Qualifier{Type: qualifierType, ValueType: valueType, Value: value}
}

// Qualifiable is implemented by elements that own a qualifier namespace.
type Qualifiable interface {
	Qualifiers() *NamespaceSet[*Qualifier]
}

type qualifiable struct {
	qualifiers *NamespaceSet[*Qualifier]
}

func (q *qualifiable) Qualifiers() *NamespaceSet[*Qualifier] { return q.qualifiers }

// GetQualifier looks a qualifier up by its type.
func (q *qualifiable) GetQualifier(qualifierType string) (*Qualifier, error) {
	return q.qualifiers.Get(AttrQualifierType, qualifierType)
}

func (q *qualifiable) initQualifiable(parent Namespace) {
	q.qualifiers = newMemberSet(parent, []AttrSpec[*Qualifier]{
		{Name: AttrQualifierType, CaseSensitive: true, Get: func(x *Qualifier) string { return x.Type }},
	})
}

// Extension is a proprietary extension of an element, unique per element by
// name. Do not mutate Name while the extension is attached.
type Extension struct {
	owned
	withSemantics

	Name     string
	Value    string
	RefersTo []*Reference
}

// NewExtension creates a named extension.
func NewExtension(name, value string) *Extension {
	return &Extension{Name: name, Value: value}
}

// HasExtensions is implemented by elements that own an extension namespace.
type HasExtensions interface {
	Extensions() *NamespaceSet[*Extension]
}

type extensible struct {
	extensions *NamespaceSet[*Extension]
}

func (e *extensible) Extensions() *NamespaceSet[*Extension] { return e.extensions }

func (e *extensible) initExtensible(parent Namespace) {
	e.extensions = newMemberSet(parent, []AttrSpec[*Extension]{
		{Name: AttrExtensionName, CaseSensitive: true, Get: func(x *Extension) string { return x.Name }},
	})
}

// attributeValue reports the value a member carries for an indexable
// attribute name, mirroring per-kind attribute presence: referables carry an
// id-short, qualifiers a type, extensions a name, semantic elements a
// semantic id. The second return is false when the member does not carry the
// attribute at all (a nil semantic id counts as absent).
func attributeValue(x any, attr string) (string, bool) {
	switch attr {
	case AttrIDShort:
		if r, ok := x.(Referable); ok {
			return r.IDShort(), true
		}
	case AttrQualifierType:
		if q, ok := x.(*Qualifier); ok {
			return q.Type, true
		}
	case AttrExtensionName:
		if e, ok := x.(*Extension); ok {
			return e.Name, true
		}
	case AttrSemanticID:
		if h, ok := x.(HasSemantics); ok {
			if ref := h.SemanticID(); ref != nil {
				return ref.String(), true
			}
		}
	}
	return "", false
}
