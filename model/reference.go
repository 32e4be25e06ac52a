package model

import (
	"strings"

	"github.com/twinforge/aaskit/errors"
)

// KeyType names the kind of model element a reference key points at.
type KeyType string

const (
	KeyTypeAssetAdministrationShell     KeyType = "AssetAdministrationShell"
	KeyTypeSubmodel                     KeyType = "Submodel"
	KeyTypeConceptDescription           KeyType = "ConceptDescription"
	KeyTypeProperty                     KeyType = "Property"
	KeyTypeMultiLanguageProperty        KeyType = "MultiLanguageProperty"
	KeyTypeRange                        KeyType = "Range"
	KeyTypeBlob                         KeyType = "Blob"
	KeyTypeFile                         KeyType = "File"
	KeyTypeReferenceElement             KeyType = "ReferenceElement"
	KeyTypeRelationshipElement          KeyType = "RelationshipElement"
	KeyTypeAnnotatedRelationshipElement KeyType = "AnnotatedRelationshipElement"
	KeyTypeSubmodelElementCollection    KeyType = "SubmodelElementCollection"
	KeyTypeSubmodelElementList          KeyType = "SubmodelElementList"
	KeyTypeOperation                    KeyType = "Operation"
	KeyTypeCapability                   KeyType = "Capability"
	KeyTypeEntity                       KeyType = "Entity"
	KeyTypeBasicEventElement            KeyType = "BasicEventElement"
	KeyTypeGlobalReference              KeyType = "GlobalReference"
	KeyTypeFragmentReference            KeyType = "FragmentReference"
)

// ReferenceType distinguishes references into the model from references to
// external artifacts.
type ReferenceType string

const (
	ModelReference    ReferenceType = "ModelReference"
	ExternalReference ReferenceType = "ExternalReference"
)

// Key is one step of a reference chain.
type Key struct {
	Type  KeyType
	Value string
}

// Reference is an ordered key chain addressing a model element or an
// external artifact.
type Reference struct {
	Type ReferenceType
	Keys []Key
}

// NewModelReference builds a reference into the model from explicit keys.
func NewModelReference(keys ...Key) *Reference {
	return &Reference{Type: ModelReference, Keys: keys}
}

// NewExternalReference builds a reference to external artifacts, one
// global-reference key per value.
func NewExternalReference(values ...string) *Reference {
	keys := make([]Key, len(values))
	for i, v := range values {
		keys[i] = Key{Type: KeyTypeGlobalReference, Value: v}
	}
	return &Reference{Type: ExternalReference, Keys: keys}
}

// String renders the canonical form of the key chain:
// "type,value|type,value". This form keys semantic-id indices and feeds
// structural-path hashing.
func (r *Reference) String() string {
	if r == nil {
		return ""
	}
	parts := make([]string, len(r.Keys))
	for i, k := range r.Keys {
		parts[i] = string(k.Type) + "," + k.Value
	}
	return strings.Join(parts, "|")
}

// Equal reports whether both references have the same type and key chain.
func (r *Reference) Equal(other *Reference) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Type != other.Type || len(r.Keys) != len(other.Keys) {
		return false
	}
	for i, k := range r.Keys {
		if other.Keys[i] != k {
			return false
		}
	}
	return true
}

// Copy returns an independent copy of the reference.
func (r *Reference) Copy() *Reference {
	if r == nil {
		return nil
	}
	return &Reference{Type: r.Type, Keys: append([]Key(nil), r.Keys...)}
}

// KeyTypeOf reports the key type a referable contributes to a model
// reference.
func KeyTypeOf(r Referable) KeyType {
	switch r.(type) {
	case *AssetAdministrationShell:
		return KeyTypeAssetAdministrationShell
	case *Submodel:
		return KeyTypeSubmodel
	case *ConceptDescription:
		return KeyTypeConceptDescription
	case *Property:
		return KeyTypeProperty
	case *MultiLanguageProperty:
		return KeyTypeMultiLanguageProperty
	case *Range:
		return KeyTypeRange
	case *Blob:
		return KeyTypeBlob
	case *File:
		return KeyTypeFile
	case *ReferenceElement:
		return KeyTypeReferenceElement
	case *AnnotatedRelationshipElement:
		return KeyTypeAnnotatedRelationshipElement
	case *RelationshipElement:
		return KeyTypeRelationshipElement
	case *SubmodelElementCollection:
		return KeyTypeSubmodelElementCollection
	case *SubmodelElementList:
		return KeyTypeSubmodelElementList
	case *Operation:
		return KeyTypeOperation
	case *Capability:
		return KeyTypeCapability
	case *Entity:
		return KeyTypeEntity
	case *BasicEventElement:
		return KeyTypeBasicEventElement
	default:
		return KeyTypeFragmentReference
	}
}

// ModelReferenceTo builds the structural-path reference of a referable: the
// key chain from its identifiable root down to the element. The element must
// be anchored under an identifiable.
func ModelReferenceTo(r Referable) (*Reference, error) {
	var chain []Key
	cur := r
	for {
		if ident, ok := cur.(Identifiable); ok {
			chain = append(chain, Key{Type: KeyTypeOf(cur), Value: ident.ID()})
			break
		}
		chain = append(chain, Key{Type: KeyTypeOf(cur), Value: cur.IDShort()})
		parent := cur.Parent()
		if parent == nil {
			return nil, errors.Newf("%q is not anchored under an identifiable", r.IDShort())
		}
		cur = parent
	}
	// chain was collected leaf-first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return NewModelReference(chain...), nil
}

// IdentifiableProvider resolves identifiables by their global identifier.
type IdentifiableProvider interface {
	GetIdentifiable(id string) (Identifiable, error)
}

// Resolve descends the key chain of a model reference: the first key names
// an identifiable in the provider, every further key an id-short step into
// the tree.
func (r *Reference) Resolve(provider IdentifiableProvider) (Referable, error) {
	if r == nil || len(r.Keys) == 0 {
		return nil, errors.NewNotFound("reference has no keys")
	}
	if r.Type != ModelReference {
		return nil, errors.Newf("cannot resolve %s reference %s in the model", r.Type, r)
	}
	root, err := provider.GetIdentifiable(r.Keys[0].Value)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", r)
	}
	var cur Referable = root
	for _, key := range r.Keys[1:] {
		ns, ok := cur.(Namespace)
		if !ok {
			return nil, errors.NewNotFound("%q in %s is not a namespace", cur.IDShort(), r)
		}
		next, err := ns.GetReferable(key.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving %s", r)
		}
		cur = next
	}
	return cur, nil
}
