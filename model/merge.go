package model

import (
	"github.com/twinforge/aaskit/errors"
)

// UpdateFrom reconciles this set against a freshly fetched remote set of the
// same shape. Members only present locally are kept. Members only present
// remotely move ownership into this set, which guts the remote set. Members
// present on both sides merge field-wise through the per-kind rules of
// MergeReferable; the local instance survives. Matching uses this set's
// first declared attribute. The reconcile is best-effort: an error leaves
// prior merges applied.
func (s *NamespaceSet[T]) UpdateFrom(other *NamespaceSet[T]) error {
	if other == nil || other == s {
		return nil
	}
	primary := s.attrs[0]
	for _, remote := range other.All() {
		local, err := s.Get(primary.Name, primary.Get(remote))
		if err != nil {
			if err := other.Remove(remote); err != nil {
				return err
			}
			if err := s.Add(remote); err != nil {
				return err
			}
			continue
		}
		if err := mergeMember(local, remote); err != nil {
			return err
		}
	}
	return nil
}

func mergeMember(dst, src Member) error {
	if dst == src {
		return nil
	}
	switch d := dst.(type) {
	case *Qualifier:
		s, ok := src.(*Qualifier)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		d.withSemantics = copySemantics(&s.withSemantics)
		d.ValueType = s.ValueType
		d.Value = s.Value
		d.ValueID = s.ValueID.Copy()
		return nil
	case *Extension:
		s, ok := src.(*Extension)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		d.withSemantics = copySemantics(&s.withSemantics)
		d.Value = s.Value
		d.RefersTo = copyRefs(s.RefersTo)
		return nil
	case Referable:
		s, ok := src.(Referable)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		return MergeReferable(d, s)
	default:
		return errors.AssertionFailedf("no merge rule for member kind %T", dst)
	}
}

// MergeReferable merges src into dst, which must be of the same kind.
// Scalars and references are replaced, nested namespaces merge structurally
// via UpdateFrom, and the identifying attribute, parent link, and source
// descriptor of dst stay untouched.
func MergeReferable(dst, src Referable) error {
	if dst == src {
		return nil
	}
	switch d := dst.(type) {
	case *Property:
		s, ok := src.(*Property)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		if err := mergeElementCore(&d.elementCore, &s.elementCore); err != nil {
			return err
		}
		d.ValueType = s.ValueType
		d.Value = s.Value
		d.ValueID = s.ValueID.Copy()
		return nil

	case *MultiLanguageProperty:
		s, ok := src.(*MultiLanguageProperty)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		if err := mergeElementCore(&d.elementCore, &s.elementCore); err != nil {
			return err
		}
		d.Value = s.Value.Copy()
		d.ValueID = s.ValueID.Copy()
		return nil

	case *Range:
		s, ok := src.(*Range)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		if err := mergeElementCore(&d.elementCore, &s.elementCore); err != nil {
			return err
		}
		d.ValueType = s.ValueType
		d.Min = s.Min
		d.Max = s.Max
		return nil

	case *Blob:
		s, ok := src.(*Blob)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		if err := mergeElementCore(&d.elementCore, &s.elementCore); err != nil {
			return err
		}
		d.ContentType = s.ContentType
		d.Value = append([]byte(nil), s.Value...)
		return nil

	case *File:
		s, ok := src.(*File)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		if err := mergeElementCore(&d.elementCore, &s.elementCore); err != nil {
			return err
		}
		d.ContentType = s.ContentType
		d.Value = s.Value
		return nil

	case *ReferenceElement:
		s, ok := src.(*ReferenceElement)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		if err := mergeElementCore(&d.elementCore, &s.elementCore); err != nil {
			return err
		}
		d.Value = s.Value.Copy()
		return nil

	case *AnnotatedRelationshipElement:
		s, ok := src.(*AnnotatedRelationshipElement)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		if err := mergeElementCore(&d.elementCore, &s.elementCore); err != nil {
			return err
		}
		d.First = s.First.Copy()
		d.Second = s.Second.Copy()
		return d.annotations.UpdateFrom(s.annotations)

	case *RelationshipElement:
		s, ok := src.(*RelationshipElement)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		if err := mergeElementCore(&d.elementCore, &s.elementCore); err != nil {
			return err
		}
		d.First = s.First.Copy()
		d.Second = s.Second.Copy()
		return nil

	case *SubmodelElementCollection:
		s, ok := src.(*SubmodelElementCollection)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		if err := mergeElementCore(&d.elementCore, &s.elementCore); err != nil {
			return err
		}
		return d.elements.UpdateFrom(s.elements)

	case *SubmodelElementList:
		s, ok := src.(*SubmodelElementList)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		if err := mergeElementCore(&d.elementCore, &s.elementCore); err != nil {
			return err
		}
		return d.elements.UpdateFrom(&s.elements.NamespaceSet)

	case *Operation:
		s, ok := src.(*Operation)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		if err := mergeElementCore(&d.elementCore, &s.elementCore); err != nil {
			return err
		}
		if err := d.inputVariables.UpdateFrom(&s.inputVariables.NamespaceSet); err != nil {
			return err
		}
		if err := d.outputVariables.UpdateFrom(&s.outputVariables.NamespaceSet); err != nil {
			return err
		}
		return d.inoutputVariables.UpdateFrom(&s.inoutputVariables.NamespaceSet)

	case *Capability:
		s, ok := src.(*Capability)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		return mergeElementCore(&d.elementCore, &s.elementCore)

	case *Entity:
		s, ok := src.(*Entity)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		if err := mergeElementCore(&d.elementCore, &s.elementCore); err != nil {
			return err
		}
		d.EntityType = s.EntityType
		d.GlobalAssetID = s.GlobalAssetID
		return d.statements.UpdateFrom(s.statements)

	case *BasicEventElement:
		s, ok := src.(*BasicEventElement)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		if err := mergeElementCore(&d.elementCore, &s.elementCore); err != nil {
			return err
		}
		d.Observed = s.Observed.Copy()
		d.Direction = s.Direction
		d.State = s.State
		return nil

	case *Submodel:
		s, ok := src.(*Submodel)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		mergeBase(&d.base, &s.base)
		d.administration = copyAdministration(s.administration)
		d.withSemantics = copySemantics(&s.withSemantics)
		d.withKind = s.withKind
		if err := d.qualifiers.UpdateFrom(s.qualifiers); err != nil {
			return err
		}
		if err := d.extensions.UpdateFrom(s.extensions); err != nil {
			return err
		}
		return d.elements.UpdateFrom(s.elements)

	case *AssetAdministrationShell:
		s, ok := src.(*AssetAdministrationShell)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		mergeBase(&d.base, &s.base)
		d.administration = copyAdministration(s.administration)
		d.AssetInformation = s.AssetInformation
		d.DerivedFrom = s.DerivedFrom.Copy()
		d.Submodels = copyRefs(s.Submodels)
		return d.extensions.UpdateFrom(s.extensions)

	case *ConceptDescription:
		s, ok := src.(*ConceptDescription)
		if !ok {
			return mergeKindMismatch(dst, src)
		}
		mergeBase(&d.base, &s.base)
		d.administration = copyAdministration(s.administration)
		d.IsCaseOf = copyRefs(s.IsCaseOf)
		return d.extensions.UpdateFrom(s.extensions)

	default:
		return errors.AssertionFailedf("no merge rule for referable kind %T", dst)
	}
}

func mergeKindMismatch(dst, src Member) error {
	return errors.NewConstraint("cannot merge %T into %T", src, dst)
}

func mergeElementCore(d, s *elementCore) error {
	mergeBase(&d.base, &s.base)
	d.withSemantics = copySemantics(&s.withSemantics)
	d.withKind = s.withKind
	if err := d.qualifiers.UpdateFrom(s.qualifiers); err != nil {
		return err
	}
	return d.extensions.UpdateFrom(s.extensions)
}

// mergeBase copies descriptive scalars; id-short, parent, and source stay.
func mergeBase(d, s *base) {
	d.Category = s.Category
	d.Description = s.Description.Copy()
}

func copySemantics(s *withSemantics) withSemantics {
	return withSemantics{
		semanticID:   s.semanticID.Copy(),
		supplemental: copyRefs(s.supplemental),
	}
}

func copyRefs(refs []*Reference) []*Reference {
	if refs == nil {
		return nil
	}
	out := make([]*Reference, len(refs))
	for i, r := range refs {
		out[i] = r.Copy()
	}
	return out
}

func copyAdministration(a *AdministrativeInformation) *AdministrativeInformation {
	if a == nil {
		return nil
	}
	copied := *a
	copied.Creator = a.Creator.Copy()
	return &copied
}
