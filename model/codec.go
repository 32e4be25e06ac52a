package model

import (
	"encoding/base64"
	"encoding/json"

	"github.com/twinforge/aaskit/errors"
)

// Codec encodes identifiables to a self-contained byte payload and back.
// Codecs serve persistence and transport; the in-memory object graph never
// depends on one.
type Codec interface {
	Encode(obj Identifiable) ([]byte, error)
	Decode(raw []byte) (Identifiable, error)
}

// NewJSONCodec returns the built-in codec: one compact, kind-tagged JSON
// document per identifiable, covering the full element tree including
// qualifiers, extensions, and source descriptors. The layout is internal to
// this module, not an exchange format.
func NewJSONCodec() Codec { return jsonCodec{} }

type jsonCodec struct{}

func (jsonCodec) Encode(obj Identifiable) ([]byte, error) {
	if obj == nil {
		return nil, errors.New("cannot encode a nil identifiable")
	}
	doc, err := encodeIdentifiable(obj)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func (jsonCodec) Decode(raw []byte) (Identifiable, error) {
	var doc jsonElement
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding identifiable document")
	}
	return decodeIdentifiable(&doc)
}

type jsonElement struct {
	Kind    string `json:"kind"`
	IDShort string `json:"idShort,omitempty"`
	ID      string `json:"id,omitempty"`

	Category    string            `json:"category,omitempty"`
	Description map[string]string `json:"description,omitempty"`
	Source      string            `json:"source,omitempty"`

	SemanticID     *jsonRef            `json:"semanticId,omitempty"`
	Supplemental   []*jsonRef          `json:"supplementalSemanticIds,omitempty"`
	ModelingKind   string              `json:"modelingKind,omitempty"`
	Administration *jsonAdministration `json:"administration,omitempty"`
	Qualifiers     []*jsonQualifier    `json:"qualifiers,omitempty"`
	Extensions     []*jsonExtension    `json:"extensions,omitempty"`

	ValueType   string            `json:"valueType,omitempty"`
	Value       string            `json:"value,omitempty"`
	LangStrings map[string]string `json:"langStrings,omitempty"`
	ValueID     *jsonRef          `json:"valueId,omitempty"`
	Reference   *jsonRef          `json:"reference,omitempty"`
	Min         string            `json:"min,omitempty"`
	Max         string            `json:"max,omitempty"`
	ContentType string            `json:"contentType,omitempty"`

	First    *jsonRef `json:"first,omitempty"`
	Second   *jsonRef `json:"second,omitempty"`
	Observed *jsonRef `json:"observed,omitempty"`

	Direction     string `json:"direction,omitempty"`
	State         string `json:"state,omitempty"`
	EntityType    string `json:"entityType,omitempty"`
	GlobalAssetID string `json:"globalAssetId,omitempty"`
	AssetKind     string `json:"assetKind,omitempty"`

	DerivedFrom *jsonRef   `json:"derivedFrom,omitempty"`
	Submodels   []*jsonRef `json:"submodels,omitempty"`
	IsCaseOf    []*jsonRef `json:"isCaseOf,omitempty"`

	Elements    []*jsonElement `json:"elements,omitempty"`
	Annotations []*jsonElement `json:"annotations,omitempty"`
	Statements  []*jsonElement `json:"statements,omitempty"`
	Inputs      []*jsonElement `json:"inputVariables,omitempty"`
	Outputs     []*jsonElement `json:"outputVariables,omitempty"`
	Inoutputs   []*jsonElement `json:"inoutputVariables,omitempty"`
}

type jsonRef struct {
	Type string    `json:"type"`
	Keys []jsonKey `json:"keys"`
}

type jsonKey struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type jsonAdministration struct {
	Version    string   `json:"version,omitempty"`
	Revision   string   `json:"revision,omitempty"`
	Creator    *jsonRef `json:"creator,omitempty"`
	TemplateID string   `json:"templateId,omitempty"`
}

type jsonQualifier struct {
	Type         string     `json:"type"`
	ValueType    string     `json:"valueType,omitempty"`
	Value        string     `json:"value,omitempty"`
	ValueID      *jsonRef   `json:"valueId,omitempty"`
	SemanticID   *jsonRef   `json:"semanticId,omitempty"`
	Supplemental []*jsonRef `json:"supplementalSemanticIds,omitempty"`
}

type jsonExtension struct {
	Name         string     `json:"name"`
	Value        string     `json:"value,omitempty"`
	RefersTo     []*jsonRef `json:"refersTo,omitempty"`
	SemanticID   *jsonRef   `json:"semanticId,omitempty"`
	Supplemental []*jsonRef `json:"supplementalSemanticIds,omitempty"`
}

func encodeIdentifiable(obj Identifiable) (*jsonElement, error) {
	switch o := obj.(type) {
	case *Submodel:
		doc := &jsonElement{
			Kind:           string(KeyTypeSubmodel),
			ID:             o.id,
			IDShort:        o.idShort,
			Category:       o.Category,
			Description:    o.Description,
			Source:         o.source,
			Administration: encodeAdministration(o.administration),
			SemanticID:     encodeRef(o.semanticID),
			Supplemental:   encodeRefs(o.supplemental),
			ModelingKind:   string(o.kind),
			Qualifiers:     encodeQualifiers(o.qualifiers),
			Extensions:     encodeExtensions(o.extensions),
		}
		els, err := encodeChildren(o.elements.All())
		if err != nil {
			return nil, err
		}
		doc.Elements = els
		return doc, nil

	case *AssetAdministrationShell:
		return &jsonElement{
			Kind:           string(KeyTypeAssetAdministrationShell),
			ID:             o.id,
			IDShort:        o.idShort,
			Category:       o.Category,
			Description:    o.Description,
			Source:         o.source,
			Administration: encodeAdministration(o.administration),
			Extensions:     encodeExtensions(o.extensions),
			AssetKind:      string(o.AssetInformation.AssetKind),
			GlobalAssetID:  o.AssetInformation.GlobalAssetID,
			DerivedFrom:    encodeRef(o.DerivedFrom),
			Submodels:      encodeRefs(o.Submodels),
		}, nil

	case *ConceptDescription:
		return &jsonElement{
			Kind:           string(KeyTypeConceptDescription),
			ID:             o.id,
			IDShort:        o.idShort,
			Category:       o.Category,
			Description:    o.Description,
			Source:         o.source,
			Administration: encodeAdministration(o.administration),
			Extensions:     encodeExtensions(o.extensions),
			IsCaseOf:       encodeRefs(o.IsCaseOf),
		}, nil

	default:
		return nil, errors.AssertionFailedf("no codec rule for identifiable kind %T", obj)
	}
}

func decodeIdentifiable(doc *jsonElement) (Identifiable, error) {
	switch KeyType(doc.Kind) {
	case KeyTypeSubmodel:
		sm := NewSubmodel(doc.ID)
		sm.idShort = doc.IDShort
		sm.Category = doc.Category
		sm.Description = doc.Description
		sm.source = doc.Source
		sm.administration = decodeAdministration(doc.Administration)
		sm.semanticID = decodeRef(doc.SemanticID)
		sm.supplemental = decodeRefs(doc.Supplemental)
		sm.kind = ModelingKind(doc.ModelingKind)
		if err := decodeQualifiers(sm.qualifiers, doc.Qualifiers); err != nil {
			return nil, err
		}
		if err := decodeExtensions(sm.extensions, doc.Extensions); err != nil {
			return nil, err
		}
		if err := decodeChildren(doc.Elements, sm.Add); err != nil {
			return nil, err
		}
		return sm, nil

	case KeyTypeAssetAdministrationShell:
		aas := NewAssetAdministrationShell(doc.ID, AssetInformation{
			AssetKind:     AssetKind(doc.AssetKind),
			GlobalAssetID: doc.GlobalAssetID,
		})
		aas.idShort = doc.IDShort
		aas.Category = doc.Category
		aas.Description = doc.Description
		aas.source = doc.Source
		aas.administration = decodeAdministration(doc.Administration)
		aas.DerivedFrom = decodeRef(doc.DerivedFrom)
		aas.Submodels = decodeRefs(doc.Submodels)
		if err := decodeExtensions(aas.extensions, doc.Extensions); err != nil {
			return nil, err
		}
		return aas, nil

	case KeyTypeConceptDescription:
		cd := NewConceptDescription(doc.ID)
		cd.idShort = doc.IDShort
		cd.Category = doc.Category
		cd.Description = doc.Description
		cd.source = doc.Source
		cd.administration = decodeAdministration(doc.Administration)
		cd.IsCaseOf = decodeRefs(doc.IsCaseOf)
		if err := decodeExtensions(cd.extensions, doc.Extensions); err != nil {
			return nil, err
		}
		return cd, nil

	default:
		return nil, errors.Newf("document kind %q is not an identifiable", doc.Kind)
	}
}

func encodeElement(el SubmodelElement) (*jsonElement, error) {
	switch e := el.(type) {
	case *Property:
		doc := encodeCore(KeyTypeProperty, &e.elementCore)
		doc.ValueType = string(e.ValueType)
		doc.Value = e.Value
		doc.ValueID = encodeRef(e.ValueID)
		return doc, nil

	case *MultiLanguageProperty:
		doc := encodeCore(KeyTypeMultiLanguageProperty, &e.elementCore)
		doc.LangStrings = e.Value
		doc.ValueID = encodeRef(e.ValueID)
		return doc, nil

	case *Range:
		doc := encodeCore(KeyTypeRange, &e.elementCore)
		doc.ValueType = string(e.ValueType)
		doc.Min = e.Min
		doc.Max = e.Max
		return doc, nil

	case *Blob:
		doc := encodeCore(KeyTypeBlob, &e.elementCore)
		doc.ContentType = e.ContentType
		doc.Value = base64.StdEncoding.EncodeToString(e.Value)
		return doc, nil

	case *File:
		doc := encodeCore(KeyTypeFile, &e.elementCore)
		doc.ContentType = e.ContentType
		doc.Value = e.Value
		return doc, nil

	case *ReferenceElement:
		doc := encodeCore(KeyTypeReferenceElement, &e.elementCore)
		doc.Reference = encodeRef(e.Value)
		return doc, nil

	case *AnnotatedRelationshipElement:
		doc := encodeCore(KeyTypeAnnotatedRelationshipElement, &e.elementCore)
		doc.First = encodeRef(e.First)
		doc.Second = encodeRef(e.Second)
		anns, err := encodeChildren(e.annotations.All())
		if err != nil {
			return nil, err
		}
		doc.Annotations = anns
		return doc, nil

	case *RelationshipElement:
		doc := encodeCore(KeyTypeRelationshipElement, &e.elementCore)
		doc.First = encodeRef(e.First)
		doc.Second = encodeRef(e.Second)
		return doc, nil

	case *SubmodelElementCollection:
		doc := encodeCore(KeyTypeSubmodelElementCollection, &e.elementCore)
		els, err := encodeChildren(e.elements.All())
		if err != nil {
			return nil, err
		}
		doc.Elements = els
		return doc, nil

	case *SubmodelElementList:
		doc := encodeCore(KeyTypeSubmodelElementList, &e.elementCore)
		els, err := encodeChildren(e.elements.All())
		if err != nil {
			return nil, err
		}
		doc.Elements = els
		return doc, nil

	case *Operation:
		doc := encodeCore(KeyTypeOperation, &e.elementCore)
		in, err := encodeChildren(e.inputVariables.All())
		if err != nil {
			return nil, err
		}
		out, err := encodeChildren(e.outputVariables.All())
		if err != nil {
			return nil, err
		}
		inout, err := encodeChildren(e.inoutputVariables.All())
		if err != nil {
			return nil, err
		}
		doc.Inputs, doc.Outputs, doc.Inoutputs = in, out, inout
		return doc, nil

	case *Capability:
		return encodeCore(KeyTypeCapability, &e.elementCore), nil

	case *Entity:
		doc := encodeCore(KeyTypeEntity, &e.elementCore)
		doc.EntityType = string(e.EntityType)
		doc.GlobalAssetID = e.GlobalAssetID
		stmts, err := encodeChildren(e.statements.All())
		if err != nil {
			return nil, err
		}
		doc.Statements = stmts
		return doc, nil

	case *BasicEventElement:
		doc := encodeCore(KeyTypeBasicEventElement, &e.elementCore)
		doc.Observed = encodeRef(e.Observed)
		doc.Direction = e.Direction
		doc.State = e.State
		return doc, nil

	default:
		return nil, errors.AssertionFailedf("no codec rule for element kind %T", el)
	}
}

func decodeElement(doc *jsonElement) (SubmodelElement, error) {
	switch KeyType(doc.Kind) {
	case KeyTypeProperty:
		p := NewProperty(doc.IDShort, ValueType(doc.ValueType))
		p.Value = doc.Value
		p.ValueID = decodeRef(doc.ValueID)
		return p, decodeCore(&p.elementCore, doc)

	case KeyTypeMultiLanguageProperty:
		m := NewMultiLanguageProperty(doc.IDShort)
		if doc.LangStrings != nil {
			m.Value = doc.LangStrings
		}
		m.ValueID = decodeRef(doc.ValueID)
		return m, decodeCore(&m.elementCore, doc)

	case KeyTypeRange:
		r := NewRange(doc.IDShort, ValueType(doc.ValueType))
		r.Min = doc.Min
		r.Max = doc.Max
		return r, decodeCore(&r.elementCore, doc)

	case KeyTypeBlob:
		b := NewBlob(doc.IDShort, doc.ContentType)
		if doc.Value != "" {
			raw, err := base64.StdEncoding.DecodeString(doc.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "decoding blob %q content", doc.IDShort)
			}
			b.Value = raw
		}
		return b, decodeCore(&b.elementCore, doc)

	case KeyTypeFile:
		f := NewFile(doc.IDShort, doc.ContentType)
		f.Value = doc.Value
		return f, decodeCore(&f.elementCore, doc)

	case KeyTypeReferenceElement:
		r := NewReferenceElement(doc.IDShort)
		r.Value = decodeRef(doc.Reference)
		return r, decodeCore(&r.elementCore, doc)

	case KeyTypeRelationshipElement:
		r := NewRelationshipElement(doc.IDShort, decodeRef(doc.First), decodeRef(doc.Second))
		return r, decodeCore(&r.elementCore, doc)

	case KeyTypeAnnotatedRelationshipElement:
		r := NewAnnotatedRelationshipElement(doc.IDShort, decodeRef(doc.First), decodeRef(doc.Second))
		if err := decodeCore(&r.elementCore, doc); err != nil {
			return nil, err
		}
		return r, decodeChildren(doc.Annotations, r.annotations.Add)

	case KeyTypeSubmodelElementCollection:
		c := NewSubmodelElementCollection(doc.IDShort)
		if err := decodeCore(&c.elementCore, doc); err != nil {
			return nil, err
		}
		return c, decodeChildren(doc.Elements, c.Add)

	case KeyTypeSubmodelElementList:
		l := NewSubmodelElementList(doc.IDShort)
		if err := decodeCore(&l.elementCore, doc); err != nil {
			return nil, err
		}
		return l, decodeChildren(doc.Elements, l.Add)

	case KeyTypeOperation:
		op := NewOperation(doc.IDShort)
		if err := decodeCore(&op.elementCore, doc); err != nil {
			return nil, err
		}
		if err := decodeChildren(doc.Inputs, op.inputVariables.Add); err != nil {
			return nil, err
		}
		if err := decodeChildren(doc.Outputs, op.outputVariables.Add); err != nil {
			return nil, err
		}
		return op, decodeChildren(doc.Inoutputs, op.inoutputVariables.Add)

	case KeyTypeCapability:
		c := NewCapability(doc.IDShort)
		return c, decodeCore(&c.elementCore, doc)

	case KeyTypeEntity:
		e := NewEntity(doc.IDShort, EntityType(doc.EntityType))
		e.GlobalAssetID = doc.GlobalAssetID
		if err := decodeCore(&e.elementCore, doc); err != nil {
			return nil, err
		}
		return e, decodeChildren(doc.Statements, e.statements.Add)

	case KeyTypeBasicEventElement:
		b := NewBasicEventElement(doc.IDShort, decodeRef(doc.Observed))
		b.Direction = doc.Direction
		b.State = doc.State
		return b, decodeCore(&b.elementCore, doc)

	default:
		return nil, errors.Newf("unknown element kind %q", doc.Kind)
	}
}

func encodeCore(kind KeyType, core *elementCore) *jsonElement {
	return &jsonElement{
		Kind:         string(kind),
		IDShort:      core.idShort,
		Category:     core.Category,
		Description:  core.Description,
		Source:       core.source,
		SemanticID:   encodeRef(core.semanticID),
		Supplemental: encodeRefs(core.supplemental),
		ModelingKind: string(core.kind),
		Qualifiers:   encodeQualifiers(core.qualifiers),
		Extensions:   encodeExtensions(core.extensions),
	}
}

func decodeCore(core *elementCore, doc *jsonElement) error {
	core.Category = doc.Category
	core.Description = doc.Description
	core.source = doc.Source
	core.semanticID = decodeRef(doc.SemanticID)
	core.supplemental = decodeRefs(doc.Supplemental)
	core.kind = ModelingKind(doc.ModelingKind)
	if err := decodeQualifiers(core.qualifiers, doc.Qualifiers); err != nil {
		return err
	}
	return decodeExtensions(core.extensions, doc.Extensions)
}

func encodeChildren(els []SubmodelElement) ([]*jsonElement, error) {
	if len(els) == 0 {
		return nil, nil
	}
	out := make([]*jsonElement, len(els))
	for i, el := range els {
		doc, err := encodeElement(el)
		if err != nil {
			return nil, err
		}
		out[i] = doc
	}
	return out, nil
}

func decodeChildren(docs []*jsonElement, add func(SubmodelElement) error) error {
	for _, d := range docs {
		el, err := decodeElement(d)
		if err != nil {
			return err
		}
		if err := add(el); err != nil {
			return err
		}
	}
	return nil
}

func encodeQualifiers(set *NamespaceSet[*Qualifier]) []*jsonQualifier {
	if set == nil || set.Len() == 0 {
		return nil
	}
	out := make([]*jsonQualifier, 0, set.Len())
	for _, q := range set.All() {
		out = append(out, &jsonQualifier{
			Type:         q.Type,
			ValueType:    string(q.ValueType),
			Value:        q.Value,
			ValueID:      encodeRef(q.ValueID),
			SemanticID:   encodeRef(q.semanticID),
			Supplemental: encodeRefs(q.supplemental),
		})
	}
	return out
}

func decodeQualifiers(set *NamespaceSet[*Qualifier], docs []*jsonQualifier) error {
	for _, d := range docs {
		q := NewQualifier(d.Type, ValueType(d.ValueType), d.Value)
		q.ValueID = decodeRef(d.ValueID)
		q.semanticID = decodeRef(d.SemanticID)
		q.supplemental = decodeRefs(d.Supplemental)
		if err := set.Add(q); err != nil {
			return err
		}
	}
	return nil
}

func encodeExtensions(set *NamespaceSet[*Extension]) []*jsonExtension {
	if set == nil || set.Len() == 0 {
		return nil
	}
	out := make([]*jsonExtension, 0, set.Len())
	for _, x := range set.All() {
		out = append(out, &jsonExtension{
			Name:         x.Name,
			Value:        x.Value,
			RefersTo:     encodeRefs(x.RefersTo),
			SemanticID:   encodeRef(x.semanticID),
			Supplemental: encodeRefs(x.supplemental),
		})
	}
	return out
}

func decodeExtensions(set *NamespaceSet[*Extension], docs []*jsonExtension) error {
	for _, d := range docs {
		x := NewExtension(d.Name, d.Value)
		x.RefersTo = decodeRefs(d.RefersTo)
		x.semanticID = decodeRef(d.SemanticID)
		x.supplemental = decodeRefs(d.Supplemental)
		if err := set.Add(x); err != nil {
			return err
		}
	}
	return nil
}

func encodeAdministration(a *AdministrativeInformation) *jsonAdministration {
	if a == nil {
		return nil
	}
	return &jsonAdministration{
		Version:    a.Version,
		Revision:   a.Revision,
		Creator:    encodeRef(a.Creator),
		TemplateID: a.TemplateID,
	}
}

func decodeAdministration(d *jsonAdministration) *AdministrativeInformation {
	if d == nil {
		return nil
	}
	return &AdministrativeInformation{
		Version:    d.Version,
		Revision:   d.Revision,
		Creator:    decodeRef(d.Creator),
		TemplateID: d.TemplateID,
	}
}

func encodeRef(r *Reference) *jsonRef {
	if r == nil {
		return nil
	}
	keys := make([]jsonKey, len(r.Keys))
	for i, k := range r.Keys {
		keys[i] = jsonKey{Type: string(k.Type), Value: k.Value}
	}
	return &jsonRef{Type: string(r.Type), Keys: keys}
}

func decodeRef(d *jsonRef) *Reference {
	if d == nil {
		return nil
	}
	keys := make([]Key, len(d.Keys))
	for i, k := range d.Keys {
		keys[i] = Key{Type: KeyType(k.Type), Value: k.Value}
	}
	return &Reference{Type: ReferenceType(d.Type), Keys: keys}
}

func encodeRefs(refs []*Reference) []*jsonRef {
	if len(refs) == 0 {
		return nil
	}
	out := make([]*jsonRef, len(refs))
	for i, r := range refs {
		out[i] = encodeRef(r)
	}
	return out
}

func decodeRefs(docs []*jsonRef) []*Reference {
	if len(docs) == 0 {
		return nil
	}
	out := make([]*Reference, len(docs))
	for i, d := range docs {
		out[i] = decodeRef(d)
	}
	return out
}
