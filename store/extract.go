package store

import (
	"net/url"
	"strings"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/logger"
	"github.com/twinforge/aaskit/model"
)

// Naming conventions of the asset interface submodels. Matching on them is
// case-insensitive throughout.
const (
	aimcMarker = "assetinterfacesmappingconfiguration"

	idShortMappingConfigurations = "MappingConfigurations"
	idShortInterfaceReference    = "InterfaceReference"
	idShortRelations             = "MappingSourceSinkRelations"
	idShortEndpointMetadata      = "EndpointMetadata"
	idShortSecurityDefinitions   = "securityDefinitions"
	idShortForms                 = "forms"
)

// isMappingConfiguration reports whether sm declares itself an asset
// interface mapping configuration, by id-short or by any semantic-id key
// value.
func isMappingConfiguration(sm *model.Submodel) bool {
	if strings.Contains(strings.ToLower(sm.IDShort()), aimcMarker) {
		return true
	}
	for _, ref := range semanticRefs(sm) {
		for _, key := range ref.Keys {
			if strings.Contains(strings.ToLower(key.Value), aimcMarker) {
				return true
			}
		}
	}
	return false
}

// semanticRefs collects the non-nil semantic and supplemental semantic ids
// of an element.
func semanticRefs(el model.Referable) []*model.Reference {
	hs, ok := el.(model.HasSemantics)
	if !ok {
		return nil
	}
	var refs []*model.Reference
	if ref := hs.SemanticID(); ref != nil {
		refs = append(refs, ref)
	}
	for _, ref := range hs.SupplementalSemanticIDs() {
		if ref != nil {
			refs = append(refs, ref)
		}
	}
	return refs
}

// ExtractMappings interprets config as an asset interface mapping
// configuration and registers a source for every mapping relation it
// declares. Interface references resolve against this store, so the
// referenced asset interface description submodels must already be stored;
// re-running after they arrive is safe, extraction is idempotent and only
// reads the trees. Configurations that cannot be interpreted are reported
// collectively while the rest still apply. Discarding config later removes
// everything it contributed here.
func (s *Store) ExtractMappings(config *model.Submodel) error {
	configs, ok := childNamespace(config, idShortMappingConfigurations)
	if !ok {
		return errors.NewNotFound("%q has no %s list", config.IDShort(), idShortMappingConfigurations)
	}
	var failures []error
	total := 0
	configs.EachReferable(func(r model.Referable) bool {
		cfg, ok := r.(model.Namespace)
		if !ok {
			return true
		}
		total++
		if err := s.extractConfiguration(config.ID(), cfg); err != nil {
			failures = append(failures, errors.Wrapf(err, "configuration %q", r.IDShort()))
		}
		return true
	})
	if len(failures) == 0 {
		return nil
	}
	err := errors.Newf("%d of %d mapping configurations failed to extract", len(failures), total)
	for _, f := range failures {
		err = errors.WithDetail(err, f.Error())
	}
	return err
}

// extractConfiguration handles one entry of the MappingConfigurations list:
// resolve the interface, derive its protocol and shared endpoint parameters,
// then register a source per mapping relation.
func (s *Store) extractConfiguration(configID string, cfg model.Namespace) error {
	ifaceChild, ok := childReferable(cfg, idShortInterfaceReference)
	if !ok {
		return errors.NewNotFound("no %s", idShortInterfaceReference)
	}
	refEl, ok := ifaceChild.(*model.ReferenceElement)
	if !ok {
		return errors.NewConstraint("%s is not a reference element", idShortInterfaceReference)
	}
	iface, err := refEl.Value.Resolve(s)
	if err != nil {
		return errors.Wrap(err, "resolving interface reference")
	}
	ifaceNS, ok := iface.(model.Namespace)
	if !ok {
		return errors.NewConstraint("interface %q has no children", iface.IDShort())
	}
	protocol, ok := interfaceProtocol(ifaceNS)
	if !ok {
		return errors.NewNotFound("interface %q names no known protocol", iface.IDShort())
	}
	common, err := endpointCommon(ifaceNS)
	if err != nil {
		return errors.Wrapf(err, "interface %q", iface.IDShort())
	}

	relations, ok := childNamespace(cfg, idShortRelations)
	if !ok {
		return errors.NewNotFound("no %s", idShortRelations)
	}
	var failures []error
	total := 0
	relations.EachReferable(func(r model.Referable) bool {
		rel, ok := relationship(r)
		if !ok {
			return true
		}
		total++
		if err := s.extractRelation(configID, protocol, common, rel); err != nil {
			failures = append(failures, errors.Wrapf(err, "relation %q", r.IDShort()))
		}
		return true
	})
	if len(failures) == 0 {
		return nil
	}
	err = errors.Newf("%d of %d relations failed", len(failures), total)
	for _, f := range failures {
		err = errors.WithDetail(err, f.Error())
	}
	return err
}

// extractRelation turns one source-sink relation into a mapping entry: the
// first endpoint is the interface datapoint carrying the forms, the second
// names the target element whose structural hash keys the entry.
func (s *Store) extractRelation(configID string, protocol backend.Protocol, common backend.Source, rel *model.RelationshipElement) error {
	if rel.First == nil || rel.Second == nil {
		return errors.NewConstraint("relation is missing an endpoint")
	}
	aidEl, err := rel.First.Resolve(s)
	if err != nil {
		return errors.Wrap(err, "resolving interface endpoint")
	}
	forms, ok := formsOf(aidEl)
	if !ok {
		return errors.NewNotFound("interface element %q has no forms", aidEl.IDShort())
	}
	source := common.Copy()
	source[backend.KeyProtocol] = string(protocol)
	if err := formParameters(protocol, forms, source); err != nil {
		return errors.Wrapf(err, "interface element %q", aidEl.IDShort())
	}
	hash := referenceHash(rel.Second)
	s.mapping.set(hash, protocol, source)
	s.recordContribution(configID, hash, protocol)
	s.logger.Debugw("Source extracted",
		logger.FieldProtocol, string(protocol),
		logger.FieldIDShort, aidEl.IDShort(),
		logger.FieldHash, hash)
	return nil
}

// relationship unwraps plain and annotated relationship elements.
func relationship(r model.Referable) (*model.RelationshipElement, bool) {
	switch rel := r.(type) {
	case *model.RelationshipElement:
		return rel, true
	case *model.AnnotatedRelationshipElement:
		return &rel.RelationshipElement, true
	}
	return nil, false
}

// interfaceProtocol reads the protocol off the interface element's naming
// conventions: its id-short and its semantic-id key values.
func interfaceProtocol(iface model.Namespace) (backend.Protocol, bool) {
	if p, ok := protocolMarker(iface.IDShort()); ok {
		return p, true
	}
	for _, ref := range semanticRefs(iface) {
		for _, key := range ref.Keys {
			if p, ok := protocolMarker(key.Value); ok {
				return p, true
			}
		}
	}
	return "", false
}

// protocolMarker matches a naming fragment against the known protocol
// markers. Semantic ids are URIs, so the scheme is cut off first; otherwise
// every https id would read as HTTP.
func protocolMarker(text string) (backend.Protocol, bool) {
	text = strings.ToLower(text)
	if i := strings.Index(text, "://"); i >= 0 {
		text = text[i+len("://"):]
	}
	switch {
	case strings.Contains(text, "modbus"):
		return backend.MODBUS, true
	case strings.Contains(text, "mqtt"):
		return backend.MQTT, true
	case strings.Contains(text, "http"):
		return backend.HTTP, true
	}
	return "", false
}

// endpointCommon collects the connection parameters every datapoint of an
// interface shares: base, content type, and the flattened security scheme
// names from EndpointMetadata.
func endpointCommon(iface model.Namespace) (backend.Source, error) {
	meta, ok := childNamespace(iface, idShortEndpointMetadata)
	if !ok {
		return nil, errors.NewNotFound("no %s", idShortEndpointMetadata)
	}
	base, _ := childValue(meta, "base")
	if base == "" {
		return nil, errors.NewConstraint("%s carries no base", idShortEndpointMetadata)
	}
	contentType, _ := childValue(meta, "contentType")
	if contentType == "" {
		return nil, errors.NewConstraint("%s carries no contentType", idShortEndpointMetadata)
	}
	source := backend.Source{
		backend.KeyBase:        base,
		backend.KeyContentType: contentType,
	}
	if schemes := securitySchemes(meta); len(schemes) > 0 {
		source[backend.KeySecurity] = strings.Join(schemes, ",")
	}
	return source, nil
}

// securitySchemes flattens the scheme property of every child collection of
// securityDefinitions.
func securitySchemes(meta model.Namespace) []string {
	defs, ok := childNamespace(meta, idShortSecurityDefinitions)
	if !ok {
		return nil
	}
	var schemes []string
	defs.EachReferable(func(r model.Referable) bool {
		def, ok := r.(model.Namespace)
		if !ok {
			return true
		}
		if scheme, _ := childValue(def, "scheme"); scheme != "" {
			schemes = append(schemes, scheme)
		}
		return true
	})
	return schemes
}

// formsOf finds the forms collection of an interface datapoint: a direct
// child named forms, or the element itself when it already carries an href.
func formsOf(el model.Referable) (model.Namespace, bool) {
	ns, ok := el.(model.Namespace)
	if !ok {
		return nil, false
	}
	if forms, ok := childNamespace(ns, idShortForms); ok {
		return forms, true
	}
	if href, _ := childValue(ns, "href"); href != "" {
		return ns, true
	}
	return nil, false
}

// formParameters fills source with the protocol-specific fields of a forms
// collection.
func formParameters(protocol backend.Protocol, forms model.Namespace, source backend.Source) error {
	href, _ := childValue(forms, "href")
	if href == "" {
		return errors.NewConstraint("forms carry no href")
	}
	if ct, _ := childValue(forms, "contentType"); ct != "" {
		source[backend.KeyContentType] = ct
	}
	switch protocol {
	case backend.HTTP:
		source[backend.KeyHref] = href
		method, _ := childValue(forms, "htv_methodName")
		if method == "" {
			return errors.NewConstraint("forms carry no htv_methodName")
		}
		source[backend.KeyMethod] = method
	case backend.MQTT:
		source[backend.KeyTopic] = href
		packet, _ := childValue(forms, "mqv_controlPacket")
		if packet == "" {
			return errors.NewConstraint("forms carry no mqv_controlPacket")
		}
		source[backend.KeyControlPacket] = packet
	case backend.MODBUS:
		address, quantity, err := splitModbusHref(href)
		if err != nil {
			return err
		}
		source[backend.KeyAddress] = address
		if quantity != "" {
			source[backend.KeyQuantity] = quantity
		}
		function, _ := childValue(forms, "modv_function")
		if function == "" {
			return errors.NewConstraint("forms carry no modv_function")
		}
		source[backend.KeyFunction] = function
		if dt, _ := childValue(forms, "modv_type"); dt != "" {
			source[backend.KeyDataType] = dt
		}
	default:
		return errors.NewConstraint("no parameter extraction for protocol %q", string(protocol))
	}
	return nil
}

// splitModbusHref splits an address href like "40001?quantity=2".
func splitModbusHref(href string) (address, quantity string, err error) {
	address, query, _ := strings.Cut(href, "?")
	if address == "" {
		return "", "", errors.NewConstraint("modbus href %q carries no address", href)
	}
	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return "", "", errors.Wrapf(err, "modbus href %q", href)
		}
		quantity = values.Get("quantity")
	}
	return address, quantity, nil
}

// childReferable finds a direct child by id-short, matched
// case-insensitively.
func childReferable(ns model.Namespace, idShort string) (model.Referable, bool) {
	if r, err := ns.GetReferable(idShort); err == nil {
		return r, true
	}
	var found model.Referable
	ns.EachReferable(func(r model.Referable) bool {
		if strings.EqualFold(r.IDShort(), idShort) {
			found = r
			return false
		}
		return true
	})
	return found, found != nil
}

// childNamespace is childReferable narrowed to children with children.
func childNamespace(ns model.Namespace, idShort string) (model.Namespace, bool) {
	child, ok := childReferable(ns, idShort)
	if !ok {
		return nil, false
	}
	sub, ok := child.(model.Namespace)
	return sub, ok
}

// childValue reads a direct child property's value.
func childValue(ns model.Namespace, idShort string) (string, bool) {
	child, ok := childReferable(ns, idShort)
	if !ok {
		return "", false
	}
	p, ok := child.(*model.Property)
	if !ok {
		return "", false
	}
	return p.Value, true
}
