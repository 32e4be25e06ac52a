package store

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/logger"
	"github.com/twinforge/aaskit/model"
)

// structuralHash fingerprints an element's position in its tree: the SHA-256
// of its model reference in canonical string form. Elements not anchored
// under an identifiable root have no structural path and cannot be hashed.
func structuralHash(el model.Referable) (string, error) {
	ref, err := model.ModelReferenceTo(el)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(ref.String()))
	return hex.EncodeToString(sum[:]), nil
}

// referenceHash fingerprints a reference directly, without resolving it.
// It matches structuralHash for any reference produced by
// model.ModelReferenceTo, which is what lets extracted mappings and live
// elements meet in the same table.
func referenceHash(ref *model.Reference) string {
	sum := sha256.Sum256([]byte(ref.String()))
	return hex.EncodeToString(sum[:])
}

// mappingEntry holds the per-protocol sources of one structural hash.
// order preserves registration order so first-available protocol selection
// is deterministic.
type mappingEntry struct {
	order   []backend.Protocol
	sources map[backend.Protocol]backend.Source
}

// mappingTable maps structural hashes to per-protocol source descriptors.
// Not synchronized; it shares the store's single-writer rule.
type mappingTable struct {
	entries map[string]*mappingEntry
}

func newMappingTable() *mappingTable {
	return &mappingTable{entries: make(map[string]*mappingEntry)}
}

func (t *mappingTable) set(hash string, protocol backend.Protocol, source backend.Source) {
	entry, ok := t.entries[hash]
	if !ok {
		entry = &mappingEntry{sources: make(map[backend.Protocol]backend.Source)}
		t.entries[hash] = entry
	}
	if _, exists := entry.sources[protocol]; !exists {
		entry.order = append(entry.order, protocol)
	}
	entry.sources[protocol] = source
}

func (t *mappingTable) get(hash string, protocol backend.Protocol) (backend.Source, bool) {
	entry, ok := t.entries[hash]
	if !ok {
		return nil, false
	}
	source, ok := entry.sources[protocol]
	return source, ok
}

// first returns the earliest-registered protocol and source of a hash.
func (t *mappingTable) first(hash string) (backend.Protocol, backend.Source, bool) {
	entry, ok := t.entries[hash]
	if !ok || len(entry.order) == 0 {
		return "", nil, false
	}
	p := entry.order[0]
	return p, entry.sources[p], true
}

func (t *mappingTable) contains(hash string) bool {
	entry, ok := t.entries[hash]
	return ok && len(entry.order) > 0
}

func (t *mappingTable) remove(hash string, protocol backend.Protocol) {
	entry, ok := t.entries[hash]
	if !ok {
		return
	}
	if _, exists := entry.sources[protocol]; !exists {
		return
	}
	delete(entry.sources, protocol)
	for i, p := range entry.order {
		if p == protocol {
			entry.order = append(entry.order[:i], entry.order[i+1:]...)
			break
		}
	}
	if len(entry.order) == 0 {
		delete(t.entries, hash)
	}
}

// move rekeys every protocol source of oldHash under newHash. Used when a
// rename changes structural paths.
func (t *mappingTable) move(oldHash, newHash string) {
	entry, ok := t.entries[oldHash]
	if !ok {
		return
	}
	delete(t.entries, oldHash)
	t.entries[newHash] = entry
}

// AddSource maps element to source under protocol, keyed by the element's
// structural path. The source is copied and, when absent, gains a protocol
// key naming its protocol. An empty or nil source removes the mapping
// instead. Elements not anchored under a stored-style identifiable root are
// refused.
func (s *Store) AddSource(element model.Referable, protocol backend.Protocol, source backend.Source) error {
	hash, err := structuralHash(element)
	if err != nil {
		return errors.Wrapf(err, "mapping source for %q", element.IDShort())
	}
	if len(source) == 0 {
		s.mapping.remove(hash, protocol)
		s.logger.Debugw("Source unmapped",
			logger.FieldIDShort, element.IDShort(),
			logger.FieldProtocol, string(protocol),
			logger.FieldHash, hash)
		return nil
	}
	src := source.Copy()
	if _, ok := src[backend.KeyProtocol]; !ok {
		src[backend.KeyProtocol] = string(protocol)
	}
	s.mapping.set(hash, protocol, src)
	s.logger.Debugw("Source mapped",
		logger.FieldIDShort, element.IDShort(),
		logger.FieldProtocol, string(protocol),
		logger.FieldHash, hash)
	return nil
}

// Source returns a copy of the element's own source for protocol, or false
// when the element or that protocol is unmapped.
func (s *Store) Source(element model.Referable, protocol backend.Protocol) (backend.Source, bool) {
	hash, err := structuralHash(element)
	if err != nil {
		return nil, false
	}
	source, ok := s.mapping.get(hash, protocol)
	if !ok {
		return nil, false
	}
	return source.Copy(), true
}

// Protocols lists the protocols element is mapped under, in registration
// order. Nil when the element carries no mapping of its own.
func (s *Store) Protocols(element model.Referable) []backend.Protocol {
	hash, err := structuralHash(element)
	if err != nil {
		return nil
	}
	entry, ok := s.mapping.entries[hash]
	if !ok || len(entry.order) == 0 {
		return nil
	}
	out := make([]backend.Protocol, len(entry.order))
	copy(out, entry.order)
	return out
}

// FindSource walks from element up the ownership chain until a node has a
// mapped source for protocol. It returns that node and the id-short path
// from the node (exclusive) down to element (inclusive), so a mapped element
// resolves to itself with an empty path. False when nothing in the chain is
// mapped.
func (s *Store) FindSource(element model.Referable, protocol backend.Protocol) (model.Referable, []string, bool) {
	owner, relPath, _, ok := s.findMapped(element, protocol)
	return owner, relPath, ok
}

// findMapped is FindSource plus the resolved source itself, saving dispatch
// a second table lookup.
func (s *Store) findMapped(element model.Referable, protocol backend.Protocol) (model.Referable, []string, backend.Source, bool) {
	var relPath []string
	current := element
	for {
		if hash, err := structuralHash(current); err == nil {
			if source, ok := s.mapping.get(hash, protocol); ok {
				return current, relPath, source, true
			}
		}
		parent := current.Parent()
		if parent == nil {
			return nil, nil, nil, false
		}
		relPath = append([]string{current.IDShort()}, relPath...)
		current = parent
	}
}
