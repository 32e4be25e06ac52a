// Package store keeps identifiable model trees, maps their elements to
// external data sources, and synchronizes the two through protocol backends.
//
// A Store is an identifier-keyed set of shells, submodels, and concept
// descriptions. Next to the objects it holds a mapping table from an
// element's structural path (the SHA-256 of its model reference) to
// per-protocol source descriptors, populated by AddSource or derived from
// asset interface mapping configurations at add time. UpdateReferable and
// CommitReferable walk the ownership chain, resolve sources through that
// table, and dispatch to the backends registered for the protocol.
//
// Stores follow the single-writer rule of the model package: mutations are
// not synchronized. Only the backend registry and the subscription handles
// are safe to touch concurrently.
package store

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/logger"
	"github.com/twinforge/aaskit/model"
)

// Provider is the read surface shared by object stores: strict lookup by
// identifier plus iteration. The in-memory Store and the persistent stores
// both satisfy it, which is what Sync, AddFrom, and the Multiplexer build on.
type Provider interface {
	model.IdentifiableProvider

	// Each visits every stored identifiable until fn returns false. The
	// error reports iteration failures of persistent implementations; the
	// in-memory store always returns nil.
	Each(fn func(model.Identifiable) bool) error
}

// SyncCounts reports what Sync did with the other store's objects.
type SyncCounts struct {
	Added       int
	Overwritten int
	Skipped     int
}

// Options tunes optional store behavior.
type Options struct {
	// Limiter throttles UpdateAll and CommitAll dispatches when set, so
	// batch synchronization cannot hammer field devices.
	Limiter *rate.Limiter
}

// Store is an in-memory identifiable store with a source mapping table and
// a synchronization engine. The zero value is not usable; construct with New.
type Store struct {
	objects  map[string]model.Identifiable
	mapping  *mappingTable
	registry *backend.Registry

	// contributed records the mapping entries each configuration submodel
	// produced, keyed by the configuration's identifier, so discarding the
	// configuration invalidates them in bulk.
	contributed map[string]map[contribution]struct{}

	subs    []backend.Subscription
	limiter *rate.Limiter

	// lastUpdate remembers when each structural hash last refreshed
	// successfully; UpdateReferable consults it for maxAge freshness.
	// now is swapped out in tests.
	lastUpdate map[string]time.Time
	now        func() time.Time

	logger *zap.SugaredLogger
}

type contribution struct {
	hash     string
	protocol backend.Protocol
}

// New creates an empty store dispatching through registry. A nil registry is
// replaced with a fresh empty one; updates and commits then fail with
// unknown-backend errors until something is registered.
func New(registry *backend.Registry) *Store {
	return NewWithOptions(registry, Options{})
}

// NewWithOptions is New with tuning knobs.
func NewWithOptions(registry *backend.Registry, opts Options) *Store {
	if registry == nil {
		registry = backend.NewRegistry()
	}
	return &Store{
		objects:     make(map[string]model.Identifiable),
		mapping:     newMappingTable(),
		registry:    registry,
		contributed: make(map[string]map[contribution]struct{}),
		limiter:     opts.Limiter,
		lastUpdate:  make(map[string]time.Time),
		now:         time.Now,
		logger:      logger.ComponentLogger("store"),
	}
}

// Registry exposes the backend registry the store dispatches through.
func (s *Store) Registry() *backend.Registry { return s.registry }

// Add inserts x into the store. Adding the same instance again is a no-op;
// a different instance under an already-stored identifier is a constraint
// violation and leaves the store unchanged. Submodels recognized as asset
// interface mapping configurations populate the source mapping table as a
// side effect; extraction problems are logged, never returned, so a partial
// configuration does not block storing the object itself.
func (s *Store) Add(x model.Identifiable) error {
	if x == nil || x.ID() == "" {
		return errors.NewConstraint("identifiable carries no identifier")
	}
	if existing, ok := s.objects[x.ID()]; ok {
		if existing == x {
			return nil
		}
		return errors.NewConstraint("identifier %q is already taken by a different instance", x.ID())
	}
	s.objects[x.ID()] = x
	s.logger.Debugw("Object stored",
		logger.FieldID, x.ID(),
		logger.FieldCount, len(s.objects))

	if sm, ok := x.(*model.Submodel); ok && isMappingConfiguration(sm) {
		if err := s.ExtractMappings(sm); err != nil {
			s.logger.Warnw("Mapping extraction incomplete",
				logger.FieldID, x.ID(),
				logger.FieldError, err)
		}
	}
	return nil
}

// AddFrom bulk-inserts every identifiable of other. It stops at the first
// collision or iteration failure, leaving earlier inserts in place.
func (s *Store) AddFrom(other Provider) error {
	var addErr error
	err := other.Each(func(x model.Identifiable) bool {
		addErr = s.Add(x)
		return addErr == nil
	})
	if err != nil {
		return errors.Wrap(err, "iterating source store")
	}
	return addErr
}

// Discard removes x from the store. It refuses when x is absent or when the
// stored instance under the same identifier is a different object. Mapping
// entries contributed by x (when it is a mapping configuration) are removed
// with it.
func (s *Store) Discard(x model.Identifiable) error {
	if x == nil {
		return errors.NewNotFound("no object given")
	}
	stored, ok := s.objects[x.ID()]
	if !ok {
		return errors.NewNotFound("identifier %q is not stored", x.ID())
	}
	if stored != x {
		return errors.NewConstraint("identifier %q is held by a different instance", x.ID())
	}
	delete(s.objects, x.ID())
	s.dropContributions(x.ID())
	s.logger.Debugw("Object discarded",
		logger.FieldID, x.ID(),
		logger.FieldCount, len(s.objects))
	return nil
}

// Contains reports whether exactly this instance is stored.
func (s *Store) Contains(x model.Identifiable) bool {
	if x == nil {
		return false
	}
	stored, ok := s.objects[x.ID()]
	return ok && stored == x
}

// ContainsID reports whether any object is stored under id.
func (s *Store) ContainsID(id string) bool {
	_, ok := s.objects[id]
	return ok
}

// Len returns the number of stored objects.
func (s *Store) Len() int { return len(s.objects) }

// Each visits every stored identifiable until fn returns false. Order is
// unspecified. The error return exists for Provider parity and is always nil.
func (s *Store) Each(fn func(model.Identifiable) bool) error {
	for _, x := range s.objects {
		if !fn(x) {
			return nil
		}
	}
	return nil
}

// All returns the stored identifiables in unspecified order.
func (s *Store) All() []model.Identifiable {
	out := make([]model.Identifiable, 0, len(s.objects))
	for _, x := range s.objects {
		out = append(out, x)
	}
	return out
}

// Get returns the object stored under id, or false.
func (s *Store) Get(id string) (model.Identifiable, bool) {
	x, ok := s.objects[id]
	return x, ok
}

// GetIdentifiable returns the object stored under id or a not-found error.
// It makes the store a model.IdentifiableProvider, usable for reference
// resolution.
func (s *Store) GetIdentifiable(id string) (model.Identifiable, error) {
	x, ok := s.objects[id]
	if !ok {
		return nil, errors.NewNotFound("identifier %q is not stored", id)
	}
	return x, nil
}

// Sync pulls every object of other into this store. New identifiers are
// added; identifiers already held by the same instance are skipped; for
// identifiers held by a different instance, overwrite decides between
// replacing the stored object (the replacement passes through Add, so
// mapping configurations re-extract) and skipping it. A failure partway
// leaves the objects synced so far in place.
func (s *Store) Sync(other Provider, overwrite bool) (SyncCounts, error) {
	var counts SyncCounts
	var syncErr error
	err := other.Each(func(incoming model.Identifiable) bool {
		if incoming == nil || incoming.ID() == "" {
			counts.Skipped++
			return true
		}
		existing, ok := s.objects[incoming.ID()]
		switch {
		case !ok:
			if syncErr = s.Add(incoming); syncErr != nil {
				return false
			}
			counts.Added++
		case existing == incoming:
			counts.Skipped++
		case overwrite:
			delete(s.objects, incoming.ID())
			s.dropContributions(incoming.ID())
			if syncErr = s.Add(incoming); syncErr != nil {
				return false
			}
			counts.Overwritten++
		default:
			counts.Skipped++
		}
		return true
	})
	if err != nil {
		return counts, errors.Wrap(err, "iterating other store")
	}
	if syncErr != nil {
		return counts, syncErr
	}
	s.logger.Debugw("Stores synced",
		logger.FieldAdded, counts.Added,
		logger.FieldOverwritten, counts.Overwritten,
		logger.FieldSkipped, counts.Skipped)
	return counts, nil
}

// Close stops every subscription the store handed out. The store stays
// usable afterwards; it just no longer has background listeners.
func (s *Store) Close() {
	for _, sub := range s.subs {
		sub.Stop()
	}
	s.subs = nil
}

// dropContributions removes every mapping entry the named configuration
// produced.
func (s *Store) dropContributions(configID string) {
	entries, ok := s.contributed[configID]
	if !ok {
		return
	}
	for c := range entries {
		s.mapping.remove(c.hash, c.protocol)
	}
	delete(s.contributed, configID)
	s.logger.Debugw("Contributed sources dropped",
		logger.FieldID, configID,
		logger.FieldCount, len(entries))
}

// recordContribution remembers that configID produced the (hash, protocol)
// mapping entry.
func (s *Store) recordContribution(configID, hash string, protocol backend.Protocol) {
	entries, ok := s.contributed[configID]
	if !ok {
		entries = make(map[contribution]struct{})
		s.contributed[configID] = entries
	}
	entries[contribution{hash: hash, protocol: protocol}] = struct{}{}
}
