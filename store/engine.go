package store

import (
	"context"
	"time"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/logger"
	"github.com/twinforge/aaskit/model"
)

// dispatchCall is one planned backend invocation.
type dispatchCall struct {
	element model.Referable // updated or committed object
	store   model.Referable // object owning the dispatched source
	relPath []string
	source  backend.Source
	hash    string // structural hash of element, for freshness bookkeeping
}

// pickProtocol resolves the effective protocol: the explicit one when given,
// else the element's earliest-mapped protocol.
func (s *Store) pickProtocol(element model.Referable, protocol backend.Protocol) (backend.Protocol, bool) {
	if protocol != "" {
		return protocol, true
	}
	hash, err := structuralHash(element)
	if err != nil {
		return "", false
	}
	p, _, ok := s.mapping.first(hash)
	return p, ok
}

// resolveOwn resolves the effective protocol and the element's own source
// under it. No ancestor walk.
func (s *Store) resolveOwn(element model.Referable, protocol backend.Protocol) (backend.Protocol, backend.Source, bool) {
	protocol, ok := s.pickProtocol(element, protocol)
	if !ok {
		return "", nil, false
	}
	hash, err := structuralHash(element)
	if err != nil {
		return "", nil, false
	}
	source, ok := s.mapping.get(hash, protocol)
	return protocol, source, ok
}

// UpdateReferable refreshes element from its external source. A mapped
// element is read directly; an unmapped one is served by its nearest mapped
// ancestor with the element's relative path. With recursive set, every
// namespace descendant carrying its own source refreshes too. maxAge skips
// elements whose last successful refresh is younger; zero always goes out.
//
// Transport failures are logged and absorbed, leaving the local object in
// its previous state. Unknown backends and kind mismatches are misuse and
// propagate. With no protocol given, the element's earliest-mapped protocol
// is used; an element mapped nowhere is a logged no-op.
func (s *Store) UpdateReferable(ctx context.Context, element model.Referable, protocol backend.Protocol, recursive bool, maxAge time.Duration) error {
	protocol, ok := s.pickProtocol(element, protocol)
	if !ok {
		s.logger.Debugw("No source mapped, nothing to update",
			logger.FieldIDShort, element.IDShort())
		return nil
	}
	calls := s.planUpdate(element, protocol, recursive, false)
	if len(calls) == 0 {
		s.logger.Debugw("No source mapped, nothing to update",
			logger.FieldIDShort, element.IDShort(),
			logger.FieldProtocol, string(protocol))
		return nil
	}
	ob, err := s.registry.ObjectBackend(protocol)
	if err != nil {
		return err
	}
	for _, call := range calls {
		if maxAge > 0 && s.fresh(call.hash, maxAge) {
			s.logger.Debugw("Update skipped, still fresh",
				logger.FieldIDShort, call.element.IDShort(),
				logger.FieldProtocol, string(protocol))
			continue
		}
		if err := ob.UpdateObject(ctx, call.element, call.store, call.relPath, call.source); err != nil {
			s.logger.Warnw("Update failed",
				logger.FieldIDShort, call.element.IDShort(),
				logger.FieldProtocol, string(protocol),
				logger.FieldSource, call.source,
				logger.FieldError, err)
			continue
		}
		s.markUpdated(call.hash)
	}
	return nil
}

// planUpdate lists the backend calls an update of element implies. indirect
// marks elements whose state the enclosing call already refreshed through an
// ancestor: they dispatch only when they carry their own source, but their
// children are still visited.
func (s *Store) planUpdate(element model.Referable, protocol backend.Protocol, recursive, indirect bool) []dispatchCall {
	var calls []dispatchCall
	if hash, err := structuralHash(element); err == nil {
		if source, ok := s.mapping.get(hash, protocol); ok {
			calls = append(calls, dispatchCall{element: element, store: element, source: source, hash: hash})
		} else if !indirect {
			if owner, relPath, source, ok := s.findMapped(element, protocol); ok {
				calls = append(calls, dispatchCall{element: element, store: owner, relPath: relPath, source: source, hash: hash})
			}
		}
	}
	if recursive {
		if ns, ok := element.(model.Namespace); ok {
			ns.EachReferable(func(child model.Referable) bool {
				calls = append(calls, s.planUpdate(child, protocol, true, true)...)
				return true
			})
		}
	}
	return calls
}

// CommitReferable writes element back to every external source that claims
// it. The walk goes both ways: each mapped ancestor receives a commit with
// element's path relative to it (nearest ancestor first), then element
// itself and every descendant carrying its own source commit directly with
// an empty path. Every system of record in the chain sees the change, not
// just the nearest one.
//
// Error semantics match UpdateReferable: transport failures are logged and
// absorbed, misuse propagates, nothing mapped is a logged no-op.
func (s *Store) CommitReferable(ctx context.Context, element model.Referable, protocol backend.Protocol) error {
	protocol, ok := s.pickProtocol(element, protocol)
	if !ok {
		s.logger.Debugw("No source mapped, nothing to commit",
			logger.FieldIDShort, element.IDShort())
		return nil
	}
	calls := s.planCommit(element, protocol)
	if len(calls) == 0 {
		s.logger.Debugw("No source mapped, nothing to commit",
			logger.FieldIDShort, element.IDShort(),
			logger.FieldProtocol, string(protocol))
		return nil
	}
	ob, err := s.registry.ObjectBackend(protocol)
	if err != nil {
		return err
	}
	for _, call := range calls {
		if err := ob.CommitObject(ctx, call.element, call.store, call.relPath, call.source); err != nil {
			s.logger.Warnw("Commit failed",
				logger.FieldIDShort, call.element.IDShort(),
				logger.FieldProtocol, string(protocol),
				logger.FieldSource, call.source,
				logger.FieldError, err)
		}
	}
	return nil
}

// planCommit lists the ancestor commits nearest-first, then the direct
// commits of element and its sourced descendants.
func (s *Store) planCommit(element model.Referable, protocol backend.Protocol) []dispatchCall {
	var calls []dispatchCall
	relPath := []string{element.IDShort()}
	for ancestor := element.Parent(); ancestor != nil; ancestor = ancestor.Parent() {
		if hash, err := structuralHash(ancestor); err == nil {
			if source, ok := s.mapping.get(hash, protocol); ok {
				path := make([]string, len(relPath))
				copy(path, relPath)
				calls = append(calls, dispatchCall{element: element, store: ancestor, relPath: path, source: source, hash: hash})
			}
		}
		relPath = append([]string{ancestor.IDShort()}, relPath...)
	}
	return append(calls, s.planDirectCommit(element, protocol)...)
}

// planDirectCommit commits element when it has its own source, then recurses
// into every namespace child.
func (s *Store) planDirectCommit(element model.Referable, protocol backend.Protocol) []dispatchCall {
	var calls []dispatchCall
	if hash, err := structuralHash(element); err == nil {
		if source, ok := s.mapping.get(hash, protocol); ok {
			calls = append(calls, dispatchCall{element: element, store: element, source: source, hash: hash})
		}
	}
	if ns, ok := element.(model.Namespace); ok {
		ns.EachReferable(func(child model.Referable) bool {
			calls = append(calls, s.planDirectCommit(child, protocol)...)
			return true
		})
	}
	return calls
}

// UpdateValue refreshes just the element's scalar value through the value
// backend, using the element's own source only. Unmapped elements are a
// logged no-op; transport failures are logged and absorbed.
func (s *Store) UpdateValue(ctx context.Context, element model.Referable, protocol backend.Protocol) error {
	protocol, source, ok := s.resolveOwn(element, protocol)
	if !ok {
		s.logger.Debugw("No value source mapped",
			logger.FieldIDShort, element.IDShort())
		return nil
	}
	vb, err := s.registry.ValueBackend(protocol)
	if err != nil {
		return err
	}
	if err := vb.UpdateValue(ctx, element, source); err != nil {
		s.logger.Warnw("Value update failed",
			logger.FieldIDShort, element.IDShort(),
			logger.FieldProtocol, string(protocol),
			logger.FieldSource, source,
			logger.FieldError, err)
		return nil
	}
	if hash, hashErr := structuralHash(element); hashErr == nil {
		s.markUpdated(hash)
	}
	return nil
}

// CommitValue pushes just the element's scalar value through the value
// backend, using the element's own source only. Semantics mirror UpdateValue.
func (s *Store) CommitValue(ctx context.Context, element model.Referable, protocol backend.Protocol) error {
	protocol, source, ok := s.resolveOwn(element, protocol)
	if !ok {
		s.logger.Debugw("No value source mapped",
			logger.FieldIDShort, element.IDShort())
		return nil
	}
	vb, err := s.registry.ValueBackend(protocol)
	if err != nil {
		return err
	}
	if err := vb.CommitValue(ctx, element, source); err != nil {
		s.logger.Warnw("Value commit failed",
			logger.FieldIDShort, element.IDShort(),
			logger.FieldProtocol, string(protocol),
			logger.FieldSource, source,
			logger.FieldError, err)
	}
	return nil
}

// PublishValue is CommitValue under the name push-oriented integrations use.
func (s *Store) PublishValue(ctx context.Context, element model.Referable, protocol backend.Protocol) error {
	return s.CommitValue(ctx, element, protocol)
}

// SubscribeValue starts a live feed of the element's value: it resolves the
// element's own source, requires the protocol's backend to support
// subscriptions, and applies every inbound payload to the element. The
// returned handle stops the feed; Close stops every handle the store handed
// out. Payloads arrive on the backend's goroutine, so a subscribed element
// must not be mutated elsewhere while the feed runs.
func (s *Store) SubscribeValue(ctx context.Context, element model.Referable, protocol backend.Protocol) (backend.Subscription, error) {
	protocol, source, ok := s.resolveOwn(element, protocol)
	if !ok {
		return nil, errors.NewNotFound("%q has no mapped source to subscribe to", element.IDShort())
	}
	vs, err := s.registry.ValueSubscriber(protocol)
	if err != nil {
		return nil, err
	}
	log := s.logger
	idShort := element.IDShort()
	deliver := func(payload []byte) {
		value, err := backend.DecodeValue(payload)
		if err != nil {
			log.Warnw("Discarding malformed payload",
				logger.FieldIDShort, idShort,
				logger.FieldProtocol, string(protocol),
				logger.FieldError, err)
			return
		}
		if err := model.SetValueString(element, value); err != nil {
			log.Warnw("Inbound value not applicable",
				logger.FieldIDShort, idShort,
				logger.FieldError, err)
			return
		}
		log.Debugw("Value applied from subscription", logger.FieldIDShort, idShort)
	}
	sub, err := vs.SubscribeValue(ctx, source, deliver)
	if err != nil {
		return nil, err
	}
	s.subs = append(s.subs, sub)
	s.logger.Debugw("Subscription started",
		logger.FieldIDShort, idShort,
		logger.FieldProtocol, string(protocol))
	return sub, nil
}

// UpdateAll recursively updates every stored identifiable, rate-limited when
// the store carries a limiter. Per-object semantics are those of
// UpdateReferable, so only misuse errors stop the batch.
func (s *Store) UpdateAll(ctx context.Context, protocol backend.Protocol) error {
	start := s.now()
	for _, x := range s.All() {
		if err := s.await(ctx); err != nil {
			return err
		}
		if err := s.UpdateReferable(ctx, x, protocol, true, 0); err != nil {
			return err
		}
	}
	s.logger.Debugw("Batch update finished",
		logger.FieldCount, s.Len(),
		logger.FieldDurationMS, s.now().Sub(start).Milliseconds())
	return nil
}

// CommitAll commits every stored identifiable, rate-limited when the store
// carries a limiter.
func (s *Store) CommitAll(ctx context.Context, protocol backend.Protocol) error {
	start := s.now()
	for _, x := range s.All() {
		if err := s.await(ctx); err != nil {
			return err
		}
		if err := s.CommitReferable(ctx, x, protocol); err != nil {
			return err
		}
	}
	s.logger.Debugw("Batch commit finished",
		logger.FieldCount, s.Len(),
		logger.FieldDurationMS, s.now().Sub(start).Milliseconds())
	return nil
}

// await blocks on the batch limiter when one is configured.
func (s *Store) await(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "batch rate limit")
	}
	return nil
}

// RenameReferable changes an element's id-short in place, re-indexing it in
// its parent's sets and rehashing every mapping entry beneath the element's
// old structural path. Without the rehash, renaming a mapped element would
// orphan its sources under keys no longer derivable from the tree.
func (s *Store) RenameReferable(element model.Referable, newIDShort string) error {
	type rekey struct {
		el      model.Referable
		oldHash string
	}
	var moves []rekey
	note := func(r model.Referable) {
		if hash, err := structuralHash(r); err == nil && s.mapping.contains(hash) {
			moves = append(moves, rekey{el: r, oldHash: hash})
		}
	}
	note(element)
	if ns, ok := element.(model.Namespace); ok {
		model.WalkNamespace(ns, func(child model.SubmodelElement) bool {
			note(child)
			return true
		})
	}

	if err := model.Rename(element, newIDShort); err != nil {
		return err
	}

	for _, m := range moves {
		newHash, err := structuralHash(m.el)
		if err != nil || newHash == m.oldHash {
			continue
		}
		s.mapping.move(m.oldHash, newHash)
		s.retargetContributions(m.oldHash, newHash)
	}
	if len(moves) > 0 {
		s.logger.Debugw("Mappings rehashed after rename",
			logger.FieldIDShort, newIDShort,
			logger.FieldCount, len(moves))
	}
	return nil
}

// retargetContributions follows a rehash in the contribution bookkeeping so
// a later configuration discard still finds its entries.
func (s *Store) retargetContributions(oldHash, newHash string) {
	for _, entries := range s.contributed {
		for c := range entries {
			if c.hash == oldHash {
				delete(entries, c)
				entries[contribution{hash: newHash, protocol: c.protocol}] = struct{}{}
			}
		}
	}
}

// fresh reports whether hash refreshed successfully within maxAge.
func (s *Store) fresh(hash string, maxAge time.Duration) bool {
	last, ok := s.lastUpdate[hash]
	return ok && s.now().Sub(last) <= maxAge
}

func (s *Store) markUpdated(hash string) {
	s.lastUpdate[hash] = s.now()
}
