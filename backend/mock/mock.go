// Package mock provides an in-memory recording backend for tests and dry
// runs. Every invocation is captured with its operation, objects, relative
// path, and source; errors and inbound update values can be scripted per
// operation.
package mock

import (
	"context"
	"sync"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/model"
)

// Op names one backend operation for call records and scripted failures.
type Op string

const (
	OpUpdateObject   Op = "update-object"
	OpCommitObject   Op = "commit-object"
	OpUpdateValue    Op = "update-value"
	OpCommitValue    Op = "commit-value"
	OpSubscribeValue Op = "subscribe-value"
)

// Call records a single backend invocation. Object references are the live
// instances the caller passed in; path and source are copied at call time.
type Call struct {
	Op      Op
	Element model.Referable
	Store   model.Referable
	RelPath []string
	Source  backend.Source
}

// Backend records calls and plays back scripted behavior. It implements
// ObjectBackend, ValueBackend, and ValueSubscriber, so it can stand in for
// any protocol, built-in or custom. The zero value is ready to use and safe
// for concurrent calls.
type Backend struct {
	mu     sync.Mutex
	calls  []Call
	errs   map[Op]error
	values map[string]string
	subs   []*Subscription
}

// New creates an empty recording backend.
func New() *Backend {
	return &Backend{}
}

// FailWith scripts an error for every subsequent call of the given
// operation. A nil error clears the script.
func (b *Backend) FailWith(op Op, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.errs == nil {
		b.errs = make(map[Op]error)
	}
	if err == nil {
		delete(b.errs, op)
		return
	}
	b.errs[op] = err
}

// StubValue cans a remote value for an element id-short. Subsequent update
// calls touching that element apply the value as if it had been read from
// the wire.
func (b *Backend) StubValue(idShort, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.values == nil {
		b.values = make(map[string]string)
	}
	b.values[idShort] = value
}

// Calls returns a snapshot of every recorded call in order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallsFor returns the recorded calls for one operation, in order.
func (b *Backend) CallsFor(op Op) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Subscriptions returns every subscription handed out so far.
func (b *Backend) Subscriptions() []*Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Subscription, len(b.subs))
	copy(out, b.subs)
	return out
}

// Reset drops all recorded calls, scripts, and subscription handles.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
	b.errs = nil
	b.values = nil
	b.subs = nil
}

func (b *Backend) record(c Call) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.RelPath = append([]string(nil), c.RelPath...)
	c.Source = c.Source.Copy()
	b.calls = append(b.calls, c)
	return b.errs[c.Op]
}

func (b *Backend) cannedValue(el model.Referable) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[el.IDShort()]
	return v, ok
}

// UpdateObject records the call and applies any canned value to the updated
// element.
func (b *Backend) UpdateObject(ctx context.Context, updated, store model.Referable, relPath []string, source backend.Source) error {
	if err := b.record(Call{Op: OpUpdateObject, Element: updated, Store: store, RelPath: relPath, Source: source}); err != nil {
		return err
	}
	return b.applyCanned(updated)
}

// CommitObject records the call.
func (b *Backend) CommitObject(ctx context.Context, committed, store model.Referable, relPath []string, source backend.Source) error {
	return b.record(Call{Op: OpCommitObject, Element: committed, Store: store, RelPath: relPath, Source: source})
}

// UpdateValue records the call and applies any canned value.
func (b *Backend) UpdateValue(ctx context.Context, updated model.Referable, source backend.Source) error {
	if err := b.record(Call{Op: OpUpdateValue, Element: updated, Source: source}); err != nil {
		return err
	}
	return b.applyCanned(updated)
}

// CommitValue records the call.
func (b *Backend) CommitValue(ctx context.Context, committed model.Referable, source backend.Source) error {
	return b.record(Call{Op: OpCommitValue, Element: committed, Source: source})
}

func (b *Backend) applyCanned(el model.Referable) error {
	value, ok := b.cannedValue(el)
	if !ok {
		return nil
	}
	return model.SetValueString(el, value)
}

// SubscribeValue records the call and returns a handle whose Deliver method
// feeds payloads to the listener, emulating inbound traffic.
func (b *Backend) SubscribeValue(ctx context.Context, source backend.Source, deliver func(payload []byte)) (backend.Subscription, error) {
	if err := b.record(Call{Op: OpSubscribeValue, Source: source}); err != nil {
		return nil, err
	}
	sub := &Subscription{deliver: deliver}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub, nil
}

// Subscription is a mock subscription handle. Tests push inbound payloads
// through Deliver.
type Subscription struct {
	mu      sync.Mutex
	stopped bool
	deliver func([]byte)
}

// Deliver forwards a payload to the listener. Returns false once the
// subscription has been stopped.
func (s *Subscription) Deliver(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.deliver(payload)
	return true
}

// Stop halts delivery. Safe to call more than once.
func (s *Subscription) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// Stopped reports whether Stop has been called.
func (s *Subscription) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
