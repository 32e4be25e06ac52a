package backend

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/logger"
)

// Registry binds protocol identifiers to backend implementations. It is an
// explicitly constructed object, never a process global; stores receive the
// registry they should dispatch through. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	backends map[Protocol]interface{}
	logger   *zap.SugaredLogger
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[Protocol]interface{}),
		logger:   logger.ComponentLogger("backend.registry"),
	}
}

// Register binds a backend to a protocol. Registering a protocol twice
// replaces the previous binding (last writer wins). The backend must
// implement ObjectBackend, ValueBackend, or both; anything else is refused
// with a constraint error.
func (r *Registry) Register(protocol Protocol, b interface{}) error {
	switch b.(type) {
	case ObjectBackend, ValueBackend:
	default:
		return errors.NewConstraint("%T implements neither object nor value backend operations", b)
	}

	r.mu.Lock()
	_, replaced := r.backends[protocol]
	r.backends[protocol] = b
	r.mu.Unlock()

	r.logger.Debugw("Backend registered",
		logger.FieldProtocol, string(protocol),
		logger.FieldBackend, fmt.Sprintf("%T", b),
		"replaced", replaced,
	)
	return nil
}

// Deregister removes the binding for a protocol. Returns true when a
// binding existed. Active subscriptions handed out earlier are unaffected.
func (r *Registry) Deregister(protocol Protocol) bool {
	r.mu.Lock()
	_, ok := r.backends[protocol]
	delete(r.backends, protocol)
	r.mu.Unlock()

	if ok {
		r.logger.Debugw("Backend deregistered", logger.FieldProtocol, string(protocol))
	}
	return ok
}

// ObjectBackend resolves the object backend registered for a protocol.
// Returns ErrUnknownBackend when nothing is registered and ErrBackendKind
// when the registration handles values only.
func (r *Registry) ObjectBackend(protocol Protocol) (ObjectBackend, error) {
	b, err := r.lookup(protocol)
	if err != nil {
		return nil, err
	}
	ob, ok := b.(ObjectBackend)
	if !ok {
		return nil, errors.Wrapf(errors.ErrBackendKind,
			"backend for protocol %q handles values only", protocol)
	}
	return ob, nil
}

// ValueBackend resolves the value backend registered for a protocol.
// Returns ErrUnknownBackend when nothing is registered and ErrBackendKind
// when the registration handles whole objects only.
func (r *Registry) ValueBackend(protocol Protocol) (ValueBackend, error) {
	b, err := r.lookup(protocol)
	if err != nil {
		return nil, err
	}
	vb, ok := b.(ValueBackend)
	if !ok {
		return nil, errors.Wrapf(errors.ErrBackendKind,
			"backend for protocol %q handles whole objects only", protocol)
	}
	return vb, nil
}

// ValueSubscriber resolves the subscriber registered for a protocol.
// Subscription support is optional for value backends, so a registered
// backend without it reports a kind mismatch.
func (r *Registry) ValueSubscriber(protocol Protocol) (ValueSubscriber, error) {
	b, err := r.lookup(protocol)
	if err != nil {
		return nil, err
	}
	vs, ok := b.(ValueSubscriber)
	if !ok {
		return nil, errors.Wrapf(errors.ErrBackendKind,
			"backend for protocol %q does not support subscriptions", protocol)
	}
	return vs, nil
}

// Contains reports whether a backend is registered for the protocol.
func (r *Registry) Contains(protocol Protocol) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.backends[protocol]
	return ok
}

// Protocols returns the registered protocol identifiers in sorted order.
func (r *Registry) Protocols() []Protocol {
	r.mu.RLock()
	protocols := make([]Protocol, 0, len(r.backends))
	for p := range r.backends {
		protocols = append(protocols, p)
	}
	r.mu.RUnlock()

	sort.Slice(protocols, func(i, j int) bool { return protocols[i] < protocols[j] })
	return protocols
}

func (r *Registry) lookup(protocol Protocol) (interface{}, error) {
	r.mu.RLock()
	b, ok := r.backends[protocol]
	r.mu.RUnlock()
	if !ok {
		err := errors.Wrapf(errors.ErrUnknownBackend, "protocol %q", protocol)
		return nil, errors.WithHint(err, "register one with Registry.Register")
	}
	return b, nil
}
