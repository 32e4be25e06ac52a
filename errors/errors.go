// Package errors is the error façade for AASKit, backed by
// github.com/cockroachdb/errors. Every error carries a stack trace from its
// construction site, wrapping preserves sentinel identity for errors.Is, and
// hints and details ride along for the CLI to surface.
//
// Typical use at a store or backend boundary:
//
//	sm, err := st.Get(id)
//	if errors.IsNotFound(err) {
//	    return errors.WithHint(err, "run 'aaskit inspect' to list known ids")
//	}
//	if err != nil {
//	    return errors.Wrapf(err, "loading submodel %s", id)
//	}
//
// See https://pkg.go.dev/github.com/cockroachdb/errors for the full API.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Construction and wrapping.
var (
	New       = crdb.New
	Newf      = crdb.Newf
	Wrap      = crdb.Wrap
	Wrapf     = crdb.Wrapf
	WithStack = crdb.WithStack
)

// Hints name a remedy for the operator; details carry supporting data.
// Both survive wrapping and are collected across the whole chain.
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

// Inspection, matching the standard library's errors API plus the
// multi-target and full-unwrap variants.
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// AssertionFailedf reports a violated internal invariant. It marks the error
// as a programming bug rather than an operational condition.
var AssertionFailedf = crdb.AssertionFailedf

// Sentinels for the metamodel, store, and backend layers. Wrap them to add
// context; errors.Is still matches through any number of layers.
var (
	// ErrNotFound indicates a lookup by identifier, attribute, or index missed.
	ErrNotFound = New("not found")

	// ErrConstraint indicates a metamodel constraint violation: duplicate
	// unique attribute, colliding identifier, missing identifying attribute,
	// or an element already owned by another namespace. The mutation that
	// raised it had no effect.
	ErrConstraint = New("constraint violation")

	// ErrUnknownBackend indicates no backend is registered for a protocol.
	ErrUnknownBackend = New("unknown backend")

	// ErrBackendKind indicates a backend registered for a protocol does not
	// implement the requested kind (object vs. value).
	ErrBackendKind = New("backend kind mismatch")

	// ErrBackendUnavailable indicates an external data source could not be
	// reached. Update/commit dispatch absorbs this class and reports it
	// through logs only.
	ErrBackendUnavailable = New("backend not available")

	// ErrUnsupported indicates a backend does not support the requested
	// operation (e.g. subscribing on a request/response protocol).
	ErrUnsupported = New("operation not supported")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return Is(err, ErrNotFound) }

// IsConstraint reports whether err is or wraps ErrConstraint.
func IsConstraint(err error) bool { return Is(err, ErrConstraint) }

// IsBackendUnavailable reports whether err is or wraps ErrBackendUnavailable.
func IsBackendUnavailable(err error) bool { return Is(err, ErrBackendUnavailable) }

// NewNotFound builds a formatted error that matches ErrNotFound.
func NewNotFound(format string, args ...interface{}) error {
	return Wrapf(ErrNotFound, format, args...)
}

// NewConstraint builds a formatted error that matches ErrConstraint.
func NewConstraint(format string, args ...interface{}) error {
	return Wrapf(ErrConstraint, format, args...)
}
