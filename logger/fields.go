package logger

import (
	"go.uber.org/zap"
)

// Shared structured-field keys. The console encoder renders a subset of
// these inline after the message (identity keys, sync counters, and
// duration_ms); everything else appears only in JSON output.
const (
	// Object identity
	FieldID      = "id"
	FieldIDShort = "id_short"
	FieldHash    = "hash"

	// Backend dispatch
	FieldBackend  = "backend"
	FieldProtocol = "protocol"

	// Operation detail
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldSource    = "source"

	FieldDurationMS = "duration_ms"
	FieldError      = "error"

	// Sync counters
	FieldCount       = "count"
	FieldAdded       = "added"
	FieldOverwritten = "overwritten"
	FieldSkipped     = "skipped"

	// Endpoints
	FieldAddress = "address"
	FieldHost    = "host"
	FieldTopic   = "topic"
)

// ComponentLogger returns a logger whose entries carry the given component
// name. The console encoder abbreviates dotted names, so "store.engine"
// renders as "s.engine". Safe to call before Initialize; entries are
// discarded until a real logger is installed.
func ComponentLogger(name string) *zap.SugaredLogger {
	return active().Named(name)
}
