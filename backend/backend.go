// Package backend defines the synchronization contracts between the object
// store and external data sources: object backends (structural update and
// commit of mapped store objects), value backends (scalar read and write
// against an element's own source), value subscribers (push delivery), and
// the Registry that binds protocol identifiers to implementations.
//
// Backends return ordinary errors and do no logging policy of their own;
// the store engine decides which failures surface and which are absorbed.
package backend

import (
	"context"
	"encoding/json"

	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/model"
)

// Protocol identifies the transport family a source descriptor belongs to.
// The set is open: any string can be registered, the constants below name
// the built-in backends.
type Protocol string

const (
	HTTP    Protocol = "HTTP"
	MQTT    Protocol = "MQTT"
	MODBUS  Protocol = "MODBUS"
	COUCHDB Protocol = "COUCHDB"
	FILE    Protocol = "FILE"
	MOCK    Protocol = "MOCK"
)

// Source describes where one mapped element lives on the wire. The shape is
// protocol-specific (HTTP carries base/href/method, MQTT carries
// base/topic, Modbus carries address/quantity/function); the keys shared
// across protocols are declared below. Every source extracted or registered
// through the store carries KeyProtocol.
type Source map[string]string

// Source keys shared across the built-in protocols. Protocol-specific
// extraction (AID forms) and the backends agree on these names.
const (
	KeyProtocol    = "protocol"
	KeyBase        = "base"
	KeyContentType = "contentType"
	KeySecurity    = "security"

	// HTTP and WebSocket forms
	KeyHref   = "href"
	KeyMethod = "method"

	// MQTT forms
	KeyTopic         = "topic"
	KeyControlPacket = "controlPacket"

	// Modbus forms
	KeyAddress  = "address"
	KeyQuantity = "quantity"
	KeyFunction = "function"
	KeyDataType = "dataType"

	// CouchDB addressing
	KeyDatabase = "database"

	// File addressing: document path relative to base
	KeyPath = "path"

	// Credentials for basic_sc / bearer_sc security schemes
	KeyUsername = "username"
	KeyPassword = "password"
	KeyToken    = "token"
)

// Protocol returns the protocol identifier the source was extracted or
// registered for. Empty when the source carries no protocol key.
func (s Source) Protocol() Protocol {
	return Protocol(s[KeyProtocol])
}

// Copy returns an independent copy of the source. Nil stays nil.
func (s Source) Copy() Source {
	if s == nil {
		return nil
	}
	out := make(Source, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ObjectBackend synchronizes mapped store objects. The store is the object
// a source is registered for; relPath locates the updated/committed element
// beneath it (ancestor-exclusive, element-inclusive; empty when the element
// is the store itself).
type ObjectBackend interface {
	UpdateObject(ctx context.Context, updated, store model.Referable, relPath []string, source Source) error
	CommitObject(ctx context.Context, committed, store model.Referable, relPath []string, source Source) error
}

// ValueBackend reads and writes a single element's scalar value against the
// element's own source, without any ownership-chain walk.
type ValueBackend interface {
	UpdateValue(ctx context.Context, updated model.Referable, source Source) error
	CommitValue(ctx context.Context, committed model.Referable, source Source) error
}

// ValueSubscriber delivers inbound value payloads for a source. The deliver
// callback receives the raw payload (conventionally a value document, see
// DecodeValue); delivery continues until the subscription is stopped or the
// context is canceled.
type ValueSubscriber interface {
	SubscribeValue(ctx context.Context, source Source, deliver func(payload []byte)) (Subscription, error)
}

// Subscription is the handle for one active value subscription. Stop is
// idempotent and blocks until the listener has exited.
type Subscription interface {
	Stop()
}

// ValueDocument is the scalar payload convention shared by the protocol
// backends: a single-field JSON document carrying the element's value in
// its string form.
type ValueDocument struct {
	Value string `json:"value"`
}

// EncodeValue renders a value string as a value document payload.
func EncodeValue(value string) ([]byte, error) {
	raw, err := json.Marshal(ValueDocument{Value: value})
	if err != nil {
		return nil, errors.Wrap(err, "encoding value document")
	}
	return raw, nil
}

// DecodeValue extracts the value string from a value document payload.
func DecodeValue(raw []byte) (string, error) {
	var doc ValueDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", errors.Wrap(err, "decoding value document")
	}
	return doc.Value, nil
}
