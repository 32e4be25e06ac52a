// Package couchdb implements the CouchDB object backend. Each mapped store
// object owns one database document per element path; documents carry the
// element value plus CouchDB's revision bookkeeping. Commits fetch the
// current revision before writing, updates read the stored value.
package couchdb

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/internal/httpclient"
	"github.com/twinforge/aaskit/logger"
	"github.com/twinforge/aaskit/model"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodySize    = 1 << 20
)

// Config tunes the CouchDB backend.
type Config struct {
	// Timeout bounds each request. Zero means 30 seconds.
	Timeout time.Duration

	// BlockPrivateNetworks refuses RFC1918 and loopback endpoints. Off by
	// default: CouchDB instances usually live next to the application.
	BlockPrivateNetworks bool

	// Username and Password are fallback credentials for sources that carry
	// none of their own.
	Username string
	Password string
}

// Backend synchronizes store objects against a CouchDB database. Sources
// carry base (server URL) and database; credentials ride along as
// username/password for basic auth.
type Backend struct {
	client *httpclient.Client
	logger *zap.SugaredLogger

	username string
	password string
}

var _ backend.ObjectBackend = (*Backend)(nil)

// New creates a CouchDB backend.
func New(cfg Config) *Backend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Backend{
		client: httpclient.New(httpclient.Options{
			Timeout:              timeout,
			BlockPrivateNetworks: cfg.BlockPrivateNetworks,
		}),
		logger:   logger.ComponentLogger("backend.couchdb"),
		username: cfg.Username,
		password: cfg.Password,
	}
}

// document is the stored shape: the element value in its string form plus
// CouchDB's revision fields.
type document struct {
	ID    string `json:"_id,omitempty"`
	Rev   string `json:"_rev,omitempty"`
	Value string `json:"value"`
}

// UpdateObject reads the element's document and applies the stored value.
func (b *Backend) UpdateObject(ctx context.Context, updated, store model.Referable, relPath []string, source backend.Source) error {
	docURL, docID, err := documentURL(source, store, relPath)
	if err != nil {
		return err
	}

	doc, err := b.fetch(ctx, source, docURL, docID)
	if err != nil {
		return err
	}

	b.logger.Debugw("Document read",
		logger.FieldID, docID,
		logger.FieldIDShort, updated.IDShort(),
	)
	return model.SetValueString(updated, doc.Value)
}

// CommitObject writes the element's value as the document body, carrying
// the current revision forward when the document already exists.
func (b *Backend) CommitObject(ctx context.Context, committed, store model.Referable, relPath []string, source backend.Source) error {
	docURL, docID, err := documentURL(source, store, relPath)
	if err != nil {
		return err
	}
	value, err := model.ValueString(committed)
	if err != nil {
		return err
	}

	rev, err := b.currentRev(ctx, source, docURL, docID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(document{Rev: rev, Value: value})
	if err != nil {
		return errors.Wrapf(err, "encoding document %q", docID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, docURL, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "building PUT for document %q", docID)
	}
	req.Header.Set("Content-Type", "application/json")
	b.applyAuth(req, source)

	resp, err := b.client.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "PUT %s: %v", docURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	case http.StatusConflict:
		return errors.Wrapf(errors.ErrBackendUnavailable,
			"document %q: revision conflict", docID)
	default:
		return errors.Wrapf(errors.ErrBackendUnavailable,
			"PUT %s: status %d", docURL, resp.StatusCode)
	}

	b.logger.Debugw("Document written",
		logger.FieldID, docID,
		logger.FieldIDShort, committed.IDShort(),
	)
	return nil
}

// fetch reads and decodes the document. A missing document is a not-found
// error; everything else transport-level is backend-unavailable.
func (b *Backend) fetch(ctx context.Context, source backend.Source, docURL, docID string) (*document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building GET for document %q", docID)
	}
	b.applyAuth(req, source)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrBackendUnavailable, "GET %s: %v", docURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NewNotFound("document %q", docID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrBackendUnavailable,
			"GET %s: status %d", docURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrBackendUnavailable,
			"GET %s: reading body: %v", docURL, err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "decoding document %q", docID)
	}
	return &doc, nil
}

// currentRev returns the document's revision, or empty when the document
// does not exist yet.
func (b *Backend) currentRev(ctx context.Context, source backend.Source, docURL, docID string) (string, error) {
	doc, err := b.fetch(ctx, source, docURL, docID)
	if errors.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return doc.Rev, nil
}

// documentURL builds the document endpoint and its id. The id is the store
// identifier joined with the relative path, so one database holds every
// element of every mapped store without collisions.
func documentURL(source backend.Source, store model.Referable, relPath []string) (string, string, error) {
	base := source[backend.KeyBase]
	if base == "" {
		return "", "", errors.NewConstraint("couchdb source carries no base")
	}
	db := source[backend.KeyDatabase]
	if db == "" {
		return "", "", errors.NewConstraint("couchdb source carries no database")
	}

	docID := strings.Join(append([]string{storeIdentifier(store)}, relPath...), "/")
	docURL := strings.TrimRight(base, "/") + "/" + url.PathEscape(db) + "/" + url.PathEscape(docID)
	return docURL, docID, nil
}

// storeIdentifier prefers the stable identifier of identifiable stores.
func storeIdentifier(store model.Referable) string {
	if ident, ok := store.(model.Identifiable); ok && ident.ID() != "" {
		return ident.ID()
	}
	return store.IDShort()
}

func (b *Backend) applyAuth(req *http.Request, source backend.Source) {
	user, pass := source[backend.KeyUsername], source[backend.KeyPassword]
	if user == "" {
		user, pass = b.username, b.password
	}
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
}
