// Package http implements the HTTP protocol backend. Element values live
// behind REST endpoints described by base+href sources; payloads follow the
// value document convention. Requests go through the hardened client in
// internal/httpclient.
package http

import (
	"bytes"
	"context"
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
	defaultTimeout     = 30 * time.Second
	defaultContentType = "application/json"

	// Value documents are tiny; anything past this is a misbehaving server.
	maxBodySize = 1 << 20
)

// Config tunes the HTTP backend.
type Config struct {
	// Timeout bounds each request. Zero means 30 seconds.
	Timeout time.Duration

	// BlockPrivateNetworks refuses RFC1918 and loopback endpoints. Off by
	// default: field devices usually live on the local network.
	BlockPrivateNetworks bool

	// Username, Password, and Token are fallback credentials for basic_sc
	// and bearer_sc sources that carry none of their own.
	Username string
	Password string
	Token    string
}

// Backend synchronizes elements over HTTP. It serves both object and value
// operations; the relative path of object operations extends the endpoint
// path.
type Backend struct {
	client *httpclient.Client
	logger *zap.SugaredLogger

	username string
	password string
	token    string
}

var (
	_ backend.ObjectBackend = (*Backend)(nil)
	_ backend.ValueBackend  = (*Backend)(nil)
)

// New creates an HTTP backend.
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
		logger:   logger.ComponentLogger("backend.http"),
		username: cfg.Username,
		password: cfg.Password,
		token:    cfg.Token,
	}
}

// UpdateObject fetches the endpoint addressed by the store's source plus the
// relative path and applies the returned value to the updated element.
func (b *Backend) UpdateObject(ctx context.Context, updated, store model.Referable, relPath []string, source backend.Source) error {
	return b.fetchInto(ctx, updated, relPath, source)
}

// CommitObject pushes the committed element's value to the endpoint
// addressed by the store's source plus the relative path.
func (b *Backend) CommitObject(ctx context.Context, committed, store model.Referable, relPath []string, source backend.Source) error {
	return b.push(ctx, committed, relPath, source)
}

// UpdateValue fetches the element's own endpoint and applies the value.
func (b *Backend) UpdateValue(ctx context.Context, updated model.Referable, source backend.Source) error {
	return b.fetchInto(ctx, updated, nil, source)
}

// CommitValue pushes the element's value to its own endpoint.
func (b *Backend) CommitValue(ctx context.Context, committed model.Referable, source backend.Source) error {
	return b.push(ctx, committed, nil, source)
}

func (b *Backend) fetchInto(ctx context.Context, el model.Referable, relPath []string, source backend.Source) error {
	endpoint, err := endpointURL(source, relPath)
	if err != nil {
		return err
	}

	method := strings.ToUpper(source[backend.KeyMethod])
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return errors.Wrapf(err, "building %s request for %s", method, endpoint)
	}
	req.Header.Set("Accept", contentTypeOf(source))
	if err := b.applySecurity(req, source); err != nil {
		return err
	}

	raw, err := b.do(req)
	if err != nil {
		return err
	}
	value, err := backend.DecodeValue(raw)
	if err != nil {
		return errors.Wrapf(err, "response from %s", endpoint)
	}

	b.logger.Debugw("Value fetched",
		logger.FieldMethod, method,
		logger.FieldHost, req.URL.Host,
		logger.FieldIDShort, el.IDShort(),
	)
	return model.SetValueString(el, value)
}

func (b *Backend) push(ctx context.Context, el model.Referable, relPath []string, source backend.Source) error {
	endpoint, err := endpointURL(source, relPath)
	if err != nil {
		return err
	}
	value, err := model.ValueString(el)
	if err != nil {
		return err
	}
	payload, err := backend.EncodeValue(value)
	if err != nil {
		return err
	}

	method := commitMethod(source[backend.KeyMethod])
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "building %s request for %s", method, endpoint)
	}
	req.Header.Set("Content-Type", contentTypeOf(source))
	if err := b.applySecurity(req, source); err != nil {
		return err
	}

	if _, err := b.do(req); err != nil {
		return err
	}
	b.logger.Debugw("Value committed",
		logger.FieldMethod, method,
		logger.FieldHost, req.URL.Host,
		logger.FieldIDShort, el.IDShort(),
	)
	return nil
}

// do executes the request and returns the response body. Transport and
// non-2xx failures both surface as backend-unavailable errors.
func (b *Backend) do(req *http.Request) ([]byte, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrBackendUnavailable,
			"%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(errors.ErrBackendUnavailable,
			"%s %s: status %d", req.Method, req.URL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrBackendUnavailable,
			"%s %s: reading body: %v", req.Method, req.URL, err)
	}
	return raw, nil
}

// commitMethod maps the form's method onto a write verb. Forms extracted
// from read-oriented AID endpoints say GET; commits still have to go out as
// writes.
func commitMethod(method string) string {
	switch strings.ToUpper(method) {
	case http.MethodPut:
		return http.MethodPut
	case http.MethodPatch:
		return http.MethodPatch
	default:
		return http.MethodPost
	}
}

func contentTypeOf(source backend.Source) string {
	if ct := source[backend.KeyContentType]; ct != "" {
		return ct
	}
	return defaultContentType
}

// endpointURL joins base, href, and the relative path segments into the
// request URL. relPath segments are escaped; base and href are taken as
// configured.
func endpointURL(source backend.Source, relPath []string) (string, error) {
	base := source[backend.KeyBase]
	if base == "" {
		return "", errors.NewConstraint("http source carries no base")
	}

	raw := strings.TrimRight(base, "/")
	if href := source[backend.KeyHref]; href != "" {
		raw += "/" + strings.TrimLeft(href, "/")
	}
	if len(relPath) == 0 {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrapf(err, "parsing endpoint %q", raw)
	}
	for _, seg := range relPath {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + url.PathEscape(seg)
	}
	return u.String(), nil
}

// applySecurity applies the source's security schemes to the request.
// Scheme names follow the AID vocabulary: nosec_sc, basic_sc, bearer_sc.
// Sources without credentials of their own fall back to the backend's
// configured ones.
func (b *Backend) applySecurity(req *http.Request, source backend.Source) error {
	schemes := source[backend.KeySecurity]
	if schemes == "" {
		return nil
	}
	for _, scheme := range strings.Split(schemes, ",") {
		switch strings.ToLower(strings.TrimSpace(scheme)) {
		case "", "nosec_sc":
		case "basic_sc":
			user, pass := source[backend.KeyUsername], source[backend.KeyPassword]
			if user == "" {
				user, pass = b.username, b.password
			}
			req.SetBasicAuth(user, pass)
		case "bearer_sc":
			token := source[backend.KeyToken]
			if token == "" {
				token = b.token
			}
			req.Header.Set("Authorization", "Bearer "+token)
		default:
			return errors.NewConstraint("unsupported security scheme %q", scheme)
		}
	}
	return nil
}
