// Package ws implements a WebSocket value backend and subscriber on
// gorilla/websocket. It registers under the custom WS protocol string and
// exists to exercise the registry's extension point: protocols are open
// strings, not a closed enum. Commits push one value frame, updates read
// one, subscriptions stream frames until stopped.
package ws

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/logger"
	"github.com/twinforge/aaskit/model"
)

// Protocol is the identifier this backend is conventionally registered for.
const Protocol = backend.Protocol("WS")

const (
	defaultDialTimeout = 10 * time.Second
	defaultReadTimeout = 10 * time.Second
)

// Config tunes the WebSocket backend.
type Config struct {
	// DialTimeout bounds the handshake. Zero means 10 seconds.
	DialTimeout time.Duration

	// ReadTimeout bounds one-shot reads and frame writes. Zero means 10
	// seconds.
	ReadTimeout time.Duration
}

// Backend exchanges value frames over WebSocket connections. Sources carry
// base (a ws:// or wss:// URL) and optionally href.
type Backend struct {
	dialer      *websocket.Dialer
	readTimeout time.Duration
	logger      *zap.SugaredLogger
}

var (
	_ backend.ValueBackend    = (*Backend)(nil)
	_ backend.ValueSubscriber = (*Backend)(nil)
)

// New creates a WebSocket backend.
func New(cfg Config) *Backend {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	return &Backend{
		dialer:      &websocket.Dialer{HandshakeTimeout: dialTimeout},
		readTimeout: readTimeout,
		logger:      logger.ComponentLogger("backend.ws"),
	}
}

// CommitValue pushes the element's value document as a single text frame.
func (b *Backend) CommitValue(ctx context.Context, committed model.Referable, source backend.Source) error {
	endpoint, err := endpointURL(source)
	if err != nil {
		return err
	}
	value, err := model.ValueString(committed)
	if err != nil {
		return err
	}
	payload, err := backend.EncodeValue(value)
	if err != nil {
		return err
	}

	conn, err := b.dial(ctx, endpoint)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(b.readTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "writing to %s: %v", endpoint, err)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	b.logger.Debugw("Value frame pushed",
		logger.FieldHost, endpoint,
		logger.FieldIDShort, committed.IDShort(),
	)
	return nil
}

// UpdateValue reads one value frame from the endpoint and applies it.
func (b *Backend) UpdateValue(ctx context.Context, updated model.Referable, source backend.Source) error {
	endpoint, err := endpointURL(source)
	if err != nil {
		return err
	}
	conn, err := b.dial(ctx, endpoint)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(b.readTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "reading from %s: %v", endpoint, err)
	}
	value, err := backend.DecodeValue(payload)
	if err != nil {
		return errors.Wrapf(err, "frame from %s", endpoint)
	}

	b.logger.Debugw("Value frame read",
		logger.FieldHost, endpoint,
		logger.FieldIDShort, updated.IDShort(),
	)
	return model.SetValueString(updated, value)
}

// SubscribeValue holds the connection open and delivers every frame until
// the handle is stopped, the context is canceled, or the peer closes.
func (b *Backend) SubscribeValue(ctx context.Context, source backend.Source, deliver func(payload []byte)) (backend.Subscription, error) {
	endpoint, err := endpointURL(source)
	if err != nil {
		return nil, err
	}
	conn, err := b.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	sub := &subscription{
		conn:    conn,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go sub.read(deliver, b.logger)
	go sub.watch(ctx)

	b.logger.Debugw("Subscription started", logger.FieldHost, endpoint)
	return sub, nil
}

func (b *Backend) dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	conn, _, err := b.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrBackendUnavailable, "dialing %s: %v", endpoint, err)
	}
	return conn, nil
}

type subscription struct {
	conn     *websocket.Conn
	haltOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

func (s *subscription) read(deliver func([]byte), log *zap.SugaredLogger) {
	defer close(s.done)
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.halted() {
				log.Debugw("Subscription read ended", logger.FieldError, err)
			}
			return
		}
		deliver(payload)
	}
}

// watch ties the connection to the context; it also exits when the read
// loop dies on its own so no goroutine outlives the subscription.
func (s *subscription) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		s.halt()
	case <-s.stopped:
	case <-s.done:
	}
}

func (s *subscription) halt() {
	s.haltOnce.Do(func() {
		close(s.stopped)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}

func (s *subscription) halted() bool {
	select {
	case <-s.stopped:
		return true
	default:
		return false
	}
}

// Stop closes the connection and waits for the read loop to exit. Safe to
// call more than once.
func (s *subscription) Stop() {
	s.halt()
	<-s.done
}

// endpointURL joins base and href into the dial target.
func endpointURL(source backend.Source) (string, error) {
	base := source[backend.KeyBase]
	if base == "" {
		return "", errors.NewConstraint("ws source carries no base")
	}
	if !strings.HasPrefix(base, "ws://") && !strings.HasPrefix(base, "wss://") {
		return "", errors.NewConstraint("ws base %q must use ws:// or wss://", base)
	}
	endpoint := strings.TrimRight(base, "/")
	if href := source[backend.KeyHref]; href != "" {
		endpoint += "/" + strings.TrimLeft(href, "/")
	}
	return endpoint, nil
}
