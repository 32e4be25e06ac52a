// Package mqtt implements the MQTT value backend and subscriber on
// eclipse/paho. Commits publish retained value documents to the form's
// topic; updates perform a bounded one-shot read, which normally returns
// the broker-retained last value. Every session uses a fresh uuid-suffixed
// client id so parallel operations never evict each other from the broker.
package mqtt

import (
	"context"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/logger"
	"github.com/twinforge/aaskit/model"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultQoS            = 1

	// Milliseconds paho waits for in-flight work during disconnect.
	disconnectQuiesce = 250
)

// Config tunes the MQTT backend.
type Config struct {
	// ConnectTimeout bounds broker connection establishment.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the one-shot read of UpdateValue.
	ReadTimeout time.Duration

	// QoS for publishes and subscriptions. Defaults to 1.
	QoS byte
}

// Backend synchronizes element values over MQTT. Sources carry base (the
// broker, scheme optional) and topic.
type Backend struct {
	connectTimeout time.Duration
	readTimeout    time.Duration
	qos            byte
	logger         *zap.SugaredLogger
}

var (
	_ backend.ValueBackend    = (*Backend)(nil)
	_ backend.ValueSubscriber = (*Backend)(nil)
)

// New creates an MQTT backend.
func New(cfg Config) *Backend {
	b := &Backend{
		connectTimeout: cfg.ConnectTimeout,
		readTimeout:    cfg.ReadTimeout,
		qos:            cfg.QoS,
		logger:         logger.ComponentLogger("backend.mqtt"),
	}
	if b.connectTimeout <= 0 {
		b.connectTimeout = defaultConnectTimeout
	}
	if b.readTimeout <= 0 {
		b.readTimeout = defaultReadTimeout
	}
	if cfg.QoS == 0 {
		b.qos = defaultQoS
	}
	return b
}

// CommitValue publishes the element's value document to the source topic.
// The message is retained so one-shot updates and late subscribers see the
// last committed value.
func (b *Backend) CommitValue(ctx context.Context, committed model.Referable, source backend.Source) error {
	topic, broker, err := endpoint(source)
	if err != nil {
		return err
	}
	b.noteControlPacket(source, "publish")

	value, err := model.ValueString(committed)
	if err != nil {
		return err
	}
	payload, err := backend.EncodeValue(value)
	if err != nil {
		return err
	}

	client, err := b.connect(source, broker, "commit")
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectQuiesce)

	tok := client.Publish(topic, b.qos, true, payload)
	if !tok.WaitTimeout(b.readTimeout) {
		return errors.Wrapf(errors.ErrBackendUnavailable,
			"publishing to %s on %s: timeout", topic, broker)
	}
	if err := tok.Error(); err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable,
			"publishing to %s on %s: %v", topic, broker, err)
	}

	b.logger.Debugw("Value published",
		logger.FieldTopic, topic,
		logger.FieldHost, broker,
		logger.FieldIDShort, committed.IDShort(),
	)
	return nil
}

// UpdateValue reads one message from the source topic, bounded by the read
// timeout and the context, and applies it to the element.
func (b *Backend) UpdateValue(ctx context.Context, updated model.Referable, source backend.Source) error {
	topic, broker, err := endpoint(source)
	if err != nil {
		return err
	}
	b.noteControlPacket(source, "subscribe")

	client, err := b.connect(source, broker, "update")
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectQuiesce)

	first := make(chan []byte, 1)
	tok := client.Subscribe(topic, b.qos, func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case first <- msg.Payload():
		default:
		}
	})
	if !tok.WaitTimeout(b.connectTimeout) {
		return errors.Wrapf(errors.ErrBackendUnavailable,
			"subscribing to %s on %s: timeout", topic, broker)
	}
	if err := tok.Error(); err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable,
			"subscribing to %s on %s: %v", topic, broker, err)
	}
	defer client.Unsubscribe(topic)

	select {
	case payload := <-first:
		value, err := backend.DecodeValue(payload)
		if err != nil {
			return errors.Wrapf(err, "message on %s", topic)
		}
		b.logger.Debugw("Value read",
			logger.FieldTopic, topic,
			logger.FieldIDShort, updated.IDShort(),
		)
		return model.SetValueString(updated, value)

	case <-ctx.Done():
		return errors.Wrapf(errors.ErrBackendUnavailable,
			"reading %s on %s: %v", topic, broker, ctx.Err())

	case <-time.After(b.readTimeout):
		return errors.Wrapf(errors.ErrBackendUnavailable,
			"no retained value on %s within %s", topic, b.readTimeout)
	}
}

// SubscribeValue subscribes to the source topic and delivers every payload
// until the handle is stopped or the context is canceled. The session
// reconnects on broker loss and re-establishes the subscription.
func (b *Backend) SubscribeValue(ctx context.Context, source backend.Source, deliver func(payload []byte)) (backend.Subscription, error) {
	topic, broker, err := endpoint(source)
	if err != nil {
		return nil, err
	}
	b.noteControlPacket(source, "subscribe")

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		deliver(msg.Payload())
	}

	opts := b.clientOptions(source, broker, "subscribe")
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.logger.Warnw("Broker connection lost",
			logger.FieldHost, broker, logger.FieldError, err)
	})
	// Re-establishes the subscription after a reconnect. Fires on the
	// initial connect too, where the explicit subscribe below turns it
	// into a refresh.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		c.Subscribe(topic, b.qos, handler)
	})

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(b.connectTimeout) {
		client.Disconnect(0)
		return nil, errors.Wrapf(errors.ErrBackendUnavailable,
			"connecting to %s: timeout", broker)
	}
	if err := tok.Error(); err != nil {
		return nil, errors.Wrapf(errors.ErrBackendUnavailable,
			"connecting to %s: %v", broker, err)
	}

	stok := client.Subscribe(topic, b.qos, handler)
	if !stok.WaitTimeout(b.connectTimeout) || stok.Error() != nil {
		client.Disconnect(disconnectQuiesce)
		return nil, errors.Wrapf(errors.ErrBackendUnavailable,
			"subscribing to %s on %s failed", topic, broker)
	}

	sub := &subscription{
		client:  client,
		topic:   topic,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go sub.watch(ctx)

	b.logger.Debugw("Subscription started",
		logger.FieldTopic, topic,
		logger.FieldHost, broker,
	)
	return sub, nil
}

type subscription struct {
	client   mqtt.Client
	topic    string
	haltOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

func (s *subscription) watch(ctx context.Context) {
	defer close(s.done)
	select {
	case <-ctx.Done():
		s.halt()
	case <-s.stopped:
	}
}

func (s *subscription) halt() {
	s.haltOnce.Do(func() {
		tok := s.client.Unsubscribe(s.topic)
		tok.WaitTimeout(time.Second)
		s.client.Disconnect(disconnectQuiesce)
		close(s.stopped)
	})
}

// Stop unsubscribes and disconnects, then waits for the watch goroutine.
// Safe to call more than once.
func (s *subscription) Stop() {
	s.halt()
	<-s.done
}

func (b *Backend) connect(source backend.Source, broker, role string) (mqtt.Client, error) {
	client := mqtt.NewClient(b.clientOptions(source, broker, role))
	tok := client.Connect()
	if !tok.WaitTimeout(b.connectTimeout) {
		client.Disconnect(0)
		return nil, errors.Wrapf(errors.ErrBackendUnavailable,
			"connecting to %s: timeout", broker)
	}
	if err := tok.Error(); err != nil {
		return nil, errors.Wrapf(errors.ErrBackendUnavailable,
			"connecting to %s: %v", broker, err)
	}
	return client, nil
}

func (b *Backend) clientOptions(source backend.Source, broker, role string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker("tcp://" + broker).
		SetClientID(clientID(role)).
		SetConnectTimeout(b.connectTimeout).
		SetAutoReconnect(false)
	if user := source[backend.KeyUsername]; user != "" {
		opts.SetUsername(user)
		opts.SetPassword(source[backend.KeyPassword])
	}
	return opts
}

// noteControlPacket flags forms whose advisory control packet does not
// match the operation about to run.
func (b *Backend) noteControlPacket(source backend.Source, expected string) {
	cp := source[backend.KeyControlPacket]
	if cp != "" && !strings.EqualFold(cp, expected) {
		b.logger.Debugw("Form control packet differs from operation",
			logger.FieldTopic, source[backend.KeyTopic],
			"control_packet", cp,
			logger.FieldOperation, expected,
		)
	}
}

func clientID(role string) string {
	return "aaskit-" + role + "-" + uuid.NewString()[:8]
}

// endpoint validates the source and returns its topic and broker address.
func endpoint(source backend.Source) (topic, broker string, err error) {
	topic = source[backend.KeyTopic]
	if topic == "" {
		return "", "", errors.NewConstraint("mqtt source carries no topic")
	}
	broker, err = brokerAddr(source[backend.KeyBase])
	if err != nil {
		return "", "", err
	}
	return topic, broker, nil
}

// brokerAddr strips the scheme from the configured base and defaults the
// port, leaving host:port for paho.
func brokerAddr(base string) (string, error) {
	if base == "" {
		return "", errors.NewConstraint("mqtt source carries no base")
	}
	addr := base
	for _, scheme := range []string{"mqtt://", "mqtts://", "tcp://", "ssl://"} {
		if strings.HasPrefix(addr, scheme) {
			addr = strings.TrimPrefix(addr, scheme)
			break
		}
	}
	addr = strings.TrimSuffix(addr, "/")
	if addr == "" {
		return "", errors.NewConstraint("mqtt base %q has no host", base)
	}
	if !strings.Contains(addr, ":") {
		addr += ":1883"
	}
	return addr, nil
}
