// Package mqtt adapts MQTT sensor topics to domain sensor streams.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	qos           = byte(1)
	tokenTimeout  = 5 * time.Second
	connectPoll   = 200 * time.Millisecond
	quiesceMillis = 250
	maxReconnect  = 60 * time.Second

	connectAttempts = 5
	initialBackoff  = time.Second
	keepAlive     = 30 * time.Second
	pingTimeout   = 10 * time.Second
)

// ErrClientStopped is returned once Disconnect has been called.
var ErrClientStopped = errors.New("mqtt client stopped")

// Options identifies the broker connection.
type Options struct {
	Broker   string
	ClientID string
}

// Client wraps a paho client with a context-aware connect, resubscription
// after reconnects and idempotent shutdown.
type Client struct {
	client  paho.Client
	logger  *slog.Logger
	backoff time.Duration

	mu        sync.RWMutex
	connected bool

	// Active subscriptions, replayed after the broker connection is restored.
	subsMu sync.Mutex
	subs   map[string]paho.MessageHandler

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewClient builds a Client for the configured broker. It does not connect.
func NewClient(o Options, logger *slog.Logger) *Client {
	c := &Client{
		logger:  logger,
		backoff: initialBackoff,
		subs:    make(map[string]paho.MessageHandler),
		stopCh:  make(chan struct{}),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	opts.SetCleanSession(true)

	// A clean session drops broker-side subscriptions, so the connect handler
	// replays them after every automatic reconnect.
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(maxReconnect)
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(pingTimeout)

	// Handlers run on their own goroutines so they may unsubscribe.
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(func(_ paho.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", o.Broker)
		go c.resubscribe()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = paho.NewClient(opts)
	return c
}

// Connect establishes the initial broker connection, retrying with exponential
// backoff up to connectAttempts times. It honours ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	backoff := c.backoff
	for attempt := 1; ; attempt++ {
		err := c.connectOnce(ctx)
		if err == nil || errors.Is(err, ErrClientStopped) || ctx.Err() != nil {
			return err
		}
		if attempt >= connectAttempts {
			return fmt.Errorf("after %d attempts: %w", attempt, err)
		}
		c.logger.Warn("mqtt connect failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxReconnect)
	}
}

func (c *Client) connectOnce(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrClientStopped
	default:
	}

	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()
	for {
		if token.WaitTimeout(connectPoll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			c.setConnected(true)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return ErrClientStopped
		default:
		}
	}
}

// Subscribe registers handler for payloads published on topic.
func (c *Client) Subscribe(topic string, handler func(payload []byte)) error {
	if !c.IsConnected() {
		return errors.New("mqtt client not connected")
	}

	cb := func(_ paho.Client, msg paho.Message) {
		handler(msg.Payload())
	}
	if err := waitToken(c.client.Subscribe(topic, qos, cb), "subscribe", topic); err != nil {
		return err
	}
	c.subsMu.Lock()
	c.subs[topic] = cb
	c.subsMu.Unlock()
	c.logger.Debug("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

// Unsubscribe removes the subscription for topic.
func (c *Client) Unsubscribe(topic string) error {
	c.subsMu.Lock()
	delete(c.subs, topic)
	c.subsMu.Unlock()

	if err := waitToken(c.client.Unsubscribe(topic), "unsubscribe", topic); err != nil {
		return err
	}
	c.logger.Debug("unsubscribed from mqtt topic", "topic", topic)
	return nil
}

// resubscribe replays the active subscriptions on the current connection.
func (c *Client) resubscribe() {
	c.subsMu.Lock()
	subs := maps.Clone(c.subs)
	c.subsMu.Unlock()

	for topic, cb := range subs {
		if err := waitToken(c.client.Subscribe(topic, qos, cb), "resubscribe", topic); err != nil {
			c.logger.Warn("mqtt resubscribe failed", "topic", topic, "error", err)
			continue
		}
		c.logger.Info("mqtt resubscribed", "topic", topic)
	}
}

// CheckReadiness reports whether the broker connection is up.
func (c *Client) CheckReadiness(_ context.Context) error {
	if !c.IsConnected() {
		return errors.New("mqtt broker not connected")
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect closes the broker connection. It is safe to call more than once;
// afterwards Connect returns ErrClientStopped.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.client.Disconnect(quiesceMillis)
	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func waitToken(token paho.Token, op, topic string) error {
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("%s timeout for topic %s", op, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%s %s: %w", op, topic, err)
	}
	return nil
}
