package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/couchcryptid/storm-watch-service/internal/config"
	"github.com/couchcryptid/storm-watch-service/internal/domain"
)

// Header values for the action header.
const (
	ActionNotify = "notify"
	ActionCancel = "cancel"
)

// ErrBrokerUnavailable is returned while the circuit breaker is open.
var ErrBrokerUnavailable = errors.New("kafka broker unavailable")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Notifier publishes user notifications to a Kafka topic.
// It implements domain.Notifier.
type Notifier struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured alert topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	return newNotifier(w, logger)
}

func newNotifier(w messageWriter, logger *slog.Logger) *Notifier {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-notifier",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Notifier{writer: w, breaker: cb, logger: logger}
}

// Notify publishes n with action=notify.
func (n *Notifier) Notify(ctx context.Context, notif domain.Notification) error {
	msg, err := serializeToMessage(ActionNotify, notif, domain.Now())
	if err != nil {
		return err
	}
	return n.publish(ctx, ActionNotify, msg)
}

// Cancel publishes a cancel request for notification id.
func (n *Notifier) Cancel(ctx context.Context, id int) error {
	msg, err := serializeToMessage(ActionCancel, domain.Notification{ID: id}, domain.Now())
	if err != nil {
		return err
	}
	return n.publish(ctx, ActionCancel, msg)
}

func (n *Notifier) publish(ctx context.Context, action string, msg kafkago.Message) error {
	_, err := n.breaker.Execute(func() (any, error) {
		return nil, n.writer.WriteMessages(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("publish %s: %w", action, ErrBrokerUnavailable)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", action, err)
	}
	n.logger.Debug("notification published", "action", action, "key", string(msg.Key))
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// alertMessage is the JSON value of a notification message.
type alertMessage struct {
	ID       int             `json:"id"`
	Title    string          `json:"title,omitempty"`
	Body     string          `json:"body,omitempty"`
	Priority domain.Priority `json:"priority,omitempty"`
}

// serializeToMessage marshals a notification into a Kafka message keyed by its id.
func serializeToMessage(action string, n domain.Notification, sentAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(alertMessage(n))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize notification: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(n.ID)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "action", Value: []byte(action)},
			{Key: "sent_at", Value: []byte(sentAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
