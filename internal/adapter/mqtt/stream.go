package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/storm-watch-service/internal/domain"
)

// subscriber is the slice of Client a Stream needs.
type subscriber interface {
	Subscribe(topic string, handler func(payload []byte)) error
	Unsubscribe(topic string) error
}

// observation is the JSON payload published by the sensor nodes. Each topic
// carries one of the fields.
type observation struct {
	Pressure *float64 `json:"pressure_hpa,omitempty"`
	Altitude *float64 `json:"altitude_m,omitempty"`
}

// Stream delivers one numeric field from an MQTT topic as a domain.SensorStream.
type Stream struct {
	client subscriber
	topic  string
	field  string
	value  func(observation) *float64
	logger *slog.Logger
}

// NewBarometerStream reads pressure_hpa from topic.
func NewBarometerStream(client subscriber, topic string, logger *slog.Logger) *Stream {
	return &Stream{
		client: client,
		topic:  topic,
		field:  "pressure_hpa",
		value:  func(o observation) *float64 { return o.Pressure },
		logger: logger,
	}
}

// NewGPSStream reads altitude_m from topic.
func NewGPSStream(client subscriber, topic string, logger *slog.Logger) *Stream {
	return &Stream{
		client: client,
		topic:  topic,
		field:  "altitude_m",
		value:  func(o observation) *float64 { return o.Altitude },
		logger: logger,
	}
}

// Start subscribes to the topic and forwards each decoded value to fn until
// fn returns false or the subscription is stopped.
func (s *Stream) Start(_ context.Context, fn domain.ObservationFunc) (domain.Subscription, error) {
	sub := &subscription{stream: s}

	handler := func(payload []byte) {
		if sub.done.Load() {
			return
		}
		v, err := s.decode(payload)
		if err != nil {
			s.logger.Warn("skipping malformed sensor payload",
				"topic", s.topic,
				"error", err,
				"payload", string(payload),
			)
			return
		}
		if !fn(v) {
			sub.done.Store(true)
		}
	}

	if err := s.client.Subscribe(s.topic, handler); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	return sub, nil
}

func (s *Stream) decode(payload []byte) (float64, error) {
	var o observation
	if err := json.Unmarshal(payload, &o); err != nil {
		return 0, fmt.Errorf("decode payload: %w", err)
	}
	v := s.value(o)
	if v == nil {
		return 0, fmt.Errorf("missing %s", s.field)
	}
	return *v, nil
}

type subscription struct {
	stream *Stream
	done   atomic.Bool
	once   sync.Once
	err    error
}

// Stop unsubscribes from the topic. Subsequent calls return the first result.
func (s *subscription) Stop() error {
	s.done.Store(true)
	s.once.Do(func() {
		s.err = s.stream.client.Unsubscribe(s.stream.topic)
	})
	return s.err
}
