//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/storm-watch-service/internal/adapter/kafka"
	"github.com/couchcryptid/storm-watch-service/internal/config"
	"github.com/couchcryptid/storm-watch-service/internal/domain"
	"github.com/couchcryptid/storm-watch-service/internal/history"
	"github.com/couchcryptid/storm-watch-service/internal/observability"
	"github.com/couchcryptid/storm-watch-service/internal/pipeline"
)

const testAlertTopic = "test-storm-alerts"

// alertMessage holds a deserialized message read from the alert topic.
type alertMessage struct {
	Notification domain.Notification
	Key          string
	Headers      map[string]string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func readAlert(ctx context.Context, t *testing.T, consumer *kafkago.Reader) alertMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from alert topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var n domain.Notification
	require.NoError(t, json.Unmarshal(msg.Value, &n), "unmarshal alert message")

	return alertMessage{Notification: n, Key: string(msg.Key), Headers: headers}
}

type memAlertState struct{ active bool }

func (m *memAlertState) AlertActive(context.Context) (bool, error) { return m.active, nil }

func (m *memAlertState) SetAlertActive(_ context.Context, active bool) error {
	m.active = active
	return nil
}

// TestStormAlertEndToEnd runs falling-pressure cycles through the pipeline with
// a file-backed history and a real Kafka notifier, then a recovery cycle, and
// checks the notify and cancel messages on the alert topic.
func TestStormAlertEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAlertTopic)

	cfg := &config.Config{
		KafkaBrokers:    []string{broker},
		KafkaAlertTopic: testAlertTopic,
	}
	notifier := kafka.NewNotifier(cfg, discardLogger())
	t.Cleanup(func() { _ = notifier.Close() })

	now := time.Now().UTC().Truncate(time.Millisecond)
	storage := history.NewFileStorage(t.TempDir() + "/pressure.csv")
	seed := []domain.Reading{
		{Time: now.Add(-2 * time.Hour), Pressure: 1010, Altitude: 431},
		{Time: now.Add(-time.Hour), Pressure: 1007, Altitude: 431},
	}
	require.NoError(t, storage.WriteAll(history.Encode(seed)))
	store := history.NewStore(storage, discardLogger())

	state := &memAlertState{}
	p := pipeline.New(store, state, notifier, pipeline.Settings{
		AlertsEnabled: true,
		Storm:         domain.DefaultStormSettings(),
	}, discardLogger(), observability.NewMetricsForTesting())

	batch := func(pressure float64) domain.SampleBatch {
		return domain.SampleBatch{
			Pressures: []float64{pressure, pressure, pressure, pressure, pressure, pressure, pressure},
			Altitudes: []float64{431, 431, 431, 431, 431},
		}
	}

	_, err := p.HandleBatch(ctx, batch(1004))
	require.NoError(t, err)
	require.True(t, state.active)

	// A steep rebound flattens the trend and clears the episode.
	_, err = p.HandleBatch(ctx, batch(1015))
	require.NoError(t, err)
	require.False(t, state.active)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testAlertTopic,
		GroupID:     fmt.Sprintf("test-alerts-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readAlert(ctx, t, consumer)
	assert.Equal(t, "notify", first.Headers["action"])
	assert.Equal(t, "0", first.Key)
	assert.Equal(t, domain.StormNotification(), first.Notification)
	_, err = time.Parse(time.RFC3339, first.Headers["sent_at"])
	assert.NoError(t, err, "sent_at should be valid RFC3339")

	second := readAlert(ctx, t, consumer)
	assert.Equal(t, "cancel", second.Headers["action"])
	assert.Equal(t, domain.StormNotificationID, second.Notification.ID)
}
