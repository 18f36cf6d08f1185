package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/storm-watch-service/internal/domain"
	"github.com/couchcryptid/storm-watch-service/internal/observability"
)

// ReadingStore is the history the pipeline reads from and appends to.
type ReadingStore interface {
	GetAll() []domain.Reading
	Add(ctx context.Context, r domain.Reading) (domain.Reading, error)
}

// Settings controls storm prediction and alerting.
type Settings struct {
	AlertsEnabled      bool
	SeaLevelCorrection bool
	Storm              domain.StormSettings
}

// Pipeline turns a completed sample batch into a stored reading and, when the
// pressure trend warrants it, a debounced storm notification.
type Pipeline struct {
	store    ReadingStore
	alerts   domain.AlertStateStore
	notifier domain.Notifier
	settings Settings
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates a Pipeline. Pass a nil notifier to disable delivery; alert state
// is still tracked.
func New(store ReadingStore, alerts domain.AlertStateStore, notifier domain.Notifier, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		store:    store,
		alerts:   alerts,
		notifier: notifier,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a sampling cycle has been recorded, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no sampling cycle has completed yet")
	}
	return nil
}

// HandleBatch fuses batch into a reading, records it, and evaluates the storm
// alert. Only a failure to record the reading is returned; alerting problems
// are logged and counted.
func (p *Pipeline) HandleBatch(ctx context.Context, batch domain.SampleBatch) (domain.Reading, error) {
	reading := domain.FuseBatch(batch, p.store.GetAll(), domain.Now())

	stored, err := p.store.Add(ctx, reading)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("record reading: %w", err)
	}
	p.metrics.Pressure.Set(stored.Pressure)
	p.metrics.Altitude.Set(stored.Altitude)

	history := p.store.GetAll()
	p.metrics.HistorySize.Set(float64(len(history)))

	forecast := domain.PredictStorm(history, p.settings.SeaLevelCorrection, p.settings.Storm)
	p.metrics.PressureTrend.Set(forecast.Trend)
	if forecast.Incoming {
		p.metrics.StormIncoming.Set(1)
	} else {
		p.metrics.StormIncoming.Set(0)
	}
	p.logger.Debug("storm forecast",
		"incoming", forecast.Incoming,
		"trend", forecast.Trend,
		"samples", forecast.Samples,
	)

	p.debounce(ctx, forecast)
	p.ready.Store(true)
	return stored, nil
}

// Forecast evaluates the storm heuristic over the current history.
func (p *Pipeline) Forecast() domain.StormForecast {
	return domain.PredictStorm(p.store.GetAll(), p.settings.SeaLevelCorrection, p.settings.Storm)
}
