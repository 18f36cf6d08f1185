// Package sampling runs one bounded sampling cycle at a time across the
// barometer and GPS streams and hands the collected batch to a BatchHandler.
package sampling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-watch-service/internal/domain"
	"github.com/couchcryptid/storm-watch-service/internal/observability"
)

var (
	// ErrCycleInProgress is returned by Start while another cycle is sampling or processing.
	ErrCycleInProgress = errors.New("sampling cycle already in progress")
	// ErrCycleTimeout fails a cycle whose streams did not deliver in time.
	ErrCycleTimeout = errors.New("sampling cycle timed out")
)

// DefaultTimeout bounds a cycle when no WithTimeout option is given.
const DefaultTimeout = 2 * time.Minute

// BatchHandler turns a completed sample batch into a stored reading.
type BatchHandler interface {
	HandleBatch(ctx context.Context, batch domain.SampleBatch) (domain.Reading, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout sets how long a cycle may sample before it is failed.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock replaces the clock used for cycle timeouts and durations.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// Coordinator owns the sensor streams and guarantees at most one active cycle.
type Coordinator struct {
	barometer domain.SensorStream
	gps       domain.SensorStream
	handler   BatchHandler
	logger    *slog.Logger
	metrics   *observability.Metrics
	timeout   time.Duration
	clock     clockwork.Clock

	mu     sync.Mutex
	active *Cycle
}

// New creates a Coordinator for the given streams.
func New(barometer, gps domain.SensorStream, handler BatchHandler, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Coordinator {
	c := &Coordinator{
		barometer: barometer,
		gps:       gps,
		handler:   handler,
		logger:    logger,
		metrics:   metrics,
		timeout:   DefaultTimeout,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Active reports whether a cycle currently holds the sensors.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Run starts a cycle and waits for its outcome.
func (c *Coordinator) Run(ctx context.Context) (domain.Reading, error) {
	cy, err := c.Start(ctx)
	if err != nil {
		return domain.Reading{}, err
	}
	return cy.Wait()
}

// Start acquires both sensor streams and begins sampling. The returned Cycle
// finishes asynchronously; call Wait for its outcome. Cancelling ctx while
// sampling fails the cycle.
func (c *Coordinator) Start(ctx context.Context) (*Cycle, error) {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return nil, ErrCycleInProgress
	}
	cy := newCycle(ctx, c)
	c.active = cy
	c.mu.Unlock()

	c.metrics.CycleActive.Set(1)
	c.logger.Debug("sampling cycle started", "cycle_id", cy.ID, "timeout", c.timeout)

	cy.mu.Lock()
	cy.timer = c.clock.AfterFunc(c.timeout, func() { cy.fail(ErrCycleTimeout) })
	cy.stopCtxHook = context.AfterFunc(ctx, func() { cy.fail(ctx.Err()) })
	cy.mu.Unlock()

	if err := cy.acquire(ctx, c.barometer, cy.barometer); err != nil {
		cy.fail(err)
		return nil, fmt.Errorf("start barometer stream: %w", err)
	}
	if err := cy.acquire(ctx, c.gps, cy.gps); err != nil {
		cy.fail(err)
		return nil, fmt.Errorf("start gps stream: %w", err)
	}
	return cy, nil
}

func (c *Coordinator) release(cy *Cycle) {
	c.mu.Lock()
	if c.active == cy {
		c.active = nil
	}
	c.mu.Unlock()
}
