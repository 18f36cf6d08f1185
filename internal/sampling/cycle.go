package sampling

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-watch-service/internal/domain"
)

// State is the lifecycle position of a sampling cycle.
type State int

const (
	StateIdle State = iota
	StateSampling
	StateProcessing
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateProcessing:
		return "processing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// stream tracks one sensor's share of a cycle.
type stream struct {
	name    string
	want    int
	values  []float64
	full    bool
	sub     domain.Subscription
	stopped bool // stop requested, possibly before sub was attached
	once    sync.Once
}

// Cycle is a single sampling run. Fields behind mu are touched by stream
// callbacks, the timeout timer and context cancellation.
type Cycle struct {
	ID string

	c           *Coordinator
	ctx         context.Context
	started     time.Time
	timer       clockwork.Timer
	stopCtxHook func() bool

	mu        sync.Mutex
	state     State
	barometer *stream
	gps       *stream
	reading   domain.Reading
	err       error

	done chan struct{}
}

func newCycle(ctx context.Context, c *Coordinator) *Cycle {
	return &Cycle{
		ID:        uuid.NewString(),
		c:         c,
		ctx:       ctx,
		started:   c.clock.Now(),
		state:     StateSampling,
		barometer: &stream{name: "barometer", want: domain.BarometerSampleCount},
		gps:       &stream{name: "gps", want: domain.GPSSampleCount},
		done:      make(chan struct{}),
	}
}

// State returns the cycle's current state.
func (cy *Cycle) State() State {
	cy.mu.Lock()
	defer cy.mu.Unlock()
	return cy.state
}

// Done is closed once the cycle reaches Complete or Failed.
func (cy *Cycle) Done() <-chan struct{} {
	return cy.done
}

// Wait blocks until the cycle finishes and returns the stored reading or the
// reason it failed.
func (cy *Cycle) Wait() (domain.Reading, error) {
	<-cy.done
	cy.mu.Lock()
	defer cy.mu.Unlock()
	return cy.reading, cy.err
}

func (cy *Cycle) acquire(ctx context.Context, src domain.SensorStream, s *stream) error {
	sub, err := src.Start(ctx, func(v float64) bool { return cy.observe(s, v) })
	if err != nil {
		return err
	}

	cy.mu.Lock()
	s.sub = sub
	stop := s.stopped
	cy.mu.Unlock()

	if stop {
		cy.stopStream(s)
	}
	return nil
}

// observe records one observation. It returns false once the stream should
// stop delivering.
func (cy *Cycle) observe(s *stream, v float64) bool {
	cy.mu.Lock()
	if cy.state != StateSampling || s.full {
		cy.mu.Unlock()
		return false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		cy.mu.Unlock()
		cy.c.logger.Debug("discarding non-finite observation", "cycle_id", cy.ID, "sensor", s.name)
		return true
	}

	s.values = append(s.values, v)
	s.full = len(s.values) >= s.want
	if s.full {
		s.stopped = true
	}
	both := cy.barometer.full && cy.gps.full
	if both {
		cy.state = StateProcessing
	}
	cy.mu.Unlock()

	cy.c.metrics.Observations.WithLabelValues(s.name).Inc()

	if s.full {
		go cy.stopStream(s)
	}
	if both {
		go cy.process()
	}
	return !s.full
}

// stopStream calls Stop on the stream's subscription at most once. When the
// subscription has not been attached yet, acquire stops it on arrival.
func (cy *Cycle) stopStream(s *stream) {
	cy.mu.Lock()
	s.stopped = true
	sub := s.sub
	cy.mu.Unlock()

	if sub == nil {
		return
	}
	s.once.Do(func() {
		if err := sub.Stop(); err != nil {
			cy.c.logger.Warn("stop sensor stream", "cycle_id", cy.ID, "sensor", s.name, "error", err)
		}
	})
}

func (cy *Cycle) stopStreams() {
	cy.stopStream(cy.barometer)
	cy.stopStream(cy.gps)
}

func (cy *Cycle) process() {
	cy.stopStreams()

	cy.mu.Lock()
	batch := domain.SampleBatch{
		Pressures: append([]float64(nil), cy.barometer.values...),
		Altitudes: append([]float64(nil), cy.gps.values...),
	}
	cy.mu.Unlock()

	// Processing must not be cut short by the sampling context.
	reading, err := cy.c.handler.HandleBatch(context.WithoutCancel(cy.ctx), batch)

	cy.mu.Lock()
	if err != nil {
		cy.state = StateFailed
		cy.err = err
	} else {
		cy.state = StateComplete
		cy.reading = reading
	}
	cy.mu.Unlock()

	cy.finish()
}

// fail aborts a cycle that is still sampling. Later outcomes are ignored.
func (cy *Cycle) fail(err error) {
	cy.mu.Lock()
	if cy.state != StateSampling {
		cy.mu.Unlock()
		return
	}
	cy.state = StateFailed
	cy.err = err
	cy.mu.Unlock()

	cy.stopStreams()
	cy.finish()
}

func (cy *Cycle) finish() {
	cy.mu.Lock()
	timer, stopCtxHook := cy.timer, cy.stopCtxHook
	state, reading, err := cy.state, cy.reading, cy.err
	pressures, altitudes := len(cy.barometer.values), len(cy.gps.values)
	cy.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if stopCtxHook != nil {
		stopCtxHook()
	}

	c := cy.c
	outcome := outcomeOf(err)
	c.metrics.Cycles.WithLabelValues(outcome).Inc()
	c.metrics.CycleDuration.Observe(c.clock.Since(cy.started).Seconds())
	c.metrics.CycleActive.Set(0)

	switch {
	case state == StateComplete:
		c.logger.Info("sampling cycle complete",
			"cycle_id", cy.ID,
			"time", reading.Time,
			"pressure", reading.Pressure,
			"altitude", reading.Altitude,
		)
	case errors.Is(err, ErrCycleTimeout):
		c.logger.Warn("sampling cycle timed out",
			"cycle_id", cy.ID,
			"pressure_samples", pressures,
			"altitude_samples", altitudes,
		)
	case outcome == "cancelled":
		c.logger.Info("sampling cycle cancelled", "cycle_id", cy.ID, "error", err)
	default:
		c.logger.Error("sampling cycle failed", "cycle_id", cy.ID, "outcome", outcome, "error", err)
	}

	c.release(cy)
	close(cy.done)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "complete"
	case errors.Is(err, ErrCycleTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
