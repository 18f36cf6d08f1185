package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for sampling and alerting.
type Metrics struct {
	// Sampling cycle metrics.
	Cycles        *prometheus.CounterVec // labels: outcome={complete,timeout,cancelled,error}
	CycleDuration prometheus.Histogram
	CycleActive   prometheus.Gauge
	Observations  *prometheus.CounterVec // labels: sensor={barometer,gps}

	// Reading metrics.
	Pressure    prometheus.Gauge
	Altitude    prometheus.Gauge
	HistorySize prometheus.Gauge

	// Storm and alert metrics.
	PressureTrend      prometheus.Gauge
	StormIncoming      prometheus.Gauge
	AlertsSent         prometheus.Counter
	NotificationErrors *prometheus.CounterVec // labels: action={notify,cancel}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Cycles,
		m.CycleDuration,
		m.CycleActive,
		m.Observations,
		m.Pressure,
		m.Altitude,
		m.HistorySize,
		m.PressureTrend,
		m.StormIncoming,
		m.AlertsSent,
		m.NotificationErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already registered"
// panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_watch",
			Name:      "sampling_cycles_total",
			Help:      "Sampling cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storm_watch",
			Name:      "sampling_cycle_duration_seconds",
			Help:      "Time from sensor acquisition to cycle outcome.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}),
		CycleActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_watch",
			Name:      "sampling_cycle_active",
			Help:      "1 while a sampling cycle holds the sensors, 0 otherwise.",
		}),
		Observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_watch",
			Name:      "sensor_observations_total",
			Help:      "Raw sensor observations accepted into a sample batch.",
		}, []string{"sensor"}),
		Pressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_watch",
			Name:      "pressure_hpa",
			Help:      "Pressure of the most recent fused reading.",
		}),
		Altitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_watch",
			Name:      "altitude_meters",
			Help:      "Altitude of the most recent fused reading.",
		}),
		HistorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_watch",
			Name:      "history_readings",
			Help:      "Readings currently retained in history.",
		}),
		PressureTrend: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_watch",
			Name:      "pressure_trend_hpa_per_hour",
			Help:      "Pressure slope over the storm window.",
		}),
		StormIncoming: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_watch",
			Name:      "storm_incoming",
			Help:      "1 when the latest forecast predicts a storm, 0 otherwise.",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_watch",
			Name:      "storm_alerts_sent_total",
			Help:      "Storm notifications handed to the notifier.",
		}),
		NotificationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_watch",
			Name:      "notification_errors_total",
			Help:      "Failed notifier calls by action.",
		}, []string{"action"}),
	}
}
