package domain

import "time"

const (
	// BarometerSampleCount is the number of pressure observations per cycle.
	BarometerSampleCount = 7
	// GPSSampleCount is the number of altitude observations per cycle.
	GPSSampleCount = 5

	// PressureThreshold is the pivot distance for pressure clustering, in hPa.
	PressureThreshold = 0.1
	// AltitudeThreshold is the pivot distance for altitude clustering, in metres.
	AltitudeThreshold = 10.0

	// RetentionWindow bounds the age of stored readings.
	RetentionWindow = 48 * time.Hour
)

// Reading is one fused, trusted pressure/altitude sample.
type Reading struct {
	Time     time.Time `json:"time"`
	Pressure float64   `json:"pressure"` // hPa
	Altitude float64   `json:"altitude"` // metres
}

// SampleBatch holds the raw observations collected during one cycle.
type SampleBatch struct {
	Pressures []float64
	Altitudes []float64
}

// FuseBatch reduces a batch to a Reading at time t. The last known values are
// taken from history and used when a stream has no majority cluster.
func FuseBatch(batch SampleBatch, history []Reading, t time.Time) Reading {
	return Reading{
		Time:     t,
		Pressure: Reduce(batch.Pressures, PressureThreshold, BarometerSampleCount/2, LastKnownPressure(history)),
		Altitude: Reduce(batch.Altitudes, AltitudeThreshold, GPSSampleCount/2, LastKnownAltitude(history)),
	}
}

// LastKnownPressure returns the most recent nonzero pressure in history, or 0.
func LastKnownPressure(history []Reading) float64 {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Pressure != 0 {
			return history[i].Pressure
		}
	}
	return 0
}

// LastKnownAltitude returns the most recent nonzero altitude in history, or 0.
func LastKnownAltitude(history []Reading) float64 {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Altitude != 0 {
			return history[i].Altitude
		}
	}
	return 0
}
