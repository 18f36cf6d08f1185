package domain

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// StormSettings tunes the pressure-trend heuristic.
type StormSettings struct {
	Window     time.Duration // trailing window evaluated, measured from the newest reading
	DropRate   float64       // hPa per hour; a slope strictly below -DropRate flags a storm
	MinSamples int           // distinct timestamps required for a verdict
}

// DefaultStormSettings returns a 3 hour window with a 6 hPa / 3 h drop threshold.
func DefaultStormSettings() StormSettings {
	return StormSettings{
		Window:     3 * time.Hour,
		DropRate:   2.0,
		MinSamples: 3,
	}
}

// StormForecast is the outcome of evaluating the pressure trend.
type StormForecast struct {
	Incoming bool    `json:"incoming"`
	Trend    float64 `json:"trend_hpa_per_hour"`
	Samples  int     `json:"samples"`
}

// IsStormIncoming reports whether history indicates incoming severe weather.
func IsStormIncoming(history []Reading, correctForAltitude bool, settings StormSettings) bool {
	return PredictStorm(history, correctForAltitude, settings).Incoming
}

// PredictStorm computes the pressure trend over the trailing window of history
// (ascending by time). Insufficient data yields a zero forecast.
func PredictStorm(history []Reading, correctForAltitude bool, settings StormSettings) StormForecast {
	window := recentWindow(history, settings.Window)
	if len(window) == 0 {
		return StormForecast{}
	}

	origin := window[0].Time
	hours := make([]float64, len(window))
	pressures := make([]float64, len(window))
	distinct := make(map[int64]struct{}, len(window))
	for i, r := range window {
		hours[i] = r.Time.Sub(origin).Hours()
		pressures[i] = r.Pressure
		if correctForAltitude {
			pressures[i] = SeaLevelPressure(r.Pressure, r.Altitude)
		}
		distinct[r.Time.UnixMilli()] = struct{}{}
	}

	forecast := StormForecast{Samples: len(distinct)}
	if len(distinct) < settings.MinSamples || len(distinct) < 2 {
		return forecast
	}

	_, slope := stat.LinearRegression(hours, pressures, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return forecast
	}

	forecast.Trend = slope
	forecast.Incoming = slope < -settings.DropRate
	return forecast
}

// SeaLevelPressure normalises a station pressure (hPa) measured at altitude
// (metres) to sea level using the standard barometric formula.
func SeaLevelPressure(pressure, altitude float64) float64 {
	return pressure * math.Pow(1-altitude/44330.0, -5.255)
}

// recentWindow returns the readings no older than window relative to the
// newest reading. history must be ascending by time.
func recentWindow(history []Reading, window time.Duration) []Reading {
	if len(history) == 0 {
		return nil
	}
	newest := history[len(history)-1].Time
	start := len(history)
	for start > 0 && newest.Sub(history[start-1].Time) <= window {
		start--
	}
	return history[start:]
}
