// Command validate checks a persisted pressure history file for integrity:
// every line parses, readings are strictly ascending, values are physically
// plausible, and nothing is older than the retention window relative to the
// newest reading. It also prints the storm forecast the service would derive.
//
// Usage:
//
//	go run ./cmd/validate -history data/pressure.csv
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/storm-watch-service/internal/domain"
	"github.com/couchcryptid/storm-watch-service/internal/history"
)

// Plausible sensor ranges; anything outside is reported.
const (
	minPressure = 300.0
	maxPressure = 1100.0
	minAltitude = -500.0
	maxAltitude = 9000.0
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	path := flag.String("history", "data/pressure.csv", "history file to validate")
	seaLevel := flag.Bool("sea-level", false, "apply sea-level correction to the forecast")
	flag.Parse()

	if code := run(*path, *seaLevel); code != 0 {
		os.Exit(code)
	}
}

func run(path string, seaLevel bool) int {
	fmt.Println("=== Pressure History Validation ===")
	fmt.Println()

	lines, err := history.NewFileStorage(path).ReadLines()
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "FATAL: %s does not exist\n", path)
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read history: %v\n", err)
		return 1
	}

	readings, err := history.Decode(lines)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: decode history: %v\n", err)
		return 1
	}
	fmt.Printf("  loaded %d readings from %s\n\n", len(readings), path)

	phases := []*phase{
		validateOrdering(readings),
		validateRanges(readings),
		validateRetention(readings),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = "FAIL"
			allPassed = false
		}
		fmt.Printf("[%s] %s\n", status, p.name)
		for _, e := range p.errors {
			fmt.Printf("    - %s\n", e)
		}
	}

	if len(readings) > 0 {
		forecast := domain.PredictStorm(readings, seaLevel, domain.DefaultStormSettings())
		fmt.Println()
		fmt.Printf("  forecast: trend %.2f hPa/h over %d samples, storm=%t\n",
			forecast.Trend, forecast.Samples, forecast.Incoming)
	}

	fmt.Println()
	if !allPassed {
		fmt.Println("RESULT: FAIL")
		return 1
	}
	fmt.Println("RESULT: PASS")
	return 0
}

func validateOrdering(readings []domain.Reading) *phase {
	p := &phase{name: "readings strictly ascending"}
	for i := 1; i < len(readings); i++ {
		prev, cur := readings[i-1].Time, readings[i].Time
		switch {
		case cur.Before(prev):
			p.errorf("reading %d: %s precedes %s", i+1, cur.Format(time.RFC3339), prev.Format(time.RFC3339))
		case cur.Equal(prev):
			p.errorf("reading %d: duplicate timestamp %s", i+1, cur.Format(time.RFC3339))
		}
	}
	return p
}

func validateRanges(readings []domain.Reading) *phase {
	p := &phase{name: "values physically plausible"}
	for i, r := range readings {
		if math.IsNaN(r.Pressure) || r.Pressure < minPressure || r.Pressure > maxPressure {
			p.errorf("reading %d: pressure %g hPa out of range", i+1, r.Pressure)
		}
		if math.IsNaN(r.Altitude) || r.Altitude < minAltitude || r.Altitude > maxAltitude {
			p.errorf("reading %d: altitude %g m out of range", i+1, r.Altitude)
		}
	}
	return p
}

func validateRetention(readings []domain.Reading) *phase {
	p := &phase{name: "within retention window of newest reading"}
	if len(readings) == 0 {
		return p
	}
	newest := readings[len(readings)-1].Time
	for _, r := range readings {
		if newest.Sub(r.Time) > domain.RetentionWindow {
			p.errorf("reading at %s is older than %s", r.Time.Format(time.RFC3339), domain.RetentionWindow)
		}
	}
	return p
}
