// Command genmock writes a synthetic pressure history file for local runs and
// demos. Each reading is produced by fusing simulated noisy sensor batches with
// the same consensus filter the service uses.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/pressure.csv \
//	  -scenario storm \
//	  -hours 12
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-watch-service/internal/domain"
	"github.com/couchcryptid/storm-watch-service/internal/history"
)

// scenario returns the true sea-level pressure at hour h.
type scenario func(h float64) float64

var scenarios = map[string]scenario{
	"steady": func(float64) float64 { return 1013.25 },
	// Fair weather, then a 3 hPa/h drop over the final three hours.
	"storm": func(h float64) float64 {
		return 1013.25 - 3*max(0, h-9)
	},
	"recovery": func(h float64) float64 {
		if h < 6 {
			return 1013.25 - 3*h
		}
		return 995.25 + 1.5*(h-6)
	},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/pressure.csv", "history file to write")
	name := flag.String("scenario", "storm", "steady, storm or recovery")
	hours := flag.Float64("hours", 12, "hours of history to generate")
	interval := flag.Duration("interval", 15*time.Minute, "time between readings")
	altitude := flag.Float64("altitude", 431, "station altitude in metres")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	pressureAt, ok := scenarios[*name]
	if !ok {
		flag.Usage()
		return fmt.Errorf("unknown scenario %q", *name)
	}
	if *hours <= 0 || *hours > domain.RetentionWindow.Hours() {
		return fmt.Errorf("hours must be in (0, %g]", domain.RetentionWindow.Hours())
	}

	// Readings end at a fixed instant so the output is reproducible.
	end := time.Date(2024, time.April, 26, 18, 0, 0, 0, time.UTC)
	start := end.Add(-time.Duration(*hours * float64(time.Hour)))
	domain.SetClock(clockwork.NewFakeClockAt(end))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))

	var readings []domain.Reading
	for t := start; !t.After(end); t = t.Add(*interval) {
		h := t.Sub(start).Hours()
		batch := simulateBatch(rng, pressureAt(h), *altitude)
		readings = append(readings, domain.FuseBatch(batch, readings, t))
	}

	storage := history.NewFileStorage(*out)
	if err := storage.WriteAll(history.Encode(readings)); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	log.Printf("wrote %d readings to %s", len(readings), storage.Path())

	printStats(readings)
	return nil
}

// simulateBatch mimics sensor noise: most barometer samples repeat the true
// value at 0.01 hPa resolution, GPS samples scatter by a few metres, and each
// stream occasionally reports a wild outlier.
func simulateBatch(rng *rand.Rand, pressure, altitude float64) domain.SampleBatch {
	var b domain.SampleBatch
	for range domain.BarometerSampleCount {
		p := pressure + rng.NormFloat64()*0.02
		if rng.IntN(10) == 0 {
			p += 5
		}
		b.Pressures = append(b.Pressures, float64(int(p*100))/100)
	}
	for range domain.GPSSampleCount {
		a := altitude + rng.NormFloat64()*3
		if rng.IntN(8) == 0 {
			a += 150
		}
		b.Altitudes = append(b.Altitudes, a)
	}
	return b
}

func printStats(readings []domain.Reading) {
	forecast := domain.PredictStorm(readings, false, domain.DefaultStormSettings())
	first, last := readings[0], readings[len(readings)-1]
	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("  readings: %d\n", len(readings))
	fmt.Printf("  span:     %s .. %s\n", first.Time.Format(time.RFC3339), last.Time.Format(time.RFC3339))
	fmt.Printf("  pressure: %.2f -> %.2f hPa\n", first.Pressure, last.Pressure)
	fmt.Printf("  trend:    %.2f hPa/h over %d samples\n", forecast.Trend, forecast.Samples)
	fmt.Printf("  storm:    %t\n", forecast.Incoming)
}
