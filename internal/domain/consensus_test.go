package domain

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

// referenceConsensus scores every pivot independently and keeps the first
// pivot with the maximum score.
func referenceConsensus(samples []float64, threshold float64) []float64 {
	bestPivot, bestSize := -1, 0
	for i := range samples {
		size := 0
		for j := range samples {
			if math.Abs(samples[i]-samples[j]) <= threshold {
				size++
			}
		}
		if size > bestSize {
			bestPivot, bestSize = i, size
		}
	}
	out := []float64{}
	if bestPivot < 0 {
		return out
	}
	for _, s := range samples {
		if math.Abs(samples[bestPivot]-s) <= threshold {
			out = append(out, s)
		}
	}
	return out
}

func TestConsensus_MatchesReference(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	for n := 0; n < 500; n++ {
		size := rng.IntN(12)
		samples := make([]float64, size)
		for i := range samples {
			samples[i] = 1000 + rng.Float64()*2
		}
		threshold := rng.Float64() * 0.5

		got := Consensus(samples, threshold)
		want := referenceConsensus(samples, threshold)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("samples=%v threshold=%v (-want +got):\n%s", samples, threshold, diff)
		}
	}
}

func TestConsensus(t *testing.T) {
	tests := []struct {
		name      string
		samples   []float64
		threshold float64
		want      []float64
	}{
		{name: "empty", samples: nil, threshold: 1, want: []float64{}},
		{name: "single", samples: []float64{5}, threshold: 1, want: []float64{5}},
		{
			name:      "pivot not transitive",
			samples:   []float64{0, 1, 2, 3},
			threshold: 1,
			// pivot 1 collects {0,1,2}; 3 is within 1 of 2 but not of the pivot.
			want: []float64{0, 1, 2},
		},
		{
			name:      "tie keeps first pivot",
			samples:   []float64{10, 11, 50, 51},
			threshold: 1,
			want:      []float64{10, 11},
		},
		{
			name:      "outlier beyond every pivot",
			samples:   []float64{100.0, 100.05, 100.2, 105.0},
			threshold: 0.1,
			want:      []float64{100.0, 100.05},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Consensus(tc.samples, tc.threshold))
		})
	}
}

func TestConsensus_DoesNotAliasInput(t *testing.T) {
	samples := []float64{1, 1, 1}
	got := Consensus(samples, 0)
	got[0] = 99
	assert.Equal(t, []float64{1, 1, 1}, samples)
}

func TestReduce_BarometerMajority(t *testing.T) {
	samples := []float64{1012, 1012, 1012, 1012, 1012, 1012, 1013}
	got := Reduce(samples, PressureThreshold, BarometerSampleCount/2, 1000)
	assert.Equal(t, 1012.0, got)
}

func TestReduce_GPSMajority(t *testing.T) {
	samples := []float64{100, 102, 250, 98, 101}
	got := Reduce(samples, AltitudeThreshold, GPSSampleCount/2, 0)
	assert.InDelta(t, 100.25, got, 1e-9)
}

func TestReduce_NoAgreementFallsBackToLastKnown(t *testing.T) {
	got := Reduce([]float64{990, 1010, 1030}, PressureThreshold, 3, 1005.5)
	assert.Equal(t, 1005.5, got)
}

func TestReduce_ColdStartUsesClusterAverage(t *testing.T) {
	got := Reduce([]float64{990, 1010, 1030}, PressureThreshold, 3, 0)
	assert.Equal(t, 990.0, got)
}

func TestReduce_ZeroAverageFallsBack(t *testing.T) {
	got := Reduce([]float64{0, 0, 0, 0, 0}, AltitudeThreshold, 2, 350)
	assert.Equal(t, 350.0, got)
}

func TestReduce_EmptyBatch(t *testing.T) {
	assert.Equal(t, 0.0, Reduce(nil, PressureThreshold, 3, 0))
	assert.Equal(t, 1001.0, Reduce(nil, PressureThreshold, 3, 1001))
}
