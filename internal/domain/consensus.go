package domain

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Consensus returns the largest pivot cluster in samples: the set of samples
// within threshold of a single pivot sample. Ties keep the first pivot. The
// returned slice preserves input order and never aliases samples.
func Consensus(samples []float64, threshold float64) []float64 {
	var best []float64
	for i := range samples {
		cluster := make([]float64, 0, len(samples))
		for j := range samples {
			if math.Abs(samples[i]-samples[j]) <= threshold {
				cluster = append(cluster, samples[j])
			}
		}
		if len(cluster) > len(best) {
			best = cluster
		}
	}
	if best == nil {
		return []float64{}
	}
	return best
}

// Reduce collapses samples to one trusted value.
//
// The consensus average wins when it is nonzero and backed by more than
// halfCount samples. Otherwise lastKnown is returned, unless there is no last
// known value, in which case any non-empty cluster average is used.
func Reduce(samples []float64, threshold float64, halfCount int, lastKnown float64) float64 {
	best := Consensus(samples, threshold)
	avg := mean(best)

	if avg != 0 && len(best) > halfCount {
		return avg
	}
	if lastKnown == 0 && len(best) > 0 {
		return avg
	}
	return lastKnown
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
