package trace

import (
	"math"
	"math/rand"
	"sort"
)

// degenerateSpread is the smallest usable percentile spread; below it every
// weight defaults to 1.0 instead of dividing by near-zero.
const degenerateSpread = 1e-9

// subsampleSeed keeps the heat-point subsample reproducible across runs.
const subsampleSeed = 42

// Percentile computes the p-th percentile (0..100) of values using linear
// interpolation between closest ranks, the convention the dataset's weight
// statistics were defined with. The input is not modified. NaN for empty
// input.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// NormalizeWeights converts raw scalar values into [0,1] heat weights by
// clipping to the [loPct, hiPct] percentile bounds of the full collection
// and rescaling linearly. Near-constant input (spread below epsilon, or
// non-finite bounds) yields all-1.0 weights through an explicit guard, not
// NaN propagation. The computation is order-independent: any permutation of
// the input produces the same weight for the same value.
func NormalizeWeights(values []float64, loPct, hiPct float64) []float64 {
	weights := make([]float64, len(values))
	if len(values) == 0 {
		return weights
	}

	lo := Percentile(values, loPct)
	hi := Percentile(values, hiPct)

	if math.IsNaN(lo) || math.IsInf(lo, 0) || math.IsNaN(hi) || math.IsInf(hi, 0) ||
		hi-lo <= degenerateSpread {
		for i := range weights {
			weights[i] = 1.0
		}
		return weights
	}

	span := hi - lo
	for i, v := range values {
		w := (v - lo) / span
		if w < 0 {
			w = 0
		} else if w > 1 {
			w = 1
		}
		weights[i] = w
	}
	return weights
}

// SubsampleHeat caps an already-weighted heat point collection at maxPoints
// by drawing a uniform random subsample with a fixed seed. The selection
// preserves the original relative order. A cap of 0 disables sampling.
//
// Sampling happens after normalization by design: the statistics behind the
// rendered weights were computed on the superset the sample was drawn from,
// never on a different population than what is displayed.
func SubsampleHeat(points []HeatPoint, maxPoints int) []HeatPoint {
	if maxPoints <= 0 || len(points) <= maxPoints {
		return points
	}

	rng := rand.New(rand.NewSource(subsampleSeed))
	picked := rng.Perm(len(points))[:maxPoints]
	sort.Ints(picked)

	out := make([]HeatPoint, maxPoints)
	for i, idx := range picked {
		out[i] = points[idx]
	}
	return out
}
