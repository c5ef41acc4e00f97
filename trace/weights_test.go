package trace

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{100, 100},
		{5, 5.95},
		{95, 95.05},
		{50, 50.5},
	}
	for _, tt := range tests {
		if got := Percentile(values, tt.p); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Percentile(1..100, %v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	if got := Percentile(nil, 50); !math.IsNaN(got) {
		t.Errorf("Percentile(empty) = %v, want NaN", got)
	}
	if got := Percentile([]float64{7}, 50); got != 7 {
		t.Errorf("Percentile(single) = %v, want 7", got)
	}
}

func TestPercentileDoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Percentile(values, 50)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Errorf("input mutated: %v", values)
	}
}

func TestNormalizeWeights(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}

	weights := NormalizeWeights(values, 5, 95)
	for i, w := range weights {
		if w < 0 || w > 1 {
			t.Fatalf("weight[%d] = %v outside [0,1]", i, w)
		}
	}

	// Values below p5 clip to 0, above p95 to 1.
	if weights[0] != 0 {
		t.Errorf("weight for min value = %v, want 0", weights[0])
	}
	if weights[99] != 1 {
		t.Errorf("weight for max value = %v, want 1", weights[99])
	}

	// value 50: (50 - 5.95) / (95.05 - 5.95)
	want := (50.0 - 5.95) / (95.05 - 5.95)
	if got := weights[49]; math.Abs(got-want) > 1e-9 {
		t.Errorf("weight for 50 = %v, want %v", got, want)
	}
}

func TestNormalizeWeightsDegenerate(t *testing.T) {
	constant := []float64{42, 42, 42, 42}
	for i, w := range NormalizeWeights(constant, 5, 95) {
		if w != 1.0 {
			t.Fatalf("constant input weight[%d] = %v, want 1.0", i, w)
		}
	}

	withInf := []float64{1, 2, math.Inf(1)}
	for i, w := range NormalizeWeights(withInf, 5, 95) {
		if w != 1.0 {
			t.Fatalf("non-finite bound weight[%d] = %v, want 1.0", i, w)
		}
	}

	if got := NormalizeWeights(nil, 5, 95); len(got) != 0 {
		t.Errorf("empty input produced %d weights", len(got))
	}
}

func TestNormalizeWeightsOrderIndependent(t *testing.T) {
	a := []float64{5, 1, 9, 3, 7}
	b := []float64{9, 7, 5, 3, 1}

	wa := NormalizeWeights(a, 5, 95)
	wb := NormalizeWeights(b, 5, 95)

	byValueA := map[float64]float64{}
	for i, v := range a {
		byValueA[v] = wa[i]
	}
	for i, v := range b {
		if math.Abs(byValueA[v]-wb[i]) > 1e-12 {
			t.Errorf("weight for %v differs across orderings: %v vs %v", v, byValueA[v], wb[i])
		}
	}
}

func TestSubsampleHeat(t *testing.T) {
	points := make([]HeatPoint, 100)
	for i := range points {
		points[i] = HeatPoint{Lat: float64(i)}
	}

	out := SubsampleHeat(points, 10)
	if len(out) != 10 {
		t.Fatalf("subsample = %d points, want 10", len(out))
	}

	// Relative order of survivors must match the input.
	for i := 1; i < len(out); i++ {
		if out[i].Lat <= out[i-1].Lat {
			t.Fatalf("subsample broke input order: %v", out)
		}
	}

	// Fixed seed: two runs pick identical subsets.
	again := SubsampleHeat(points, 10)
	for i := range out {
		if out[i] != again[i] {
			t.Fatal("subsample is not deterministic")
		}
	}
}

func TestSubsampleHeatNoCap(t *testing.T) {
	points := []HeatPoint{{Lat: 1}, {Lat: 2}}

	if got := SubsampleHeat(points, 0); len(got) != 2 {
		t.Errorf("cap 0 must disable sampling, got %d points", len(got))
	}
	if got := SubsampleHeat(points, 5); len(got) != 2 {
		t.Errorf("under-cap input must pass through, got %d points", len(got))
	}
}
