package stats

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/stat"

	"bgsuppress/internal/models"
	"bgsuppress/pkg/window"
)

func pushAll(t *testing.T, w *window.Window, frames ...[]float64) {
	t.Helper()
	for i, px := range frames {
		if _, err := w.Push(&models.Frame{Pixels: px, Width: len(px), Height: 1, Index: i}); err != nil {
			t.Fatalf("Push %d failed: %v", i, err)
		}
	}
}

func almostEqual(a, b, tol float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// TestMeanAndStdAgainstGonum compares the accumulator with gonum's reference
// statistics on random windows of varying fill level
func TestMeanAndStdAgainstGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n = 64

	for k := 1; k <= 6; k++ {
		w, _ := window.New(6)
		frames := make([][]float64, k)
		for i := range frames {
			frames[i] = make([]float64, n)
			for j := range frames[i] {
				frames[i][j] = rng.Float64() * 255
			}
		}
		pushAll(t, w, frames...)

		acc := NewAccumulator()
		res, err := acc.Compute(w)
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		if len(res.Mean) != n || len(res.Std) != n || res.Count != k {
			t.Fatalf("Unexpected result shape: mean %d std %d count %d", len(res.Mean), len(res.Std), res.Count)
		}

		column := make([]float64, k)
		for j := 0; j < n; j++ {
			for i := range frames {
				column[i] = frames[i][j]
			}
			wantMean := stat.Mean(column, nil)
			wantVar := stat.PopVariance(column, nil)

			if !almostEqual(res.Mean[j], wantMean, 1e-9) {
				t.Errorf("k=%d pixel %d: mean %f, want %f", k, j, res.Mean[j], wantMean)
			}
			if res.Variance[j] < 0 {
				t.Errorf("k=%d pixel %d: negative variance %f", k, j, res.Variance[j])
			}
			if !almostEqual(res.Variance[j], wantVar, 1e-9) {
				t.Errorf("k=%d pixel %d: variance %f, want %f", k, j, res.Variance[j], wantVar)
			}
			if res.Std[j] != math.Sqrt(res.Variance[j]) {
				t.Errorf("k=%d pixel %d: std %f is not sqrt of variance %f", k, j, res.Std[j], res.Variance[j])
			}
		}
	}
}

// TestMeanUsesCurrentSize checks the divisor during start-up, before the window is full
func TestMeanUsesCurrentSize(t *testing.T) {
	w, _ := window.New(5)
	pushAll(t, w, []float64{10, 0}, []float64{20, 4})

	mean, err := ComputeMean(w)
	if err != nil {
		t.Fatalf("ComputeMean failed: %v", err)
	}
	if mean[0] != 15 || mean[1] != 2 {
		t.Errorf("Expected [15 2], got %v", mean)
	}
}

func TestConstantWindowHasZeroStd(t *testing.T) {
	w, _ := window.New(3)
	pushAll(t, w, []float64{7, 7}, []float64{7, 7}, []float64{7, 7})

	mean, _ := ComputeMean(w)
	std, err := ComputeStd(w, mean)
	if err != nil {
		t.Fatalf("ComputeStd failed: %v", err)
	}
	for i, s := range std {
		if s != 0 {
			t.Errorf("pixel %d: expected std 0, got %f", i, s)
		}
	}
}

func TestEmptyWindow(t *testing.T) {
	w, _ := window.New(3)
	if _, err := ComputeMean(w); !errors.Is(err, ErrEmptyWindow) {
		t.Errorf("Expected ErrEmptyWindow from mean, got %v", err)
	}
	if _, err := ComputeVariance(w, nil); !errors.Is(err, ErrEmptyWindow) {
		t.Errorf("Expected ErrEmptyWindow from variance, got %v", err)
	}
	if _, err := NewAccumulator().Compute(w); !errors.Is(err, ErrEmptyWindow) {
		t.Errorf("Expected ErrEmptyWindow from compute, got %v", err)
	}
}

func TestVarianceRejectsShortMean(t *testing.T) {
	w, _ := window.New(2)
	pushAll(t, w, []float64{1, 2, 3})
	if _, err := ComputeVariance(w, []float64{1, 2}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Expected ErrLengthMismatch, got %v", err)
	}
}

// TestAccumulatorReusesBuffers verifies steady-state calls write into the same storage
func TestAccumulatorReusesBuffers(t *testing.T) {
	w, _ := window.New(2)
	pushAll(t, w, []float64{1, 2}, []float64{3, 4})

	acc := NewAccumulator()
	first, err := acc.Compute(w)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	pushAll(t, w, []float64{5, 6})
	second, err := acc.Compute(w)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if &first.Mean[0] != &second.Mean[0] || &first.Std[0] != &second.Std[0] {
		t.Error("Expected mean and std buffers to be reused")
	}
	if second.Mean[0] != 4 || second.Mean[1] != 5 {
		t.Errorf("Expected mean [4 5], got %v", second.Mean)
	}
}

// TestSlidingScenario walks a capacity-3 window over single-pixel frames
func TestSlidingScenario(t *testing.T) {
	w, _ := window.New(3)
	acc := NewAccumulator()

	tests := []struct {
		value    float64
		wantMean float64
		wantStd  float64
	}{
		{10, 10, 0},
		{20, 15, 5},
		{30, 20, math.Sqrt(200.0 / 3)},
		{100, 50, math.Sqrt(3800.0 / 3)},
		{10, 140.0 / 3, math.Sqrt(40200.0 / 27)},
	}

	for i, tt := range tests {
		if _, err := w.Push(&models.Frame{Pixels: []float64{tt.value}, Width: 1, Height: 1, Index: i}); err != nil {
			t.Fatalf("Push %d failed: %v", i, err)
		}
		res, err := acc.Compute(w)
		if err != nil {
			t.Fatalf("Compute %d failed: %v", i, err)
		}
		if !almostEqual(res.Mean[0], tt.wantMean, 1e-9) {
			t.Errorf("step %d: mean %f, want %f", i, res.Mean[0], tt.wantMean)
		}
		if !almostEqual(res.Std[0], tt.wantStd, 1e-5) {
			t.Errorf("step %d: std %f, want %f", i, res.Std[0], tt.wantStd)
		}
	}
}
