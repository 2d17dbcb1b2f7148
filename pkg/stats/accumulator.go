// Package stats computes per-pixel mean, variance and standard deviation over
// the frames held in a sliding window.
package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"bgsuppress/internal/models"
)

var (
	// ErrEmptyWindow is returned when statistics are requested for no frames.
	ErrEmptyWindow = errors.New("stats: window is empty")

	// ErrLengthMismatch is returned when a vector does not match the frame length.
	ErrLengthMismatch = errors.New("stats: vector length does not match frames")
)

// Frames is the read-only view of a window the accumulator needs.
// *window.Window satisfies it.
type Frames interface {
	Size() int
	At(i int) *models.Frame
}

// Result holds the statistics of one window state. The slices are owned by
// the Accumulator that produced them and are overwritten by its next call.
type Result struct {
	Mean     []float64
	Variance []float64
	Std      []float64
	Count    int
}

// Accumulator computes window statistics into buffers it owns. Each buffer is
// resized to exactly the frame length whenever its length differs, so steady
// state runs allocate nothing.
type Accumulator struct {
	mean     []float64
	variance []float64
	std      []float64
	diff     []float64
}

// NewAccumulator creates an accumulator with empty scratch buffers
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// resize returns buf with length n, reusing it when the length already matches
func resize(buf []float64, n int) []float64 {
	if len(buf) != n {
		return make([]float64, n)
	}
	return buf
}

// divide divides buf in place by count
func divide(buf []float64, count float64) {
	for i := range buf {
		buf[i] /= count
	}
}

func frameLen(w Frames) (int, error) {
	if w == nil || w.Size() == 0 {
		return 0, ErrEmptyWindow
	}
	return w.At(0).Len(), nil
}

// Mean sums the frames element-wise, oldest first, and divides by the number
// of frames currently in the window.
func (a *Accumulator) Mean(w Frames) ([]float64, error) {
	n, err := frameLen(w)
	if err != nil {
		return nil, err
	}

	a.mean = resize(a.mean, n)
	clear(a.mean)
	for i := 0; i < w.Size(); i++ {
		f := w.At(i)
		if f.Len() != n {
			return nil, fmt.Errorf("%w: frame %s has %d pixels, expected %d",
				ErrLengthMismatch, f.Name, f.Len(), n)
		}
		floats.Add(a.mean, f.Pixels)
	}
	divide(a.mean, float64(w.Size()))

	return a.mean, nil
}

// Variance accumulates (f[i]-mean[i])^2 over the window and divides by the
// window size (population variance).
func (a *Accumulator) Variance(w Frames, mean []float64) ([]float64, error) {
	n, err := frameLen(w)
	if err != nil {
		return nil, err
	}
	if len(mean) != n {
		return nil, fmt.Errorf("%w: mean has %d entries, frames have %d",
			ErrLengthMismatch, len(mean), n)
	}

	a.variance = resize(a.variance, n)
	a.diff = resize(a.diff, n)
	clear(a.variance)
	for i := 0; i < w.Size(); i++ {
		f := w.At(i)
		if f.Len() != n {
			return nil, fmt.Errorf("%w: frame %s has %d pixels, expected %d",
				ErrLengthMismatch, f.Name, f.Len(), n)
		}
		floats.SubTo(a.diff, f.Pixels, mean)
		floats.Mul(a.diff, a.diff)
		floats.Add(a.variance, a.diff)
	}
	divide(a.variance, float64(w.Size()))

	return a.variance, nil
}

// StdDev is the element-wise square root of Variance
func (a *Accumulator) StdDev(w Frames, mean []float64) ([]float64, error) {
	variance, err := a.Variance(w, mean)
	if err != nil {
		return nil, err
	}

	a.std = resize(a.std, len(variance))
	for i, v := range variance {
		a.std[i] = math.Sqrt(v)
	}

	return a.std, nil
}

// Compute runs Mean, Variance and StdDev for the current window contents
func (a *Accumulator) Compute(w Frames) (Result, error) {
	mean, err := a.Mean(w)
	if err != nil {
		return Result{}, err
	}
	std, err := a.StdDev(w, mean)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Mean:     mean,
		Variance: a.variance,
		Std:      std,
		Count:    w.Size(),
	}, nil
}

// ComputeMean returns a freshly allocated mean vector for w
func ComputeMean(w Frames) ([]float64, error) {
	return NewAccumulator().Mean(w)
}

// ComputeVariance returns a freshly allocated variance vector for w
func ComputeVariance(w Frames, mean []float64) ([]float64, error) {
	return NewAccumulator().Variance(w, mean)
}

// ComputeStd returns a freshly allocated standard deviation vector for w
func ComputeStd(w Frames, mean []float64) ([]float64, error) {
	return NewAccumulator().StdDev(w, mean)
}
