// Package marker flags pixels whose value lies too many standard deviations
// away from the window mean.
package marker

import (
	"errors"
	"fmt"
	"math"

	"bgsuppress/internal/models"
)

// DefaultThreshold is the z-score above which a pixel is marked.
const DefaultThreshold = 3.5

var (
	// ErrLengthMismatch is returned when frame, mean and std differ in length.
	ErrLengthMismatch = errors.New("marker: frame, mean and std lengths differ")

	// ErrInvalidThreshold is returned for a non-positive or NaN threshold.
	ErrInvalidThreshold = errors.New("marker: threshold must be positive")
)

// ZScore returns |value-mean|/std, or 0 when std is 0 so that constant
// pixels never count as deviating.
func ZScore(value, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return math.Abs(value-mean) / std
}

func validate(frame, mean, std []float64, threshold float64) error {
	if !(threshold > 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	if len(mean) != len(frame) || len(std) != len(frame) {
		return fmt.Errorf("%w: frame %d, mean %d, std %d",
			ErrLengthMismatch, len(frame), len(mean), len(std))
	}
	return nil
}

// Mark returns a new mask with MarkValue where the z-score of frame against
// mean/std exceeds threshold and ClearValue elsewhere.
func Mark(frame, mean, std []float64, threshold float64) ([]uint8, error) {
	mask, _, err := MarkInto(nil, frame, mean, std, threshold)
	return mask, err
}

// MarkInto writes the mask into dst, reallocating only when its length
// differs from the frame, and returns it with the number of marked pixels.
func MarkInto(dst []uint8, frame, mean, std []float64, threshold float64) ([]uint8, int, error) {
	if err := validate(frame, mean, std, threshold); err != nil {
		return dst, 0, err
	}
	if len(dst) != len(frame) {
		dst = make([]uint8, len(frame))
	}

	marked := 0
	for i, v := range frame {
		if ZScore(v, mean[i], std[i]) > threshold {
			dst[i] = models.MarkValue
			marked++
		} else {
			dst[i] = models.ClearValue
		}
	}

	return dst, marked, nil
}
