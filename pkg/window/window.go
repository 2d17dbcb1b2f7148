// Package window keeps the most recent intensity frames of a sequence.
package window

import (
	"errors"
	"fmt"

	"github.com/gammazero/deque"

	"bgsuppress/internal/models"
)

var (
	// ErrInvalidCapacity is returned for a window that could hold no frames.
	ErrInvalidCapacity = errors.New("window: capacity must be positive")

	// ErrDimensionMismatch is returned when a pushed frame has different
	// dimensions than the frames already held.
	ErrDimensionMismatch = errors.New("window: frame dimensions do not match")

	// ErrEmptyFrame is returned when a nil or zero-pixel frame is pushed.
	ErrEmptyFrame = errors.New("window: empty frame")
)

// Window is a fixed-capacity FIFO of frames. Pushing into a full window
// evicts the oldest frame first.
//
// Frames are owned by the window once pushed and must not be modified by the
// caller afterwards.
type Window struct {
	capacity int
	frames   deque.Deque[*models.Frame]
}

// New creates an empty window that holds at most capacity frames
func New(capacity int) (*Window, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Window{capacity: capacity}, nil
}

// Push appends frame as the newest entry, evicting the oldest one if the
// window is full. The returned frame is the evicted one, or nil.
func (w *Window) Push(frame *models.Frame) (*models.Frame, error) {
	if frame == nil || frame.Len() == 0 {
		return nil, ErrEmptyFrame
	}
	if w.frames.Len() > 0 {
		head := w.frames.Front()
		if frame.Len() != head.Len() || frame.Width != head.Width || frame.Height != head.Height {
			return nil, fmt.Errorf("%w: %s is %dx%d (%d pixels), window holds %dx%d (%d pixels)",
				ErrDimensionMismatch, frame.Name, frame.Width, frame.Height, frame.Len(),
				head.Width, head.Height, head.Len())
		}
	}

	var evicted *models.Frame
	if w.frames.Len() == w.capacity {
		evicted = w.frames.PopFront()
	}
	w.frames.PushBack(frame)

	return evicted, nil
}

// Current returns the most recently pushed frame, or nil if the window is empty
func (w *Window) Current() *models.Frame {
	if w.frames.Len() == 0 {
		return nil
	}
	return w.frames.Back()
}

// At returns the i-th frame, 0 being the oldest
func (w *Window) At(i int) *models.Frame {
	return w.frames.At(i)
}

// Each calls fn for every frame from oldest to newest
func (w *Window) Each(fn func(i int, f *models.Frame)) {
	for i := 0; i < w.frames.Len(); i++ {
		fn(i, w.frames.At(i))
	}
}

// IsEmpty reports whether the window holds no frames
func (w *Window) IsEmpty() bool { return w.frames.Len() == 0 }

// Size is the number of frames currently held
func (w *Window) Size() int { return w.frames.Len() }

// Capacity is the maximum number of frames held
func (w *Window) Capacity() int { return w.capacity }

// FrameLen is the pixel count shared by all frames in the window, 0 when empty
func (w *Window) FrameLen() int {
	if w.frames.Len() == 0 {
		return 0
	}
	return w.frames.Front().Len()
}
