package models

// Mask values written into a deviation mask.
const (
	ClearValue uint8 = 0x00
	MarkValue  uint8 = 0xFF
)

// RawImage is a decoded image as handed over by a frame source
type RawImage struct {
	// Pix holds 4 bytes per pixel in B,G,R,A order, row-major
	Pix []byte

	// Width and Height are the image dimensions in pixels
	Width  int
	Height int
}

// Frame represents a single intensity frame in the analysed sequence
type Frame struct {
	// Pixels is the single-channel intensity data in row-major order
	Pixels []float64

	// Width is the width of the frame in pixels
	Width int

	// Height is the height of the frame in pixels
	Height int

	// Index is the position of this frame in the sorted input sequence
	Index int

	// Name is the identifier (file name) the frame was loaded from
	Name string
}

// Len returns the number of pixels in the frame
func (f *Frame) Len() int {
	return len(f.Pixels)
}

// Mask is the per-pixel deviation result for one frame
type Mask struct {
	// Bits holds ClearValue or MarkValue for every pixel, row-major
	Bits []uint8

	// Width and Height match the frame the mask was computed for
	Width  int
	Height int

	// Index and Name identify the frame the mask belongs to
	Index int
	Name  string

	// Marked is the number of pixels set to MarkValue
	Marked int
}

// Ratio returns the fraction of marked pixels in the mask
func (m *Mask) Ratio() float64 {
	if len(m.Bits) == 0 {
		return 0
	}
	return float64(m.Marked) / float64(len(m.Bits))
}
