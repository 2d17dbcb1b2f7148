// Package visualization renders deviation masks and writes them out.
package visualization

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"

	"bgsuppress/internal/models"
)

// ErrSizeMismatch is returned when a mask does not match its declared dimensions.
var ErrSizeMismatch = errors.New("visualization: buffer does not match dimensions")

// Format is the image encoding used by DirSink
type Format string

const (
	FormatPNG Format = "png"
	FormatBMP Format = "bmp"
)

// Mode selects what DirSink renders for each frame
type Mode string

const (
	// ModeMask writes the binary mask as a grayscale image
	ModeMask Mode = "mask"

	// ModeOverlay writes the frame in gray with marked pixels in red
	ModeOverlay Mode = "overlay"
)

// ParseFormat validates an output format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatPNG, FormatBMP:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (must be png or bmp)", s)
	}
}

// ParseMode validates an output mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeMask, ModeOverlay:
		return m, nil
	default:
		return "", fmt.Errorf("unknown output mode %q (must be mask or overlay)", s)
	}
}

// Sink consumes the mask computed for each analysed frame
type Sink interface {
	Consume(mask *models.Mask, frame *models.Frame) error
}

// Discard is a Sink that drops every mask
type Discard struct{}

// Consume does nothing
func (Discard) Consume(*models.Mask, *models.Frame) error { return nil }

// MaskImage renders a mask as an 8-bit grayscale image
func MaskImage(mask *models.Mask) (*image.Gray, error) {
	if len(mask.Bits) != mask.Width*mask.Height {
		return nil, fmt.Errorf("%w: mask has %d values for %dx%d",
			ErrSizeMismatch, len(mask.Bits), mask.Width, mask.Height)
	}

	img := image.NewGray(image.Rect(0, 0, mask.Width, mask.Height))
	copy(img.Pix, mask.Bits)
	return img, nil
}

// Overlay renders the frame intensity in gray and paints marked pixels red
func Overlay(frame *models.Frame, mask *models.Mask) (*image.RGBA, error) {
	if len(frame.Pixels) != frame.Width*frame.Height ||
		len(mask.Bits) != len(frame.Pixels) {
		return nil, fmt.Errorf("%w: frame %d, mask %d for %dx%d",
			ErrSizeMismatch, len(frame.Pixels), len(mask.Bits), frame.Width, frame.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			idx := y*frame.Width + x
			if mask.Bits[idx] == models.MarkValue {
				img.SetRGBA(x, y, color.RGBA{R: 0xFF, A: 0xFF})
				continue
			}
			v := uint8(math.Max(0, math.Min(255, math.Round(frame.Pixels[idx]))))
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 0xFF})
		}
	}
	return img, nil
}

// DirSink writes one image per analysed frame into a directory
type DirSink struct {
	dir    string
	format Format
	mode   Mode
}

// NewDirSink creates the output directory and returns a sink writing into it
func NewDirSink(dir string, format Format, mode Mode) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &DirSink{dir: dir, format: format, mode: mode}, nil
}

// Path returns the file a mask for the given frame is written to
func (s *DirSink) Path(index int, name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(s.dir, fmt.Sprintf("%04d_%s.%s", index, base, s.format))
}

// Consume renders the mask according to the sink mode and saves it
func (s *DirSink) Consume(mask *models.Mask, frame *models.Frame) error {
	var (
		img image.Image
		err error
	)
	switch s.mode {
	case ModeOverlay:
		img, err = Overlay(frame, mask)
	default:
		img, err = MaskImage(mask)
	}
	if err != nil {
		return err
	}

	filename := s.Path(mask.Index, mask.Name)
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer file.Close()

	if err := Encode(file, img, s.format); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// Encode writes img to w in the given format
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatPNG, "":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
