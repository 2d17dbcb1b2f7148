// Package intensity reduces decoded 4-channel pixel buffers to single-channel
// intensity frames.
package intensity

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"bgsuppress/internal/models"
)

// ErrNotBGRA is returned when a source buffer is not a whole number of pixels.
var ErrNotBGRA = errors.New("intensity: buffer length is not a multiple of 4")

// ErrEmptyImage is returned by Frame for images without pixels
var ErrEmptyImage = errors.New("intensity: image has no pixels")

// Policy selects how the colour channels of a pixel are reduced to one value.
type Policy int

const (
	// Average uses (B+G+R)/3 and ignores alpha. This is the policy used for
	// statistics.
	Average Policy = iota

	// SingleChannel takes the blue channel only. It is a cheap approximation
	// used for decode throughput runs.
	SingleChannel
)

func (p Policy) String() string {
	switch p {
	case Average:
		return "average"
	case SingleChannel:
		return "single-channel"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts a policy name into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "average", "avg":
		return Average, nil
	case "single-channel", "single", "blue":
		return SingleChannel, nil
	default:
		return Average, fmt.Errorf("unknown intensity policy %q", s)
	}
}

// MarshalText lets the policy round-trip through YAML config files
func (p Policy) MarshalText() ([]byte, error) {
	switch p {
	case Average, SingleChannel:
		return []byte(p.String()), nil
	default:
		return nil, fmt.Errorf("unknown intensity policy %d", int(p))
	}
}

// UnmarshalText parses a policy name
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Convert reduces a B,G,R,A buffer into one float per pixel.
//
// dst is reused when it already has the required length and reallocated
// otherwise; the (possibly new) slice is returned. Callers that hand the
// result to a sliding window must pass nil so the stored frame is never
// overwritten by a later call.
func Convert(dst []float64, bgra []byte, policy Policy) ([]float64, error) {
	if len(bgra)%4 != 0 {
		return dst, fmt.Errorf("%w: got %d bytes", ErrNotBGRA, len(bgra))
	}

	n := len(bgra) / 4
	if len(dst) != n {
		dst = make([]float64, n)
	}

	switch policy {
	case Average:
		for i, j := 0, 0; i < n; i, j = i+1, j+4 {
			dst[i] = (float64(bgra[j]) + float64(bgra[j+1]) + float64(bgra[j+2])) / 3.0
		}
	case SingleChannel:
		for i, j := 0, 0; i < n; i, j = i+1, j+4 {
			dst[i] = float64(bgra[j])
		}
	default:
		return dst, fmt.Errorf("unknown intensity policy %d", int(policy))
	}

	return dst, nil
}

// FromImage lays out any decoded image as a B,G,R,A byte buffer with
// non-premultiplied channels.
func FromImage(img image.Image) *models.RawImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, 4*w*h)

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+4*w]
			for x := 0; x < w; x++ {
				o := 4 * (y*w + x)
				pix[o], pix[o+1], pix[o+2], pix[o+3] = row[4*x+2], row[4*x+1], row[4*x], row[4*x+3]
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w]
			for x := 0; x < w; x++ {
				o := 4 * (y*w + x)
				pix[o], pix[o+1], pix[o+2], pix[o+3] = row[x], row[x], row[x], 0xFF
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				o := 4 * (y*w + x)
				pix[o], pix[o+1], pix[o+2], pix[o+3] = c.B, c.G, c.R, c.A
			}
		}
	}

	return &models.RawImage{Pix: pix, Width: w, Height: h}
}

// Frame converts a raw image into a freshly allocated intensity frame
func Frame(raw *models.RawImage, policy Policy, index int, name string) (*models.Frame, error) {
	if raw == nil {
		return nil, fmt.Errorf("intensity: nil image for %s", name)
	}
	if raw.Width <= 0 || raw.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d image %s", ErrEmptyImage, raw.Width, raw.Height, name)
	}
	if len(raw.Pix) != 4*raw.Width*raw.Height {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d image %s",
			ErrNotBGRA, len(raw.Pix), raw.Width, raw.Height, name)
	}

	pixels, err := Convert(nil, raw.Pix, policy)
	if err != nil {
		return nil, err
	}

	return &models.Frame{
		Pixels: pixels,
		Width:  raw.Width,
		Height: raw.Height,
		Index:  index,
		Name:   name,
	}, nil
}
