// Package source supplies decoded frames to the analysis pipeline.
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"bgsuppress/internal/models"
	"bgsuppress/pkg/intensity"
)

var (
	// ErrDecode wraps every failure to produce a frame for a name.
	ErrDecode = errors.New("source: decode failed")

	// ErrNoImages is returned when a directory contains no readable images.
	ErrNoImages = errors.New("source: no images found")

	// ErrUnknownName is returned when a name is not part of the source.
	ErrUnknownName = errors.New("source: unknown frame name")
)

// Extensions lists the file extensions a Dir source picks up
var Extensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// Source provides raw frames for an ordered list of names
type Source interface {
	// Names returns the frame identifiers in processing order
	Names() []string

	// Load decodes one frame. Failures are wrapped in ErrDecode, except
	// context cancellation which is returned as is.
	Load(ctx context.Context, name string) (*models.RawImage, error)
}

// Dir reads image files from a single directory
type Dir struct {
	root  string
	names []string
}

// OpenDir lists dir and keeps image files sorted by name.
// Sub-directories are skipped.
func OpenDir(dir string) (*Dir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading input directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if Extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}
	sort.Strings(names)

	return &Dir{root: dir, names: names}, nil
}

// Root returns the directory the source reads from
func (d *Dir) Root() string { return d.root }

// Names returns the sorted image file names
func (d *Dir) Names() []string { return d.names }

// Load opens and decodes one image file into a B,G,R,A buffer
func (d *Dir) Load(ctx context.Context, name string) (*models.RawImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(d.root, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, name, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, name, err)
	}

	return intensity.FromImage(img), nil
}

// Memory serves frames held in memory. A nil entry fails to decode.
type Memory struct {
	names  []string
	images map[string]*models.RawImage
}

// NewMemory creates an empty in-memory source
func NewMemory() *Memory {
	return &Memory{images: make(map[string]*models.RawImage)}
}

// Add appends a frame to the sequence. A nil image simulates a corrupt file.
func (m *Memory) Add(name string, img *models.RawImage) *Memory {
	if _, ok := m.images[name]; !ok {
		m.names = append(m.names, name)
	}
	m.images[name] = img
	return m
}

// AddGray appends a gray frame cycling through values. Without values the
// frame is black.
func (m *Memory) AddGray(name string, width, height int, values ...uint8) *Memory {
	if len(values) == 0 {
		values = []uint8{0}
	}
	pix := make([]byte, 0, 4*width*height)
	for i := 0; i < width*height; i++ {
		v := values[i%len(values)]
		pix = append(pix, v, v, v, 0xFF)
	}
	return m.Add(name, &models.RawImage{Pix: pix, Width: width, Height: height})
}

// Names returns frame names in insertion order
func (m *Memory) Names() []string { return m.names }

// Load returns the stored frame
func (m *Memory) Load(ctx context.Context, name string) (*models.RawImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, ok := m.images[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", ErrDecode, ErrUnknownName, name)
	}
	if img == nil {
		return nil, fmt.Errorf("%w: %s: corrupt frame", ErrDecode, name)
	}
	return img, nil
}
