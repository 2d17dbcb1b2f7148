package intensity

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"bgsuppress/internal/models"
)

// TestConvertPolicies checks the per-pixel reduction for both policies
func TestConvertPolicies(t *testing.T) {
	bgra := []byte{10, 20, 30, 255}

	tests := []struct {
		name   string
		policy Policy
		want   float64
	}{
		{"average", Average, 20.0},
		{"single-channel", SingleChannel, 10.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(nil, bgra, tt.policy)
			if err != nil {
				t.Fatalf("Convert failed: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("Expected 1 pixel, got %d", len(got))
			}
			if got[0] != tt.want {
				t.Errorf("Expected %f, got %f", tt.want, got[0])
			}
		})
	}
}

// TestConvertIgnoresAlpha verifies alpha does not contribute to the average
func TestConvertIgnoresAlpha(t *testing.T) {
	a, err := Convert(nil, []byte{30, 60, 90, 0}, Average)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	b, err := Convert(nil, []byte{30, 60, 90, 255}, Average)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if a[0] != b[0] || a[0] != 60 {
		t.Errorf("Expected 60 for both alpha values, got %f and %f", a[0], b[0])
	}
}

// TestConvertReusesBuffer verifies the output is only reallocated on length change
func TestConvertReusesBuffer(t *testing.T) {
	bgra := make([]byte, 4*8)
	dst := make([]float64, 8)

	got, err := Convert(dst, bgra, Average)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if &got[0] != &dst[0] {
		t.Error("Expected buffer of matching length to be reused")
	}

	got, err = Convert(dst, make([]byte, 4*3), Average)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Expected resized length 3, got %d", len(got))
	}
	if len(dst) != 8 {
		t.Errorf("Original buffer must keep its length, got %d", len(dst))
	}
}

// TestConvertRejectsPartialPixel checks the multiple-of-4 precondition
func TestConvertRejectsPartialPixel(t *testing.T) {
	_, err := Convert(nil, []byte{1, 2, 3}, Average)
	if !errors.Is(err, ErrNotBGRA) {
		t.Errorf("Expected ErrNotBGRA, got %v", err)
	}
}

// TestParsePolicy covers names accepted in config files and flags
func TestParsePolicy(t *testing.T) {
	for _, s := range []string{"average", "AVERAGE", ""} {
		p, err := ParsePolicy(s)
		if err != nil || p != Average {
			t.Errorf("ParsePolicy(%q) = %v, %v; want Average", s, p, err)
		}
	}

	p, err := ParsePolicy("single-channel")
	if err != nil || p != SingleChannel {
		t.Errorf("ParsePolicy(single-channel) = %v, %v", p, err)
	}

	if _, err := ParsePolicy("luma"); err == nil {
		t.Error("Expected error for unknown policy")
	}

	var q Policy
	if err := q.UnmarshalText([]byte("single-channel")); err != nil || q != SingleChannel {
		t.Errorf("UnmarshalText = %v, %v", q, err)
	}
	text, err := SingleChannel.MarshalText()
	if err != nil || string(text) != "single-channel" {
		t.Errorf("MarshalText = %q, %v", text, err)
	}
}

// TestFromImageChannelOrder checks that decoded images come out as B,G,R,A
func TestFromImageChannelOrder(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 30, G: 20, B: 10, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 4})

	raw := FromImage(img)
	if raw.Width != 2 || raw.Height != 1 {
		t.Fatalf("Expected 2x1, got %dx%d", raw.Width, raw.Height)
	}

	want := []byte{10, 20, 30, 255, 3, 2, 1, 4}
	for i := range want {
		if raw.Pix[i] != want[i] {
			t.Fatalf("Pix[%d] = %d, want %d", i, raw.Pix[i], want[i])
		}
	}

	frame, err := Frame(raw, Average, 0, "a.png")
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if frame.Pixels[0] != 20 || frame.Pixels[1] != 2 {
		t.Errorf("Unexpected intensities %v", frame.Pixels)
	}
}

// TestFromImageGeneric exercises the generic path on an image offset from the origin
func TestFromImageGeneric(t *testing.T) {
	img := image.NewGray16(image.Rect(5, 5, 7, 6))
	img.SetGray16(5, 5, color.Gray16{Y: 0xFFFF})
	img.SetGray16(6, 5, color.Gray16{Y: 0})

	raw := FromImage(img)
	if raw.Width != 2 || raw.Height != 1 {
		t.Fatalf("Expected 2x1, got %dx%d", raw.Width, raw.Height)
	}
	if raw.Pix[0] != 0xFF || raw.Pix[4] != 0 {
		t.Errorf("Unexpected pixels %v", raw.Pix)
	}
}

// TestFrameRejectsEmptyImage checks an image without pixels never becomes a frame
func TestFrameRejectsEmptyImage(t *testing.T) {
	for _, raw := range []*models.RawImage{
		{Width: 0, Height: 0},
		{Width: 3, Height: 0},
		FromImage(image.NewNRGBA(image.Rect(0, 0, 0, 0))),
	} {
		if _, err := Frame(raw, Average, 1, "b.png"); !errors.Is(err, ErrEmptyImage) {
			t.Errorf("Frame(%dx%d): expected ErrEmptyImage, got %v", raw.Width, raw.Height, err)
		}
	}
}
