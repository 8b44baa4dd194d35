package imaging

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestPad(t *testing.T) {
	bounds := image.Rect(0, 0, 640, 480)

	tests := []struct {
		name   string
		r      image.Rectangle
		factor float64
		want   image.Rectangle
	}{
		{"no padding", image.Rect(100, 100, 200, 200), 0, image.Rect(100, 100, 200, 200)},
		{"twenty percent", image.Rect(100, 100, 200, 200), 0.2, image.Rect(80, 80, 220, 220)},
		{"clamped at origin", image.Rect(0, 0, 100, 100), 0.5, image.Rect(0, 0, 150, 150)},
		{"clamped at far edge", image.Rect(600, 400, 640, 480), 0.5, image.Rect(580, 360, 640, 480)},
		{"outside frame", image.Rect(700, 500, 800, 600), 0.1, image.Rectangle{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pad(tt.r, tt.factor, bounds)
			if tt.want.Empty() {
				if !got.Empty() {
					t.Errorf("expected empty, got %v", got)
				}
				return
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToGray(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 20, 30))
	for y := 10; y < 30; y++ {
		for x := 10; x < 20; x++ {
			src.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	g := ToGray(src)
	if g.Bounds() != image.Rect(0, 0, 10, 20) {
		t.Fatalf("expected origin-based bounds, got %v", g.Bounds())
	}
	if g.GrayAt(5, 5).Y != 255 {
		t.Errorf("expected white pixel, got %d", g.GrayAt(5, 5).Y)
	}

	already := image.NewGray(image.Rect(0, 0, 4, 4))
	if ToGray(already) != already {
		t.Error("origin-based gray images should be returned as-is")
	}
}

func TestFaceCrop(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			if x >= 100 && x < 200 {
				frame.Set(x, y, color.White)
			} else {
				frame.Set(x, y, color.Black)
			}
		}
	}

	crop, err := FaceCrop(frame, image.Rect(100, 50, 200, 150), 150)
	if err != nil {
		t.Fatalf("FaceCrop: %v", err)
	}
	if crop.Bounds() != image.Rect(0, 0, 150, 150) {
		t.Fatalf("unexpected crop bounds %v", crop.Bounds())
	}
	if crop.GrayAt(75, 75).Y < 200 {
		t.Errorf("crop center should come from the white band, got %d", crop.GrayAt(75, 75).Y)
	}

	if _, err := FaceCrop(frame, image.Rect(400, 400, 500, 500), 150); !errors.Is(err, ErrEmptyRegion) {
		t.Errorf("expected ErrEmptyRegion, got %v", err)
	}
	if _, err := FaceCrop(frame, image.Rect(0, 0, 10, 10), 0); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestJPEGRoundTrip(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range src.Pix {
		src.Pix[i] = 128
	}

	data, err := EncodeJPEG(src)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	got, err := DecodeGray(data)
	if err != nil {
		t.Fatalf("DecodeGray: %v", err)
	}
	if got.Bounds() != src.Bounds() {
		t.Errorf("bounds changed: %v", got.Bounds())
	}
	if v := got.GrayAt(8, 8).Y; v < 120 || v > 136 {
		t.Errorf("pixel drifted too far: %d", v)
	}

	if _, err := DecodeGray(nil); err == nil {
		t.Error("expected error for empty data")
	}
	if _, err := DecodeGray([]byte("not a jpeg")); err == nil {
		t.Error("expected error for garbage data")
	}
}
