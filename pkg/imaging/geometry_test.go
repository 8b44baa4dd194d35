package imaging

import (
	"image"
	"testing"
)

func TestLargest(t *testing.T) {
	if _, ok := Largest(nil); ok {
		t.Error("no rectangles should report false")
	}

	got, ok := Largest([]image.Rectangle{
		image.Rect(0, 0, 10, 10),
		image.Rect(50, 50, 150, 130),
		image.Rect(0, 0, 90, 90),
	})
	if !ok || got != image.Rect(50, 50, 150, 130) {
		t.Errorf("got %v, %v", got, ok)
	}
}

func TestHalves(t *testing.T) {
	r := image.Rect(10, 20, 110, 121)
	if got := UpperHalf(r); got != image.Rect(10, 20, 110, 70) {
		t.Errorf("UpperHalf = %v", got)
	}
	if got := LowerHalf(r); got != image.Rect(10, 70, 110, 121) {
		t.Errorf("LowerHalf = %v", got)
	}
}
