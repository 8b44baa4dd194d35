// Package imaging holds the pure-Go image helpers shared by the camera,
// recognition and enrollment paths: face cropping, grayscale conversion,
// scaling and JPEG round-trips.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// JPEGQuality is the quality used when persisting samples.
const JPEGQuality = 92

// ErrEmptyRegion is returned when a crop region has no pixels inside the
// frame.
var ErrEmptyRegion = errors.New("empty image region")

// Pad grows r by factor of its size on every side and clamps the result to
// bounds.
func Pad(r image.Rectangle, factor float64, bounds image.Rectangle) image.Rectangle {
	if factor > 0 {
		dx := int(float64(r.Dx()) * factor)
		dy := int(float64(r.Dy()) * factor)
		r = image.Rect(r.Min.X-dx, r.Min.Y-dy, r.Max.X+dx, r.Max.Y+dy)
	}
	return r.Intersect(bounds)
}

// ToGray converts img to an 8-bit grayscale image with its origin at (0,0).
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// FaceCrop cuts region out of frame and scales it to a size x size
// grayscale image, the canonical input for training and prediction.
func FaceCrop(frame image.Image, region image.Rectangle, size int) (*image.Gray, error) {
	region = region.Intersect(frame.Bounds())
	if region.Empty() {
		return nil, ErrEmptyRegion
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid face size %d", size)
	}

	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), frame, region, draw.Src, nil)
	return dst, nil
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeGray decodes JPEG data into a grayscale image.
func DecodeGray(data []byte) (*image.Gray, error) {
	if len(data) == 0 {
		return nil, errors.New("decode jpeg: empty data")
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	return ToGray(img), nil
}
