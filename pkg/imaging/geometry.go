package imaging

import "image"

// Largest returns the rectangle with the biggest area.
func Largest(rects []image.Rectangle) (image.Rectangle, bool) {
	if len(rects) == 0 {
		return image.Rectangle{}, false
	}
	best := rects[0]
	for _, r := range rects[1:] {
		if r.Dx()*r.Dy() > best.Dx()*best.Dy() {
			best = r
		}
	}
	return best, true
}

// UpperHalf returns the top half of r, where the eyes are.
func UpperHalf(r image.Rectangle) image.Rectangle {
	return image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+r.Dy()/2)
}

// LowerHalf returns the bottom half of r, where the mouth is.
func LowerHalf(r image.Rectangle) image.Rectangle {
	return image.Rect(r.Min.X, r.Min.Y+r.Dy()/2, r.Max.X, r.Max.Y)
}
