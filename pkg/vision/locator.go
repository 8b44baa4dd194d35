package vision

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/MrCodeEU/facepunch/pkg/imaging"
)

// CascadeLocator finds the dominant face in a frame.
type CascadeLocator struct {
	classifier gocv.CascadeClassifier
	minSize    int
	padding    float64
}

// NewCascadeLocator loads the frontal face cascade at path. Faces smaller
// than minSize pixels are ignored; located regions are grown by padding
// (a fraction of the face size) so recognition sees the whole head.
func NewCascadeLocator(path string, minSize int, padding float64) (*CascadeLocator, error) {
	classifier, err := loadCascade(path)
	if err != nil {
		return nil, err
	}
	return &CascadeLocator{classifier: classifier, minSize: minSize, padding: padding}, nil
}

// Locate returns the largest face region in frame coordinates.
func (l *CascadeLocator) Locate(frame image.Image) (image.Rectangle, bool, error) {
	gray, err := grayMat(frame)
	if err != nil {
		return image.Rectangle{}, false, err
	}
	defer gray.Close()

	faces := l.classifier.DetectMultiScaleWithParams(gray, 1.1, 5, 0,
		image.Pt(l.minSize, l.minSize), image.Pt(0, 0))

	face, ok := imaging.Largest(faces)
	if !ok {
		return image.Rectangle{}, false, nil
	}

	bounds := frame.Bounds()
	face = face.Add(bounds.Min)
	return imaging.Pad(face, l.padding, bounds), true, nil
}

// Close releases the classifier.
func (l *CascadeLocator) Close() error {
	return l.classifier.Close()
}
