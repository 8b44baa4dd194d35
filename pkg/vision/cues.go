package vision

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/MrCodeEU/facepunch/pkg/imaging"
)

// CueDetector reads blink and smile cues from the face in a frame. A face
// whose upper half shows no open eyes counts as blinking; a smile cascade
// hit in the lower half counts as smiling.
type CueDetector struct {
	face    gocv.CascadeClassifier
	eyes    gocv.CascadeClassifier
	smile   gocv.CascadeClassifier
	minFace int
}

// NewCueDetector loads the face, eye and smile cascades.
func NewCueDetector(facePath, eyePath, smilePath string, minFace int) (*CueDetector, error) {
	face, err := loadCascade(facePath)
	if err != nil {
		return nil, err
	}
	eyes, err := loadCascade(eyePath)
	if err != nil {
		_ = face.Close()
		return nil, err
	}
	smile, err := loadCascade(smilePath)
	if err != nil {
		_ = face.Close()
		_ = eyes.Close()
		return nil, err
	}
	return &CueDetector{face: face, eyes: eyes, smile: smile, minFace: minFace}, nil
}

// Cues reports whether the subject is blinking and smiling.
func (d *CueDetector) Cues(frame image.Image) (blinking, smiling bool, err error) {
	gray, err := grayMat(frame)
	if err != nil {
		return false, false, err
	}
	defer gray.Close()

	faces := d.face.DetectMultiScaleWithParams(gray, 1.1, 5, 0,
		image.Pt(d.minFace, d.minFace), image.Pt(0, 0))
	face, ok := imaging.Largest(faces)
	if !ok {
		return false, false, ErrNoFace
	}

	upper := gray.Region(imaging.UpperHalf(face))
	defer upper.Close()
	minEye := face.Dx() / 8
	eyes := d.eyes.DetectMultiScaleWithParams(upper, 1.1, 8, 0,
		image.Pt(minEye, minEye), image.Pt(0, 0))
	blinking = len(eyes) == 0

	lower := gray.Region(imaging.LowerHalf(face))
	defer lower.Close()
	smiles := d.smile.DetectMultiScaleWithParams(lower, 1.7, 22, 0,
		image.Pt(25, 25), image.Pt(0, 0))
	smiling = len(smiles) > 0

	return blinking, smiling, nil
}

// Close releases the classifiers.
func (d *CueDetector) Close() error {
	_ = d.face.Close()
	_ = d.eyes.Close()
	return d.smile.Close()
}
