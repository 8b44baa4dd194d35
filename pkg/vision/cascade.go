// Package vision wraps the OpenCV Haar cascades used on live frames:
// locating the face to recognize and reading the eye and mouth cues for
// the liveness challenges.
package vision

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/MrCodeEU/facepunch/pkg/logging"
)

// ErrNoFace is returned by the cue detector when the frame holds no face.
var ErrNoFace = errors.New("no face in frame")

// fallbackDirs are searched when a cascade is missing from the configured
// directory.
var fallbackDirs = []string{
	".",
	"/usr/local/share/opencv4/haarcascades",
	"/usr/share/opencv4/haarcascades",
	"/opt/homebrew/share/opencv4/haarcascades",
}

// loadCascade loads path, falling back to the same file name in the
// standard OpenCV install locations.
func loadCascade(path string) (gocv.CascadeClassifier, error) {
	classifier := gocv.NewCascadeClassifier()
	if classifier.Load(path) {
		return classifier, nil
	}

	name := filepath.Base(path)
	for _, dir := range fallbackDirs {
		alt := filepath.Join(dir, name)
		if classifier.Load(alt) {
			logging.Component("vision").WithField("path", alt).Debug("Loaded cascade from fallback location")
			return classifier, nil
		}
	}

	_ = classifier.Close()
	return gocv.CascadeClassifier{}, fmt.Errorf("failed to load cascade classifier from %s or alternative paths", path)
}

// grayMat converts frame to an equalized single-channel Mat. The caller
// closes it.
func grayMat(frame image.Image) (gocv.Mat, error) {
	rgb, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert frame: %w", err)
	}
	defer rgb.Close()

	if rgb.Empty() {
		return gocv.Mat{}, errors.New("empty frame")
	}

	gray := gocv.NewMat()
	gocv.CvtColor(rgb, &gray, gocv.ColorRGBToGray)
	gocv.EqualizeHist(gray, &gray)
	return gray, nil
}
