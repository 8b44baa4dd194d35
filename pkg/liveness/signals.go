// Package liveness turns a single camera frame into the cues the
// challenge-response protocol checks: blinking, smiling and head turn.
//
// Cue detection is delegated to collaborators (a CueSource for eyes and
// mouth, a LandmarkSource for head pose); this package fuses them into one
// Signals value per frame and owns the orientation convention.
package liveness

import (
	"errors"
	"fmt"
	"image"
)

// Orientation is the subject's head turn, in the subject's own frame of
// reference: TurnLeft means the subject turned to their left.
type Orientation string

const (
	Center    Orientation = "CENTER"
	TurnLeft  Orientation = "TURN_LEFT"
	TurnRight Orientation = "TURN_RIGHT"
)

// Signals holds the liveness cues derived from one frame.
type Signals struct {
	Blinking    bool
	Smiling     bool
	Orientation Orientation
}

// None is the neutral reading used when nothing could be extracted.
var None = Signals{Orientation: Center}

func (s Signals) String() string {
	return fmt.Sprintf("blink=%t smile=%t orientation=%s", s.Blinking, s.Smiling, s.Orientation)
}

// ErrNoLandmarks is returned when no face landmarks were found.
var ErrNoLandmarks = errors.New("no face landmarks")

// CueSource reports eye and mouth cues for a frame.
type CueSource interface {
	Cues(frame image.Image) (blinking, smiling bool, err error)
}

// LandmarkSource returns the five dlib landmarks (two corners per eye and
// the base of the nose) for the single face in a frame.
type LandmarkSource interface {
	Landmarks(frame image.Image) ([]image.Point, error)
}

// Extractor combines a CueSource and a LandmarkSource into Signals.
type Extractor struct {
	cues       CueSource
	pose       LandmarkSource
	thresholds PoseThresholds
	mirrored   bool
}

// NewExtractor creates an Extractor. Set mirrored when the camera image is
// flipped horizontally (selfie view), so turns are reported in the
// subject's frame of reference.
func NewExtractor(cues CueSource, pose LandmarkSource, thresholds PoseThresholds, mirrored bool) *Extractor {
	return &Extractor{
		cues:       cues,
		pose:       pose,
		thresholds: thresholds,
		mirrored:   mirrored,
	}
}

// Extract computes the signals for one frame. Each cue degrades to its
// neutral value on failure; the returned error describes what failed and
// is never fatal for the caller.
func (e *Extractor) Extract(frame image.Image) (Signals, error) {
	signals := None
	var errs []error

	if e.cues != nil {
		blinking, smiling, err := e.cues.Cues(frame)
		if err != nil {
			errs = append(errs, fmt.Errorf("cues: %w", err))
		} else {
			signals.Blinking = blinking
			signals.Smiling = smiling
		}
	}

	if e.pose != nil {
		points, err := e.pose.Landmarks(frame)
		if err != nil {
			errs = append(errs, fmt.Errorf("pose: %w", err))
		} else if orientation, ok := EstimateOrientation(points, e.thresholds); ok {
			if e.mirrored {
				orientation = orientation.Mirror()
			}
			signals.Orientation = orientation
		}
	}

	return signals, errors.Join(errs...)
}

// Mirror swaps left and right.
func (o Orientation) Mirror() Orientation {
	switch o {
	case TurnLeft:
		return TurnRight
	case TurnRight:
		return TurnLeft
	default:
		return o
	}
}
