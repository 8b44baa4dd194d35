package liveness

import (
	"image"
	"math"
)

// PoseThresholds bound the nose-offset ratio used for yaw estimation.
type PoseThresholds struct {
	LeftRatio  float64 // ratio above this is a left turn
	RightRatio float64 // ratio below this is a right turn
}

// DefaultPoseThresholds returns the thresholds used by the reference kiosk.
func DefaultPoseThresholds() PoseThresholds {
	return PoseThresholds{LeftRatio: 2.0, RightRatio: 0.5}
}

// YawRatio compares the nose's horizontal distance to the image-left eye
// corner with its distance to the image-right eye corner. A frontal face
// gives roughly 1.
//
// points must hold at least five landmarks: the four eye corners in any
// order followed by the nose.
func YawRatio(points []image.Point) (float64, bool) {
	if len(points) < 5 {
		return 0, false
	}

	left, right := points[0].X, points[0].X
	for _, p := range points[1:4] {
		if p.X < left {
			left = p.X
		}
		if p.X > right {
			right = p.X
		}
	}
	if right <= left {
		return 0, false
	}

	nose := float64(points[4].X)
	toLeft := math.Abs(nose - float64(left))
	toRight := math.Abs(float64(right) - nose)

	return toLeft / (toRight + 1e-6), true
}

// EstimateOrientation classifies the head turn for an unmirrored camera.
// When the subject turns to their own left the nose moves toward the
// image-right eye corner, raising the ratio.
func EstimateOrientation(points []image.Point, th PoseThresholds) (Orientation, bool) {
	ratio, ok := YawRatio(points)
	if !ok {
		return Center, false
	}

	switch {
	case ratio > th.LeftRatio:
		return TurnLeft, true
	case ratio < th.RightRatio:
		return TurnRight, true
	default:
		return Center, true
	}
}
