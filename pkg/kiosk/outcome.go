package kiosk

import (
	"image"
	"image/color"
	"time"

	"github.com/MrCodeEU/facepunch/pkg/enrollment"
	"github.com/MrCodeEU/facepunch/pkg/verification"
)

// Mode is what the kiosk is doing with frames.
type Mode string

const (
	ModeVerify   Mode = "VERIFY"
	ModeEnroll   Mode = "ENROLL"
	ModeTraining Mode = "TRAINING"
)

// UnknownLabel is shown for faces that are not confidently recognized.
const UnknownLabel = "Register First"

// Overlay colors.
var (
	ColorMatched = color.RGBA{G: 255, A: 255}
	ColorUnknown = color.RGBA{R: 255, A: 255}
	ColorEnroll  = color.RGBA{G: 255, B: 255, A: 255}
	ColorPrompt  = color.RGBA{R: 255, G: 165, A: 255}
)

// FrameOutcome is everything a front end needs to render one frame.
type FrameOutcome struct {
	Mode      Mode
	FaceFound bool
	Region    image.Rectangle
	// Label is the display name or UnknownLabel. It never carries the
	// recognition score.
	Label string
	// Color is ColorPrompt while a recognized face is being challenged.
	Color    color.RGBA
	State    verification.State
	GateOpen bool
	Prompt   string
	Status   string
	Cooldown time.Duration

	// Enrollment is set while collecting samples.
	Enrollment *enrollment.Status
	// Training is set on the frame a training result arrives.
	Training *enrollment.Result
}
