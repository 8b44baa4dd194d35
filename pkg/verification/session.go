// Package verification owns the per-subject verification state machine:
// a recognized identity must drain a randomized challenge queue to become
// verified, and stays verified through brief face loss until its
// hysteresis budget runs out.
//
// The machine assumes a single subject in front of the camera. Sessions
// are not keyed by identity; a second person can neither take over an
// open gate nor close it instantly.
package verification

import (
	"time"

	"github.com/MrCodeEU/facepunch/pkg/challenge"
)

// State is the verification state of the session.
type State string

const (
	Unverified  State = "UNVERIFIED"
	Challenging State = "CHALLENGING"
	Verified    State = "VERIFIED"
)

// Session is the transient state of one verification attempt.
type Session struct {
	ID          string
	IdentityID  int64
	State       State
	Queue       challenge.Queue
	Budget      int
	StepStarted time.Time
}

// Recognition is the per-frame recognizer output fed into the machine.
// Score uses distance semantics: lower is a better match.
type Recognition struct {
	FaceFound  bool
	Matched    bool
	IdentityID int64
	Score      float64
}

// Event describes what a frame changed.
type Event string

const (
	EventNone              Event = ""
	EventChallengeStarted  Event = "challenge_started"
	EventChallengeAdvanced Event = "challenge_advanced"
	EventChallengeRestart  Event = "challenge_restarted"
	EventVerified          Event = "verified"
	EventExpired           Event = "expired"
)

// Outcome is the machine's view after one frame.
type Outcome struct {
	State      State
	SessionID  string
	IdentityID int64 // identity owning the session, 0 when unverified
	Confident  bool  // this frame carried a confident match
	GateOpen   bool
	Prompt     string
	Cooldown   time.Duration // remaining cooldown while verified
	Budget     int
	Event      Event
}
