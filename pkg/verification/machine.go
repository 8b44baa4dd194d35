package verification

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrCodeEU/facepunch/pkg/challenge"
	"github.com/MrCodeEU/facepunch/pkg/liveness"
	"github.com/MrCodeEU/facepunch/pkg/logging"
)

// CooldownChecker reports how long an identity must still wait before it
// may punch again.
type CooldownChecker interface {
	Remaining(identityID int64, now time.Time) time.Duration
}

// Config holds the machine's tunables.
type Config struct {
	// AcceptanceThreshold is the score at or above which a recognition is
	// not a match.
	AcceptanceThreshold float64
	// HysteresisFrames is the full budget of tolerated non-matching frames
	// while verified.
	HysteresisFrames int
	// ChallengeTimeout discards a stalled challenge queue when positive.
	// Zero keeps a step pending indefinitely.
	ChallengeTimeout time.Duration
}

// DefaultConfig returns the reference tunables.
func DefaultConfig() Config {
	return Config{
		AcceptanceThreshold: 100,
		HysteresisFrames:    30,
	}
}

// Machine is the verification state machine. It is not safe for
// concurrent use; the frame loop owns it.
type Machine struct {
	cfg      Config
	seq      *challenge.Sequencer
	cooldown CooldownChecker
	session  Session
	newID    func() string
}

// New creates a Machine in the Unverified state. A nil cooldown checker
// means no identity is ever cooling down.
func New(cfg Config, seq *challenge.Sequencer, cooldown CooldownChecker) *Machine {
	if cfg.HysteresisFrames <= 0 {
		cfg.HysteresisFrames = DefaultConfig().HysteresisFrames
	}
	return &Machine{
		cfg:      cfg,
		seq:      seq,
		cooldown: cooldown,
		session:  Session{State: Unverified},
		newID:    uuid.NewString,
	}
}

// Session returns a copy of the current session.
func (m *Machine) Session() Session {
	s := m.session
	s.Queue = append(challenge.Queue(nil), m.session.Queue...)
	return s
}

// State returns the current state.
func (m *Machine) State() State {
	return m.session.State
}

// SessionID returns the id of the current verification attempt.
func (m *Machine) SessionID() string {
	return m.session.ID
}

// VerifiedIdentity returns the identity holding the verified session.
func (m *Machine) VerifiedIdentity() (int64, bool) {
	if m.session.State != Verified {
		return 0, false
	}
	return m.session.IdentityID, true
}

// Confident reports whether r is a match under the acceptance threshold.
func (m *Machine) Confident(r Recognition) bool {
	return r.FaceFound && r.Matched && r.Score < m.cfg.AcceptanceThreshold
}

// NeedsSignals reports whether Step will evaluate liveness signals for r.
// Callers may skip signal extraction otherwise.
func (m *Machine) NeedsSignals(r Recognition) bool {
	return m.Confident(r) && m.session.State != Verified
}

// GateOpen reports whether a punch may be committed now: the session is
// verified and its identity is not cooling down.
func (m *Machine) GateOpen(now time.Time) bool {
	if m.session.State != Verified {
		return false
	}
	return m.remaining(now) <= 0
}

// Reset clears the session back to Unverified, dropping any queue.
func (m *Machine) Reset() {
	m.session = Session{State: Unverified}
}

// Step advances the machine by one frame. Signals are only consulted while
// a confidently matched identity is being challenged.
func (m *Machine) Step(r Recognition, signals liveness.Signals, now time.Time) Outcome {
	var event Event

	switch {
	case !m.Confident(r):
		if m.session.State == Verified {
			event = m.decay()
		}

	case m.session.State == Verified:
		if r.IdentityID == m.session.IdentityID {
			m.session.Budget = m.cfg.HysteresisFrames
		} else {
			event = m.decay()
		}

	default:
		event = m.challenge(r.IdentityID, signals, now)
	}

	return m.outcome(m.Confident(r), event, now)
}

// challenge draws or advances the queue for a confidently matched identity.
func (m *Machine) challenge(identityID int64, signals liveness.Signals, now time.Time) Event {
	event := EventNone
	log := logging.Component("verification")

	if m.session.State == Challenging && m.session.IdentityID != identityID {
		log.WithField("session", m.session.ID).Debug("Different identity mid-challenge, restarting")
		m.Reset()
	}

	if m.session.State == Challenging && m.cfg.ChallengeTimeout > 0 &&
		now.Sub(m.session.StepStarted) > m.cfg.ChallengeTimeout {
		log.WithField("session", m.session.ID).Debug("Challenge step timed out, drawing a new queue")
		m.session.Queue = nil
		m.session.StepStarted = now
		event = EventChallengeRestart
	}

	if m.session.State != Challenging {
		m.session = Session{
			ID:          m.newID(),
			IdentityID:  identityID,
			State:       Challenging,
			StepStarted: now,
		}
		event = EventChallengeStarted
	}

	m.session.Queue = m.seq.Next(m.session.Queue)
	ev := m.seq.Evaluate(m.session.Queue, signals)
	m.session.Queue = ev.Queue

	if ev.Advanced {
		m.session.StepStarted = now
		event = EventChallengeAdvanced
	}

	if ev.Completed {
		m.session.State = Verified
		m.session.Queue = nil
		m.session.Budget = m.cfg.HysteresisFrames
		event = EventVerified
		log.WithFields(logging.Fields{
			"session":  m.session.ID,
			"identity": m.session.IdentityID,
		}).Info("Liveness challenge completed")
	}

	return event
}

// decay spends one frame of hysteresis budget and expires the session
// when it runs out.
func (m *Machine) decay() Event {
	m.session.Budget--
	if m.session.Budget > 0 {
		return EventNone
	}

	logging.Component("verification").WithFields(logging.Fields{
		"session":  m.session.ID,
		"identity": m.session.IdentityID,
	}).Info("Verification expired")
	m.Reset()
	return EventExpired
}

func (m *Machine) remaining(now time.Time) time.Duration {
	if m.cooldown == nil || m.session.State != Verified {
		return 0
	}
	return m.cooldown.Remaining(m.session.IdentityID, now)
}

func (m *Machine) outcome(confident bool, event Event, now time.Time) Outcome {
	out := Outcome{
		State:      m.session.State,
		SessionID:  m.session.ID,
		IdentityID: m.session.IdentityID,
		Confident:  confident,
		Budget:     m.session.Budget,
		Event:      event,
	}

	switch m.session.State {
	case Challenging:
		out.Prompt = m.seq.Prompt(m.session.Queue)
	case Verified:
		out.Cooldown = m.remaining(now)
		out.GateOpen = out.Cooldown <= 0
	}

	return out
}
