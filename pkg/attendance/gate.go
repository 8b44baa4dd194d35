// Package attendance decides whether a verified identity may commit an
// IN/OUT punch and records it.
package attendance

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/MrCodeEU/facepunch/pkg/logging"
	"github.com/MrCodeEU/facepunch/pkg/storage"
)

// DefaultCooldown is the minimum spacing between two punches of the same
// identity.
const DefaultCooldown = 30 * time.Second

// seedRetryDelay spaces out ledger seeding attempts after a storage error.
const seedRetryDelay = 5 * time.Second

// Kind is the punch direction.
type Kind string

const (
	In  Kind = storage.KindIn
	Out Kind = storage.KindOut
)

// ParseKind parses "in"/"out" case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case In:
		return In, nil
	case Out:
		return Out, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

var (
	// ErrNotVerified is returned when no verified session holds the gate.
	ErrNotVerified = errors.New("no verified identity")
	// ErrInvalidKind is returned for kinds other than IN and OUT.
	ErrInvalidKind = errors.New("invalid punch kind")
	// ErrStorage wraps failures of the event store.
	ErrStorage = errors.New("attendance storage failure")
)

// CooldownError is returned when the identity punched too recently.
type CooldownError struct {
	IdentityID int64
	Remaining  time.Duration
}

// Seconds returns the remaining cooldown rounded up to whole seconds.
func (e *CooldownError) Seconds() int {
	return CeilSeconds(e.Remaining)
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: wait %d seconds", e.Seconds())
}

// CeilSeconds rounds d up to whole seconds.
func CeilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// Holder is the verification session the gate commits against.
type Holder interface {
	VerifiedIdentity() (int64, bool)
	SessionID() string
	Reset()
}

// EventStore persists punches.
type EventStore interface {
	AppendEvent(identityID int64, kind string, at time.Time, sessionID string) error
	LastEvent(identityID int64) (storage.Event, bool, error)
}

// Committed describes a recorded punch.
type Committed struct {
	IdentityID int64
	Kind       Kind
	At         time.Time
	SessionID  string
}

// Gate enforces the per-identity cooldown and commits punches. It owns the
// cooldown ledger and is not safe for concurrent use.
type Gate struct {
	store    EventStore
	cooldown time.Duration
	ledger   map[int64]time.Time
	seeded   map[int64]bool
	// retryAt holds the earliest time a failed seed may be attempted again.
	retryAt map[int64]time.Time
	now     func() time.Time
}

// NewGate creates a Gate. A non-positive cooldown uses DefaultCooldown.
func NewGate(store EventStore, cooldown time.Duration) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Gate{
		store:    store,
		cooldown: cooldown,
		ledger:   make(map[int64]time.Time),
		seeded:   make(map[int64]bool),
		retryAt:  make(map[int64]time.Time),
		now:      time.Now,
	}
}

// Cooldown returns the configured cooldown.
func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}

// lastPunch returns the ledger entry for an identity, seeding it once from
// storage so cooldowns survive restarts. A failed seed is retried no sooner
// than seedRetryDelay later.
func (g *Gate) lastPunch(identityID int64, now time.Time) (time.Time, bool) {
	if at, ok := g.ledger[identityID]; ok {
		return at, true
	}
	if g.store == nil || g.seeded[identityID] {
		return time.Time{}, false
	}
	if at, ok := g.retryAt[identityID]; ok && now.Before(at) {
		return time.Time{}, false
	}

	ev, found, err := g.store.LastEvent(identityID)
	if err != nil {
		logging.Component("attendance").WithError(err).WithField("identity", identityID).
			Warn("Failed to seed cooldown ledger")
		g.retryAt[identityID] = now.Add(seedRetryDelay)
		return time.Time{}, false
	}
	delete(g.retryAt, identityID)
	g.seeded[identityID] = true
	if !found {
		return time.Time{}, false
	}
	g.ledger[identityID] = ev.At
	return ev.At, true
}

// Remaining returns how long identityID must still wait at now. Zero means
// no cooldown is active.
func (g *Gate) Remaining(identityID int64, now time.Time) time.Duration {
	last, ok := g.lastPunch(identityID, now)
	if !ok {
		return 0
	}
	elapsed := now.Sub(last)
	if elapsed >= g.cooldown {
		return 0
	}
	return g.cooldown - elapsed
}

// TryCommit records a punch for the identity verified by h. On success the
// holder is reset so the next punch requires a fresh verification.
func (g *Gate) TryCommit(h Holder, kind Kind) (Committed, error) {
	identityID, ok := h.VerifiedIdentity()
	if !ok {
		return Committed{}, ErrNotVerified
	}
	if kind != In && kind != Out {
		return Committed{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	now := g.now()
	if rem := g.Remaining(identityID, now); rem > 0 {
		return Committed{}, &CooldownError{IdentityID: identityID, Remaining: rem}
	}

	sessionID := h.SessionID()
	if err := g.store.AppendEvent(identityID, string(kind), now, sessionID); err != nil {
		return Committed{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	g.ledger[identityID] = now
	h.Reset()

	logging.Component("attendance").WithFields(logging.Fields{
		"identity": identityID,
		"kind":     kind,
		"session":  sessionID,
	}).Info("Punch committed")

	return Committed{IdentityID: identityID, Kind: kind, At: now, SessionID: sessionID}, nil
}

// Suggest returns the likely next punch for an identity: IN when the last
// event is OUT or there is none, OUT otherwise.
func (g *Gate) Suggest(identityID int64) (Kind, error) {
	if g.store == nil {
		return In, nil
	}
	ev, found, err := g.store.LastEvent(identityID)
	if err != nil {
		return In, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if found && Kind(ev.Kind) == In {
		return Out, nil
	}
	return In, nil
}
