package attendance

import (
	"errors"
	"testing"
	"time"

	"github.com/MrCodeEU/facepunch/pkg/storage"
)

// MockStore implements EventStore for testing.
type MockStore struct {
	Events        []storage.Event
	AppendErr     error
	LastErr       error
	LastEventHits int
}

func (m *MockStore) AppendEvent(identityID int64, kind string, at time.Time, sessionID string) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Events = append(m.Events, storage.Event{
		ID: int64(len(m.Events) + 1), IdentityID: identityID, Kind: kind, At: at, SessionID: sessionID,
	})
	return nil
}

func (m *MockStore) LastEvent(identityID int64) (storage.Event, bool, error) {
	m.LastEventHits++
	if m.LastErr != nil {
		return storage.Event{}, false, m.LastErr
	}
	for i := len(m.Events) - 1; i >= 0; i-- {
		if m.Events[i].IdentityID == identityID {
			return m.Events[i], true, nil
		}
	}
	return storage.Event{}, false, nil
}

// MockHolder implements Holder for testing.
type MockHolder struct {
	ID       int64
	Verified bool
	Session  string
	Resets   int
}

func (m *MockHolder) VerifiedIdentity() (int64, bool) { return m.ID, m.Verified }
func (m *MockHolder) SessionID() string               { return m.Session }
func (m *MockHolder) Reset()                          { m.Verified = false; m.Resets++ }

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func newTestGate(store EventStore, clock *time.Time) *Gate {
	g := NewGate(store, 30*time.Second)
	g.now = func() time.Time { return *clock }
	return g
}

func TestTryCommit_Success(t *testing.T) {
	store := &MockStore{}
	clock := t0
	g := newTestGate(store, &clock)
	h := &MockHolder{ID: 7, Verified: true, Session: "s1"}

	c, err := g.TryCommit(h, In)
	if err != nil {
		t.Fatalf("TryCommit: %v", err)
	}
	if c.IdentityID != 7 || c.Kind != In || !c.At.Equal(t0) || c.SessionID != "s1" {
		t.Errorf("unexpected commit %+v", c)
	}
	if len(store.Events) != 1 || store.Events[0].Kind != "IN" {
		t.Errorf("expected one IN event, got %+v", store.Events)
	}
	if h.Resets != 1 {
		t.Error("holder should be reset after commit")
	}
}

func TestTryCommit_RequiresReverification(t *testing.T) {
	store := &MockStore{}
	clock := t0
	g := newTestGate(store, &clock)
	h := &MockHolder{ID: 7, Verified: true}

	if _, err := g.TryCommit(h, In); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	clock = t0.Add(10 * time.Second)
	if _, err := g.TryCommit(h, Out); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}
	if len(store.Events) != 1 {
		t.Error("no event should be written without verification")
	}
}

func TestTryCommit_Cooldown(t *testing.T) {
	store := &MockStore{}
	clock := t0
	g := newTestGate(store, &clock)

	if _, err := g.TryCommit(&MockHolder{ID: 7, Verified: true}, In); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	tests := []struct {
		after   time.Duration
		seconds int
	}{
		{10 * time.Second, 20},
		{10*time.Second + 500*time.Millisecond, 20},
		{29*time.Second + time.Millisecond, 1},
	}
	for _, tt := range tests {
		clock = t0.Add(tt.after)
		h := &MockHolder{ID: 7, Verified: true}
		_, err := g.TryCommit(h, Out)

		var cd *CooldownError
		if !errors.As(err, &cd) {
			t.Fatalf("after %s: expected CooldownError, got %v", tt.after, err)
		}
		if cd.Seconds() != tt.seconds {
			t.Errorf("after %s: remaining = %ds, want %ds", tt.after, cd.Seconds(), tt.seconds)
		}
		if h.Resets != 0 {
			t.Errorf("after %s: cooldown must not reset the session", tt.after)
		}
	}

	clock = t0.Add(30 * time.Second)
	if _, err := g.TryCommit(&MockHolder{ID: 7, Verified: true}, Out); err != nil {
		t.Errorf("commit at cooldown boundary should succeed, got %v", err)
	}
	if len(store.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(store.Events))
	}
}

func TestTryCommit_CooldownIsPerIdentity(t *testing.T) {
	clock := t0
	g := newTestGate(&MockStore{}, &clock)

	_, _ = g.TryCommit(&MockHolder{ID: 7, Verified: true}, In)
	clock = t0.Add(time.Second)
	if _, err := g.TryCommit(&MockHolder{ID: 8, Verified: true}, In); err != nil {
		t.Errorf("another identity should not be cooling down, got %v", err)
	}
}

func TestTryCommit_StorageFailure(t *testing.T) {
	dbErr := errors.New("disk full")
	store := &MockStore{AppendErr: dbErr}
	clock := t0
	g := newTestGate(store, &clock)
	h := &MockHolder{ID: 7, Verified: true}

	_, err := g.TryCommit(h, In)
	if !errors.Is(err, ErrStorage) || !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped ErrStorage, got %v", err)
	}
	if h.Resets != 0 {
		t.Error("failed commit must keep the session verified")
	}
	if g.Remaining(7, t0) != 0 {
		t.Error("failed commit must not start a cooldown")
	}
}

func TestTryCommit_InvalidKind(t *testing.T) {
	clock := t0
	g := newTestGate(&MockStore{}, &clock)
	if _, err := g.TryCommit(&MockHolder{ID: 7, Verified: true}, Kind("LUNCH")); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
}

func TestRemaining_SeedsFromStore(t *testing.T) {
	store := &MockStore{Events: []storage.Event{{IdentityID: 7, Kind: "IN", At: t0}}}
	clock := t0.Add(5 * time.Second)
	g := newTestGate(store, &clock)

	if rem := g.Remaining(7, clock); rem != 25*time.Second {
		t.Errorf("expected 25s seeded from storage, got %s", rem)
	}
	g.Remaining(7, clock)
	g.Remaining(9, clock)
	g.Remaining(9, clock)
	if store.LastEventHits != 2 {
		t.Errorf("storage should be consulted once per identity, got %d hits", store.LastEventHits)
	}
}

func TestRemaining_SeedErrorRetries(t *testing.T) {
	store := &MockStore{LastErr: errors.New("locked")}
	g := newTestGate(store, &t0)

	if rem := g.Remaining(7, t0); rem != 0 {
		t.Errorf("unreadable storage should not block, got %s", rem)
	}
	store.LastErr = nil
	store.Events = []storage.Event{{IdentityID: 7, Kind: "IN", At: t0}}
	later := t0.Add(seedRetryDelay)
	if rem := g.Remaining(7, later); rem != 30*time.Second-seedRetryDelay {
		t.Errorf("seeding should be retried after an error, got %s", rem)
	}
}

func TestRemaining_SeedErrorIsRateLimited(t *testing.T) {
	store := &MockStore{LastErr: errors.New("locked")}
	g := newTestGate(store, &t0)

	// One verified frame per 33ms for just under the retry delay.
	for at := t0; at.Before(t0.Add(seedRetryDelay)); at = at.Add(33 * time.Millisecond) {
		g.Remaining(7, at)
	}
	if store.LastEventHits != 1 {
		t.Errorf("expected a single storage read inside the retry window, got %d", store.LastEventHits)
	}

	g.Remaining(7, t0.Add(seedRetryDelay))
	if store.LastEventHits != 2 {
		t.Errorf("expected a retry once the window passed, got %d hits", store.LastEventHits)
	}
}

func TestSuggest(t *testing.T) {
	store := &MockStore{}
	g := NewGate(store, 0)

	if k, _ := g.Suggest(7); k != In {
		t.Errorf("no history should suggest IN, got %s", k)
	}
	store.Events = append(store.Events, storage.Event{IdentityID: 7, Kind: "IN", At: t0})
	if k, _ := g.Suggest(7); k != Out {
		t.Errorf("after IN should suggest OUT, got %s", k)
	}
	store.Events = append(store.Events, storage.Event{IdentityID: 7, Kind: "OUT", At: t0.Add(time.Hour)})
	if k, _ := g.Suggest(7); k != In {
		t.Errorf("after OUT should suggest IN, got %s", k)
	}

	store.LastErr = errors.New("boom")
	if _, err := g.Suggest(7); !errors.Is(err, ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"in", In, false},
		{" OUT ", Out, false},
		{"In", In, false},
		{"lunch", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseKind(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestNewGate_DefaultCooldown(t *testing.T) {
	if NewGate(nil, 0).Cooldown() != DefaultCooldown {
		t.Error("zero cooldown should use the default")
	}
}

func TestCooldownErrorMessage(t *testing.T) {
	err := &CooldownError{IdentityID: 7, Remaining: 19500 * time.Millisecond}
	if err.Error() != "cooldown active: wait 20 seconds" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
