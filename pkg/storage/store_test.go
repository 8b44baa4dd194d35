package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "attendance.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var version int
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("version = %d, want %d", version, SchemaVersion)
	}
	_ = db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = db.Close()
}

func TestMigrate_NilDB(t *testing.T) {
	if err := Migrate(nil); err == nil {
		t.Error("expected error for nil db")
	}
}

func TestStore_CreateIdentity(t *testing.T) {
	store := newTestStore(t)

	id, err := store.CreateIdentity("  Zoë  ")
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	if id <= 0 {
		t.Fatalf("create identity returned id=%d", id)
	}

	ident, err := store.Identity(id)
	if err != nil {
		t.Fatalf("get identity: %v", err)
	}
	if ident.Name != "Zoë" {
		t.Errorf("name = %q, want %q", ident.Name, "Zoë")
	}

	if _, err := store.CreateIdentity("   "); err == nil {
		t.Error("expected error for blank name")
	}
	if _, err := store.Identity(999); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestStore_ListIdentities(t *testing.T) {
	store := newTestStore(t)

	alice, _ := store.CreateIdentity("Alice")
	bob, _ := store.CreateIdentity("Bob")

	roster, err := store.ListIdentities()
	if err != nil {
		t.Fatalf("list identities: %v", err)
	}
	if len(roster) != 2 || roster[alice] != "Alice" || roster[bob] != "Bob" {
		t.Errorf("unexpected roster %v", roster)
	}

	idents, _ := store.Identities()
	if len(idents) != 2 || idents[0].ID != alice {
		t.Errorf("identities should be ordered by id, got %v", idents)
	}
}

func TestStore_AppendAndLastEvent(t *testing.T) {
	store := newTestStore(t)
	id, _ := store.CreateIdentity("Alice")

	if _, found, err := store.LastEvent(id); err != nil || found {
		t.Fatalf("fresh identity should have no events, got found=%v err=%v", found, err)
	}

	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	if err := store.AppendEvent(id, KindIn, t0, "s1"); err != nil {
		t.Fatalf("append IN: %v", err)
	}
	if err := store.AppendEvent(id, KindOut, t0.Add(8*time.Hour+500*time.Millisecond), "s2"); err != nil {
		t.Fatalf("append OUT: %v", err)
	}

	last, found, err := store.LastEvent(id)
	if err != nil || !found {
		t.Fatalf("last event: found=%v err=%v", found, err)
	}
	if last.Kind != KindOut || last.SessionID != "s2" {
		t.Errorf("unexpected last event %+v", last)
	}
	if !last.At.Equal(t0.Add(8*time.Hour + 500*time.Millisecond)) {
		t.Errorf("timestamp round-trip failed: %v", last.At)
	}

	events, err := store.Events(id, 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 || events[0].Kind != KindOut || events[1].Kind != KindIn {
		t.Errorf("events should be newest first, got %+v", events)
	}
}

func TestStore_AppendEvent_Invalid(t *testing.T) {
	store := newTestStore(t)
	id, _ := store.CreateIdentity("Alice")
	now := time.Now()

	if err := store.AppendEvent(id, "LUNCH", now, ""); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
	if err := store.AppendEvent(0, KindIn, now, ""); err == nil {
		t.Error("expected error for identity 0")
	}
	if err := store.AppendEvent(999, KindIn, now, ""); err == nil {
		t.Error("expected foreign key violation for unknown identity")
	}
}

func TestNew_NilDB(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil db")
	}
}
