package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrCodeEU/facepunch/pkg/logging"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Event kinds accepted by the attendance table.
const (
	KindIn  = "IN"
	KindOut = "OUT"
)

// ErrIdentityNotFound is returned when an identity id is unknown.
var ErrIdentityNotFound = errors.New("identity not found")

// ErrInvalidKind is returned for event kinds other than IN and OUT.
var ErrInvalidKind = errors.New("invalid attendance kind")

// Identity is an enrolled person.
type Identity struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Event is one committed attendance punch.
type Event struct {
	ID         int64
	IdentityID int64
	Kind       string
	At         time.Time
	SessionID  string
}

// Store provides SQLite-backed persistence for identities and attendance
// events.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New returns a Store bound to an existing database handle.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Store{db: db, now: time.Now}, nil
}

// OpenStore opens the database at path and returns a Store owning it.
func OpenStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return New(db)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateIdentity inserts a new identity and returns its id.
func (s *Store) CreateIdentity(name string) (int64, error) {
	if s == nil || s.db == nil {
		return -1, fmt.Errorf("create identity: store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return -1, fmt.Errorf("create identity: name is empty")
	}

	now := s.now().UTC().Format(timeLayout)
	result, err := s.db.Exec(`INSERT INTO identities (name, created_at) VALUES (?, ?)`, name, now)
	if err != nil {
		return -1, fmt.Errorf("create identity: insert: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return -1, fmt.Errorf("create identity: last insert id: %w", err)
	}

	logging.Component("storage").WithFields(logging.Fields{"identity": id, "name": name}).Info("Created identity")
	return id, nil
}

// Identity returns the identity with the given id.
func (s *Store) Identity(id int64) (Identity, error) {
	if s == nil || s.db == nil {
		return Identity{}, fmt.Errorf("get identity: store is nil")
	}

	var ident Identity
	var createdAt string
	err := s.db.QueryRow(`SELECT id, name, created_at FROM identities WHERE id = ?`, id).
		Scan(&ident.ID, &ident.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, ErrIdentityNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("get identity: %w", err)
	}
	ident.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return Identity{}, fmt.Errorf("get identity: parse created_at: %w", err)
	}
	return ident, nil
}

// Identities returns every identity ordered by id.
func (s *Store) Identities() ([]Identity, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("list identities: store is nil")
	}

	rows, err := s.db.Query(`SELECT id, name, created_at FROM identities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list identities: query: %w", err)
	}
	defer rows.Close()

	var out []Identity
	for rows.Next() {
		var ident Identity
		var createdAt string
		if err := rows.Scan(&ident.ID, &ident.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("list identities: scan: %w", err)
		}
		ident.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("list identities: parse created_at: %w", err)
		}
		out = append(out, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list identities: rows: %w", err)
	}
	return out, nil
}

// ListIdentities returns the id to display-name roster.
func (s *Store) ListIdentities() (map[int64]string, error) {
	idents, err := s.Identities()
	if err != nil {
		return nil, err
	}
	roster := make(map[int64]string, len(idents))
	for _, ident := range idents {
		roster[ident.ID] = ident.Name
	}
	return roster, nil
}

// AppendEvent appends an immutable attendance event.
func (s *Store) AppendEvent(identityID int64, kind string, at time.Time, sessionID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("append event: store is nil")
	}
	if identityID <= 0 {
		return fmt.Errorf("append event: invalid identity ID")
	}
	if kind != KindIn && kind != KindOut {
		return fmt.Errorf("append event: %w: %q", ErrInvalidKind, kind)
	}

	_, err := s.db.Exec(`INSERT INTO attendance (identity_id, kind, at, session_id) VALUES (?, ?, ?, ?)`,
		identityID, kind, at.UTC().Format(timeLayout), sessionID)
	if err != nil {
		return fmt.Errorf("append event: insert: %w", err)
	}

	logging.Component("storage").WithFields(logging.Fields{
		"identity": identityID,
		"kind":     kind,
		"session":  sessionID,
	}).Debug("Appended attendance event")
	return nil
}

// LastEvent returns the most recent event for an identity. The boolean is
// false when the identity has never punched.
func (s *Store) LastEvent(identityID int64) (Event, bool, error) {
	events, err := s.Events(identityID, 1)
	if err != nil {
		return Event{}, false, err
	}
	if len(events) == 0 {
		return Event{}, false, nil
	}
	return events[0], true, nil
}

// Events returns an identity's events, newest first. A non-positive limit
// returns all of them.
func (s *Store) Events(identityID int64, limit int) ([]Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("list events: store is nil")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`SELECT id, identity_id, kind, at, session_id FROM attendance
		WHERE identity_id = ? ORDER BY at DESC, id DESC LIMIT ?`, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: query: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var at string
		if err := rows.Scan(&ev.ID, &ev.IdentityID, &ev.Kind, &at, &ev.SessionID); err != nil {
			return nil, fmt.Errorf("list events: scan: %w", err)
		}
		ev.At, err = time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("list events: parse at: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: rows: %w", err)
	}
	return out, nil
}
