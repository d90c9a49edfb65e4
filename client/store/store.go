// Package store is the device-local persistence layer: a flat string
// key→value table mirroring the browser localStorage layout the workflow was
// built around. Every screen of the flow depends on these exact key names and
// JSON shapes; renaming a key breaks state continuity across a restart.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Persisted state keys. The workflow treats a missing key as "restart from
// scan", so a crash between writes never wedges the device.
const (
	KeyAuthUser     = "smt_auth_user"
	KeyTruckBarcode = "currentTruckBarcode"
	KeyTripType     = "tripType"
	KeyTripNumber   = "tripNumber"
	KeyTripDriver   = "tripDriver"
	KeyCurrentTrip  = "currentTripData"
	KeyChecklist    = "checklistData"
	KeyTripData     = "tripData"
	KeyTrips        = "trips"
	KeyEnvironment  = "selectedEnvironment"
)

// Store is a sqlite-backed key/value store. Writes are atomic per key, not
// across keys; readers must tolerate partial state.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the local state database at path.
// Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	// Single writer: the workflow is single-threaded by design.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create local store schema: %w", err)
	}

	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS local_state (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Get returns the stored value for key, or "" when absent. Read failures are
// also reported as absence: the entry-state checks treat missing and
// unreadable state the same way.
func (s *Store) Get(key string) string {
	var value string
	if err := s.db.QueryRow(`SELECT value FROM local_state WHERE key = ?`, key).Scan(&value); err != nil {
		// Unreadable state degrades to missing state.
		return ""
	}
	return value
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO local_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM local_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Clear wipes the whole store (logout semantics).
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM local_state`); err != nil {
		return fmt.Errorf("failed to clear local store: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
