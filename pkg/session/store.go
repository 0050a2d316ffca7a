package session

import (
	"fmt"
	"time"

	"github.com/entrhq/taskify/pkg/config"
)

// DefaultFreshness is how long a saved record is trusted.
const DefaultFreshness = time.Hour

// Record is the persisted cross-process hint about the last known session.
// It is never a source of truth: callers re-derive state from the endpoint.
type Record struct {
	HasSession    bool    `json:"has_driver"`
	Authenticated bool    `json:"is_logged_in"`
	Timestamp     float64 `json:"timestamp"`
}

// SavedAt returns the record timestamp as a time.
func (r Record) SavedAt() time.Time {
	sec := int64(r.Timestamp)
	nsec := int64((r.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// Store reads and writes the session record file.
type Store struct {
	file      *config.FileStore
	freshness time.Duration
	now       func() time.Time
}

// NewStore creates a store at path. A non-positive freshness uses DefaultFreshness.
func NewStore(path string, freshness time.Duration) (*Store, error) {
	file, err := config.NewFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &Store{file: file, freshness: freshness, now: time.Now}, nil
}

// SetClock replaces the time source. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Path returns the record file path.
func (s *Store) Path() string {
	return s.file.Path()
}

// Save writes a record stamped with the current time.
func (s *Store) Save(hasSession, authenticated bool) error {
	now := s.now()
	rec := Record{
		HasSession:    hasSession,
		Authenticated: authenticated,
		Timestamp:     float64(now.UnixNano()) / float64(time.Second),
	}
	if err := s.file.Write(rec); err != nil {
		return fmt.Errorf("save session record: %w", err)
	}
	debugLog.Debugf("Saved session record: has_session=%t authenticated=%t", hasSession, authenticated)
	return nil
}

// Load returns the saved record. A missing, unreadable or stale record is
// reported as absent; a stale one is also deleted.
func (s *Store) Load() (Record, bool) {
	var rec Record
	found, err := s.file.Read(&rec)
	if err != nil {
		debugLog.Warnf("Ignoring unreadable session record: %v", err)
		return Record{}, false
	}
	if !found {
		return Record{}, false
	}

	if age := s.now().Sub(rec.SavedAt()); age >= s.freshness || age < -s.freshness {
		debugLog.Debugf("Session record is stale (age %s), clearing", age.Round(time.Second))
		if err := s.file.Remove(); err != nil {
			debugLog.Warnf("Failed to remove stale session record: %v", err)
		}
		return Record{}, false
	}
	return rec, true
}

// Clear deletes the record.
func (s *Store) Clear() error {
	if err := s.file.Remove(); err != nil {
		return fmt.Errorf("clear session record: %w", err)
	}
	debugLog.Debugf("Cleared session record")
	return nil
}
