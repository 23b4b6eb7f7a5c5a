package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"sable/internal/crypto"
	"sable/internal/domain"
	"sable/internal/e2ee"
)

const schema = `
CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS account (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	serialized TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	user_id    TEXT NOT NULL,
	device_key TEXT NOT NULL,
	session_id TEXT NOT NULL,
	serialized TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, device_key)
);
`

const metadataKey = "info"

// Store owns one SQLite connection for its open lifetime. All operations are
// serialized on that connection; components needing concurrent access share
// one Store rather than opening the same path twice.
type Store struct {
	db  *sql.DB
	key [32]byte
	mu  sync.Mutex
}

// Open creates or opens the key store at path. storageKey encrypts and
// decrypts every account and session blob; the store keeps its own copy and
// wipes it on Close.
func Open(path string, storageKey *[32]byte) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrDatabase, path, err)
	}
	// One connection for the store's lifetime, so the pragmas below bind to
	// the connection every later statement runs on.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrDatabase, pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", domain.ErrDatabase, err)
	}

	s := &Store{db: db}
	copy(s.key[:], storageKey[:])
	return s, nil
}

// Close wipes the held storage key and releases the connection. Safe on all
// exit paths, including after errors.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	crypto.Wipe(s.key[:])
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", domain.ErrDatabase, err)
	}
	return nil
}

// HasAccount reports whether an account row exists.
func (s *Store) HasAccount() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists bool
	err := s.db.QueryRow("SELECT EXISTS (SELECT 1 FROM account WHERE id = 1)").Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: has account: %v", domain.ErrDatabase, err)
	}
	return exists, nil
}

// SaveAccount pickles the account under the storage key and upserts the
// single account row. Idempotent; prior content is replaced unconditionally.
func (s *Store) SaveAccount(account *e2ee.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAccountLocked(s.db, account)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) saveAccountLocked(ex execer, account *e2ee.Account) error {
	serialized, err := account.Pickle(&s.key)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(
		"INSERT OR REPLACE INTO account (id, serialized) VALUES (1, ?)", serialized,
	); err != nil {
		return fmt.Errorf("%w: save account: %v", domain.ErrDatabase, err)
	}
	return nil
}

// LoadAccount reads and unpickles the single account row. Absence reports
// ErrNotFound; a wrong storage key reports ErrDecryptionFailed.
func (s *Store) LoadAccount() (*e2ee.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var serialized string
	err := s.db.QueryRow("SELECT serialized FROM account WHERE id = 1").Scan(&serialized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no account", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load account: %v", domain.ErrDatabase, err)
	}
	return e2ee.UnpickleAccount(serialized, &s.key)
}

// SaveSession upserts one session keyed by (user_id, device_key). Repeated
// saves under an advancing ratchet always leave exactly one row per key.
func (s *Store) SaveSession(key domain.SessionKey, session *e2ee.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSessionLocked(s.db, key, session)
}

func (s *Store) saveSessionLocked(ex execer, key domain.SessionKey, session *e2ee.Session) error {
	serialized, err := session.Pickle(&s.key)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(
		`INSERT OR REPLACE INTO sessions (user_id, device_key, session_id, serialized, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		key.UserID.String(), key.DeviceKey, session.ID(), serialized, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("%w: save session: %v", domain.ErrDatabase, err)
	}
	return nil
}

// LoadSession reads one session. ok is false when no row exists for the key;
// a wrong storage key or corruption reports ErrDecryptionFailed.
func (s *Store) LoadSession(key domain.SessionKey) (session *e2ee.Session, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var serialized string
	err = s.db.QueryRow(
		"SELECT serialized FROM sessions WHERE user_id = ? AND device_key = ?",
		key.UserID.String(), key.DeviceKey,
	).Scan(&serialized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: load session: %v", domain.ErrDatabase, err)
	}
	session, err = e2ee.UnpickleSession(serialized, &s.key)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// SaveAccountAndSession writes both rows in one transaction, so consuming a
// one-time key and creating its inbound session land together or not at all.
func (s *Store) SaveAccountAndSession(account *e2ee.Account, key domain.SessionKey, session *e2ee.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrDatabase, err)
	}
	if err := s.saveAccountLocked(tx, account); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.saveSessionLocked(tx, key, session); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrDatabase, err)
	}
	return nil
}

// SaveMetadata upserts the single metadata row. Written once at
// provisioning; overwrite semantics match the account row.
func (s *Store) SaveMetadata(meta domain.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSerialization, err)
	}
	if _, err := s.db.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)", metadataKey, string(raw),
	); err != nil {
		return fmt.Errorf("%w: save metadata: %v", domain.ErrDatabase, err)
	}
	return nil
}

// LoadMetadata reads the metadata row; ok is false when none exists.
func (s *Store) LoadMetadata() (meta domain.Metadata, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err = s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", metadataKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Metadata{}, false, nil
	}
	if err != nil {
		return domain.Metadata{}, false, fmt.Errorf("%w: load metadata: %v", domain.ErrDatabase, err)
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return domain.Metadata{}, false, fmt.Errorf("%w: %v", domain.ErrSerialization, err)
	}
	return meta, true, nil
}

// DeleteSession removes the session row for a key, if any. Deleting a
// session is caller policy; this layer never does it on its own.
func (s *Store) DeleteSession(key domain.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(
		"DELETE FROM sessions WHERE user_id = ? AND device_key = ?",
		key.UserID.String(), key.DeviceKey,
	); err != nil {
		return fmt.Errorf("%w: delete session: %v", domain.ErrDatabase, err)
	}
	return nil
}

// SessionCount returns the number of stored sessions for a key. Used by
// callers verifying the one-row-per-key invariant.
func (s *Store) SessionCount(key domain.SessionKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sessions WHERE user_id = ? AND device_key = ?",
		key.UserID.String(), key.DeviceKey,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count sessions: %v", domain.ErrDatabase, err)
	}
	return n, nil
}
