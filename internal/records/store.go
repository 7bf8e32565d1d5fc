// Package records implements the SQLite-backed store of completed relay
// sessions, queried by the API and CLI history views.
package records

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SessionRecord is one completed session.
type SessionRecord struct {
	SessionID string    `json:"session_id"`
	MatchID   uint32    `json:"match_id"`
	MatchName string    `json:"match_name"`
	NodeName  string    `json:"node_name"`
	Outcome   string    `json:"outcome"`
	TickRecv  uint32    `json:"tick_recv"`
	TickAck   uint32    `json:"tick_ack"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Store wraps a SQLite database holding session records.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens or creates the store at the given path and applies the schema.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	// SQLite does not support concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warn().Err(err).Msg("failed to enable WAL mode")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("session store opened")
	return &Store{db: db, path: dbPath}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	match_id   INTEGER NOT NULL,
	match_name TEXT NOT NULL,
	node_name  TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	tick_recv  INTEGER NOT NULL,
	tick_ack   INTEGER NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMP NOT NULL,
	ended_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);
`

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores a completed session.
func (s *Store) Insert(rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO sessions
			(session_id, match_id, match_name, node_name, outcome, tick_recv, tick_ack, error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.MatchID, rec.MatchName, rec.NodeName, rec.Outcome,
		rec.TickRecv, rec.TickAck, rec.Error, rec.StartedAt, rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session record: %w", err)
	}
	return nil
}

// Recent returns the most recently ended sessions, newest first.
func (s *Store) Recent(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT session_id, match_id, match_name, node_name, outcome, tick_recv, tick_ack, error, started_at, ended_at
		FROM sessions ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session records: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(
			&rec.SessionID, &rec.MatchID, &rec.MatchName, &rec.NodeName, &rec.Outcome,
			&rec.TickRecv, &rec.TickAck, &rec.Error, &rec.StartedAt, &rec.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the total number of recorded sessions.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count session records: %w", err)
	}
	return n, nil
}
