// Package sqlite implements a durable SessionStore backed by a single SQLite
// database file, using the pure-Go modernc.org/sqlite driver so no cgo
// toolchain is needed.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/caravel-ai/caravel/core"
	_ "modernc.org/sqlite"
)

// Store persists sessions, messages and usage in three tables. Messages keep
// an explicit ordinal so history order survives round-trips.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// modernc sqlite serializes writes internally but concurrent writers can
	// still hit SQLITE_BUSY on a shared connection pool.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			agent TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			parent_id TEXT NOT NULL DEFAULT '',
			parent_agent TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			created DATETIME NOT NULL,
			updated DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			session_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			payload JSON NOT NULL,
			PRIMARY KEY (session_id, ordinal)
		)`,
		`CREATE TABLE IF NOT EXISTS usage (
			session_id TEXT NOT NULL,
			model TEXT NOT NULL,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			cost REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (session_id, model)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_parent ON sessions(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(agent)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate session db: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create implements core.SessionStore.
func (s *Store) Create(agent, parentID, parentAgent string, typ core.ThreadType, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if parentID != "" {
		if ok, err := s.exists(parentID); err != nil {
			return "", err
		} else if !ok {
			return "", core.NewNotFoundError("session", parentID)
		}
	}

	id := core.NewID()
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, agent, name, parent_id, parent_agent, type, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, agent, name, parentID, parentAgent, string(typ), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// Get implements core.SessionStore.
func (s *Store) Get(id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *Store) get(id string) (*core.Session, error) {
	row := s.db.QueryRow(
		`SELECT id, agent, name, parent_id, parent_agent, type, created, updated FROM sessions WHERE id = ?`, id,
	)
	sess, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, core.NewNotFoundError("session", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if err := s.loadMessages(sess); err != nil {
		return nil, err
	}
	if err := s.loadUsage(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) loadMessages(sess *core.Session) error {
	rows, err := s.db.Query(`SELECT payload FROM messages WHERE session_id = ? ORDER BY ordinal`, sess.ID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()
	sess.Messages = []core.Message{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return err
		}
		var msg core.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		sess.Messages = append(sess.Messages, msg)
	}
	return rows.Err()
}

func (s *Store) loadUsage(sess *core.Session) error {
	rows, err := s.db.Query(`SELECT model, input_tokens, output_tokens, cost FROM usage WHERE session_id = ?`, sess.ID)
	if err != nil {
		return fmt.Errorf("load usage: %w", err)
	}
	defer rows.Close()
	sess.Usage = core.Usage{}
	for rows.Next() {
		var mdl string
		var u core.ModelUsage
		if err := rows.Scan(&mdl, &u.InputTokens, &u.OutputTokens, &u.Cost); err != nil {
			return err
		}
		sess.Usage[mdl] = u
	}
	return rows.Err()
}

// Append implements core.SessionStore.
func (s *Store) Append(id string, msg core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, err := s.exists(id); err != nil {
		return err
	} else if !ok {
		return core.NewNotFoundError("session", id)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO messages (session_id, ordinal, payload)
		 VALUES (?, (SELECT COALESCE(MAX(ordinal), -1) + 1 FROM messages WHERE session_id = ?), ?)`,
		id, id, payload,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	_, err = s.db.Exec(`UPDATE sessions SET updated = ? WHERE id = ?`, now, id)
	return err
}

// AddUsage implements core.SessionStore, accumulating per-model counters.
func (s *Store) AddUsage(id, model string, usage core.ModelUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, err := s.exists(id); err != nil {
		return err
	} else if !ok {
		return core.NewNotFoundError("session", id)
	}

	_, err := s.db.Exec(
		`INSERT INTO usage (session_id, model, input_tokens, output_tokens, cost) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, model) DO UPDATE SET
			input_tokens = input_tokens + excluded.input_tokens,
			output_tokens = output_tokens + excluded.output_tokens,
			cost = cost + excluded.cost`,
		id, model, usage.InputTokens, usage.OutputTokens, usage.Cost,
	)
	if err != nil {
		return fmt.Errorf("add usage: %w", err)
	}
	_, err = s.db.Exec(`UPDATE sessions SET updated = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// List implements core.SessionStore, ordered by creation.
func (s *Store) List(agent string) ([]*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id FROM sessions ORDER BY rowid`
	args := []any{}
	if agent != "" {
		query = `SELECT id FROM sessions WHERE agent = ? ORDER BY rowid`
		args = append(args, agent)
	}
	return s.collect(query, args...)
}

// Children implements core.SessionStore.
func (s *Store) Children(id string) ([]*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, err := s.exists(id); err != nil {
		return nil, err
	} else if !ok {
		return nil, core.NewNotFoundError("session", id)
	}
	return s.collect(`SELECT id FROM sessions WHERE parent_id = ? ORDER BY rowid`, id)
}

func (s *Store) collect(query string, args ...any) ([]*core.Session, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []*core.Session
	for _, id := range ids {
		sess, err := s.get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// Fork implements core.SessionStore.
func (s *Store) Fork(id string, at int, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.get(id)
	if err != nil {
		return "", err
	}
	if at < 0 || at > len(src.Messages) {
		at = len(src.Messages)
	}

	forkID := core.NewID()
	now := time.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (id, agent, name, parent_id, parent_agent, type, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		forkID, src.Agent, name, src.ID, src.Agent, string(core.ThreadFork), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("fork session: %w", err)
	}
	for i, msg := range src.Messages[:at] {
		payload, err := json.Marshal(msg)
		if err != nil {
			return "", fmt.Errorf("encode message: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO messages (session_id, ordinal, payload) VALUES (?, ?, ?)`, forkID, i, payload); err != nil {
			return "", fmt.Errorf("fork messages: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return forkID, nil
}

func (s *Store) exists(id string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanSession(scan func(dest ...any) error) (*core.Session, error) {
	var sess core.Session
	var typ string
	err := scan(&sess.ID, &sess.Agent, &sess.Name, &sess.ParentID, &sess.ParentAgent, &typ, &sess.Created, &sess.Updated)
	if err != nil {
		return nil, err
	}
	sess.Type = core.ThreadType(typ)
	return &sess, nil
}

var _ core.SessionStore = (*Store)(nil)
