package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/service/dao"
)

// SQLite persists sessions in an embedded database. WAL mode is enabled for
// concurrent reads; the transcript is stored as a JSON column.
type SQLite struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens (and migrates) the session database at the given path,
// creating parent directories as needed.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	db := &SQLite{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

const migrationV1Sessions = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	team TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	termination TEXT,
	error TEXT,
	rounds INTEGER NOT NULL DEFAULT 0,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0.0,
	started_at TEXT NOT NULL,
	ended_at TEXT,
	transcript TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
`

func (s *SQLite) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}
	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Sessions},
	}
	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// Save inserts or replaces a session row.
func (s *SQLite) Save(ctx context.Context, session *chat.Session) error {
	if session == nil {
		return dao.ErrNilEntity
	}
	if session.ID == "" {
		return dao.ErrInvalidID
	}
	transcript, err := json.Marshal(session.Messages())
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	var endedAt sql.NullString
	if session.EndedAt != nil {
		endedAt = sql.NullString{String: session.EndedAt.Format(time.RFC3339Nano), Valid: true}
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions
		(id, user_id, team, status, termination, error, rounds, input_tokens, output_tokens, cost_usd, started_at, ended_at, transcript)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.Team, string(session.Status),
		string(session.Termination), session.Error, session.Rounds,
		session.InputTokens, session.OutputTokens, session.CostUSD,
		session.StartedAt.Format(time.RFC3339Nano), endedAt, string(transcript))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load returns a session by id, or nil when absent.
func (s *SQLite) Load(ctx context.Context, id string) (*chat.Session, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, user_id, team, status, termination, error, rounds, input_tokens, output_tokens, cost_usd, started_at, ended_at, transcript
		FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return session, err
}

// Delete removes a session row.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	_, err := s.conn.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

// List returns sessions matching the given parameters ("userId", "status"),
// newest first.
func (s *SQLite) List(ctx context.Context, parameters ...*dao.Parameter) ([]*chat.Session, error) {
	query := `
		SELECT id, user_id, team, status, termination, error, rounds, input_tokens, output_tokens, cost_usd, started_at, ended_at, transcript
		FROM sessions`
	var clauses []string
	var args []interface{}
	for _, parameter := range parameters {
		switch strings.ToLower(parameter.Name) {
		case "userid":
			clauses = append(clauses, "user_id = ?")
			args = append(args, parameter.Value)
		case "status":
			clauses = append(clauses, "status = ?")
			args = append(args, parameter.Value)
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*chat.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*chat.Session, error) {
	session := &chat.Session{}
	var status, termination, startedAt string
	var endedAt, transcript sql.NullString
	err := row.Scan(&session.ID, &session.UserID, &session.Team, &status,
		&termination, &session.Error, &session.Rounds,
		&session.InputTokens, &session.OutputTokens, &session.CostUSD,
		&startedAt, &endedAt, &transcript)
	if err != nil {
		return nil, err
	}
	session.Status = chat.Status(status)
	session.Termination = chat.Termination(termination)
	if session.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if endedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse ended_at: %w", err)
		}
		session.EndedAt = &t
	}
	if transcript.Valid && transcript.String != "" {
		if err := json.Unmarshal([]byte(transcript.String), &session.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
	}
	return session, nil
}

var _ dao.Service[string, chat.Session] = (*SQLite)(nil)
