// Package store persists transcripts in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnloop/pkg/turns"
	"github.com/go-go-golems/turnloop/pkg/turns/serde"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	agent      TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS turns (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	id         TEXT NOT NULL,
	role       TEXT NOT NULL,
	author     TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	tool_calls TEXT NOT NULL DEFAULT '',
	tool_round INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, seq)
);
`

// ErrSessionNotFound is returned by Load for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

type Store struct {
	db *sqlx.DB
}

// SessionInfo summarizes a stored session.
type SessionInfo struct {
	ID        string    `db:"id"`
	Agent     string    `db:"agent"`
	Turns     int       `db:"turns"`
	UpdatedAt time.Time `db:"-"`
	Updated   int64     `db:"updated_at"`
}

type turnRow struct {
	SessionID string `db:"session_id"`
	Seq       int    `db:"seq"`
	ID        string `db:"id"`
	Role      string `db:"role"`
	Author    string `db:"author"`
	Content   string `db:"content"`
	ToolCalls string `db:"tool_calls"`
	Round     int    `db:"tool_round"`
}

// Open opens (and creates if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "could not create schema in %s", path)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored turns of doc.SessionID with doc.Turns.
func (s *Store) Save(ctx context.Context, doc serde.Document) (err error) {
	if doc.SessionID == "" {
		return errors.New("cannot store a transcript without session id")
	}
	rows := make([]turnRow, 0, len(doc.Turns))
	for i, t := range doc.Turns {
		calls := ""
		if len(t.ToolCalls) > 0 {
			b, err := json.Marshal(t.ToolCalls)
			if err != nil {
				return errors.Wrapf(err, "could not encode tool calls of turn %d", i)
			}
			calls = string(b)
		}
		rows = append(rows, turnRow{
			SessionID: doc.SessionID,
			Seq:       i,
			ID:        t.ID,
			Role:      string(t.Role),
			Author:    t.Author,
			Content:   t.Content,
			ToolCalls: calls,
			Round:     t.Round,
		})
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO sessions (id, agent, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET agent = excluded.agent, updated_at = excluded.updated_at`,
		doc.SessionID, doc.Agent, time.Now().UnixMilli())
	if err != nil {
		return errors.Wrap(err, "could not store session")
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, doc.SessionID); err != nil {
		return errors.Wrap(err, "could not clear turns")
	}
	if len(rows) > 0 {
		_, err = tx.NamedExecContext(ctx, `
INSERT INTO turns (session_id, seq, id, role, author, content, tool_calls, tool_round)
VALUES (:session_id, :seq, :id, :role, :author, :content, :tool_calls, :tool_round)`, rows)
		if err != nil {
			return errors.Wrap(err, "could not store turns")
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit transcript")
	}
	log.Debug().Str("session_id", doc.SessionID).Int("turns", len(rows)).Msg("store: saved transcript")
	return nil
}

// Load returns the stored transcript of sessionID.
func (s *Store) Load(ctx context.Context, sessionID string) (*serde.Document, error) {
	doc := &serde.Document{SessionID: sessionID, Turns: []turns.Turn{}}
	err := s.db.GetContext(ctx, &doc.Agent, `SELECT agent FROM sessions WHERE id = ?`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrSessionNotFound, "session %s", sessionID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not load session %s", sessionID)
	}

	var rows []turnRow
	err = s.db.SelectContext(ctx, &rows, `
SELECT session_id, seq, id, role, author, content, tool_calls, tool_round
FROM turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load turns of session %s", sessionID)
	}
	for _, r := range rows {
		t := turns.Turn{
			ID:      r.ID,
			Role:    turns.Role(r.Role),
			Author:  r.Author,
			Content: r.Content,
			Round:   r.Round,
		}
		if r.ToolCalls != "" {
			if err := json.Unmarshal([]byte(r.ToolCalls), &t.ToolCalls); err != nil {
				return nil, errors.Wrapf(err, "could not decode tool calls of turn %d", r.Seq)
			}
		}
		doc.Turns = append(doc.Turns, t)
	}
	return doc, nil
}

// List returns all sessions, most recently updated first.
func (s *Store) List(ctx context.Context) ([]SessionInfo, error) {
	var ret []SessionInfo
	err := s.db.SelectContext(ctx, &ret, `
SELECT s.id, s.agent, s.updated_at, COUNT(t.seq) AS turns
FROM sessions s LEFT JOIN turns t ON t.session_id = s.id
GROUP BY s.id ORDER BY s.updated_at DESC, s.id`)
	if err != nil {
		return nil, errors.Wrap(err, "could not list sessions")
	}
	for i := range ret {
		ret[i].UpdatedAt = time.UnixMilli(ret[i].Updated)
	}
	return ret, nil
}
