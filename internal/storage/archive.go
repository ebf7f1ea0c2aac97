// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const archiveSchemaVersion = 1

// Archive is an optional SQLite journal of finalized commits, kept per
// process for post-mortem rehydration of sessions. It is append-only from
// the supervisor's perspective; retention of the file itself is handled
// by the filesystem sweep.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (or creates) the commit journal at path.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive: migration failed: %w", err)
	}
	return a, nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) migrate() error {
	var current int
	if err := a.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= archiveSchemaVersion {
		return nil
	}

	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS commits (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		commit_type TEXT NOT NULL,
		data_json TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		created_at_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_commits_session ON commits(session_id, created_at_ms DESC);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", archiveSchemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Append journals one commit for the given session.
func (a *Archive) Append(ctx context.Context, sessionID string, c Commit) error {
	raw, err := json.Marshal(c.Data)
	if err != nil {
		return fmt.Errorf("archive: encode commit %s: %w", c.ID, err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO commits (id, session_id, seq, commit_type, data_json, size_bytes, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, sessionID, c.Seq, string(c.Type), string(raw), c.SizeBytes, c.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("archive: append commit %s: %w", c.ID, err)
	}
	return nil
}

// Recent returns up to n journaled commits for a session, newest first.
func (a *Archive) Recent(ctx context.Context, sessionID string, n int) ([]Commit, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, seq, commit_type, data_json, size_bytes, created_at_ms
		 FROM commits WHERE session_id = ?
		 ORDER BY created_at_ms DESC, seq DESC LIMIT ?`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("archive: query session %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Commit
	for rows.Next() {
		var (
			c         Commit
			ctype     string
			dataJSON  string
			createdMs int64
		)
		if err := rows.Scan(&c.ID, &c.Seq, &ctype, &dataJSON, &c.SizeBytes, &createdMs); err != nil {
			return nil, err
		}
		c.Type = CommitType(ctype)
		c.Timestamp = time.UnixMilli(createdMs)
		if err := json.Unmarshal([]byte(dataJSON), &c.Data); err != nil {
			return nil, fmt.Errorf("archive: decode commit %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
