// SPDX-License-Identifier: MIT

package resume

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/persistence/sqlite"
)

const schemaVersion = 1

// SqliteStore implements Store using SQLite.
type SqliteStore struct {
	DB *sql.DB
}

// NewSqliteStore opens (and migrates) the resume database at dbPath.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{DB: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resume store: migration failed: %w", err)
	}

	return s, nil
}

func (s *SqliteStore) migrate() error {
	var currentVersion int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS resume_positions (
		profile TEXT NOT NULL,
		media_id TEXT NOT NULL,
		position_seconds REAL NOT NULL,
		duration_seconds REAL NOT NULL DEFAULT 0,
		finished BOOLEAN NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (profile, media_id)
	);
	CREATE INDEX IF NOT EXISTS idx_resume_positions_updated ON resume_positions(updated_at);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqliteStore) Put(ctx context.Context, profile, mediaID string, state *State) error {
	query := `
	INSERT INTO resume_positions (profile, media_id, position_seconds, duration_seconds, finished, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(profile, media_id) DO UPDATE SET
		position_seconds = excluded.position_seconds,
		duration_seconds = excluded.duration_seconds,
		finished = excluded.finished,
		updated_at = excluded.updated_at
	`
	_, err := s.DB.ExecContext(ctx, query,
		profile, mediaID, state.Position, state.Duration, state.Finished, state.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SqliteStore) Get(ctx context.Context, profile, mediaID string) (*State, error) {
	query := `SELECT position_seconds, duration_seconds, finished, updated_at FROM resume_positions WHERE profile = ? AND media_id = ?`
	var state State
	var updatedAt string
	err := s.DB.QueryRowContext(ctx, query, profile, mediaID).Scan(
		&state.Position, &state.Duration, &state.Finished, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	state.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &state, nil
}

func (s *SqliteStore) Delete(ctx context.Context, profile, mediaID string) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM resume_positions WHERE profile = ? AND media_id = ?", profile, mediaID)
	return err
}

// Verify runs a quick integrity check of the database.
func (s *SqliteStore) Verify(ctx context.Context) error {
	issues, err := sqlite.VerifyIntegrity(ctx, s.DB, "quick")
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return fmt.Errorf("resume store: integrity check failed: %v", issues)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}
