package agent

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteSpool implements SpoolStore using SQLite for local persistence.
type SQLiteSpool struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteSpool opens (or creates) the spool database at the given path.
func NewSQLiteSpool(dbPath string, logger zerolog.Logger) (*SQLiteSpool, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteSpool{
		db:     db,
		logger: logger.With().Str("component", "sqlite_spool").Logger(),
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	store.logger.Info().Str("path", dbPath).Msg("spool database initialized")

	return store, nil
}

// migrate creates the necessary tables.
func (s *SQLiteSpool) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS spooled_reports (
			id TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			collected_at TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_spooled_reports_collected_at ON spooled_reports(collected_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Append stores a new report at the tail of the spool.
func (s *SQLiteSpool) Append(ctx context.Context, report *Report) error {
	query := `
		INSERT INTO spooled_reports (id, payload, collected_at, attempts, last_error)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		report.ID.String(),
		report.Payload,
		report.CollectedAt.UTC().Format(time.RFC3339Nano),
		report.Attempts,
		nullString(report.LastError),
	)
	if err != nil {
		return fmt.Errorf("insert spooled report: %w", err)
	}

	return nil
}

// ListOldest returns up to limit reports, oldest first.
func (s *SQLiteSpool) ListOldest(ctx context.Context, limit int) ([]*Report, error) {
	query := `
		SELECT id, payload, collected_at, attempts, last_error
		FROM spooled_reports
		ORDER BY collected_at ASC, id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query spooled reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		var (
			idStr, collectedAtStr string
			payload               []byte
			attempts              int
			lastError             sql.NullString
		)
		if err := rows.Scan(&idStr, &payload, &collectedAtStr, &attempts, &lastError); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse id: %w", err)
		}
		collectedAt, err := time.Parse(time.RFC3339Nano, collectedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parse collected_at: %w", err)
		}

		reports = append(reports, &Report{
			ID:          id,
			Payload:     payload,
			CollectedAt: collectedAt,
			Attempts:    attempts,
			LastError:   lastError.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}

	return reports, nil
}

// MarkFailed records a delivery failure against a report.
func (s *SQLiteSpool) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	query := `UPDATE spooled_reports SET attempts = ?, last_error = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, attempts, nullString(lastError), id.String())
	if err != nil {
		return fmt.Errorf("update spooled report: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrReportNotFound
	}

	return nil
}

// Delete removes a report from the spool.
func (s *SQLiteSpool) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM spooled_reports WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete spooled report: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrReportNotFound
	}

	return nil
}

// Count returns the number of spooled reports.
func (s *SQLiteSpool) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM spooled_reports").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count spooled reports: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteSpool) Close() error {
	return s.db.Close()
}

// nullString converts a string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
