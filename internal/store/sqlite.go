package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/MikeSquared-Agency/safety-intake/internal/report"
	"github.com/MikeSquared-Agency/safety-intake/internal/sink"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS intake_reports (
	report_id       TEXT PRIMARY KEY,
	schema_version  INTEGER NOT NULL,
	submitted_at    INTEGER,
	make            TEXT NOT NULL DEFAULT '',
	model           TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	risk_level      TEXT NOT NULL DEFAULT '',
	suspicion_score INTEGER NOT NULL DEFAULT 0,
	row_data        TEXT NOT NULL,
	created_at      INTEGER NOT NULL DEFAULT (unixepoch())
);
CREATE INDEX IF NOT EXISTS idx_intake_reports_risk ON intake_reports (risk_level, submitted_at);
`

// SQLite is a single-file report store for local deployments.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Name() string { return "sqlite" }

// Append inserts the row once per report id.
func (s *SQLite) Append(ctx context.Context, row report.Row) error {
	rec, err := newRecord(row)
	if err != nil {
		return sink.Wrap(s.Name(), err)
	}
	var submitted sql.NullInt64
	if rec.SubmittedAt != nil {
		submitted = sql.NullInt64{Int64: rec.SubmittedAt.Unix(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO intake_reports (report_id, schema_version, submitted_at, make, model, state, risk_level, suspicion_score, row_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (report_id) DO NOTHING`,
		rec.ReportID, rec.SchemaVersion, submitted, rec.Make, rec.Model, rec.State,
		rec.RiskLevel, rec.SuspicionScore, string(rec.Data),
	)
	if err != nil {
		return sink.Wrap(s.Name(), fmt.Errorf("insert report: %w", err))
	}
	return nil
}

// Get returns the stored row for a report id.
func (s *SQLite) Get(ctx context.Context, reportID string) (report.Row, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT row_data FROM intake_reports WHERE report_id = ?`, reportID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return decodeRow([]byte(data))
}

// Count returns the number of stored reports.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM intake_reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}
