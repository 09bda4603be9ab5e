package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/safety-intake/internal/report"
	"github.com/MikeSquared-Agency/safety-intake/internal/sink"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS intake_reports (
	report_id       TEXT PRIMARY KEY,
	schema_version  INT NOT NULL,
	submitted_at    TIMESTAMPTZ,
	make            TEXT NOT NULL DEFAULT '',
	model           TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	risk_level      TEXT NOT NULL DEFAULT '',
	suspicion_score INT NOT NULL DEFAULT 0,
	row_data        JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_intake_reports_risk ON intake_reports (risk_level, submitted_at);
`

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Migrate creates the reports table when it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Name() string { return "postgres" }

// Append inserts the row once per report id.
func (p *Postgres) Append(ctx context.Context, row report.Row) error {
	rec, err := newRecord(row)
	if err != nil {
		return sink.Wrap(p.Name(), err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO intake_reports (report_id, schema_version, submitted_at, make, model, state, risk_level, suspicion_score, row_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (report_id) DO NOTHING`,
		rec.ReportID, rec.SchemaVersion, rec.SubmittedAt, rec.Make, rec.Model, rec.State,
		rec.RiskLevel, rec.SuspicionScore, rec.Data,
	)
	if err != nil {
		return sink.Wrap(p.Name(), fmt.Errorf("insert report: %w", err))
	}
	return nil
}

// Get returns the stored row for a report id.
func (p *Postgres) Get(ctx context.Context, reportID string) (report.Row, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT row_data FROM intake_reports WHERE report_id = $1`, reportID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return decodeRow(data)
}

// Count returns the number of stored reports.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM intake_reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}
