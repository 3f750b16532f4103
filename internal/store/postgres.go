package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresStore persists run summaries durably. Leaf-level stats are
// stored as a JSON column rather than a normalized child table since
// they're never queried independently of their parent run.
type PostgresStore struct {
	db *sqlx.DB
}

type runRow struct {
	RunID       string    `db:"run_id"`
	ProfileName string    `db:"profile_name"`
	Status      string    `db:"status"`
	StartedAt   time.Time `db:"started_at"`
	FinishedAt  time.Time `db:"finished_at"`
	Leaves      []byte    `db:"leaves"`
	Topology    []byte    `db:"topology"`
	Error       string    `db:"error"`
}

// OpenPostgres connects to dsn and ensures the runs table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	profile_name TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ,
	leaves       JSONB NOT NULL DEFAULT '[]',
	topology     JSONB NOT NULL DEFAULT '[]',
	error        TEXT NOT NULL DEFAULT ''
)`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrating runs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// SaveRun upserts a run's full summary.
func (s *PostgresStore) SaveRun(ctx context.Context, run RunSummary) error {
	leaves, err := json.Marshal(run.Leaves)
	if err != nil {
		return fmt.Errorf("marshaling leaves: %w", err)
	}
	topology, err := json.Marshal(run.Topology)
	if err != nil {
		return fmt.Errorf("marshaling topology: %w", err)
	}

	const q = `
INSERT INTO runs (run_id, profile_name, status, started_at, finished_at, leaves, topology, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (run_id) DO UPDATE SET
	status = EXCLUDED.status,
	finished_at = EXCLUDED.finished_at,
	leaves = EXCLUDED.leaves,
	topology = EXCLUDED.topology,
	error = EXCLUDED.error`

	_, err = s.db.ExecContext(ctx, q, run.RunID, run.ProfileName, string(run.Status),
		run.StartedAt, nullableTime(run.FinishedAt), leaves, topology, run.Error)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun fetches a run by ID.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (RunSummary, bool, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT run_id, profile_name, status, started_at,
		COALESCE(finished_at, started_at) AS finished_at, leaves, topology, error FROM runs WHERE run_id = $1`, runID)
	if err == sql.ErrNoRows {
		return RunSummary{}, false, nil
	}
	if err != nil {
		return RunSummary{}, false, fmt.Errorf("fetching run %s: %w", runID, err)
	}

	var leaves []LeafSummary
	if err := json.Unmarshal(row.Leaves, &leaves); err != nil {
		return RunSummary{}, false, fmt.Errorf("unmarshaling leaves for %s: %w", runID, err)
	}
	var topology []TopologyNode
	if err := json.Unmarshal(row.Topology, &topology); err != nil {
		return RunSummary{}, false, fmt.Errorf("unmarshaling topology for %s: %w", runID, err)
	}

	return RunSummary{
		RunID:       row.RunID,
		ProfileName: row.ProfileName,
		Status:      RunStatus(row.Status),
		StartedAt:   row.StartedAt,
		FinishedAt:  row.FinishedAt,
		Duration:    row.FinishedAt.Sub(row.StartedAt),
		Leaves:      leaves,
		Topology:    topology,
		Error:       row.Error,
	}, true, nil
}

// SetStatus updates only a run's status column.
func (s *PostgresStore) SetStatus(ctx context.Context, runID string, status RunStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET status = $1 WHERE run_id = $2`, string(status), runID)
	if err != nil {
		return fmt.Errorf("setting status for %s: %w", runID, err)
	}
	return nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ Store = (*PostgresStore)(nil)
