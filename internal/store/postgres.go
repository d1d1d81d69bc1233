package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/matref/property-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	filter     JSONB,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stage_results (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	stage       INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	error       TEXT,
	summary     JSONB,
	PRIMARY KEY (run_id, stage)
);

CREATE TABLE IF NOT EXISTS snapshots (
	run_id     TEXT PRIMARY KEY REFERENCES runs(id),
	records    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS staging_properties (
	material   TEXT NOT NULL,
	property   TEXT NOT NULL,
	category   TEXT NOT NULL,
	value      JSONB NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	sources    JSONB,
	PRIMARY KEY (material, property)
);

CREATE TABLE IF NOT EXISTS production_properties (
	material    TEXT NOT NULL,
	property    TEXT NOT NULL,
	category    TEXT NOT NULL,
	value       JSONB NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	sources     JSONB,
	deployed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (material, property)
);

CREATE TABLE IF NOT EXISTS backup_sets (
	id         TEXT PRIMARY KEY,
	records    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_stage_results_run_id ON stage_results(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, filter []string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal filter")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, filter, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(filterJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Filter:    filter,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, filter, status, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	run, err := scanPgRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, filter, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) SaveStageResult(ctx context.Context, runID string, result *model.StageResult) error {
	summaryJSON, err := json.Marshal(result.Summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stage summary")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO stage_results (run_id, stage, name, status, duration_ms, error, summary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (run_id, stage) DO UPDATE SET
		   status = excluded.status, duration_ms = excluded.duration_ms,
		   error = excluded.error, summary = excluded.summary`,
		runID, result.Stage, result.Name, string(result.Status), result.Duration, result.Error, string(summaryJSON),
	)
	return eris.Wrapf(err, "postgres: save stage result %d", result.Stage)
}

func (s *PostgresStore) ListStageResults(ctx context.Context, runID string) ([]model.StageResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT stage, name, status, duration_ms, error, summary FROM stage_results WHERE run_id = $1 ORDER BY stage`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stage results")
	}
	defer rows.Close()

	var results []model.StageResult
	for rows.Next() {
		var sr model.StageResult
		var status string
		var errMsg, summaryJSON *string
		if err := rows.Scan(&sr.Stage, &sr.Name, &status, &sr.Duration, &errMsg, &summaryJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage result")
		}
		sr.Status = model.StageStatus(status)
		if errMsg != nil {
			sr.Error = *errMsg
		}
		if summaryJSON != nil && *summaryJSON != "" {
			if err := json.Unmarshal([]byte(*summaryJSON), &sr.Summary); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal stage summary")
			}
		}
		results = append(results, sr)
	}
	return results, eris.Wrap(rows.Err(), "postgres: iterate stage results")
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, runID string, records []model.PropertyRecord) error {
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (run_id, records, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (run_id) DO UPDATE SET records = excluded.records, created_at = excluded.created_at`,
		runID, string(recordsJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save snapshot")
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context) (string, []model.PropertyRecord, error) {
	var runID, recordsJSON string
	err := s.pool.QueryRow(ctx,
		`SELECT run_id, records::text FROM snapshots ORDER BY created_at DESC LIMIT 1`,
	).Scan(&runID, &recordsJSON)
	if err == pgx.ErrNoRows {
		return "", nil, eris.New("postgres: no snapshot available")
	}
	if err != nil {
		return "", nil, eris.Wrap(err, "postgres: latest snapshot")
	}

	var records []model.PropertyRecord
	if err := json.Unmarshal([]byte(recordsJSON), &records); err != nil {
		return "", nil, eris.Wrap(err, "postgres: unmarshal snapshot")
	}
	return runID, records, nil
}

func (s *PostgresStore) ReplaceStaging(ctx context.Context, records []model.PropertyRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin staging tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM staging_properties`); err != nil {
		return eris.Wrap(err, "postgres: clear staging")
	}
	for _, rec := range records {
		if err := pgInsertProperty(ctx, tx, "staging_properties", rec); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit staging")
}

func (s *PostgresStore) CountStaging(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM staging_properties`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count staging")
}

func (s *PostgresStore) BackupProduction(ctx context.Context) (string, error) {
	records, err := s.ListProduction(ctx)
	if err != nil {
		return "", err
	}
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal backup")
	}

	handle := uuid.New().String()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO backup_sets (id, records, created_at) VALUES ($1, $2, $3)`,
		handle, string(recordsJSON), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert backup")
	}
	return handle, nil
}

func (s *PostgresStore) DeployToProduction(ctx context.Context, records []model.PropertyRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin deploy tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, rec := range records {
		if err := pgInsertProperty(ctx, tx, "production_properties", rec); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit deploy")
}

func (s *PostgresStore) RestoreBackup(ctx context.Context, handle string) error {
	var recordsJSON string
	err := s.pool.QueryRow(ctx,
		`SELECT records::text FROM backup_sets WHERE id = $1`, handle,
	).Scan(&recordsJSON)
	if err != nil {
		return eris.Wrapf(err, "postgres: load backup %s", handle)
	}

	var records []model.PropertyRecord
	if err := json.Unmarshal([]byte(recordsJSON), &records); err != nil {
		return eris.Wrap(err, "postgres: unmarshal backup")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin restore tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM production_properties`); err != nil {
		return eris.Wrap(err, "postgres: clear production")
	}
	for _, rec := range records {
		if err := pgInsertProperty(ctx, tx, "production_properties", rec); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit restore")
}

func (s *PostgresStore) ListProduction(ctx context.Context) ([]model.PropertyRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT material, property, category, value::text, confidence, sources::text FROM production_properties ORDER BY material, property`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list production")
	}
	defer rows.Close()

	var records []model.PropertyRecord
	for rows.Next() {
		var rec model.PropertyRecord
		var valueJSON string
		var sourcesJSON *string
		if err := rows.Scan(&rec.MaterialName, &rec.PropertyName, &rec.Category, &valueJSON, &rec.ConfidenceScore, &sourcesJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan property")
		}
		if err := json.Unmarshal([]byte(valueJSON), &rec.FinalValue); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal property value")
		}
		if sourcesJSON != nil && *sourcesJSON != "" {
			if err := json.Unmarshal([]byte(*sourcesJSON), &rec.Sources); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal property sources")
			}
		}
		rec.ValidationStatus = model.StatusApproved
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate production")
}

func pgInsertProperty(ctx context.Context, tx pgx.Tx, table string, rec model.PropertyRecord) error {
	valueJSON, err := json.Marshal(rec.FinalValue)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal property value")
	}
	sourcesJSON, err := json.Marshal(rec.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal property sources")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+table+` (material, property, category, value, confidence, sources)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (material, property) DO UPDATE SET
		   category = excluded.category, value = excluded.value,
		   confidence = excluded.confidence, sources = excluded.sources`,
		rec.MaterialName, rec.PropertyName, rec.Category, string(valueJSON), rec.ConfidenceScore, string(sourcesJSON),
	)
	return eris.Wrapf(err, "postgres: insert into %s", table)
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var run model.Run
	var status string
	var filterJSON, resultJSON *string
	if err := row.Scan(&run.ID, &filterJSON, &status, &resultJSON, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	if filterJSON != nil && *filterJSON != "" && *filterJSON != "null" {
		if err := json.Unmarshal([]byte(*filterJSON), &run.Filter); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run filter")
		}
	}
	if resultJSON != nil && *resultJSON != "" {
		run.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(*resultJSON), run.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run result")
		}
	}
	return &run, nil
}
