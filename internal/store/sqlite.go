package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/matref/property-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	filter     TEXT,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS stage_results (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	stage       INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	summary     TEXT,
	PRIMARY KEY (run_id, stage)
);

CREATE TABLE IF NOT EXISTS snapshots (
	run_id     TEXT PRIMARY KEY REFERENCES runs(id),
	records    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS staging_properties (
	material   TEXT NOT NULL,
	property   TEXT NOT NULL,
	category   TEXT NOT NULL,
	value      TEXT NOT NULL,
	confidence REAL NOT NULL,
	sources    TEXT,
	PRIMARY KEY (material, property)
);

CREATE TABLE IF NOT EXISTS production_properties (
	material    TEXT NOT NULL,
	property    TEXT NOT NULL,
	category    TEXT NOT NULL,
	value       TEXT NOT NULL,
	confidence  REAL NOT NULL,
	sources     TEXT,
	deployed_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (material, property)
);

CREATE TABLE IF NOT EXISTS backup_sets (
	id         TEXT PRIMARY KEY,
	records    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_stage_results_run_id ON stage_results(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, filter []string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal filter")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, filter, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(filterJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Filter:    filter,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filter, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, filter, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) SaveStageResult(ctx context.Context, runID string, result *model.StageResult) error {
	summaryJSON, err := json.Marshal(result.Summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stage summary")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO stage_results (run_id, stage, name, status, duration_ms, error, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, stage) DO UPDATE SET
		   status = excluded.status, duration_ms = excluded.duration_ms,
		   error = excluded.error, summary = excluded.summary`,
		runID, result.Stage, result.Name, string(result.Status), result.Duration, result.Error, string(summaryJSON),
	)
	return eris.Wrapf(err, "sqlite: save stage result %d", result.Stage)
}

func (s *SQLiteStore) ListStageResults(ctx context.Context, runID string) ([]model.StageResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, name, status, duration_ms, error, summary FROM stage_results WHERE run_id = ? ORDER BY stage`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stage results")
	}
	defer rows.Close()

	var results []model.StageResult
	for rows.Next() {
		var sr model.StageResult
		var status string
		var errMsg, summaryJSON sql.NullString
		if err := rows.Scan(&sr.Stage, &sr.Name, &status, &sr.Duration, &errMsg, &summaryJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage result")
		}
		sr.Status = model.StageStatus(status)
		sr.Error = errMsg.String
		if summaryJSON.Valid && summaryJSON.String != "" {
			if err := json.Unmarshal([]byte(summaryJSON.String), &sr.Summary); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal stage summary")
			}
		}
		results = append(results, sr)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: iterate stage results")
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, runID string, records []model.PropertyRecord) error {
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (run_id, records, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (run_id) DO UPDATE SET records = excluded.records, created_at = excluded.created_at`,
		runID, string(recordsJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save snapshot")
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (string, []model.PropertyRecord, error) {
	var runID, recordsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, records FROM snapshots ORDER BY created_at DESC LIMIT 1`,
	).Scan(&runID, &recordsJSON)
	if err == sql.ErrNoRows {
		return "", nil, eris.New("sqlite: no snapshot available")
	}
	if err != nil {
		return "", nil, eris.Wrap(err, "sqlite: latest snapshot")
	}

	var records []model.PropertyRecord
	if err := json.Unmarshal([]byte(recordsJSON), &records); err != nil {
		return "", nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
	}
	return runID, records, nil
}

func (s *SQLiteStore) ReplaceStaging(ctx context.Context, records []model.PropertyRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin staging tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM staging_properties`); err != nil {
		return eris.Wrap(err, "sqlite: clear staging")
	}
	for _, rec := range records {
		if err := insertProperty(ctx, tx, "staging_properties", rec); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit staging")
}

func (s *SQLiteStore) CountStaging(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM staging_properties`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count staging")
}

func (s *SQLiteStore) BackupProduction(ctx context.Context) (string, error) {
	records, err := s.ListProduction(ctx)
	if err != nil {
		return "", err
	}
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal backup")
	}

	handle := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO backup_sets (id, records, created_at) VALUES (?, ?, ?)`,
		handle, string(recordsJSON), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert backup")
	}
	return handle, nil
}

func (s *SQLiteStore) DeployToProduction(ctx context.Context, records []model.PropertyRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin deploy tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range records {
		if err := insertProperty(ctx, tx, "production_properties", rec); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit deploy")
}

func (s *SQLiteStore) RestoreBackup(ctx context.Context, handle string) error {
	var recordsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT records FROM backup_sets WHERE id = ?`, handle,
	).Scan(&recordsJSON)
	if err != nil {
		return eris.Wrapf(err, "sqlite: load backup %s", handle)
	}

	var records []model.PropertyRecord
	if err := json.Unmarshal([]byte(recordsJSON), &records); err != nil {
		return eris.Wrap(err, "sqlite: unmarshal backup")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin restore tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM production_properties`); err != nil {
		return eris.Wrap(err, "sqlite: clear production")
	}
	for _, rec := range records {
		if err := insertProperty(ctx, tx, "production_properties", rec); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit restore")
}

func (s *SQLiteStore) ListProduction(ctx context.Context) ([]model.PropertyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT material, property, category, value, confidence, sources FROM production_properties ORDER BY material, property`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list production")
	}
	defer rows.Close()

	var records []model.PropertyRecord
	for rows.Next() {
		rec, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate production")
}

// execer covers *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertProperty(ctx context.Context, db execer, table string, rec model.PropertyRecord) error {
	valueJSON, err := json.Marshal(rec.FinalValue)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal property value")
	}
	sourcesJSON, err := json.Marshal(rec.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal property sources")
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO `+table+` (material, property, category, value, confidence, sources)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (material, property) DO UPDATE SET
		   category = excluded.category, value = excluded.value,
		   confidence = excluded.confidence, sources = excluded.sources`,
		rec.MaterialName, rec.PropertyName, rec.Category, string(valueJSON), rec.ConfidenceScore, string(sourcesJSON),
	)
	return eris.Wrapf(err, "sqlite: insert into %s", table)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*model.PropertyRecord, error) {
	var rec model.PropertyRecord
	var valueJSON string
	var sourcesJSON sql.NullString
	if err := row.Scan(&rec.MaterialName, &rec.PropertyName, &rec.Category, &valueJSON, &rec.ConfidenceScore, &sourcesJSON); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan property")
	}
	if err := json.Unmarshal([]byte(valueJSON), &rec.FinalValue); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal property value")
	}
	if sourcesJSON.Valid && sourcesJSON.String != "" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &rec.Sources); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal property sources")
		}
	}
	rec.ValidationStatus = model.StatusApproved
	return &rec, nil
}

func scanRun(row rowScanner) (*model.Run, error) {
	var run model.Run
	var filterJSON, resultJSON sql.NullString
	var status string
	if err := row.Scan(&run.ID, &filterJSON, &status, &resultJSON, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	if filterJSON.Valid && filterJSON.String != "" && filterJSON.String != "null" {
		if err := json.Unmarshal([]byte(filterJSON.String), &run.Filter); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal run filter")
		}
	}
	if resultJSON.Valid && resultJSON.String != "" {
		run.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), run.Result); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal run result")
		}
	}
	return &run, nil
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return eris.Errorf("store: run %s not found", runID)
	}
	return nil
}
