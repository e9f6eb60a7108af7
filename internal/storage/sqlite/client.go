package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/storage/models"
	"github.com/CedricPei/MAS-RAG/pkg/logger"
)

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// Client is the run ledger. It only observes runs; dataset checkpoints stay
// the record store.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("Run ledger initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		stages TEXT NOT NULL,
		db_ids TEXT NOT NULL,
		count INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS run_databases (
		run_id TEXT NOT NULL,
		db_id TEXT NOT NULL,
		state TEXT NOT NULL,
		generated INTEGER NOT NULL DEFAULT 0,
		executed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		synthesized INTEGER NOT NULL DEFAULT 0,
		carried INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (run_id, db_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS verification_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		db_id TEXT NOT NULL,
		artifact TEXT NOT NULL,
		checked INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		summary TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_verification_db ON verification_reports(db_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("Run ledger schema initialized")
	return nil
}

func (c *Client) StartRun(ctx context.Context, run models.Run) error {
	stages, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stages: %w", err)
	}
	dbIDs, err := json.Marshal(run.DBIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal db ids: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO runs (id, mode, stages, db_ids, count, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Mode, string(stages), string(dbIDs), run.Count, string(models.RunRunning), run.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (c *Client) RecordDatabase(ctx context.Context, rd models.RunDatabase) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO run_databases (run_id, db_id, state, generated, executed, skipped, synthesized, carried, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, db_id) DO UPDATE SET
			state = excluded.state,
			generated = excluded.generated,
			executed = excluded.executed,
			skipped = excluded.skipped,
			synthesized = excluded.synthesized,
			carried = excluded.carried,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		rd.RunID, rd.DBID, rd.State, rd.Generated, rd.Executed, rd.Skipped, rd.Synthesized, rd.Carried,
		nullString(rd.Error), rd.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run database: %w", err)
	}
	return nil
}

func (c *Client) FinishRun(ctx context.Context, runID string, status models.RunStatus, errMsg string, at time.Time) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), nullString(errMsg), at.Unix(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func (c *Client) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, mode, stages, db_ids, count, status, error, started_at, finished_at
		FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	run.Databases, err = c.runDatabases(ctx, runID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first, without per-database detail.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, mode, stages, db_ids, count, status, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (c *Client) runDatabases(ctx context.Context, runID string) ([]models.RunDatabase, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT run_id, db_id, state, generated, executed, skipped, synthesized, carried, error, updated_at
		FROM run_databases WHERE run_id = ? ORDER BY db_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run databases: %w", err)
	}
	defer rows.Close()

	var out []models.RunDatabase
	for rows.Next() {
		var rd models.RunDatabase
		var errMsg sql.NullString
		var updated int64
		if err := rows.Scan(&rd.RunID, &rd.DBID, &rd.State, &rd.Generated, &rd.Executed, &rd.Skipped,
			&rd.Synthesized, &rd.Carried, &errMsg, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan run database: %w", err)
		}
		rd.Error = errMsg.String
		rd.UpdatedAt = time.Unix(updated, 0)
		out = append(out, rd)
	}
	return out, rows.Err()
}

func (c *Client) InsertVerification(ctx context.Context, report models.VerificationReport) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO verification_reports (db_id, artifact, checked, failed, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		report.DBID, report.Artifact, report.Checked, report.Failed, report.Summary, report.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert verification report: %w", err)
	}
	return res.LastInsertId()
}

func (c *Client) ListVerifications(ctx context.Context, dbID string) ([]models.VerificationReport, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, db_id, artifact, checked, failed, summary, created_at
		FROM verification_reports WHERE db_id = ? ORDER BY id DESC`, dbID)
	if err != nil {
		return nil, fmt.Errorf("failed to list verification reports: %w", err)
	}
	defer rows.Close()

	var out []models.VerificationReport
	for rows.Next() {
		var r models.VerificationReport
		var summary sql.NullString
		var created int64
		if err := rows.Scan(&r.ID, &r.DBID, &r.Artifact, &r.Checked, &r.Failed, &summary, &created); err != nil {
			return nil, fmt.Errorf("failed to scan verification report: %w", err)
		}
		r.Summary = summary.String
		r.CreatedAt = time.Unix(created, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.Run, error) {
	var run models.Run
	var stages, dbIDs, status string
	var errMsg sql.NullString
	var started int64
	var finished sql.NullInt64

	if err := s.Scan(&run.ID, &run.Mode, &stages, &dbIDs, &run.Count, &status, &errMsg, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if err := json.Unmarshal([]byte(stages), &run.Stages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stages: %w", err)
	}
	if err := json.Unmarshal([]byte(dbIDs), &run.DBIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal db ids: %w", err)
	}
	run.Status = models.RunStatus(status)
	run.Error = errMsg.String
	run.StartedAt = time.Unix(started, 0)
	if finished.Valid {
		t := time.Unix(finished.Int64, 0)
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
