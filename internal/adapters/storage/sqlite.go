package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"

	"github.com/eleven-am/loom/internal/domain"
)

// SQLiteStore archives terminal runs in a SQLite database. It expects an
// *sql.DB opened with a SQLite driver (for example "modernc.org/sqlite");
// the caller imports the driver:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore initializes the runs schema and returns the store.
func NewSQLiteStore(db *sql.DB, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "sqlite_store"),
	}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize run schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			error TEXT,
			node_states BLOB,
			results BLOB,
			logs BLOB
		);`,
	)
	return err
}

func (s *SQLiteStore) PersistRun(ctx context.Context, run *domain.ExecutionRun) error {
	nodeStates, err := json.Marshal(run.NodeStates)
	if err != nil {
		return fmt.Errorf("failed to serialize node states for run %s: %w", run.ID, err)
	}

	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("failed to serialize results for run %s: %w", run.ID, err)
	}

	logs, err := json.Marshal(run.Logs)
	if err != nil {
		return fmt.Errorf("failed to serialize logs for run %s: %w", run.ID, err)
	}

	var completedAt interface{}
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.Format(time.RFC3339Nano)
	}

	var runErr interface{}
	if run.Error != nil {
		runErr = *run.Error
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, status, started_at, completed_at, error, node_states, results, logs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		string(run.Status),
		run.StartedAt.Format(time.RFC3339Nano),
		completedAt,
		runErr,
		nodeStates,
		results,
		logs,
	)
	if err != nil {
		return fmt.Errorf("failed to persist run %s: %w", run.ID, err)
	}

	s.logger.Debug("run archived",
		"run_id", run.ID,
		"status", string(run.Status),
	)

	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.ExecutionRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, started_at, completed_at, error, node_states, results, logs
		FROM runs WHERE id = ?`, runID)

	var (
		run         domain.ExecutionRun
		status      string
		startedAt   string
		completedAt sql.NullString
		runErr      sql.NullString
		nodeStates  []byte
		results     []byte
		logs        []byte
	)
	if err := row.Scan(&run.ID, &status, &startedAt, &completedAt, &runErr, &nodeStates, &results, &logs); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	run.Status = domain.RunStatus(status)

	ts, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt started_at for run %s: %w", runID, err)
	}
	run.StartedAt = ts

	if completedAt.Valid {
		ts, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt completed_at for run %s: %w", runID, err)
		}
		run.CompletedAt = &ts
	}
	if runErr.Valid {
		msg := runErr.String
		run.Error = &msg
	}

	if err := json.Unmarshal(nodeStates, &run.NodeStates); err != nil {
		return nil, fmt.Errorf("corrupt node states for run %s: %w", runID, err)
	}
	if err := json.Unmarshal(results, &run.Results); err != nil {
		return nil, fmt.Errorf("corrupt results for run %s: %w", runID, err)
	}
	if err := json.Unmarshal(logs, &run.Logs); err != nil {
		return nil, fmt.Errorf("corrupt logs for run %s: %w", runID, err)
	}

	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
