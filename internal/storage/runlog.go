package storage

import (
	"database/sql"

	"github.com/google/uuid"

	"football/internal/etl"
)

// RunLogStore persists pipeline run history.
type RunLogStore struct {
	db *DB
}

// NewRunLogStore creates a new RunLogStore.
func NewRunLogStore(db *DB) *RunLogStore {
	return &RunLogStore{db: db}
}

const runLogColumns = `id, pipeline, table_name, started_at, finished_at, status,
	rows_read, rows_written, skipped, error`

// ── Run Logs ───────────────────────────────────────────────

func (s *RunLogStore) CreateRunLog(log *etl.RunLog) error {
	log.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO run_logs (`+runLogColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Pipeline, log.Table, log.StartedAt.UTC(), log.FinishedAt.UTC(), log.Status,
		log.RowsRead, log.RowsWritten, log.Skipped, log.Error,
	)
	return err
}

// ListRunLogs returns the most recent runs, newest first. An empty pipeline
// lists runs of every pipeline.
func (s *RunLogStore) ListRunLogs(pipeline string, limit int) ([]etl.RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if pipeline == "" {
		rows, err = s.db.conn.Query(
			`SELECT `+runLogColumns+` FROM run_logs ORDER BY started_at DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.conn.Query(
			`SELECT `+runLogColumns+` FROM run_logs WHERE pipeline = ? ORDER BY started_at DESC LIMIT ?`,
			pipeline, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []etl.RunLog
	for rows.Next() {
		l, err := scanRunLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRunLog(r scanner) (*etl.RunLog, error) {
	var l etl.RunLog
	err := r.Scan(&l.ID, &l.Pipeline, &l.Table, &l.StartedAt, &l.FinishedAt, &l.Status,
		&l.RowsRead, &l.RowsWritten, &l.Skipped, &l.Error)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
