package etl

import "time"

// RunLog is the persisted history entry of one pipeline run.
type RunLog struct {
	ID          string    `json:"id"`
	Pipeline    string    `json:"pipeline"`
	Table       string    `json:"table"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"`
	RowsRead    int       `json:"rowsRead"`
	RowsWritten int       `json:"rowsWritten"`
	Skipped     int       `json:"skipped"`
	Error       string    `json:"error"`
}

// NewRunLog builds the history entry for a finished run.
func NewRunLog(r *RunResult, startedAt time.Time) *RunLog {
	return &RunLog{
		Pipeline:    r.Pipeline,
		Table:       r.Table,
		StartedAt:   startedAt,
		FinishedAt:  startedAt.Add(r.Duration),
		Status:      r.Status,
		RowsRead:    r.RowsRead,
		RowsWritten: r.RowsWritten,
		Skipped:     r.Skipped,
		Error:       r.Error,
	}
}
