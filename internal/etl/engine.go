package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"football/internal/metrics"
	"football/internal/schema"
)

// ── Engine ─────────────────────────────────────────────────
// Orchestrates one pipeline run: extract → normalize → load, strictly in
// that order. The loader needs the complete batch before it replaces a table.

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Stage names reported in StageError.
const (
	StageExtract   = "extract"
	StageNormalize = "normalize"
	StageLoad      = "load"
)

// StageError wraps a failure with the pipeline and stage it happened in.
type StageError struct {
	Pipeline string
	Stage    string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Pipeline, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// RunResult is the outcome of one pipeline run.
type RunResult struct {
	Pipeline    string        `json:"pipeline"`
	Table       string        `json:"table"`
	Status      string        `json:"status"` // "success" | "error"
	RowsRead    int           `json:"rowsRead"`
	RowsWritten int           `json:"rowsWritten"`
	Skipped     int           `json:"skipped"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// Engine runs registered pipelines.
type Engine struct {
	API        Fetcher
	Warehouse  Warehouse
	Registry   *schema.Registry
	Normalizer *Normalizer
	DBSchema   string
	Plan       string
	Log        zerolog.Logger
	Metrics    *metrics.Metrics
}

// Run executes the named pipeline end-to-end.
func (e *Engine) Run(ctx context.Context, name string) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{Pipeline: name}
	log := e.Log.With().Str("pipeline", name).Logger()

	fail := func(stage string, err error) (*RunResult, error) {
		stageErr := &StageError{Pipeline: name, Stage: stage, Err: err}
		result.Status = StatusError
		result.Error = stageErr.Error()
		result.Duration = time.Since(start)
		e.Metrics.PipelineFinished(name, StatusError, result.Duration)
		log.Error().Err(err).Str("stage", stage).Dur("duration", result.Duration).Msg("pipeline failed")
		return result, stageErr
	}

	// 1. Resolve pipeline from registry.
	p, err := GetPipeline(name)
	if err != nil {
		return fail(StageExtract, err)
	}
	spec := p.Spec()
	result.Table = spec.Table
	log.Info().Str("table", spec.Table).Msg("pipeline started")

	// 2. Extract and validate every response.
	env := &Env{
		API:      e.API,
		Registry: e.Registry,
		IDs:      e.Warehouse,
		DBSchema: e.DBSchema,
		Plan:     e.Plan,
		Log:      log,
		Metrics:  e.Metrics,
		pipeline: name,
	}
	records, err := p.Extract(ctx, env)
	result.Skipped = env.Skipped()
	if err != nil {
		return fail(StageExtract, err)
	}
	result.RowsRead = len(records)

	// 3. Flatten into one batch.
	batch, err := e.Normalizer.Normalize(records, p.Mapping())
	if err != nil {
		return fail(StageNormalize, err)
	}

	// 4. Replace the destination table.
	loadStart := time.Now()
	written, err := e.Warehouse.Load(ctx, e.DBSchema, p.Table(), batch)
	if err != nil {
		return fail(StageLoad, err)
	}
	e.Metrics.TableLoaded(spec.Table, written, time.Since(loadStart))

	result.Status = StatusSuccess
	result.RowsWritten = written
	result.Duration = time.Since(start)
	e.Metrics.PipelineFinished(name, StatusSuccess, result.Duration)
	log.Info().
		Int("records", result.RowsRead).
		Int("rows", written).
		Int("skipped", result.Skipped).
		Dur("duration", result.Duration).
		Msg("pipeline finished")
	return result, nil
}
