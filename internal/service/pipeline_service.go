package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"football/internal/etl"
	"football/internal/logger"
	"football/internal/metrics"
	"football/internal/schema"
)

// ─────────────────────────────────────────────────────────────
// Pipeline Service: runs, run history and the cron schedule
// ─────────────────────────────────────────────────────────────

// scheduleKey guards a full scheduled sequence against overlapping ticks.
const scheduleKey = "*"

// ErrAlreadyRunning is returned when a pipeline is started while a previous
// run of it has not finished.
var ErrAlreadyRunning = errors.New("already running")

// WarehouseOpener connects to the warehouse for one run. The returned close
// function is called when the run ends.
type WarehouseOpener func(ctx context.Context) (etl.Warehouse, func() error, error)

// RunStore persists run history.
type RunStore interface {
	CreateRunLog(log *etl.RunLog) error
	ListRunLogs(pipeline string, limit int) ([]etl.RunLog, error)
}

// Options holds the per-run settings shared by every pipeline.
type Options struct {
	DBSchema   string
	Plan       string
	RunTimeout time.Duration
}

// PipelineService runs registered pipelines. It owns no connections between
// runs: the warehouse is opened per run and closed afterwards.
type PipelineService struct {
	api      etl.Fetcher
	open     WarehouseOpener
	registry *schema.Registry
	store    RunStore
	emitter  EventEmitter
	opts     Options
	log      zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	running   runningGuard
	cronSched *cron.Cron
}

// NewPipelineService creates a PipelineService. store, emitter and m may be nil.
func NewPipelineService(
	api etl.Fetcher,
	open WarehouseOpener,
	registry *schema.Registry,
	store RunStore,
	emitter EventEmitter,
	opts Options,
	log zerolog.Logger,
	m *metrics.Metrics,
) *PipelineService {
	if emitter == nil {
		emitter = LogEmitter{Log: log}
	}
	return &PipelineService{
		api:      api,
		open:     open,
		registry: registry,
		store:    store,
		emitter:  emitter,
		opts:     opts,
		log:      logger.Component(log, "pipelines"),
		metrics:  m,
		now:      time.Now,
	}
}

// ── Run ────────────────────────────────────────────────────

// RunPipeline executes one pipeline synchronously and records the run.
func (s *PipelineService) RunPipeline(ctx context.Context, name string) (*etl.RunResult, error) {
	if _, err := etl.GetPipeline(name); err != nil {
		return nil, err
	}
	if !s.running.TryLock(name) {
		return nil, fmt.Errorf("pipeline %s: %w", name, ErrAlreadyRunning)
	}
	defer s.running.Unlock(name)

	runCtx := ctx
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	start := s.now()
	result, runErr := s.run(runCtx, name)
	s.record(result, start)

	s.emitter.Emit(ctx, EventPipelineFinished, result)
	return result, runErr
}

func (s *PipelineService) run(ctx context.Context, name string) (*etl.RunResult, error) {
	wh, closeWarehouse, err := s.open(ctx)
	if err != nil {
		stageErr := &etl.StageError{Pipeline: name, Stage: etl.StageLoad, Err: fmt.Errorf("connect warehouse: %w", err)}
		s.log.Error().Err(err).Str("pipeline", name).Msg("warehouse unavailable")
		return &etl.RunResult{Pipeline: name, Status: etl.StatusError, Error: stageErr.Error()}, stageErr
	}
	defer func() {
		if err := closeWarehouse(); err != nil {
			s.log.Warn().Err(err).Msg("close warehouse")
		}
	}()

	engine := &etl.Engine{
		API:        s.api,
		Warehouse:  wh,
		Registry:   s.registry,
		Normalizer: &etl.Normalizer{Now: s.now},
		DBSchema:   s.opts.DBSchema,
		Plan:       s.opts.Plan,
		Log:        s.log,
		Metrics:    s.metrics,
	}
	return engine.Run(ctx, name)
}

// record writes the run history entry. A failing store never fails the run.
func (s *PipelineService) record(result *etl.RunResult, start time.Time) {
	if s.store == nil || result == nil {
		return
	}
	if err := s.store.CreateRunLog(etl.NewRunLog(result, start)); err != nil {
		s.log.Warn().Err(err).Str("pipeline", result.Pipeline).Msg("failed to record run")
	}
}

// RunAll runs every registered pipeline once, dependencies first. A failed
// pipeline does not stop the sequence; dependents read whatever the
// warehouse holds. The returned error joins every failure.
func (s *PipelineService) RunAll(ctx context.Context) ([]*etl.RunResult, error) {
	order, err := etl.RunOrder()
	if err != nil {
		return nil, err
	}

	var (
		results []*etl.RunResult
		errs    []error
	)
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := s.RunPipeline(ctx, name)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// ListRunLogs returns the most recent runs, newest first.
func (s *PipelineService) ListRunLogs(pipeline string, limit int) ([]etl.RunLog, error) {
	if s.store == nil {
		return nil, fmt.Errorf("run history is not configured")
	}
	return s.store.ListRunLogs(pipeline, limit)
}

// Running lists pipelines currently executing.
func (s *PipelineService) Running() []string {
	return s.running.Running()
}

// ── Schedule ───────────────────────────────────────────────

// StartSchedule runs RunAll on the cron expression until Stop. A tick that
// fires while the previous sequence is still running is skipped.
func (s *PipelineService) StartSchedule(ctx context.Context, expr string) error {
	s.stopSchedule()

	c := cron.New()
	_, err := c.AddFunc(expr, func() { s.runScheduled(ctx) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	c.Start()
	s.cronSched = c
	s.log.Info().Str("schedule", expr).Msg("schedule started")
	return nil
}

func (s *PipelineService) runScheduled(ctx context.Context) {
	if !s.running.TryLock(scheduleKey) {
		s.log.Warn().Msg("previous scheduled run still in progress, skipping tick")
		return
	}
	defer s.running.Unlock(scheduleKey)

	start := s.now()
	results, err := s.RunAll(ctx)
	failed := 0
	for _, r := range results {
		if r.Status != etl.StatusSuccess {
			failed++
		}
	}
	level := zerolog.InfoLevel
	if err != nil {
		level = zerolog.ErrorLevel
	}
	s.log.WithLevel(level).Err(err).
		Int("pipelines", len(results)).
		Int("failed", failed).
		Dur("duration", s.now().Sub(start)).
		Msg("scheduled run finished")
	s.emitter.Emit(ctx, EventScheduleFinished, results)
}

// WaitRunning blocks until all running pipelines finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *PipelineService) WaitRunning(ctx context.Context) {
	s.running.WaitAll(ctx)
}

// Stop tears down the scheduler. Runs in progress are not interrupted.
func (s *PipelineService) Stop() {
	s.stopSchedule()
}

func (s *PipelineService) stopSchedule() {
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
