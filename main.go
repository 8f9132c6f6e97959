package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"football/internal/archive"
	"football/internal/config"
	"football/internal/dbclient"
	"football/internal/etl"
	"football/internal/footballapi"
	"football/internal/logger"
	"football/internal/metrics"
	_ "football/internal/pipelines"
	"football/internal/schema"
	"football/internal/service"
	"football/internal/storage"
)

// selectorAll runs every pipeline in dependency order.
const selectorAll = "all"

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type options struct {
	selector   string
	configPath string
	history    int
	schedule   string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// parseArgs reads flags and checks the selector. It has no side effects.
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("football-ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.selector, "request_type", "", "pipeline to run, or \"all\" ("+strings.Join(validSelectors(), ", ")+")")
	fs.StringVar(&opts.configPath, "config", "", "optional YAML config file")
	fs.IntVar(&opts.history, "history", 0, "print the last N recorded runs and exit")
	fs.StringVar(&opts.schedule, "schedule", "", "run all pipelines on this cron expression")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if opts.selector == "" && fs.NArg() > 0 {
		opts.selector = fs.Arg(0)
	}
	if opts.selector != "" && !isValidSelector(opts.selector) {
		return nil, fmt.Errorf("invalid request type %q; valid request types: %s", opts.selector, strings.Join(validSelectors(), ", "))
	}
	if opts.history < 0 {
		return nil, fmt.Errorf("-history must not be negative")
	}
	return opts, nil
}

func validSelectors() []string {
	names := append(etl.ListPipelines(), selectorAll)
	sort.Strings(names)
	return names
}

func isValidSelector(s string) bool {
	for _, name := range validSelectors() {
		if name == s {
			return true
		}
	}
	return false
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, "error:", err)
		}
		return exitUsage
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	}
	if opts.schedule != "" {
		cfg.Runtime.ScheduleCron = opts.schedule
	}
	if opts.selector == "" && opts.history == 0 && cfg.Runtime.ScheduleCron == "" {
		fmt.Fprintln(stderr, "error: no request type given; valid request types:", strings.Join(validSelectors(), ", "))
		return exitUsage
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, stderr)

	schemas := schema.NewFootballRegistry()
	if err := etl.ValidateRegistry(schemas); err != nil {
		log.Error().Err(err).Msg("pipeline registry is inconsistent")
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := storage.New(cfg.Runtime.RunLogPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Runtime.RunLogPath).Msg("failed to open run history")
		return exitError
	}
	defer state.Close()
	runs := storage.NewRunLogStore(state)

	if opts.history > 0 {
		if err := printHistory(stdout, runs, opts.history); err != nil {
			log.Error().Err(err).Msg("failed to read run history")
			return exitError
		}
		return exitOK
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client, err := footballapi.NewClient(footballapi.Config{
		BaseURL:    cfg.API.BaseURL,
		APIKey:     cfg.API.Key,
		Timeout:    cfg.API.Timeout,
		Calls:      cfg.API.RateCalls,
		Period:     cfg.API.RatePeriod,
		MaxRetries: cfg.API.MaxRetries,
		BaseDelay:  cfg.API.RetryDelay,
		Logger:     log,
		Metrics:    m,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create API client")
		return exitError
	}
	if cfg.API.Key == "" {
		log.Warn().Msg("API_KEY is not set; authenticated endpoints will be refused")
	}

	var api etl.Fetcher = client
	if cfg.Archive.MongoURI != "" {
		sink, err := archive.NewMongoSink(ctx, cfg.Archive.MongoURI, cfg.Archive.MongoDatabase, log)
		if err != nil {
			log.Warn().Err(err).Msg("raw payload archive unavailable, continuing without it")
		} else {
			defer sink.Close(context.Background())
			api = archive.Wrap(client, sink, log)
		}
	}

	open := warehouseOpener(cfg.Warehouse, log)
	svc := service.NewPipelineService(api, open, schemas, runs, service.LogEmitter{Log: log},
		service.Options{
			DBSchema:   cfg.Warehouse.Schema,
			Plan:       cfg.Pipeline.CompetitionsPlan,
			RunTimeout: cfg.Pipeline.RunTimeout,
		}, log, m)

	if opts.selector == "" && cfg.Runtime.ScheduleCron != "" {
		return runSchedule(ctx, svc, cfg, reg, open, log)
	}

	if opts.selector == selectorAll {
		if _, err := svc.RunAll(ctx); err != nil {
			return exitError
		}
		return exitOK
	}
	if _, err := svc.RunPipeline(ctx, opts.selector); err != nil {
		return exitError
	}
	return exitOK
}

// warehouseOpener connects to the configured warehouse once per run.
func warehouseOpener(wc config.WarehouseConfig, log zerolog.Logger) service.WarehouseOpener {
	conn := dbclient.Connection{
		Driver:   wc.Driver,
		Host:     wc.Host,
		Port:     wc.Port,
		Username: wc.User,
		Password: wc.Password,
		Database: wc.Database,
		SSLMode:  wc.SSLMode,
	}
	return func(ctx context.Context) (etl.Warehouse, func() error, error) {
		wh, err := dbclient.Open(conn, log)
		if err != nil {
			return nil, nil, err
		}
		if err := wh.Ping(ctx); err != nil {
			wh.Close()
			return nil, nil, fmt.Errorf("ping %s: %w", conn.Driver, err)
		}
		return wh, wh.Close, nil
	}
}

func runSchedule(ctx context.Context, svc *service.PipelineService, cfg *config.Config, reg *prometheus.Registry, open service.WarehouseOpener, log zerolog.Logger) int {
	health := func(ctx context.Context) error {
		_, closeWarehouse, err := open(ctx)
		if err != nil {
			return err
		}
		return closeWarehouse()
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- metrics.Serve(ctx, cfg.Runtime.MetricsAddr, reg, health, log) }()

	if err := svc.StartSchedule(ctx, cfg.Runtime.ScheduleCron); err != nil {
		log.Error().Err(err).Msg("failed to start schedule")
		return exitUsage
	}
	log.Info().Str("schedule", cfg.Runtime.ScheduleCron).Msg("waiting for scheduled runs")

	code := exitOK
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("metrics server failed")
			code = exitError
		}
	}

	svc.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	svc.WaitRunning(shutdownCtx)
	log.Info().Msg("scheduler stopped")
	return code
}

func printHistory(w io.Writer, runs *storage.RunLogStore, limit int) error {
	logs, err := runs.ListRunLogs("", limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tPIPELINE\tSTATUS\tREAD\tWRITTEN\tSKIPPED\tDURATION\tERROR")
	for _, l := range logs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			l.StartedAt.Local().Format(time.DateTime), l.Pipeline, l.Status,
			l.RowsRead, l.RowsWritten, l.Skipped,
			l.FinishedAt.Sub(l.StartedAt).Round(time.Millisecond), l.Error)
	}
	return tw.Flush()
}
