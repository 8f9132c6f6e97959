package etl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"football/internal/metrics"
	"football/internal/schema"
)

// ── Pipeline ───────────────────────────────────────────────
// A Pipeline extracts one resource type from the upstream API. It declares
// its destination table, the schema that validates each response and the
// mapping that flattens validated records into rows.
// Implementations live in the pipelines package, one file per selector.

// ErrMissingDependency is returned when a pipeline needs identifiers from a
// table that does not exist yet or holds no rows.
var ErrMissingDependency = errors.New("dependency table missing or empty")

// ErrNothingFetched is returned when every entity of a multi-entity loop
// failed to fetch. The destination table is left untouched.
var ErrNothingFetched = errors.New("no entity could be fetched")

// Dependency names a previously loaded identifier column.
type Dependency struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// PipelineSpec describes a pipeline.
type PipelineSpec struct {
	Name      string      `json:"name"` // request_type selector
	Table     string      `json:"table"`
	Schema    string      `json:"schema"` // registry name validating each response
	DependsOn *Dependency `json:"dependsOn,omitempty"`
}

// Pipeline is the interface every resource pipeline implements.
type Pipeline interface {
	Spec() PipelineSpec
	Table() *TableDef
	Mapping() *Mapping

	// Extract fetches and validates every response for one run.
	Extract(ctx context.Context, env *Env) ([]schema.Record, error)
}

// Fetcher is the upstream API surface used by pipelines.
type Fetcher interface {
	Competitions(ctx context.Context, plan string) (map[string]any, error)
	CompetitionTeams(ctx context.Context, competitionID int64) (map[string]any, error)
	CompetitionStandings(ctx context.Context, competitionID int64) (map[string]any, error)
	CompetitionScorers(ctx context.Context, competitionID int64) (map[string]any, error)
	CompetitionMatches(ctx context.Context, competitionID int64) ([]any, error)
	MatchesToday(ctx context.Context) (map[string]any, error)
	TeamUpcomingMatches(ctx context.Context, teamID int64) (map[string]any, error)
}

// IDReader reads identifier lists loaded by earlier pipelines.
type IDReader interface {
	DistinctInts(ctx context.Context, dbSchema, table, column string) ([]int64, error)
}

// Env is what a pipeline run may use. It is built per run.
type Env struct {
	API      Fetcher
	Registry *schema.Registry
	IDs      IDReader
	DBSchema string
	Plan     string // competitions plan filter
	Log      zerolog.Logger
	Metrics  *metrics.Metrics

	pipeline string
	skipped  int
}

// Validate parses raw against the named schema.
func (e *Env) Validate(raw map[string]any, schemaName string) (schema.Record, error) {
	rec, err := e.Registry.Parse(raw, schemaName)
	if err != nil {
		e.Metrics.ValidationFailed(schemaName)
		return nil, err
	}
	return rec, nil
}

// DependencyIDs returns the identifiers the pipeline iterates over.
func (e *Env) DependencyIDs(ctx context.Context, dep Dependency) ([]int64, error) {
	if e.IDs == nil {
		return nil, fmt.Errorf("%w: no store to read %s.%s from", ErrMissingDependency, dep.Table, dep.Column)
	}
	ids, err := e.IDs.DistinctInts(ctx, e.DBSchema, dep.Table, dep.Column)
	if err != nil {
		return nil, fmt.Errorf("read %s.%s: %w", dep.Table, dep.Column, err)
	}
	e.Log.Info().Str("table", dep.Table).Int("ids", len(ids)).Msg("dependency identifiers loaded")
	return ids, nil
}

// Skip records a per-entity fetch failure inside a multi-entity loop.
func (e *Env) Skip(entity string, id int64, err error) {
	e.skipped++
	e.Metrics.ItemSkipped(e.pipeline)
	e.Log.Warn().Err(err).Str(entity, fmt.Sprint(id)).Msg("fetch failed, skipping")
}

// Skipped reports how many entities were skipped so far.
func (e *Env) Skipped() int { return e.skipped }

// ── Pipeline Registry ──────────────────────────────────────
// Compile-time registration via init() in each pipeline file.

var (
	registryMu sync.RWMutex
	registry   = map[string]Pipeline{}
)

// RegisterPipeline registers a pipeline by its selector name.
// Called from init() in each pipeline implementation file.
func RegisterPipeline(p Pipeline) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name := p.Spec().Name
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("pipeline %q registered twice", name))
	}
	registry[name] = p
}

// GetPipeline returns a registered pipeline by selector, or an error if not found.
func GetPipeline(name string) (Pipeline, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown request type: %q", name)
	}
	return p, nil
}

// ListPipelines returns the registered selectors, sorted.
func ListPipelines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ValidateRegistry checks every registered pipeline against its table
// definition, its mapping and the schema registry. Called once at startup.
func ValidateRegistry(schemas *schema.Registry) error {
	registryMu.RLock()
	defer registryMu.RUnlock()

	tables := make(map[string]*TableDef, len(registry))
	for _, p := range registry {
		tables[p.Spec().Table] = p.Table()
	}

	var errs []error
	for _, name := range sortedKeys(registry) {
		if err := validatePipeline(registry[name], schemas, tables); err != nil {
			errs = append(errs, fmt.Errorf("pipeline %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func validatePipeline(p Pipeline, schemas *schema.Registry, tables map[string]*TableDef) error {
	spec := p.Spec()
	def := p.Table()
	m := p.Mapping()
	if def == nil || m == nil {
		return fmt.Errorf("missing table definition or mapping")
	}
	if err := def.Validate(); err != nil {
		return err
	}
	if def.Name != spec.Table || m.Table != spec.Table {
		return fmt.Errorf("table mismatch: spec %q, ddl %q, mapping %q", spec.Table, def.Name, m.Table)
	}
	if _, err := schemas.Get(spec.Schema); err != nil {
		return err
	}

	mapped := make(map[string]bool, len(m.Columns)+1)
	for _, col := range m.ColumnNames() {
		if mapped[col] {
			return fmt.Errorf("column %q mapped twice", col)
		}
		mapped[col] = true
	}
	for _, col := range m.Columns {
		cd, ok := def.Column(col.Name)
		if !ok {
			return fmt.Errorf("mapped column %q not in table %s", col.Name, def.Name)
		}
		if col.JSON != (cd.Type == TypeJSON) {
			return fmt.Errorf("column %q: json encoding does not match type %s", col.Name, cd.Type)
		}
	}
	for _, cd := range def.Columns {
		if !mapped[cd.Name] {
			return fmt.Errorf("table column %q has no mapping", cd.Name)
		}
	}
	if cd, ok := def.Column(LoadTimestampColumn); !ok || cd.Type != TypeTimestamp {
		return fmt.Errorf("table %s needs a %s timestamp column", def.Name, LoadTimestampColumn)
	}

	if dep := spec.DependsOn; dep != nil {
		depDef, ok := tables[dep.Table]
		if !ok {
			return fmt.Errorf("depends on unknown table %q", dep.Table)
		}
		if _, ok := depDef.Column(dep.Column); !ok {
			return fmt.Errorf("depends on unknown column %s.%s", dep.Table, dep.Column)
		}
	}
	return nil
}

// RunOrder returns every selector ordered so that dependencies run first.
// Ties are broken by name.
func RunOrder() ([]string, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	producer := make(map[string]string, len(registry)) // table → pipeline
	for name, p := range registry {
		producer[p.Spec().Table] = name
	}

	done := make(map[string]bool, len(registry))
	order := make([]string, 0, len(registry))
	for len(order) < len(registry) {
		progressed := false
		for _, name := range sortedKeys(registry) {
			if done[name] {
				continue
			}
			if dep := registry[name].Spec().DependsOn; dep != nil {
				if up, ok := producer[dep.Table]; ok && !done[up] {
					continue
				}
			}
			done[name] = true
			order = append(order, name)
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("pipeline dependencies form a cycle")
		}
	}
	return order, nil
}

func sortedKeys(m map[string]Pipeline) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
