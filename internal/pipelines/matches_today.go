package pipelines

import (
	"context"

	"football/internal/etl"
	"football/internal/schema"
)

// matchesToday loads today's matches across the subscribed competitions.
type matchesToday struct{}

func init() { etl.RegisterPipeline(matchesToday{}) }

func (matchesToday) Spec() etl.PipelineSpec {
	return etl.PipelineSpec{
		Name:   "matches_today",
		Table:  MatchesTodayTable,
		Schema: schema.MatchesResponse,
	}
}

func (matchesToday) Table() *etl.TableDef {
	cols := matchColumnDefs()
	cols = append(cols, nullable("date_from", etl.TypeDate), loadTimestamp)
	return &etl.TableDef{
		Name:    MatchesTodayTable,
		Columns: cols,
		Unique:  [][]string{{"match_id"}},
	}
}

func (matchesToday) Mapping() *etl.Mapping {
	cols := matchColumns("matches")
	cols = append(cols, etl.ColumnMapping{Name: "date_from", Path: "filters.date_from"})
	return &etl.Mapping{
		Table:   MatchesTodayTable,
		Expand:  []string{"matches"},
		Columns: cols,
	}
}

func (matchesToday) Extract(ctx context.Context, env *etl.Env) ([]schema.Record, error) {
	raw, err := env.API.MatchesToday(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := env.Validate(raw, schema.MatchesResponse)
	if err != nil {
		return nil, err
	}
	return []schema.Record{rec}, nil
}
