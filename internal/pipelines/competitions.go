package pipelines

import (
	"context"

	"football/internal/etl"
	"football/internal/schema"
)

// competitions loads every competition available on the configured plan.
type competitions struct{}

func init() { etl.RegisterPipeline(competitions{}) }

func (competitions) Spec() etl.PipelineSpec {
	return etl.PipelineSpec{
		Name:   "competitions",
		Table:  CompetitionsTable,
		Schema: schema.CompetitionsResponse,
	}
}

func (competitions) Table() *etl.TableDef {
	return &etl.TableDef{
		Name: CompetitionsTable,
		Columns: []etl.ColumnDef{
			col("id", etl.TypeBigInt),
			col("name", etl.TypeText),
			col("area", etl.TypeJSON),
			nullable("code", etl.TypeText),
			nullable("type", etl.TypeText),
			nullable("emblem", etl.TypeText),
			nullable("plan", etl.TypeText),
			col("current_season", etl.TypeJSON),
			col("number_of_available_seasons", etl.TypeInteger),
			col("last_updated", etl.TypeTimestamp),
			loadTimestamp,
		},
		Unique: [][]string{{"id"}},
	}
}

func (competitions) Mapping() *etl.Mapping {
	return &etl.Mapping{
		Table:  CompetitionsTable,
		Expand: []string{"competitions"},
		Columns: []etl.ColumnMapping{
			{Name: "id", Path: "competitions.id"},
			{Name: "name", Path: "competitions.name"},
			{Name: "area", Path: "competitions.area", JSON: true},
			{Name: "code", Path: "competitions.code"},
			{Name: "type", Path: "competitions.type"},
			{Name: "emblem", Path: "competitions.emblem"},
			{Name: "plan", Path: "competitions.plan"},
			{Name: "current_season", Path: "competitions.current_season", JSON: true},
			{Name: "number_of_available_seasons", Path: "competitions.number_of_available_seasons"},
			{Name: "last_updated", Path: "competitions.last_updated"},
		},
	}
}

func (competitions) Extract(ctx context.Context, env *etl.Env) ([]schema.Record, error) {
	raw, err := env.API.Competitions(ctx, env.Plan)
	if err != nil {
		return nil, err
	}
	rec, err := env.Validate(raw, schema.CompetitionsResponse)
	if err != nil {
		return nil, err
	}
	return []schema.Record{rec}, nil
}
