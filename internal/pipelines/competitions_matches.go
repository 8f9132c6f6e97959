package pipelines

import (
	"context"
	"fmt"

	"football/internal/etl"
	"football/internal/schema"
)

// competitionsMatches loads every match of every loaded competition. Match
// lists are fetched page by page; a failing page keeps what came before it.
type competitionsMatches struct{}

func init() { etl.RegisterPipeline(competitionsMatches{}) }

func (competitionsMatches) Spec() etl.PipelineSpec {
	dep := competitionIDs
	return etl.PipelineSpec{
		Name:      "competitions_matches",
		Table:     CompetitionsMatchesTable,
		Schema:    schema.Match,
		DependsOn: &dep,
	}
}

func (competitionsMatches) Table() *etl.TableDef {
	cols := []etl.ColumnDef{col("competition_id", etl.TypeBigInt)}
	cols = append(cols, matchColumnDefs()...)
	cols = append(cols, loadTimestamp)
	return &etl.TableDef{
		Name:    CompetitionsMatchesTable,
		Columns: cols,
		Unique:  [][]string{{"competition_id", "match_id"}},
	}
}

func (competitionsMatches) Mapping() *etl.Mapping {
	cols := []etl.ColumnMapping{{Name: "competition_id", Path: "competition_id"}}
	cols = append(cols, matchColumns("matches")...)
	return &etl.Mapping{
		Table:   CompetitionsMatchesTable,
		Expand:  []string{"matches"},
		Columns: cols,
	}
}

func (competitionsMatches) Extract(ctx context.Context, env *etl.Env) ([]schema.Record, error) {
	ids, err := env.DependencyIDs(ctx, competitionIDs)
	if err != nil {
		return nil, err
	}

	records := make([]schema.Record, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		env.Log.Info().Int64("competition_id", id).Msg("retrieving")
		items, err := env.API.CompetitionMatches(ctx, id)
		if err != nil {
			if err := skipOrAbort(env, "competition_id", id, err); err != nil {
				return nil, err
			}
			continue
		}

		matches := make([]schema.Record, 0, len(items))
		for i, item := range items {
			raw, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("competition_id %d: match %d is %T, not an object", id, i, item)
			}
			m, err := env.Validate(raw, schema.Match)
			if err != nil {
				return nil, fmt.Errorf("competition_id %d: %w", id, err)
			}
			matches = append(matches, m)
		}
		records = append(records, schema.Record{"competition_id": id, "matches": matches})
	}
	if err := checkFetched("competition_id", len(ids), len(records)); err != nil {
		return nil, err
	}
	return records, nil
}
