package pipelines

import (
	"context"

	"football/internal/etl"
	"football/internal/schema"
)

// teamsUpcomingMatches loads the next scheduled matches of every loaded team.
// A match between two loaded teams appears once per team.
type teamsUpcomingMatches struct{}

func init() { etl.RegisterPipeline(teamsUpcomingMatches{}) }

func (teamsUpcomingMatches) Spec() etl.PipelineSpec {
	dep := teamIDs
	return etl.PipelineSpec{
		Name:      "teams_upcoming_matches",
		Table:     TeamsUpcomingMatchesTable,
		Schema:    schema.MatchesResponse,
		DependsOn: &dep,
	}
}

func (teamsUpcomingMatches) Table() *etl.TableDef {
	cols := []etl.ColumnDef{col("team_id", etl.TypeBigInt)}
	cols = append(cols, matchColumnDefs()...)
	cols = append(cols,
		nullable("date_from", etl.TypeDate),
		nullable("date_to", etl.TypeDate),
		loadTimestamp,
	)
	return &etl.TableDef{
		Name:    TeamsUpcomingMatchesTable,
		Columns: cols,
		Unique:  [][]string{{"team_id", "match_id"}},
	}
}

func (teamsUpcomingMatches) Mapping() *etl.Mapping {
	cols := []etl.ColumnMapping{{Name: "team_id", Path: "team_id"}}
	cols = append(cols, matchColumns("matches")...)
	cols = append(cols,
		etl.ColumnMapping{Name: "date_from", Path: "filters.date_from"},
		etl.ColumnMapping{Name: "date_to", Path: "filters.date_to"},
	)
	return &etl.Mapping{
		Table:   TeamsUpcomingMatchesTable,
		Expand:  []string{"matches"},
		Columns: cols,
	}
}

func (teamsUpcomingMatches) Extract(ctx context.Context, env *etl.Env) ([]schema.Record, error) {
	return perEntity(ctx, env, teamIDs, "team_id", "team_id", schema.MatchesResponse, env.API.TeamUpcomingMatches)
}
