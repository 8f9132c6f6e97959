package pipelines

import (
	"context"

	"football/internal/etl"
	"football/internal/schema"
)

// competitionsStandings loads one row per table position of every standing
// (total, home, away, and per group) of every loaded competition.
type competitionsStandings struct{}

func init() { etl.RegisterPipeline(competitionsStandings{}) }

func (competitionsStandings) Spec() etl.PipelineSpec {
	dep := competitionIDs
	return etl.PipelineSpec{
		Name:      "competitions_standings",
		Table:     CompetitionsStandingsTable,
		Schema:    schema.StandingsResponse,
		DependsOn: &dep,
	}
}

func (competitionsStandings) Table() *etl.TableDef {
	return &etl.TableDef{
		Name: CompetitionsStandingsTable,
		Columns: []etl.ColumnDef{
			col("competition_id", etl.TypeBigInt),
			col("competition", etl.TypeJSON),
			col("season_id", etl.TypeBigInt),
			col("season", etl.TypeJSON),
			col("stage", etl.TypeText),
			col("standing_type", etl.TypeText),
			nullable("group_name", etl.TypeText),
			col("position", etl.TypeInteger),
			col("team_id", etl.TypeBigInt),
			col("team", etl.TypeJSON),
			col("played_games", etl.TypeInteger),
			nullable("form", etl.TypeText),
			col("won", etl.TypeInteger),
			col("draw", etl.TypeInteger),
			col("lost", etl.TypeInteger),
			col("points", etl.TypeInteger),
			col("goals_for", etl.TypeInteger),
			col("goals_against", etl.TypeInteger),
			col("goal_difference", etl.TypeInteger),
			loadTimestamp,
		},
		Unique: [][]string{{"competition_id", "season_id", "stage", "standing_type", "group_name", "position"}},
	}
}

func (competitionsStandings) Mapping() *etl.Mapping {
	return &etl.Mapping{
		Table:  CompetitionsStandingsTable,
		Expand: []string{"standings", "table"},
		Columns: []etl.ColumnMapping{
			{Name: "competition_id", Path: "competition_id"},
			{Name: "competition", Path: "competition", JSON: true},
			{Name: "season_id", Path: "season.id"},
			{Name: "season", Path: "season", JSON: true},
			{Name: "stage", Path: "standings.stage"},
			{Name: "standing_type", Path: "standings.type"},
			{Name: "group_name", Path: "standings.group"},
			{Name: "position", Path: "table.position"},
			{Name: "team_id", Path: "table.team.id"},
			{Name: "team", Path: "table.team", JSON: true},
			{Name: "played_games", Path: "table.played_games"},
			{Name: "form", Path: "table.form"},
			{Name: "won", Path: "table.won"},
			{Name: "draw", Path: "table.draw"},
			{Name: "lost", Path: "table.lost"},
			{Name: "points", Path: "table.points"},
			{Name: "goals_for", Path: "table.goals_for"},
			{Name: "goals_against", Path: "table.goals_against"},
			{Name: "goal_difference", Path: "table.goal_difference"},
		},
	}
}

func (competitionsStandings) Extract(ctx context.Context, env *etl.Env) ([]schema.Record, error) {
	return perEntity(ctx, env, competitionIDs, "competition_id", "competition_id", schema.StandingsResponse, env.API.CompetitionStandings)
}
