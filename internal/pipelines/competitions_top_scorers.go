package pipelines

import (
	"context"

	"football/internal/etl"
	"football/internal/schema"
)

// competitionsTopScorers loads the scorers list of every loaded competition.
type competitionsTopScorers struct{}

func init() { etl.RegisterPipeline(competitionsTopScorers{}) }

func (competitionsTopScorers) Spec() etl.PipelineSpec {
	dep := competitionIDs
	return etl.PipelineSpec{
		Name:      "competitions_top_scorers",
		Table:     CompetitionsTopScorersTable,
		Schema:    schema.TopScorersResponse,
		DependsOn: &dep,
	}
}

func (competitionsTopScorers) Table() *etl.TableDef {
	return &etl.TableDef{
		Name: CompetitionsTopScorersTable,
		Columns: []etl.ColumnDef{
			col("competition_id", etl.TypeBigInt),
			col("competition", etl.TypeJSON),
			col("season_id", etl.TypeBigInt),
			col("season", etl.TypeJSON),
			col("player_id", etl.TypeBigInt),
			col("player", etl.TypeJSON),
			nullable("team_id", etl.TypeBigInt),
			nullable("team", etl.TypeJSON),
			col("played_matches", etl.TypeInteger),
			col("goals", etl.TypeInteger),
			nullable("assists", etl.TypeInteger),
			nullable("penalties", etl.TypeInteger),
			loadTimestamp,
		},
		Unique: [][]string{{"competition_id", "season_id", "player_id", "team_id"}},
	}
}

func (competitionsTopScorers) Mapping() *etl.Mapping {
	return &etl.Mapping{
		Table:  CompetitionsTopScorersTable,
		Expand: []string{"scorers"},
		Columns: []etl.ColumnMapping{
			{Name: "competition_id", Path: "competition_id"},
			{Name: "competition", Path: "competition", JSON: true},
			{Name: "season_id", Path: "season.id"},
			{Name: "season", Path: "season", JSON: true},
			{Name: "player_id", Path: "scorers.player.id"},
			{Name: "player", Path: "scorers.player", JSON: true},
			{Name: "team_id", Path: "scorers.team.id"},
			{Name: "team", Path: "scorers.team", JSON: true},
			{Name: "played_matches", Path: "scorers.played_matches"},
			{Name: "goals", Path: "scorers.goals"},
			{Name: "assists", Path: "scorers.assists"},
			{Name: "penalties", Path: "scorers.penalties"},
		},
	}
}

func (competitionsTopScorers) Extract(ctx context.Context, env *etl.Env) ([]schema.Record, error) {
	return perEntity(ctx, env, competitionIDs, "competition_id", "competition_id", schema.TopScorersResponse, env.API.CompetitionScorers)
}
