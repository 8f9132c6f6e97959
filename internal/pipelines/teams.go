package pipelines

import (
	"context"

	"football/internal/etl"
	"football/internal/schema"
)

// teams loads the teams of every loaded competition.
type teams struct{}

func init() { etl.RegisterPipeline(teams{}) }

func (teams) Spec() etl.PipelineSpec {
	dep := competitionIDs
	return etl.PipelineSpec{
		Name:      "teams",
		Table:     TeamsTable,
		Schema:    schema.TeamsResponse,
		DependsOn: &dep,
	}
}

func (teams) Table() *etl.TableDef {
	return &etl.TableDef{
		Name: TeamsTable,
		Columns: []etl.ColumnDef{
			col("competition_id", etl.TypeBigInt),
			col("team_id", etl.TypeBigInt),
			nullable("area", etl.TypeJSON),
			col("name", etl.TypeText),
			col("short_name", etl.TypeText),
			col("tla", etl.TypeText),
			col("crest", etl.TypeText),
			nullable("address", etl.TypeText),
			nullable("website", etl.TypeText),
			nullable("founded", etl.TypeInteger),
			nullable("club_colors", etl.TypeText),
			nullable("venue", etl.TypeText),
			nullable("running_competitions", etl.TypeJSON),
			nullable("coach", etl.TypeJSON),
			nullable("squad", etl.TypeJSON),
			nullable("staff", etl.TypeJSON),
			nullable("last_updated", etl.TypeTimestamp),
			loadTimestamp,
		},
		Unique: [][]string{{"competition_id", "team_id"}},
	}
}

func (teams) Mapping() *etl.Mapping {
	return &etl.Mapping{
		Table:  TeamsTable,
		Expand: []string{"teams"},
		Columns: []etl.ColumnMapping{
			{Name: "competition_id", Path: "competition_id"},
			{Name: "team_id", Path: "teams.id"},
			{Name: "area", Path: "teams.area", JSON: true},
			{Name: "name", Path: "teams.name"},
			{Name: "short_name", Path: "teams.short_name"},
			{Name: "tla", Path: "teams.tla"},
			{Name: "crest", Path: "teams.crest"},
			{Name: "address", Path: "teams.address"},
			{Name: "website", Path: "teams.website"},
			{Name: "founded", Path: "teams.founded"},
			{Name: "club_colors", Path: "teams.club_colors"},
			{Name: "venue", Path: "teams.venue"},
			{Name: "running_competitions", Path: "teams.running_competitions", JSON: true},
			{Name: "coach", Path: "teams.coach", JSON: true},
			{Name: "squad", Path: "teams.squad", JSON: true},
			{Name: "staff", Path: "teams.staff", JSON: true},
			{Name: "last_updated", Path: "teams.last_updated"},
		},
	}
}

func (teams) Extract(ctx context.Context, env *etl.Env) ([]schema.Record, error) {
	return perEntity(ctx, env, competitionIDs, "competition_id", "competition_id", schema.TeamsResponse, env.API.CompetitionTeams)
}
