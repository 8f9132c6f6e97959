// Package pipelines holds one pipeline per request_type selector. Each file
// registers its pipeline with the etl registry from init().
package pipelines

import (
	"context"
	"errors"
	"fmt"

	"football/internal/etl"
	"football/internal/footballapi"
	"football/internal/schema"
)

// Destination tables, also the selector names except for matches_today.
const (
	CompetitionsTable           = "competitions"
	TeamsTable                  = "teams"
	CompetitionsStandingsTable  = "competitions_standings"
	CompetitionsTopScorersTable = "competitions_top_scorers"
	MatchesTodayTable           = "matches_today"
	TeamsUpcomingMatchesTable   = "teams_upcoming_matches"
	CompetitionsMatchesTable    = "competitions_matches"
)

var (
	competitionIDs = etl.Dependency{Table: CompetitionsTable, Column: "id"}
	teamIDs        = etl.Dependency{Table: TeamsTable, Column: "team_id"}
)

// fetchFunc fetches one entity's response.
type fetchFunc func(ctx context.Context, id int64) (map[string]any, error)

// perEntity fetches and validates one response per dependency identifier.
// Fetch errors skip the entity unless skipOrAbort says otherwise; validation
// errors abort the run. Each validated record gets the identifier stored
// under idKey.
func perEntity(ctx context.Context, env *etl.Env, dep etl.Dependency, entity, idKey, schemaName string, fetch fetchFunc) ([]schema.Record, error) {
	ids, err := env.DependencyIDs(ctx, dep)
	if err != nil {
		return nil, err
	}

	records := make([]schema.Record, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		env.Log.Info().Int64(entity, id).Msg("retrieving")
		raw, err := fetch(ctx, id)
		if err != nil {
			if err := skipOrAbort(env, entity, id, err); err != nil {
				return nil, err
			}
			continue
		}
		rec, err := env.Validate(raw, schemaName)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", entity, id, err)
		}
		rec[idKey] = id
		records = append(records, rec)
	}
	if err := checkFetched(entity, len(ids), len(records)); err != nil {
		return nil, err
	}
	return records, nil
}

// skipOrAbort records a per-entity fetch failure. A rejected API key fails
// every entity alike, so it ends the loop instead.
func skipOrAbort(env *etl.Env, entity string, id int64, err error) error {
	if errors.Is(err, footballapi.ErrUnauthorized) {
		return fmt.Errorf("%s %d: %w", entity, id, err)
	}
	env.Skip(entity, id, err)
	return nil
}

// checkFetched fails a loop in which no entity came back, so the previous
// table contents survive.
func checkFetched(entity string, ids, fetched int) error {
	if ids > 0 && fetched == 0 {
		return fmt.Errorf("all %d %s fetches failed: %w", ids, entity, etl.ErrNothingFetched)
	}
	return nil
}

// ── Shared column sets ─────────────────────────────────────

func col(name string, typ etl.LogicalType) etl.ColumnDef {
	return etl.ColumnDef{Name: name, Type: typ}
}

func nullable(name string, typ etl.LogicalType) etl.ColumnDef {
	return etl.ColumnDef{Name: name, Type: typ, Nullable: true}
}

var loadTimestamp = col(etl.LoadTimestampColumn, etl.TypeTimestamp)

// matchColumnDefs are the columns of a match row.
func matchColumnDefs() []etl.ColumnDef {
	return []etl.ColumnDef{
		col("match_id", etl.TypeBigInt),
		col("area", etl.TypeJSON),
		col("competition", etl.TypeJSON),
		col("season", etl.TypeJSON),
		col("utc_date", etl.TypeTimestamp),
		col("status", etl.TypeText),
		nullable("matchday", etl.TypeInteger),
		col("stage", etl.TypeText),
		nullable("which_group", etl.TypeText),
		col("last_updated", etl.TypeTimestamp),
		col("home_team", etl.TypeJSON),
		col("away_team", etl.TypeJSON),
		col("score", etl.TypeJSON),
		nullable("odds", etl.TypeJSON),
		col("referees", etl.TypeJSON),
	}
}

// matchColumns maps a match element at the given expand level.
func matchColumns(level string) []etl.ColumnMapping {
	at := func(field string) string { return level + "." + field }
	return []etl.ColumnMapping{
		{Name: "match_id", Path: at("id")},
		{Name: "area", Path: at("area"), JSON: true},
		{Name: "competition", Path: at("competition"), JSON: true},
		{Name: "season", Path: at("season"), JSON: true},
		{Name: "utc_date", Path: at("utc_date")},
		{Name: "status", Path: at("status")},
		{Name: "matchday", Path: at("matchday")},
		{Name: "stage", Path: at("stage")},
		{Name: "which_group", Path: at("which_group")},
		{Name: "last_updated", Path: at("last_updated")},
		{Name: "home_team", Path: at("home_team"), JSON: true},
		{Name: "away_team", Path: at("away_team"), JSON: true},
		{Name: "score", Path: at("score"), JSON: true},
		{Name: "odds", Path: at("odds"), JSON: true},
		{Name: "referees", Path: at("referees"), JSON: true},
	}
}
