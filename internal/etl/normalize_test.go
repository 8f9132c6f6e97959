package etl_test

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"football/internal/etl"
	"football/internal/schema"
)

var fixedNow = time.Date(2024, 9, 17, 8, 30, 0, 0, time.FixedZone("BRT", -3*3600))

func fixedNormalizer() *etl.Normalizer {
	return &etl.Normalizer{Now: func() time.Time { return fixedNow }}
}

const competitionsJSON = `{
  "count": 1,
  "filters": {},
  "competitions": [{
    "id": 2001, "name": "UCL",
    "area": {"name": "Europe", "id": 1},
    "currentSeason": {"id": 2316, "startDate": "2024-09-17", "endDate": "2025-05-31", "currentMatchday": null, "winner": null},
    "numberOfAvailableSeasons": 46,
    "lastUpdated": "2024-06-04T00:00:00Z"
  }]
}`

var competitionsMapping = &etl.Mapping{
	Table:  "competitions",
	Expand: []string{"competitions"},
	Columns: []etl.ColumnMapping{
		{Name: "id", Path: "competitions.id"},
		{Name: "name", Path: "competitions.name"},
		{Name: "area", Path: "competitions.area", JSON: true},
		{Name: "code", Path: "competitions.code"},
		{Name: "current_season", Path: "competitions.current_season", JSON: true},
		{Name: "last_updated", Path: "competitions.last_updated"},
	},
}

func TestNormalize_CompetitionsScenario(t *testing.T) {
	rec, err := schema.NewFootballRegistry().ParseJSON([]byte(competitionsJSON), schema.CompetitionsResponse)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	batch, err := fixedNormalizer().Normalize([]schema.Record{rec}, competitionsMapping)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(batch.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(batch.Rows))
	}
	row := batch.Rows[0]

	if row["area"] != `{"id":1,"name":"Europe"}` {
		t.Errorf("area = %#v", row["area"])
	}
	if row["id"] != int64(2001) {
		t.Errorf("id = %#v", row["id"])
	}
	if row["code"] != nil {
		t.Errorf("absent optional code should be nil, got %#v", row["code"])
	}
	want := `{"end_date":"2025-05-31","id":2316,"start_date":"2024-09-17"}`
	if row["current_season"] != want {
		t.Errorf("current_season = %v\nwant %v", row["current_season"], want)
	}
	ts, ok := row[etl.LoadTimestampColumn].(time.Time)
	if !ok || !ts.Equal(fixedNow) || ts.Location() != time.UTC {
		t.Errorf("load_timestamp = %#v, want %v in UTC", row[etl.LoadTimestampColumn], fixedNow)
	}
}

func TestNormalize_NullNestedStaysNull(t *testing.T) {
	m := &etl.Mapping{
		Table: "t",
		Columns: []etl.ColumnMapping{
			{Name: "coach", Path: "coach", JSON: true},
			{Name: "squad", Path: "squad", JSON: true},
			{Name: "empty", Path: "empty", JSON: true},
		},
	}
	rec := schema.Record{"coach": nil, "empty": []schema.Record{}}

	batch, err := fixedNormalizer().Normalize([]schema.Record{rec}, m)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	row := batch.Rows[0]
	if row["coach"] != nil {
		t.Errorf("null coach encoded as %#v", row["coach"])
	}
	if row["squad"] != nil {
		t.Errorf("absent squad encoded as %#v", row["squad"])
	}
	if row["empty"] != "[]" {
		t.Errorf("present empty list = %#v, want []", row["empty"])
	}
}

func standingsResponse(entries int) map[string]any {
	table := make([]any, entries)
	for i := range table {
		table[i] = map[string]any{
			"position": float64(i + 1),
			"team":     map[string]any{"id": float64(100 + i), "name": fmt.Sprintf("Team %d", i), "shortName": "T", "tla": "TTT"},
			"playedGames": 10.0, "won": 5.0, "draw": 3.0, "lost": 2.0, "points": 18.0,
			"goalsFor": 12.0, "goalsAgainst": 8.0, "goalDifference": 4.0,
		}
	}
	return map[string]any{
		"competition": map[string]any{"id": 2021.0, "name": "Premier League"},
		"season":      map[string]any{"id": 2287.0, "startDate": "2024-08-16", "endDate": "2025-05-25"},
		"standings": []any{
			map[string]any{"stage": "REGULAR_SEASON", "type": "TOTAL", "group": nil, "table": table},
		},
	}
}

var standingsMapping = &etl.Mapping{
	Table:  "competitions_standings",
	Expand: []string{"standings", "table"},
	Columns: []etl.ColumnMapping{
		{Name: "competition_id", Path: "competition.id"},
		{Name: "season", Path: "season", JSON: true},
		{Name: "stage", Path: "standings.stage"},
		{Name: "group_name", Path: "standings.group"},
		{Name: "position", Path: "table.position"},
		{Name: "team_id", Path: "table.team.id"},
	},
}

func TestNormalize_StandingsExpandsInnerTable(t *testing.T) {
	rec, err := schema.NewFootballRegistry().Parse(standingsResponse(20), schema.StandingsResponse)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	batch, err := fixedNormalizer().Normalize([]schema.Record{rec}, standingsMapping)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(batch.Rows) != 20 {
		t.Fatalf("rows = %d, want 20", len(batch.Rows))
	}
	season := batch.Rows[0]["season"]
	for i, row := range batch.Rows {
		if row["competition_id"] != int64(2021) {
			t.Errorf("row %d competition_id = %#v", i, row["competition_id"])
		}
		if row["season"] != season {
			t.Errorf("row %d season differs", i)
		}
		if row["position"] != int64(i+1) {
			t.Errorf("row %d position = %#v", i, row["position"])
		}
		if row["stage"] != "REGULAR_SEASON" || row["group_name"] != nil {
			t.Errorf("row %d outer fields = %v / %v", i, row["stage"], row["group_name"])
		}
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	reg := schema.NewFootballRegistry()
	rec, err := reg.Parse(standingsResponse(5), schema.StandingsResponse)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n := fixedNormalizer()

	a, err := n.Normalize([]schema.Record{rec}, standingsMapping)
	if err != nil {
		t.Fatal(err)
	}
	b, err := n.Normalize([]schema.Record{rec}, standingsMapping)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("normalizing the same input twice produced different batches")
	}
}

func TestNormalize_SingleTimestampPerBatch(t *testing.T) {
	calls := 0
	n := &etl.Normalizer{Now: func() time.Time {
		calls++
		return fixedNow.Add(time.Duration(calls) * time.Second)
	}}
	rec, err := schema.NewFootballRegistry().Parse(standingsResponse(3), schema.StandingsResponse)
	if err != nil {
		t.Fatal(err)
	}
	batch, err := n.Normalize([]schema.Record{rec, rec}, standingsMapping)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("clock read %d times, want 1", calls)
	}
	first := batch.Rows[0][etl.LoadTimestampColumn]
	for i, row := range batch.Rows {
		if row[etl.LoadTimestampColumn] != first {
			t.Errorf("row %d has a different load_timestamp", i)
		}
	}
}

func TestNormalize_ScalarColumnRejectsNestedValue(t *testing.T) {
	m := &etl.Mapping{Table: "t", Columns: []etl.ColumnMapping{{Name: "area", Path: "area"}}}
	rec := schema.Record{"area": schema.Record{"id": int64(1)}}
	if _, err := fixedNormalizer().Normalize([]schema.Record{rec}, m); err == nil {
		t.Error("expected error for nested value in scalar column")
	}
}

func TestBatch_ValidateRejectsRaggedRows(t *testing.T) {
	b := &etl.Batch{
		Table:   "t",
		Columns: []string{"a", "b"},
		Rows:    []etl.Row{{"a": 1, "b": nil}, {"a": 2}},
	}
	if err := b.Validate(); err == nil {
		t.Error("expected ragged batch to fail validation")
	}
}
