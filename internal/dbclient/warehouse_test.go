package dbclient_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"football/internal/dbclient"
	"football/internal/etl"
)

func newTestWarehouse(t *testing.T) (*dbclient.Warehouse, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	w, err := dbclient.NewWarehouse(db, dbclient.DriverSQLite, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWarehouse: %v", err)
	}
	return w, db
}

func teamsDef() *etl.TableDef {
	return &etl.TableDef{
		Name: "teams",
		Columns: []etl.ColumnDef{
			{Name: "competition_id", Type: etl.TypeBigInt},
			{Name: "team_id", Type: etl.TypeBigInt},
			{Name: "name", Type: etl.TypeText},
			{Name: "area", Type: etl.TypeJSON, Nullable: true},
			{Name: etl.LoadTimestampColumn, Type: etl.TypeTimestamp},
		},
		Unique: [][]string{{"competition_id", "team_id"}},
	}
}

func teamsBatch(ts time.Time, teams ...[2]int64) *etl.Batch {
	b := &etl.Batch{
		Table:   "teams",
		Columns: []string{"competition_id", "team_id", "name", "area", etl.LoadTimestampColumn},
	}
	for _, tm := range teams {
		b.Rows = append(b.Rows, etl.Row{
			"competition_id":        tm[0],
			"team_id":               tm[1],
			"name":                  "team",
			"area":                  nil,
			etl.LoadTimestampColumn: ts,
		})
	}
	return b
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "` + table + `"`).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestLoad_CreatesTableAndInserts(t *testing.T) {
	w, db := newTestWarehouse(t)
	ctx := context.Background()

	n, err := w.Load(ctx, "football", teamsDef(), teamsBatch(time.Now().UTC(), [2]int64{2001, 1}, [2]int64{2001, 2}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 2 {
		t.Errorf("written = %d, want 2", n)
	}
	if got := countRows(t, db, "football__teams"); got != 2 {
		t.Errorf("rows = %d, want 2", got)
	}

	var area sql.NullString
	if err := db.QueryRow(`SELECT area FROM football__teams WHERE team_id = 1`).Scan(&area); err != nil {
		t.Fatalf("select area: %v", err)
	}
	if area.Valid {
		t.Errorf("area = %q, want NULL", area.String)
	}
}

func TestLoad_Idempotent(t *testing.T) {
	w, db := newTestWarehouse(t)
	ctx := context.Background()
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if _, err := w.Load(ctx, "football", teamsDef(), teamsBatch(ts, [2]int64{2001, 1}, [2]int64{2001, 2}, [2]int64{2002, 1})); err != nil {
			t.Fatalf("Load #%d: %v", i+1, err)
		}
	}
	if got := countRows(t, db, "football__teams"); got != 3 {
		t.Errorf("rows after two loads = %d, want 3", got)
	}
}

func TestLoad_ReplacesPreviousContents(t *testing.T) {
	w, db := newTestWarehouse(t)
	ctx := context.Background()

	if _, err := w.Load(ctx, "football", teamsDef(), teamsBatch(time.Now(), [2]int64{1, 1}, [2]int64{1, 2}, [2]int64{1, 3})); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if _, err := w.Load(ctx, "football", teamsDef(), teamsBatch(time.Now(), [2]int64{1, 9})); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if got := countRows(t, db, "football__teams"); got != 1 {
		t.Errorf("rows = %d, want 1", got)
	}
}

func TestLoad_UniqueViolationRollsBack(t *testing.T) {
	w, db := newTestWarehouse(t)
	ctx := context.Background()

	if _, err := w.Load(ctx, "football", teamsDef(), teamsBatch(time.Now(), [2]int64{1, 1}, [2]int64{1, 2})); err != nil {
		t.Fatalf("first load: %v", err)
	}

	_, err := w.Load(ctx, "football", teamsDef(), teamsBatch(time.Now(), [2]int64{1, 5}, [2]int64{1, 5}))
	if err == nil {
		t.Fatal("expected unique violation")
	}
	var le *dbclient.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("error %T is not a LoadError", err)
	}
	if le.Stage != dbclient.StageInsert {
		t.Errorf("stage = %q, want %q", le.Stage, dbclient.StageInsert)
	}

	ids, err := w.DistinctInts(ctx, "football", "teams", "team_id")
	if err != nil {
		t.Fatalf("DistinctInts: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("ids after failed load = %v, want [1 2]", ids)
	}
	if got := countRows(t, db, "football__teams"); got != 2 {
		t.Errorf("rows = %d, want 2", got)
	}
}

func TestLoad_NotNullViolation(t *testing.T) {
	w, _ := newTestWarehouse(t)
	b := teamsBatch(time.Now(), [2]int64{1, 1})
	b.Rows[0]["name"] = nil

	if _, err := w.Load(context.Background(), "football", teamsDef(), b); err == nil {
		t.Fatal("expected NOT NULL violation for name")
	}
}

func TestLoad_RejectsUnknownColumn(t *testing.T) {
	w, _ := newTestWarehouse(t)
	b := &etl.Batch{
		Table:   "teams",
		Columns: []string{"nope"},
		Rows:    []etl.Row{{"nope": 1}},
	}
	_, err := w.Load(context.Background(), "football", teamsDef(), b)
	var le *dbclient.LoadError
	if !errors.As(err, &le) || le.Stage != dbclient.StageValidate {
		t.Fatalf("err = %v, want validate LoadError", err)
	}
}

func TestLoad_EmptyBatchCreatesTable(t *testing.T) {
	w, db := newTestWarehouse(t)
	n, err := w.Load(context.Background(), "football", teamsDef(), teamsBatch(time.Now()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 0 {
		t.Errorf("written = %d, want 0", n)
	}
	if got := countRows(t, db, "football__teams"); got != 0 {
		t.Errorf("rows = %d, want 0", got)
	}
}

func TestLoad_ChunksLargeBatches(t *testing.T) {
	w, db := newTestWarehouse(t)
	def := &etl.TableDef{
		Name: "numbers",
		Columns: []etl.ColumnDef{
			{Name: "a", Type: etl.TypeBigInt},
			{Name: "b", Type: etl.TypeBigInt},
			{Name: "c", Type: etl.TypeBigInt},
		},
		Unique: [][]string{{"a"}},
	}
	b := &etl.Batch{Table: "numbers", Columns: []string{"a", "b", "c"}}
	const total = 12000 // more than one chunk at 3 params per row
	for i := 0; i < total; i++ {
		b.Rows = append(b.Rows, etl.Row{"a": int64(i), "b": int64(i * 2), "c": int64(i * 3)})
	}

	n, err := w.Load(context.Background(), "football", def, b)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != total {
		t.Errorf("written = %d, want %d", n, total)
	}
	if got := countRows(t, db, "football__numbers"); got != total {
		t.Errorf("rows = %d, want %d", got, total)
	}
}

func TestDistinctInts(t *testing.T) {
	w, _ := newTestWarehouse(t)
	ctx := context.Background()

	if _, err := w.Load(ctx, "football", teamsDef(), teamsBatch(time.Now(), [2]int64{2021, 1}, [2]int64{2001, 2}, [2]int64{2021, 3})); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ids, err := w.DistinctInts(ctx, "football", "teams", "competition_id")
	if err != nil {
		t.Fatalf("DistinctInts: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2001 || ids[1] != 2021 {
		t.Errorf("ids = %v, want [2001 2021]", ids)
	}
}

func TestDistinctInts_MissingTable(t *testing.T) {
	w, _ := newTestWarehouse(t)
	_, err := w.DistinctInts(context.Background(), "football", "competitions", "id")
	if !errors.Is(err, etl.ErrMissingDependency) {
		t.Fatalf("err = %v, want ErrMissingDependency", err)
	}
}

func TestDistinctInts_EmptyTable(t *testing.T) {
	w, _ := newTestWarehouse(t)
	ctx := context.Background()
	if _, err := w.Load(ctx, "football", teamsDef(), teamsBatch(time.Now())); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, err := w.DistinctInts(ctx, "football", "teams", "team_id")
	if !errors.Is(err, etl.ErrMissingDependency) {
		t.Fatalf("err = %v, want ErrMissingDependency", err)
	}
}

func TestNewWarehouse_UnknownDriver(t *testing.T) {
	if _, err := dbclient.NewWarehouse(nil, "oracle", zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpen_SQLiteMemory(t *testing.T) {
	w, err := dbclient.Open(dbclient.Connection{Driver: dbclient.DriverSQLite, Host: ":memory:"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()
	if err := w.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestLoad_NullableUniqueKeyRejectsDuplicateNulls(t *testing.T) {
	w, db := newTestWarehouse(t)
	ctx := context.Background()
	def := &etl.TableDef{
		Name: "scorers",
		Columns: []etl.ColumnDef{
			{Name: "player_id", Type: etl.TypeBigInt},
			{Name: "team_id", Type: etl.TypeBigInt, Nullable: true},
		},
		Unique: [][]string{{"player_id", "team_id"}},
	}
	batch := func(rows ...etl.Row) *etl.Batch {
		return &etl.Batch{Table: "scorers", Columns: []string{"player_id", "team_id"}, Rows: rows}
	}

	if _, err := w.Load(ctx, "football", def, batch(
		etl.Row{"player_id": int64(1), "team_id": nil},
		etl.Row{"player_id": int64(1), "team_id": int64(57)},
	)); err != nil {
		t.Fatalf("first load: %v", err)
	}

	_, err := w.Load(ctx, "football", def, batch(
		etl.Row{"player_id": int64(2), "team_id": nil},
		etl.Row{"player_id": int64(2), "team_id": nil},
	))
	var le *dbclient.LoadError
	if !errors.As(err, &le) || le.Stage != dbclient.StageInsert {
		t.Fatalf("err = %v, want insert LoadError", err)
	}
	if got := countRows(t, db, "football__scorers"); got != 2 {
		t.Errorf("rows = %d, want 2", got)
	}
}
