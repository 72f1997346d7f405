package pg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapform/internal/schema"
)

func stationsDef() *schema.TableDefinition {
	return &schema.TableDefinition{
		Name: "stations",
		Fields: []schema.FieldDefinition{
			{Name: "title", DataType: schema.TypeText, IsRequired: true},
			{Name: "code", DataType: schema.TypeVarchar, MaxLength: 32, IsUnique: true},
			{Name: "location", DataType: schema.TypePoint,
				Geometry: &schema.GeometryAttrs{GeometryType: "Point", SRID: 4326}},
			{Name: "reading", DataType: schema.TypeSensor, IsTimeseries: true},
			{Name: "status", DataType: schema.TypeText, DefaultValue: "active"},
		},
	}
}

func TestGenerateTableDDLOrder(t *testing.T) {
	stmts, err := GenerateTableDDL(stationsDef())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(stmts), 5)

	// порядок: таблица, история, функция, drop/create триггера, индексы
	assert.Contains(t, stmts[0], `create table if not exists "custom_stations"`)
	assert.Contains(t, stmts[1], `create table if not exists "custom_stations_history"`)
	assert.Contains(t, stmts[2], "create or replace function custom_stations_history_fn()")
	assert.Contains(t, stmts[3], "drop trigger if exists custom_stations_history_trg")
	assert.Contains(t, stmts[4], "create trigger custom_stations_history_trg")
}

func TestGenerateTableDDLColumns(t *testing.T) {
	stmts, err := GenerateTableDDL(stationsDef())
	require.NoError(t, err)
	main := stmts[0]

	assert.Contains(t, main, `"id" uuid primary key default gen_random_uuid()`)
	assert.Contains(t, main, `"title" text not null`)
	assert.Contains(t, main, `"code" varchar(32)`)
	assert.Contains(t, main, `"location" geometry(Point,4326)`)
	assert.Contains(t, main, `"reading" jsonb`)
	assert.Contains(t, main, `"status" text default 'active'`)
	assert.Contains(t, main, `"created_at" timestamptz not null default now()`)
	assert.Contains(t, main, `"deleted_at" timestamptz null`)
}

func TestGenerateTableDDLHistoryColumnsNullable(t *testing.T) {
	stmts, err := GenerateTableDDL(stationsDef())
	require.NoError(t, err)
	hist := stmts[1]

	assert.Contains(t, hist, `"hid" bigserial primary key`)
	assert.Contains(t, hist, `"record_id" uuid not null`)
	assert.Contains(t, hist, `"operation" text not null`)
	// бизнес-колонки истории без not null и default
	assert.Contains(t, hist, `"title" text`)
	assert.NotContains(t, hist, `"title" text not null`)
	assert.NotContains(t, hist, `default 'active'`)
}

func TestGenerateTableDDLTrigger(t *testing.T) {
	stmts, err := GenerateTableDDL(stationsDef())
	require.NoError(t, err)
	fn := stmts[2]

	assert.Contains(t, fn, "if (tg_op = 'DELETE') then")
	assert.Contains(t, fn, `old."id"`)
	assert.Contains(t, fn, `new."id"`)
	assert.Contains(t, fn, `old."title"`)
	assert.Contains(t, fn, `new."title"`)
	assert.Contains(t, fn, "language plpgsql")

	trg := stmts[4]
	assert.Contains(t, trg, "after insert or update or delete on")
}

func TestGenerateTableDDLIndexes(t *testing.T) {
	stmts, err := GenerateTableDDL(stationsDef())
	require.NoError(t, err)
	joined := strings.Join(stmts, "\n")

	assert.Contains(t, joined, `using gist ("location")`)
	assert.Contains(t, joined, `create unique index if not exists custom_stations_code_uq`)
	assert.Contains(t, joined, `where "deleted_at" is null`)
	assert.Contains(t, joined, `create index if not exists custom_stations_reading_ts`)
}

func TestGenerateTableDDLRejectsBadDefinitions(t *testing.T) {
	_, err := GenerateTableDDL(&schema.TableDefinition{Name: "empty"})
	assert.Error(t, err)

	def := stationsDef()
	def.Fields = append(def.Fields, schema.FieldDefinition{Name: "created_at", DataType: schema.TypeText})
	_, err = GenerateTableDDL(def)
	assert.ErrorContains(t, err, "system column")

	def = stationsDef()
	def.Fields = append(def.Fields, schema.FieldDefinition{Name: "title", DataType: schema.TypeText})
	_, err = GenerateTableDDL(def)
	assert.ErrorContains(t, err, "duplicate")

	def = stationsDef()
	def.Fields[2].Geometry = nil
	_, err = GenerateTableDDL(def)
	assert.ErrorContains(t, err, "geometryType")
}

func TestGenerateTableDDLInjectionRejected(t *testing.T) {
	def := stationsDef()
	def.Name = `stations"; drop table users; --`
	_, err := GenerateTableDDL(def)
	assert.Error(t, err)

	def = stationsDef()
	def.Fields[0].Name = `title"; drop table users; --`
	_, err = GenerateTableDDL(def)
	assert.Error(t, err)
}

func TestDefaultValueEscaped(t *testing.T) {
	def := stationsDef()
	def.Fields[4].DefaultValue = "o'neill"
	stmts, err := GenerateTableDDL(def)
	require.NoError(t, err)
	assert.Contains(t, stmts[0], `default 'o''neill'`)
}

func TestGenerateAddColumnDDL(t *testing.T) {
	def := stationsDef()
	f := &schema.FieldDefinition{Name: "capacity", DataType: schema.TypeInteger}
	def.Fields = append(def.Fields, *f)

	stmts, err := GenerateAddColumnDDL(def, f)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(stmts), 5)

	assert.Contains(t, stmts[0], `alter table "custom_stations" add column if not exists "capacity" integer`)
	assert.Contains(t, stmts[1], `alter table "custom_stations_history" add column if not exists "capacity" integer`)
	// триггерная функция перечисляет колонки — перегенерируется с новой
	joined := strings.Join(stmts, "\n")
	assert.Contains(t, joined, `new."capacity"`)
}

func TestGenerateDropDDL(t *testing.T) {
	stmts, err := GenerateDropDDL(stationsDef())
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], `drop table if exists "custom_stations" cascade`)
	assert.Contains(t, stmts[1], `drop table if exists "custom_stations_history" cascade`)
	assert.Contains(t, stmts[2], "drop function if exists custom_stations_history_fn() cascade")
}

func TestMapTypeDefaults(t *testing.T) {
	typ, err := mapType(&schema.FieldDefinition{Name: "v", DataType: schema.TypeVarchar})
	require.NoError(t, err)
	assert.Equal(t, "varchar(255)", typ)

	typ, err = mapType(&schema.FieldDefinition{Name: "d", DataType: schema.TypeDecimal})
	require.NoError(t, err)
	assert.Equal(t, "numeric(18,6)", typ)

	typ, err = mapType(&schema.FieldDefinition{
		Name: "d", DataType: schema.TypeDecimal,
		Numeric: &schema.NumericAttrs{Precision: 10, Scale: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "numeric(10,2)", typ)

	_, err = mapType(&schema.FieldDefinition{Name: "x", DataType: "blob"})
	assert.Error(t, err)
}
