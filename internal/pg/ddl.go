package pg

import (
	"fmt"
	"strings"

	"mapform/internal/schema"
)

// mapType переводит тип поля в физический тип колонки.
func mapType(f *schema.FieldDefinition) (string, error) {
	switch f.DataType {
	case schema.TypeText:
		return "text", nil
	case schema.TypeVarchar:
		n := f.MaxLength
		if n <= 0 {
			n = 255
		}
		return fmt.Sprintf("varchar(%d)", n), nil
	case schema.TypeInteger:
		return "integer", nil
	case schema.TypeBigint:
		return "bigint", nil
	case schema.TypeDecimal:
		p, s := 18, 6
		if f.Numeric != nil && f.Numeric.Precision > 0 {
			p, s = f.Numeric.Precision, f.Numeric.Scale
		}
		return fmt.Sprintf("numeric(%d,%d)", p, s), nil
	case schema.TypeFloat:
		return "double precision", nil
	case schema.TypeBoolean:
		return "boolean", nil
	case schema.TypeDate:
		return "date", nil
	case schema.TypeTimestamp:
		return "timestamp", nil
	case schema.TypeTimestamptz:
		return "timestamp with time zone", nil
	case schema.TypeJSON, schema.TypeSensor:
		return "jsonb", nil
	case schema.TypeUUID:
		return "uuid", nil
	case schema.TypeTags:
		return "text[]", nil
	case schema.TypePoint, schema.TypePolygon, schema.TypeLineString,
		schema.TypeMultiPoint, schema.TypeMultiPolygon:
		if f.Geometry == nil || strings.TrimSpace(f.Geometry.GeometryType) == "" {
			return "", fmt.Errorf("geometry field %q has no geometryType", f.Name)
		}
		srid := f.Geometry.SRID
		if srid <= 0 {
			return "", fmt.Errorf("geometry field %q has no valid srid", f.Name)
		}
		return fmt.Sprintf("geometry(%s,%d)", f.Geometry.GeometryType, srid), nil
	default:
		return "", fmt.Errorf("unknown type: %s", f.DataType)
	}
}

// quoteLiteral — для default-значений; значения данных сюда не попадают,
// они всегда идут bound-параметрами.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func columnDDL(f *schema.FieldDefinition) (string, error) {
	id, err := schema.NewIdent(f.Name)
	if err != nil {
		return "", err
	}
	typ, err := mapType(f)
	if err != nil {
		return "", err
	}
	col := id.SQL() + " " + typ
	if f.IsRequired {
		col += " not null"
	}
	if strings.TrimSpace(f.DefaultValue) != "" {
		col += " default " + quoteLiteral(f.DefaultValue)
	}
	return col, nil
}

// GenerateTableDDL собирает упорядоченный список стейтментов для одного
// определения: (a) основная таблица, (b) история, (c) триггеры копирования
// в историю, (d) индексы. Сам генератор не делает I/O — исполняет pg.Apply.
// Повторный прогон безопасен: create if not exists / create or replace /
// drop trigger if exists.
func GenerateTableDDL(def *schema.TableDefinition) ([]string, error) {
	if len(def.Fields) == 0 {
		return nil, fmt.Errorf("table %q must declare at least one field", def.Name)
	}
	tbl, err := def.PhysicalName()
	if err != nil {
		return nil, err
	}
	hist, err := def.HistoryName()
	if err != nil {
		return nil, err
	}

	var stmts []string

	// (a) основная таблица: id + поля + служебные created_at/updated_at/deleted_at
	cols := []string{
		`"id" uuid primary key default gen_random_uuid()`,
	}
	seen := map[string]struct{}{"id": {}}
	for i := range def.Fields {
		f := &def.Fields[i]
		nameLower := strings.ToLower(f.Name)
		if schema.IsSystemColumn(nameLower) {
			return nil, fmt.Errorf("field %q duplicates a system column", f.Name)
		}
		if _, dup := seen[nameLower]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[nameLower] = struct{}{}

		col, err := columnDDL(f)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
		}
		cols = append(cols, col)
	}
	cols = append(cols,
		`"created_at" timestamptz not null default now()`,
		`"updated_at" timestamptz not null default now()`,
		`"deleted_at" timestamptz null`,
	)
	stmts = append(stmts, fmt.Sprintf("create table if not exists %s (\n  %s\n);",
		tbl.SQL(), strings.Join(cols, ",\n  ")))

	// (b) история: record_id/operation/changed_at + те же бизнес-колонки
	histCols := []string{
		`"hid" bigserial primary key`,
		`"record_id" uuid not null`,
		`"operation" text not null`,
		`"changed_at" timestamptz not null default now()`,
	}
	for i := range def.Fields {
		f := &def.Fields[i]
		id, _ := schema.NewIdent(f.Name)
		typ, err := mapType(f)
		if err != nil {
			return nil, err
		}
		// в истории колонки всегда nullable и без default'ов
		histCols = append(histCols, id.SQL()+" "+typ)
	}
	stmts = append(stmts, fmt.Sprintf("create table if not exists %s (\n  %s\n);",
		hist.SQL(), strings.Join(histCols, ",\n  ")))

	// (c) триггеры
	stmts = append(stmts, historyTriggerDDL(def, tbl, hist)...)

	// (d) индексы: gist по каждой геометрии, btree по unique и timeseries
	stmts = append(stmts, indexDDL(def, tbl)...)

	return stmts, nil
}

// historyTriggerDDL генерирует plpgsql-функцию и AFTER-триггер, копирующие
// затронутую строку в историю. Функция перечисляет колонки, поэтому при
// добавлении поля её нужно перегенерировать.
func historyTriggerDDL(def *schema.TableDefinition, tbl, hist schema.Ident) []string {
	var names []string
	for i := range def.Fields {
		id, _ := schema.NewIdent(def.Fields[i].Name)
		names = append(names, id.SQL())
	}
	colList := ""
	oldList := ""
	newList := ""
	if len(names) > 0 {
		colList = ", " + strings.Join(names, ", ")
		oldSel := make([]string, len(names))
		newSel := make([]string, len(names))
		for i, n := range names {
			oldSel[i] = "old." + n
			newSel[i] = "new." + n
		}
		oldList = ", " + strings.Join(oldSel, ", ")
		newList = ", " + strings.Join(newSel, ", ")
	}

	fn := fmt.Sprintf(`create or replace function %s_fn() returns trigger as $$
begin
  if (tg_op = 'DELETE') then
    insert into %s ("record_id", "operation", "changed_at"%s)
    values (old."id", tg_op, now()%s);
    return old;
  end if;
  insert into %s ("record_id", "operation", "changed_at"%s)
  values (new."id", tg_op, now()%s);
  return new;
end;
$$ language plpgsql;`, hist, hist.SQL(), colList, oldList, hist.SQL(), colList, newList)

	drop := fmt.Sprintf(`drop trigger if exists %s_trg on %s;`, hist, tbl.SQL())
	trg := fmt.Sprintf(`create trigger %s_trg
after insert or update or delete on %s
for each row execute function %s_fn();`, hist, tbl.SQL(), hist)

	return []string{fn, drop, trg}
}

func indexDDL(def *schema.TableDefinition, tbl schema.Ident) []string {
	var stmts []string
	for i := range def.Fields {
		f := &def.Fields[i]
		id, _ := schema.NewIdent(f.Name)
		switch {
		case f.DataType.IsGeometry():
			stmts = append(stmts, fmt.Sprintf(
				"create index if not exists %s_%s_gist on %s using gist (%s);",
				tbl, id, tbl.SQL(), id.SQL()))
		case f.IsUnique:
			// частичный индекс: уникальность только среди живых строк
			stmts = append(stmts, fmt.Sprintf(
				"create unique index if not exists %s_%s_uq on %s (%s) where \"deleted_at\" is null;",
				tbl, id, tbl.SQL(), id.SQL()))
		case f.IsTimeseries:
			stmts = append(stmts, fmt.Sprintf(
				"create index if not exists %s_%s_ts on %s (%s);",
				tbl, id, tbl.SQL(), id.SQL()))
		}
	}
	return stmts
}

// GenerateAddColumnDDL — добавление одного поля к уже существующей таблице:
// колонка в основной и исторической таблицах, перегенерация триггерной
// функции (она перечисляет колонки) и индекс, если нужен.
func GenerateAddColumnDDL(def *schema.TableDefinition, f *schema.FieldDefinition) ([]string, error) {
	tbl, err := def.PhysicalName()
	if err != nil {
		return nil, err
	}
	hist, err := def.HistoryName()
	if err != nil {
		return nil, err
	}
	col, err := columnDDL(f)
	if err != nil {
		return nil, err
	}
	id, _ := schema.NewIdent(f.Name)
	typ, _ := mapType(f)

	stmts := []string{
		fmt.Sprintf("alter table %s add column if not exists %s;", tbl.SQL(), col),
		fmt.Sprintf("alter table %s add column if not exists %s %s;", hist.SQL(), id.SQL(), typ),
	}

	// def уже содержит новое поле (caller добавляет до вызова)
	stmts = append(stmts, historyTriggerDDL(def, tbl, hist)...)
	stmts = append(stmts, indexDDL(def, tbl)...)
	return stmts, nil
}

// GenerateDropDDL — снос физики при удалении определения.
func GenerateDropDDL(def *schema.TableDefinition) ([]string, error) {
	tbl, err := def.PhysicalName()
	if err != nil {
		return nil, err
	}
	hist, err := def.HistoryName()
	if err != nil {
		return nil, err
	}
	return []string{
		fmt.Sprintf("drop table if exists %s cascade;", tbl.SQL()),
		fmt.Sprintf("drop table if exists %s cascade;", hist.SQL()),
		fmt.Sprintf("drop function if exists %s_fn() cascade;", hist),
	}, nil
}
