package query

import (
	"fmt"
	"strings"

	"mapform/internal/schema"
)

// Select — фильтрованная постраничная выборка живых строк.
func Select(def *schema.TableDefinition, opts Options) (string, []any, error) {
	tbl, err := def.PhysicalName()
	if err != nil {
		return "", nil, err
	}

	where, args, next, err := compileFilters(def, opts.Filters, 1)
	if err != nil {
		return "", nil, err
	}
	conds := []string{}
	if !opts.IncludeDeleted {
		conds = append(conds, `"deleted_at" is null`)
	}
	if where != "" {
		conds = append(conds, where)
	}

	sb := &strings.Builder{}
	fmt.Fprintf(sb, "select %s from %s", readList(def), tbl.SQL())
	if len(conds) > 0 {
		fmt.Fprintf(sb, " where %s", strings.Join(conds, " and "))
	}

	if keys := opts.orderKeys(); len(keys) > 0 {
		exprs := make([]string, 0, len(keys))
		for _, k := range keys {
			col, _, err := resolveColumn(def, k.Field)
			if err != nil {
				return "", nil, err
			}
			dir := "asc"
			if k.Desc {
				dir = "desc"
			}
			exprs = append(exprs, col.SQL()+" "+dir)
		}
		fmt.Fprintf(sb, " order by %s", strings.Join(exprs, ", "))
	} else {
		sb.WriteString(` order by "created_at" desc`)
	}

	limit := opts.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	fmt.Fprintf(sb, " limit $%d offset $%d", next, next+1)
	args = append(args, limit, max(opts.Offset, 0))

	return sb.String(), args, nil
}

// Count — количество строк под теми же фильтрами (для total).
func Count(def *schema.TableDefinition, filters []Filter, includeDeleted bool) (string, []any, error) {
	tbl, err := def.PhysicalName()
	if err != nil {
		return "", nil, err
	}
	where, args, _, err := compileFilters(def, filters, 1)
	if err != nil {
		return "", nil, err
	}
	conds := []string{}
	if !includeDeleted {
		conds = append(conds, `"deleted_at" is null`)
	}
	if where != "" {
		conds = append(conds, where)
	}
	sql := fmt.Sprintf("select count(*) from %s", tbl.SQL())
	if len(conds) > 0 {
		sql += " where " + strings.Join(conds, " and ")
	}
	return sql, args, nil
}

// SelectByID — точечная выборка живой строки.
func SelectByID(def *schema.TableDefinition, id string) (string, []any, error) {
	tbl, err := def.PhysicalName()
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf(`select %s from %s where "id" = $1::uuid and "deleted_at" is null`,
		readList(def), tbl.SQL())
	return sql, []any{id}, nil
}

// Insert — вставка с RETURNING полной строки (геометрия назад в GeoJSON).
// Неизвестные ключи в data отклоняются.
func Insert(def *schema.TableDefinition, data map[string]any) (string, []any, error) {
	tbl, err := def.PhysicalName()
	if err != nil {
		return "", nil, err
	}

	var cols, exprs []string
	var args []any
	next := 1
	// порядок — по определению, чтобы текст был детерминированным
	for i := range def.Fields {
		f := &def.Fields[i]
		v, ok := data[f.Name]
		if !ok {
			continue
		}
		bound, err := bindValue(f, v)
		if err != nil {
			return "", nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		id, _ := schema.NewIdent(f.Name)
		cols = append(cols, id.SQL())
		if bound == nil {
			exprs = append(exprs, "null")
		} else {
			exprs = append(exprs, writeExpr(f, fmt.Sprintf("$%d", next)))
			args = append(args, bound)
			next++
		}
	}
	for k := range data {
		if _, ok := def.Field(k); !ok {
			return "", nil, fmt.Errorf("unknown field %q", k)
		}
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("no known fields supplied")
	}

	sql := fmt.Sprintf("insert into %s (%s)\nvalues (%s)\nreturning %s",
		tbl.SQL(), strings.Join(cols, ", "), strings.Join(exprs, ", "), readList(def))
	return sql, args, nil
}

// Update — частичное обновление живой строки, RETURNING новой версии.
func Update(def *schema.TableDefinition, id string, data map[string]any) (string, []any, error) {
	tbl, err := def.PhysicalName()
	if err != nil {
		return "", nil, err
	}

	var sets []string
	var args []any
	next := 1
	for i := range def.Fields {
		f := &def.Fields[i]
		v, ok := data[f.Name]
		if !ok {
			continue
		}
		colID, _ := schema.NewIdent(f.Name)
		if v == nil {
			sets = append(sets, colID.SQL()+" = null")
			continue
		}
		bound, err := bindValue(f, v)
		if err != nil {
			return "", nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		sets = append(sets, fmt.Sprintf("%s = %s", colID.SQL(), writeExpr(f, fmt.Sprintf("$%d", next))))
		args = append(args, bound)
		next++
	}
	for k := range data {
		if _, ok := def.Field(k); !ok {
			return "", nil, fmt.Errorf("unknown field %q", k)
		}
	}
	if len(sets) == 0 {
		return "", nil, fmt.Errorf("no known fields supplied")
	}
	sets = append(sets, `"updated_at" = now()`)

	sql := fmt.Sprintf(`update %s set %s where "id" = $%d::uuid and "deleted_at" is null returning %s`,
		tbl.SQL(), strings.Join(sets, ", "), next, readList(def))
	args = append(args, id)
	return sql, args, nil
}

// SoftDelete помечает строку удалённой. Повторное удаление — no-op (0 строк).
func SoftDelete(def *schema.TableDefinition, id string) (string, []any, error) {
	tbl, err := def.PhysicalName()
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf(`update %s set "deleted_at" = now(), "updated_at" = now() where "id" = $1::uuid and "deleted_at" is null`,
		tbl.SQL())
	return sql, []any{id}, nil
}

// HardDelete — физическое удаление, только для обслуживания.
func HardDelete(def *schema.TableDefinition, id string) (string, []any, error) {
	tbl, err := def.PhysicalName()
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf(`delete from %s where "id" = $1::uuid`, tbl.SQL()), []any{id}, nil
}

// Stats — агрегат по таблице одним запросом.
func Stats(def *schema.TableDefinition) (string, error) {
	tbl, err := def.PhysicalName()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`select
  count(*) as total,
  count(*) filter (where "deleted_at" is null) as active,
  count(*) filter (where "deleted_at" is not null) as deleted,
  max("updated_at") as last_updated
from %s`, tbl.SQL()), nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
