package query

import (
	"fmt"
	"strings"

	"mapform/internal/geo"
	"mapform/internal/schema"
)

// compileFilters превращает список условий в WHERE-фрагмент. next — номер
// следующего плейсхолдера; возвращается обновлённым, чтобы вызывающий мог
// продолжить нумерацию.
func compileFilters(def *schema.TableDefinition, filters []Filter, next int) (string, []any, int, error) {
	var conds []string
	var args []any

	for _, flt := range filters {
		col, f, err := resolveColumn(def, flt.Field)
		if err != nil {
			return "", nil, next, err
		}

		switch flt.Op {
		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
			op := map[string]string{
				OpEq: "=", OpNeq: "<>", OpGt: ">", OpGte: ">=", OpLt: "<", OpLte: "<=",
			}[flt.Op]
			v, expr, err := bindFilterValue(f, flt.Value, next)
			if err != nil {
				return "", nil, next, fmt.Errorf("filter %q: %w", flt.Field, err)
			}
			conds = append(conds, fmt.Sprintf("%s %s %s", col.SQL(), op, expr))
			args = append(args, v)
			next++

		case OpContains:
			s, ok := flt.Value.(string)
			if !ok {
				return "", nil, next, fmt.Errorf("filter %q: contains expects a string", flt.Field)
			}
			conds = append(conds, fmt.Sprintf("%s::text ilike $%d", col.SQL(), next))
			args = append(args, "%"+s+"%")
			next++

		case OpBetween:
			lo, hi, err := betweenBounds(flt.Value)
			if err != nil {
				return "", nil, next, fmt.Errorf("filter %q: %w", flt.Field, err)
			}
			cast := ""
			if f != nil {
				cast = castSuffix(f.DataType)
			}
			conds = append(conds, fmt.Sprintf("%s between $%d%s and $%d%s", col.SQL(), next, cast, next+1, cast))
			args = append(args, lo, hi)
			next += 2

		case OpIn:
			arr, ok := flt.Value.([]any)
			if !ok || len(arr) == 0 {
				return "", nil, next, fmt.Errorf("filter %q: in expects a non-empty array", flt.Field)
			}
			cast := ""
			if f != nil {
				cast = castSuffix(f.DataType)
			}
			ph := make([]string, len(arr))
			for i, v := range arr {
				ph[i] = fmt.Sprintf("$%d%s", next, cast)
				args = append(args, v)
				next++
			}
			conds = append(conds, fmt.Sprintf("%s in (%s)", col.SQL(), strings.Join(ph, ", ")))

		case OpIsNull:
			conds = append(conds, col.SQL()+" is null")

		case OpNotNull:
			conds = append(conds, col.SQL()+" is not null")

		case OpGeoWithin:
			if f == nil || !f.DataType.IsGeometry() {
				return "", nil, next, fmt.Errorf("filter %q: geo_within requires a geometry column", flt.Field)
			}
			frag, a, n2, err := compileGeoWithin(col, f, flt.Value, next)
			if err != nil {
				return "", nil, next, fmt.Errorf("filter %q: %w", flt.Field, err)
			}
			conds = append(conds, frag)
			args = append(args, a...)
			next = n2

		default:
			return "", nil, next, fmt.Errorf("filter %q: unknown operator %q", flt.Field, flt.Op)
		}
	}

	return strings.Join(conds, " and "), args, next, nil
}

// bindFilterValue — значение сравнения с cast-суффиксом (или геометрия).
func bindFilterValue(f *schema.FieldDefinition, v any, n int) (any, string, error) {
	if f == nil {
		// системная колонка: id::uuid, метки времени ::timestamptz
		return v, fmt.Sprintf("$%d", n), nil
	}
	bound, err := bindValue(f, v)
	if err != nil {
		return nil, "", err
	}
	return bound, writeExpr(f, fmt.Sprintf("$%d", n)), nil
}

func betweenBounds(v any) (any, any, error) {
	switch t := v.(type) {
	case []any:
		if len(t) != 2 {
			return nil, nil, fmt.Errorf("between expects [low, high]")
		}
		return t[0], t[1], nil
	case map[string]any:
		lo, okLo := t["from"]
		hi, okHi := t["to"]
		if !okLo || !okHi {
			return nil, nil, fmt.Errorf("between expects {from, to}")
		}
		return lo, hi, nil
	default:
		return nil, nil, fmt.Errorf("between expects [low, high]")
	}
}

// compileGeoWithin: либо литеральная геометрия, либо подзапрос к геометрии
// другой динамической таблицы — {"table": "...", "column": "..."}.
func compileGeoWithin(col schema.Ident, f *schema.FieldDefinition, value any, next int) (string, []any, int, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return "", nil, next, fmt.Errorf("geo_within expects a geometry or a {table, column} reference")
	}

	// ссылка на другую таблицу
	if _, isRef := obj["table"]; isRef {
		tblName, _ := obj["table"].(string)
		colName, _ := obj["column"].(string)
		if colName == "" {
			colName = "boundary"
		}
		tbl, err := schema.NewIdent("custom_" + tblName)
		if err != nil {
			return "", nil, next, fmt.Errorf("target table: %w", err)
		}
		target, err := schema.NewIdent(colName)
		if err != nil {
			return "", nil, next, fmt.Errorf("target column: %w", err)
		}
		frag := fmt.Sprintf(
			"exists (select 1 from %s _g where _g.\"deleted_at\" is null and ST_Intersects(%s, _g.%s))",
			tbl.SQL(), col.SQL(), target.SQL())
		return frag, nil, next, nil
	}

	// литеральная геометрия: тип может отличаться от типа колонки
	// (точка против полигона), поэтому проверяем только форму
	raw, err := geo.ValidateAndMarshal(value, "")
	if err != nil {
		return "", nil, next, err
	}
	bound := string(raw)
	srid := 4326
	if f.Geometry != nil && f.Geometry.SRID > 0 {
		srid = f.Geometry.SRID
	}
	frag := fmt.Sprintf("ST_Intersects(%s, ST_SetSRID(ST_GeomFromGeoJSON($%d), %d))", col.SQL(), next, srid)
	return frag, []any{bound}, next + 1, nil
}
