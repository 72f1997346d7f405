package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Операторы условий.
const (
	condEquals      = "equals"
	condNotEquals   = "not_equals"
	condContains    = "contains"
	condGreaterThan = "greater_than"
	condLessThan    = "less_than"
	condGeoWithin   = "geo_within"
)

// geofenceColumn — геометрическая колонка целевой таблицы в geo_within.
const geofenceColumn = "boundary"

type clause struct {
	Field    string
	Operator string
	Value    any
}

// evalCondition вычисляет condition-узел над контекстом прогона.
// Data: либо один {field, operator, value}, либо {logic: AND|OR,
// clauses: [...]}.
func (e *Engine) evalCondition(ctx context.Context, n *Node, bag map[string]any) (bool, error) {
	clauses, logic, err := parseClauses(n.Data)
	if err != nil {
		return false, err
	}
	if len(clauses) == 0 {
		return false, fmt.Errorf("condition node %q has no clauses", n.ID)
	}

	for _, c := range clauses {
		ok, err := e.evalClause(ctx, c, bag)
		if err != nil {
			return false, err
		}
		if logic == "OR" && ok {
			return true, nil
		}
		if logic == "AND" && !ok {
			return false, nil
		}
	}
	return logic == "AND", nil
}

func parseClauses(data map[string]any) ([]clause, string, error) {
	logic := "AND"
	if l, ok := data["logic"].(string); ok {
		switch strings.ToUpper(l) {
		case "AND", "OR":
			logic = strings.ToUpper(l)
		default:
			return nil, "", fmt.Errorf("unknown condition logic %q", l)
		}
	}

	raw, ok := data["clauses"].([]any)
	if !ok {
		// одиночное условие прямо в data
		c, err := parseClause(data)
		if err != nil {
			return nil, "", err
		}
		return []clause{c}, logic, nil
	}

	out := make([]clause, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("condition clause must be an object")
		}
		c, err := parseClause(m)
		if err != nil {
			return nil, "", err
		}
		out = append(out, c)
	}
	return out, logic, nil
}

func parseClause(m map[string]any) (clause, error) {
	field, _ := m["field"].(string)
	op, _ := m["operator"].(string)
	if field == "" || op == "" {
		return clause{}, fmt.Errorf("condition clause requires field and operator")
	}
	return clause{Field: field, Operator: op, Value: m["value"]}, nil
}

func (e *Engine) evalClause(ctx context.Context, c clause, bag map[string]any) (bool, error) {
	actual := lookupField(bag, c.Field)

	switch c.Operator {
	case condEquals:
		return compareValues(actual, c.Value) == 0, nil
	case condNotEquals:
		return compareValues(actual, c.Value) != 0, nil
	case condContains:
		return strings.Contains(
			strings.ToLower(valueToString(actual)),
			strings.ToLower(valueToString(c.Value))), nil
	case condGreaterThan:
		a, okA := toNumber(actual)
		b, okB := toNumber(c.Value)
		if !okA || !okB {
			return false, nil
		}
		return a > b, nil
	case condLessThan:
		a, okA := toNumber(actual)
		b, okB := toNumber(c.Value)
		if !okA || !okB {
			return false, nil
		}
		return a < b, nil
	case condGeoWithin:
		return e.evalGeoWithin(ctx, c, actual)
	default:
		return false, fmt.Errorf("unknown condition operator %q", c.Operator)
	}
}

// evalGeoWithin: value называет целевую таблицу границ, actual — геометрия
// из записи-триггера. Истина, если геометрия пересекает хотя бы одну живую
// границу целевой таблицы.
func (e *Engine) evalGeoWithin(ctx context.Context, c clause, actual any) (bool, error) {
	table, _ := c.Value.(string)
	column := geofenceColumn
	if m, ok := c.Value.(map[string]any); ok {
		table, _ = m["table"].(string)
		if col, ok := m["column"].(string); ok && col != "" {
			column = col
		}
	}
	if table == "" {
		return false, fmt.Errorf("geo_within requires a target table")
	}
	if actual == nil {
		return false, nil
	}

	rows, err := e.records.SpatialQuery(ctx, table, column, "intersects",
		map[string]any{"geometry": actual})
	if err != nil {
		return false, fmt.Errorf("geo_within against %s: %w", table, err)
	}
	return len(rows) > 0, nil
}

// lookupField ищет значение в контексте: сначала по точному пути, затем под
// "trigger." — поля записи-триггера адресуются коротким именем.
func lookupField(bag map[string]any, field string) any {
	if v, ok := lookupPath(bag, field); ok {
		return v
	}
	if v, ok := lookupPath(bag, "trigger."+field); ok {
		return v
	}
	return nil
}

// compareValues — числовое сравнение, если обе стороны числовые, иначе
// строковое. 0 — равны.
func compareValues(a, b any) int {
	na, okA := toNumber(a)
	nb, okB := toNumber(b)
	if okA && okB {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(valueToString(a), valueToString(b))
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(t, 64)
		return n, err == nil
	}
	return 0, false
}
