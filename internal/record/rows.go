package record

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"mapform/internal/geo"
	"mapform/internal/schema"
)

// rowsToMaps сканирует результат с динамическим набором колонок и декодирует
// значения по типам из определения: геометрия — из GeoJSON-текста в объект,
// jsonb — в структуру, байты — в строки.
func rowsToMaps(rows *sql.Rows, def *schema.TableDefinition) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, name := range cols {
			v, err := decodeValue(def, name, vals[i])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}
			rec[name] = v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decodeValue(def *schema.TableDefinition, column string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	f, known := def.Field(column)
	if !known {
		// системные колонки: id — строка, метки времени — time.Time
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return v, nil
	}

	switch {
	case f.DataType.IsGeometry():
		raw, ok := asBytes(v)
		if !ok {
			return nil, fmt.Errorf("unexpected geometry representation %T", v)
		}
		return geo.DecodeDB(raw)

	case f.DataType == schema.TypeJSON || f.DataType == schema.TypeSensor || f.DataType == schema.TypeTags:
		raw, ok := asBytes(v)
		if !ok {
			return nil, fmt.Errorf("unexpected json representation %T", v)
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil

	default:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return v, nil
	}
}

func asBytes(v any) ([]byte, bool) {
	switch t := v.(type) {
	case []byte:
		return t, true
	case string:
		return []byte(t), true
	}
	return nil, false
}
