package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"mapform/internal/geo"
	"mapform/internal/schema"
)

// Компилятор параметризованных запросов к именованной динамической таблице.
// Контракт: каждый билдер возвращает текст и упорядоченный список параметров;
// значения НИКОГДА не попадают в текст, идентификаторы — только через schema.Ident.

// Filter — одно условие {field, operator, value}.
type Filter struct {
	Field string `json:"field"`
	Op    string `json:"operator"`
	Value any    `json:"value"`
}

// Операторы фильтра.
const (
	OpEq        = "eq"
	OpNeq       = "neq"
	OpGt        = "gt"
	OpGte       = "gte"
	OpLt        = "lt"
	OpLte       = "lte"
	OpContains  = "contains"
	OpBetween   = "between"
	OpIn        = "in"
	OpIsNull    = "is_null"
	OpNotNull   = "not_null"
	OpGeoWithin = "geo_within"
)

// OrderKey — один ключ сортировки.
type OrderKey struct {
	Field string
	Desc  bool
}

// Options для выборки. Order имеет приоритет над парой OrderBy/OrderDesc.
type Options struct {
	Filters        []Filter
	Order          []OrderKey
	OrderBy        string
	OrderDesc      bool
	Limit          int
	Offset         int
	IncludeDeleted bool // true только для административных сценариев
}

// orderKeys нормализует сортировку к списку ключей.
func (o Options) orderKeys() []OrderKey {
	if len(o.Order) > 0 {
		return o.Order
	}
	if o.OrderBy != "" {
		return []OrderKey{{Field: o.OrderBy, Desc: o.OrderDesc}}
	}
	return nil
}

// castSuffix — приведение типа у плейсхолдера, чтобы строковый ввод клиента
// корректно коэрсился на стороне БД.
func castSuffix(t schema.DataType) string {
	switch t {
	case schema.TypeUUID:
		return "::uuid"
	case schema.TypeDate:
		return "::date"
	case schema.TypeTimestamp:
		return "::timestamp"
	case schema.TypeTimestamptz:
		return "::timestamptz"
	case schema.TypeJSON, schema.TypeSensor:
		return "::jsonb"
	case schema.TypeTags:
		return "::text[]"
	case schema.TypeInteger:
		return "::integer"
	case schema.TypeBigint:
		return "::bigint"
	case schema.TypeDecimal:
		return "::numeric"
	case schema.TypeFloat:
		return "::float8"
	case schema.TypeBoolean:
		return "::boolean"
	default:
		return ""
	}
}

// bindValue готовит значение под плейсхолдер: геометрия валидируется и уходит
// GeoJSON-байтами, json/sensor маршалится, tags превращаются в массив-литерал.
func bindValue(f *schema.FieldDefinition, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case f.DataType.IsGeometry():
		raw, err := geo.ValidateAndMarshal(v, f.DataType.GeoJSONType())
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	case f.DataType == schema.TypeJSON || f.DataType == schema.TypeSensor:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	case f.DataType == schema.TypeTags:
		return tagsLiteral(v)
	default:
		return v, nil
	}
}

// tagsLiteral собирает текстовый литерал массива: {"a","b"}.
func tagsLiteral(v any) (string, error) {
	var items []string
	switch arr := v.(type) {
	case []any:
		for _, it := range arr {
			s, ok := it.(string)
			if !ok {
				return "", fmt.Errorf("tag values must be strings")
			}
			items = append(items, s)
		}
	case []string:
		items = arr
	default:
		return "", fmt.Errorf("tags must be an array of strings")
	}
	quoted := make([]string, len(items))
	for i, s := range items {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		quoted[i] = `"` + s + `"`
	}
	return "{" + strings.Join(quoted, ",") + "}", nil
}

// writeExpr — выражение под значением при записи: геометрия оборачивается в
// ST_GeomFromGeoJSON с установкой SRID, остальное получает cast-суффикс.
func writeExpr(f *schema.FieldDefinition, placeholder string) string {
	if f.DataType.IsGeometry() {
		srid := 4326
		if f.Geometry != nil && f.Geometry.SRID > 0 {
			srid = f.Geometry.SRID
		}
		return fmt.Sprintf("ST_SetSRID(ST_GeomFromGeoJSON(%s), %d)", placeholder, srid)
	}
	return placeholder + castSuffix(f.DataType)
}

// readExpr — выражение колонки при чтении: геометрия конвертируется в GeoJSON,
// tags — в jsonb, чтобы единообразно разбирать результат.
func readExpr(f *schema.FieldDefinition) string {
	id, _ := schema.NewIdent(f.Name)
	switch {
	case f.DataType.IsGeometry():
		return fmt.Sprintf("ST_AsGeoJSON(%s) as %s", id.SQL(), id.SQL())
	case f.DataType == schema.TypeTags:
		return fmt.Sprintf("to_jsonb(%s) as %s", id.SQL(), id.SQL())
	case f.DataType == schema.TypeUUID:
		// наружу uuid ходит строкой
		return fmt.Sprintf("%s::text as %s", id.SQL(), id.SQL())
	case f.DataType == schema.TypeDecimal:
		return fmt.Sprintf("%s::float8 as %s", id.SQL(), id.SQL())
	default:
		return id.SQL()
	}
}

// readList — список выражений SELECT: id, поля по порядку, служебные метки.
func readList(def *schema.TableDefinition) string {
	cols := []string{`"id"::text as "id"`}
	for i := range def.Fields {
		cols = append(cols, readExpr(&def.Fields[i]))
	}
	cols = append(cols, `"created_at"`, `"updated_at"`, `"deleted_at"`)
	return strings.Join(cols, ", ")
}

// resolveColumn находит колонку по имени фильтра/сортировки. Системные колонки
// разрешены, всё остальное обязано существовать в определении.
func resolveColumn(def *schema.TableDefinition, name string) (schema.Ident, *schema.FieldDefinition, error) {
	if schema.IsSystemColumn(name) {
		id, err := schema.NewIdent(strings.ToLower(name))
		return id, nil, err
	}
	f, ok := def.Field(name)
	if !ok {
		return "", nil, fmt.Errorf("unknown field %q", name)
	}
	id, err := schema.NewIdent(f.Name)
	return id, f, err
}
