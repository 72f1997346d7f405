package query

import (
	"fmt"

	"mapform/internal/geo"
	"mapform/internal/schema"
)

// Типы пространственных запросов.
const (
	SpatialWithin     = "within"
	SpatialDistance   = "distance"
	SpatialIntersects = "intersects"
)

// Spatial компилирует пространственную выборку по геометрической колонке.
// within — попадание в полигон; distance — близость к точке (метры, через
// geography); intersects — булево пересечение. Везде исключаются soft-deleted.
func Spatial(def *schema.TableDefinition, geomColumn, queryType string, params map[string]any) (string, []any, error) {
	tbl, err := def.PhysicalName()
	if err != nil {
		return "", nil, err
	}
	col, f, err := resolveColumn(def, geomColumn)
	if err != nil {
		return "", nil, err
	}
	if f == nil || !f.DataType.IsGeometry() {
		return "", nil, fmt.Errorf("column %q is not a geometry column", geomColumn)
	}
	srid := 4326
	if f.Geometry != nil && f.Geometry.SRID > 0 {
		srid = f.Geometry.SRID
	}

	geomParam := func(key, wantType string) (string, error) {
		v, ok := params[key]
		if !ok {
			return "", fmt.Errorf("%s query requires %q parameter", queryType, key)
		}
		raw, err := geo.ValidateAndMarshal(v, wantType)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	var cond string
	var args []any
	switch queryType {
	case SpatialWithin:
		g, err := geomParam("polygon", "Polygon")
		if err != nil {
			return "", nil, err
		}
		cond = fmt.Sprintf("ST_Within(%s, ST_SetSRID(ST_GeomFromGeoJSON($1), %d))", col.SQL(), srid)
		args = append(args, g)

	case SpatialDistance:
		g, err := geomParam("point", "Point")
		if err != nil {
			return "", nil, err
		}
		radius, ok := toFloat(params["radius"])
		if !ok || radius <= 0 {
			return "", nil, fmt.Errorf("distance query requires a positive radius in meters")
		}
		cond = fmt.Sprintf("ST_DWithin(%s::geography, ST_SetSRID(ST_GeomFromGeoJSON($1), %d)::geography, $2)", col.SQL(), srid)
		args = append(args, g, radius)

	case SpatialIntersects:
		g, err := geomParam("geometry", "")
		if err != nil {
			return "", nil, err
		}
		cond = fmt.Sprintf("ST_Intersects(%s, ST_SetSRID(ST_GeomFromGeoJSON($1), %d))", col.SQL(), srid)
		args = append(args, g)

	default:
		return "", nil, fmt.Errorf("unknown spatial query type %q", queryType)
	}

	sql := fmt.Sprintf(`select %s from %s where "deleted_at" is null and %s`,
		readList(def), tbl.SQL(), cond)
	return sql, args, nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}
