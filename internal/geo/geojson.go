package geo

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// Пакет принимает геометрию от клиента как произвольный JSON (map из gin),
// проверяет форму и возвращает каноничные GeoJSON-байты, которые уходят
// bound-параметром в ST_GeomFromGeoJSON. Обратно из БД приходит текст
// ST_AsGeoJSON — его разбираем через orb и отдаём наружу объектом.

// ValidateAndMarshal проверяет клиентскую геометрию на соответствие ожидаемому
// типу и структурную корректность. Ошибки называют конкретное нарушение.
func ValidateAndMarshal(value any, wantType string) ([]byte, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("geometry must be a GeoJSON object")
	}
	gotType, _ := obj["type"].(string)
	if gotType == "" {
		return nil, fmt.Errorf("geometry object has no type")
	}
	if wantType != "" && gotType != wantType {
		return nil, fmt.Errorf("geometry type %q does not match column type %q", gotType, wantType)
	}

	coords, ok := obj["coordinates"]
	if !ok {
		return nil, fmt.Errorf("geometry object has no coordinates")
	}
	if err := checkShape(gotType, coords); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	// контрольный разбор через orb: то, что мы не поймали формой, поймает парсер
	if _, err := geojson.UnmarshalGeometry(raw); err != nil {
		return nil, fmt.Errorf("invalid GeoJSON geometry: %w", err)
	}
	return raw, nil
}

func checkShape(typ string, coords any) error {
	switch typ {
	case "Point":
		return checkPosition(coords)
	case "LineString":
		return checkLine(coords)
	case "Polygon":
		return checkPolygon(coords)
	case "MultiPoint":
		arr, ok := coords.([]any)
		if !ok || len(arr) == 0 {
			return fmt.Errorf("MultiPoint must contain at least one point")
		}
		for i, p := range arr {
			if err := checkPosition(p); err != nil {
				return fmt.Errorf("MultiPoint point %d: %w", i, err)
			}
		}
		return nil
	case "MultiPolygon":
		arr, ok := coords.([]any)
		if !ok || len(arr) == 0 {
			return fmt.Errorf("MultiPolygon must contain at least one polygon")
		}
		for i, p := range arr {
			if err := checkPolygon(p); err != nil {
				return fmt.Errorf("MultiPolygon polygon %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported geometry type %q", typ)
	}
}

// checkPosition: ровно пара числовых координат.
func checkPosition(v any) error {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return fmt.Errorf("position must be a pair of coordinates")
	}
	for _, c := range arr {
		if _, ok := c.(float64); !ok {
			if _, ok := c.(int); !ok {
				return fmt.Errorf("coordinate must be a number")
			}
		}
	}
	return nil
}

func checkLine(v any) error {
	arr, ok := v.([]any)
	if !ok || len(arr) < 2 {
		return fmt.Errorf("LineString must contain at least 2 points")
	}
	for i, p := range arr {
		if err := checkPosition(p); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}

// checkPolygon: каждое кольцо замкнуто (первая точка равна последней) и содержит
// минимум 4 позиции.
func checkPolygon(v any) error {
	rings, ok := v.([]any)
	if !ok || len(rings) == 0 {
		return fmt.Errorf("Polygon must contain at least one ring")
	}
	for ri, r := range rings {
		ring, ok := r.([]any)
		if !ok || len(ring) < 4 {
			return fmt.Errorf("ring %d must contain at least 4 positions", ri)
		}
		for pi, p := range ring {
			if err := checkPosition(p); err != nil {
				return fmt.Errorf("ring %d point %d: %w", ri, pi, err)
			}
		}
		first, _ := json.Marshal(ring[0])
		last, _ := json.Marshal(ring[len(ring)-1])
		if string(first) != string(last) {
			return fmt.Errorf("ring %d is not closed (first point must equal last)", ri)
		}
	}
	return nil
}

// DecodeDB разбирает текст ST_AsGeoJSON и возвращает GeoJSON-объект для ответа API.
func DecodeDB(raw []byte) (map[string]any, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("decode geometry from db: %w", err)
	}
	b, err := g.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
