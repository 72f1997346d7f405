package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(x, y float64) map[string]any {
	return map[string]any{"type": "Point", "coordinates": []any{x, y}}
}

func TestValidateAndMarshalPoint(t *testing.T) {
	raw, err := ValidateAndMarshal(point(37.62, 55.75), "Point")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"Point"`)
}

func TestValidateAndMarshalTypeMismatch(t *testing.T) {
	_, err := ValidateAndMarshal(point(1, 2), "Polygon")
	assert.ErrorContains(t, err, "does not match")
}

func TestValidateAndMarshalAnyType(t *testing.T) {
	// пустой wantType — принимается любой корректный тип
	_, err := ValidateAndMarshal(point(1, 2), "")
	assert.NoError(t, err)
}

func TestValidateAndMarshalBadShapes(t *testing.T) {
	cases := []struct {
		name string
		geom any
	}{
		{"not an object", "POINT(1 2)"},
		{"no type", map[string]any{"coordinates": []any{1.0, 2.0}}},
		{"no coordinates", map[string]any{"type": "Point"}},
		{"point with 3 coords", map[string]any{
			"type": "Point", "coordinates": []any{1.0, 2.0, 3.0}}},
		{"point with string coord", map[string]any{
			"type": "Point", "coordinates": []any{"1", 2.0}}},
		{"linestring with one point", map[string]any{
			"type": "LineString", "coordinates": []any{[]any{1.0, 2.0}}}},
		{"unclosed polygon", map[string]any{
			"type": "Polygon",
			"coordinates": []any{[]any{
				[]any{0.0, 0.0}, []any{0.0, 1.0}, []any{1.0, 1.0}, []any{1.0, 0.0},
			}}}},
		{"polygon ring too short", map[string]any{
			"type": "Polygon",
			"coordinates": []any{[]any{
				[]any{0.0, 0.0}, []any{0.0, 1.0}, []any{0.0, 0.0},
			}}}},
		{"empty multipoint", map[string]any{
			"type": "MultiPoint", "coordinates": []any{}}},
		{"unsupported type", map[string]any{
			"type": "GeometryCollection", "coordinates": []any{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateAndMarshal(tc.geom, "")
			assert.Error(t, err)
		})
	}
}

func TestValidateAndMarshalPolygon(t *testing.T) {
	poly := map[string]any{
		"type": "Polygon",
		"coordinates": []any{[]any{
			[]any{0.0, 0.0}, []any{0.0, 1.0}, []any{1.0, 1.0}, []any{1.0, 0.0}, []any{0.0, 0.0},
		}},
	}
	raw, err := ValidateAndMarshal(poly, "Polygon")
	require.NoError(t, err)

	decoded, err := DecodeDB(raw)
	require.NoError(t, err)
	assert.Equal(t, "Polygon", decoded["type"])
}

func TestDecodeDB(t *testing.T) {
	decoded, err := DecodeDB([]byte(`{"type":"Point","coordinates":[37.62,55.75]}`))
	require.NoError(t, err)
	assert.Equal(t, "Point", decoded["type"])

	_, err = DecodeDB([]byte(`not json`))
	assert.Error(t, err)
}
