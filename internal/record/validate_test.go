package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapform/internal/apperr"
	"mapform/internal/reference"
	"mapform/internal/schema"
)

func fptr(v float64) *float64 { return &v }

func sensorsDef() *schema.TableDefinition {
	return &schema.TableDefinition{
		ID:   "33333333-3333-3333-3333-333333333333",
		Name: "sensors",
		Fields: []schema.FieldDefinition{
			{Name: "title", DataType: schema.TypeText, IsRequired: true},
			{Name: "status", DataType: schema.TypeText,
				Validation: &schema.Validation{OptionsCatalog: "sensor_status"}},
			{Name: "priority", DataType: schema.TypeInteger,
				Validation: &schema.Validation{Min: fptr(1), Max: fptr(5)}},
			{Name: "serial", DataType: schema.TypeText,
				Validation: &schema.Validation{Pattern: `^SN-\d{4}$`}},
			{Name: "reading", DataType: schema.TypeSensor,
				Sensor: &schema.SensorAttrs{MinValue: fptr(-50), MaxValue: fptr(50), Unit: "C"}},
		},
	}
}

func statusCatalog() map[string]reference.Directory {
	return map[string]reference.Directory{
		"sensor_status": {Name: "sensor_status", Items: []reference.Item{
			{Code: "active"}, {Code: "offline"},
		}},
	}
}

func TestValidateInsertRequired(t *testing.T) {
	errs := validateInsert(sensorsDef(), map[string]any{}, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, apperr.CodeRequired, errs[0].Code)
	assert.Equal(t, "title", errs[0].Field)

	// явный null — тоже нарушение required
	errs = validateInsert(sensorsDef(), map[string]any{"title": nil}, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, apperr.CodeRequired, errs[0].Code)
}

func TestValidateInsertUnknownField(t *testing.T) {
	errs := validateInsert(sensorsDef(), map[string]any{"title": "a", "ghost": 1}, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, apperr.CodeUnknownField, errs[0].Code)
}

func TestValidateValuesRange(t *testing.T) {
	errs := validateValues(sensorsDef(), map[string]any{"priority": 9}, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, "priority", errs[0].Field)

	errs = validateValues(sensorsDef(), map[string]any{"priority": 3}, nil)
	assert.Empty(t, errs)
}

func TestValidateValuesPattern(t *testing.T) {
	errs := validateValues(sensorsDef(), map[string]any{"serial": "bad"}, nil)
	require.Len(t, errs, 1)

	errs = validateValues(sensorsDef(), map[string]any{"serial": "SN-0042"}, nil)
	assert.Empty(t, errs)
}

func TestValidateValuesOptionsCatalog(t *testing.T) {
	errs := validateValues(sensorsDef(), map[string]any{"status": "burning"}, statusCatalog())
	require.Len(t, errs, 1)
	assert.Equal(t, apperr.CodeEnumInvalid, errs[0].Code)

	errs = validateValues(sensorsDef(), map[string]any{"status": "active"}, statusCatalog())
	assert.Empty(t, errs)

	// справочник не загружен — значение пропускается без проверки
	errs = validateValues(sensorsDef(), map[string]any{"status": "burning"}, nil)
	assert.Empty(t, errs)
}

func TestValidateValuesSensorBounds(t *testing.T) {
	errs := validateValues(sensorsDef(), map[string]any{
		"reading": map[string]any{"value": 120.0, "unit": "C"},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "above maximum")

	errs = validateValues(sensorsDef(), map[string]any{
		"reading": map[string]any{"value": -80.0},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "below minimum")

	errs = validateValues(sensorsDef(), map[string]any{
		"reading": map[string]any{"value": 21.5, "unit": "C"},
	}, nil)
	assert.Empty(t, errs)

	// не объект — type_mismatch
	errs = validateValues(sensorsDef(), map[string]any{"reading": 21.5}, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, apperr.CodeTypeMismatch, errs[0].Code)
}

func TestDiffFields(t *testing.T) {
	previous := map[string]any{"title": "old", "priority": 3, "serial": "SN-0001"}
	data := map[string]any{"title": "new", "priority": 3, "serial": "SN-0002"}

	diff := diffFields(previous, data)
	require.Len(t, diff, 2)
	// порядок стабильный: по имени поля
	assert.Equal(t, "serial: SN-0001 => SN-0002", diff[0])
	assert.Equal(t, "title: old => new", diff[1])
}

func TestDiffFieldsNoChanges(t *testing.T) {
	data := map[string]any{"title": "same"}
	assert.Empty(t, diffFields(map[string]any{"title": "same"}, data))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", stringify(nil))
	assert.Equal(t, "abc", stringify("abc"))
	assert.Equal(t, "5", stringify(5))
	assert.Equal(t, `{"a":1}`, stringify(map[string]any{"a": 1}))
}
