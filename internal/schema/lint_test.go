package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapform/internal/apperr"
)

func fptr(v float64) *float64 { return &v }

func validDef() *TableDefinition {
	return &TableDefinition{
		Name: "stations",
		Fields: []FieldDefinition{
			{Name: "title", DataType: TypeText, IsRequired: true},
			{Name: "location", DataType: TypePoint,
				Geometry: &GeometryAttrs{GeometryType: "Point", SRID: 4326}},
			{Name: "code", DataType: TypeVarchar, MaxLength: 32},
		},
	}
}

func TestLintValidDefinition(t *testing.T) {
	assert.Empty(t, Lint(validDef()))
}

func TestLintTableName(t *testing.T) {
	def := validDef()
	def.Name = "Bad Name"
	issues := Lint(def)
	require.NotEmpty(t, issues)
	assert.Equal(t, apperr.CodeInvalidIdent, issues[0].Code)
}

func TestLintNoFields(t *testing.T) {
	def := &TableDefinition{Name: "empty"}
	issues := Lint(def)
	require.Len(t, issues, 1)
	assert.Equal(t, "fields", issues[0].Field)
}

func TestLintDuplicateAndSystemFields(t *testing.T) {
	def := validDef()
	def.Fields = append(def.Fields,
		FieldDefinition{Name: "title", DataType: TypeText},
		FieldDefinition{Name: "created_at", DataType: TypeTimestamptz},
	)
	issues := Lint(def)
	require.Len(t, issues, 2)
	assert.Equal(t, "title", issues[0].Field)
	assert.Equal(t, "created_at", issues[1].Field)
}

func TestLintUnknownDataType(t *testing.T) {
	def := validDef()
	def.Fields[0].DataType = "blob"
	issues := Lint(def)
	require.Len(t, issues, 1)
	assert.Equal(t, apperr.CodeSchemaInvalid, issues[0].Code)
}

func TestLintGeometryAttrs(t *testing.T) {
	// без geometryType
	def := validDef()
	def.Fields[1].Geometry = nil
	assert.NotEmpty(t, Lint(def))

	// тип атрибута не совпадает с dataType
	def = validDef()
	def.Fields[1].Geometry.GeometryType = "Polygon"
	assert.NotEmpty(t, Lint(def))

	// нулевой SRID
	def = validDef()
	def.Fields[1].Geometry.SRID = 0
	assert.NotEmpty(t, Lint(def))

	// geometry-атрибуты на негеометрическом поле
	def = validDef()
	def.Fields[0].Geometry = &GeometryAttrs{GeometryType: "Point", SRID: 4326}
	assert.NotEmpty(t, Lint(def))
}

func TestLintVarcharNeedsMaxLength(t *testing.T) {
	def := validDef()
	def.Fields[2].MaxLength = 0
	assert.NotEmpty(t, Lint(def))
}

func TestLintSensorBounds(t *testing.T) {
	def := validDef()
	def.Fields = append(def.Fields, FieldDefinition{
		Name: "temp", DataType: TypeSensor,
		Sensor: &SensorAttrs{MinValue: fptr(100), MaxValue: fptr(-10)},
	})
	assert.NotEmpty(t, Lint(def))
}

func TestLintValidationRules(t *testing.T) {
	def := validDef()
	def.Fields[0].Validation = &Validation{Min: fptr(10), Max: fptr(1)}
	assert.NotEmpty(t, Lint(def))

	def = validDef()
	def.Fields[0].Validation = &Validation{Pattern: "[unclosed"}
	assert.NotEmpty(t, Lint(def))
}

func TestLintRelationRules(t *testing.T) {
	def := validDef()
	def.Fields = append(def.Fields, FieldDefinition{
		Name: "zone_id", DataType: TypeUUID,
		Relation: &RelationAttrs{Table: "zones", OnDelete: "cascade"},
	})
	assert.NotEmpty(t, Lint(def))

	def = validDef()
	def.Fields = append(def.Fields, FieldDefinition{
		Name: "zone_id", DataType: TypeUUID, IsRequired: true,
		Relation: &RelationAttrs{Table: "zones", OnDelete: "set_null"},
	})
	assert.NotEmpty(t, Lint(def))

	def = validDef()
	def.Fields = append(def.Fields, FieldDefinition{
		Name: "zone_id", DataType: TypeUUID,
		Relation: &RelationAttrs{Table: ""},
	})
	assert.NotEmpty(t, Lint(def))
}

func TestPhysicalNames(t *testing.T) {
	def := validDef()
	tbl, err := def.PhysicalName()
	require.NoError(t, err)
	assert.Equal(t, "custom_stations", tbl.String())

	hist, err := def.HistoryName()
	require.NoError(t, err)
	assert.Equal(t, "custom_stations_history", hist.String())
}
