package schema

import (
	"strings"
	"time"
)

// DataType — закрытый набор типов полей. Атрибуты категорий (geometry, sensor,
// numeric) живут в своих структурах, а не россыпью опциональных полей.
type DataType string

const (
	TypeText        DataType = "text"
	TypeVarchar     DataType = "varchar"
	TypeInteger     DataType = "integer"
	TypeBigint      DataType = "bigint"
	TypeDecimal     DataType = "decimal"
	TypeFloat       DataType = "float"
	TypeBoolean     DataType = "boolean"
	TypeDate        DataType = "date"
	TypeTimestamp   DataType = "timestamp"
	TypeTimestamptz DataType = "timestamptz"
	TypeJSON        DataType = "json"
	TypeUUID        DataType = "uuid"
	TypeTags        DataType = "tags" // массив строковых меток

	TypePoint        DataType = "point"
	TypePolygon      DataType = "polygon"
	TypeLineString   DataType = "linestring"
	TypeMultiPoint   DataType = "multipoint"
	TypeMultiPolygon DataType = "multipolygon"

	TypeSensor DataType = "sensor" // IoT-показания в JSON с границами
)

var knownTypes = map[DataType]struct{}{
	TypeText: {}, TypeVarchar: {}, TypeInteger: {}, TypeBigint: {},
	TypeDecimal: {}, TypeFloat: {}, TypeBoolean: {}, TypeDate: {},
	TypeTimestamp: {}, TypeTimestamptz: {}, TypeJSON: {}, TypeUUID: {},
	TypeTags: {}, TypePoint: {}, TypePolygon: {}, TypeLineString: {},
	TypeMultiPoint: {}, TypeMultiPolygon: {}, TypeSensor: {},
}

func (t DataType) Known() bool {
	_, ok := knownTypes[DataType(strings.ToLower(string(t)))]
	return ok
}

func (t DataType) IsGeometry() bool {
	switch t {
	case TypePoint, TypePolygon, TypeLineString, TypeMultiPoint, TypeMultiPolygon:
		return true
	}
	return false
}

// GeoJSONType — каноническое имя типа геометрии для проверки payload'ов.
func (t DataType) GeoJSONType() string {
	switch t {
	case TypePoint:
		return "Point"
	case TypePolygon:
		return "Polygon"
	case TypeLineString:
		return "LineString"
	case TypeMultiPoint:
		return "MultiPoint"
	case TypeMultiPolygon:
		return "MultiPolygon"
	}
	return ""
}

type GeometryAttrs struct {
	GeometryType string `json:"geometryType" yaml:"geometryType"` // Point | Polygon | ...
	SRID         int    `json:"srid" yaml:"srid"`
}

type NumericAttrs struct {
	Precision int `json:"precision" yaml:"precision"`
	Scale     int `json:"scale" yaml:"scale"`
}

type SensorAttrs struct {
	MinValue *float64 `json:"minValue,omitempty" yaml:"minValue,omitempty"`
	MaxValue *float64 `json:"maxValue,omitempty" yaml:"maxValue,omitempty"`
	Unit     string   `json:"unit,omitempty" yaml:"unit,omitempty"`
}

type Validation struct {
	Min            *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max            *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern        string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Options        []string `json:"options,omitempty" yaml:"options,omitempty"`
	OptionsCatalog string   `json:"optionsCatalog,omitempty" yaml:"optionsCatalog,omitempty"` // имя справочника из reference
}

type RelationAttrs struct {
	Table    string `json:"table" yaml:"table"` // имя целевой таблицы (metadata name)
	Field    string `json:"field,omitempty" yaml:"field,omitempty"`
	OnDelete string `json:"onDelete,omitempty" yaml:"onDelete,omitempty"` // restrict | set_null
}

type FieldDefinition struct {
	Name        string   `json:"name" yaml:"name"`
	DisplayName string   `json:"displayName" yaml:"displayName"`
	DataType    DataType `json:"dataType" yaml:"dataType"`

	IsRequired   bool   `json:"isRequired" yaml:"isRequired"`
	IsUnique     bool   `json:"isUnique" yaml:"isUnique"`
	IsTimeseries bool   `json:"isTimeseries" yaml:"isTimeseries"`
	DefaultValue string `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`

	MaxLength int            `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Numeric   *NumericAttrs  `json:"numeric,omitempty" yaml:"numeric,omitempty"`
	Geometry  *GeometryAttrs `json:"geometry,omitempty" yaml:"geometry,omitempty"`
	Sensor    *SensorAttrs   `json:"sensor,omitempty" yaml:"sensor,omitempty"`

	Validation *Validation    `json:"validation,omitempty" yaml:"validation,omitempty"`
	Relation   *RelationAttrs `json:"relation,omitempty" yaml:"relation,omitempty"`

	Order int `json:"order" yaml:"order"`
}

type TableDefinition struct {
	ID          string            `json:"id"`
	Name        string            `json:"name" yaml:"name"` // физически-безопасное имя, неизменно после создания
	DisplayName string            `json:"displayName" yaml:"displayName"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Icon        string            `json:"icon,omitempty" yaml:"icon,omitempty"`
	Fields      []FieldDefinition `json:"fields" yaml:"fields"`
	CreatedBy   string            `json:"createdBy"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Системные колонки каждой физической таблицы.
const (
	ColID        = "id"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
	ColDeletedAt = "deleted_at"
)

func IsSystemColumn(name string) bool {
	switch strings.ToLower(name) {
	case ColID, ColCreatedAt, ColUpdatedAt, ColDeletedAt:
		return true
	}
	return false
}

const physicalPrefix = "custom_"

// PhysicalName — имя физической таблицы под данные.
func (d *TableDefinition) PhysicalName() (Ident, error) {
	return NewIdent(physicalPrefix + d.Name)
}

// HistoryName — имя парной append-only таблицы истории.
func (d *TableDefinition) HistoryName() (Ident, error) {
	return NewIdent(physicalPrefix + d.Name + "_history")
}

// Field ищет поле по имени (без учёта регистра).
func (d *TableDefinition) Field(name string) (*FieldDefinition, bool) {
	for i := range d.Fields {
		if strings.EqualFold(d.Fields[i].Name, name) {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// GeometryFields — поля-геометрии в порядке определения.
func (d *TableDefinition) GeometryFields() []FieldDefinition {
	var out []FieldDefinition
	for _, f := range d.Fields {
		if f.DataType.IsGeometry() {
			out = append(out, f)
		}
	}
	return out
}
