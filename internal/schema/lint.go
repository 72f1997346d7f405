package schema

import (
	"fmt"
	"regexp"
	"strings"

	"mapform/internal/apperr"
)

// Lint проверяет определение таблицы до того, как по нему будет сгенерирован DDL.
// Возвращает все найденные проблемы разом, а не первую попавшуюся.
func Lint(def *TableDefinition) []apperr.FieldError {
	var issues []apperr.FieldError

	if _, err := NewIdent(def.Name); err != nil {
		issues = append(issues, apperr.Ferr(apperr.CodeInvalidIdent, "name", err.Error()))
	}
	if len(def.Fields) == 0 {
		issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, "fields", "table must declare at least one field"))
	}

	seen := map[string]struct{}{}
	for _, f := range def.Fields {
		nameLower := strings.ToLower(f.Name)

		if _, err := NewIdent(f.Name); err != nil {
			issues = append(issues, apperr.Ferr(apperr.CodeInvalidIdent, f.Name, err.Error()))
			continue
		}
		if IsSystemColumn(nameLower) {
			issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name, "field duplicates a system column"))
			continue
		}
		if _, dup := seen[nameLower]; dup {
			issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name, "duplicate field name"))
			continue
		}
		seen[nameLower] = struct{}{}

		if !f.DataType.Known() {
			issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
				fmt.Sprintf("unknown dataType %q", f.DataType)))
			continue
		}

		issues = append(issues, lintField(&f)...)
	}

	return issues
}

func lintField(f *FieldDefinition) []apperr.FieldError {
	var issues []apperr.FieldError

	// геометрия: обязателен geometryType и валидный SRID
	if f.DataType.IsGeometry() {
		if f.Geometry == nil || strings.TrimSpace(f.Geometry.GeometryType) == "" {
			issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
				"geometry field must declare geometryType"))
		} else if !strings.EqualFold(f.Geometry.GeometryType, f.DataType.GeoJSONType()) {
			issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
				fmt.Sprintf("geometryType %q does not match dataType %q", f.Geometry.GeometryType, f.DataType)))
		}
		if f.Geometry != nil && f.Geometry.SRID <= 0 {
			issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
				"geometry field must declare a valid srid"))
		}
	} else if f.Geometry != nil {
		issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
			"geometry attributes are only valid on geometry fields"))
	}

	// sensor: minValue < maxValue, если заданы оба
	if f.DataType == TypeSensor {
		if f.Sensor != nil && f.Sensor.MinValue != nil && f.Sensor.MaxValue != nil &&
			*f.Sensor.MinValue >= *f.Sensor.MaxValue {
			issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
				"sensor minValue must be less than maxValue"))
		}
	} else if f.Sensor != nil {
		issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
			"sensor attributes are only valid on sensor fields"))
	}

	if f.DataType == TypeVarchar && f.MaxLength <= 0 {
		issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
			"varchar field must declare maxLength"))
	}
	if f.DataType == TypeDecimal && f.Numeric != nil && f.Numeric.Precision <= 0 {
		issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
			"decimal precision must be positive"))
	}

	if f.Validation != nil {
		if f.Validation.Min != nil && f.Validation.Max != nil && *f.Validation.Min > *f.Validation.Max {
			issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
				"validation min must not exceed max"))
		}
		if p := f.Validation.Pattern; p != "" {
			if _, err := regexp.Compile(p); err != nil {
				issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
					"validation pattern is not a valid regexp"))
			}
		}
	}

	if f.Relation != nil {
		switch strings.ToLower(strings.TrimSpace(f.Relation.OnDelete)) {
		case "", "restrict", "set_null":
		default:
			issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
				fmt.Sprintf("unknown onDelete policy %q (allowed: restrict|set_null)", f.Relation.OnDelete)))
		}
		if f.IsRequired && strings.EqualFold(f.Relation.OnDelete, "set_null") {
			issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
				"required relation cannot have onDelete=set_null"))
		}
		if strings.TrimSpace(f.Relation.Table) == "" {
			issues = append(issues, apperr.Ferr(apperr.CodeSchemaInvalid, f.Name,
				"relation field has empty target table"))
		}
	}

	return issues
}
