package record

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"mapform/internal/apperr"
	"mapform/internal/reference"
	"mapform/internal/schema"
)

// validateInsert — полный гейт перед INSERT: required-поля и правила значений.
// Ошибки собираются по всем полям сразу.
func validateInsert(def *schema.TableDefinition, data map[string]any, enums map[string]reference.Directory) []apperr.FieldError {
	var errs []apperr.FieldError

	for i := range def.Fields {
		f := &def.Fields[i]
		v, ok := data[f.Name]
		if f.IsRequired && (!ok || v == nil) {
			errs = append(errs, apperr.Ferr(apperr.CodeRequired, f.Name,
				"Field '"+f.Name+"' is required"))
		}
	}

	errs = append(errs, validateValues(def, data, enums)...)
	return errs
}

// validateValues — правила значений для переданных полей (для insert и update).
func validateValues(def *schema.TableDefinition, data map[string]any, enums map[string]reference.Directory) []apperr.FieldError {
	var errs []apperr.FieldError

	for name, v := range data {
		f, ok := def.Field(name)
		if !ok {
			errs = append(errs, apperr.Ferr(apperr.CodeUnknownField, name,
				"Field '"+name+"' is not defined on this table"))
			continue
		}
		if v == nil {
			continue
		}

		if f.Validation != nil {
			errs = append(errs, checkValidation(f, v, enums)...)
		}
		if f.DataType == schema.TypeSensor && f.Sensor != nil {
			errs = append(errs, checkSensor(f, v)...)
		}
	}
	return errs
}

func checkValidation(f *schema.FieldDefinition, v any, enums map[string]reference.Directory) []apperr.FieldError {
	var errs []apperr.FieldError
	val := f.Validation

	if val.Min != nil || val.Max != nil {
		if n, ok := asNumber(v); ok {
			if val.Min != nil && n < *val.Min {
				errs = append(errs, apperr.Ferr(apperr.CodeTypeMismatch, f.Name,
					fmt.Sprintf("Field '%s' must be >= %v", f.Name, *val.Min)))
			}
			if val.Max != nil && n > *val.Max {
				errs = append(errs, apperr.Ferr(apperr.CodeTypeMismatch, f.Name,
					fmt.Sprintf("Field '%s' must be <= %v", f.Name, *val.Max)))
			}
		}
	}

	if val.Pattern != "" {
		if s, ok := v.(string); ok {
			if re, err := regexp.Compile(val.Pattern); err == nil && !re.MatchString(s) {
				errs = append(errs, apperr.Ferr(apperr.CodeTypeMismatch, f.Name,
					"Field '"+f.Name+"' does not match pattern"))
			}
		}
	}

	// перечисленные опции: либо прямо в validation, либо именованный справочник
	options := val.Options
	if len(options) == 0 && val.OptionsCatalog != "" {
		if dir, ok := enums[val.OptionsCatalog]; ok {
			options = dir.Codes()
		}
	}
	if len(options) > 0 {
		if s, ok := v.(string); ok {
			found := false
			for _, opt := range options {
				if s == opt {
					found = true
					break
				}
			}
			if !found {
				errs = append(errs, apperr.Ferr(apperr.CodeEnumInvalid, f.Name,
					"Invalid value for '"+f.Name+"'"))
			}
		}
	}

	return errs
}

// checkSensor — границы iot-показаний: ждём объект с числовым "value".
func checkSensor(f *schema.FieldDefinition, v any) []apperr.FieldError {
	obj, ok := v.(map[string]any)
	if !ok {
		return []apperr.FieldError{apperr.Ferr(apperr.CodeTypeMismatch, f.Name,
			"Field '" + f.Name + "' expects a sensor reading object")}
	}
	reading, ok := asNumber(obj["value"])
	if !ok {
		return nil // нет числового value — границы не применимы
	}
	var errs []apperr.FieldError
	if f.Sensor.MinValue != nil && reading < *f.Sensor.MinValue {
		errs = append(errs, apperr.Ferr(apperr.CodeTypeMismatch, f.Name,
			fmt.Sprintf("Sensor value %v below minimum %v", reading, *f.Sensor.MinValue)))
	}
	if f.Sensor.MaxValue != nil && reading > *f.Sensor.MaxValue {
		errs = append(errs, apperr.Ferr(apperr.CodeTypeMismatch, f.Name,
			fmt.Sprintf("Sensor value %v above maximum %v", reading, *f.Sensor.MaxValue)))
	}
	return errs
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		n, err := t.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(t, 64)
		return n, err == nil
	}
	return 0, false
}

// stringify — стабильное строковое представление для диффа истории.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err == nil {
			return string(b)
		}
	}
	return fmt.Sprintf("%v", v)
}
