package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Сентинели для слоя сервисов. Хендлеры маппят их на HTTP-статусы.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Коды ошибок валидации (по полям)
const (
	CodeRequired        = "required"
	CodeTypeMismatch    = "type_mismatch"
	CodeInvalidIdent    = "invalid_identifier"
	CodeInvalidGeometry = "invalid_geometry"
	CodeEnumInvalid     = "enum_invalid"
	CodeUnknownField    = "unknown_field"
	CodeSchemaInvalid   = "schema_invalid"
	CodeGraphInvalid    = "graph_invalid"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func Ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// Validation собирает ошибки по полям в одну error.
type Validation struct {
	Errors []FieldError
}

func (v *Validation) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func NewValidation(errs ...FieldError) *Validation {
	return &Validation{Errors: errs}
}

// AsValidation достаёт *Validation из цепочки ошибок.
func AsValidation(err error) (*Validation, bool) {
	var v *Validation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}
