package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Ident — проверенный идентификатор для подстановки в SQL-текст.
// Получить его можно только через NewIdent, поэтому «сырое» имя
// в текст запроса не попадает в принципе.
type Ident string

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// NewIdent валидирует имя таблицы/колонки. Всё, что не проходит по паттерну,
// отклоняется сразу — никакого экранирования с подстановкой.
func NewIdent(s string) (Ident, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("identifier is empty")
	}
	if len(s) > 63 {
		return "", fmt.Errorf("identifier %q is too long (max 63)", s)
	}
	if !identRe.MatchString(s) {
		return "", fmt.Errorf("identifier %q must match ^[a-z][a-z0-9_]*$", s)
	}
	if isReserved(s) {
		return "", fmt.Errorf("identifier %q is a reserved word", s)
	}
	return Ident(s), nil
}

// MustIdent — для констант, известных на этапе компиляции.
func MustIdent(s string) Ident {
	id, err := NewIdent(s)
	if err != nil {
		panic(err)
	}
	return id
}

// SQL возвращает имя в двойных кавычках для текста запроса.
func (i Ident) SQL() string { return `"` + string(i) + `"` }

func (i Ident) String() string { return string(i) }
