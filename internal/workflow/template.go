package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Подстановка значений контекста в параметры узлов. Токен — {{path.to.value}},
// путь из идентификаторов через точку. Неразрешившийся корректный токен
// остаётся как есть; синтаксически битый токен — ошибка сохранения смысла
// прогона, а не тихий мусор в данных.

var tmplToken = regexp.MustCompile(`\{\{([^{}]*)\}\}`)
var tmplPath = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)*$`)

// resolveString подставляет токены в строку. Если строка целиком состоит из
// одного токена, возвращается само значение без приведения к строке — так
// через шаблон проходят числа и объекты.
func resolveString(s string, bag map[string]any) (any, error) {
	matches := tmplToken.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	// строка == один токен: значение как есть
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		path := strings.TrimSpace(s[matches[0][2]:matches[0][3]])
		if !tmplPath.MatchString(path) {
			return nil, fmt.Errorf("malformed template token %q", s)
		}
		if v, ok := lookupPath(bag, path); ok {
			return v, nil
		}
		return s, nil
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		token := s[m[0]:m[1]]
		path := strings.TrimSpace(s[m[2]:m[3]])
		if !tmplPath.MatchString(path) {
			return nil, fmt.Errorf("malformed template token %q", token)
		}
		if v, ok := lookupPath(bag, path); ok {
			sb.WriteString(valueToString(v))
		} else {
			sb.WriteString(token)
		}
		last = m[1]
	}
	sb.WriteString(s[last:])
	return sb.String(), nil
}

// resolveAny рекурсивно подставляет токены в строках внутри карт и срезов.
func resolveAny(v any, bag map[string]any) (any, error) {
	switch t := v.(type) {
	case string:
		return resolveString(t, bag)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			r, err := resolveAny(val, bag)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			r, err := resolveAny(val, bag)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

// lookupPath идёт по вложенным картам. Любой не-картовый промежуточный
// уровень обрывает поиск.
func lookupPath(bag map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = bag
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func valueToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err == nil {
			return string(b)
		}
	}
	return fmt.Sprintf("%v", v)
}
