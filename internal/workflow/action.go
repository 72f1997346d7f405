package workflow

import (
	"context"
	"fmt"

	"mapform/internal/query"
	"mapform/internal/record"
)

// RecordAPI — операции над записями, которые нужны движку. Реализуется
// record.Service; в тестах подменяется фейком.
type RecordAPI interface {
	Insert(ctx context.Context, table string, data map[string]any, actor string) (map[string]any, error)
	Update(ctx context.Context, table, id string, data map[string]any, actor string) (map[string]any, error)
	Delete(ctx context.Context, table, id string, actor string) error
	Query(ctx context.Context, table string, opts query.Options) (*record.QueryResult, error)
	SpatialQuery(ctx context.Context, table, geomColumn, queryType string, params map[string]any) ([]map[string]any, error)
}

// Типы действий.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// execAction выполняет action-узел. Data:
//
//	actionType — CREATE | UPDATE | DELETE
//	table      — целевая таблица
//	fields     — [{key, value}] с шаблонами в value
//	queryField / queryOperator / queryValue — отбор целей для UPDATE/DELETE
//
// Возвращает строку для журнала прогона.
func (e *Engine) execAction(ctx context.Context, n *Node, bag map[string]any, actor string) (string, error) {
	actionType, _ := n.Data["actionType"].(string)
	table, _ := n.Data["table"].(string)
	if table == "" {
		return "", fmt.Errorf("action node %q has no target table", n.ID)
	}

	switch actionType {
	case ActionCreate:
		payload, err := buildPayload(n.Data, bag)
		if err != nil {
			return "", err
		}
		row, err := e.records.Insert(ctx, table, payload, actor)
		if err != nil {
			return "", fmt.Errorf("create in %s: %w", table, err)
		}
		return fmt.Sprintf("created record %v in %s", row["id"], table), nil

	case ActionUpdate:
		targets, err := e.queryTargets(ctx, n, table, bag)
		if err != nil {
			return "", err
		}
		payload, err := buildPayload(n.Data, bag)
		if err != nil {
			return "", err
		}
		for _, t := range targets {
			id, _ := t["id"].(string)
			if _, err := e.records.Update(ctx, table, id, payload, actor); err != nil {
				return "", fmt.Errorf("update %s in %s: %w", id, table, err)
			}
		}
		return fmt.Sprintf("updated %d record(s) in %s", len(targets), table), nil

	case ActionDelete:
		targets, err := e.queryTargets(ctx, n, table, bag)
		if err != nil {
			return "", err
		}
		for _, t := range targets {
			id, _ := t["id"].(string)
			if err := e.records.Delete(ctx, table, id, actor); err != nil {
				return "", fmt.Errorf("delete %s in %s: %w", id, table, err)
			}
		}
		return fmt.Sprintf("deleted %d record(s) in %s", len(targets), table), nil

	default:
		return "", fmt.Errorf("action node %q has unknown actionType %q", n.ID, actionType)
	}
}

// buildPayload собирает данные записи из пар {key, value}, прогоняя value
// через шаблонизатор.
func buildPayload(data map[string]any, bag map[string]any) (map[string]any, error) {
	raw, _ := data["fields"].([]any)
	if len(raw) == 0 {
		return nil, fmt.Errorf("action has no fields")
	}
	payload := make(map[string]any, len(raw))
	for _, item := range raw {
		pair, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("action field must be a {key, value} object")
		}
		key, _ := pair["key"].(string)
		if key == "" {
			return nil, fmt.Errorf("action field without a key")
		}
		resolved, err := resolveAny(pair["value"], bag)
		if err != nil {
			return nil, err
		}
		payload[key] = resolved
	}
	return payload, nil
}

// queryTargets отбирает записи для UPDATE/DELETE по одиночному условию.
// Выборка ограничена сверху, массовые действия без лимита не допускаются.
func (e *Engine) queryTargets(ctx context.Context, n *Node, table string, bag map[string]any) ([]map[string]any, error) {
	field, _ := n.Data["queryField"].(string)
	op, _ := n.Data["queryOperator"].(string)
	if field == "" || op == "" {
		return nil, fmt.Errorf("action node %q requires queryField and queryOperator", n.ID)
	}
	value, err := resolveAny(n.Data["queryValue"], bag)
	if err != nil {
		return nil, err
	}

	res, err := e.records.Query(ctx, table, query.Options{
		Filters: []query.Filter{{Field: field, Op: op, Value: value}},
		Limit:   e.actionLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("query targets in %s: %w", table, err)
	}
	return res.Data, nil
}
