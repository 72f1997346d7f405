package workflow

import (
	"fmt"

	"mapform/internal/apperr"
)

// ValidateGraph проверяет граф при сохранении: корректность узлов и рёбер,
// разрешимость стартового узла и отсутствие циклов. Битый граф не должен
// дожить до выполнения.
func ValidateGraph(w *Workflow) []apperr.FieldError {
	var errs []apperr.FieldError

	switch w.TriggerType {
	case TriggerRecordCreated, TriggerRecordUpdated, TriggerManual:
	default:
		errs = append(errs, apperr.Ferr(apperr.CodeGraphInvalid, "triggerType",
			fmt.Sprintf("Unknown trigger type %q", w.TriggerType)))
	}
	if (w.TriggerType == TriggerRecordCreated || w.TriggerType == TriggerRecordUpdated) && w.TableID == "" {
		errs = append(errs, apperr.Ferr(apperr.CodeGraphInvalid, "tableId",
			"Record triggers require a table"))
	}

	if len(w.Nodes) == 0 {
		errs = append(errs, apperr.Ferr(apperr.CodeGraphInvalid, "nodes",
			"Workflow graph has no nodes"))
		return errs
	}

	byID := make(map[string]*Node, len(w.Nodes))
	triggers := 0
	for i := range w.Nodes {
		n := &w.Nodes[i]
		if n.ID == "" {
			errs = append(errs, apperr.Ferr(apperr.CodeGraphInvalid, "nodes",
				"Node without an id"))
			continue
		}
		if _, dup := byID[n.ID]; dup {
			errs = append(errs, apperr.Ferr(apperr.CodeGraphInvalid, "nodes",
				fmt.Sprintf("Duplicate node id %q", n.ID)))
			continue
		}
		byID[n.ID] = n
		switch n.Type {
		case NodeTrigger:
			triggers++
		case NodeCondition, NodeAction, NodeLog:
		default:
			errs = append(errs, apperr.Ferr(apperr.CodeGraphInvalid, "nodes",
				fmt.Sprintf("Node %q has unknown type %q", n.ID, n.Type)))
		}
	}
	if triggers > 1 {
		errs = append(errs, apperr.Ferr(apperr.CodeGraphInvalid, "nodes",
			"Workflow graph has more than one trigger node"))
	}

	incoming := make(map[string]int, len(w.Nodes))
	adj := make(map[string][]string, len(w.Nodes))
	for _, e := range w.Edges {
		if _, ok := byID[e.Source]; !ok {
			errs = append(errs, apperr.Ferr(apperr.CodeGraphInvalid, "edges",
				fmt.Sprintf("Edge %q references unknown source %q", e.ID, e.Source)))
			continue
		}
		if _, ok := byID[e.Target]; !ok {
			errs = append(errs, apperr.Ferr(apperr.CodeGraphInvalid, "edges",
				fmt.Sprintf("Edge %q references unknown target %q", e.ID, e.Target)))
			continue
		}
		incoming[e.Target]++
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	if triggers == 0 {
		// без явного триггера стартом служит единственный узел без входящих рёбер
		roots := 0
		for id := range byID {
			if incoming[id] == 0 {
				roots++
			}
		}
		if roots != 1 {
			errs = append(errs, apperr.Ferr(apperr.CodeGraphInvalid, "nodes",
				"Cannot resolve a start node: no trigger and no single root"))
		}
	}

	if hasCycle(byID, adj) {
		errs = append(errs, apperr.Ferr(apperr.CodeGraphInvalid, "edges",
			"Workflow graph contains a cycle"))
	}

	return errs
}

// hasCycle — обход в глубину с трёхцветной раскраской.
func hasCycle(nodes map[string]*Node, adj map[string][]string) bool {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		for _, next := range adj[id] {
			switch color[next] {
			case grey:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for id := range nodes {
		if color[id] == white && visit(id) {
			return true
		}
	}
	return false
}

// startNode возвращает стартовый узел валидного графа: trigger-узел, иначе
// единственный корень без входящих рёбер.
func startNode(w *Workflow) *Node {
	for i := range w.Nodes {
		if w.Nodes[i].Type == NodeTrigger {
			return &w.Nodes[i]
		}
	}
	incoming := make(map[string]int)
	for _, e := range w.Edges {
		incoming[e.Target]++
	}
	for i := range w.Nodes {
		if incoming[w.Nodes[i].ID] == 0 {
			return &w.Nodes[i]
		}
	}
	return nil
}
