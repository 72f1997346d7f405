package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"mapform/internal/logger"
)

// Engine обходит граф workflow и выполняет узлы. Движок не хранит состояния
// между прогонами, каждый Run независим.
type Engine struct {
	store       *Store
	records     RecordAPI
	actionLimit int
	log         *logger.Logger
}

func NewEngine(store *Store, records RecordAPI, actionLimit int, log *logger.Logger) *Engine {
	if actionLimit <= 0 {
		actionLimit = 100
	}
	return &Engine{
		store:       store,
		records:     records,
		actionLimit: actionLimit,
		log:         log.With("component", "workflow-engine"),
	}
}

// Run выполняет один прогон графа над записью-триггером. Любая ошибка узла
// завершает прогон со статусом FAILED; итог всегда сохраняется в журнал.
func (e *Engine) Run(ctx context.Context, w *Workflow, trigger map[string]any) *Execution {
	ex := &Execution{
		ID:         ulid.Make().String(),
		WorkflowID: w.ID,
		Status:     StatusCompleted,
	}
	logf := func(nodeID, format string, args ...any) {
		ex.Logs = append(ex.Logs, LogEntry{
			At:      time.Now().UTC(),
			NodeID:  nodeID,
			Message: fmt.Sprintf(format, args...),
		})
	}

	bag := map[string]any{
		"trigger": trigger,
		"workflow": map[string]any{
			"id":   w.ID,
			"name": w.Name,
		},
	}
	actor := "workflow:" + w.ID

	start := startNode(w)
	if start == nil {
		ex.Status = StatusFailed
		logf("", "cannot resolve start node")
		return e.finish(ctx, w, ex)
	}
	logf(start.ID, "workflow %q started", w.Name)

	byID := make(map[string]*Node, len(w.Nodes))
	for i := range w.Nodes {
		byID[w.Nodes[i].ID] = &w.Nodes[i]
	}

	// обход в ширину; visited защищает от повторного входа при
	// сходящихся ветках
	queue := []string{start.ID}
	visited := map[string]bool{}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		n := byID[id]

		branch := "" // непустой у condition: дальше идёт только выбранная ветка
		switch n.Type {
		case NodeTrigger:
			// стартовый узел, работы нет

		case NodeCondition:
			ok, err := e.evalCondition(ctx, n, bag)
			if err != nil {
				ex.Status = StatusFailed
				logf(n.ID, "condition failed: %v", err)
				return e.finish(ctx, w, ex)
			}
			branch = "false"
			if ok {
				branch = "true"
			}
			logf(n.ID, "condition evaluated to %s", branch)

		case NodeAction:
			msg, err := e.execAction(ctx, n, bag, actor)
			if err != nil {
				ex.Status = StatusFailed
				logf(n.ID, "action failed: %v", err)
				return e.finish(ctx, w, ex)
			}
			logf(n.ID, "%s", msg)

		case NodeLog:
			msg, err := resolveAny(n.Data["message"], bag)
			if err != nil {
				ex.Status = StatusFailed
				logf(n.ID, "log node failed: %v", err)
				return e.finish(ctx, w, ex)
			}
			logf(n.ID, "%s", valueToString(msg))

		default:
			ex.Status = StatusFailed
			logf(n.ID, "unknown node type %q", n.Type)
			return e.finish(ctx, w, ex)
		}

		for _, edge := range w.Edges {
			if edge.Source != id {
				continue
			}
			if branch != "" && edge.SourceHandle != branch {
				continue
			}
			queue = append(queue, edge.Target)
		}
	}

	logf("", "workflow %q completed", w.Name)
	return e.finish(ctx, w, ex)
}

func (e *Engine) finish(ctx context.Context, w *Workflow, ex *Execution) *Execution {
	ex.CompletedAt = time.Now().UTC()
	if e.store != nil {
		if err := e.store.SaveExecution(ctx, ex); err != nil {
			e.log.Error("save execution", "workflow", w.ID, "error", err)
		}
	}
	if ex.Status == StatusFailed {
		e.log.Warn("workflow run failed", "workflow", w.ID, "execution", ex.ID)
	} else {
		e.log.Debug("workflow run completed", "workflow", w.ID, "execution", ex.ID)
	}
	return ex
}
