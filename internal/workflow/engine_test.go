package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapform/internal/logger"
	"mapform/internal/query"
	"mapform/internal/record"
)

// fakeRecords — RecordAPI для тестов движка. Геофенс считает честно:
// точка против единичного квадрата (0,0)-(1,1).
type fakeRecords struct {
	inserted  []map[string]any
	updated   []string
	deleted   []string
	queryRows []map[string]any
	lastOpts  query.Options
	failWith  error
}

var unitSquare = orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}

func (f *fakeRecords) Insert(_ context.Context, table string, data map[string]any, _ string) (map[string]any, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	row := map[string]any{"id": fmt.Sprintf("rec-%d", len(f.inserted)+1)}
	for k, v := range data {
		row[k] = v
	}
	f.inserted = append(f.inserted, row)
	return row, nil
}

func (f *fakeRecords) Update(_ context.Context, _, id string, _ map[string]any, _ string) (map[string]any, error) {
	f.updated = append(f.updated, id)
	return map[string]any{"id": id}, nil
}

func (f *fakeRecords) Delete(_ context.Context, _, id string, _ string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRecords) Query(_ context.Context, _ string, opts query.Options) (*record.QueryResult, error) {
	f.lastOpts = opts
	return &record.QueryResult{Data: f.queryRows, Total: int64(len(f.queryRows))}, nil
}

func (f *fakeRecords) SpatialQuery(_ context.Context, _, _, _ string, params map[string]any) ([]map[string]any, error) {
	geom, ok := params["geometry"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("no geometry")
	}
	coords, _ := geom["coordinates"].([]any)
	if len(coords) != 2 {
		return nil, fmt.Errorf("not a point")
	}
	pt := orb.Point{coords[0].(float64), coords[1].(float64)}
	if planar.PolygonContains(unitSquare, pt) {
		return []map[string]any{{"id": "zone-1"}}, nil
	}
	return nil, nil
}

func newTestEngine(f *fakeRecords) *Engine {
	return NewEngine(nil, f, 100, logger.Nop())
}

func conditionWorkflow() *Workflow {
	return &Workflow{
		ID:          "wf-1",
		Name:        "price alert",
		TriggerType: TriggerRecordCreated,
		TableID:     "44444444-4444-4444-4444-444444444444",
		Nodes: []Node{
			{ID: "t1", Type: NodeTrigger},
			{ID: "c1", Type: NodeCondition, Data: map[string]any{
				"field": "price", "operator": condGreaterThan, "value": 100,
			}},
			{ID: "a1", Type: NodeAction, Data: map[string]any{
				"actionType": ActionCreate, "table": "alerts",
				"fields": []any{
					map[string]any{"key": "title", "value": "price alert for {{trigger.name}}"},
					map[string]any{"key": "price", "value": "{{trigger.price}}"},
				},
			}},
			{ID: "l1", Type: NodeLog, Data: map[string]any{
				"message": "price ok for {{trigger.name}}",
			}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "t1", Target: "c1"},
			{ID: "e2", Source: "c1", Target: "a1", SourceHandle: "true"},
			{ID: "e3", Source: "c1", Target: "l1", SourceHandle: "false"},
		},
	}
}

func TestEngineTrueBranch(t *testing.T) {
	f := &fakeRecords{}
	e := newTestEngine(f)

	ex := e.Run(context.Background(), conditionWorkflow(), map[string]any{
		"name": "north station", "price": 150.0,
	})

	assert.Equal(t, StatusCompleted, ex.Status)
	require.Len(t, f.inserted, 1)
	assert.Equal(t, "price alert for north station", f.inserted[0]["title"])
	assert.Equal(t, 150.0, f.inserted[0]["price"]) // одиночный токен сохраняет тип

	joined := joinLogs(ex)
	assert.Contains(t, joined, "condition evaluated to true")
}

func TestEngineFalseBranch(t *testing.T) {
	f := &fakeRecords{}
	e := newTestEngine(f)

	ex := e.Run(context.Background(), conditionWorkflow(), map[string]any{
		"name": "north station", "price": 50.0,
	})

	assert.Equal(t, StatusCompleted, ex.Status)
	assert.Empty(t, f.inserted)
	joined := joinLogs(ex)
	assert.Contains(t, joined, "condition evaluated to false")
	assert.Contains(t, joined, "price ok for north station")
}

func TestEngineGeofence(t *testing.T) {
	f := &fakeRecords{}
	e := newTestEngine(f)

	w := conditionWorkflow()
	w.Nodes[1].Data = map[string]any{
		"field": "location", "operator": condGeoWithin, "value": "zones",
	}

	inside := map[string]any{"type": "Point", "coordinates": []any{0.5, 0.5}}
	ex := e.Run(context.Background(), w, map[string]any{"name": "s1", "location": inside})
	assert.Equal(t, StatusCompleted, ex.Status)
	assert.Len(t, f.inserted, 1)

	f2 := &fakeRecords{}
	e2 := newTestEngine(f2)
	outside := map[string]any{"type": "Point", "coordinates": []any{5.0, 5.0}}
	ex = e2.Run(context.Background(), w, map[string]any{"name": "s2", "location": outside})
	assert.Equal(t, StatusCompleted, ex.Status)
	assert.Empty(t, f2.inserted)
}

func TestEngineVisitedOnce(t *testing.T) {
	// ромб: две ветки сходятся в одном action — он выполняется один раз
	f := &fakeRecords{}
	e := newTestEngine(f)

	w := &Workflow{
		ID: "wf-2", Name: "diamond", TriggerType: TriggerManual,
		Nodes: []Node{
			{ID: "t1", Type: NodeTrigger},
			{ID: "l1", Type: NodeLog, Data: map[string]any{"message": "left"}},
			{ID: "l2", Type: NodeLog, Data: map[string]any{"message": "right"}},
			{ID: "a1", Type: NodeAction, Data: map[string]any{
				"actionType": ActionCreate, "table": "alerts",
				"fields": []any{map[string]any{"key": "title", "value": "once"}},
			}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "t1", Target: "l1"},
			{ID: "e2", Source: "t1", Target: "l2"},
			{ID: "e3", Source: "l1", Target: "a1"},
			{ID: "e4", Source: "l2", Target: "a1"},
		},
	}
	require.Empty(t, ValidateGraph(w))

	ex := e.Run(context.Background(), w, map[string]any{})
	assert.Equal(t, StatusCompleted, ex.Status)
	assert.Len(t, f.inserted, 1)
}

func TestEngineActionErrorFailsRun(t *testing.T) {
	f := &fakeRecords{failWith: fmt.Errorf("table gone")}
	e := newTestEngine(f)

	ex := e.Run(context.Background(), conditionWorkflow(), map[string]any{
		"name": "s", "price": 150.0,
	})
	assert.Equal(t, StatusFailed, ex.Status)
	assert.Contains(t, joinLogs(ex), "action failed")
}

func TestEngineUpdateActionBoundedQuery(t *testing.T) {
	f := &fakeRecords{queryRows: []map[string]any{
		{"id": "r1"}, {"id": "r2"},
	}}
	e := NewEngine(nil, f, 25, logger.Nop())

	w := &Workflow{
		ID: "wf-3", Name: "bulk touch", TriggerType: TriggerManual,
		Nodes: []Node{
			{ID: "t1", Type: NodeTrigger},
			{ID: "a1", Type: NodeAction, Data: map[string]any{
				"actionType": ActionUpdate, "table": "stations",
				"queryField": "status", "queryOperator": "eq", "queryValue": "stale",
				"fields": []any{map[string]any{"key": "status", "value": "checked"}},
			}},
		},
		Edges: []Edge{{ID: "e1", Source: "t1", Target: "a1"}},
	}

	ex := e.Run(context.Background(), w, map[string]any{})
	assert.Equal(t, StatusCompleted, ex.Status)
	assert.Equal(t, []string{"r1", "r2"}, f.updated)
	assert.Equal(t, 25, f.lastOpts.Limit)
	require.Len(t, f.lastOpts.Filters, 1)
	assert.Equal(t, "stale", f.lastOpts.Filters[0].Value)
}

func TestEngineDeleteAction(t *testing.T) {
	f := &fakeRecords{queryRows: []map[string]any{{"id": "r9"}}}
	e := newTestEngine(f)

	w := &Workflow{
		ID: "wf-4", Name: "cleanup", TriggerType: TriggerManual,
		Nodes: []Node{
			{ID: "t1", Type: NodeTrigger},
			{ID: "a1", Type: NodeAction, Data: map[string]any{
				"actionType": ActionDelete, "table": "stations",
				"queryField": "status", "queryOperator": "eq", "queryValue": "dead",
			}},
		},
		Edges: []Edge{{ID: "e1", Source: "t1", Target: "a1"}},
	}

	ex := e.Run(context.Background(), w, map[string]any{})
	assert.Equal(t, StatusCompleted, ex.Status)
	assert.Equal(t, []string{"r9"}, f.deleted)
}

func TestEvalConditionLogic(t *testing.T) {
	e := newTestEngine(&fakeRecords{})
	bag := map[string]any{"trigger": map[string]any{
		"status": "active", "price": 10.0, "title": "North Station",
	}}

	cases := []struct {
		name string
		data map[string]any
		want bool
	}{
		{"equals", map[string]any{"field": "status", "operator": condEquals, "value": "active"}, true},
		{"equals numeric-first", map[string]any{"field": "price", "operator": condEquals, "value": "10"}, true},
		{"not_equals", map[string]any{"field": "status", "operator": condNotEquals, "value": "offline"}, true},
		{"contains case-insensitive", map[string]any{"field": "title", "operator": condContains, "value": "north"}, true},
		{"less_than", map[string]any{"field": "price", "operator": condLessThan, "value": 5}, false},
		{"and all pass", map[string]any{"logic": "AND", "clauses": []any{
			map[string]any{"field": "status", "operator": condEquals, "value": "active"},
			map[string]any{"field": "price", "operator": condLessThan, "value": 100},
		}}, true},
		{"and one fails", map[string]any{"logic": "AND", "clauses": []any{
			map[string]any{"field": "status", "operator": condEquals, "value": "active"},
			map[string]any{"field": "price", "operator": condGreaterThan, "value": 100},
		}}, false},
		{"or one passes", map[string]any{"logic": "OR", "clauses": []any{
			map[string]any{"field": "status", "operator": condEquals, "value": "offline"},
			map[string]any{"field": "price", "operator": condLessThan, "value": 100},
		}}, true},
		{"or none pass", map[string]any{"logic": "OR", "clauses": []any{
			map[string]any{"field": "status", "operator": condEquals, "value": "offline"},
			map[string]any{"field": "price", "operator": condGreaterThan, "value": 100},
		}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.evalCondition(context.Background(), &Node{ID: "c", Data: tc.data}, bag)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvalConditionUnknownOperator(t *testing.T) {
	e := newTestEngine(&fakeRecords{})
	_, err := e.evalCondition(context.Background(), &Node{ID: "c", Data: map[string]any{
		"field": "x", "operator": "resembles", "value": 1,
	}}, map[string]any{})
	assert.Error(t, err)
}

func joinLogs(ex *Execution) string {
	out := ""
	for _, l := range ex.Logs {
		out += l.Message + "\n"
	}
	return out
}
