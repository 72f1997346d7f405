package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapform/internal/apperr"
)

func validGraph() *Workflow {
	return &Workflow{
		Name:        "notify",
		TriggerType: TriggerRecordCreated,
		TableID:     "44444444-4444-4444-4444-444444444444",
		Nodes: []Node{
			{ID: "t1", Type: NodeTrigger},
			{ID: "c1", Type: NodeCondition, Data: map[string]any{
				"field": "price", "operator": condGreaterThan, "value": 100,
			}},
			{ID: "a1", Type: NodeAction, Data: map[string]any{
				"actionType": ActionCreate, "table": "alerts",
				"fields": []any{map[string]any{"key": "title", "value": "x"}},
			}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "t1", Target: "c1"},
			{ID: "e2", Source: "c1", Target: "a1", SourceHandle: "true"},
		},
	}
}

func TestValidateGraphOK(t *testing.T) {
	assert.Empty(t, ValidateGraph(validGraph()))
}

func TestValidateGraphUnknownTrigger(t *testing.T) {
	w := validGraph()
	w.TriggerType = "ON_SNEEZE"
	issues := ValidateGraph(w)
	require.NotEmpty(t, issues)
	assert.Equal(t, apperr.CodeGraphInvalid, issues[0].Code)
}

func TestValidateGraphRecordTriggerNeedsTable(t *testing.T) {
	w := validGraph()
	w.TableID = ""
	assert.NotEmpty(t, ValidateGraph(w))
}

func TestValidateGraphManualWithoutTable(t *testing.T) {
	w := validGraph()
	w.TriggerType = TriggerManual
	w.TableID = ""
	assert.Empty(t, ValidateGraph(w))
}

func TestValidateGraphEmptyNodes(t *testing.T) {
	w := validGraph()
	w.Nodes = nil
	w.Edges = nil
	assert.NotEmpty(t, ValidateGraph(w))
}

func TestValidateGraphDuplicateNodeID(t *testing.T) {
	w := validGraph()
	w.Nodes = append(w.Nodes, Node{ID: "a1", Type: NodeLog})
	assert.NotEmpty(t, ValidateGraph(w))
}

func TestValidateGraphDanglingEdge(t *testing.T) {
	w := validGraph()
	w.Edges = append(w.Edges, Edge{ID: "e3", Source: "a1", Target: "ghost"})
	issues := ValidateGraph(w)
	require.Len(t, issues, 1)
	assert.Equal(t, "edges", issues[0].Field)
}

func TestValidateGraphCycle(t *testing.T) {
	w := validGraph()
	w.Edges = append(w.Edges, Edge{ID: "e3", Source: "a1", Target: "c1"})
	issues := ValidateGraph(w)
	require.NotEmpty(t, issues)
	found := false
	for _, i := range issues {
		if i.Message == "Workflow graph contains a cycle" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateGraphMultipleTriggers(t *testing.T) {
	w := validGraph()
	w.Nodes = append(w.Nodes, Node{ID: "t2", Type: NodeTrigger})
	assert.NotEmpty(t, ValidateGraph(w))
}

func TestValidateGraphNoTriggerSingleRoot(t *testing.T) {
	w := validGraph()
	// убираем trigger-узел: корнем остаётся c1
	w.Nodes = w.Nodes[1:]
	w.Edges = w.Edges[1:]
	assert.Empty(t, ValidateGraph(w))
}

func TestValidateGraphNoTriggerAmbiguousRoot(t *testing.T) {
	w := validGraph()
	w.Nodes = w.Nodes[1:]
	w.Edges = nil // два узла без входящих рёбер
	assert.NotEmpty(t, ValidateGraph(w))
}

func TestStartNode(t *testing.T) {
	w := validGraph()
	n := startNode(w)
	require.NotNil(t, n)
	assert.Equal(t, "t1", n.ID)

	w.Nodes = w.Nodes[1:]
	w.Edges = w.Edges[1:]
	n = startNode(w)
	require.NotNil(t, n)
	assert.Equal(t, "c1", n.ID)
}
