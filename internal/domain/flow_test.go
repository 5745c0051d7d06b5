package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearFlow() *FlowDefinition {
	return &FlowDefinition{
		ID:   "flow-1",
		Name: "linear",
		Nodes: []Node{
			{ID: "n1", Type: NodeTypeStart},
			{ID: "n2", Type: NodeTypeAdapter, Data: map[string]interface{}{"adapterId": "a1"}},
			{ID: "n3", Type: NodeTypeEnd},
		},
		Edges: []Edge{
			{Source: "n1", Target: "n2"},
			{Source: "n2", Target: "n3"},
		},
	}
}

func TestFlowValidate_Linear(t *testing.T) {
	assert.Empty(t, linearFlow().Validate())
}

func TestFlowValidate_Empty(t *testing.T) {
	flow := &FlowDefinition{ID: "flow-empty"}
	errs := flow.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "empty")
}

func TestFlowValidate_CollectsAllViolations(t *testing.T) {
	flow := &FlowDefinition{
		ID: "flow-bad",
		Nodes: []Node{
			{ID: "n1", Type: NodeTypeAdapter},
			{ID: "n1", Type: NodeTypeAdapter},
		},
		Edges: []Edge{
			{Source: "n1", Target: "ghost"},
		},
	}

	errs := flow.Validate()
	assert.Len(t, errs, 3)
}

func TestFlowValidate_MultipleStartNodes(t *testing.T) {
	flow := &FlowDefinition{
		ID: "flow-two-starts",
		Nodes: []Node{
			{ID: "s1", Type: NodeTypeStart},
			{ID: "s2", Type: NodeTypeStartLegacy},
		},
	}

	errs := flow.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "2 start nodes")
}

func TestStartNode_LegacySpelling(t *testing.T) {
	flow := &FlowDefinition{
		ID:    "flow-legacy",
		Nodes: []Node{{ID: "s1", Type: NodeTypeStartLegacy}},
	}

	start, err := flow.StartNode()
	require.NoError(t, err)
	assert.Equal(t, "s1", start.ID)
}

func TestStartNode_Missing(t *testing.T) {
	flow := &FlowDefinition{
		ID:    "flow-headless",
		Nodes: []Node{{ID: "n1", Type: NodeTypeEnd}},
	}

	_, err := flow.StartNode()
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestReferencedAdapterIDs_DedupesAndKeepsOrder(t *testing.T) {
	flow := &FlowDefinition{
		ID: "flow-refs",
		Nodes: []Node{
			{ID: "n1", Type: NodeTypeStartLegacy, Data: map[string]interface{}{"senderAdapterId": "sender-1"}},
			{ID: "n2", Type: NodeTypeAdapter, Data: map[string]interface{}{"adapterId": "a1"}},
			{ID: "n3", Type: NodeTypeAdapter, Data: map[string]interface{}{"adapterId": "a1"}},
			{ID: "n4", Type: NodeTypeMessageEnd, Data: map[string]interface{}{
				"receiverAdapterId":  "recv-1",
				"receiverAdapterIds": []interface{}{"recv-2", "recv-1"},
			}},
		},
	}

	assert.Equal(t, []string{"sender-1", "a1", "recv-1", "recv-2"}, flow.ReferencedAdapterIDs())
}

func TestOutgoingEdges_DefinitionOrder(t *testing.T) {
	flow := linearFlow()
	flow.Edges = append(flow.Edges, Edge{Source: "n1", Target: "n3"})

	out := flow.OutgoingEdges("n1")
	require.Len(t, out, 2)
	assert.Equal(t, "n2", out[0].Target)
	assert.Equal(t, "n3", out[1].Target)
}
