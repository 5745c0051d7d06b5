package domain

import (
	"fmt"
	"time"
)

const (
	NodeTypeStart = "start"
	// NodeTypeStartLegacy is the older spelling still present in flows
	// exported by earlier releases.
	NodeTypeStartLegacy   = "startEvent"
	NodeTypeEnd           = "end"
	NodeTypeMessageEnd    = "message-end"
	NodeTypeAdapter       = "adapter"
	NodeTypeUtility       = "utility"
	NodeTypeDecision      = "decision"
	NodeTypeParallelSplit = "parallel-split"
)

// IsStartType matches both recognized spellings of the start node type.
func IsStartType(nodeType string) bool {
	return nodeType == NodeTypeStart || nodeType == NodeTypeStartLegacy
}

type Node struct {
	ID   string                 `json:"id"`
	Type string                 `json:"type"`
	Name string                 `json:"name,omitempty"`
	Data map[string]interface{} `json:"data,omitempty"`
}

type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type FlowDefinition struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     int       `json:"version"`
	Nodes       []Node    `json:"nodes"`
	Edges       []Edge    `json:"edges"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StartNode returns the unique start node of the flow. Zero or multiple
// start nodes are configuration errors.
func (f *FlowDefinition) StartNode() (*Node, error) {
	var start *Node
	for i := range f.Nodes {
		if IsStartType(f.Nodes[i].Type) {
			if start != nil {
				return nil, NewValidationError("flow has multiple start nodes")
			}
			start = &f.Nodes[i]
		}
	}
	if start == nil {
		return nil, NewValidationError("flow has no start node")
	}
	return start, nil
}

func (f *FlowDefinition) NodeByID(id string) (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// OutgoingEdges returns the edges leaving the given node, in definition order.
func (f *FlowDefinition) OutgoingEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range f.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks the structural invariants of the graph and returns every
// violation found, not just the first.
func (f *FlowDefinition) Validate() []string {
	var errs []string

	if len(f.Nodes) == 0 {
		errs = append(errs, "flow graph is empty")
		return errs
	}

	startCount := 0
	ids := make(map[string]bool, len(f.Nodes))
	for _, n := range f.Nodes {
		if n.ID == "" {
			errs = append(errs, "flow contains a node without an id")
			continue
		}
		if ids[n.ID] {
			errs = append(errs, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		ids[n.ID] = true
		if IsStartType(n.Type) {
			startCount++
		}
	}

	switch {
	case startCount == 0:
		errs = append(errs, "flow has no start node")
	case startCount > 1:
		errs = append(errs, fmt.Sprintf("flow has %d start nodes, expected exactly one", startCount))
	}

	for _, e := range f.Edges {
		if !ids[e.Source] {
			errs = append(errs, fmt.Sprintf("edge references unknown source node %q", e.Source))
		}
		if !ids[e.Target] {
			errs = append(errs, fmt.Sprintf("edge references unknown target node %q", e.Target))
		}
	}

	return errs
}

// ReferencedAdapterIDs collects every adapter id the graph binds to: adapter
// nodes, plus legacy sender/receiver fields still carried on start and end
// nodes by flows from earlier releases. Order follows node order; duplicates
// are removed.
func (f *FlowDefinition) ReferencedAdapterIDs() []string {
	seen := make(map[string]bool)
	var ids []string

	add := func(v interface{}) {
		id, ok := v.(string)
		if !ok || id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	for _, n := range f.Nodes {
		switch {
		case n.Type == NodeTypeAdapter:
			add(n.Data["adapterId"])
		case IsStartType(n.Type):
			add(n.Data["senderAdapterId"])
		case n.Type == NodeTypeEnd || n.Type == NodeTypeMessageEnd:
			add(n.Data["receiverAdapterId"])
			if list, ok := n.Data["receiverAdapterIds"].([]interface{}); ok {
				for _, v := range list {
					add(v)
				}
			}
		}
	}

	return ids
}
