package engine

import (
	"context"
	"sync"

	"github.com/interlace-io/interlace/internal/domain"
)

// NodeVisit is what a handler sees of the graph: the node itself and its
// outgoing edges. The walker, not the handler, performs any fan-out.
type NodeVisit struct {
	Node     domain.Node
	Outgoing []domain.Edge
}

// NodeHandler executes one node kind. The returned map is merged into the
// context for every subsequent node on the same path; an error aborts the
// entire run.
type NodeHandler interface {
	NodeType() string
	Execute(ctx context.Context, visit NodeVisit, execCtx domain.ExecutionContext, step *domain.FlowExecutionStep) (map[string]interface{}, error)
}

// HandlerRegistry dispatches node types to their handlers. Both recognized
// start spellings resolve to the same handler.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]NodeHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]NodeHandler),
	}
}

func (r *HandlerRegistry) Register(handler NodeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handler.NodeType()] = handler
}

func (r *HandlerRegistry) Get(nodeType string) (NodeHandler, error) {
	if domain.IsStartType(nodeType) {
		nodeType = domain.NodeTypeStart
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[nodeType]
	if !ok {
		return nil, domain.NewNotFoundError("node handler", nodeType)
	}
	return handler, nil
}
