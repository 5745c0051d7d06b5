package ports

import (
	"context"

	"github.com/interlace-io/interlace/internal/domain"
)

// AdapterExecutorPort performs the actual data transfer for an adapter node.
// Errors propagate as node-handler failures and abort the run.
type AdapterExecutorPort interface {
	Execute(ctx context.Context, adapterID string, execCtx domain.ExecutionContext, step *domain.FlowExecutionStep) (map[string]interface{}, error)
}

// UtilityExecutorPort runs a utility payload processor (compression, PGP,
// custom transforms); the embedding application provides the implementation.
type UtilityExecutorPort interface {
	Execute(ctx context.Context, utilityType string, config map[string]interface{}, execCtx domain.ExecutionContext, step *domain.FlowExecutionStep) (map[string]interface{}, error)
}
