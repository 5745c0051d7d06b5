package ports

import (
	"context"

	"github.com/interlace-io/interlace/internal/domain"
)

// LedgerPort persists execution and step records and answers aggregate
// statistics queries.
type LedgerPort interface {
	CreateExecution(ctx context.Context, exec *domain.FlowExecution) error
	UpdateExecution(ctx context.Context, exec *domain.FlowExecution) error
	GetExecution(ctx context.Context, id string) (*domain.FlowExecution, error)
	ListExecutionsByFlow(ctx context.Context, flowID string) ([]domain.FlowExecution, error)

	CreateStep(ctx context.Context, step *domain.FlowExecutionStep) error
	UpdateStep(ctx context.Context, step *domain.FlowExecutionStep) error
	ListSteps(ctx context.Context, executionID string) ([]domain.FlowExecutionStep, error)
	// DeleteSteps purges every step of a run; used by retry before the run
	// regenerates its steps.
	DeleteSteps(ctx context.Context, executionID string) (int, error)

	// ExecutionTotals aggregates file and byte counters across a run's steps.
	ExecutionTotals(ctx context.Context, executionID string) (files int64, bytes int64, err error)
}
