package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/interlace-io/interlace/internal/domain"
)

// walker performs the depth-first visit of one run. Sequential edges recurse
// on the same goroutine with the same context value; multi-edge nodes fan out
// onto the shared pool, each branch on its own context copy, and the parent
// reduces the branch results at the join.
type walker struct {
	engine      *Engine
	flow        *domain.FlowDefinition
	exec        *domain.FlowExecution
	joinTimeout time.Duration
	seq         atomic.Int64
}

func newWalker(e *Engine, flow *domain.FlowDefinition, exec *domain.FlowExecution) *walker {
	return &walker{
		engine:      e,
		flow:        flow,
		exec:        exec,
		joinTimeout: domain.ClampJoinTimeout(e.config.JoinTimeout),
	}
}

func (w *walker) visit(ctx context.Context, node *domain.Node, execCtx domain.ExecutionContext) (domain.ExecutionContext, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	visit := NodeVisit{
		Node:     *node,
		Outgoing: w.flow.OutgoingEdges(node.ID),
	}

	step := domain.NewFlowExecutionStep(w.exec.ID, *node, int(w.seq.Add(1)))
	step.Input = execCtx.Fork()
	now := time.Now()
	step.StartedAt = &now
	step.Status = domain.StepRunning

	if err := w.engine.ledger.CreateStep(ctx, step); err != nil {
		return nil, err
	}

	w.engine.notifyStepStarted(step)

	results, execErr := w.execute(ctx, visit, execCtx, step)

	done := time.Now()
	step.CompletedAt = &done

	if execErr != nil {
		step.Status = domain.StepFailed
		step.ErrorMessage = execErr.Error()
		w.engine.metrics.IncrementStepsFailed()
	} else {
		step.Status = domain.StepCompleted
		step.Output = domain.ExecutionContext(results)
		w.engine.metrics.IncrementStepsExecuted()
	}

	if err := w.engine.ledger.UpdateStep(ctx, step); err != nil {
		w.engine.logger.Error("failed to update step record",
			"execution_id", w.exec.ID,
			"step_id", step.ID,
			"error", err)
	}

	w.engine.notifyStepFinished(step)

	if execErr != nil {
		// A handler error is not retried locally; it aborts the whole run.
		return nil, execErr
	}

	next := execCtx.With(results)

	switch len(visit.Outgoing) {
	case 0:
		return next, nil

	case 1:
		target, ok := w.flow.NodeByID(visit.Outgoing[0].Target)
		if !ok {
			return nil, domain.NewValidationError(fmt.Sprintf("edge from %s targets unknown node %s", node.ID, visit.Outgoing[0].Target))
		}
		return w.visit(ctx, target, next)

	default:
		return w.fanOut(ctx, node, visit.Outgoing, next)
	}
}

func (w *walker) execute(ctx context.Context, visit NodeVisit, execCtx domain.ExecutionContext, step *domain.FlowExecutionStep) (map[string]interface{}, error) {
	handler, err := w.engine.handlers.Get(visit.Node.Type)
	if err != nil {
		return nil, err
	}

	nodeCtx := ctx
	if w.engine.config.NodeExecutionTimeout > 0 {
		var cancel context.CancelFunc
		nodeCtx, cancel = context.WithTimeout(ctx, w.engine.config.NodeExecutionTimeout)
		defer cancel()
	}

	return handler.Execute(nodeCtx, visit, execCtx, step)
}

// fanOut visits every target with an independent copy of the context, each
// branch on an idle pool worker or inline in this goroutine, then blocks
// until all branches finish or the join timeout elapses. Branch results are reduced into the parent context in completion
// order. A failed branch fails the run, but siblings already in flight are
// awaited, not forcibly cancelled.
func (w *walker) fanOut(ctx context.Context, node *domain.Node, edges []domain.Edge, execCtx domain.ExecutionContext) (domain.ExecutionContext, error) {
	type branchResult struct {
		target string
		out    domain.ExecutionContext
		err    error
	}

	w.engine.logger.Debug("fanning out parallel branches",
		"execution_id", w.exec.ID,
		"node_id", node.ID,
		"branches", len(edges),
		"join_timeout", w.joinTimeout)

	results := make(chan branchResult, len(edges))
	launched := 0

	for _, edge := range edges {
		target, ok := w.flow.NodeByID(edge.Target)
		if !ok {
			return nil, domain.NewValidationError(fmt.Sprintf("edge from %s targets unknown node %s", node.ID, edge.Target))
		}

		branchCtx := execCtx.Fork()
		launched++
		w.engine.pool.SubmitOrRun(func() {
			out, err := w.visit(ctx, target, branchCtx)
			results <- branchResult{target: target.ID, out: out, err: err}
		})
	}

	timeout := time.NewTimer(w.joinTimeout)
	defer timeout.Stop()

	merged := execCtx
	var firstErr error

	for completed := 0; completed < launched; completed++ {
		select {
		case r := <-results:
			if r.err != nil {
				if firstErr == nil {
					firstErr = r.err
				}
				w.engine.logger.Error("parallel branch failed",
					"execution_id", w.exec.ID,
					"node_id", node.ID,
					"branch_target", r.target,
					"error", r.err)
				continue
			}
			if firstErr != nil {
				continue
			}
			next, err := domain.MergeContexts(merged, r.out)
			if err != nil {
				firstErr = err
				continue
			}
			merged = next

		case <-timeout.C:
			return nil, fmt.Errorf("%w: %d of %d branches still running after %s",
				domain.ErrJoinTimeout, launched-completed, launched, w.joinTimeout)
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}

	return merged, nil
}
