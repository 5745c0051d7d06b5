package engine

import (
	"context"
	"sync"

	"github.com/interlace-io/interlace/internal/domain"
)

// RunHandle tracks one asynchronous run. Callers that want the outcome block
// on Wait; fire-and-forget callers just keep the execution id.
type RunHandle struct {
	ExecutionID string

	once  sync.Once
	done  chan struct{}
	final *domain.FlowExecution
	err   error
}

func newRunHandle(executionID string) *RunHandle {
	return &RunHandle{
		ExecutionID: executionID,
		done:        make(chan struct{}),
	}
}

func (h *RunHandle) complete(exec *domain.FlowExecution) {
	h.once.Do(func() {
		h.final = exec
		close(h.done)
	})
}

func (h *RunHandle) fail(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Done is closed once the run reached a terminal state (or dispatch failed).
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run finishes or ctx expires.
func (h *RunHandle) Wait(ctx context.Context) (*domain.FlowExecution, error) {
	select {
	case <-h.done:
		return h.final, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
