// Package engine interprets deployed flow graphs at run time. Runs are
// dispatched asynchronously onto a bounded worker pool; all execution
// failures are captured into the run record and never escape Run.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/interlace-io/interlace/internal/domain"
	"github.com/interlace-io/interlace/internal/ports"
)

type Engine struct {
	config      domain.EngineConfig
	ledger      ports.LedgerPort
	deployments ports.DeploymentStorePort
	handlers    *HandlerRegistry
	events      ports.NotificationPort
	metrics     *domain.ExecutionMetrics
	pool        *workerPool
	logger      *slog.Logger

	mu          sync.Mutex
	activeRuns  map[string]context.CancelFunc
	retryTimers map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

// Deps are the collaborators the engine and its built-in node handlers need.
type Deps struct {
	Ledger      ports.LedgerPort
	Deployments ports.DeploymentStorePort
	Registry    ports.AdapterRegistryPort
	AdapterExec ports.AdapterExecutorPort
	UtilityExec ports.UtilityExecutorPort
	Events      ports.NotificationPort
	Metrics     *domain.ExecutionMetrics
}

func NewEngine(config domain.EngineConfig, deps Deps, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = domain.NewExecutionMetrics()
	}

	e := &Engine{
		config:      config,
		ledger:      deps.Ledger,
		deployments: deps.Deployments,
		handlers:    NewHandlerRegistry(),
		events:      deps.Events,
		metrics:     deps.Metrics,
		logger:      logger.With("component", "engine"),
		activeRuns:  make(map[string]context.CancelFunc),
		retryTimers: make(map[string]*time.Timer),
	}

	e.handlers.Register(&startHandler{})
	e.handlers.Register(&endHandler{})
	e.handlers.Register(&messageEndHandler{registry: deps.Registry, adapterExec: deps.AdapterExec, logger: e.logger})
	e.handlers.Register(&adapterHandler{registry: deps.Registry, adapterExec: deps.AdapterExec, logger: e.logger})
	e.handlers.Register(&utilityHandler{utilityExec: deps.UtilityExec})
	e.handlers.Register(&decisionHandler{logger: e.logger})
	e.handlers.Register(&parallelSplitHandler{})

	return e
}

// RegisterHandler installs or replaces the handler for a node type.
func (e *Engine) RegisterHandler(handler NodeHandler) {
	e.handlers.Register(handler)
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pool != nil {
		return domain.ErrAlreadyStarted
	}

	e.ctx, e.cancel = context.WithCancel(ctx)
	e.pool = newWorkerPool(e.config.WorkerCount, e.config.QueueCapacity)

	e.logger.Info("execution engine started",
		"worker_count", e.config.WorkerCount,
		"join_timeout", domain.ClampJoinTimeout(e.config.JoinTimeout))

	return nil
}

func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.pool == nil {
		e.mu.Unlock()
		return domain.ErrNotStarted
	}

	for id, timer := range e.retryTimers {
		timer.Stop()
		delete(e.retryTimers, id)
	}
	e.cancel()
	pool := e.pool
	e.pool = nil
	e.mu.Unlock()

	pool.Stop()
	e.logger.Info("execution engine stopped")
	return nil
}

// Execute persists a PENDING run for the flow's current deployment, hands it
// to the worker pool, and returns a handle immediately.
func (e *Engine) Execute(ctx context.Context, flowID string, trigger domain.TriggerType, payload map[string]interface{}) (*RunHandle, error) {
	deployments, err := e.deployments.GetDeploymentsByFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if len(deployments) == 0 {
		return nil, domain.ErrNotDeployed
	}
	deployment := deployments[0]

	exec := domain.NewFlowExecution(flowID, deployment.ID, trigger, payload)
	exec.Deadline = e.runDeadline()
	if err := e.ledger.CreateExecution(ctx, exec); err != nil {
		return nil, err
	}

	e.logger.Debug("run accepted",
		"execution_id", exec.ID,
		"flow_id", flowID,
		"trigger", string(trigger))

	return e.submitRun(exec, deployment.ID)
}

// GetExecution looks up a run by id.
func (e *Engine) GetExecution(ctx context.Context, executionID string) (*domain.FlowExecution, error) {
	return e.ledger.GetExecution(ctx, executionID)
}

// ListSteps returns a run's step records in sequence order.
func (e *Engine) ListSteps(ctx context.Context, executionID string) ([]domain.FlowExecutionStep, error) {
	return e.ledger.ListSteps(ctx, executionID)
}

// CancelExecution is cooperative: it transitions the run and its RUNNING
// steps to CANCELLED and signals the walker, which checks at every node
// entry. A handler already executing on a worker is not interrupted. A
// RETRY_PENDING run is cancelled by removing its scheduled retry.
func (e *Engine) CancelExecution(ctx context.Context, executionID string) error {
	exec, err := e.ledger.GetExecution(ctx, executionID)
	if err != nil {
		return err
	}
	if exec.Status.Terminal() {
		return domain.Error{
			Type:    domain.ErrorTypeConflict,
			Message: "run is already terminal",
			Details: map[string]interface{}{"execution_id": executionID, "status": string(exec.Status)},
		}
	}

	e.mu.Lock()
	if timer, ok := e.retryTimers[executionID]; ok {
		timer.Stop()
		delete(e.retryTimers, executionID)
	}
	if cancelRun, ok := e.activeRuns[executionID]; ok {
		cancelRun()
	}
	e.mu.Unlock()

	now := time.Now()
	exec.Status = domain.ExecutionCancelled
	exec.CompletedAt = &now
	if exec.StartedAt != nil {
		exec.Duration = now.Sub(*exec.StartedAt)
	}
	if err := e.ledger.UpdateExecution(ctx, exec); err != nil {
		return err
	}

	steps, err := e.ledger.ListSteps(ctx, executionID)
	if err == nil {
		for i := range steps {
			if steps[i].Status != domain.StepRunning {
				continue
			}
			steps[i].Status = domain.StepCancelled
			steps[i].CompletedAt = &now
			if err := e.ledger.UpdateStep(ctx, &steps[i]); err != nil {
				e.logger.Warn("failed to mark step cancelled",
					"execution_id", executionID,
					"step_id", steps[i].ID,
					"error", err)
			}
		}
	}

	e.metrics.IncrementRunsCancelled()
	if e.events != nil {
		e.events.RunCancelled(domain.RunCancelledEvent{
			ExecutionID: executionID,
			FlowID:      exec.FlowID,
			CancelledAt: now,
		})
	}

	e.logger.Info("run cancelled", "execution_id", executionID)
	return nil
}

// RetryExecution re-runs a FAILED run under the same identity: prior steps
// are purged, the attempt counter increments, and the run goes back through
// PENDING. A positive delay parks the run in RETRY_PENDING first; a zero
// delay falls back to the configured retry backoff.
func (e *Engine) RetryExecution(ctx context.Context, executionID string, delay time.Duration) (*RunHandle, error) {
	exec, err := e.ledger.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if exec.Status != domain.ExecutionFailed {
		return nil, domain.ErrRunNotRetryable
	}

	if delay == 0 {
		delay = e.config.RetryBackoff
	}

	if delay > 0 {
		exec.Status = domain.ExecutionRetryPending
		if err := e.ledger.UpdateExecution(ctx, exec); err != nil {
			return nil, err
		}

		handle := newRunHandle(executionID)
		e.mu.Lock()
		e.retryTimers[executionID] = time.AfterFunc(delay, func() {
			e.mu.Lock()
			delete(e.retryTimers, executionID)
			e.mu.Unlock()
			e.fireRetry(executionID, handle)
		})
		e.mu.Unlock()

		e.logger.Info("retry scheduled",
			"execution_id", executionID,
			"delay", delay)
		return handle, nil
	}

	handle := newRunHandle(executionID)
	e.fireRetry(executionID, handle)
	return handle, nil
}

func (e *Engine) fireRetry(executionID string, handle *RunHandle) {
	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	exec, err := e.ledger.GetExecution(ctx, executionID)
	if err != nil {
		e.logger.Error("retry failed to load execution", "execution_id", executionID, "error", err)
		handle.fail(err)
		return
	}

	purged, err := e.ledger.DeleteSteps(ctx, executionID)
	if err != nil {
		e.logger.Error("retry failed to purge steps", "execution_id", executionID, "error", err)
		handle.fail(err)
		return
	}

	exec.RetryAttempt++
	exec.TriggerType = domain.TriggerRetry
	exec.Status = domain.ExecutionPending
	exec.StartedAt = nil
	exec.CompletedAt = nil
	exec.Deadline = e.runDeadline()
	exec.Duration = 0
	exec.ErrorMessage = ""
	exec.ErrorDetail = nil
	exec.FilesProcessed = 0
	exec.BytesProcessed = 0

	if err := e.ledger.UpdateExecution(ctx, exec); err != nil {
		e.logger.Error("retry failed to reset execution", "execution_id", executionID, "error", err)
		handle.fail(err)
		return
	}

	e.metrics.IncrementRunsRetried()
	e.logger.Info("retrying run",
		"execution_id", executionID,
		"retry_attempt", exec.RetryAttempt,
		"steps_purged", purged)

	if err := e.dispatch(exec, exec.DeploymentID, handle); err != nil {
		handle.fail(err)
	}
}

func (e *Engine) submitRun(exec *domain.FlowExecution, deploymentID string) (*RunHandle, error) {
	handle := newRunHandle(exec.ID)
	if err := e.dispatch(exec, deploymentID, handle); err != nil {
		return nil, err
	}
	return handle, nil
}

func (e *Engine) dispatch(exec *domain.FlowExecution, deploymentID string, handle *RunHandle) error {
	e.mu.Lock()
	pool := e.pool
	engineCtx := e.ctx
	e.mu.Unlock()

	if pool == nil {
		return domain.ErrNotStarted
	}

	runCtx, cancelRun := context.WithCancel(engineCtx)
	e.mu.Lock()
	e.activeRuns[exec.ID] = cancelRun
	e.mu.Unlock()

	task := func() {
		defer func() {
			e.mu.Lock()
			delete(e.activeRuns, exec.ID)
			e.mu.Unlock()
			cancelRun()
		}()
		handle.complete(e.run(runCtx, exec, deploymentID))
	}

	if err := pool.Submit(task); err != nil {
		e.mu.Lock()
		delete(e.activeRuns, exec.ID)
		e.mu.Unlock()
		cancelRun()
		return err
	}

	return nil
}

// run is the synchronous core. It never returns an error: every failure is
// folded into the terminal execution record.
func (e *Engine) run(ctx context.Context, exec *domain.FlowExecution, deploymentID string) *domain.FlowExecution {
	// A cancel may have landed while the run sat in the queue. The cancel
	// path already persisted and counted it; do not resurrect the record.
	if stored, err := e.ledger.GetExecution(ctx, exec.ID); err == nil && stored.Status == domain.ExecutionCancelled {
		*exec = *stored
		return exec
	}

	deployment, err := e.deployments.GetDeployment(ctx, deploymentID)
	if err != nil {
		exec.MarkFailed("configuration", err, "")
		e.finishRun(ctx, exec, nil)
		return exec
	}
	flow := &deployment.FlowSnapshot

	if exec.Deadline != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, *exec.Deadline)
		defer cancel()
	}

	now := time.Now()
	exec.StartedAt = &now
	exec.Status = domain.ExecutionRunning
	exec.Context = e.seedContext(exec, deployment)

	if err := e.ledger.UpdateExecution(ctx, exec); err != nil {
		e.logger.Error("failed to persist running state",
			"execution_id", exec.ID,
			"error", err)
	}

	e.metrics.IncrementRunsStarted()
	if e.events != nil {
		e.events.RunStarted(domain.RunStartedEvent{
			ExecutionID:  exec.ID,
			FlowID:       exec.FlowID,
			DeploymentID: deploymentID,
			TriggerType:  exec.TriggerType,
			RetryAttempt: exec.RetryAttempt,
			StartedAt:    now,
		})
	}

	start, err := flow.StartNode()
	if err != nil {
		// Fatal configuration error, recorded before any step runs.
		exec.MarkFailed("configuration", err, "")
		e.finishRun(ctx, exec, deployment)
		return exec
	}

	w := newWalker(e, flow, exec)
	finalCtx, walkErr := w.visit(ctx, start, exec.Context)

	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) {
			e.adoptCancellation(ctx, exec)
			e.finishRun(ctx, exec, deployment)
			return exec
		}
		exec.MarkFailed(errorKind(walkErr), walkErr, causeOf(walkErr))
		e.finishRun(ctx, exec, deployment)
		return exec
	}

	exec.Context = finalCtx

	files, bytes, err := e.ledger.ExecutionTotals(ctx, exec.ID)
	if err != nil {
		e.logger.Warn("failed to aggregate step totals",
			"execution_id", exec.ID,
			"error", err)
	}
	exec.FilesProcessed = files
	exec.BytesProcessed = bytes

	exec.MarkCompleted()
	e.finishRun(ctx, exec, deployment)
	return exec
}

// seedContext builds the initial context from the run payload plus the
// deployment snapshot.
func (e *Engine) seedContext(exec *domain.FlowExecution, deployment *domain.DeployedFlow) domain.ExecutionContext {
	execCtx := domain.ExecutionContext{}
	for k, v := range exec.Payload {
		execCtx[k] = v
	}

	execCtx[domain.KeyPayload] = exec.Payload
	execCtx[domain.KeyCorrelationID] = exec.ID
	execCtx["deploymentId"] = deployment.ID
	execCtx[domain.KeyTimeoutSeconds] = int(e.config.NodeExecutionTimeout.Seconds())
	if e.config.Environment != "" {
		execCtx[domain.KeyEnvironment] = e.config.Environment
	}
	if deployment.SenderAdapterID != "" {
		execCtx[domain.KeySenderAdapter] = deployment.SenderAdapterID
	}
	if len(deployment.ReceiverAdapterIDs) > 0 {
		execCtx[domain.KeyReceiverAdapters] = deployment.ReceiverAdapterIDs
	}

	return execCtx
}

// adoptCancellation reconciles the in-flight record with a cancel that
// happened concurrently; if the cancel path did not get there first, the run
// marks itself cancelled.
func (e *Engine) adoptCancellation(ctx context.Context, exec *domain.FlowExecution) {
	stored, err := e.ledger.GetExecution(ctx, exec.ID)
	if err == nil && stored.Status == domain.ExecutionCancelled {
		*exec = *stored
		return
	}

	now := time.Now()
	exec.Status = domain.ExecutionCancelled
	exec.CompletedAt = &now
	if exec.StartedAt != nil {
		exec.Duration = now.Sub(*exec.StartedAt)
	}
	e.metrics.IncrementRunsCancelled()
}

// finishRun persists the terminal record, emits the terminal notification,
// and folds the run into the deployment's rolling statistics. Failures are
// counted, not discarded.
func (e *Engine) finishRun(ctx context.Context, exec *domain.FlowExecution, deployment *domain.DeployedFlow) {
	if err := e.ledger.UpdateExecution(ctx, exec); err != nil {
		e.logger.Error("failed to persist terminal run state",
			"execution_id", exec.ID,
			"status", string(exec.Status),
			"error", err)
	}

	switch exec.Status {
	case domain.ExecutionCompleted:
		e.metrics.IncrementRunsCompleted()
		e.metrics.AddFilesProcessed(exec.FilesProcessed)
		e.metrics.AddBytesProcessed(exec.BytesProcessed)
		if e.events != nil {
			e.events.RunCompleted(domain.RunCompletedEvent{
				ExecutionID:    exec.ID,
				FlowID:         exec.FlowID,
				Duration:       exec.Duration,
				FilesProcessed: exec.FilesProcessed,
				BytesProcessed: exec.BytesProcessed,
				CompletedAt:    *exec.CompletedAt,
			})
		}
	case domain.ExecutionFailed:
		e.metrics.IncrementRunsFailed()
		if e.events != nil {
			e.events.RunFailed(domain.RunFailedEvent{
				ExecutionID: exec.ID,
				FlowID:      exec.FlowID,
				Error:       exec.ErrorMessage,
				Detail:      exec.ErrorDetail,
				FailedAt:    time.Now(),
			})
		}
	}

	if deployment == nil {
		return
	}

	// Reload so concurrent runs of the same deployment do not clobber each
	// other's counters.
	fresh, err := e.deployments.GetDeployment(ctx, deployment.ID)
	if err != nil {
		e.logger.Warn("deployment vanished before stats update",
			"deployment_id", deployment.ID,
			"execution_id", exec.ID,
			"error", err)
		return
	}

	fresh.RecordRun(exec)
	if err := e.deployments.SaveDeployment(ctx, fresh); err != nil {
		e.logger.Error("failed to update deployment statistics",
			"deployment_id", deployment.ID,
			"error", err)
	}

	e.logger.Info("run finished",
		"execution_id", exec.ID,
		"flow_id", exec.FlowID,
		"status", string(exec.Status),
		"duration", exec.Duration,
		"files", exec.FilesProcessed,
		"bytes", exec.BytesProcessed)
}

func (e *Engine) notifyStepStarted(step *domain.FlowExecutionStep) {
	if e.events == nil {
		return
	}
	e.events.StepStarted(domain.StepStartedEvent{
		ExecutionID: step.ExecutionID,
		StepID:      step.ID,
		NodeID:      step.NodeID,
		NodeType:    step.NodeType,
		Sequence:    step.Sequence,
		StartedAt:   *step.StartedAt,
	})
}

func (e *Engine) notifyStepFinished(step *domain.FlowExecutionStep) {
	if e.events == nil {
		return
	}
	e.events.StepFinished(domain.StepFinishedEvent{
		ExecutionID: step.ExecutionID,
		StepID:      step.ID,
		NodeID:      step.NodeID,
		NodeType:    step.NodeType,
		Sequence:    step.Sequence,
		Status:      step.Status,
		Error:       step.ErrorMessage,
		FinishedAt:  *step.CompletedAt,
	})
}

func (e *Engine) GetMetrics() domain.ExecutionMetrics {
	return e.metrics.GetSnapshot()
}

// runDeadline stamps a wall-clock deadline onto new and retried runs when a
// run timeout is configured.
func (e *Engine) runDeadline() *time.Time {
	if e.config.RunTimeout <= 0 {
		return nil
	}
	d := time.Now().Add(e.config.RunTimeout)
	return &d
}

func errorKind(err error) string {
	switch {
	case domain.IsValidation(err):
		return "configuration"
	case domain.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case domain.IsNotFound(err):
		return "not_found"
	default:
		return "execution"
	}
}

func causeOf(err error) string {
	if cause := errors.Unwrap(err); cause != nil {
		return cause.Error()
	}
	return ""
}
