package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interlace-io/interlace/internal/adapters/ledger"
	"github.com/interlace-io/interlace/internal/adapters/registry"
	"github.com/interlace-io/interlace/internal/domain"
)

type fakeAdapterExec struct {
	fn func(ctx context.Context, adapterID string, execCtx domain.ExecutionContext, step *domain.FlowExecutionStep) (map[string]interface{}, error)
}

func (f *fakeAdapterExec) Execute(ctx context.Context, adapterID string, execCtx domain.ExecutionContext, step *domain.FlowExecutionStep) (map[string]interface{}, error) {
	return f.fn(ctx, adapterID, execCtx, step)
}

type fakeUtilityExec struct {
	fn func(ctx context.Context, utilityType string, config map[string]interface{}, execCtx domain.ExecutionContext, step *domain.FlowExecutionStep) (map[string]interface{}, error)
}

func (f *fakeUtilityExec) Execute(ctx context.Context, utilityType string, config map[string]interface{}, execCtx domain.ExecutionContext, step *domain.FlowExecutionStep) (map[string]interface{}, error) {
	return f.fn(ctx, utilityType, config, execCtx, step)
}

type engineRig struct {
	db          *badger.DB
	adapters    *registry.AdapterStore
	deployments *registry.DeploymentStore
	ledger      *ledger.Store
	engine      *Engine
}

func newEngineRig(t *testing.T, adapterExec *fakeAdapterExec, utilityExec *fakeUtilityExec) *engineRig {
	t.Helper()
	return newEngineRigWithConfig(t, domain.EngineConfig{
		WorkerCount:   4,
		JoinTimeout:   domain.DefaultJoinTimeout,
		QueueCapacity: 16,
		Environment:   "test",
	}, adapterExec, utilityExec)
}

func newEngineRigWithConfig(t *testing.T, cfg domain.EngineConfig, adapterExec *fakeAdapterExec, utilityExec *fakeUtilityExec) *engineRig {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	rig := &engineRig{
		db:          db,
		adapters:    registry.NewAdapterStore(db, logger),
		deployments: registry.NewDeploymentStore(db, logger),
		ledger:      ledger.NewStore(db, logger),
	}

	if utilityExec == nil {
		utilityExec = &fakeUtilityExec{fn: func(_ context.Context, _ string, _ map[string]interface{}, _ domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
			return nil, nil
		}}
	}

	rig.engine = NewEngine(cfg, Deps{
		Ledger:      rig.ledger,
		Deployments: rig.deployments,
		Registry:    rig.adapters,
		AdapterExec: adapterExec,
		UtilityExec: utilityExec,
	}, logger)

	require.NoError(t, rig.engine.Start(context.Background()))
	t.Cleanup(func() { rig.engine.Stop() })

	return rig
}

func (r *engineRig) saveAdapter(t *testing.T, id string, dir domain.Direction) {
	t.Helper()
	require.NoError(t, r.adapters.SaveAdapter(context.Background(), &domain.Adapter{
		ID:        id,
		Name:      id,
		Active:    true,
		Direction: dir,
		Status:    domain.StatusStarted(),
	}))
}

func (r *engineRig) deploy(t *testing.T, flow *domain.FlowDefinition) *domain.DeployedFlow {
	t.Helper()
	deployment := domain.NewDeployedFlow(flow, "test")
	require.NoError(t, r.deployments.SaveDeployment(context.Background(), deployment))
	return deployment
}

func sequentialFlow() *domain.FlowDefinition {
	return &domain.FlowDefinition{
		ID:      "flow-seq",
		Version: 1,
		Nodes: []domain.Node{
			{ID: "n1", Type: domain.NodeTypeStart},
			{ID: "n2", Type: domain.NodeTypeAdapter, Data: map[string]interface{}{"adapterId": "a1"}},
			{ID: "n3", Type: domain.NodeTypeEnd},
		},
		Edges: []domain.Edge{
			{Source: "n1", Target: "n2"},
			{Source: "n2", Target: "n3"},
		},
	}
}

func TestExecute_SequentialRunRecordsOrderedSteps(t *testing.T) {
	exec := &fakeAdapterExec{fn: func(_ context.Context, _ string, execCtx domain.ExecutionContext, step *domain.FlowExecutionStep) (map[string]interface{}, error) {
		step.FilesProcessed = 2
		step.BytesProcessed = 100
		return map[string]interface{}{"transferred": true}, nil
	}}
	rig := newEngineRig(t, exec, nil)
	rig.saveAdapter(t, "a1", domain.DirectionSender)
	rig.deploy(t, sequentialFlow())

	payload := map[string]interface{}{
		domain.KeyTriggerData: map[string]interface{}{
			domain.KeyFoundFiles: []interface{}{"a.csv", "b.csv"},
		},
	}

	handle, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, payload)
	require.NoError(t, err)

	result, err := handle.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.ExecutionCompleted, result.Status)
	assert.Equal(t, int64(2), result.FilesProcessed)
	assert.Equal(t, int64(100), result.BytesProcessed)
	assert.Equal(t, result.ID, result.Context[domain.KeyCorrelationID])
	assert.Len(t, result.Context.Files(domain.KeyReceiverFiles), 2)

	// The configured environment is seeded into every run context.
	assert.Equal(t, "test", result.Context[domain.KeyEnvironment])

	steps, err := rig.ledger.ListSteps(context.Background(), result.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	for i, step := range steps {
		assert.Equal(t, i+1, step.Sequence)
		assert.Equal(t, domain.StepCompleted, step.Status)
	}
	assert.Equal(t, "n1", steps[0].NodeID)
	assert.Equal(t, "n2", steps[1].NodeID)
	assert.Equal(t, "n3", steps[2].NodeID)

	// Step inputs are snapshots, not references into the live context.
	assert.NotContains(t, steps[1].Input, "transferred")
	assert.Equal(t, true, steps[2].Input["transferred"])
}

func TestExecute_NotDeployed(t *testing.T) {
	rig := newEngineRig(t, &fakeAdapterExec{}, nil)

	_, err := rig.engine.Execute(context.Background(), "ghost-flow", domain.TriggerManual, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotDeployed))
}

func TestExecute_FanOutRunsBranchesConcurrently(t *testing.T) {
	const branchDelay = 200 * time.Millisecond

	exec := &fakeAdapterExec{fn: func(ctx context.Context, adapterID string, _ domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
		time.Sleep(branchDelay)
		return map[string]interface{}{"done-" + adapterID: true}, nil
	}}
	rig := newEngineRig(t, exec, nil)
	rig.saveAdapter(t, "a1", domain.DirectionReceiver)
	rig.saveAdapter(t, "a2", domain.DirectionReceiver)

	flow := &domain.FlowDefinition{
		ID:      "flow-fan",
		Version: 1,
		Nodes: []domain.Node{
			{ID: "n1", Type: domain.NodeTypeStart},
			{ID: "split", Type: domain.NodeTypeParallelSplit},
			{ID: "b1", Type: domain.NodeTypeAdapter, Data: map[string]interface{}{"adapterId": "a1"}},
			{ID: "b2", Type: domain.NodeTypeAdapter, Data: map[string]interface{}{"adapterId": "a2"}},
		},
		Edges: []domain.Edge{
			{Source: "n1", Target: "split"},
			{Source: "split", Target: "b1"},
			{Source: "split", Target: "b2"},
		},
	}
	rig.deploy(t, flow)

	started := time.Now()
	handle, err := rig.engine.Execute(context.Background(), "flow-fan", domain.TriggerManual, nil)
	require.NoError(t, err)

	result, err := handle.Wait(context.Background())
	require.NoError(t, err)
	elapsed := time.Since(started)

	assert.Equal(t, domain.ExecutionCompleted, result.Status)
	// Branches overlap: wall time tracks the slowest branch, not the sum.
	assert.Less(t, elapsed, 2*branchDelay)

	// Both branch results survive the join merge.
	assert.Equal(t, true, result.Context["done-a1"])
	assert.Equal(t, true, result.Context["done-a2"])

	steps, err := rig.ledger.ListSteps(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 4)
}

func TestExecute_FanOutCompletesWithSingleWorker(t *testing.T) {
	rig := newEngineRigWithConfig(t, domain.EngineConfig{
		WorkerCount:   1,
		JoinTimeout:   domain.DefaultJoinTimeout,
		QueueCapacity: 64,
		Environment:   "test",
	}, &fakeAdapterExec{}, nil)

	flow := &domain.FlowDefinition{
		ID:      "flow-narrow",
		Version: 1,
		Nodes: []domain.Node{
			{ID: "n1", Type: domain.NodeTypeStart},
			{ID: "e1", Type: domain.NodeTypeEnd},
			{ID: "e2", Type: domain.NodeTypeEnd},
		},
		Edges: []domain.Edge{
			{Source: "n1", Target: "e1"},
			{Source: "n1", Target: "e2"},
		},
	}
	rig.deploy(t, flow)

	started := time.Now()
	handle, err := rig.engine.Execute(context.Background(), "flow-narrow", domain.TriggerManual, nil)
	require.NoError(t, err)

	result, err := handle.Wait(context.Background())
	require.NoError(t, err)

	// The only worker holds the fanning-out parent; branches must still make
	// progress instead of waiting behind it until the join times out.
	assert.Equal(t, domain.ExecutionCompleted, result.Status)
	assert.Less(t, time.Since(started), domain.MinJoinTimeout)

	steps, err := rig.ledger.ListSteps(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 3)
}

func TestExecute_RunDeadlineEnforced(t *testing.T) {
	exec := &fakeAdapterExec{fn: func(ctx context.Context, _ string, _ domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	rig := newEngineRigWithConfig(t, domain.EngineConfig{
		WorkerCount:   4,
		JoinTimeout:   domain.DefaultJoinTimeout,
		QueueCapacity: 16,
		RunTimeout:    50 * time.Millisecond,
	}, exec, nil)
	rig.saveAdapter(t, "a1", domain.DirectionSender)
	rig.deploy(t, sequentialFlow())

	handle, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	require.NoError(t, err)

	result, err := handle.Wait(context.Background())
	require.NoError(t, err)

	require.NotNil(t, result.Deadline)
	assert.Equal(t, domain.ExecutionFailed, result.Status)
	require.NotNil(t, result.ErrorDetail)
	assert.Equal(t, "timeout", result.ErrorDetail.Kind)
}

func TestExecute_FailingAdapterFailsRunWithDetail(t *testing.T) {
	exec := &fakeAdapterExec{fn: func(_ context.Context, _ string, _ domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
		return nil, errors.New("remote host closed connection")
	}}
	rig := newEngineRig(t, exec, nil)
	rig.saveAdapter(t, "a1", domain.DirectionSender)
	rig.deploy(t, sequentialFlow())

	handle, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	require.NoError(t, err)

	result, err := handle.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.ExecutionFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "remote host closed connection")
	require.NotNil(t, result.ErrorDetail)
	assert.Equal(t, "execution", result.ErrorDetail.Kind)

	steps, err := rig.ledger.ListSteps(context.Background(), result.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, domain.StepCompleted, steps[0].Status)
	assert.Equal(t, domain.StepFailed, steps[1].Status)
	assert.NotEmpty(t, steps[1].ErrorMessage)
}

func TestExecute_MissingStartNodeFailsBeforeAnyStep(t *testing.T) {
	rig := newEngineRig(t, &fakeAdapterExec{}, nil)

	flow := &domain.FlowDefinition{
		ID:      "flow-headless",
		Version: 1,
		Nodes:   []domain.Node{{ID: "n1", Type: domain.NodeTypeEnd}},
	}
	rig.deploy(t, flow)

	handle, err := rig.engine.Execute(context.Background(), "flow-headless", domain.TriggerManual, nil)
	require.NoError(t, err)

	result, err := handle.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.ExecutionFailed, result.Status)
	require.NotNil(t, result.ErrorDetail)
	assert.Equal(t, "configuration", result.ErrorDetail.Kind)

	steps, err := rig.ledger.ListSteps(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestCancelExecution_StopsRunBeforeNextNode(t *testing.T) {
	entered := make(chan struct{})
	exec := &fakeAdapterExec{fn: func(ctx context.Context, _ string, _ domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	rig := newEngineRig(t, exec, nil)
	rig.saveAdapter(t, "a1", domain.DirectionSender)
	rig.deploy(t, sequentialFlow())

	handle, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	require.NoError(t, err)

	<-entered
	require.NoError(t, rig.engine.CancelExecution(context.Background(), handle.ExecutionID))

	result, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCancelled, result.Status)

	stored, err := rig.ledger.GetExecution(context.Background(), handle.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCancelled, stored.Status)

	// The end node never ran.
	steps, err := rig.ledger.ListSteps(context.Background(), handle.ExecutionID)
	require.NoError(t, err)
	assert.Len(t, steps, 2)
}

func TestCancelExecution_TerminalRunIsConflict(t *testing.T) {
	exec := &fakeAdapterExec{fn: func(_ context.Context, _ string, _ domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
		return nil, nil
	}}
	rig := newEngineRig(t, exec, nil)
	rig.saveAdapter(t, "a1", domain.DirectionSender)
	rig.deploy(t, sequentialFlow())

	handle, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	require.NoError(t, err)
	_, err = handle.Wait(context.Background())
	require.NoError(t, err)

	err = rig.engine.CancelExecution(context.Background(), handle.ExecutionID)
	require.Error(t, err)

	var de domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.ErrorTypeConflict, de.Type)
}

func TestRetryExecution_ReusesRunIdentityAndPurgesSteps(t *testing.T) {
	var failFirst atomic.Bool
	failFirst.Store(true)

	exec := &fakeAdapterExec{fn: func(_ context.Context, _ string, _ domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
		if failFirst.Swap(false) {
			return nil, errors.New("transient network error")
		}
		return nil, nil
	}}
	rig := newEngineRig(t, exec, nil)
	rig.saveAdapter(t, "a1", domain.DirectionSender)
	rig.deploy(t, sequentialFlow())

	handle, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	require.NoError(t, err)
	first, err := handle.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionFailed, first.Status)

	retryHandle, err := rig.engine.RetryExecution(context.Background(), first.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, retryHandle.ExecutionID)

	second, err := retryHandle.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.ExecutionCompleted, second.Status)
	assert.Equal(t, 1, second.RetryAttempt)
	assert.Equal(t, domain.TriggerRetry, second.TriggerType)
	assert.Empty(t, second.ErrorMessage)
	assert.Nil(t, second.ErrorDetail)

	steps, err := rig.ledger.ListSteps(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for _, step := range steps {
		assert.Equal(t, domain.StepCompleted, step.Status)
	}
}

func TestRetryExecution_OnlyFailedRunsRetry(t *testing.T) {
	exec := &fakeAdapterExec{fn: func(_ context.Context, _ string, _ domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
		return nil, nil
	}}
	rig := newEngineRig(t, exec, nil)
	rig.saveAdapter(t, "a1", domain.DirectionSender)
	rig.deploy(t, sequentialFlow())

	handle, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	require.NoError(t, err)
	_, err = handle.Wait(context.Background())
	require.NoError(t, err)

	_, err = rig.engine.RetryExecution(context.Background(), handle.ExecutionID, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRunNotRetryable))
}

func TestRetryExecution_DelayedRetryParksInRetryPending(t *testing.T) {
	var failFirst atomic.Bool
	failFirst.Store(true)

	exec := &fakeAdapterExec{fn: func(_ context.Context, _ string, _ domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
		if failFirst.Swap(false) {
			return nil, errors.New("transient")
		}
		return nil, nil
	}}
	rig := newEngineRig(t, exec, nil)
	rig.saveAdapter(t, "a1", domain.DirectionSender)
	rig.deploy(t, sequentialFlow())

	handle, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	require.NoError(t, err)
	first, err := handle.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionFailed, first.Status)

	retryHandle, err := rig.engine.RetryExecution(context.Background(), first.ID, 50*time.Millisecond)
	require.NoError(t, err)

	parked, err := rig.ledger.GetExecution(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionRetryPending, parked.Status)

	second, err := retryHandle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCompleted, second.Status)
}

func TestRetryExecution_ZeroDelayUsesConfiguredBackoff(t *testing.T) {
	var failFirst atomic.Bool
	failFirst.Store(true)

	exec := &fakeAdapterExec{fn: func(_ context.Context, _ string, _ domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
		if failFirst.Swap(false) {
			return nil, errors.New("transient")
		}
		return nil, nil
	}}
	rig := newEngineRigWithConfig(t, domain.EngineConfig{
		WorkerCount:   4,
		JoinTimeout:   domain.DefaultJoinTimeout,
		QueueCapacity: 16,
		RetryBackoff:  150 * time.Millisecond,
	}, exec, nil)
	rig.saveAdapter(t, "a1", domain.DirectionSender)
	rig.deploy(t, sequentialFlow())

	handle, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	require.NoError(t, err)
	first, err := handle.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionFailed, first.Status)

	retryHandle, err := rig.engine.RetryExecution(context.Background(), first.ID, 0)
	require.NoError(t, err)

	// No explicit delay was given, so the configured backoff applies and the
	// run parks before re-dispatch.
	parked, err := rig.ledger.GetExecution(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionRetryPending, parked.Status)

	second, err := retryHandle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCompleted, second.Status)
}

func TestCancelExecution_QueuedRunStaysCancelled(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)

	exec := &fakeAdapterExec{fn: func(_ context.Context, _ string, _ domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil, nil
	}}
	rig := newEngineRigWithConfig(t, domain.EngineConfig{
		WorkerCount:   1,
		JoinTimeout:   domain.DefaultJoinTimeout,
		QueueCapacity: 4,
	}, exec, nil)
	rig.saveAdapter(t, "a1", domain.DirectionSender)
	rig.deploy(t, sequentialFlow())

	first, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	require.NoError(t, err)
	<-entered

	// The second run queues behind the occupied worker and is cancelled
	// before it ever starts.
	second, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	require.NoError(t, err)
	require.NoError(t, rig.engine.CancelExecution(context.Background(), second.ExecutionID))

	close(release)

	firstResult, err := first.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCompleted, firstResult.Status)

	secondResult, err := second.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCancelled, secondResult.Status)
	assert.Nil(t, secondResult.StartedAt)

	stored, err := rig.ledger.GetExecution(context.Background(), second.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCancelled, stored.Status)

	assert.Equal(t, int64(1), rig.engine.GetMetrics().RunsCancelled)
}

func TestCancelExecution_RemovesScheduledRetry(t *testing.T) {
	exec := &fakeAdapterExec{fn: func(_ context.Context, _ string, _ domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
		return nil, errors.New("always fails")
	}}
	rig := newEngineRig(t, exec, nil)
	rig.saveAdapter(t, "a1", domain.DirectionSender)
	rig.deploy(t, sequentialFlow())

	handle, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	require.NoError(t, err)
	first, err := handle.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionFailed, first.Status)

	_, err = rig.engine.RetryExecution(context.Background(), first.ID, time.Hour)
	require.NoError(t, err)

	require.NoError(t, rig.engine.CancelExecution(context.Background(), first.ID))

	stored, err := rig.ledger.GetExecution(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCancelled, stored.Status)
}

func TestExecute_DeploymentStatsFoldInTerminalRuns(t *testing.T) {
	exec := &fakeAdapterExec{fn: func(_ context.Context, _ string, _ domain.ExecutionContext, step *domain.FlowExecutionStep) (map[string]interface{}, error) {
		step.FilesProcessed = 1
		return nil, nil
	}}
	rig := newEngineRig(t, exec, nil)
	rig.saveAdapter(t, "a1", domain.DirectionSender)
	deployment := rig.deploy(t, sequentialFlow())

	handle, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	require.NoError(t, err)
	_, err = handle.Wait(context.Background())
	require.NoError(t, err)

	fresh, err := rig.deployments.GetDeployment(context.Background(), deployment.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(1), fresh.Stats.TotalRuns)
	assert.Equal(t, int64(1), fresh.Stats.SuccessfulRuns)
	assert.Equal(t, int64(1), fresh.Stats.TotalFiles)
	assert.Equal(t, domain.ExecutionCompleted, fresh.Stats.LastRunStatus)
}

func TestExecute_InactiveAdapterFailsRun(t *testing.T) {
	exec := &fakeAdapterExec{fn: func(_ context.Context, _ string, _ domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
		t.Fatal("executor must not be called for an inactive adapter")
		return nil, nil
	}}
	rig := newEngineRig(t, exec, nil)
	require.NoError(t, rig.adapters.SaveAdapter(context.Background(), &domain.Adapter{
		ID:     "a1",
		Name:   "a1",
		Active: false,
		Status: domain.StatusStopped(),
	}))
	rig.deploy(t, sequentialFlow())

	handle, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	require.NoError(t, err)

	result, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "not active")
}

func TestEngine_StartStopLifecycle(t *testing.T) {
	rig := newEngineRig(t, &fakeAdapterExec{}, nil)

	assert.True(t, errors.Is(rig.engine.Start(context.Background()), domain.ErrAlreadyStarted))
	require.NoError(t, rig.engine.Stop())
	assert.True(t, errors.Is(rig.engine.Stop(), domain.ErrNotStarted))

	_, err := rig.engine.Execute(context.Background(), "flow-seq", domain.TriggerManual, nil)
	assert.Error(t, err)
}
