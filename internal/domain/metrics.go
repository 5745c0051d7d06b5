package domain

import (
	"sync/atomic"
)

// ExecutionMetrics are process-wide atomic counters over runs, steps, and
// deployments.
type ExecutionMetrics struct {
	RunsStarted   int64 `json:"runs_started"`
	RunsCompleted int64 `json:"runs_completed"`
	RunsFailed    int64 `json:"runs_failed"`
	RunsCancelled int64 `json:"runs_cancelled"`
	RunsRetried   int64 `json:"runs_retried"`

	StepsExecuted int64 `json:"steps_executed"`
	StepsFailed   int64 `json:"steps_failed"`

	FilesProcessed int64 `json:"files_processed"`
	BytesProcessed int64 `json:"bytes_processed"`

	DeploysSucceeded  int64 `json:"deploys_succeeded"`
	DeploysFailed     int64 `json:"deploys_failed"`
	DeploysRolledBack int64 `json:"deploys_rolled_back"`
	Undeploys         int64 `json:"undeploys"`
}

func NewExecutionMetrics() *ExecutionMetrics {
	return &ExecutionMetrics{}
}

func (m *ExecutionMetrics) IncrementRunsStarted()   { atomic.AddInt64(&m.RunsStarted, 1) }
func (m *ExecutionMetrics) IncrementRunsCompleted() { atomic.AddInt64(&m.RunsCompleted, 1) }
func (m *ExecutionMetrics) IncrementRunsFailed()    { atomic.AddInt64(&m.RunsFailed, 1) }
func (m *ExecutionMetrics) IncrementRunsCancelled() { atomic.AddInt64(&m.RunsCancelled, 1) }
func (m *ExecutionMetrics) IncrementRunsRetried()   { atomic.AddInt64(&m.RunsRetried, 1) }
func (m *ExecutionMetrics) IncrementStepsExecuted() { atomic.AddInt64(&m.StepsExecuted, 1) }
func (m *ExecutionMetrics) IncrementStepsFailed()   { atomic.AddInt64(&m.StepsFailed, 1) }

func (m *ExecutionMetrics) AddFilesProcessed(n int64) { atomic.AddInt64(&m.FilesProcessed, n) }
func (m *ExecutionMetrics) AddBytesProcessed(n int64) { atomic.AddInt64(&m.BytesProcessed, n) }

func (m *ExecutionMetrics) IncrementDeploysSucceeded()  { atomic.AddInt64(&m.DeploysSucceeded, 1) }
func (m *ExecutionMetrics) IncrementDeploysFailed()     { atomic.AddInt64(&m.DeploysFailed, 1) }
func (m *ExecutionMetrics) IncrementDeploysRolledBack() { atomic.AddInt64(&m.DeploysRolledBack, 1) }
func (m *ExecutionMetrics) IncrementUndeploys()         { atomic.AddInt64(&m.Undeploys, 1) }

func (m *ExecutionMetrics) GetSnapshot() ExecutionMetrics {
	return ExecutionMetrics{
		RunsStarted:       atomic.LoadInt64(&m.RunsStarted),
		RunsCompleted:     atomic.LoadInt64(&m.RunsCompleted),
		RunsFailed:        atomic.LoadInt64(&m.RunsFailed),
		RunsCancelled:     atomic.LoadInt64(&m.RunsCancelled),
		RunsRetried:       atomic.LoadInt64(&m.RunsRetried),
		StepsExecuted:     atomic.LoadInt64(&m.StepsExecuted),
		StepsFailed:       atomic.LoadInt64(&m.StepsFailed),
		FilesProcessed:    atomic.LoadInt64(&m.FilesProcessed),
		BytesProcessed:    atomic.LoadInt64(&m.BytesProcessed),
		DeploysSucceeded:  atomic.LoadInt64(&m.DeploysSucceeded),
		DeploysFailed:     atomic.LoadInt64(&m.DeploysFailed),
		DeploysRolledBack: atomic.LoadInt64(&m.DeploysRolledBack),
		Undeploys:         atomic.LoadInt64(&m.Undeploys),
	}
}
