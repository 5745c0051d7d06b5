package domain

import (
	"time"

	"github.com/google/uuid"
)

type DeploymentStatus string

const (
	DeploymentActive DeploymentStatus = "ACTIVE"
)

// DeploymentStats are the rolling counters mutated by every run of the
// deployment.
type DeploymentStats struct {
	TotalRuns      int64           `json:"total_runs"`
	SuccessfulRuns int64           `json:"successful_runs"`
	FailedRuns     int64           `json:"failed_runs"`
	TotalFiles     int64           `json:"total_files"`
	TotalBytes     int64           `json:"total_bytes"`
	LastRunAt      *time.Time      `json:"last_run_at,omitempty"`
	LastRunStatus  ExecutionStatus `json:"last_run_status,omitempty"`
}

// DeployedFlow binds one flow version to the adapters it referenced at deploy
// time. The graph and adapter configurations are snapshotted so later edits to
// the live records never affect a running deployment.
type DeployedFlow struct {
	ID                 string                            `json:"id"`
	FlowID             string                            `json:"flow_id"`
	FlowVersion        int                               `json:"flow_version"`
	SenderAdapterID    string                            `json:"sender_adapter_id,omitempty"`
	ReceiverAdapterIDs []string                          `json:"receiver_adapter_ids,omitempty"`
	FlowSnapshot       FlowDefinition                    `json:"flow_snapshot"`
	AdapterSnapshots   map[string]map[string]interface{} `json:"adapter_snapshots,omitempty"`
	Status             DeploymentStatus                  `json:"status"`
	DeployedAt         time.Time                         `json:"deployed_at"`
	DeployedBy         string                            `json:"deployed_by,omitempty"`
	Stats              DeploymentStats                   `json:"stats"`
}

func NewDeployedFlow(flow *FlowDefinition, actor string) *DeployedFlow {
	return &DeployedFlow{
		ID:           uuid.New().String(),
		FlowID:       flow.ID,
		FlowVersion:  flow.Version,
		FlowSnapshot: *flow,
		Status:       DeploymentActive,
		DeployedAt:   time.Now(),
		DeployedBy:   actor,
	}
}

// RecordRun folds a terminal execution into the rolling statistics. Failed
// runs are counted, not discarded.
func (d *DeployedFlow) RecordRun(exec *FlowExecution) {
	d.Stats.TotalRuns++
	switch exec.Status {
	case ExecutionCompleted:
		d.Stats.SuccessfulRuns++
	case ExecutionFailed:
		d.Stats.FailedRuns++
	}
	d.Stats.TotalFiles += exec.FilesProcessed
	d.Stats.TotalBytes += exec.BytesProcessed
	now := time.Now()
	d.Stats.LastRunAt = &now
	d.Stats.LastRunStatus = exec.Status
}

// DeploySummary is returned by a successful deploy.
type DeploySummary struct {
	DeploymentID    string   `json:"deployment_id"`
	FlowID          string   `json:"flow_id"`
	FlowVersion     int      `json:"flow_version"`
	AdaptersStarted []string `json:"adapters_started"`
}

// UndeployResult reports what the best-effort undeploy actually did. Callers
// detect partial failure from the counts.
type UndeployResult struct {
	FlowID             string `json:"flow_id"`
	AdaptersStopped    int    `json:"adapters_stopped"`
	AdaptersReferenced int    `json:"adapters_referenced"`
	DeploymentsRemoved int    `json:"deployments_removed"`
}

// ValidationResult is the outcome of a pre-deploy check.
type ValidationResult struct {
	CanDeploy bool     `json:"can_deploy"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}
