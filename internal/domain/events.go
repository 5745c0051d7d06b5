package domain

import (
	"time"
)

type RunStartedEvent struct {
	ExecutionID  string      `json:"execution_id"`
	FlowID       string      `json:"flow_id"`
	DeploymentID string      `json:"deployment_id,omitempty"`
	TriggerType  TriggerType `json:"trigger_type"`
	RetryAttempt int         `json:"retry_attempt"`
	StartedAt    time.Time   `json:"started_at"`
}

type RunCompletedEvent struct {
	ExecutionID    string        `json:"execution_id"`
	FlowID         string        `json:"flow_id"`
	Duration       time.Duration `json:"duration"`
	FilesProcessed int64         `json:"files_processed"`
	BytesProcessed int64         `json:"bytes_processed"`
	CompletedAt    time.Time     `json:"completed_at"`
}

type RunFailedEvent struct {
	ExecutionID string       `json:"execution_id"`
	FlowID      string       `json:"flow_id"`
	Error       string       `json:"error"`
	Detail      *ErrorDetail `json:"detail,omitempty"`
	FailedAt    time.Time    `json:"failed_at"`
}

type RunCancelledEvent struct {
	ExecutionID string    `json:"execution_id"`
	FlowID      string    `json:"flow_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type StepStartedEvent struct {
	ExecutionID string    `json:"execution_id"`
	StepID      string    `json:"step_id"`
	NodeID      string    `json:"node_id"`
	NodeType    string    `json:"node_type"`
	Sequence    int       `json:"sequence"`
	StartedAt   time.Time `json:"started_at"`
}

type StepFinishedEvent struct {
	ExecutionID string     `json:"execution_id"`
	StepID      string     `json:"step_id"`
	NodeID      string     `json:"node_id"`
	NodeType    string     `json:"node_type"`
	Sequence    int        `json:"sequence"`
	Status      StepStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
	FinishedAt  time.Time  `json:"finished_at"`
}

type AdapterStateChangedEvent struct {
	AdapterID string        `json:"adapter_id"`
	Previous  AdapterStatus `json:"previous"`
	Current   AdapterStatus `json:"current"`
	Actor     string        `json:"actor,omitempty"`
	At        time.Time     `json:"at"`
}

type FlowDeployedEvent struct {
	DeploymentID string    `json:"deployment_id"`
	FlowID       string    `json:"flow_id"`
	FlowVersion  int       `json:"flow_version"`
	AdapterIDs   []string  `json:"adapter_ids"`
	DeployedBy   string    `json:"deployed_by,omitempty"`
	DeployedAt   time.Time `json:"deployed_at"`
}

type FlowUndeployedEvent struct {
	DeploymentID string    `json:"deployment_id"`
	FlowID       string    `json:"flow_id"`
	UndeployedBy string    `json:"undeployed_by,omitempty"`
	UndeployedAt time.Time `json:"undeployed_at"`
}
