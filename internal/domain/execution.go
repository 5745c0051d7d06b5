package domain

import (
	"time"

	"github.com/google/uuid"
)

type TriggerType string

const (
	TriggerManual    TriggerType = "MANUAL"
	TriggerScheduled TriggerType = "SCHEDULED"
	TriggerRetry     TriggerType = "RETRY"
)

type ExecutionStatus string

const (
	ExecutionPending      ExecutionStatus = "PENDING"
	ExecutionRunning      ExecutionStatus = "RUNNING"
	ExecutionCompleted    ExecutionStatus = "COMPLETED"
	ExecutionFailed       ExecutionStatus = "FAILED"
	ExecutionCancelled    ExecutionStatus = "CANCELLED"
	ExecutionRetryPending ExecutionStatus = "RETRY_PENDING"
)

// Terminal reports whether no further transitions are possible.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCancelled
}

type StepStatus string

const (
	StepPending   StepStatus = "PENDING"
	StepRunning   StepStatus = "RUNNING"
	StepCompleted StepStatus = "COMPLETED"
	StepFailed    StepStatus = "FAILED"
	StepCancelled StepStatus = "CANCELLED"
)

// ErrorDetail is the structured failure blob attached to a failed run.
type ErrorDetail struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Cause     string    `json:"cause,omitempty"`
}

// FlowExecution is one end-to-end run of a deployed flow. It is owned
// exclusively by the engine while running and read-only afterwards.
type FlowExecution struct {
	ID             string                 `json:"id"`
	FlowID         string                 `json:"flow_id"`
	DeploymentID   string                 `json:"deployment_id,omitempty"`
	TriggerType    TriggerType            `json:"trigger_type"`
	Status         ExecutionStatus        `json:"status"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	Context        ExecutionContext       `json:"context,omitempty"`
	RetryAttempt   int                    `json:"retry_attempt"`
	CreatedAt      time.Time              `json:"created_at"`
	StartedAt      *time.Time             `json:"started_at,omitempty"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
	Deadline       *time.Time             `json:"deadline,omitempty"`
	Duration       time.Duration          `json:"duration,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	ErrorDetail    *ErrorDetail           `json:"error_detail,omitempty"`
	FilesProcessed int64                  `json:"files_processed"`
	BytesProcessed int64                  `json:"bytes_processed"`
}

func NewFlowExecution(flowID, deploymentID string, trigger TriggerType, payload map[string]interface{}) *FlowExecution {
	return &FlowExecution{
		ID:           uuid.New().String(),
		FlowID:       flowID,
		DeploymentID: deploymentID,
		TriggerType:  trigger,
		Status:       ExecutionPending,
		Payload:      payload,
		CreatedAt:    time.Now(),
	}
}

// MarkFailed moves the run to FAILED and captures the structured detail.
// Failures are recorded, never thrown past the engine boundary.
func (e *FlowExecution) MarkFailed(kind string, err error, cause string) {
	now := time.Now()
	e.Status = ExecutionFailed
	e.CompletedAt = &now
	if e.StartedAt != nil {
		e.Duration = now.Sub(*e.StartedAt)
	}
	e.ErrorMessage = err.Error()
	e.ErrorDetail = &ErrorDetail{
		Kind:      kind,
		Message:   err.Error(),
		Timestamp: now,
		Cause:     cause,
	}
}

func (e *FlowExecution) MarkCompleted() {
	now := time.Now()
	e.Status = ExecutionCompleted
	e.CompletedAt = &now
	if e.StartedAt != nil {
		e.Duration = now.Sub(*e.StartedAt)
	}
}

// FlowExecutionStep records one node visit within a run. Steps are
// append-only: a retry purges the previous attempt's steps and generates
// fresh ones.
type FlowExecutionStep struct {
	ID             string           `json:"id"`
	ExecutionID    string           `json:"execution_id"`
	NodeID         string           `json:"node_id"`
	NodeName       string           `json:"node_name,omitempty"`
	NodeType       string           `json:"node_type"`
	Sequence       int              `json:"sequence"`
	Status         StepStatus       `json:"status"`
	Input          ExecutionContext `json:"input,omitempty"`
	Output         ExecutionContext `json:"output,omitempty"`
	FilesProcessed int64            `json:"files_processed"`
	BytesProcessed int64            `json:"bytes_processed"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
}

func NewFlowExecutionStep(executionID string, node Node, sequence int) *FlowExecutionStep {
	return &FlowExecutionStep{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		NodeID:      node.ID,
		NodeName:    node.Name,
		NodeType:    node.Type,
		Sequence:    sequence,
		Status:      StepPending,
	}
}
