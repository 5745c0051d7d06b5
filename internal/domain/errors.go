package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAlreadyDeployed   = errors.New("flow is already deployed")
	ErrNotDeployed       = errors.New("flow is not currently deployed")
	ErrAdapterInactive   = errors.New("adapter is not active")
	ErrAdapterNotStopped = errors.New("adapter is not stopped")
	ErrNoAdapters        = errors.New("flow references no adapters")
	ErrJoinTimeout       = errors.New("parallel branch join timed out")
	ErrRunNotRetryable   = errors.New("only failed runs can be retried")
	ErrEngineSaturated   = errors.New("engine worker pool is saturated")
	ErrAlreadyStarted    = errors.New("already started")
	ErrNotStarted        = errors.New("not started")
)

type ErrorType int

const (
	ErrorTypeValidation ErrorType = iota
	ErrorTypeNotFound
	ErrorTypeConflict
	ErrorTypeTimeout
	ErrorTypeInternal
)

// Error is the structured error carried across component boundaries.
type Error struct {
	Type    ErrorType
	Message string
	Details map[string]interface{}
}

func (e Error) Error() string {
	return e.Message
}

func NewNotFoundError(resource, id string) Error {
	return Error{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{"resource": resource, "id": id},
	}
}

func NewValidationError(message string) Error {
	return Error{Type: ErrorTypeValidation, Message: message}
}

// LifecycleError wraps a failed adapter lifecycle transition.
type LifecycleError struct {
	AdapterID string
	Op        string
	Err       error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("lifecycle[%s] %s: %v", e.AdapterID, e.Op, e.Err)
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

func NewLifecycleError(adapterID, op string, err error) *LifecycleError {
	return &LifecycleError{AdapterID: adapterID, Op: op, Err: err}
}

// DeployError carries the full error list from a rejected deploy attempt.
type DeployError struct {
	FlowID string
	Errors []string
	Err    error
}

func (e *DeployError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("deploy of flow %s failed: %s", e.FlowID, e.Errors[0])
	}
	return fmt.Sprintf("deploy of flow %s failed: %v", e.FlowID, e.Err)
}

func (e *DeployError) Unwrap() error {
	return e.Err
}

func NewDeployError(flowID string, err error, errs ...string) *DeployError {
	return &DeployError{FlowID: flowID, Err: err, Errors: errs}
}

// StorageError wraps a failed persistence operation.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage[%s] %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op, key string, err error) *StorageError {
	return &StorageError{Op: op, Key: key, Err: err}
}

func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var de Error
	return errors.As(err, &de) && de.Type == ErrorTypeNotFound
}

func IsValidation(err error) bool {
	var de Error
	return errors.As(err, &de) && de.Type == ErrorTypeValidation
}

func IsTimeout(err error) bool {
	if errors.Is(err, ErrJoinTimeout) {
		return true
	}
	var de Error
	return errors.As(err, &de) && de.Type == ErrorTypeTimeout
}
