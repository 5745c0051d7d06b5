package domain

import (
	"time"
)

type Direction string

const (
	DirectionSender   Direction = "SENDER"
	DirectionReceiver Direction = "RECEIVER"
)

type AdapterState string

const (
	AdapterStopped AdapterState = "STOPPED"
	AdapterStarted AdapterState = "STARTED"
	AdapterErrored AdapterState = "ERRORED"
)

// AdapterStatus is a tagged variant over the adapter state machine. The
// errored branch carries its own message and timestamp so failure is encoded
// in the state itself rather than folded into STOPPED with a side channel.
type AdapterStatus struct {
	State     AdapterState `json:"state"`
	Message   string       `json:"message,omitempty"`
	ErroredAt *time.Time   `json:"errored_at,omitempty"`
}

func StatusStopped() AdapterStatus {
	return AdapterStatus{State: AdapterStopped}
}

func StatusStarted() AdapterStatus {
	return AdapterStatus{State: AdapterStarted}
}

func StatusErrored(message string, at time.Time) AdapterStatus {
	return AdapterStatus{State: AdapterErrored, Message: message, ErroredAt: &at}
}

func (s AdapterStatus) IsStarted() bool {
	return s.State == AdapterStarted
}

func (s AdapterStatus) IsStopped() bool {
	return s.State == AdapterStopped
}

func (s AdapterStatus) IsErrored() bool {
	return s.State == AdapterErrored
}

// Startable reports whether a start transition is legal from this state.
// An errored adapter may be started again without manual re-activation.
func (s AdapterStatus) Startable() bool {
	return s.State == AdapterStopped || s.State == AdapterErrored
}

type Adapter struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Active    bool                   `json:"active"`
	Direction Direction              `json:"direction"`
	Status    AdapterStatus          `json:"status"`
	Config    map[string]interface{} `json:"config,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// AuditEntry records a lifecycle transition against an adapter.
type AuditEntry struct {
	AdapterID string    `json:"adapter_id"`
	Action    string    `json:"action"`
	Message   string    `json:"message,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	At        time.Time `json:"at"`
}
