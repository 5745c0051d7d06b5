// Package notifications fans run, step, adapter, and deployment state
// changes out to in-process subscribers and, optionally, a NATS subject
// tree. Delivery is fire-and-forget: nothing here can fail the operation
// that produced the event.
package notifications

import (
	"log/slog"
	"sync"

	"github.com/interlace-io/interlace/internal/domain"
)

type Manager struct {
	logger *slog.Logger

	mu sync.RWMutex

	runStartedHandlers          []func(domain.RunStartedEvent)
	runCompletedHandlers        []func(domain.RunCompletedEvent)
	runFailedHandlers           []func(domain.RunFailedEvent)
	runCancelledHandlers        []func(domain.RunCancelledEvent)
	stepStartedHandlers         []func(domain.StepStartedEvent)
	stepFinishedHandlers        []func(domain.StepFinishedEvent)
	adapterStateChangedHandlers []func(domain.AdapterStateChangedEvent)
	flowDeployedHandlers        []func(domain.FlowDeployedEvent)
	flowUndeployedHandlers      []func(domain.FlowUndeployedEvent)
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger.With("component", "notifications"),
	}
}

func (m *Manager) OnRunStarted(handler func(domain.RunStartedEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runStartedHandlers = append(m.runStartedHandlers, handler)
}

func (m *Manager) OnRunCompleted(handler func(domain.RunCompletedEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runCompletedHandlers = append(m.runCompletedHandlers, handler)
}

func (m *Manager) OnRunFailed(handler func(domain.RunFailedEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runFailedHandlers = append(m.runFailedHandlers, handler)
}

func (m *Manager) OnRunCancelled(handler func(domain.RunCancelledEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runCancelledHandlers = append(m.runCancelledHandlers, handler)
}

func (m *Manager) OnStepStarted(handler func(domain.StepStartedEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepStartedHandlers = append(m.stepStartedHandlers, handler)
}

func (m *Manager) OnStepFinished(handler func(domain.StepFinishedEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepFinishedHandlers = append(m.stepFinishedHandlers, handler)
}

func (m *Manager) OnAdapterStateChanged(handler func(domain.AdapterStateChangedEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapterStateChangedHandlers = append(m.adapterStateChangedHandlers, handler)
}

func (m *Manager) OnFlowDeployed(handler func(domain.FlowDeployedEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flowDeployedHandlers = append(m.flowDeployedHandlers, handler)
}

func (m *Manager) OnFlowUndeployed(handler func(domain.FlowUndeployedEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flowUndeployedHandlers = append(m.flowUndeployedHandlers, handler)
}

func (m *Manager) RunStarted(event domain.RunStartedEvent) {
	m.mu.RLock()
	handlers := m.runStartedHandlers
	m.mu.RUnlock()
	for _, h := range handlers {
		m.dispatch(func() { h(event) })
	}
}

func (m *Manager) RunCompleted(event domain.RunCompletedEvent) {
	m.mu.RLock()
	handlers := m.runCompletedHandlers
	m.mu.RUnlock()
	for _, h := range handlers {
		m.dispatch(func() { h(event) })
	}
}

func (m *Manager) RunFailed(event domain.RunFailedEvent) {
	m.mu.RLock()
	handlers := m.runFailedHandlers
	m.mu.RUnlock()
	for _, h := range handlers {
		m.dispatch(func() { h(event) })
	}
}

func (m *Manager) RunCancelled(event domain.RunCancelledEvent) {
	m.mu.RLock()
	handlers := m.runCancelledHandlers
	m.mu.RUnlock()
	for _, h := range handlers {
		m.dispatch(func() { h(event) })
	}
}

func (m *Manager) StepStarted(event domain.StepStartedEvent) {
	m.mu.RLock()
	handlers := m.stepStartedHandlers
	m.mu.RUnlock()
	for _, h := range handlers {
		m.dispatch(func() { h(event) })
	}
}

func (m *Manager) StepFinished(event domain.StepFinishedEvent) {
	m.mu.RLock()
	handlers := m.stepFinishedHandlers
	m.mu.RUnlock()
	for _, h := range handlers {
		m.dispatch(func() { h(event) })
	}
}

func (m *Manager) AdapterStateChanged(event domain.AdapterStateChangedEvent) {
	m.mu.RLock()
	handlers := m.adapterStateChangedHandlers
	m.mu.RUnlock()
	for _, h := range handlers {
		m.dispatch(func() { h(event) })
	}
}

func (m *Manager) FlowDeployed(event domain.FlowDeployedEvent) {
	m.mu.RLock()
	handlers := m.flowDeployedHandlers
	m.mu.RUnlock()
	for _, h := range handlers {
		m.dispatch(func() { h(event) })
	}
}

func (m *Manager) FlowUndeployed(event domain.FlowUndeployedEvent) {
	m.mu.RLock()
	handlers := m.flowUndeployedHandlers
	m.mu.RUnlock()
	for _, h := range handlers {
		m.dispatch(func() { h(event) })
	}
}

// dispatch shields the emitting operation from a panicking subscriber.
func (m *Manager) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("notification handler panicked", "panic", r)
		}
	}()
	fn()
}
