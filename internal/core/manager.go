// Package core assembles the storage, lifecycle, orchestration, and
// execution components into one manager with a single start/stop lifecycle.
package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/interlace-io/interlace/internal/adapters/engine"
	"github.com/interlace-io/interlace/internal/adapters/ledger"
	"github.com/interlace-io/interlace/internal/adapters/lifecycle"
	"github.com/interlace-io/interlace/internal/adapters/notifications"
	"github.com/interlace-io/interlace/internal/adapters/orchestrator"
	"github.com/interlace-io/interlace/internal/adapters/registry"
	"github.com/interlace-io/interlace/internal/domain"
	"github.com/interlace-io/interlace/internal/ports"
)

// InMemoryDataDir selects badger's in-memory mode; nothing touches disk.
// Intended for tests and ephemeral embeddings.
const InMemoryDataDir = ":memory:"

type Manager struct {
	config  *domain.Config
	logger  *slog.Logger
	metrics *domain.ExecutionMetrics

	db          *badger.DB
	adapters    *registry.AdapterStore
	flows       *registry.FlowStore
	deployments *registry.DeploymentStore
	ledger      *ledger.Store

	events *notifications.Manager
	nats   *notifications.NATSPublisher

	lifecycle    *lifecycle.Controller
	orchestrator *orchestrator.Orchestrator
	engine       *engine.Engine

	scheduler   ports.SchedulerPort
	adapterExec ports.AdapterExecutorPort
	utilityExec ports.UtilityExecutorPort

	started bool
}

func New(config *domain.Config) (*Manager, error) {
	if config == nil {
		config = domain.DefaultConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(config.DataDir).WithLogger(nil)
	if config.DataDir == InMemoryDataDir {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.NewStorageError("open", config.DataDir, err)
	}

	m := &Manager{
		config:      config,
		logger:      logger.With("component", "manager"),
		metrics:     domain.NewExecutionMetrics(),
		db:          db,
		adapters:    registry.NewAdapterStore(db, logger),
		flows:       registry.NewFlowStore(db, logger),
		deployments: registry.NewDeploymentStore(db, logger),
		ledger:      ledger.NewStore(db, logger),
		events:      notifications.NewManager(logger),
	}

	m.lifecycle = lifecycle.NewController(m.adapters, m.events, logger)
	return m, nil
}

// SetScheduler installs the trigger-scheduling collaborator. Must be called
// before Start.
func (m *Manager) SetScheduler(scheduler ports.SchedulerPort) {
	m.scheduler = scheduler
}

// SetAdapterExecutor installs the collaborator that performs the actual
// transfer work of adapter nodes. Must be called before Start.
func (m *Manager) SetAdapterExecutor(exec ports.AdapterExecutorPort) {
	m.adapterExec = exec
}

// SetUtilityExecutor installs the collaborator behind utility nodes. Must be
// called before Start.
func (m *Manager) SetUtilityExecutor(exec ports.UtilityExecutorPort) {
	m.utilityExec = exec
}

func (m *Manager) Start(ctx context.Context) error {
	if m.started {
		return domain.ErrAlreadyStarted
	}
	if m.adapterExec == nil {
		return domain.NewValidationError("adapter executor is required before start")
	}

	if m.config.Notifications.Enabled {
		publisher, err := notifications.NewNATSPublisher(ctx, m.config.Notifications, m.logger)
		if err != nil {
			return err
		}
		m.nats = publisher
		m.subscribePublisher(publisher)
	}

	m.orchestrator = orchestrator.NewOrchestrator(
		m.flows, m.adapters, m.lifecycle, m.deployments,
		m.scheduler, m.events, m.metrics, m.logger)

	m.engine = engine.NewEngine(m.config.Engine, engine.Deps{
		Ledger:      m.ledger,
		Deployments: m.deployments,
		Registry:    m.adapters,
		AdapterExec: m.adapterExec,
		UtilityExec: m.utilityExec,
		Events:      m.events,
		Metrics:     m.metrics,
	}, m.logger)

	if err := m.engine.Start(ctx); err != nil {
		return err
	}

	m.started = true
	m.logger.Info("manager started", "data_dir", m.config.DataDir)
	return nil
}

func (m *Manager) Stop() error {
	if !m.started {
		return domain.ErrNotStarted
	}
	m.started = false

	if err := m.engine.Stop(); err != nil {
		m.logger.Warn("engine stop reported error", "error", err)
	}

	if m.nats != nil {
		if err := m.nats.Close(); err != nil {
			m.logger.Warn("nats drain failed", "error", err)
		}
		m.nats = nil
	}

	if err := m.db.Close(); err != nil {
		return domain.NewStorageError("close", m.config.DataDir, err)
	}

	m.logger.Info("manager stopped")
	return nil
}

// subscribePublisher mirrors every in-process event onto NATS.
func (m *Manager) subscribePublisher(p *notifications.NATSPublisher) {
	m.events.OnRunStarted(p.RunStarted)
	m.events.OnRunCompleted(p.RunCompleted)
	m.events.OnRunFailed(p.RunFailed)
	m.events.OnRunCancelled(p.RunCancelled)
	m.events.OnStepStarted(p.StepStarted)
	m.events.OnStepFinished(p.StepFinished)
	m.events.OnAdapterStateChanged(p.AdapterStateChanged)
	m.events.OnFlowDeployed(p.FlowDeployed)
	m.events.OnFlowUndeployed(p.FlowUndeployed)
}

// Notifications exposes the in-process event bus for subscribers.
func (m *Manager) Notifications() *notifications.Manager {
	return m.events
}

func (m *Manager) GetMetrics() domain.ExecutionMetrics {
	return m.metrics.GetSnapshot()
}

func (m *Manager) SaveFlow(ctx context.Context, flow *domain.FlowDefinition) error {
	return m.flows.SaveFlow(ctx, flow)
}

func (m *Manager) GetFlow(ctx context.Context, id string) (*domain.FlowDefinition, error) {
	return m.flows.GetFlow(ctx, id)
}

func (m *Manager) ListFlows(ctx context.Context) ([]domain.FlowDefinition, error) {
	return m.flows.ListFlows(ctx)
}

// DeleteFlow refuses to remove a flow that is still deployed.
func (m *Manager) DeleteFlow(ctx context.Context, id string) error {
	deployments, err := m.deployments.GetDeploymentsByFlow(ctx, id)
	if err != nil {
		return err
	}
	if len(deployments) > 0 {
		return domain.Error{
			Type:    domain.ErrorTypeConflict,
			Message: "flow is deployed, undeploy it first",
			Details: map[string]interface{}{"flow_id": id, "deployments": len(deployments)},
		}
	}
	return m.flows.DeleteFlow(ctx, id)
}

func (m *Manager) SaveAdapter(ctx context.Context, adapter *domain.Adapter) error {
	return m.adapters.SaveAdapter(ctx, adapter)
}

func (m *Manager) GetAdapter(ctx context.Context, id string) (*domain.Adapter, error) {
	return m.adapters.GetAdapter(ctx, id)
}

func (m *Manager) ListAdapters(ctx context.Context) ([]domain.Adapter, error) {
	return m.adapters.ListAdapters(ctx)
}

func (m *Manager) ListAdapterAudit(ctx context.Context, adapterID string) ([]domain.AuditEntry, error) {
	return m.adapters.ListAudit(ctx, adapterID)
}

func (m *Manager) StartAdapter(ctx context.Context, adapterID, actor string) error {
	return m.lifecycle.Start(ctx, adapterID, actor)
}

func (m *Manager) StopAdapter(ctx context.Context, adapterID, actor string) error {
	return m.lifecycle.Stop(ctx, adapterID, actor)
}

func (m *Manager) RestartAdapter(ctx context.Context, adapterID, actor string) error {
	return m.lifecycle.Restart(ctx, adapterID, actor)
}

func (m *Manager) SetAdapterActive(ctx context.Context, adapterID string, active bool, actor string) error {
	return m.lifecycle.SetActive(ctx, adapterID, active, actor)
}

func (m *Manager) SetAdapterError(ctx context.Context, adapterID, message string) error {
	return m.lifecycle.SetError(ctx, adapterID, message)
}

func (m *Manager) DeployFlow(ctx context.Context, flowID, actor string) (*domain.DeploySummary, error) {
	if !m.started {
		return nil, domain.ErrNotStarted
	}
	return m.orchestrator.Deploy(ctx, flowID, actor)
}

func (m *Manager) UndeployFlow(ctx context.Context, flowID, actor string) (*domain.UndeployResult, error) {
	if !m.started {
		return nil, domain.ErrNotStarted
	}
	return m.orchestrator.Undeploy(ctx, flowID, actor)
}

func (m *Manager) ValidateDeployment(ctx context.Context, flowID string) (*domain.ValidationResult, error) {
	if !m.started {
		return nil, domain.ErrNotStarted
	}
	return m.orchestrator.ValidateDeployment(ctx, flowID)
}

func (m *Manager) GetDeployment(ctx context.Context, id string) (*domain.DeployedFlow, error) {
	return m.deployments.GetDeployment(ctx, id)
}

func (m *Manager) ListDeployments(ctx context.Context) ([]domain.DeployedFlow, error) {
	return m.deployments.ListDeployments(ctx)
}

func (m *Manager) ExecuteFlow(ctx context.Context, flowID string, trigger domain.TriggerType, payload map[string]interface{}) (*engine.RunHandle, error) {
	if !m.started {
		return nil, domain.ErrNotStarted
	}
	return m.engine.Execute(ctx, flowID, trigger, payload)
}

func (m *Manager) CancelExecution(ctx context.Context, executionID string) error {
	if !m.started {
		return domain.ErrNotStarted
	}
	return m.engine.CancelExecution(ctx, executionID)
}

func (m *Manager) RetryExecution(ctx context.Context, executionID string, delay time.Duration) (*engine.RunHandle, error) {
	if !m.started {
		return nil, domain.ErrNotStarted
	}
	return m.engine.RetryExecution(ctx, executionID, delay)
}

func (m *Manager) GetExecution(ctx context.Context, executionID string) (*domain.FlowExecution, error) {
	return m.ledger.GetExecution(ctx, executionID)
}

func (m *Manager) ListExecutionsByFlow(ctx context.Context, flowID string) ([]domain.FlowExecution, error) {
	return m.ledger.ListExecutionsByFlow(ctx, flowID)
}

func (m *Manager) ListExecutionSteps(ctx context.Context, executionID string) ([]domain.FlowExecutionStep, error) {
	return m.ledger.ListSteps(ctx, executionID)
}
