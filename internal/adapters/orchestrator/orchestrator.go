// Package orchestrator binds flows to the live adapters they reference.
// Deploy is strict and all-or-nothing on the adapter side; undeploy is
// best-effort and reports what it actually managed to do.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/interlace-io/interlace/internal/domain"
	"github.com/interlace-io/interlace/internal/ports"
)

type Orchestrator struct {
	flows       ports.FlowStorePort
	registry    ports.AdapterRegistryPort
	lifecycle   ports.LifecyclePort
	deployments ports.DeploymentStorePort
	scheduler   ports.SchedulerPort
	events      ports.NotificationPort
	metrics     *domain.ExecutionMetrics
	logger      *slog.Logger
}

func NewOrchestrator(
	flows ports.FlowStorePort,
	registry ports.AdapterRegistryPort,
	lifecycle ports.LifecyclePort,
	deployments ports.DeploymentStorePort,
	scheduler ports.SchedulerPort,
	events ports.NotificationPort,
	metrics *domain.ExecutionMetrics,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = domain.NewExecutionMetrics()
	}

	return &Orchestrator{
		flows:       flows,
		registry:    registry,
		lifecycle:   lifecycle,
		deployments: deployments,
		scheduler:   scheduler,
		events:      events,
		metrics:     metrics,
		logger:      logger.With("component", "orchestrator"),
	}
}

// Deploy binds a flow to every adapter its graph references.
//
// The protocol is strict: validate everything with zero side effects, start
// the adapters sequentially with rollback on the first failure, and only then
// commit the deployment record with configuration snapshots. Concurrent
// deploys of the same flow are serialized by the already-deployed pre-check.
func (o *Orchestrator) Deploy(ctx context.Context, flowID, actor string) (*domain.DeploySummary, error) {
	existing, err := o.deployments.GetDeploymentsByFlow(ctx, flowID)
	if err != nil {
		o.metrics.IncrementDeploysFailed()
		return nil, domain.NewDeployError(flowID, err)
	}
	if len(existing) > 0 {
		o.metrics.IncrementDeploysFailed()
		return nil, domain.NewDeployError(flowID, domain.ErrAlreadyDeployed)
	}

	flow, err := o.flows.GetFlow(ctx, flowID)
	if err != nil {
		o.metrics.IncrementDeploysFailed()
		return nil, domain.NewDeployError(flowID, err)
	}

	validation, err := o.validate(ctx, flow)
	if err != nil {
		o.metrics.IncrementDeploysFailed()
		return nil, domain.NewDeployError(flowID, err)
	}
	if !validation.CanDeploy {
		o.metrics.IncrementDeploysFailed()
		return nil, domain.NewDeployError(flowID, domain.ErrInvalidInput, validation.Errors...)
	}

	adapterIDs := flow.ReferencedAdapterIDs()
	if len(adapterIDs) == 0 {
		o.metrics.IncrementDeploysFailed()
		return nil, domain.NewDeployError(flowID, domain.ErrNoAdapters)
	}

	// Phase A: every referenced adapter must be active and stopped before
	// anything is touched.
	adapters := make(map[string]*domain.Adapter, len(adapterIDs))
	for _, id := range adapterIDs {
		adapter, err := o.registry.GetAdapter(ctx, id)
		if err != nil {
			o.metrics.IncrementDeploysFailed()
			return nil, domain.NewDeployError(flowID, err,
				fmt.Sprintf("adapter %s: %v", id, err))
		}
		if !adapter.Active {
			o.metrics.IncrementDeploysFailed()
			return nil, domain.NewDeployError(flowID, domain.ErrAdapterInactive,
				fmt.Sprintf("adapter %s (%s) is not active", adapter.ID, adapter.Name))
		}
		if adapter.Status.IsStarted() {
			o.metrics.IncrementDeploysFailed()
			return nil, domain.NewDeployError(flowID, domain.ErrAdapterNotStopped,
				fmt.Sprintf("adapter %s (%s) is already started", adapter.ID, adapter.Name))
		}
		adapters[id] = adapter
	}

	// Phase B: start sequentially, verifying each write, rolling back every
	// adapter started in this attempt on the first failure.
	started := make([]string, 0, len(adapterIDs))
	for _, id := range adapterIDs {
		if err := o.startVerified(ctx, id, actor); err != nil {
			o.logger.Error("adapter start failed mid-deploy, rolling back",
				"flow_id", flowID,
				"adapter_id", id,
				"started_so_far", len(started),
				"error", err)
			o.rollback(ctx, flowID, started, actor)
			o.metrics.IncrementDeploysRolledBack()
			o.metrics.IncrementDeploysFailed()
			return nil, domain.NewDeployError(flowID, err,
				fmt.Sprintf("failed to start adapter %s", id))
		}
		started = append(started, id)
	}

	// Phase C: commit. From here on the adapters stay started even if the
	// scheduling registration fails.
	deployment := domain.NewDeployedFlow(flow, actor)
	deployment.AdapterSnapshots = make(map[string]map[string]interface{}, len(adapters))
	for id, adapter := range adapters {
		deployment.AdapterSnapshots[id] = adapter.Config
		switch adapter.Direction {
		case domain.DirectionSender:
			if deployment.SenderAdapterID == "" {
				deployment.SenderAdapterID = id
			}
		case domain.DirectionReceiver:
			deployment.ReceiverAdapterIDs = append(deployment.ReceiverAdapterIDs, id)
		}
	}

	if err := o.deployments.SaveDeployment(ctx, deployment); err != nil {
		// Commit failed after the adapters were started; reverse phase B so
		// the flow is left exactly as it was.
		o.rollback(ctx, flowID, started, actor)
		o.metrics.IncrementDeploysRolledBack()
		o.metrics.IncrementDeploysFailed()
		return nil, domain.NewDeployError(flowID, err)
	}

	if o.scheduler != nil {
		if err := o.scheduler.OnFlowDeployed(ctx, deployment); err != nil {
			o.logger.Error("scheduler registration failed, adapters stay started",
				"flow_id", flowID,
				"deployment_id", deployment.ID,
				"error", err)
		}
	}

	if o.events != nil {
		o.events.FlowDeployed(domain.FlowDeployedEvent{
			DeploymentID: deployment.ID,
			FlowID:       flowID,
			FlowVersion:  flow.Version,
			AdapterIDs:   adapterIDs,
			DeployedBy:   actor,
			DeployedAt:   deployment.DeployedAt,
		})
	}

	o.metrics.IncrementDeploysSucceeded()
	o.logger.Info("flow deployed",
		"flow_id", flowID,
		"deployment_id", deployment.ID,
		"flow_version", flow.Version,
		"adapters_started", len(started),
		"actor", actor)

	return &domain.DeploySummary{
		DeploymentID:    deployment.ID,
		FlowID:          flowID,
		FlowVersion:     flow.Version,
		AdaptersStarted: started,
	}, nil
}

// Undeploy reverses the binding best-effort: individual stop or delete
// failures are logged and counted, never fatal.
func (o *Orchestrator) Undeploy(ctx context.Context, flowID, actor string) (*domain.UndeployResult, error) {
	deployments, err := o.deployments.GetDeploymentsByFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if len(deployments) == 0 {
		return nil, domain.ErrNotDeployed
	}

	result := &domain.UndeployResult{FlowID: flowID}

	// Re-extract from the snapshot so adapters referenced at deploy time are
	// stopped even if the live flow was edited since.
	seen := make(map[string]bool)
	for _, d := range deployments {
		for _, id := range d.FlowSnapshot.ReferencedAdapterIDs() {
			if seen[id] {
				continue
			}
			seen[id] = true
			result.AdaptersReferenced++

			adapter, err := o.registry.GetAdapter(ctx, id)
			if err != nil {
				o.logger.Warn("referenced adapter not readable during undeploy",
					"flow_id", flowID,
					"adapter_id", id,
					"error", err)
				continue
			}
			if !adapter.Status.IsStarted() {
				continue
			}
			if err := o.lifecycle.Stop(ctx, id, actor); err != nil {
				o.logger.Warn("failed to stop adapter during undeploy",
					"flow_id", flowID,
					"adapter_id", id,
					"error", err)
				continue
			}
			result.AdaptersStopped++
		}
	}

	for _, d := range deployments {
		if o.scheduler != nil {
			if err := o.scheduler.OnFlowUndeployed(ctx, d.ID); err != nil {
				o.logger.Warn("scheduler deregistration failed during undeploy",
					"deployment_id", d.ID,
					"error", err)
			}
		}

		if err := o.deployments.DeleteDeployment(ctx, d.ID); err != nil {
			o.logger.Warn("failed to delete deployment record",
				"deployment_id", d.ID,
				"error", err)
			continue
		}
		result.DeploymentsRemoved++

		if o.events != nil {
			o.events.FlowUndeployed(domain.FlowUndeployedEvent{
				DeploymentID: d.ID,
				FlowID:       flowID,
				UndeployedBy: actor,
				UndeployedAt: time.Now(),
			})
		}
	}

	o.metrics.IncrementUndeploys()
	o.logger.Info("flow undeployed",
		"flow_id", flowID,
		"adapters_stopped", result.AdaptersStopped,
		"adapters_referenced", result.AdaptersReferenced,
		"deployments_removed", result.DeploymentsRemoved,
		"actor", actor)

	return result, nil
}

// ValidateDeployment runs the zero-side-effect checks a deploy would perform.
func (o *Orchestrator) ValidateDeployment(ctx context.Context, flowID string) (*domain.ValidationResult, error) {
	flow, err := o.flows.GetFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}
	return o.validate(ctx, flow)
}

func (o *Orchestrator) validate(ctx context.Context, flow *domain.FlowDefinition) (*domain.ValidationResult, error) {
	result := &domain.ValidationResult{}

	result.Errors = append(result.Errors, flow.Validate()...)

	adapterIDs := flow.ReferencedAdapterIDs()
	if len(adapterIDs) == 0 {
		result.Errors = append(result.Errors, "flow references no adapters")
	}

	for _, id := range adapterIDs {
		adapter, err := o.registry.GetAdapter(ctx, id)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("adapter %s: %v", id, err))
			continue
		}
		if !adapter.Active {
			result.Errors = append(result.Errors, fmt.Sprintf("adapter %s (%s) is not active", adapter.ID, adapter.Name))
		}
		if adapter.Status.IsStarted() {
			result.Warnings = append(result.Warnings, fmt.Sprintf("adapter %s (%s) is already started and would block deployment", adapter.ID, adapter.Name))
		}
		if adapter.Status.IsErrored() {
			result.Warnings = append(result.Warnings, fmt.Sprintf("adapter %s (%s) is in error state: %s", adapter.ID, adapter.Name, adapter.Status.Message))
		}
	}

	result.CanDeploy = len(result.Errors) == 0
	return result, nil
}

// startVerified starts an adapter and reads the status back to confirm the
// write took effect.
func (o *Orchestrator) startVerified(ctx context.Context, adapterID, actor string) error {
	if err := o.lifecycle.Start(ctx, adapterID, actor); err != nil {
		return err
	}

	adapter, err := o.registry.GetAdapter(ctx, adapterID)
	if err != nil {
		return err
	}
	if !adapter.Status.IsStarted() {
		return domain.Error{
			Type:    domain.ErrorTypeConflict,
			Message: fmt.Sprintf("adapter %s did not reach STARTED", adapterID),
			Details: map[string]interface{}{"adapter_id": adapterID, "state": string(adapter.Status.State)},
		}
	}

	return nil
}

// rollback stops every adapter started in this deploy attempt. Individual
// stop failures are logged; rollback keeps going.
func (o *Orchestrator) rollback(ctx context.Context, flowID string, started []string, actor string) {
	for i := len(started) - 1; i >= 0; i-- {
		id := started[i]
		if err := o.lifecycle.Stop(ctx, id, actor); err != nil {
			o.logger.Error("rollback failed to stop adapter",
				"flow_id", flowID,
				"adapter_id", id,
				"error", err)
		}
	}
}
