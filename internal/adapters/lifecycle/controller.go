// Package lifecycle enforces the adapter state machine. Every status
// transition in the system funnels through the Controller, whether it comes
// from the deployment orchestrator or from a direct operator action.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/interlace-io/interlace/internal/domain"
	"github.com/interlace-io/interlace/internal/ports"
)

type Controller struct {
	registry ports.AdapterRegistryPort
	events   ports.NotificationPort
	logger   *slog.Logger
}

func NewController(registry ports.AdapterRegistryPort, events ports.NotificationPort, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		registry: registry,
		events:   events,
		logger:   logger.With("component", "lifecycle"),
	}
}

// Start transitions an adapter to STARTED. Requires the adapter to be active;
// starting an already-started adapter is a no-op. Starting from ERRORED is
// allowed without manual re-activation.
func (c *Controller) Start(ctx context.Context, adapterID, actor string) error {
	adapter, err := c.registry.GetAdapter(ctx, adapterID)
	if err != nil {
		return domain.NewLifecycleError(adapterID, "start", err)
	}

	if !adapter.Active {
		c.logger.Warn("refusing to start inactive adapter", "adapter_id", adapterID)
		return domain.NewLifecycleError(adapterID, "start", domain.ErrAdapterInactive)
	}

	if adapter.Status.IsStarted() {
		c.logger.Debug("adapter already started", "adapter_id", adapterID)
		return nil
	}

	return c.transition(ctx, adapter, domain.StatusStarted(), "start", actor)
}

// Stop transitions an adapter to STOPPED. Stopping an adapter that is not
// started is a no-op.
func (c *Controller) Stop(ctx context.Context, adapterID, actor string) error {
	adapter, err := c.registry.GetAdapter(ctx, adapterID)
	if err != nil {
		return domain.NewLifecycleError(adapterID, "stop", err)
	}

	if !adapter.Status.IsStarted() {
		c.logger.Debug("adapter not started, stop is a no-op", "adapter_id", adapterID)
		return nil
	}

	return c.transition(ctx, adapter, domain.StatusStopped(), "stop", actor)
}

// Restart stops the adapter if started, then starts it.
func (c *Controller) Restart(ctx context.Context, adapterID, actor string) error {
	if err := c.Stop(ctx, adapterID, actor); err != nil {
		return err
	}
	return c.Start(ctx, adapterID, actor)
}

// SetActive flips the active flag. Deactivating a started adapter implicitly
// stops it first: an inactive adapter may never be STARTED.
func (c *Controller) SetActive(ctx context.Context, adapterID string, active bool, actor string) error {
	adapter, err := c.registry.GetAdapter(ctx, adapterID)
	if err != nil {
		return domain.NewLifecycleError(adapterID, "set_active", err)
	}

	if !active && adapter.Status.IsStarted() {
		if err := c.transition(ctx, adapter, domain.StatusStopped(), "deactivate_stop", actor); err != nil {
			return err
		}
	}

	if err := c.registry.SetActive(ctx, adapterID, active); err != nil {
		return domain.NewLifecycleError(adapterID, "set_active", err)
	}

	c.audit(ctx, adapterID, "set_active", "", actor)
	c.logger.Info("adapter active flag updated",
		"adapter_id", adapterID,
		"active", active)

	return nil
}

// SetError moves the adapter to the ERRORED state, carrying the message and
// timestamp in the status itself, and writes an audit record.
func (c *Controller) SetError(ctx context.Context, adapterID, message string) error {
	adapter, err := c.registry.GetAdapter(ctx, adapterID)
	if err != nil {
		return domain.NewLifecycleError(adapterID, "set_error", err)
	}

	status := domain.StatusErrored(message, time.Now())
	if err := c.transition(ctx, adapter, status, "set_error", ""); err != nil {
		return err
	}

	c.logger.Error("adapter marked errored",
		"adapter_id", adapterID,
		"message", message)

	return nil
}

func (c *Controller) transition(ctx context.Context, adapter *domain.Adapter, next domain.AdapterStatus, action, actor string) error {
	previous := adapter.Status

	if err := c.registry.UpdateStatus(ctx, adapter.ID, next); err != nil {
		return domain.NewLifecycleError(adapter.ID, action, err)
	}

	c.audit(ctx, adapter.ID, action, next.Message, actor)

	if c.events != nil {
		c.events.AdapterStateChanged(domain.AdapterStateChangedEvent{
			AdapterID: adapter.ID,
			Previous:  previous,
			Current:   next,
			Actor:     actor,
			At:        time.Now(),
		})
	}

	c.logger.Debug("adapter status transition",
		"adapter_id", adapter.ID,
		"from", string(previous.State),
		"to", string(next.State),
		"action", action)

	return nil
}

func (c *Controller) audit(ctx context.Context, adapterID, action, message, actor string) {
	entry := domain.AuditEntry{
		AdapterID: adapterID,
		Action:    action,
		Message:   message,
		Actor:     actor,
		At:        time.Now(),
	}

	if err := c.registry.AppendAudit(ctx, entry); err != nil {
		c.logger.Warn("failed to write audit entry",
			"adapter_id", adapterID,
			"action", action,
			"error", err)
	}
}
