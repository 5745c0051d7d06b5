package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/interlace-io/interlace/internal/domain"
	"github.com/interlace-io/interlace/internal/ports"
)

// startHandler is pure flow control: it promotes files the separate
// sender-adapter execution already deposited under triggerData into
// filesToProcess. It never calls an adapter itself.
type startHandler struct{}

func (h *startHandler) NodeType() string { return domain.NodeTypeStart }

func (h *startHandler) Execute(_ context.Context, _ NodeVisit, execCtx domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
	results := map[string]interface{}{}

	if trigger, ok := execCtx[domain.KeyTriggerData].(map[string]interface{}); ok {
		if files, ok := trigger[domain.KeyFoundFiles]; ok {
			results[domain.KeyFilesToProcess] = files
		}
	}

	return results, nil
}

// endHandler forwards filesToProcess into receiverFiles for downstream
// adapter executions.
type endHandler struct{}

func (h *endHandler) NodeType() string { return domain.NodeTypeEnd }

func (h *endHandler) Execute(_ context.Context, _ NodeVisit, execCtx domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
	results := map[string]interface{}{}

	if files, ok := execCtx[domain.KeyFilesToProcess]; ok {
		results[domain.KeyReceiverFiles] = files
	}

	return results, nil
}

// messageEndHandler does the same forwarding as endHandler and additionally
// may invoke one receiver adapter inline with an event-type/payload envelope.
type messageEndHandler struct {
	registry    ports.AdapterRegistryPort
	adapterExec ports.AdapterExecutorPort
	logger      *slog.Logger
}

func (h *messageEndHandler) NodeType() string { return domain.NodeTypeMessageEnd }

func (h *messageEndHandler) Execute(ctx context.Context, visit NodeVisit, execCtx domain.ExecutionContext, step *domain.FlowExecutionStep) (map[string]interface{}, error) {
	results := map[string]interface{}{}

	if files, ok := execCtx[domain.KeyFilesToProcess]; ok {
		results[domain.KeyReceiverFiles] = files
	}

	receiverID, _ := visit.Node.Data["receiverAdapterId"].(string)
	if receiverID == "" {
		return results, nil
	}

	adapter, err := h.registry.GetAdapter(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if !adapter.Active {
		return nil, domain.NewLifecycleError(receiverID, "message_end", domain.ErrAdapterInactive)
	}

	eventType, _ := visit.Node.Data["eventType"].(string)
	envelope := execCtx.With(map[string]interface{}{
		"event": map[string]interface{}{
			"type":    eventType,
			"payload": execCtx[domain.KeyPayload],
		},
	})

	h.logger.Debug("message-end invoking receiver adapter inline",
		"node_id", visit.Node.ID,
		"adapter_id", receiverID,
		"event_type", eventType)

	out, err := h.adapterExec.Execute(ctx, receiverID, envelope, step)
	if err != nil {
		return nil, err
	}
	for k, v := range out {
		results[k] = v
	}

	return results, nil
}

// adapterHandler delegates the actual transfer to the adapter-execution
// collaborator and tags the result with the adapter's identity.
type adapterHandler struct {
	registry    ports.AdapterRegistryPort
	adapterExec ports.AdapterExecutorPort
	logger      *slog.Logger
}

func (h *adapterHandler) NodeType() string { return domain.NodeTypeAdapter }

func (h *adapterHandler) Execute(ctx context.Context, visit NodeVisit, execCtx domain.ExecutionContext, step *domain.FlowExecutionStep) (map[string]interface{}, error) {
	adapterID, _ := visit.Node.Data["adapterId"].(string)
	if adapterID == "" {
		return nil, domain.NewValidationError("adapter node " + visit.Node.ID + " has no adapterId")
	}

	adapter, err := h.registry.GetAdapter(ctx, adapterID)
	if err != nil {
		return nil, err
	}
	if !adapter.Active {
		return nil, domain.NewLifecycleError(adapterID, "execute", domain.ErrAdapterInactive)
	}

	start := time.Now()
	results, err := h.adapterExec.Execute(ctx, adapterID, execCtx, step)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("adapter execution finished",
		"node_id", visit.Node.ID,
		"adapter_id", adapterID,
		"duration", time.Since(start))

	if results == nil {
		results = map[string]interface{}{}
	}
	results["adapterId"] = adapterID
	if adapterType, ok := visit.Node.Data["adapterType"].(string); ok && adapterType != "" {
		results["adapterType"] = adapterType
	} else {
		results["adapterType"] = string(adapter.Direction)
	}

	return results, nil
}

// utilityHandler delegates to the utility-execution collaborator
// (compression, PGP, and other payload processors are external).
type utilityHandler struct {
	utilityExec ports.UtilityExecutorPort
}

func (h *utilityHandler) NodeType() string { return domain.NodeTypeUtility }

func (h *utilityHandler) Execute(ctx context.Context, visit NodeVisit, execCtx domain.ExecutionContext, step *domain.FlowExecutionStep) (map[string]interface{}, error) {
	utilityType, _ := visit.Node.Data["utilityType"].(string)
	if utilityType == "" {
		return nil, domain.NewValidationError("utility node " + visit.Node.ID + " has no utilityType")
	}

	config, _ := visit.Node.Data["config"].(map[string]interface{})

	return h.utilityExec.Execute(ctx, utilityType, config, execCtx, step)
}

// parallelSplitHandler is a metadata-only marker: it reports how much work is
// queued and how many paths leave the node. The fan-out itself is the
// walker's generic multi-edge rule.
type parallelSplitHandler struct{}

func (h *parallelSplitHandler) NodeType() string { return domain.NodeTypeParallelSplit }

func (h *parallelSplitHandler) Execute(_ context.Context, visit NodeVisit, execCtx domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
	return map[string]interface{}{
		"queuedFiles":   len(execCtx.Files(domain.KeyFilesToProcess)),
		"parallelPaths": len(visit.Outgoing),
	}, nil
}
