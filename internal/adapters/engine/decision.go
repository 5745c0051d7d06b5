package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/interlace-io/interlace/internal/domain"
)

const (
	conditionAlwaysTrue           = "ALWAYS_TRUE"
	conditionAlwaysFalse          = "ALWAYS_FALSE"
	conditionContextContainsKey   = "CONTEXT_CONTAINS_KEY"
	conditionContextValueEquals   = "CONTEXT_VALUE_EQUALS"
	conditionFileCountGreaterThan = "FILE_COUNT_GREATER_THAN"
)

// decisionHandler evaluates a fixed set of condition kinds against the
// context and writes the boolean result back. Unknown kinds evaluate to true
// with a warning; that looseness is long-standing contract, not an oversight.
type decisionHandler struct {
	logger *slog.Logger
}

func (h *decisionHandler) NodeType() string { return domain.NodeTypeDecision }

func (h *decisionHandler) Execute(_ context.Context, visit NodeVisit, execCtx domain.ExecutionContext, _ *domain.FlowExecutionStep) (map[string]interface{}, error) {
	conditionType, _ := visit.Node.Data["conditionType"].(string)
	conditionValue, _ := visit.Node.Data["conditionValue"].(string)

	result := h.evaluate(visit.Node.ID, conditionType, conditionValue, execCtx)

	return map[string]interface{}{
		"decisionResult":    result,
		"decisionCondition": conditionType,
	}, nil
}

func (h *decisionHandler) evaluate(nodeID, conditionType, conditionValue string, execCtx domain.ExecutionContext) bool {
	switch conditionType {
	case conditionAlwaysTrue:
		return true

	case conditionAlwaysFalse:
		return false

	case conditionContextContainsKey:
		_, ok := execCtx[conditionValue]
		return ok

	case conditionContextValueEquals:
		key, want, ok := strings.Cut(conditionValue, "=")
		if !ok {
			h.logger.Warn("malformed CONTEXT_VALUE_EQUALS condition, expected key=value",
				"node_id", nodeID,
				"condition_value", conditionValue)
			return false
		}
		got, present := execCtx[key]
		return present && fmt.Sprint(got) == want

	case conditionFileCountGreaterThan:
		threshold, err := strconv.Atoi(strings.TrimSpace(conditionValue))
		if err != nil {
			h.logger.Warn("malformed FILE_COUNT_GREATER_THAN threshold",
				"node_id", nodeID,
				"condition_value", conditionValue)
			return false
		}
		return len(execCtx.Files(domain.KeyFilesToProcess)) > threshold

	default:
		h.logger.Warn("unknown condition type, defaulting to true",
			"node_id", nodeID,
			"condition_type", conditionType)
		return true
	}
}
