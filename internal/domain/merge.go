package domain

import (
	"dario.cat/mergo"
)

// MergeContexts is the reducer applied at a join point: every branch result is
// folded into the parent context in completion order. Branch values override
// parent values, slices are appended rather than replaced.
func MergeContexts(parent, branch ExecutionContext) (ExecutionContext, error) {
	if len(branch) == 0 {
		return parent, nil
	}
	if len(parent) == 0 {
		return branch.Fork(), nil
	}

	merged := map[string]interface{}(parent.Fork())
	if err := mergo.Merge(&merged, map[string]interface{}(branch),
		mergo.WithOverride,
		mergo.WithAppendSlice); err != nil {
		return nil, Error{
			Type:    ErrorTypeInternal,
			Message: "failed to merge branch context",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}

	return ExecutionContext(merged), nil
}
