package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFork_IsIndependent(t *testing.T) {
	parent := ExecutionContext{"a": 1}
	branch := parent.Fork()
	branch["a"] = 2
	branch["b"] = 3

	assert.Equal(t, 1, parent["a"])
	assert.NotContains(t, parent, "b")
}

func TestWith_LeavesReceiverUntouched(t *testing.T) {
	base := ExecutionContext{"a": 1}
	next := base.With(map[string]interface{}{"b": 2})

	assert.Equal(t, 2, next["b"])
	assert.NotContains(t, base, "b")
}

func TestWith_EmptyResultsReturnsSameContext(t *testing.T) {
	base := ExecutionContext{"a": 1}
	assert.Equal(t, base, base.With(nil))
}

func TestFiles_ToleratesBothRepresentations(t *testing.T) {
	ctx := ExecutionContext{
		"decoded": []interface{}{"x.csv", "y.csv"},
		"typed":   []string{"z.csv"},
		"other":   42,
	}

	assert.Len(t, ctx.Files("decoded"), 2)
	assert.Len(t, ctx.Files("typed"), 1)
	assert.Nil(t, ctx.Files("other"))
	assert.Nil(t, ctx.Files("missing"))
}

func TestMergeContexts_BranchOverridesParent(t *testing.T) {
	parent := ExecutionContext{"a": "parent", "keep": true}
	branch := ExecutionContext{"a": "branch"}

	merged, err := MergeContexts(parent, branch)
	require.NoError(t, err)

	assert.Equal(t, "branch", merged["a"])
	assert.Equal(t, true, merged["keep"])
	assert.Equal(t, "parent", parent["a"])
}

func TestMergeContexts_AppendsSlices(t *testing.T) {
	parent := ExecutionContext{KeyFilesToProcess: []interface{}{"a.csv"}}
	branch := ExecutionContext{KeyFilesToProcess: []interface{}{"b.csv"}}

	merged, err := MergeContexts(parent, branch)
	require.NoError(t, err)

	assert.Len(t, merged.Files(KeyFilesToProcess), 2)
}

func TestMergeContexts_EmptySides(t *testing.T) {
	parent := ExecutionContext{"a": 1}

	merged, err := MergeContexts(parent, nil)
	require.NoError(t, err)
	assert.Equal(t, parent, merged)

	merged, err = MergeContexts(nil, parent)
	require.NoError(t, err)
	assert.Equal(t, 1, merged["a"])
}
