package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapterStatus_Variants(t *testing.T) {
	assert.True(t, StatusStopped().IsStopped())
	assert.True(t, StatusStarted().IsStarted())

	at := time.Now()
	errored := StatusErrored("connection refused", at)
	assert.True(t, errored.IsErrored())
	assert.Equal(t, "connection refused", errored.Message)
	require.NotNil(t, errored.ErroredAt)
	assert.Equal(t, at, *errored.ErroredAt)
}

func TestAdapterStatus_Startable(t *testing.T) {
	assert.True(t, StatusStopped().Startable())
	assert.True(t, StatusErrored("boom", time.Now()).Startable())
	assert.False(t, StatusStarted().Startable())
}

func TestAdapterStatus_ErrorFieldsOnlyOnErrored(t *testing.T) {
	assert.Empty(t, StatusStopped().Message)
	assert.Nil(t, StatusStopped().ErroredAt)
	assert.Empty(t, StatusStarted().Message)
	assert.Nil(t, StatusStarted().ErroredAt)
}

func TestExecutionStatus_Terminal(t *testing.T) {
	assert.True(t, ExecutionCompleted.Terminal())
	assert.True(t, ExecutionFailed.Terminal())
	assert.True(t, ExecutionCancelled.Terminal())
	assert.False(t, ExecutionPending.Terminal())
	assert.False(t, ExecutionRunning.Terminal())
	assert.False(t, ExecutionRetryPending.Terminal())
}
