package engine

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interlace-io/interlace/internal/domain"
)

func TestWorkerPool_ExecutesSubmittedTasks(t *testing.T) {
	p := newWorkerPool(2, 8)
	defer p.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			mu.Lock()
			count++
			mu.Unlock()
		}))
	}

	wg.Wait()
	assert.Equal(t, 8, count)
}

func TestWorkerPool_SaturationReturnsError(t *testing.T) {
	p := newWorkerPool(1, 1)
	defer p.Stop()

	block := make(chan struct{})
	running := make(chan struct{})

	require.NoError(t, p.Submit(func() {
		close(running)
		<-block
	}))
	<-running

	// Worker busy, queue slot taken: the next submit must be refused.
	require.NoError(t, p.Submit(func() {}))
	err := p.Submit(func() {})
	assert.True(t, errors.Is(err, domain.ErrEngineSaturated))

	close(block)
}

func TestWorkerPool_SubmitOrRunFallsBackInline(t *testing.T) {
	p := newWorkerPool(1, 1)
	defer p.Stop()

	block := make(chan struct{})
	running := make(chan struct{})

	require.NoError(t, p.Submit(func() {
		close(running)
		<-block
	}))
	<-running
	require.NoError(t, p.Submit(func() {}))

	ran := false
	p.SubmitOrRun(func() { ran = true })
	assert.True(t, ran)

	close(block)
}

func TestWorkerPool_SubmitOrRunBypassesQueuedBacklog(t *testing.T) {
	p := newWorkerPool(1, 4)
	defer p.Stop()

	block := make(chan struct{})
	running := make(chan struct{})

	require.NoError(t, p.Submit(func() {
		close(running)
		<-block
	}))
	<-running
	require.NoError(t, p.Submit(func() {}))

	// The queue has room, but the only worker is busy. The task must run
	// inline now rather than park behind the backlog.
	ran := false
	p.SubmitOrRun(func() { ran = true })
	assert.True(t, ran)

	close(block)
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	p := newWorkerPool(1, 1)
	p.Stop()

	err := p.Submit(func() {})
	assert.True(t, errors.Is(err, domain.ErrNotStarted))
}
