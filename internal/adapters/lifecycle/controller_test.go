package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interlace-io/interlace/internal/domain"
)

type fakeRegistry struct {
	adapters map[string]*domain.Adapter
	audit    []domain.AuditEntry
	failNext error
}

func newFakeRegistry(adapters ...*domain.Adapter) *fakeRegistry {
	r := &fakeRegistry{adapters: make(map[string]*domain.Adapter)}
	for _, a := range adapters {
		r.adapters[a.ID] = a
	}
	return r
}

func (r *fakeRegistry) GetAdapter(_ context.Context, id string) (*domain.Adapter, error) {
	a, ok := r.adapters[id]
	if !ok {
		return nil, domain.NewNotFoundError("adapter", id)
	}
	copied := *a
	return &copied, nil
}

func (r *fakeRegistry) ListAdapters(_ context.Context) ([]domain.Adapter, error) {
	var out []domain.Adapter
	for _, a := range r.adapters {
		out = append(out, *a)
	}
	return out, nil
}

func (r *fakeRegistry) SaveAdapter(_ context.Context, adapter *domain.Adapter) error {
	r.adapters[adapter.ID] = adapter
	return nil
}

func (r *fakeRegistry) UpdateStatus(_ context.Context, id string, status domain.AdapterStatus) error {
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	a, ok := r.adapters[id]
	if !ok {
		return domain.NewNotFoundError("adapter", id)
	}
	a.Status = status
	return nil
}

func (r *fakeRegistry) SetActive(_ context.Context, id string, active bool) error {
	a, ok := r.adapters[id]
	if !ok {
		return domain.NewNotFoundError("adapter", id)
	}
	a.Active = active
	return nil
}

func (r *fakeRegistry) AppendAudit(_ context.Context, entry domain.AuditEntry) error {
	r.audit = append(r.audit, entry)
	return nil
}

func (r *fakeRegistry) ListAudit(_ context.Context, adapterID string) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range r.audit {
		if e.AdapterID == adapterID {
			out = append(out, e)
		}
	}
	return out, nil
}

func stoppedAdapter(id string) *domain.Adapter {
	return &domain.Adapter{
		ID:        id,
		Name:      id,
		Active:    true,
		Direction: domain.DirectionSender,
		Status:    domain.StatusStopped(),
	}
}

func TestStart_TransitionsToStarted(t *testing.T) {
	registry := newFakeRegistry(stoppedAdapter("a1"))
	c := NewController(registry, nil, slog.Default())

	require.NoError(t, c.Start(context.Background(), "a1", "tester"))

	assert.True(t, registry.adapters["a1"].Status.IsStarted())
	require.Len(t, registry.audit, 1)
	assert.Equal(t, "start", registry.audit[0].Action)
	assert.Equal(t, "tester", registry.audit[0].Actor)
}

func TestStart_RefusesInactiveAdapter(t *testing.T) {
	adapter := stoppedAdapter("a1")
	adapter.Active = false
	registry := newFakeRegistry(adapter)
	c := NewController(registry, nil, slog.Default())

	err := c.Start(context.Background(), "a1", "tester")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAdapterInactive))
	assert.True(t, registry.adapters["a1"].Status.IsStopped())
}

func TestStart_AlreadyStartedIsNoOp(t *testing.T) {
	adapter := stoppedAdapter("a1")
	adapter.Status = domain.StatusStarted()
	registry := newFakeRegistry(adapter)
	c := NewController(registry, nil, slog.Default())

	require.NoError(t, c.Start(context.Background(), "a1", "tester"))
	assert.Empty(t, registry.audit)
}

func TestStart_FromErroredWithoutReactivation(t *testing.T) {
	adapter := stoppedAdapter("a1")
	adapter.Status = domain.StatusErrored("remote closed", time.Now())
	registry := newFakeRegistry(adapter)
	c := NewController(registry, nil, slog.Default())

	require.NoError(t, c.Start(context.Background(), "a1", "tester"))

	status := registry.adapters["a1"].Status
	assert.True(t, status.IsStarted())
	assert.Empty(t, status.Message)
	assert.Nil(t, status.ErroredAt)
}

func TestStop_NotStartedIsNoOp(t *testing.T) {
	registry := newFakeRegistry(stoppedAdapter("a1"))
	c := NewController(registry, nil, slog.Default())

	require.NoError(t, c.Stop(context.Background(), "a1", "tester"))
	assert.Empty(t, registry.audit)
	assert.True(t, registry.adapters["a1"].Status.IsStopped())
}

func TestRestart_CyclesThroughStop(t *testing.T) {
	adapter := stoppedAdapter("a1")
	adapter.Status = domain.StatusStarted()
	registry := newFakeRegistry(adapter)
	c := NewController(registry, nil, slog.Default())

	require.NoError(t, c.Restart(context.Background(), "a1", "tester"))

	assert.True(t, registry.adapters["a1"].Status.IsStarted())
	require.Len(t, registry.audit, 2)
	assert.Equal(t, "stop", registry.audit[0].Action)
	assert.Equal(t, "start", registry.audit[1].Action)
}

func TestSetActive_DeactivatingStartedAdapterStopsIt(t *testing.T) {
	adapter := stoppedAdapter("a1")
	adapter.Status = domain.StatusStarted()
	registry := newFakeRegistry(adapter)
	c := NewController(registry, nil, slog.Default())

	require.NoError(t, c.SetActive(context.Background(), "a1", false, "tester"))

	assert.False(t, registry.adapters["a1"].Active)
	assert.True(t, registry.adapters["a1"].Status.IsStopped())
}

func TestSetError_RecordsMessageAndTimestamp(t *testing.T) {
	adapter := stoppedAdapter("a1")
	adapter.Status = domain.StatusStarted()
	registry := newFakeRegistry(adapter)
	c := NewController(registry, nil, slog.Default())

	require.NoError(t, c.SetError(context.Background(), "a1", "poll failed"))

	status := registry.adapters["a1"].Status
	assert.True(t, status.IsErrored())
	assert.Equal(t, "poll failed", status.Message)
	assert.NotNil(t, status.ErroredAt)
}

func TestStart_UnknownAdapter(t *testing.T) {
	c := NewController(newFakeRegistry(), nil, slog.Default())

	err := c.Start(context.Background(), "ghost", "tester")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestTransition_StatusWriteFailureSurfaces(t *testing.T) {
	registry := newFakeRegistry(stoppedAdapter("a1"))
	registry.failNext = errors.New("disk full")
	c := NewController(registry, nil, slog.Default())

	err := c.Start(context.Background(), "a1", "tester")
	require.Error(t, err)

	var le *domain.LifecycleError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "a1", le.AdapterID)
}
