package ports

import (
	"context"

	"github.com/interlace-io/interlace/internal/domain"
)

// AdapterRegistryPort is the persisted adapter catalogue. Status writes go
// through UpdateStatus only; it is the single atomic status-update operation
// the lifecycle controller builds on.
type AdapterRegistryPort interface {
	GetAdapter(ctx context.Context, id string) (*domain.Adapter, error)
	ListAdapters(ctx context.Context) ([]domain.Adapter, error)
	SaveAdapter(ctx context.Context, adapter *domain.Adapter) error
	UpdateStatus(ctx context.Context, id string, status domain.AdapterStatus) error
	SetActive(ctx context.Context, id string, active bool) error
	AppendAudit(ctx context.Context, entry domain.AuditEntry) error
	ListAudit(ctx context.Context, adapterID string) ([]domain.AuditEntry, error)
}

// FlowStorePort persists flow definitions. Save bumps the version counter.
type FlowStorePort interface {
	GetFlow(ctx context.Context, id string) (*domain.FlowDefinition, error)
	ListFlows(ctx context.Context) ([]domain.FlowDefinition, error)
	SaveFlow(ctx context.Context, flow *domain.FlowDefinition) error
	DeleteFlow(ctx context.Context, id string) error
}

// DeploymentStorePort persists deployment records and their rolling stats.
type DeploymentStorePort interface {
	GetDeployment(ctx context.Context, id string) (*domain.DeployedFlow, error)
	GetDeploymentsByFlow(ctx context.Context, flowID string) ([]domain.DeployedFlow, error)
	ListDeployments(ctx context.Context) ([]domain.DeployedFlow, error)
	SaveDeployment(ctx context.Context, deployment *domain.DeployedFlow) error
	DeleteDeployment(ctx context.Context, id string) error
}
