package ports

import (
	"context"

	"github.com/interlace-io/interlace/internal/domain"
)

// SchedulerPort registers and removes recurring triggers for a deployment.
// A registration failure on deploy is logged, never rolled back; the same
// holds for deregistration on undeploy.
type SchedulerPort interface {
	OnFlowDeployed(ctx context.Context, deployment *domain.DeployedFlow) error
	OnFlowUndeployed(ctx context.Context, deploymentID string) error
}
