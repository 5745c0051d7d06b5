package ports

import (
	"github.com/interlace-io/interlace/internal/domain"
)

// NotificationPort is the fire-and-forget push of run/step/adapter/deployment
// state changes. Methods return nothing: a notification failure must never
// fail the operation that produced it.
type NotificationPort interface {
	RunStarted(event domain.RunStartedEvent)
	RunCompleted(event domain.RunCompletedEvent)
	RunFailed(event domain.RunFailedEvent)
	RunCancelled(event domain.RunCancelledEvent)
	StepStarted(event domain.StepStartedEvent)
	StepFinished(event domain.StepFinishedEvent)
	AdapterStateChanged(event domain.AdapterStateChangedEvent)
	FlowDeployed(event domain.FlowDeployedEvent)
	FlowUndeployed(event domain.FlowUndeployedEvent)
}
