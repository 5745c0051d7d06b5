package ports

import (
	"context"
)

// LifecyclePort enforces the adapter state machine. All mutations fail with a
// not-found error for unknown adapters.
type LifecyclePort interface {
	Start(ctx context.Context, adapterID, actor string) error
	Stop(ctx context.Context, adapterID, actor string) error
	Restart(ctx context.Context, adapterID, actor string) error
	SetActive(ctx context.Context, adapterID string, active bool, actor string) error
	SetError(ctx context.Context, adapterID, message string) error
}
