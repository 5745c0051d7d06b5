package notifications

import (
	"context"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/interlace-io/interlace/internal/domain"
)

// NATSPublisher mirrors every event onto a NATS subject tree under the
// configured prefix:
//
//	<prefix>.run.started / completed / failed / cancelled
//	<prefix>.step.started / finished
//	<prefix>.adapter.state
//	<prefix>.flow.deployed / undeployed
//
// Publish failures are logged and dropped; downstream consumers are
// best-effort observers, never participants in the operation.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

func NewNATSPublisher(ctx context.Context, cfg domain.NotificationsConfig, logger *slog.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("interlace-notifications"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(5 * time.Second),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, domain.NewStorageError("nats_connect", cfg.URL, err)
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "interlace"
	}

	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.With("component", "nats-publisher"),
	}, nil
}

// Close drains the connection so queued publishes flush before shutdown.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

func (p *NATSPublisher) publish(subject string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode notification", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(p.prefix+"."+subject, data); err != nil {
		p.logger.Warn("failed to publish notification", "subject", subject, "error", err)
	}
}

func (p *NATSPublisher) RunStarted(event domain.RunStartedEvent) {
	p.publish("run.started", event)
}

func (p *NATSPublisher) RunCompleted(event domain.RunCompletedEvent) {
	p.publish("run.completed", event)
}

func (p *NATSPublisher) RunFailed(event domain.RunFailedEvent) {
	p.publish("run.failed", event)
}

func (p *NATSPublisher) RunCancelled(event domain.RunCancelledEvent) {
	p.publish("run.cancelled", event)
}

func (p *NATSPublisher) StepStarted(event domain.StepStartedEvent) {
	p.publish("step.started", event)
}

func (p *NATSPublisher) StepFinished(event domain.StepFinishedEvent) {
	p.publish("step.finished", event)
}

func (p *NATSPublisher) AdapterStateChanged(event domain.AdapterStateChangedEvent) {
	p.publish("adapter.state", event)
}

func (p *NATSPublisher) FlowDeployed(event domain.FlowDeployedEvent) {
	p.publish("flow.deployed", event)
}

func (p *NATSPublisher) FlowUndeployed(event domain.FlowUndeployedEvent) {
	p.publish("flow.undeployed", event)
}
