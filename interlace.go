// Package interlace is an embeddable integration-flow engine. Flows are
// directed graphs of adapter, utility, and control nodes; the engine deploys
// a flow by starting the adapters it references, executes runs through a
// depth-first walk with parallel fan-out, and records every node visit in a
// persistent ledger.
//
// Basic usage:
//
//	cfg := interlace.DefaultConfig()
//	cfg.DataDir = "./data"
//
//	manager, err := interlace.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	manager.SetAdapterExecutor(&MyAdapterExecutor{})
//	manager.Start(context.Background())
//	defer manager.Stop()
//
//	manager.DeployFlow(ctx, "flow-123", "operator")
//	handle, _ := manager.ExecuteFlow(ctx, "flow-123", interlace.TriggerManual, payload)
//	result, _ := handle.Wait(ctx)
package interlace

import (
	"github.com/interlace-io/interlace/internal/adapters/engine"
	"github.com/interlace-io/interlace/internal/core"
	"github.com/interlace-io/interlace/internal/domain"
	"github.com/interlace-io/interlace/internal/ports"
)

// Manager is the top-level entry point: it owns storage, the adapter
// lifecycle, deployments, and the execution engine.
type Manager = core.Manager

// New opens the data directory and assembles a manager. Call Start before
// deploying or executing flows.
func New(config *Config) (*Manager, error) {
	return core.New(config)
}

// Config is the full engine configuration. Zero values fall back to the
// defaults from DefaultConfig.
type Config = domain.Config

// EngineConfig tunes the execution engine's worker pool and timeouts.
type EngineConfig = domain.EngineConfig

// NotificationsConfig enables mirroring events onto NATS.
type NotificationsConfig = domain.NotificationsConfig

func DefaultConfig() *Config {
	return domain.DefaultConfig()
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	return domain.LoadConfig(path)
}

// InMemoryDataDir selects the non-persistent storage mode.
const InMemoryDataDir = core.InMemoryDataDir

// FlowDefinition is the graph a deployment snapshots and a run interprets.
type FlowDefinition = domain.FlowDefinition

type Node = domain.Node
type Edge = domain.Edge

// Adapter is a configured endpoint connection managed by the lifecycle
// state machine.
type Adapter = domain.Adapter

type AdapterStatus = domain.AdapterStatus
type AuditEntry = domain.AuditEntry

type Direction = domain.Direction

const (
	DirectionSender   = domain.DirectionSender
	DirectionReceiver = domain.DirectionReceiver
)

// FlowExecution is one run of a deployed flow; FlowExecutionStep is one node
// visit within it.
type FlowExecution = domain.FlowExecution
type FlowExecutionStep = domain.FlowExecutionStep

type ExecutionStatus = domain.ExecutionStatus
type TriggerType = domain.TriggerType

const (
	TriggerManual    = domain.TriggerManual
	TriggerScheduled = domain.TriggerScheduled
	TriggerRetry     = domain.TriggerRetry
)

// RunHandle tracks an asynchronous run; Wait blocks for its outcome.
type RunHandle = engine.RunHandle

type DeployedFlow = domain.DeployedFlow
type DeploySummary = domain.DeploySummary
type UndeployResult = domain.UndeployResult
type ValidationResult = domain.ValidationResult

type ExecutionMetrics = domain.ExecutionMetrics

// AdapterExecutorPort performs the actual transfer work of adapter nodes; the
// embedding application provides the implementation.
type AdapterExecutorPort = ports.AdapterExecutorPort

// UtilityExecutorPort runs utility nodes (compression, encryption, custom
// payload processors).
type UtilityExecutorPort = ports.UtilityExecutorPort

// SchedulerPort is notified when deployments come and go so scheduled
// triggers can be registered externally.
type SchedulerPort = ports.SchedulerPort
