// Package loom provides an embedded workflow graph execution engine for
// Go applications.
//
// Loom executes workflows defined as graphs of typed nodes connected by
// data and control edges. It provides:
//   - Static validation of workflow graphs (duplicate IDs, dangling
//     edges, port type mismatches, cycles)
//   - Dependency-ordered concurrent execution on a bounded worker pool
//   - Conditional branching with true short-circuit of untaken branches
//   - Pause, resume, and cooperative cancellation per run
//   - An append-only, subscribable execution log per run
//   - Pluggable persistence sinks for finished runs
//
// Basic usage:
//
//	engine, _ := loom.New(loom.Config{})
//	engine.RegisterTemplate(loom.NodeTemplate{
//	    Type:    "greet",
//	    Outputs: []loom.Port{{ID: "out", Kind: loom.PortKindData}},
//	    Executor: func(ctx context.Context, call loom.ExecutorCall) (loom.Outputs, error) {
//	        return loom.Outputs{"out": "hello"}, nil
//	    },
//	})
//
//	def, _ := loom.DefineWorkflow(nodes, edges)
//	runID, _ := engine.Start(context.Background(), def, nil)
package loom

import (
	"context"

	"github.com/eleven-am/loom/internal/adapters/engine"
	"github.com/eleven-am/loom/internal/adapters/memory"
	"github.com/eleven-am/loom/internal/domain"
	"github.com/eleven-am/loom/internal/ports"
)

// Definition is an immutable, validated workflow graph, safe to share
// across concurrent runs.
type Definition = domain.Definition

// Node is a typed operation in a workflow graph with declared input and
// output ports.
type Node = domain.Node

// Edge is a directed connection from one node's output port to another
// node's input port.
type Edge = domain.Edge

// Port is a named, typed attachment point through which values or
// signals flow.
type Port = domain.Port

// PortKind classifies a port as data, control, or trigger.
type PortKind = domain.PortKind

const (
	PortKindData    = domain.PortKindData
	PortKindControl = domain.PortKindControl
	PortKindTrigger = domain.PortKindTrigger
)

// NodeTemplate describes a node type: its port schemas, branching
// behavior, default timeout, and the executor implementing it.
type NodeTemplate = domain.NodeTemplate

// ExecutorFunc is the injected executor boundary; see domain.ExecutorFunc
// for the cancellation and timeout contract.
type ExecutorFunc = domain.ExecutorFunc

// ExecutorCall carries the config and port-keyed inputs for one node
// invocation.
type ExecutorCall = domain.ExecutorCall

// Outputs holds executor results keyed by declared output port ID.
type Outputs = domain.Outputs

// ExecutionRun is a point-in-time snapshot of one run.
type ExecutionRun = domain.ExecutionRun

// ExecutionLogEntry is one immutable record in a run's append-only log.
type ExecutionLogEntry = domain.ExecutionLogEntry

// LogLevel is the severity of an ExecutionLogEntry.
type LogLevel = domain.LogLevel

// RunStatus is the lifecycle status of a run.
type RunStatus = domain.RunStatus

const (
	RunStatusPending   = domain.RunStatusPending
	RunStatusRunning   = domain.RunStatusRunning
	RunStatusPaused    = domain.RunStatusPaused
	RunStatusCompleted = domain.RunStatusCompleted
	RunStatusFailed    = domain.RunStatusFailed
	RunStatusCancelled = domain.RunStatusCancelled
)

// NodeState is the lifecycle state of one node within a run.
type NodeState = domain.NodeState

const (
	NodeStatePending   = domain.NodeStatePending
	NodeStateReady     = domain.NodeStateReady
	NodeStateExecuting = domain.NodeStateExecuting
	NodeStateCompleted = domain.NodeStateCompleted
	NodeStateFailed    = domain.NodeStateFailed
	NodeStateSkipped   = domain.NodeStateSkipped
)

// ValidationError reports a statically invalid workflow graph.
type ValidationError = domain.ValidationError

// ValidationCode identifies the specific validation failure.
type ValidationCode = domain.ValidationCode

const (
	ValidationDuplicateNodeID  = domain.ValidationDuplicateNodeID
	ValidationDanglingEdge     = domain.ValidationDanglingEdge
	ValidationPortTypeMismatch = domain.ValidationPortTypeMismatch
	ValidationCycleDetected    = domain.ValidationCycleDetected
	ValidationNoTriggerNode    = domain.ValidationNoTriggerNode
	ValidationUnknownTemplate  = domain.ValidationUnknownTemplate
)

// NodeExecutionError wraps an error returned or panicked by an executor.
type NodeExecutionError = domain.NodeExecutionError

// NodeTimeoutError reports a node that exceeded its hard timeout.
type NodeTimeoutError = domain.NodeTimeoutError

// Persistence is the sink invoked exactly once per terminal run.
type Persistence = ports.Persistence

// TemplateRegistry resolves node types to templates.
type TemplateRegistry = ports.TemplateRegistry

var (
	ErrRunNotFound          = domain.ErrRunNotFound
	ErrRunAlreadyTerminated = domain.ErrRunAlreadyTerminated
	ErrRunNotPaused         = domain.ErrRunNotPaused
	ErrCancelled            = domain.ErrCancelled
	ErrEngineClosed         = domain.ErrEngineClosed
)

// DefineWorkflow validates nodes and edges and returns an immutable
// Definition. Errors are returned, never thrown, and no partially valid
// definition is ever produced.
func DefineWorkflow(nodes []Node, edges []Edge) (*Definition, error) {
	return domain.NewDefinition(nodes, edges)
}

// MarshalDefinition serializes a definition to the stable editor wire
// shape; UnmarshalDefinition parses and re-validates it. The two
// round-trip losslessly.
func MarshalDefinition(def *Definition) ([]byte, error) {
	return domain.MarshalDefinition(def)
}

func UnmarshalDefinition(data []byte) (*Definition, error) {
	return domain.UnmarshalDefinition(data)
}

// Engine executes workflow definitions. Create one with New, register
// templates at startup, then start runs against validated definitions.
type Engine struct {
	registry *memory.TemplateRegistry
	inner    *engine.Engine
}

// New creates an engine from the given config. Zero-value fields take
// defaults; see Config.
func New(config Config) (*Engine, error) {
	engineConfig, err := config.build()
	if err != nil {
		return nil, err
	}

	registry := memory.NewTemplateRegistry(engineConfig.Logger)
	inner := engine.NewEngine(engineConfig, registry, config.Persistence, engineConfig.Logger)

	return &Engine{
		registry: registry,
		inner:    inner,
	}, nil
}

// RegisterTemplate adds a node template to the engine's registry.
// Templates are registered at startup and resolved on every Start.
func (e *Engine) RegisterTemplate(template NodeTemplate) error {
	return e.registry.Register(template)
}

// Templates returns the registered template types in sorted order.
func (e *Engine) Templates() []string {
	return e.registry.Types()
}

// Start creates a run and schedules its trigger nodes. triggerInputs
// provides initial port values per trigger node ID and may be nil.
func (e *Engine) Start(ctx context.Context, def *Definition, triggerInputs map[string]map[string]interface{}) (string, error) {
	return e.inner.Start(ctx, def, triggerInputs)
}

// Pause stops dispatching ready nodes; in-flight executions continue.
func (e *Engine) Pause(runID string) error {
	return e.inner.Pause(runID)
}

// Resume restarts dispatching, including nodes that became ready while
// paused.
func (e *Engine) Resume(runID string) error {
	return e.inner.Resume(runID)
}

// Cancel cooperatively cancels a run. Not-yet-started nodes are skipped;
// a second Cancel on a cancelled run is a no-op.
func (e *Engine) Cancel(runID string) error {
	return e.inner.Cancel(runID)
}

// GetRunSnapshot returns a consistent point-in-time view of the run.
func (e *Engine) GetRunSnapshot(runID string) (*ExecutionRun, error) {
	return e.inner.Snapshot(runID)
}

// SubscribeToLog returns the run's ordered log stream and an unsubscribe
// func.
func (e *Engine) SubscribeToLog(runID string) (<-chan ExecutionLogEntry, func(), error) {
	return e.inner.SubscribeLog(runID)
}

// Wait blocks until the run reaches a terminal status or the context is
// cancelled.
func (e *Engine) Wait(ctx context.Context, runID string) error {
	return e.inner.Wait(ctx, runID)
}

// Close cancels active runs and stops the worker pool.
func (e *Engine) Close() error {
	return e.inner.Close()
}
