package domain

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
)

// ExecutorCall carries everything an injected executor receives for one
// node invocation. Inputs are keyed by declared input port ID; optional
// ports that received no value are present with a nil entry.
type ExecutorCall struct {
	RunID       string
	NodeID      string
	ExecutionID string
	Config      json.RawMessage
	Inputs      map[string]interface{}
}

// ExecutorFunc is the injected-capability boundary. The context carries
// the run's cancellation signal and the node's deadline; executors must
// observe cancellation promptly and must tolerate being abandoned once
// the deadline elapses. The engine stops waiting at that point and any
// residual cleanup is the host application's responsibility.
type ExecutorFunc func(ctx context.Context, call ExecutorCall) (Outputs, error)

// NodeTemplate is a process-wide descriptor for a node type: its port
// schemas and the executor that implements it. Templates are registered
// at startup and never mutated per-run.
//
// Condition templates branch: their executor must return outputs for
// exactly one declared output port, and only edges attached to that port
// are followed; the other branches are short-circuited.
type NodeTemplate struct {
	Type           string
	Label          string
	Inputs         []Port
	Outputs        []Port
	Condition      bool
	DefaultTimeout time.Duration
	Executor       ExecutorFunc
}

// EffectiveTimeout resolves the hard execution timeout for a node
// instance: node override, then template default, then the engine-wide
// fallback.
func (t NodeTemplate) EffectiveTimeout(node Node, engineDefault time.Duration) time.Duration {
	if node.TimeoutMS > 0 {
		return time.Duration(node.TimeoutMS) * time.Millisecond
	}
	if t.DefaultTimeout > 0 {
		return t.DefaultTimeout
	}
	return engineDefault
}
