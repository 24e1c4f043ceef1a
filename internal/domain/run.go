package domain

import (
	"time"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusPaused    RunStatus = "paused"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the run state machine permits moving
// from s to next. Terminal states permit nothing.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusPending:
		return next == RunStatusRunning || next == RunStatusCancelled
	case RunStatusRunning:
		return next == RunStatusPaused || next.Terminal()
	case RunStatusPaused:
		return next == RunStatusRunning || next.Terminal()
	}
	return false
}

type NodeState string

const (
	NodeStatePending   NodeState = "pending"
	NodeStateReady     NodeState = "ready"
	NodeStateExecuting NodeState = "executing"
	NodeStateCompleted NodeState = "completed"
	NodeStateFailed    NodeState = "failed"
	NodeStateSkipped   NodeState = "skipped"
)

func (s NodeState) Terminal() bool {
	switch s {
	case NodeStateCompleted, NodeStateFailed, NodeStateSkipped:
		return true
	}
	return false
}

func (s NodeState) CanTransitionTo(next NodeState) bool {
	switch s {
	case NodeStatePending:
		return next == NodeStateReady || next == NodeStateSkipped
	case NodeStateReady:
		return next == NodeStateExecuting || next == NodeStateSkipped
	case NodeStateExecuting:
		return next == NodeStateCompleted || next == NodeStateFailed
	}
	return false
}

// Outputs holds an executor's results keyed by declared output port ID.
type Outputs map[string]interface{}

// ExecutionRun is a point-in-time view of one execution of a Definition.
// The engine's tracker owns the live state; values of this type handed to
// callers and persistence sinks are deep copies and safe to retain.
type ExecutionRun struct {
	ID          string                 `json:"id"`
	Status      RunStatus              `json:"status"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	NodeStates  map[string]NodeState   `json:"node_states"`
	Results     map[string]Outputs     `json:"results"`
	Error       *string                `json:"error,omitempty"`
	Logs        []ExecutionLogEntry    `json:"logs"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
