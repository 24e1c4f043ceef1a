package domain

import (
	"errors"
	"fmt"
	"time"
)

type ValidationCode string

const (
	ValidationDuplicateNodeID  ValidationCode = "duplicate_node_id"
	ValidationDanglingEdge     ValidationCode = "dangling_edge"
	ValidationPortTypeMismatch ValidationCode = "port_type_mismatch"
	ValidationCycleDetected    ValidationCode = "cycle_detected"
	ValidationNoTriggerNode    ValidationCode = "no_trigger_node"
	ValidationUnknownTemplate  ValidationCode = "unknown_template"
)

type ValidationError struct {
	Code    ValidationCode
	NodeID  string
	EdgeID  string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(code ValidationCode, nodeID, edgeID, message string) *ValidationError {
	return &ValidationError{
		Code:    code,
		NodeID:  nodeID,
		EdgeID:  edgeID,
		Message: message,
	}
}

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

func ValidationCodeOf(err error) (ValidationCode, bool) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Code, true
	}
	return "", false
}

type NodeExecutionError struct {
	RunID  string
	NodeID string
	Err    error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s failed: %v", e.NodeID, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

func NewNodeExecutionError(runID, nodeID string, err error) *NodeExecutionError {
	return &NodeExecutionError{
		RunID:  runID,
		NodeID: nodeID,
		Err:    err,
	}
}

type NodeTimeoutError struct {
	RunID   string
	NodeID  string
	Timeout time.Duration
}

func (e *NodeTimeoutError) Error() string {
	return fmt.Sprintf("node %s exceeded timeout of %s", e.NodeID, e.Timeout)
}

func NewNodeTimeoutError(runID, nodeID string, timeout time.Duration) *NodeTimeoutError {
	return &NodeTimeoutError{
		RunID:   runID,
		NodeID:  nodeID,
		Timeout: timeout,
	}
}

func IsNodeTimeout(err error) bool {
	var timeoutErr *NodeTimeoutError
	return errors.As(err, &timeoutErr)
}

var (
	ErrRunNotFound          = errors.New("run not found")
	ErrRunAlreadyTerminated = errors.New("run already terminated")
	ErrRunNotPaused         = errors.New("run not paused")
	ErrCancelled            = errors.New("run cancelled")
	ErrEngineClosed         = errors.New("engine closed")
	ErrInvalidConfig        = errors.New("invalid configuration")
)

func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

func IsRunAlreadyTerminated(err error) bool {
	return errors.Is(err, ErrRunAlreadyTerminated)
}

func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
