package domain

import (
	"time"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ExecutionLogEntry is one immutable record in a run's append-only log.
// Seq is run-local and strictly monotonic starting at 1; entries produced
// by concurrent branches carry distinct sequence numbers but no further
// ordering guarantee relative to each other.
type ExecutionLogEntry struct {
	Seq       int64                  `json:"seq"`
	Timestamp time.Time              `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	NodeID    string                 `json:"node_id,omitempty"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
