package ports

import (
	"context"

	"github.com/eleven-am/loom/internal/domain"
)

// Engine is the inbound control surface of the execution engine.
type Engine interface {
	Start(ctx context.Context, def *domain.Definition, triggerInputs map[string]map[string]interface{}) (string, error)
	Pause(runID string) error
	Resume(runID string) error
	Cancel(runID string) error
	Snapshot(runID string) (*domain.ExecutionRun, error)
	SubscribeLog(runID string) (<-chan domain.ExecutionLogEntry, func(), error)
	Close() error
}
