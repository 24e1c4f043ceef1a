package ports

import (
	"context"

	"github.com/eleven-am/loom/internal/domain"
)

// Persistence is the outbound sink for finished runs. The engine invokes
// PersistRun exactly once per run, on the terminal transition, with a
// finalized snapshot the sink may retain. Sink errors are logged by the
// engine and never affect the run's outcome.
type Persistence interface {
	PersistRun(ctx context.Context, run *domain.ExecutionRun) error
}
