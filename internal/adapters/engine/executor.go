package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eleven-am/loom/internal/domain"
)

// nodeExecutor runs one node invocation. The timeout is enforced
// regardless of executor cooperation: on expiry the executor goroutine is
// abandoned and any cleanup is the host's responsibility.
type nodeExecutor struct {
	logger *slog.Logger
}

func newNodeExecutor(logger *slog.Logger) *nodeExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &nodeExecutor{
		logger: logger.With("component", "node_executor"),
	}
}

type execResult struct {
	outputs domain.Outputs
	err     error
}

func (ne *nodeExecutor) Execute(ctx context.Context, call domain.ExecutorCall, node domain.Node, template domain.NodeTemplate, timeout time.Duration) (domain.Outputs, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ne.logger.Debug("invoking node executor",
		"run_id", call.RunID,
		"node_id", call.NodeID,
		"node_type", node.Type,
		"execution_id", call.ExecutionID,
		"timeout", timeout,
	)

	resultCh := make(chan execResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- execResult{
					err: domain.NewNodeExecutionError(call.RunID, call.NodeID,
						fmt.Errorf("executor panicked: %v", r)),
				}
			}
		}()

		outputs, err := template.Executor(execCtx, call)
		resultCh <- execResult{outputs: outputs, err: err}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			var execErr *domain.NodeExecutionError
			if errors.As(result.err, &execErr) {
				return nil, result.err
			}
			return nil, domain.NewNodeExecutionError(call.RunID, call.NodeID, result.err)
		}
		if err := ne.validateOutputs(call, node, template, result.outputs); err != nil {
			return nil, err
		}
		return result.outputs, nil

	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			ne.logger.Error("node execution timed out, abandoning executor",
				"run_id", call.RunID,
				"node_id", call.NodeID,
				"timeout", timeout,
			)
			return nil, domain.NewNodeTimeoutError(call.RunID, call.NodeID, timeout)
		}
		return nil, domain.ErrCancelled
	}
}

// Rejects undeclared output port IDs; condition executors must select
// exactly one port.
func (ne *nodeExecutor) validateOutputs(call domain.ExecutorCall, node domain.Node, template domain.NodeTemplate, outputs domain.Outputs) error {
	declared := make(map[string]struct{}, len(node.Outputs))
	for _, port := range node.Outputs {
		declared[port.ID] = struct{}{}
	}

	for portID := range outputs {
		if _, ok := declared[portID]; !ok {
			return domain.NewNodeExecutionError(call.RunID, call.NodeID,
				fmt.Errorf("executor returned undeclared output port %q", portID))
		}
	}

	if template.Condition && len(outputs) != 1 {
		return domain.NewNodeExecutionError(call.RunID, call.NodeID,
			fmt.Errorf("condition executor must select exactly one output port, got %d", len(outputs)))
	}

	return nil
}
