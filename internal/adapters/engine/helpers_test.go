package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/loom/internal/adapters/memory"
	"github.com/eleven-am/loom/internal/domain"
	"github.com/eleven-am/loom/internal/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestEngine(t *testing.T, workers int, sinks ...ports.Persistence) (*Engine, *memory.TemplateRegistry) {
	t.Helper()

	logger := testLogger()
	config := domain.EngineConfig{
		Workers:            workers,
		DefaultNodeTimeout: 5 * time.Second,
		SubscriberBuffer:   256,
		Logger:             logger,
	}

	registry := memory.NewTemplateRegistry(logger)
	eng := NewEngine(config, registry, sinks, logger)
	t.Cleanup(func() { _ = eng.Close() })

	return eng, registry
}

func dataPort(id string, required bool) domain.Port {
	return domain.Port{ID: id, Kind: domain.PortKindData, Required: required}
}

// emitTemplate produces the "value" field of its config on port "out".
func emitTemplate() domain.NodeTemplate {
	return domain.NodeTemplate{
		Type:    "emit",
		Outputs: []domain.Port{dataPort("out", false)},
		Executor: func(ctx context.Context, call domain.ExecutorCall) (domain.Outputs, error) {
			var config struct {
				Value interface{} `json:"value"`
			}
			if len(call.Config) > 0 {
				if err := json.Unmarshal(call.Config, &config); err != nil {
					return nil, err
				}
			}
			return domain.Outputs{"out": config.Value}, nil
		},
	}
}

// relayTemplate forwards its "in" input to its "out" output.
func relayTemplate() domain.NodeTemplate {
	return domain.NodeTemplate{
		Type:    "relay",
		Inputs:  []domain.Port{dataPort("in", true)},
		Outputs: []domain.Port{dataPort("out", false)},
		Executor: func(ctx context.Context, call domain.ExecutorCall) (domain.Outputs, error) {
			return domain.Outputs{"out": call.Inputs["in"]}, nil
		},
	}
}

func mustStart(t *testing.T, eng *Engine, def *domain.Definition, inputs map[string]map[string]interface{}) string {
	t.Helper()
	runID, err := eng.Start(testContext(t), def, inputs)
	require.NoError(t, err)
	return runID
}

func waitRun(t *testing.T, eng *Engine, runID string) *domain.ExecutionRun {
	t.Helper()
	require.NoError(t, eng.Wait(testContext(t), runID))
	snapshot, err := eng.Snapshot(runID)
	require.NoError(t, err)
	return snapshot
}

// entrySeq finds the sequence number of the first entry for the node with
// the given message, or -1.
func entrySeq(run *domain.ExecutionRun, nodeID, message string) int64 {
	for _, entry := range run.Logs {
		if entry.NodeID == nodeID && entry.Message == message {
			return entry.Seq
		}
	}
	return -1
}

func countEntries(run *domain.ExecutionRun, message string) int {
	count := 0
	for _, entry := range run.Logs {
		if entry.Message == message {
			count++
		}
	}
	return count
}

type countingSink struct {
	calls chan *domain.ExecutionRun
}

func newCountingSink() *countingSink {
	return &countingSink{calls: make(chan *domain.ExecutionRun, 8)}
}

func (s *countingSink) PersistRun(ctx context.Context, run *domain.ExecutionRun) error {
	s.calls <- run
	return nil
}
