package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/loom/internal/domain"
	"github.com/eleven-am/loom/internal/ports"
	"github.com/google/uuid"
)

// Engine executes workflow definitions on a bounded worker pool shared
// across runs.
type Engine struct {
	config   domain.EngineConfig
	registry ports.TemplateRegistry
	pool     *workerPool
	exec     *nodeExecutor
	sinks    []ports.Persistence
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	runs   map[string]*coordinator
	closed bool
}

func NewEngine(config domain.EngineConfig, registry ports.TemplateRegistry, sinks []ports.Persistence, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	engine := &Engine{
		config:   config,
		registry: registry,
		pool:     newWorkerPool(config.Workers, logger),
		exec:     newNodeExecutor(logger),
		sinks:    sinks,
		logger:   logger.With("component", "engine"),
		ctx:      ctx,
		cancel:   cancel,
		runs:     make(map[string]*coordinator),
	}

	engine.logger.Debug("engine created",
		"workers", config.Workers,
		"default_node_timeout", config.DefaultNodeTimeout,
		"persistence_sinks", len(sinks),
	)

	return engine
}

// Template resolution happens up front: an unregistered node type fails
// before any run state exists.
func (e *Engine) Start(ctx context.Context, def *domain.Definition, triggerInputs map[string]map[string]interface{}) (string, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return "", domain.ErrEngineClosed
	}
	e.mu.RUnlock()

	templates := make(map[string]domain.NodeTemplate, def.NodeCount())
	for _, node := range def.Nodes() {
		if _, resolved := templates[node.Type]; resolved {
			continue
		}
		template, err := e.registry.Resolve(node.Type)
		if err != nil {
			e.logger.Error("template resolution failed",
				"node_id", node.ID,
				"node_type", node.Type,
				"error", err.Error(),
			)
			return "", err
		}
		templates[node.Type] = template
	}

	runID := uuid.NewString()
	tracker := newRunTracker(runID, def.TopologicalOrder(), e.config.SubscriberBuffer, e.logger)
	co := newCoordinator(e.ctx, runID, def, templates, triggerInputs, tracker, e.pool, e.exec, e.config, e.persistRun, e.logger)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", domain.ErrEngineClosed
	}
	e.runs[runID] = co
	e.mu.Unlock()

	if err := co.start(); err != nil {
		e.mu.Lock()
		delete(e.runs, runID)
		e.mu.Unlock()
		return "", err
	}

	e.logger.Info("run started",
		"run_id", runID,
		"nodes", def.NodeCount(),
		"triggers", len(def.TriggerNodes()),
	)

	return runID, nil
}

func (e *Engine) Pause(runID string) error {
	co, err := e.run(runID)
	if err != nil {
		return err
	}
	return co.Pause()
}

func (e *Engine) Resume(runID string) error {
	co, err := e.run(runID)
	if err != nil {
		return err
	}
	return co.Resume()
}

func (e *Engine) Cancel(runID string) error {
	co, err := e.run(runID)
	if err != nil {
		return err
	}
	return co.Cancel()
}

func (e *Engine) Snapshot(runID string) (*domain.ExecutionRun, error) {
	co, err := e.run(runID)
	if err != nil {
		return nil, err
	}
	return co.tracker.Snapshot(), nil
}

// The stream closes on the run's terminal transition or when the
// subscriber falls too far behind.
func (e *Engine) SubscribeLog(runID string) (<-chan domain.ExecutionLogEntry, func(), error) {
	co, err := e.run(runID)
	if err != nil {
		return nil, nil, err
	}
	ch, unsubscribe := co.tracker.Subscribe()
	return ch, unsubscribe, nil
}

func (e *Engine) Wait(ctx context.Context, runID string) error {
	co, err := e.run(runID)
	if err != nil {
		return err
	}
	select {
	case <-co.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels every active run and returns once workers drain.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	active := make([]*coordinator, 0, len(e.runs))
	for _, co := range e.runs {
		active = append(active, co)
	}
	e.mu.Unlock()

	e.logger.Debug("engine closing", "active_runs", len(active))

	for _, co := range active {
		if err := co.Cancel(); err != nil && !domain.IsRunAlreadyTerminated(err) {
			e.logger.Error("failed to cancel run during close",
				"run_id", co.runID,
				"error", err.Error(),
			)
		}
	}

	e.cancel()
	e.pool.Close()

	e.logger.Debug("engine closed")
	return nil
}

func (e *Engine) run(runID string) (*coordinator, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	co, exists := e.runs[runID]
	if !exists {
		return nil, domain.ErrRunNotFound
	}
	return co, nil
}

// Sink errors are logged and never surface to the run.
func (e *Engine) persistRun(run *domain.ExecutionRun) {
	if len(e.sinks) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, sink := range e.sinks {
		if err := sink.PersistRun(ctx, run); err != nil {
			e.logger.Error("persistence sink failed",
				"run_id", run.ID,
				"status", string(run.Status),
				"error", err.Error(),
			)
		}
	}

	e.logger.Debug("run persisted",
		"run_id", run.ID,
		"status", string(run.Status),
		"sinks", len(e.sinks),
	)
}
