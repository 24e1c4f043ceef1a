package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/loom/internal/domain"
	"github.com/google/uuid"
)

type edgeResolution int8

const (
	edgeUnresolved edgeResolution = iota
	edgeValue
	edgeAbsent
	edgeDead
)

type edgeState struct {
	res   edgeResolution
	value interface{}
}

type nodeDisposition int8

const (
	nodeWait nodeDisposition = iota
	nodeReady
	nodeSkip
)

// coordinator drives one run. All scheduling state is guarded by mu;
// workers call back into onNodeDone, so scheduling is serialized without
// a dedicated goroutine.
//
// Lock order is coordinator.mu before runTracker.mu, never the reverse.
type coordinator struct {
	runID         string
	def           *domain.Definition
	templates     map[string]domain.NodeTemplate
	triggerInputs map[string]map[string]interface{}
	tracker       *runTracker
	pool          *workerPool
	exec          *nodeExecutor
	config        domain.EngineConfig
	persist       func(*domain.ExecutionRun)
	logger        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	edges     map[string]edgeState
	ready     []string
	executing int
	remaining int
	failFast  bool
	failMsg   string
	paused    bool
	cancelled bool
	finished  bool

	persistOnce sync.Once
	done        chan struct{}
}

func newCoordinator(parent context.Context, runID string, def *domain.Definition, templates map[string]domain.NodeTemplate, triggerInputs map[string]map[string]interface{}, tracker *runTracker, pool *workerPool, exec *nodeExecutor, config domain.EngineConfig, persist func(*domain.ExecutionRun), logger *slog.Logger) *coordinator {
	ctx, cancel := context.WithCancel(parent)

	return &coordinator{
		runID:         runID,
		def:           def,
		templates:     templates,
		triggerInputs: triggerInputs,
		tracker:       tracker,
		pool:          pool,
		exec:          exec,
		config:        config,
		persist:       persist,
		logger:        logger.With("component", "run_coordinator", "run_id", runID),
		ctx:           ctx,
		cancel:        cancel,
		edges:         make(map[string]edgeState, len(def.Edges())),
		remaining:     def.NodeCount(),
		done:          make(chan struct{}),
	}
}

func (c *coordinator) start() error {
	if err := c.tracker.SetRunStatus(domain.RunStatusRunning, "run started", map[string]interface{}{
		"nodes": c.def.NodeCount(),
	}); err != nil {
		return err
	}

	c.mu.Lock()
	for _, nodeID := range c.def.TriggerNodes() {
		c.markReady(nodeID)
	}
	batch := c.collectDispatch()
	c.mu.Unlock()

	c.dispatchBatch(batch)
	return nil
}

// Done is closed when the run reaches a terminal status.
func (c *coordinator) Done() <-chan struct{} {
	return c.done
}

func (c *coordinator) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.tracker.Status()
	if status.Terminal() {
		return domain.ErrRunAlreadyTerminated
	}
	if c.paused {
		return nil
	}

	if err := c.tracker.SetRunStatus(domain.RunStatusPaused, "run paused", nil); err != nil {
		return err
	}
	c.paused = true

	c.logger.Debug("run paused", "queued_ready", len(c.ready))
	return nil
}

func (c *coordinator) Resume() error {
	c.mu.Lock()

	status := c.tracker.Status()
	if status.Terminal() {
		c.mu.Unlock()
		return domain.ErrRunAlreadyTerminated
	}
	if !c.paused {
		c.mu.Unlock()
		return domain.ErrRunNotPaused
	}

	if err := c.tracker.SetRunStatus(domain.RunStatusRunning, "run resumed", nil); err != nil {
		c.mu.Unlock()
		return err
	}
	c.paused = false

	batch := c.collectDispatch()
	c.checkFinished()
	finished := c.finished
	c.mu.Unlock()

	c.dispatchBatch(batch)
	if finished {
		c.persistFinal()
	}
	return nil
}

// A second Cancel on a cancelled run is a no-op with no new log entries.
func (c *coordinator) Cancel() error {
	c.mu.Lock()

	status := c.tracker.Status()
	if status == domain.RunStatusCancelled {
		c.mu.Unlock()
		return nil
	}
	if status.Terminal() {
		c.mu.Unlock()
		return domain.ErrRunAlreadyTerminated
	}

	c.cancel()
	c.cancelled = true
	c.ready = nil

	for _, nodeID := range c.def.TopologicalOrder() {
		state := c.tracker.NodeState(nodeID)
		if state == domain.NodeStatePending || state == domain.NodeStateReady {
			c.markSkipped(nodeID, "run cancelled")
		}
	}

	if err := c.tracker.SetRunStatus(domain.RunStatusCancelled, "run cancelled", nil); err != nil {
		c.mu.Unlock()
		return err
	}

	c.finished = true
	close(c.done)
	c.mu.Unlock()

	c.persistFinal()
	return nil
}

func (c *coordinator) runNode(nodeID string) {
	c.mu.Lock()
	if c.finished || c.cancelled {
		c.executing--
		c.mu.Unlock()
		return
	}

	node, _ := c.def.Node(nodeID)
	template := c.templates[node.Type]
	inputs := c.buildInputs(nodeID)

	executionID := uuid.NewString()
	if !c.tracker.SetNodeState(nodeID, domain.NodeStateExecuting, domain.LogLevelInfo, "node execution started", map[string]interface{}{
		"node_type":    node.Type,
		"execution_id": executionID,
	}) {
		c.executing--
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	call := domain.ExecutorCall{
		RunID:       c.runID,
		NodeID:      nodeID,
		ExecutionID: executionID,
		Config:      node.Config,
		Inputs:      inputs,
	}

	timeout := template.EffectiveTimeout(node, c.config.DefaultNodeTimeout)
	started := time.Now()
	outputs, err := c.exec.Execute(c.ctx, call, node, template, timeout)

	c.onNodeDone(nodeID, outputs, err, time.Since(started))
}

func (c *coordinator) onNodeDone(nodeID string, outputs domain.Outputs, err error, duration time.Duration) {
	c.mu.Lock()

	c.executing--
	node, _ := c.def.Node(nodeID)
	template := c.templates[node.Type]

	if err != nil {
		c.tracker.SetNodeState(nodeID, domain.NodeStateFailed, domain.LogLevelError, "node execution failed", map[string]interface{}{
			"node_type": node.Type,
			"error":     err.Error(),
			"cause":     causeChain(err),
			"duration":  duration.String(),
		})
		c.remaining--

		if c.finished || c.cancelled {
			c.mu.Unlock()
			return
		}

		if node.ContinueOnError {
			c.logger.Debug("node failed, continuing per policy",
				"node_id", nodeID,
				"error", err.Error(),
			)
			c.resolveAllOutbound(nodeID, edgeAbsent)
			c.evaluateGraph()
		} else {
			c.failFast = true
			c.failMsg = err.Error()
			c.tracker.SetError(err.Error())
			c.resolveAllOutbound(nodeID, edgeDead)
			c.evaluateGraph()
		}
	} else {
		c.tracker.SetResult(nodeID, outputs)
		c.tracker.SetNodeState(nodeID, domain.NodeStateCompleted, domain.LogLevelInfo, "node completed", map[string]interface{}{
			"node_type": node.Type,
			"duration":  duration.String(),
		})
		c.remaining--

		if c.finished || c.cancelled {
			c.mu.Unlock()
			return
		}

		c.resolveOutbound(nodeID, template, outputs)
		c.evaluateGraph()
	}

	batch := c.collectDispatch()
	c.checkFinished()
	finished := c.finished
	c.mu.Unlock()

	c.dispatchBatch(batch)
	if finished {
		c.persistFinal()
	}
}

// Ports absent from the outputs resolve absent for ordinary nodes; for
// condition nodes they resolve dead, short-circuiting the untaken branch.
func (c *coordinator) resolveOutbound(nodeID string, template domain.NodeTemplate, outputs domain.Outputs) {
	for _, edge := range c.def.Outbound(nodeID) {
		if value, ok := outputs[edge.SourcePort]; ok {
			c.edges[edge.ID] = edgeState{res: edgeValue, value: value}
		} else if template.Condition {
			c.edges[edge.ID] = edgeState{res: edgeDead}
		} else {
			c.edges[edge.ID] = edgeState{res: edgeAbsent}
		}
	}
}

func (c *coordinator) resolveAllOutbound(nodeID string, res edgeResolution) {
	for _, edge := range c.def.Outbound(nodeID) {
		c.edges[edge.ID] = edgeState{res: res}
	}
}

// Walking topological order means upstream skips resolve their outbound
// edges before dependents are classified, so one pass reaches the fixpoint.
func (c *coordinator) evaluateGraph() {
	for _, nodeID := range c.def.TopologicalOrder() {
		if c.tracker.NodeState(nodeID) != domain.NodeStatePending {
			continue
		}

		switch c.classify(nodeID) {
		case nodeReady:
			c.markReady(nodeID)
		case nodeSkip:
			c.markSkipped(nodeID, "upstream branch not taken")
			c.resolveAllOutbound(nodeID, edgeDead)
		}
	}
}

// classify applies the readiness rule: every inbound edge into a required
// port must be resolved before the port can satisfy readiness. A fully
// resolved port satisfies with a value or with at least one absent edge;
// all edges dead means the port can never be satisfied and the node is
// skipped. Optional ports never gate.
func (c *coordinator) classify(nodeID string) nodeDisposition {
	node, _ := c.def.Node(nodeID)

	for _, port := range node.Inputs {
		if !port.Required {
			continue
		}

		total, deads := 0, 0
		for _, edge := range c.def.Inbound(nodeID) {
			if edge.TargetPort != port.ID {
				continue
			}
			total++
			switch c.edges[edge.ID].res {
			case edgeUnresolved:
				return nodeWait
			case edgeDead:
				deads++
			}
		}

		if total > 0 && deads == total {
			return nodeSkip
		}
	}

	return nodeReady
}

// Callers hold mu.
func (c *coordinator) markReady(nodeID string) {
	if !c.tracker.SetNodeState(nodeID, domain.NodeStateReady, domain.LogLevelDebug, "node ready", nil) {
		return
	}
	c.ready = append(c.ready, nodeID)
}

// Callers hold mu.
func (c *coordinator) markSkipped(nodeID, reason string) {
	if !c.tracker.SetNodeState(nodeID, domain.NodeStateSkipped, domain.LogLevelInfo, "node skipped", map[string]interface{}{
		"reason": reason,
	}) {
		return
	}
	c.remaining--
}

// Callers hold mu; the returned batch is submitted outside the lock.
func (c *coordinator) collectDispatch() []string {
	if c.paused || c.cancelled || c.failFast || c.finished {
		return nil
	}

	batch := c.ready
	c.ready = nil
	c.executing += len(batch)
	return batch
}

// Submission happens on fresh goroutines: Submit blocks while all workers
// are busy and a worker completing a node is itself the caller here, so
// submitting inline could deadlock the pool.
func (c *coordinator) dispatchBatch(batch []string) {
	for _, nodeID := range batch {
		id := nodeID
		go func() {
			if !c.pool.Submit(func() { c.runNode(id) }) {
				c.abortDispatch(id)
			}
		}()
	}
}

// Releases a dispatched node that no worker will ever run.
func (c *coordinator) abortDispatch(nodeID string) {
	c.mu.Lock()
	c.executing--
	if !c.finished && !c.cancelled {
		c.markSkipped(nodeID, "engine closed")
		c.checkFinished()
	}
	finished := c.finished
	c.mu.Unlock()

	if finished {
		c.persistFinal()
	}
}

// Finalizes the run once nothing is executing and nothing further can be
// dispatched. Callers hold mu.
func (c *coordinator) checkFinished() {
	if c.finished || c.cancelled {
		return
	}
	if c.executing > 0 {
		return
	}

	if c.failFast {
		c.sweepSkip("upstream failure")
		if err := c.tracker.SetRunStatus(domain.RunStatusFailed, "run failed", map[string]interface{}{
			"error": c.failMsg,
		}); err == nil {
			c.finished = true
			close(c.done)
		}
		return
	}

	if c.paused && c.remaining > 0 {
		return
	}
	if len(c.ready) > 0 {
		return
	}

	if c.remaining > 0 {
		c.sweepSkip("unreachable")
	}

	if err := c.tracker.SetRunStatus(domain.RunStatusCompleted, "run completed", nil); err == nil {
		c.finished = true
		close(c.done)
	}
}

func (c *coordinator) sweepSkip(reason string) {
	for _, nodeID := range c.def.TopologicalOrder() {
		state := c.tracker.NodeState(nodeID)
		if state == domain.NodeStatePending || state == domain.NodeStateReady {
			c.markSkipped(nodeID, reason)
		}
	}
	c.ready = nil
}

func (c *coordinator) persistFinal() {
	c.persistOnce.Do(func() {
		if c.persist != nil {
			c.persist(c.tracker.Snapshot())
		}
	})
}

// One entry per declared input port; trigger inputs take precedence and
// absent ports are delivered as nil. Callers hold mu.
func (c *coordinator) buildInputs(nodeID string) map[string]interface{} {
	node, _ := c.def.Node(nodeID)
	inputs := make(map[string]interface{}, len(node.Inputs))

	trigger := c.triggerInputs[nodeID]

	for _, port := range node.Inputs {
		if trigger != nil {
			if value, ok := trigger[port.ID]; ok {
				inputs[port.ID] = value
				continue
			}
		}

		var value interface{}
		for _, edge := range c.def.Inbound(nodeID) {
			if edge.TargetPort != port.ID {
				continue
			}
			if state := c.edges[edge.ID]; state.res == edgeValue {
				value = state.value
				break
			}
		}
		inputs[port.ID] = value
	}

	return inputs
}

func causeChain(err error) []string {
	chain := make([]string, 0, 4)
	for err != nil {
		chain = append(chain, err.Error())
		err = errors.Unwrap(err)
	}
	return chain
}
