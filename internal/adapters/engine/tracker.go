package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/loom/internal/domain"
)

// runTracker owns the authoritative state of one run. Every transition
// appends its log entry and hands it to subscribers inside the same
// critical section that applies the state change, so no observer sees a
// transition's effects without the entry that announced it.
type runTracker struct {
	runID  string
	logger *slog.Logger

	mu          sync.Mutex
	status      domain.RunStatus
	startedAt   time.Time
	completedAt *time.Time
	nodeStates  map[string]domain.NodeState
	results     map[string]domain.Outputs
	runErr      *string
	logs        []domain.ExecutionLogEntry
	seq         int64

	subscribers map[int64]chan domain.ExecutionLogEntry
	nextSubID   int64
	subBuffer   int
	closed      bool
}

func newRunTracker(runID string, nodeIDs []string, subBuffer int, logger *slog.Logger) *runTracker {
	if logger == nil {
		logger = slog.Default()
	}

	states := make(map[string]domain.NodeState, len(nodeIDs))
	for _, id := range nodeIDs {
		states[id] = domain.NodeStatePending
	}

	return &runTracker{
		runID:       runID,
		logger:      logger.With("component", "run_tracker", "run_id", runID),
		status:      domain.RunStatusPending,
		startedAt:   time.Now(),
		nodeStates:  states,
		results:     make(map[string]domain.Outputs),
		subscribers: make(map[int64]chan domain.ExecutionLogEntry),
		subBuffer:   subBuffer,
	}
}

// Callers hold t.mu.
func (t *runTracker) append(level domain.LogLevel, nodeID, message string, data map[string]interface{}) {
	t.seq++
	entry := domain.ExecutionLogEntry{
		Seq:       t.seq,
		Timestamp: time.Now(),
		Level:     level,
		NodeID:    nodeID,
		Message:   message,
		Data:      data,
	}
	t.logs = append(t.logs, entry)

	var dropped []int64
	for id, ch := range t.subscribers {
		select {
		case ch <- entry:
		default:
			delete(t.subscribers, id)
			close(ch)
			dropped = append(dropped, id)
		}
	}

	// recorded after the loop so remaining subscribers receive the
	// disconnect entry too
	for _, id := range dropped {
		t.logger.Warn("log subscriber fell behind and was disconnected",
			"subscriber_id", id,
			"buffer", t.subBuffer,
		)
		t.append(domain.LogLevelWarn, "", "log subscriber disconnected: buffer full",
			map[string]interface{}{"subscriber_id": id})
	}
}

func (t *runTracker) Append(level domain.LogLevel, nodeID, message string, data map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.append(level, nodeID, message, data)
}

func (t *runTracker) Status() domain.RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *runTracker) NodeState(nodeID string) domain.NodeState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nodeStates[nodeID]
}

func (t *runTracker) SetRunStatus(next domain.RunStatus, message string, data map[string]interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.Terminal() {
		return domain.ErrRunAlreadyTerminated
	}
	if !t.status.CanTransitionTo(next) {
		return domain.ErrRunNotPaused
	}

	level := domain.LogLevelInfo
	if next == domain.RunStatusFailed {
		level = domain.LogLevelError
	}
	t.append(level, "", message, data)
	t.status = next

	if next.Terminal() {
		now := time.Now()
		t.completedAt = &now
		for id, ch := range t.subscribers {
			delete(t.subscribers, id)
			close(ch)
		}
		t.closed = true
	}

	return nil
}

func (t *runTracker) SetNodeState(nodeID string, next domain.NodeState, level domain.LogLevel, message string, data map[string]interface{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.nodeStates[nodeID]
	if !current.CanTransitionTo(next) {
		t.logger.Error("illegal node state transition rejected",
			"node_id", nodeID,
			"from", string(current),
			"to", string(next),
		)
		return false
	}

	t.append(level, nodeID, message, data)
	t.nodeStates[nodeID] = next

	return true
}

func (t *runTracker) SetResult(nodeID string, outputs domain.Outputs) {
	t.mu.Lock()
	defer t.mu.Unlock()

	copied := make(domain.Outputs, len(outputs))
	for k, v := range outputs {
		copied[k] = v
	}
	t.results[nodeID] = copied
}

func (t *runTracker) SetError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runErr = &message
}

// Snapshot returns a consistent deep copy of the run.
func (t *runTracker) Snapshot() *domain.ExecutionRun {
	t.mu.Lock()
	defer t.mu.Unlock()

	states := make(map[string]domain.NodeState, len(t.nodeStates))
	for k, v := range t.nodeStates {
		states[k] = v
	}

	results := make(map[string]domain.Outputs, len(t.results))
	for nodeID, outputs := range t.results {
		copied := make(domain.Outputs, len(outputs))
		for k, v := range outputs {
			copied[k] = v
		}
		results[nodeID] = copied
	}

	logs := make([]domain.ExecutionLogEntry, len(t.logs))
	copy(logs, t.logs)

	var completedAt *time.Time
	if t.completedAt != nil {
		ts := *t.completedAt
		completedAt = &ts
	}

	var runErr *string
	if t.runErr != nil {
		msg := *t.runErr
		runErr = &msg
	}

	return &domain.ExecutionRun{
		ID:          t.runID,
		Status:      t.status,
		StartedAt:   t.startedAt,
		CompletedAt: completedAt,
		NodeStates:  states,
		Results:     results,
		Error:       runErr,
		Logs:        logs,
	}
}

// Entries already appended are not replayed; callers wanting history take
// a Snapshot first.
func (t *runTracker) Subscribe() (<-chan domain.ExecutionLogEntry, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan domain.ExecutionLogEntry, t.subBuffer)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	t.nextSubID++
	id := t.nextSubID
	t.subscribers[id] = ch

	unsubscribe := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if existing, ok := t.subscribers[id]; ok {
			delete(t.subscribers, id)
			close(existing)
		}
	}

	return ch, unsubscribe
}
