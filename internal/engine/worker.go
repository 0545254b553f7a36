package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/hive/pkg/models"
)

// AgentWorker is a single execution unit bound to one pool. A worker is
// capable of running microtasks whose type matches one of its
// specializations. Workers are created by pool scale-up and drained on
// scale-down.
type AgentWorker struct {
	id              string
	poolID          string
	specializations []string
	maxConcurrency  int
	registry        *Registry

	mu       sync.Mutex
	cond     *sync.Cond
	inflight int
	stopped  bool
}

// newAgentWorker creates a worker bound to a pool.
func newAgentWorker(id, poolID string, specializations []string, maxConcurrency int, registry *Registry) *AgentWorker {
	w := &AgentWorker{
		id:              id,
		poolID:          poolID,
		specializations: specializations,
		maxConcurrency:  maxConcurrency,
		registry:        registry,
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// ID returns the worker's unique identifier.
func (w *AgentWorker) ID() string { return w.id }

// PoolID returns the owning pool's identifier.
func (w *AgentWorker) PoolID() string { return w.poolID }

// CanHandle reports whether the worker's specializations cover the given
// microtask type.
func (w *AgentWorker) CanHandle(taskType string) bool {
	for _, s := range w.specializations {
		if s == taskType {
			return true
		}
	}
	return false
}

// Load returns the worker's current in-flight microtask count.
func (w *AgentWorker) Load() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inflight
}

// Busy reports whether the worker has any in-flight microtasks.
func (w *AgentWorker) Busy() bool {
	return w.Load() > 0
}

// Run executes one microtask through the worker's executor registry. The
// worker is marked busy for the duration of the call. A panicking executor
// is captured as a failed result rather than tearing down the run.
func (w *AgentWorker) Run(ctx context.Context, mt models.Microtask) models.TaskResult {
	if err := w.beginTask(); err != nil {
		return failedResult(w.id, 0, err)
	}
	defer w.endTask()

	start := time.Now()
	result, err := w.invoke(ctx, mt)
	elapsed := time.Since(start)

	if err != nil {
		debugLog("[worker %s] microtask %s failed after %s: %v", w.id, mt.ID, elapsed, err)
		return failedResult(w.id, elapsed, err)
	}

	result.Metadata.AgentID = w.id
	result.Metadata.DurationMS = elapsed.Milliseconds()
	return result
}

// invoke dispatches to the registered executor, converting panics to errors.
func (w *AgentWorker) invoke(ctx context.Context, mt models.Microtask) (result models.TaskResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()

	ex, err := w.registry.Get(mt.Type)
	if err != nil {
		return models.TaskResult{}, err
	}
	return ex.Execute(ctx, mt)
}

// beginTask marks the worker busy, queueing on the worker's cond until a
// slot under the per-worker concurrency cap frees up. It fails only when
// the worker has been stopped.
func (w *AgentWorker) beginTask() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for !w.stopped && w.maxConcurrency > 0 && w.inflight >= w.maxConcurrency {
		w.cond.Wait()
	}
	if w.stopped {
		return fmt.Errorf("worker %s is shut down", w.id)
	}
	w.inflight++
	return nil
}

// endTask marks one in-flight microtask finished and wakes any drainer.
func (w *AgentWorker) endTask() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inflight--
	w.cond.Broadcast()
}

// shutdown stops the worker from accepting new microtasks and blocks until
// in-flight work completes. Queued beginTask waiters are woken and fail.
func (w *AgentWorker) shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	w.cond.Broadcast()
	for w.inflight > 0 {
		w.cond.Wait()
	}
}

// failedResult builds a failed TaskResult for a worker-level error.
func failedResult(agentID string, elapsed time.Duration, err error) models.TaskResult {
	return models.TaskResult{
		Success: false,
		Err:     err.Error(),
		Metadata: models.ResultMetadata{
			Failed:          1,
			DurationMS:      elapsed.Milliseconds(),
			AgentID:         agentID,
			MicrotaskFailed: true,
		},
	}
}
