package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ShayCichocki/hive/internal/telemetry"
	"github.com/ShayCichocki/hive/pkg/models"
)

// poolMetrics holds one pool's monotonically accumulating counters.
// Writes are serialized by the owning pool's mutex; a racy counter here is
// a correctness bug, not an acceptable approximation.
type poolMetrics struct {
	totalProcessed uint64
	totalFailed    uint64
	totalLatency   time.Duration
	lastUpdated    time.Time
}

// agentPool is one named pool of workers. All mutable fields are guarded
// by mu; scaleMu serializes concurrent ScalePool calls for this pool.
type agentPool struct {
	spec models.PoolSpec

	mu      sync.Mutex
	status  models.PoolStatus
	workers map[string]*AgentWorker
	// order preserves worker creation order; scale-down drains from the tail.
	order   []string
	next    int
	metrics poolMetrics

	scaleMu sync.Mutex
}

// PoolManager owns every pool, worker, and pool-metric in the process.
// It is the only component permitted to mutate them; all access goes
// through its synchronized methods. Safe for concurrent use by any number
// of orchestration runs.
type PoolManager struct {
	mu     sync.RWMutex
	pools  map[string]*agentPool
	agents map[string]*AgentWorker

	executors *Registry
	metrics   *telemetry.EngineMetrics
	notify    func(Event)
}

// NewPoolManager creates a manager with one pool per spec, each populated
// to its initial size. Specs with duplicate IDs or an initial size outside
// [MinSize, MaxSize] are rejected.
func NewPoolManager(executors *Registry, metrics *telemetry.EngineMetrics, specs ...models.PoolSpec) (*PoolManager, error) {
	m := &PoolManager{
		pools:     make(map[string]*agentPool),
		agents:    make(map[string]*AgentWorker),
		executors: executors,
		metrics:   metrics,
	}

	for _, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("pool spec missing id")
		}
		if _, exists := m.pools[spec.ID]; exists {
			return nil, fmt.Errorf("duplicate pool id %q", spec.ID)
		}
		if spec.InitialSize < spec.MinSize || spec.InitialSize > spec.MaxSize {
			return nil, fmt.Errorf("pool %s: initial size %d outside bounds [%d, %d]",
				spec.ID, spec.InitialSize, spec.MinSize, spec.MaxSize)
		}

		pool := &agentPool{
			spec:    spec,
			status:  models.PoolStatusActive,
			workers: make(map[string]*AgentWorker),
		}
		for i := 0; i < spec.InitialSize; i++ {
			m.addWorkerLocked(pool)
		}
		m.pools[spec.ID] = pool
		m.updatePoolGauges(pool)
	}

	return m, nil
}

// SetEventSink installs a callback invoked for pool lifecycle events.
func (m *PoolManager) SetEventSink(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

// addWorkerLocked creates a worker in the pool and indexes it globally.
// Caller must hold m.mu (or be inside construction before publication).
func (m *PoolManager) addWorkerLocked(pool *agentPool) *AgentWorker {
	pool.next++
	id := fmt.Sprintf("%s-agent-%03d", pool.spec.ID, pool.next)
	w := newAgentWorker(id, pool.spec.ID, pool.spec.Specializations, pool.spec.MaxConcurrency, m.executors)
	pool.workers[id] = w
	pool.order = append(pool.order, id)
	m.agents[id] = w
	return w
}

// Execute routes a microtask to the named worker, marks it busy for the
// call's duration, and folds the outcome into the owning pool's metrics.
// An unknown agent ID yields a failed result, never a crash: the caller
// records it against that microtask alone.
func (m *PoolManager) Execute(ctx context.Context, agentID string, mt models.Microtask) models.TaskResult {
	m.mu.RLock()
	worker, ok := m.agents[agentID]
	m.mu.RUnlock()

	if !ok {
		debugLog("[pools] execute against unknown agent %s (microtask %s)", agentID, mt.ID)
		return failedResult(agentID, 0, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID))
	}

	start := time.Now()
	result := worker.Run(ctx, mt)
	elapsed := time.Since(start)

	m.recordExecution(worker.PoolID(), result.Success, elapsed)
	return result
}

// recordExecution updates one pool's counters under its mutex.
func (m *PoolManager) recordExecution(poolID string, success bool, elapsed time.Duration) {
	m.mu.RLock()
	pool, ok := m.pools[poolID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	pool.mu.Lock()
	if success {
		pool.metrics.totalProcessed++
	} else {
		pool.metrics.totalFailed++
	}
	pool.metrics.totalLatency += elapsed
	pool.metrics.lastUpdated = time.Now()
	pool.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ObserveExecution(poolID, success, elapsed)
	}
	m.updatePoolGauges(pool)
}

// ScalePool resizes a pool to newSize. Calls for the same pool are
// serialized: the second caller blocks until the first resize completes.
// The pool reports status "scaling" for the duration, then returns to
// "active". Scale-down drains the newest workers first, letting in-flight
// microtasks finish before the workers disappear.
//
// Bounds are enforced: newSize outside [MinSize, MaxSize] is rejected with
// ErrScaleOutOfBounds.
func (m *PoolManager) ScalePool(poolID string, newSize int) error {
	m.mu.RLock()
	pool, ok := m.pools[poolID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, poolID)
	}

	pool.scaleMu.Lock()
	defer pool.scaleMu.Unlock()

	if newSize < pool.spec.MinSize || newSize > pool.spec.MaxSize {
		return fmt.Errorf("%w: pool %s size %d not in [%d, %d]",
			ErrScaleOutOfBounds, poolID, newSize, pool.spec.MinSize, pool.spec.MaxSize)
	}

	pool.mu.Lock()
	oldSize := len(pool.order)
	if newSize == oldSize {
		pool.mu.Unlock()
		return nil
	}
	pool.status = models.PoolStatusScaling
	pool.mu.Unlock()

	debugLog("[pools] scaling %s: %d -> %d", poolID, oldSize, newSize)

	if newSize > oldSize {
		m.mu.Lock()
		pool.mu.Lock()
		for i := oldSize; i < newSize; i++ {
			m.addWorkerLocked(pool)
		}
		pool.mu.Unlock()
		m.mu.Unlock()
	} else {
		// Detach the excess workers first so no new microtasks route to
		// them, then drain each one outside the locks.
		pool.mu.Lock()
		removed := make([]*AgentWorker, 0, oldSize-newSize)
		for _, id := range pool.order[newSize:] {
			removed = append(removed, pool.workers[id])
			delete(pool.workers, id)
		}
		pool.order = pool.order[:newSize]
		pool.mu.Unlock()

		m.mu.Lock()
		for _, w := range removed {
			delete(m.agents, w.ID())
		}
		m.mu.Unlock()

		for _, w := range removed {
			w.shutdown()
		}
	}

	pool.mu.Lock()
	pool.status = models.PoolStatusActive
	pool.metrics.lastUpdated = time.Now()
	pool.mu.Unlock()

	m.updatePoolGauges(pool)
	m.emit(Event{
		Type:      EventPoolScaled,
		PoolID:    poolID,
		Message:   fmt.Sprintf("resized from %d to %d workers", oldSize, newSize),
		Timestamp: time.Now(),
	})
	return nil
}

// Utilization returns the busy-worker percentage for a pool, in [0, 100].
func (m *PoolManager) Utilization(poolID string) (float64, error) {
	m.mu.RLock()
	pool, ok := m.pools[poolID]
	m.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPool, poolID)
	}
	return poolUtilization(pool), nil
}

// poolUtilization computes busy/total for one pool.
func poolUtilization(pool *agentPool) float64 {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	total := len(pool.order)
	if total == 0 {
		return 0
	}
	busy := 0
	for _, w := range pool.workers {
		if w.Busy() {
			busy++
		}
	}
	return float64(busy) / float64(total) * 100
}

// Snapshot captures the assignable worker population for the balancer.
func (m *PoolManager) Snapshot() PoolSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var snap PoolSnapshot
	for _, pool := range m.pools {
		pool.mu.Lock()
		for _, id := range pool.order {
			w := pool.workers[id]
			snap.Workers = append(snap.Workers, WorkerView{
				ID:              w.ID(),
				PoolID:          pool.spec.ID,
				Specializations: w.specializations,
				Load:            w.Load(),
			})
		}
		pool.mu.Unlock()
	}
	return snap
}

// PoolStats returns the read view of every pool, sorted by pool ID. Field
// names and units (milliseconds, 0-100 utilization) are consumed verbatim
// by the HTTP surface.
func (m *PoolManager) PoolStats() []models.PoolStats {
	m.mu.RLock()
	pools := make([]*agentPool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.RUnlock()

	stats := make([]models.PoolStats, 0, len(pools))
	for _, pool := range pools {
		util := poolUtilization(pool)

		pool.mu.Lock()
		executions := pool.metrics.totalProcessed + pool.metrics.totalFailed
		avg := 0.0
		if executions > 0 {
			avg = float64(pool.metrics.totalLatency.Milliseconds()) / float64(executions)
		}
		stats = append(stats, models.PoolStats{
			ID:                pool.spec.ID,
			Type:              pool.spec.Type,
			Status:            pool.status,
			ActiveAgents:      len(pool.order),
			Utilization:       util,
			ProcessedTasks:    pool.metrics.totalProcessed,
			FailedTasks:       pool.metrics.totalFailed,
			AvgResponseTimeMS: avg,
			LastUpdated:       pool.metrics.lastUpdated,
		})
		pool.mu.Unlock()
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return stats
}

// Stop drains every worker in every pool. New executions against drained
// workers fail as unknown agents.
func (m *PoolManager) Stop() {
	m.mu.Lock()
	workers := make([]*AgentWorker, 0, len(m.agents))
	for _, w := range m.agents {
		workers = append(workers, w)
	}
	m.agents = make(map[string]*AgentWorker)
	m.mu.Unlock()

	for _, w := range workers {
		w.shutdown()
	}
}

// updatePoolGauges refreshes the prometheus gauges for one pool.
func (m *PoolManager) updatePoolGauges(pool *agentPool) {
	if m.metrics == nil {
		return
	}
	pool.mu.Lock()
	size := len(pool.order)
	pool.mu.Unlock()
	m.metrics.SetPoolSize(pool.spec.ID, size)
	m.metrics.SetPoolUtilization(pool.spec.ID, poolUtilization(pool))
}

// emit forwards a pool event to the installed sink, if any.
func (m *PoolManager) emit(ev Event) {
	m.mu.RLock()
	fn := m.notify
	m.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}
