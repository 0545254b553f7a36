package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/hive/internal/telemetry"
	"github.com/ShayCichocki/hive/pkg/models"
)

// runState tracks where a run is in the orchestration pipeline. States are
// per run: any number of runs may be in flight against the same pools.
type runState string

const (
	stateIdle        runState = "idle"
	stateDecomposing runState = "decomposing"
	stateAssigning   runState = "assigning"
	stateExecuting   runState = "executing"
	stateMerging     runState = "merging"
	stateDone        runState = "done"
	stateFailed      runState = "failed"
)

// Orchestrator is the engine façade. One Execute call runs the full
// pipeline: decompose -> assign -> execute in concurrency-bounded chunks
// -> merge. Per-microtask failures become failed results inside the merge;
// only decomposition failure and contract violations abort a run.
type Orchestrator struct {
	decomposer *Decomposer
	balancer   *LoadBalancer
	pools      *PoolManager
	merger     *Merger

	maxConcurrency int
	timeout        time.Duration
	metrics        *telemetry.EngineMetrics

	// events is the channel for emitting orchestrator events.
	events chan Event
	// dropped counts events discarded because the channel was full.
	dropped atomic.Uint64

	mu      sync.RWMutex
	stopped bool
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	maxConcurrency int
	timeout        time.Duration
	mergePolicy    MergePolicy
	metrics        *telemetry.EngineMetrics
	eventBuffer    int
}

// WithMaxConcurrency sets the global ceiling on concurrently executing
// microtasks. The ceiling spans all pools; it is deliberately not
// per-pool, so the process never exceeds a caller-configured budget.
func WithMaxConcurrency(n int) Option {
	return func(o *orchestratorOptions) { o.maxConcurrency = n }
}

// WithTimeout sets the per-microtask execution deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.timeout = d }
}

// WithMergePolicy sets the aggregate success policy.
func WithMergePolicy(p MergePolicy) Option {
	return func(o *orchestratorOptions) { o.mergePolicy = p }
}

// WithMetrics installs the prometheus collectors.
func WithMetrics(m *telemetry.EngineMetrics) Option {
	return func(o *orchestratorOptions) { o.metrics = m }
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(o *orchestratorOptions) { o.eventBuffer = n }
}

// New creates an Orchestrator over the given pool manager.
func New(pools *PoolManager, opts ...Option) *Orchestrator {
	options := orchestratorOptions{
		maxConcurrency: 10,
		mergePolicy:    PolicyAllSucceed,
		eventBuffer:    100,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.maxConcurrency < 1 {
		options.maxConcurrency = 1
	}

	o := &Orchestrator{
		decomposer:     NewDecomposer(),
		balancer:       NewLoadBalancer(),
		pools:          pools,
		merger:         NewMerger(options.mergePolicy),
		maxConcurrency: options.maxConcurrency,
		timeout:        options.timeout,
		metrics:        options.metrics,
		events:         make(chan Event, options.eventBuffer),
	}
	pools.SetEventSink(o.emit)
	return o
}

// Pools returns the pool manager for admin surfaces.
func (o *Orchestrator) Pools() *PoolManager {
	return o.pools
}

// PoolStats returns the read view of every pool, delegating to the pool
// manager. It exists so the HTTP surface can consume the orchestrator
// directly.
func (o *Orchestrator) PoolStats() []models.PoolStats {
	return o.pools.PoolStats()
}

// MaxConcurrency returns the configured global ceiling.
func (o *Orchestrator) MaxConcurrency() int {
	return o.maxConcurrency
}

// Events returns the channel for receiving orchestrator events.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// DroppedEventCount returns the number of events discarded because the
// event channel was full.
func (o *Orchestrator) DroppedEventCount() uint64 {
	return o.dropped.Load()
}

// Submit is the caller-facing entry point. It stamps a missing task ID
// (ULID, sortable in run history) and creation time, then runs the task to
// completion. The call blocks until the merged result is ready.
func (o *Orchestrator) Submit(ctx context.Context, task models.Task) (models.TaskResult, error) {
	if task.ID == "" {
		task.ID = ulid.Make().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	return o.Execute(ctx, task)
}

// Execute runs one task through the full pipeline and returns the merged
// result. The caller receives either a complete merged TaskResult or a
// single error for the fatal cases (decomposition failure, contract
// violation, engine stopped) - never a partial state.
func (o *Orchestrator) Execute(ctx context.Context, task models.Task) (models.TaskResult, error) {
	o.mu.RLock()
	stopped := o.stopped
	o.mu.RUnlock()
	if stopped {
		return models.TaskResult{}, ErrEngineStopped
	}

	ctx, span := telemetry.Tracer().Start(ctx, "hive.execute",
		trace.WithAttributes(
			attribute.String("task.id", task.ID),
			attribute.String("task.type", task.Type),
			attribute.String("task.complexity", string(task.Complexity)),
		))
	defer span.End()

	start := time.Now()
	state := stateIdle
	advance := func(s runState) {
		state = s
		span.AddEvent("run.state", trace.WithAttributes(attribute.String("state", string(s))))
	}
	o.emit(Event{Type: EventRunStarted, TaskID: task.ID, Timestamp: start})

	fail := func(err error) (models.TaskResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("run.state", string(stateFailed)))
		o.metrics.ObserveRun(false)
		o.emit(Event{Type: EventRunFailed, TaskID: task.ID, Error: err, Timestamp: time.Now()})
		return models.TaskResult{}, err
	}

	// Decompose. Failure here is fatal to the whole run.
	advance(stateDecomposing)
	microtasks, err := o.decomposer.Decompose(task)
	if err != nil {
		return fail(fmt.Errorf("decompose task %s: %w", task.ID, err))
	}
	span.SetAttributes(attribute.Int("run.microtasks", len(microtasks)))

	// Assign. Unassignable microtasks stay in the list as markers.
	advance(stateAssigning)
	assignments := o.balancer.Assign(microtasks, o.pools.Snapshot())
	if len(assignments) != len(microtasks) {
		return fail(fmt.Errorf("assignment contract violated: %d assignments for %d microtasks",
			len(assignments), len(microtasks)))
	}

	// Execute chunk by chunk. Chunk N settles fully before N+1 starts.
	advance(stateExecuting)
	results := o.executeChunks(ctx, task.ID, assignments)

	// Merge every outcome, failures included.
	advance(stateMerging)
	merged, err := o.merger.Merge(results)
	if err != nil {
		return fail(fmt.Errorf("merge results for task %s: %w", task.ID, err))
	}
	merged.Metadata.DurationMS = time.Since(start).Milliseconds()

	advance(stateDone)
	span.SetAttributes(
		attribute.String("run.state", string(state)),
		attribute.Bool("result.success", merged.Success),
		attribute.Int("result.succeeded", merged.Metadata.Succeeded),
		attribute.Int("result.failed", merged.Metadata.Failed),
	)
	o.metrics.ObserveRun(merged.Success)
	o.emit(Event{
		Type:      EventRunMerged,
		TaskID:    task.ID,
		Message:   fmt.Sprintf("%d succeeded, %d failed", merged.Metadata.Succeeded, merged.Metadata.Failed),
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	})
	return merged, nil
}

// executeChunks partitions assignments into chunks of at most
// maxConcurrency and runs each chunk as one fan-out/fan-in barrier.
// Results land at the same index as their assignment, preserving
// microtask order for the merge.
func (o *Orchestrator) executeChunks(ctx context.Context, taskID string, assignments []models.Assignment) []models.TaskResult {
	results := make([]models.TaskResult, len(assignments))

	chunkIdx := 0
	for begin := 0; begin < len(assignments); begin += o.maxConcurrency {
		end := begin + o.maxConcurrency
		if end > len(assignments) {
			end = len(assignments)
		}
		chunk := assignments[begin:end]

		chunkCtx, chunkSpan := telemetry.Tracer().Start(ctx, "hive.chunk",
			trace.WithAttributes(
				attribute.String("task.id", taskID),
				attribute.Int("chunk.index", chunkIdx),
				attribute.Int("chunk.size", len(chunk)),
			))

		o.metrics.ObserveChunk(len(chunk))
		o.emit(Event{
			Type:      EventChunkStarted,
			TaskID:    taskID,
			Chunk:     chunkIdx,
			ChunkSize: len(chunk),
			Timestamp: time.Now(),
		})

		var wg sync.WaitGroup
		for i, a := range chunk {
			wg.Add(1)
			go func(slot int, a models.Assignment) {
				defer wg.Done()
				results[begin+slot] = o.executeOne(chunkCtx, a)
			}(i, a)
		}
		wg.Wait()

		chunkSpan.End()
		o.emit(Event{
			Type:      EventChunkSettled,
			TaskID:    taskID,
			Chunk:     chunkIdx,
			ChunkSize: len(chunk),
			Timestamp: time.Now(),
		})
		chunkIdx++
	}

	return results
}

// executeOne runs a single assignment and always returns a result: worker
// errors, timeouts, and unassignable markers become failed results that
// never abort sibling executions.
func (o *Orchestrator) executeOne(ctx context.Context, a models.Assignment) models.TaskResult {
	if a.Unassignable {
		result := failedResult("", 0, fmt.Errorf("%w: %s", ErrUnassignable, a.Reason))
		o.emit(Event{
			Type:        EventMicrotaskFailed,
			TaskID:      a.Microtask.ParentTaskID,
			MicrotaskID: a.Microtask.ID,
			Error:       ErrUnassignable,
			Timestamp:   time.Now(),
		})
		return result
	}

	execCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	execCtx, span := telemetry.Tracer().Start(execCtx, "hive.agent.execute",
		trace.WithAttributes(
			attribute.String("task.id", a.Microtask.ParentTaskID),
			attribute.String("microtask.id", a.Microtask.ID),
			attribute.String("agent.id", a.AgentID),
		))
	defer span.End()

	result := o.pools.Execute(execCtx, a.AgentID, a.Microtask)

	span.SetAttributes(
		attribute.Bool("result.success", result.Success),
		attribute.Int64("result.duration", result.Metadata.DurationMS),
	)

	ev := Event{
		Type:        EventMicrotaskCompleted,
		TaskID:      a.Microtask.ParentTaskID,
		MicrotaskID: a.Microtask.ID,
		AgentID:     a.AgentID,
		Timestamp:   time.Now(),
		Duration:    time.Duration(result.Metadata.DurationMS) * time.Millisecond,
	}
	if !result.Success {
		ev.Type = EventMicrotaskFailed
		ev.Message = result.Err
		span.SetStatus(codes.Error, result.Err)
	}
	o.emit(ev)
	return result
}

// Stop marks the orchestrator stopped, drains the pools, and closes the
// event channel. In-flight Execute calls finish; new calls fail with
// ErrEngineStopped.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	o.mu.Unlock()

	o.pools.SetEventSink(nil)
	o.pools.Stop()
	close(o.events)
}

// emit sends an event without blocking; events are dropped (and counted)
// when the channel is full or the engine is stopped.
func (o *Orchestrator) emit(ev Event) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		o.dropped.Add(1)
		return
	}
	select {
	case o.events <- ev:
	default:
		o.dropped.Add(1)
	}
}
