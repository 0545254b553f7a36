package engine

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ShayCichocki/hive/pkg/models"
)

func orchestratorSpec(specializations []string, size int) models.PoolSpec {
	return models.PoolSpec{
		ID:              "worker-pool",
		Type:            "general",
		Specializations: specializations,
		MinSize:         1,
		MaxSize:         64,
		InitialSize:     size,
		MaxConcurrency:  16,
	}
}

// drainEvents stops the orchestrator and collects everything it emitted.
func drainEvents(o *Orchestrator) []Event {
	o.Stop()
	var events []Event
	for ev := range o.Events() {
		events = append(events, ev)
	}
	return events
}

func eventsOfType(events []Event, et EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == et {
			out = append(out, ev)
		}
	}
	return out
}

func TestExecute_SingleChunkWhenUnderCeiling(t *testing.T) {
	transformPool := func(id string, size int) models.PoolSpec {
		return models.PoolSpec{
			ID:              id,
			Type:            "transform",
			Specializations: []string{"transform"},
			MinSize:         1,
			MaxSize:         32,
			InitialSize:     size,
			MaxConcurrency:  8,
		}
	}
	pools := newTestManager(t,
		transformPool("pool-a", 8),
		transformPool("pool-b", 10),
		transformPool("pool-c", 8),
		transformPool("pool-d", 4),
	)
	orch := New(pools, WithMaxConcurrency(50))

	task := models.Task{
		ID:         "task-a",
		Type:       "transform",
		Complexity: models.ComplexityHigh,
		Payload:    "abcdefghijkl",
	}
	result, err := orch.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Errorf("Success = false, want true: %s", result.Err)
	}
	if result.Metadata.Succeeded != 12 || result.Metadata.Failed != 0 {
		t.Errorf("Succeeded/Failed = %d/%d, want 12/0",
			result.Metadata.Succeeded, result.Metadata.Failed)
	}

	events := drainEvents(orch)
	chunks := eventsOfType(events, EventChunkStarted)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].ChunkSize != 12 {
		t.Errorf("ChunkSize = %d, want 12", chunks[0].ChunkSize)
	}
	if got := eventsOfType(events, EventRunMerged); len(got) != 1 {
		t.Errorf("got %d run_merged events, want 1", len(got))
	}

	// All workers start idle, so the 12 assignments spread across distinct
	// workers in pool-ID order: all of pool-a, then the overflow into pool-b.
	byPool := make(map[string]int)
	seen := make(map[string]bool)
	for _, ev := range eventsOfType(events, EventMicrotaskCompleted) {
		if seen[ev.AgentID] {
			t.Errorf("agent %s ran more than one microtask with idle workers to spare", ev.AgentID)
		}
		seen[ev.AgentID] = true
		poolID := strings.SplitN(ev.AgentID, "-agent-", 2)[0]
		byPool[poolID]++
	}
	if byPool["pool-a"] != 8 || byPool["pool-b"] != 4 {
		t.Errorf("assignments per pool = %v, want pool-a:8 pool-b:4", byPool)
	}
}

// countingExecutor tracks the highest number of concurrent executions.
type countingExecutor struct {
	mu   sync.Mutex
	cur  int
	peak int
}

func (e *countingExecutor) Execute(ctx context.Context, mt models.Microtask) (models.TaskResult, error) {
	e.mu.Lock()
	e.cur++
	if e.cur > e.peak {
		e.peak = e.cur
	}
	e.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	e.mu.Lock()
	e.cur--
	e.mu.Unlock()
	return models.TaskResult{Success: true, Content: mt.Payload}, nil
}

func TestExecute_ChunksBoundConcurrency(t *testing.T) {
	counter := &countingExecutor{}
	registry := NewRegistry()
	registry.Register("count", counter)

	pools, err := NewPoolManager(registry, nil, orchestratorSpec([]string{"count"}, 20))
	if err != nil {
		t.Fatalf("NewPoolManager() error = %v", err)
	}
	orch := New(pools, WithMaxConcurrency(5))

	task := models.Task{
		ID:         "task-b",
		Type:       "count",
		Complexity: models.ComplexityHigh,
		Payload:    "abcdefghijkl",
	}
	result, err := orch.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Metadata.Succeeded != 12 {
		t.Errorf("Succeeded = %d, want 12", result.Metadata.Succeeded)
	}

	counter.mu.Lock()
	peak := counter.peak
	counter.mu.Unlock()
	if peak > 5 {
		t.Errorf("peak concurrency = %d, exceeds ceiling 5", peak)
	}

	// 12 microtasks at a ceiling of 5 means chunks of 5, 5, 2, each
	// settling before the next begins.
	events := drainEvents(orch)
	wantSizes := []int{5, 5, 2}
	started := eventsOfType(events, EventChunkStarted)
	settled := eventsOfType(events, EventChunkSettled)
	if len(started) != len(wantSizes) || len(settled) != len(wantSizes) {
		t.Fatalf("got %d started / %d settled chunk events, want %d each",
			len(started), len(settled), len(wantSizes))
	}
	for i, want := range wantSizes {
		if started[i].ChunkSize != want {
			t.Errorf("chunk %d started size = %d, want %d", i, started[i].ChunkSize, want)
		}
		if settled[i].ChunkSize != want {
			t.Errorf("chunk %d settled size = %d, want %d", i, settled[i].ChunkSize, want)
		}
	}

	// Strict ordering: chunk N settles before chunk N+1 starts.
	var sequence []Event
	for _, ev := range events {
		if ev.Type == EventChunkStarted || ev.Type == EventChunkSettled {
			sequence = append(sequence, ev)
		}
	}
	for i, ev := range sequence {
		wantType := EventChunkStarted
		if i%2 == 1 {
			wantType = EventChunkSettled
		}
		if ev.Type != wantType || ev.Chunk != i/2 {
			t.Fatalf("chunk event %d = %s chunk %d, want %s chunk %d",
				i, ev.Type, ev.Chunk, wantType, i/2)
		}
	}
}

func TestExecute_PartialFailureStillMerges(t *testing.T) {
	// Fails exactly the segment carrying "x"; the other eleven succeed.
	registry := NewRegistry()
	registry.Register("flaky", ExecutorFunc(func(ctx context.Context, mt models.Microtask) (models.TaskResult, error) {
		if strings.Contains(mt.Payload, "x") {
			return models.TaskResult{}, errors.New("segment rejected")
		}
		return models.TaskResult{Success: true, Content: mt.Payload}, nil
	}))

	pools, err := NewPoolManager(registry, nil, orchestratorSpec([]string{"flaky"}, 12))
	if err != nil {
		t.Fatalf("NewPoolManager() error = %v", err)
	}
	orch := New(pools, WithMaxConcurrency(12))
	defer orch.Stop()

	task := models.Task{
		ID:         "task-c",
		Type:       "flaky",
		Complexity: models.ComplexityHigh,
		Payload:    "abcdefghijkx",
	}
	result, err := orch.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute() error = %v, partial failure must not abort the run", err)
	}

	if result.Success {
		t.Error("Success = true under all-succeed policy with one failure")
	}
	if result.Metadata.Succeeded != 11 || result.Metadata.Failed != 1 {
		t.Errorf("Succeeded/Failed = %d/%d, want 11/1",
			result.Metadata.Succeeded, result.Metadata.Failed)
	}
	if result.Err == "" {
		t.Error("aggregate failure should carry an error message")
	}
}

func TestExecute_BestEffortPolicy(t *testing.T) {
	registry := NewRegistry()
	registry.Register("flaky", ExecutorFunc(func(ctx context.Context, mt models.Microtask) (models.TaskResult, error) {
		if strings.Contains(mt.Payload, "x") {
			return models.TaskResult{}, errors.New("segment rejected")
		}
		return models.TaskResult{Success: true, Content: mt.Payload}, nil
	}))

	pools, err := NewPoolManager(registry, nil, orchestratorSpec([]string{"flaky"}, 4))
	if err != nil {
		t.Fatalf("NewPoolManager() error = %v", err)
	}
	orch := New(pools, WithMergePolicy(PolicyBestEffort))
	defer orch.Stop()

	task := models.Task{
		ID:         "task-be",
		Type:       "flaky",
		Complexity: models.ComplexityLow,
		Payload:    "okx!",
	}
	result, err := orch.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Error("best-effort run with one success should succeed")
	}
	if result.Metadata.Succeeded != 1 || result.Metadata.Failed != 1 {
		t.Errorf("Succeeded/Failed = %d/%d, want 1/1",
			result.Metadata.Succeeded, result.Metadata.Failed)
	}
}

func TestExecute_PreservesSegmentOrder(t *testing.T) {
	pools := newTestManager(t, orchestratorSpec([]string{"transform", "delay"}, 12))
	orch := New(pools, WithMaxConcurrency(4))
	defer orch.Stop()

	task := models.Task{
		ID:         "task-order",
		Type:       "transform",
		Complexity: models.ComplexityHigh,
		Payload:    "abcdefghijkl",
	}
	result, err := orch.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := "A\nB\nC\nD\nE\nF\nG\nH\nI\nJ\nK\nL"
	if result.Content != want {
		t.Errorf("Content = %q, want %q", result.Content, want)
	}
}

func TestExecute_UnassignableBecomesFailedResult(t *testing.T) {
	// Pool only knows digest work; transform microtasks find no capable
	// worker and fail without aborting the run.
	pools := newTestManager(t, models.PoolSpec{
		ID:              "digest-only",
		Type:            "digest",
		Specializations: []string{"digest"},
		MinSize:         1,
		MaxSize:         8,
		InitialSize:     4,
		MaxConcurrency:  4,
	})
	orch := New(pools)
	defer orch.Stop()

	task := models.Task{
		ID:         "task-e",
		Type:       "transform",
		Complexity: models.ComplexityLow,
		Payload:    "hello",
	}
	result, err := orch.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.Success {
		t.Error("Success = true with every microtask unassignable")
	}
	if result.Metadata.Succeeded != 0 || result.Metadata.Failed != 2 {
		t.Errorf("Succeeded/Failed = %d/%d, want 0/2",
			result.Metadata.Succeeded, result.Metadata.Failed)
	}
	if !strings.Contains(result.Err, ErrUnassignable.Error()) {
		t.Errorf("Err = %q, want mention of unassignable", result.Err)
	}
}

func TestExecute_TimeoutFailsSlowMicrotasks(t *testing.T) {
	registry := NewRegistry()
	registry.Register("slow", ExecutorFunc(func(ctx context.Context, mt models.Microtask) (models.TaskResult, error) {
		select {
		case <-time.After(300 * time.Millisecond):
			return models.TaskResult{Success: true, Content: mt.Payload}, nil
		case <-ctx.Done():
			return models.TaskResult{}, ctx.Err()
		}
	}))

	pools, err := NewPoolManager(registry, nil, orchestratorSpec([]string{"slow"}, 4))
	if err != nil {
		t.Fatalf("NewPoolManager() error = %v", err)
	}
	orch := New(pools, WithTimeout(30*time.Millisecond))
	defer orch.Stop()

	task := models.Task{
		ID:         "task-slow",
		Type:       "slow",
		Complexity: models.ComplexityLow,
		Payload:    "payload",
	}
	result, err := orch.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.Success {
		t.Error("Success = true, want deadline failures")
	}
	if result.Metadata.Failed != 2 {
		t.Errorf("Failed = %d, want 2", result.Metadata.Failed)
	}
	if !strings.Contains(result.Err, "2 of 2 microtasks failed") {
		t.Errorf("Err = %q, want failure tally", result.Err)
	}
}

func TestExecute_DecompositionFailureIsFatal(t *testing.T) {
	pools := newTestManager(t, orchestratorSpec([]string{"transform"}, 2))
	orch := New(pools)

	task := models.Task{
		ID:         "task-bad",
		Type:       "transform",
		Complexity: models.ComplexityLow,
		Payload:    "",
	}
	_, err := orch.Execute(context.Background(), task)
	if !errors.Is(err, ErrDecomposition) {
		t.Fatalf("Execute() error = %v, want ErrDecomposition", err)
	}

	events := drainEvents(orch)
	if got := eventsOfType(events, EventRunFailed); len(got) != 1 {
		t.Errorf("got %d run_failed events, want 1", len(got))
	}
	if got := eventsOfType(events, EventRunMerged); len(got) != 0 {
		t.Errorf("got %d run_merged events, want 0", len(got))
	}
}

func TestSubmit_StampsMissingTaskID(t *testing.T) {
	pools := newTestManager(t, orchestratorSpec([]string{"transform"}, 4))
	orch := New(pools)

	task := models.Task{
		Type:       "transform",
		Complexity: models.ComplexityLow,
		Payload:    "hello",
	}
	result, err := orch.Submit(context.Background(), task)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !result.Success {
		t.Errorf("Success = false: %s", result.Err)
	}

	events := drainEvents(orch)
	started := eventsOfType(events, EventRunStarted)
	if len(started) != 1 {
		t.Fatalf("got %d run_started events, want 1", len(started))
	}
	if started[0].TaskID == "" {
		t.Error("Submit did not stamp a task ID")
	}
}

func TestOrchestrator_StopRejectsNewRuns(t *testing.T) {
	pools := newTestManager(t, orchestratorSpec([]string{"transform"}, 2))
	orch := New(pools)

	orch.Stop()
	orch.Stop() // idempotent

	task := models.Task{
		ID:         "task-late",
		Type:       "transform",
		Complexity: models.ComplexityLow,
		Payload:    "hi",
	}
	if _, err := orch.Execute(context.Background(), task); !errors.Is(err, ErrEngineStopped) {
		t.Errorf("Execute() after Stop() error = %v, want ErrEngineStopped", err)
	}
}

func TestExecute_CappedWorkerQueuesInsteadOfFailing(t *testing.T) {
	// One worker with a per-worker cap of 1 receives both microtasks of a
	// chunk. The second must queue for the slot, not come back failed.
	pools := newTestManager(t, models.PoolSpec{
		ID:              "solo",
		Type:            "transform",
		Specializations: []string{"transform"},
		MinSize:         1,
		MaxSize:         1,
		InitialSize:     1,
		MaxConcurrency:  1,
	})
	orch := New(pools, WithMaxConcurrency(10))
	defer orch.Stop()

	task := models.Task{
		ID:         "task-solo",
		Type:       "transform",
		Complexity: models.ComplexityLow,
		Payload:    "hello",
	}
	result, err := orch.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Success = false: %s", result.Err)
	}
	if result.Metadata.Succeeded != 2 || result.Metadata.Failed != 0 {
		t.Errorf("Succeeded/Failed = %d/%d, want 2/0",
			result.Metadata.Succeeded, result.Metadata.Failed)
	}
}

func TestExecute_RecordsRunStateTransitions(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	pools := newTestManager(t, orchestratorSpec([]string{"transform"}, 4))
	orch := New(pools)
	defer orch.Stop()

	task := models.Task{
		ID:         "task-span",
		Type:       "transform",
		Complexity: models.ComplexityLow,
		Payload:    "hello",
	}
	if _, err := orch.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var root sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == "hive.execute" {
			root = s
		}
	}
	if root == nil {
		t.Fatal("no hive.execute span recorded")
	}

	var got []string
	for _, ev := range root.Events() {
		if ev.Name != "run.state" {
			continue
		}
		for _, attr := range ev.Attributes {
			if string(attr.Key) == "state" {
				got = append(got, attr.Value.AsString())
			}
		}
	}
	want := []string{"decomposing", "assigning", "executing", "merging", "done"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("run.state transitions = %v, want %v", got, want)
	}
}

func TestOrchestrator_DroppedEventsAreCounted(t *testing.T) {
	pools := newTestManager(t, orchestratorSpec([]string{"transform"}, 4))
	orch := New(pools, WithEventBuffer(1))
	defer orch.Stop()

	task := models.Task{
		ID:         "task-noisy",
		Type:       "transform",
		Complexity: models.ComplexityMedium,
		Payload:    "abcdef",
	}
	if _, err := orch.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// One run emits far more than one event; the overflow is counted, not
	// blocked on.
	if orch.DroppedEventCount() == 0 {
		t.Error("DroppedEventCount() = 0 with a single-slot buffer")
	}
}
