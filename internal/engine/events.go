// Package engine implements the parallel task-orchestration core:
// decomposition, load balancing, pooled execution, and result merging.
package engine

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates an orchestration run has begun.
	EventRunStarted EventType = "run_started"
	// EventRunMerged indicates a run's results were merged successfully.
	EventRunMerged EventType = "run_merged"
	// EventRunFailed indicates a run aborted before producing a merge.
	EventRunFailed EventType = "run_failed"
	// EventChunkStarted indicates a chunk began executing.
	EventChunkStarted EventType = "chunk_started"
	// EventChunkSettled indicates every microtask in a chunk finished.
	EventChunkSettled EventType = "chunk_settled"
	// EventMicrotaskCompleted indicates a microtask finished successfully.
	EventMicrotaskCompleted EventType = "microtask_completed"
	// EventMicrotaskFailed indicates a microtask failed or timed out.
	EventMicrotaskFailed EventType = "microtask_failed"
	// EventPoolScaled indicates a pool finished resizing.
	EventPoolScaled EventType = "pool_scaled"
)

// Event represents an event emitted by the orchestrator. Events feed the
// serve loop's structured logs and the run-history store.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// MicrotaskID is the ID of the related microtask, if applicable.
	MicrotaskID string
	// AgentID is the ID of the related agent, if applicable.
	AgentID string
	// PoolID is the ID of the related pool, if applicable.
	PoolID string
	// Chunk is the zero-based chunk index for chunk events.
	Chunk int
	// ChunkSize is the number of assignments in the chunk.
	ChunkSize int
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the elapsed time for completion events.
	Duration time.Duration
}
