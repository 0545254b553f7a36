// Package models defines the core data types shared across hive.
package models

import "time"

// Complexity classifies how much work a task represents. The decomposer
// uses it to decide how many microtasks to fan out.
type Complexity string

const (
	// ComplexityLow produces the smallest decomposition.
	ComplexityLow Complexity = "low"
	// ComplexityMedium produces a moderate decomposition.
	ComplexityMedium Complexity = "medium"
	// ComplexityHigh produces the widest decomposition.
	ComplexityHigh Complexity = "high"
)

// Valid returns true if the complexity is a known value.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	default:
		return false
	}
}

// Task is the caller-submitted unit of work. It is immutable once
// submitted and consumed entirely within one orchestration run.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Type names the capability required to process this task.
	Type string `json:"type"`
	// Complexity drives the decomposition width.
	Complexity Complexity `json:"complexity"`
	// Payload is the opaque task content.
	Payload string `json:"payload"`
	// CreatedAt is when the task was submitted.
	CreatedAt time.Time `json:"created_at"`
}

// Microtask is one decomposed, independently executable piece of a Task.
// It is owned exclusively by the orchestration run that created it.
type Microtask struct {
	// ID is the unique identifier for this microtask.
	ID string `json:"id"`
	// Type names the capability a worker needs to execute this microtask.
	Type string `json:"type"`
	// Priority orders microtasks within a run; lower runs first.
	Priority int `json:"priority"`
	// ParentTaskID links the microtask back to the task it came from.
	ParentTaskID string `json:"parent_task_id"`
	// Payload is the slice of the parent payload this microtask covers.
	Payload string `json:"payload"`
}

// ResultMetadata carries observability counts attached to a TaskResult.
type ResultMetadata struct {
	// Succeeded is the number of microtasks that completed successfully.
	Succeeded int `json:"succeeded"`
	// Failed is the number of microtasks that failed.
	Failed int `json:"failed"`
	// DurationMS is the elapsed execution time in milliseconds.
	DurationMS int64 `json:"duration_ms"`
	// AgentID is the worker that produced this result, if any.
	AgentID string `json:"agent_id,omitempty"`
	// MicrotaskFailed marks a per-microtask failure captured during fan-out.
	MicrotaskFailed bool `json:"microtask_failed,omitempty"`
}

// TaskResult is the outcome of a single worker execution, and also the
// shape of the final merged result returned to the caller.
type TaskResult struct {
	// Success indicates whether the execution (or merge) succeeded.
	Success bool `json:"success"`
	// Content is the produced output.
	Content string `json:"content"`
	// Err holds the failure message for unsuccessful results.
	Err string `json:"error,omitempty"`
	// Metadata records execution counts and timing.
	Metadata ResultMetadata `json:"metadata"`
}
