package models

import "time"

// PoolStatus represents the current state of an agent pool.
type PoolStatus string

const (
	// PoolStatusActive indicates the pool is serving executions.
	PoolStatusActive PoolStatus = "active"
	// PoolStatusScaling indicates the pool is resizing.
	PoolStatusScaling PoolStatus = "scaling"
)

// Valid returns true if the status is a known value.
func (s PoolStatus) Valid() bool {
	switch s {
	case PoolStatusActive, PoolStatusScaling:
		return true
	default:
		return false
	}
}

// PoolSpec declares a pool's shape at construction time.
type PoolSpec struct {
	// ID is the unique pool identifier.
	ID string `json:"id" mapstructure:"id"`
	// Type is the pool's human-readable category.
	Type string `json:"type" mapstructure:"type"`
	// Specializations lists the capability tags workers in this pool carry.
	Specializations []string `json:"specializations" mapstructure:"specializations"`
	// MinSize is the lower bound for scaling.
	MinSize int `json:"min_size" mapstructure:"min_size"`
	// MaxSize is the upper bound for scaling.
	MaxSize int `json:"max_size" mapstructure:"max_size"`
	// InitialSize is the worker count at construction.
	InitialSize int `json:"initial_size" mapstructure:"initial_size"`
	// MaxConcurrency caps concurrent executions per worker.
	MaxConcurrency int `json:"max_concurrency" mapstructure:"max_concurrency"`
}

// Assignment pairs a microtask with the agent chosen to execute it.
// Assignments exist only for the duration of one orchestration run.
type Assignment struct {
	// Microtask is the unit of work being assigned.
	Microtask Microtask `json:"microtask"`
	// AgentID is the chosen worker, empty when unassignable.
	AgentID string `json:"agent_id,omitempty"`
	// Unassignable marks a microtask for which no capable worker exists.
	Unassignable bool `json:"unassignable,omitempty"`
	// Reason explains why the microtask is unassignable.
	Reason string `json:"reason,omitempty"`
}

// PoolStats is the read view of one pool exposed to the admin surface.
// Field names and units (milliseconds, utilization 0-100) are part of the
// HTTP contract.
type PoolStats struct {
	// ID is the pool identifier.
	ID string `json:"id"`
	// Type is the pool category.
	Type string `json:"type"`
	// Status is the pool's lifecycle state.
	Status PoolStatus `json:"status"`
	// ActiveAgents is the current worker count.
	ActiveAgents int `json:"activeAgents"`
	// Utilization is the busy-worker percentage, 0-100.
	Utilization float64 `json:"utilization"`
	// ProcessedTasks is the total successful executions.
	ProcessedTasks uint64 `json:"processedTasks"`
	// FailedTasks is the total failed executions.
	FailedTasks uint64 `json:"failedTasks"`
	// AvgResponseTimeMS is the mean execution latency in milliseconds.
	AvgResponseTimeMS float64 `json:"avgResponseTimeMs"`
	// LastUpdated is when the pool's counters last changed.
	LastUpdated time.Time `json:"lastUpdated"`
}
