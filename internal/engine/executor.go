package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/hive/pkg/models"
)

// Executor runs one microtask of a given type. Implementations must be
// safe for concurrent use: a single executor instance serves every worker
// registered for its type.
type Executor interface {
	Execute(ctx context.Context, mt models.Microtask) (models.TaskResult, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, mt models.Microtask) (models.TaskResult, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, mt models.Microtask) (models.TaskResult, error) {
	return f(ctx, mt)
}

// Registry maps microtask types to their executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates a registry with the built-in executors registered:
// transform, digest, and delay.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	r.Register("transform", &TransformExecutor{})
	r.Register("digest", &DigestExecutor{})
	r.Register("delay", &DelayExecutor{})
	return r
}

// Register adds an executor for a microtask type, replacing any previous
// registration.
func (r *Registry) Register(taskType string, ex Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[taskType] = ex
}

// Get returns the executor for a microtask type.
func (r *Registry) Get(taskType string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ex, ok := r.executors[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExecutor, taskType)
	}
	return ex, nil
}

// Types returns the registered microtask types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	return types
}

// TransformExecutor upper-cases the microtask payload. It stands in for
// CPU-light text processing work.
type TransformExecutor struct{}

// Execute implements Executor.
func (e *TransformExecutor) Execute(ctx context.Context, mt models.Microtask) (models.TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return models.TaskResult{}, err
	}
	return models.TaskResult{
		Success: true,
		Content: strings.ToUpper(mt.Payload),
	}, nil
}

// DigestExecutor hashes the microtask payload. It stands in for
// CPU-bound per-segment computation.
type DigestExecutor struct{}

// Execute implements Executor.
func (e *DigestExecutor) Execute(ctx context.Context, mt models.Microtask) (models.TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return models.TaskResult{}, err
	}
	sum := sha256.Sum256([]byte(mt.Payload))
	return models.TaskResult{
		Success: true,
		Content: hex.EncodeToString(sum[:]),
	}, nil
}

// DelayExecutor sleeps for the duration named in the payload (for example
// "250ms") and echoes the payload back. It exists to exercise timeout and
// cancellation paths.
type DelayExecutor struct{}

// Execute implements Executor.
func (e *DelayExecutor) Execute(ctx context.Context, mt models.Microtask) (models.TaskResult, error) {
	d, err := time.ParseDuration(strings.TrimSpace(mt.Payload))
	if err != nil {
		return models.TaskResult{}, fmt.Errorf("parse delay payload: %w", err)
	}

	select {
	case <-time.After(d):
		return models.TaskResult{Success: true, Content: mt.Payload}, nil
	case <-ctx.Done():
		return models.TaskResult{}, ctx.Err()
	}
}
