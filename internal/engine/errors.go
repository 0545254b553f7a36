package engine

import "errors"

// Sentinel errors for the orchestration engine. Per-microtask errors
// (ErrUnassignable, ErrUnknownAgent, ErrUnknownExecutor) are converted into
// failed TaskResults during a run; the rest abort the operation that
// raised them.
var (
	// ErrDecomposition indicates a task could not be split into microtasks.
	ErrDecomposition = errors.New("task cannot be decomposed")

	// ErrUnassignable indicates no capable worker exists for a microtask.
	ErrUnassignable = errors.New("no capable worker for microtask")

	// ErrUnknownAgent indicates an execute call referenced an agent id
	// that no pool owns.
	ErrUnknownAgent = errors.New("unknown agent id")

	// ErrUnknownPool indicates a pool id that the manager does not own.
	ErrUnknownPool = errors.New("unknown pool id")

	// ErrUnknownExecutor indicates no executor is registered for a
	// microtask type.
	ErrUnknownExecutor = errors.New("unknown executor type")

	// ErrScaleOutOfBounds indicates a scale request outside the pool's
	// declared min/max bounds.
	ErrScaleOutOfBounds = errors.New("requested size outside pool bounds")

	// ErrMerge indicates merge was handed an empty result list.
	ErrMerge = errors.New("merge requires at least one result")

	// ErrEngineStopped indicates the orchestrator has been stopped.
	ErrEngineStopped = errors.New("orchestrator has been stopped")
)
