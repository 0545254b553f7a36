package engine

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ShayCichocki/hive/pkg/models"
)

// fanoutForComplexity maps a task's complexity to the number of microtasks
// the decomposer targets. The count is capped by payload length so every
// microtask carries a non-empty segment.
var fanoutForComplexity = map[models.Complexity]int{
	models.ComplexityLow:    2,
	models.ComplexityMedium: 6,
	models.ComplexityHigh:   12,
}

// Decomposer splits an incoming task into independently executable
// microtasks. Decomposition is deterministic: the same task always yields
// the same microtask list, IDs included, so retries are reproducible.
type Decomposer struct{}

// NewDecomposer creates a Decomposer.
func NewDecomposer() *Decomposer {
	return &Decomposer{}
}

// Decompose splits a task into an ordered list of microtasks. Every
// microtask carries ParentTaskID = task.ID. A task with an empty payload
// or unknown complexity fails fast with ErrDecomposition; Decompose never
// returns an empty list without an error.
func (d *Decomposer) Decompose(task models.Task) ([]models.Microtask, error) {
	if strings.TrimSpace(task.Payload) == "" {
		return nil, fmt.Errorf("%w: task %s has an empty payload", ErrDecomposition, task.ID)
	}
	if task.Type == "" {
		return nil, fmt.Errorf("%w: task %s has no type", ErrDecomposition, task.ID)
	}

	fanout, ok := fanoutForComplexity[task.Complexity]
	if !ok {
		return nil, fmt.Errorf("%w: task %s has unknown complexity %q", ErrDecomposition, task.ID, task.Complexity)
	}

	segments := splitPayload(task.Payload, fanout)
	microtasks := make([]models.Microtask, len(segments))
	for i, segment := range segments {
		microtasks[i] = models.Microtask{
			ID:           microtaskID(task.ID, i),
			Type:         task.Type,
			Priority:     i,
			ParentTaskID: task.ID,
			Payload:      segment,
		}
	}

	debugLog("[decomposer] task %s (%s/%s) -> %d microtasks", task.ID, task.Type, task.Complexity, len(microtasks))
	return microtasks, nil
}

// microtaskID derives a stable UUID from the parent task ID and ordinal,
// so repeated decompositions of the same task produce identical IDs.
func microtaskID(taskID string, ordinal int) string {
	name := fmt.Sprintf("hive:%s:%d", taskID, ordinal)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// splitPayload divides the payload into at most n contiguous rune
// segments of near-equal length. When the payload is shorter than n, the
// segment count shrinks so no segment is empty; at least one segment is
// always produced.
func splitPayload(payload string, n int) []string {
	runes := []rune(payload)
	if n > len(runes) {
		n = len(runes)
	}
	if n < 1 {
		n = 1
	}

	segments := make([]string, 0, n)
	base := len(runes) / n
	extra := len(runes) % n

	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		segments = append(segments, string(runes[start:start+size]))
		start += size
	}
	return segments
}
