package engine

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/hive/pkg/models"
)

// MergePolicy decides the aggregate success of a run from its
// per-microtask outcomes.
type MergePolicy string

const (
	// PolicyAllSucceed reports success only when every microtask
	// succeeded. This is the default.
	PolicyAllSucceed MergePolicy = "all_succeed"
	// PolicyMajority reports success when strictly more than half of the
	// microtasks succeeded.
	PolicyMajority MergePolicy = "majority"
	// PolicyBestEffort reports success when at least one microtask
	// succeeded.
	PolicyBestEffort MergePolicy = "best_effort"
)

// Valid returns true if the policy is a known value.
func (p MergePolicy) Valid() bool {
	switch p {
	case PolicyAllSucceed, PolicyMajority, PolicyBestEffort:
		return true
	default:
		return false
	}
}

// Merger combines per-microtask outcomes into one aggregate result.
type Merger struct {
	policy MergePolicy
}

// NewMerger creates a Merger with the given policy. An invalid policy
// falls back to PolicyAllSucceed.
func NewMerger(policy MergePolicy) *Merger {
	if !policy.Valid() {
		policy = PolicyAllSucceed
	}
	return &Merger{policy: policy}
}

// Policy returns the merger's configured policy.
func (m *Merger) Policy() MergePolicy {
	return m.policy
}

// Merge combines all per-microtask results into one TaskResult. Content
// concatenates the successful contents in input order. Metadata always
// satisfies Succeeded + Failed == len(results). Merge never fails for
// non-empty input; an empty list is a contract violation upstream and
// returns ErrMerge.
func (m *Merger) Merge(results []models.TaskResult) (models.TaskResult, error) {
	if len(results) == 0 {
		return models.TaskResult{}, ErrMerge
	}

	var content strings.Builder
	var errs []string
	succeeded := 0
	var totalMS int64

	for _, r := range results {
		totalMS += r.Metadata.DurationMS
		if r.Success {
			succeeded++
			if content.Len() > 0 {
				content.WriteByte('\n')
			}
			content.WriteString(r.Content)
			continue
		}
		if r.Err != "" {
			errs = append(errs, r.Err)
		}
	}

	failed := len(results) - succeeded
	merged := models.TaskResult{
		Success: m.aggregateSuccess(succeeded, len(results)),
		Content: content.String(),
		Metadata: models.ResultMetadata{
			Succeeded:  succeeded,
			Failed:     failed,
			DurationMS: totalMS,
		},
	}
	if !merged.Success {
		merged.Err = fmt.Sprintf("%d of %d microtasks failed: %s",
			failed, len(results), strings.Join(errs, "; "))
	}
	return merged, nil
}

// aggregateSuccess applies the configured policy.
func (m *Merger) aggregateSuccess(succeeded, total int) bool {
	switch m.policy {
	case PolicyMajority:
		return succeeded*2 > total
	case PolicyBestEffort:
		return succeeded > 0
	default:
		return succeeded == total
	}
}
