package engine

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/hive/pkg/models"
)

// WorkerView is a point-in-time view of one worker used for assignment
// decisions. The balancer never touches live worker state.
type WorkerView struct {
	// ID is the worker's identifier.
	ID string
	// PoolID is the owning pool.
	PoolID string
	// Specializations are the capability tags the worker carries.
	Specializations []string
	// Load is the worker's in-flight microtask count at snapshot time.
	Load int
}

// canHandle reports whether the view's specializations cover a type.
func (v WorkerView) canHandle(taskType string) bool {
	for _, s := range v.Specializations {
		if s == taskType {
			return true
		}
	}
	return false
}

// PoolSnapshot captures the assignable worker population across all pools
// at the start of a run.
type PoolSnapshot struct {
	// Workers lists every active worker.
	Workers []WorkerView
}

// LoadBalancer produces one assignment per microtask, routing each to the
// least-loaded capable worker.
type LoadBalancer struct{}

// NewLoadBalancer creates a LoadBalancer.
func NewLoadBalancer() *LoadBalancer {
	return &LoadBalancer{}
}

// Assign pairs every microtask with a capable, least-loaded worker.
// Coverage is total: len(assignments) == len(microtasks), always. A
// microtask with no capable worker in any pool is returned with
// Unassignable set rather than dropped; the orchestrator surfaces it as a
// failed result during merge.
//
// Selection is deterministic: lowest load wins, ties broken by pool ID
// then worker ID. Load accounts for assignments made earlier in the same
// call, so a wide fan-out spreads across the capable workers instead of
// piling onto one.
func (b *LoadBalancer) Assign(microtasks []models.Microtask, snap PoolSnapshot) []models.Assignment {
	// Work on a copy so per-call load accounting never leaks out.
	views := make([]WorkerView, len(snap.Workers))
	copy(views, snap.Workers)

	sort.Slice(views, func(i, j int) bool {
		if views[i].PoolID != views[j].PoolID {
			return views[i].PoolID < views[j].PoolID
		}
		return views[i].ID < views[j].ID
	})

	assignments := make([]models.Assignment, 0, len(microtasks))
	for _, mt := range microtasks {
		idx := -1
		for i, v := range views {
			if !v.canHandle(mt.Type) {
				continue
			}
			// Views are pre-sorted by pool then worker ID, so the first
			// worker seen at a given load level is the deterministic winner.
			if idx == -1 || v.Load < views[idx].Load {
				idx = i
			}
		}

		if idx == -1 {
			debugLog("[balancer] microtask %s (%s) unassignable: no capable worker", mt.ID, mt.Type)
			assignments = append(assignments, models.Assignment{
				Microtask:    mt,
				Unassignable: true,
				Reason:       fmt.Sprintf("no worker with specialization %q", mt.Type),
			})
			continue
		}

		views[idx].Load++
		assignments = append(assignments, models.Assignment{
			Microtask: mt,
			AgentID:   views[idx].ID,
		})
	}

	return assignments
}
