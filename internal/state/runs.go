package state

import (
	"fmt"
	"time"
)

// RunRecord is one persisted orchestration run.
type RunRecord struct {
	// ID is the run's unique identifier (ULID).
	ID string `json:"id"`
	// TaskID is the submitted task's identifier.
	TaskID string `json:"task_id"`
	// TaskType is the submitted task's capability type.
	TaskType string `json:"task_type"`
	// Complexity is the submitted task's complexity.
	Complexity string `json:"complexity"`
	// Success is the merged aggregate outcome.
	Success bool `json:"success"`
	// Succeeded is the number of successful microtasks.
	Succeeded int `json:"succeeded"`
	// Failed is the number of failed microtasks.
	Failed int `json:"failed"`
	// DurationMS is the whole run's elapsed time in milliseconds.
	DurationMS int64 `json:"duration_ms"`
	// CreatedAt is when the run completed.
	CreatedAt time.Time `json:"created_at"`
}

// ScalingEvent is one persisted pool resize.
type ScalingEvent struct {
	// PoolID is the resized pool.
	PoolID string `json:"pool_id"`
	// FromSize is the worker count before the resize.
	FromSize int `json:"from_size"`
	// ToSize is the worker count after the resize.
	ToSize int `json:"to_size"`
	// CreatedAt is when the resize completed.
	CreatedAt time.Time `json:"created_at"`
}

// Totals aggregates run history for the status surface.
type Totals struct {
	// Runs is the total persisted run count.
	Runs int `json:"runs"`
	// Succeeded is the number of runs whose merged result succeeded.
	Succeeded int `json:"succeeded"`
	// Failed is the number of runs whose merged result failed.
	Failed int `json:"failed"`
}

// RecordRun persists one completed run.
func (db *DB) RecordRun(rec RunRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := db.conn.Exec(`
		INSERT INTO runs (id, task_id, task_type, complexity, success, succeeded, failed, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TaskID, rec.TaskType, rec.Complexity,
		boolToInt(rec.Success), rec.Succeeded, rec.Failed, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (db *DB) RecentRuns(limit int) ([]RunRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, task_id, task_type, complexity, success, succeeded, failed, duration_ms, created_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var success int
		if err := rows.Scan(&rec.ID, &rec.TaskID, &rec.TaskType, &rec.Complexity,
			&success, &rec.Succeeded, &rec.Failed, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		rec.Success = success != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RunTotals returns aggregate counts over all persisted runs.
func (db *DB) RunTotals() (Totals, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var t Totals
	err := db.conn.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(success), 0),
		       COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
		FROM runs`).Scan(&t.Runs, &t.Succeeded, &t.Failed)
	if err != nil {
		return Totals{}, fmt.Errorf("query run totals: %w", err)
	}
	return t, nil
}

// RecordScaling persists one pool resize.
func (db *DB) RecordScaling(ev ScalingEvent) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := db.conn.Exec(`
		INSERT INTO scaling_events (pool_id, from_size, to_size, created_at)
		VALUES (?, ?, ?, ?)`,
		ev.PoolID, ev.FromSize, ev.ToSize, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scaling event for pool %s: %w", ev.PoolID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
