package models

import (
	"encoding/json"
	"testing"
)

func TestComplexity_Valid(t *testing.T) {
	tests := []struct {
		name       string
		complexity Complexity
		want       bool
	}{
		{"low is valid", ComplexityLow, true},
		{"medium is valid", ComplexityMedium, true},
		{"high is valid", ComplexityHigh, true},
		{"empty string is invalid", Complexity(""), false},
		{"unknown value is invalid", Complexity("extreme"), false},
		{"uppercase is invalid", Complexity("HIGH"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.complexity.Valid(); got != tt.want {
				t.Errorf("Complexity(%q).Valid() = %v, want %v", tt.complexity, got, tt.want)
			}
		})
	}
}

func TestTaskResult_JSONFieldNames(t *testing.T) {
	// The metrics surface depends on these exact field names.
	result := TaskResult{
		Success: true,
		Content: "done",
		Metadata: ResultMetadata{
			Succeeded:  3,
			Failed:     1,
			DurationMS: 250,
		},
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal TaskResult: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal TaskResult: %v", err)
	}

	meta, ok := raw["metadata"].(map[string]any)
	if !ok {
		t.Fatal("metadata field missing or wrong shape")
	}
	for _, key := range []string{"succeeded", "failed", "duration_ms"} {
		if _, ok := meta[key]; !ok {
			t.Errorf("metadata missing key %q", key)
		}
	}
}

func TestMicrotask_ParentLink(t *testing.T) {
	mt := Microtask{
		ID:           "mt-1",
		Type:         "analysis",
		ParentTaskID: "task-9",
	}

	if mt.ParentTaskID != "task-9" {
		t.Errorf("ParentTaskID = %q, want %q", mt.ParentTaskID, "task-9")
	}
}
