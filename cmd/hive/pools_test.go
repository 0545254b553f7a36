package main

import (
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/ShayCichocki/hive/pkg/models"
)

func TestRenderPoolStats(t *testing.T) {
	color.NoColor = true

	stats := []models.PoolStats{
		{
			ID:                "transform-pool",
			Status:            models.PoolStatusActive,
			ActiveAgents:      4,
			Utilization:       25,
			ProcessedTasks:    100,
			FailedTasks:       3,
			AvgResponseTimeMS: 12.5,
		},
		{
			ID:           "digest-pool",
			Status:       models.PoolStatusScaling,
			ActiveAgents: 8,
		},
	}

	var buf strings.Builder
	renderPoolStats(&buf, stats)
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out)
	}
	for _, want := range []string{"transform-pool", "4 agents", "25% utilized", "100 ok / 3 failed", "12.5ms avg"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
	if !strings.Contains(lines[1], "scaling") || !strings.Contains(lines[1], "digest-pool") {
		t.Errorf("line %q missing scaling pool", lines[1])
	}
}

func TestRenderPoolStats_Empty(t *testing.T) {
	var buf strings.Builder
	renderPoolStats(&buf, nil)
	if !strings.Contains(buf.String(), "No pools configured") {
		t.Errorf("output = %q", buf.String())
	}
}
