package health

import (
	"path/filepath"
	"testing"
	"time"

	"wansteer/internal/model"
)

func TestSaveAndLoadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "health.gob")

	snap := model.Snapshot{
		Links: map[string]model.LinkHealth{
			"wan-primary": {
				Name:                "wan-primary",
				Status:              model.StatusDown,
				ConsecutiveFailures: 3,
				LastMetrics:         model.LinkMetrics{LatencyMs: 42, SampledAt: time.Now()},
			},
		},
		TakenAt: time.Now(),
	}

	if err := SaveSnapshot(snap, path); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	loaded, ok, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if !ok {
		t.Fatal("Expected snapshot to be found")
	}

	link, exists := loaded.Links["wan-primary"]
	if !exists {
		t.Fatal("Expected wan-primary in the loaded snapshot")
	}
	if link.Status != model.StatusDown {
		t.Errorf("Expected status down, but got %v", link.Status)
	}
	if link.ConsecutiveFailures != 3 {
		t.Errorf("Expected 3 consecutive failures, but got %d", link.ConsecutiveFailures)
	}
	if link.LastMetrics.LatencyMs != 42 {
		t.Errorf("Expected latency 42, but got %v", link.LastMetrics.LatencyMs)
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	_, ok, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.gob"))
	if err != nil {
		t.Fatalf("A missing snapshot file must not be an error, got: %v", err)
	}
	if ok {
		t.Error("Expected ok=false for a missing snapshot file")
	}
}
