package health

import (
	"testing"
	"time"

	"wansteer/internal/config"
	"wansteer/internal/model"
)

func testLinks() []config.LinkConfig {
	return []config.LinkConfig{
		{Name: "wan-primary", Interface: "eth0", Weight: 2.0},
		{Name: "wan-backup", Interface: "eth1", Weight: 1.0},
	}
}

func testFailover() config.FailoverConfig {
	return config.FailoverConfig{Enabled: true, FailoverThreshold: 3, RecoveryThreshold: 5}
}

// healthyMetrics scores well above 0.5, badMetrics well below it.
func healthyMetrics() model.LinkMetrics {
	return model.LinkMetrics{LatencyMs: 5, PacketLoss: 0, BandwidthMbps: 900, SampledAt: time.Now()}
}

func badMetrics() model.LinkMetrics {
	return model.LinkMetrics{LatencyMs: 500, PacketLoss: 0.9, BandwidthMbps: 1, SampledAt: time.Now()}
}

func TestAggregatorInitialState(t *testing.T) {
	agg := NewAggregator(testLinks(), testFailover(), 0.5)

	snap := agg.Snapshot()
	if len(snap.Links) != 2 {
		t.Fatalf("Expected 2 links in snapshot, but got %d", len(snap.Links))
	}
	for name, link := range snap.Links {
		if link.Status != model.StatusUp {
			t.Errorf("Expected link %q to start up, but got %v", name, link.Status)
		}
	}
}

func TestAggregatorFailoverAtThreshold(t *testing.T) {
	agg := NewAggregator(testLinks(), testFailover(), 0.5)

	// Two failures: degraded but still eligible.
	agg.Ingest("wan-primary", badMetrics())
	agg.Ingest("wan-primary", badMetrics())
	link := agg.Snapshot().Links["wan-primary"]
	if link.Status != model.StatusDegraded {
		t.Errorf("Expected degraded after 2 failures, but got %v", link.Status)
	}
	if !link.Status.Eligible() {
		t.Error("Degraded link must remain eligible")
	}

	// Third consecutive failure reaches the failover threshold.
	agg.Ingest("wan-primary", badMetrics())
	link = agg.Snapshot().Links["wan-primary"]
	if link.Status != model.StatusDown {
		t.Errorf("Expected down after 3 failures, but got %v", link.Status)
	}
	if link.ConsecutiveFailures != 3 {
		t.Errorf("Expected 3 consecutive failures, but got %d", link.ConsecutiveFailures)
	}
}

func TestAggregatorRecoveryAtThreshold(t *testing.T) {
	agg := NewAggregator(testLinks(), testFailover(), 0.5)

	for i := 0; i < 3; i++ {
		agg.Ingest("wan-primary", badMetrics())
	}

	// Four successes are not enough with a recovery threshold of 5.
	for i := 0; i < 4; i++ {
		agg.Ingest("wan-primary", healthyMetrics())
	}
	link := agg.Snapshot().Links["wan-primary"]
	if link.Status != model.StatusDown {
		t.Errorf("Expected link to stay down after 4 successes, but got %v", link.Status)
	}

	agg.Ingest("wan-primary", healthyMetrics())
	link = agg.Snapshot().Links["wan-primary"]
	if link.Status != model.StatusUp {
		t.Errorf("Expected link up after 5 successes, but got %v", link.Status)
	}
	if link.ConsecutiveFailures != 0 {
		t.Errorf("Expected failure counter reset, but got %d", link.ConsecutiveFailures)
	}
}

func TestAggregatorFailureResetsRecoveryProgress(t *testing.T) {
	agg := NewAggregator(testLinks(), testFailover(), 0.5)

	for i := 0; i < 3; i++ {
		agg.Ingest("wan-primary", badMetrics())
	}
	for i := 0; i < 4; i++ {
		agg.Ingest("wan-primary", healthyMetrics())
	}
	agg.Ingest("wan-primary", badMetrics())

	link := agg.Snapshot().Links["wan-primary"]
	if link.ConsecutiveSuccesses != 0 {
		t.Errorf("Expected success counter reset by a failure, but got %d", link.ConsecutiveSuccesses)
	}
	if link.Status != model.StatusDown {
		t.Errorf("Expected link still down, but got %v", link.Status)
	}
}

func TestAggregatorFailoverDisabled(t *testing.T) {
	failover := testFailover()
	failover.Enabled = false
	agg := NewAggregator(testLinks(), failover, 0.5)

	for i := 0; i < 10; i++ {
		agg.Ingest("wan-primary", badMetrics())
	}

	link := agg.Snapshot().Links["wan-primary"]
	if link.Status != model.StatusUp {
		t.Errorf("Expected transitions frozen with failover disabled, but got %v", link.Status)
	}
	if link.LastMetrics.LatencyMs != 500 {
		t.Error("Metrics should still be recorded with failover disabled")
	}
}

func TestAggregatorIngestSampleFanOut(t *testing.T) {
	links := []config.LinkConfig{
		{Name: "wan-a", Interface: "eth0"},
		{Name: "wan-b", Interface: "eth0"},
		{Name: "wan-c", Interface: "eth1"},
	}
	agg := NewAggregator(links, testFailover(), 0.5)

	agg.IngestSample("eth0", healthyMetrics())

	snap := agg.Snapshot()
	if snap.Links["wan-a"].LastMetrics.BandwidthMbps != 900 {
		t.Error("Expected sample applied to wan-a")
	}
	if snap.Links["wan-b"].LastMetrics.BandwidthMbps != 900 {
		t.Error("Expected sample applied to wan-b")
	}
	if snap.Links["wan-c"].LastMetrics.BandwidthMbps != 0 {
		t.Error("Expected wan-c untouched by an eth0 sample")
	}
}

func TestAggregatorIgnoresUnknownLink(t *testing.T) {
	agg := NewAggregator(testLinks(), testFailover(), 0.5)
	agg.Ingest("no-such-link", badMetrics())

	if len(agg.Snapshot().Links) != 2 {
		t.Error("Unknown link sample must not create a link")
	}
}

func TestAggregatorStaleness(t *testing.T) {
	agg := NewAggregator(testLinks(), testFailover(), 0.5)

	agg.MarkStale()
	if !agg.Snapshot().Stale {
		t.Error("Expected snapshot flagged stale")
	}

	agg.Ingest("wan-primary", healthyMetrics())
	if agg.Snapshot().Stale {
		t.Error("Expected a live sample to clear the stale flag")
	}
}

func TestAggregatorRestore(t *testing.T) {
	agg := NewAggregator(testLinks(), testFailover(), 0.5)

	saved := model.Snapshot{
		Links: map[string]model.LinkHealth{
			"wan-primary": {
				Name:                "wan-primary",
				Status:              model.StatusDown,
				ConsecutiveFailures: 3,
				LastMetrics:         badMetrics(),
			},
			"removed-link": {Name: "removed-link", Status: model.StatusDown},
		},
	}
	agg.Restore(saved)

	snap := agg.Snapshot()
	if !snap.Stale {
		t.Error("Restored data must be flagged stale until the first live sample")
	}
	if snap.Links["wan-primary"].Status != model.StatusDown {
		t.Errorf("Expected restored status down, but got %v", snap.Links["wan-primary"].Status)
	}
	if _, ok := snap.Links["removed-link"]; ok {
		t.Error("Links no longer configured must not be restored")
	}

	// Recovery continues from the restored counters.
	for i := 0; i < 5; i++ {
		agg.Ingest("wan-primary", healthyMetrics())
	}
	if agg.Snapshot().Links["wan-primary"].Status != model.StatusUp {
		t.Error("Expected restored link to recover through the normal state machine")
	}
}
