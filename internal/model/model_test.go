package model

import (
	"math"
	"testing"
)

func TestHealthScore(t *testing.T) {
	testCases := []struct {
		name     string
		metrics  LinkMetrics
		expected float64
	}{
		{
			name:     "perfect link",
			metrics:  LinkMetrics{LatencyMs: 0, PacketLoss: 0, BandwidthMbps: 1000},
			expected: 1.0,
		},
		{
			name:     "dead link",
			metrics:  LinkMetrics{LatencyMs: 0, PacketLoss: 1, BandwidthMbps: 0},
			expected: (1.0 + 0.0 + 0.0) / 3.0,
		},
		{
			name:     "typical link",
			metrics:  LinkMetrics{LatencyMs: 9, PacketLoss: 0.1, BandwidthMbps: 500},
			expected: (0.1 + 0.5 + 0.9) / 3.0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.metrics.HealthScore()
			if math.Abs(got-tc.expected) > 1e-9 {
				t.Errorf("Expected score %v, but got %v", tc.expected, got)
			}
		})
	}
}

func TestHealthScoreBandwidthCap(t *testing.T) {
	fast := LinkMetrics{LatencyMs: 10, BandwidthMbps: 1000}
	faster := LinkMetrics{LatencyMs: 10, BandwidthMbps: 10000}

	if fast.HealthScore() != faster.HealthScore() {
		t.Errorf("Bandwidth above the reference should not raise the score: %v vs %v",
			fast.HealthScore(), faster.HealthScore())
	}
}

func TestHealthScoreBounds(t *testing.T) {
	samples := []LinkMetrics{
		{},
		{LatencyMs: 1e6, PacketLoss: 1},
		{BandwidthMbps: 1e9},
		{LatencyMs: 5, JitterMs: 2, PacketLoss: 0.02, BandwidthMbps: 800},
	}
	for _, m := range samples {
		score := m.HealthScore()
		if score < 0 || score > 1 {
			t.Errorf("Score %v out of [0,1] for %+v", score, m)
		}
	}
}

func TestIsHealthy(t *testing.T) {
	m := LinkMetrics{LatencyMs: 9, PacketLoss: 0.1, BandwidthMbps: 500}
	// score = 0.5 exactly; the threshold comparison is inclusive.
	if !m.IsHealthy(0.5) {
		t.Error("Expected a sample at the threshold to be healthy")
	}
	if m.IsHealthy(0.51) {
		t.Error("Expected a sample below the threshold to be unhealthy")
	}
}

func TestLinkStatusEligible(t *testing.T) {
	if !StatusUp.Eligible() {
		t.Error("Up links must be eligible")
	}
	if !StatusDegraded.Eligible() {
		t.Error("Degraded links must remain eligible")
	}
	if StatusDown.Eligible() {
		t.Error("Down links must not be eligible")
	}
}

func TestLinkStatusString(t *testing.T) {
	testCases := map[LinkStatus]string{
		StatusUp:       "up",
		StatusDegraded: "degraded",
		StatusDown:     "down",
		LinkStatus(99): "unknown",
	}
	for status, expected := range testCases {
		if got := status.String(); got != expected {
			t.Errorf("Expected %q, but got %q", expected, got)
		}
	}
}
