package probe

import (
	"context"
	"sync"
	"testing"
	"time"

	"wansteer/internal/config"
	"wansteer/internal/model"
)

// recordingSink captures published samples in memory.
type recordingSink struct {
	mu      sync.Mutex
	samples map[string][]model.LinkMetrics
}

func newRecordingSink() *recordingSink {
	return &recordingSink{samples: make(map[string][]model.LinkMetrics)}
}

func (s *recordingSink) PublishSample(interfaceName string, metrics model.LinkMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[interfaceName] = append(s.samples[interfaceName], metrics)
	return nil
}

func (s *recordingSink) count(interfaceName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples[interfaceName])
}

func TestEnginePublishesSamples(t *testing.T) {
	target := startTCPAccepter(t)
	cfg := config.UnderlayConfig{
		Interfaces: []config.InterfaceConfig{
			{Name: "eth0", Enabled: true, ProbeInterval: "50ms", ICMPEnabled: true, Target: target},
			{Name: "eth1", Enabled: false, ProbeInterval: "50ms", ICMPEnabled: true, Target: target},
		},
		Probes: config.ProbeConfig{ICMPTimeout: "1s"},
	}

	sink := newRecordingSink()
	engine := NewEngine(cfg, sink)
	engine.Start()

	// The first cycle runs immediately, then once per tick.
	deadline := time.After(2 * time.Second)
	for sink.count("eth0") < 2 {
		select {
		case <-deadline:
			t.Fatalf("Timed out waiting for samples, got %d", sink.count("eth0"))
		case <-time.After(10 * time.Millisecond):
		}
	}
	engine.Stop()

	if sink.count("eth1") != 0 {
		t.Errorf("Expected no samples from a disabled interface, but got %d", sink.count("eth1"))
	}

	latest := engine.Latest()
	if _, ok := latest["eth0"]; !ok {
		t.Error("Expected a latest sample for eth0")
	}
	if latest["eth0"].LatencyMs <= 0 {
		t.Errorf("Expected positive latency, but got %v", latest["eth0"].LatencyMs)
	}
}

func TestEngineProbeNow(t *testing.T) {
	target := startTCPAccepter(t)
	cfg := config.UnderlayConfig{
		Interfaces: []config.InterfaceConfig{
			{Name: "eth0", Enabled: true, ICMPEnabled: true, Target: target},
		},
		Probes: config.ProbeConfig{ICMPTimeout: "1s"},
	}

	engine := NewEngine(cfg, newRecordingSink())

	metrics, err := engine.ProbeNow(context.Background(), "eth0")
	if err != nil {
		t.Fatalf("On-demand probe failed: %v", err)
	}
	if metrics.LatencyMs <= 0 {
		t.Errorf("Expected positive latency, but got %v", metrics.LatencyMs)
	}

	if _, err := engine.ProbeNow(context.Background(), "eth7"); err == nil {
		t.Error("Expected an error for an unknown interface")
	}
}
