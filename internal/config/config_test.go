package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"wansteer/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

const validConfig = `
scheduler:
  algorithm: "weighted_round_robin"
  healthy_threshold: 0.5
qos:
  rules:
    - name: "voip"
      priority: 7
      match:
        protocol: "UDP"
        port_range:
          start: 10000
          end: 20000
      action:
        link_preference: ["wan-primary"]
links:
  - name: "wan-primary"
    interface: "eth0"
    weight: 2.0
  - name: "wan-backup"
    interface: "eth1"
    weight: 1.0
failover:
  enabled: true
  failover_threshold: 3
  recovery_threshold: 5
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Scheduler.Algorithm != "weighted_round_robin" {
		t.Errorf("Expected weighted_round_robin, but got %q", cfg.Scheduler.Algorithm)
	}
	if len(cfg.Links) != 2 {
		t.Errorf("Expected 2 links, but got %d", len(cfg.Links))
	}
	if pr := cfg.Qos.Rules[0].Match.PortRange; pr == nil || pr.Start != 10000 || pr.End != 20000 {
		t.Errorf("Expected port range 10000-20000, but got %v", pr)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.NATS.URL != "nats://127.0.0.1:4222" {
		t.Errorf("Expected default NATS URL, but got %q", cfg.NATS.URL)
	}
	if cfg.Qos.DefaultPriority != 5 {
		t.Errorf("Expected default priority 5, but got %d", cfg.Qos.DefaultPriority)
	}
	if cfg.Scheduler.MaxQueueSize != 10000 {
		t.Errorf("Expected default max queue size 10000, but got %d", cfg.Scheduler.MaxQueueSize)
	}
	if cfg.Underlay.Probes.ProbeCount != 10 {
		t.Errorf("Expected default probe count 10, but got %d", cfg.Underlay.Probes.ProbeCount)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}

func TestValidateFailures(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{
			name: "missing algorithm",
			content: `
scheduler:
  healthy_threshold: 0.5
`,
		},
		{
			name: "threshold out of range",
			content: `
scheduler:
  algorithm: "weighted_round_robin"
  healthy_threshold: 1.5
`,
		},
		{
			name: "duplicate link names",
			content: `
scheduler:
  algorithm: "weighted_round_robin"
links:
  - name: "wan-a"
  - name: "wan-a"
`,
		},
		{
			name: "negative link weight",
			content: `
scheduler:
  algorithm: "weighted_round_robin"
links:
  - name: "wan-a"
    weight: -1.0
`,
		},
		{
			name: "rule priority above 7",
			content: `
scheduler:
  algorithm: "weighted_round_robin"
qos:
  rules:
    - name: "broken"
      priority: 8
`,
		},
		{
			name: "inverted port range",
			content: `
scheduler:
  algorithm: "weighted_round_robin"
qos:
  rules:
    - name: "broken"
      match:
        port_range:
          start: 2000
          end: 1000
`,
		},
		{
			name: "preference to unknown link",
			content: `
scheduler:
  algorithm: "weighted_round_robin"
links:
  - name: "wan-a"
qos:
  rules:
    - name: "broken"
      action:
        link_preference: ["wan-ghost"]
`,
		},
		{
			name: "bad probe interval",
			content: `
scheduler:
  algorithm: "weighted_round_robin"
underlay:
  interfaces:
    - name: "eth0"
      enabled: true
      probe_interval: "soon"
`,
		},
		{
			name: "bad stale_after duration",
			content: `
scheduler:
  algorithm: "weighted_round_robin"
nats:
  stale_after: "-5s"
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			if !errors.Is(err, model.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, but got %v", err)
			}
		})
	}
}

func TestDurationHelper(t *testing.T) {
	if got := Duration("250ms", 0); got.Milliseconds() != 250 {
		t.Errorf("Expected 250ms, but got %v", got)
	}
	if got := Duration("", 5); got != 5 {
		t.Errorf("Expected fallback for empty string, but got %v", got)
	}
	if got := Duration("garbage", 7); got != 7 {
		t.Errorf("Expected fallback for unparsable string, but got %v", got)
	}
}
