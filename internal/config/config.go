package config

import (
	"fmt"
	"os"
	"time"

	"wansteer/internal/model"

	"gopkg.in/yaml.v3"
)

// NATSConfig holds the connection details for the inter-process transport.
type NATSConfig struct {
	URL             string `yaml:"url"`
	SampleSubject   string `yaml:"sample_subject"`
	PacketSubject   string `yaml:"packet_subject"`
	ProbeSubject    string `yaml:"probe_subject"`
	MetricsSubject  string `yaml:"metrics_subject"`
	ScheduleSubject string `yaml:"schedule_subject"`
	StaleAfter      string `yaml:"stale_after"`
}

// InterfaceConfig describes one probed WAN interface.
type InterfaceConfig struct {
	Name                 string `yaml:"name"`
	Enabled              bool   `yaml:"enabled"`
	ProbeInterval        string `yaml:"probe_interval"`
	ICMPEnabled          bool   `yaml:"icmp_enabled"`
	UDPEnabled           bool   `yaml:"udp_enabled"`
	BandwidthTestEnabled bool   `yaml:"bandwidth_test_enabled"`
	// Probe targets. Target answers reachability probes, EchoTarget echoes
	// sequenced datagrams back, SinkTarget absorbs the throughput stream.
	Target     string `yaml:"target"`
	EchoTarget string `yaml:"echo_target"`
	SinkTarget string `yaml:"sink_target"`
}

// ProbeConfig holds the measurement parameters shared by all interfaces.
type ProbeConfig struct {
	ICMPTimeout           string `yaml:"icmp_timeout"`
	UDPTimeout            string `yaml:"udp_timeout"`
	BandwidthTestDuration string `yaml:"bandwidth_test_duration"`
	PacketSize            int    `yaml:"packet_size"`
	ProbeCount            int    `yaml:"probe_count"`
}

// UnderlayConfig configures the probe daemon.
type UnderlayConfig struct {
	ListenAddr string            `yaml:"listen_addr"`
	Interfaces []InterfaceConfig `yaml:"interfaces"`
	Probes     ProbeConfig       `yaml:"probes"`
}

// SchedulerConfig configures the scheduling daemon.
type SchedulerConfig struct {
	ListenAddr       string  `yaml:"listen_addr"`
	Algorithm        string  `yaml:"algorithm"`
	BatchSize        int     `yaml:"batch_size"`
	MaxQueueSize     int     `yaml:"max_queue_size"`
	HealthyThreshold float64 `yaml:"healthy_threshold"`
}

// PortRange matches destination ports in [Start, End].
type PortRange struct {
	Start uint16 `yaml:"start"`
	End   uint16 `yaml:"end"`
}

// MatchCriteria are the optional predicates of a QoS rule. A nil field
// matches any packet.
type MatchCriteria struct {
	SourceIP  *string    `yaml:"source_ip"`
	DestIP    *string    `yaml:"dest_ip"`
	Protocol  *string    `yaml:"protocol"`
	PortRange *PortRange `yaml:"port_range"`
	DSCP      *uint8     `yaml:"dscp"`
}

// QosAction is what a matched rule asks of the selector.
type QosAction struct {
	LinkPreference   []string `yaml:"link_preference"`
	BandwidthLimit   *uint64  `yaml:"bandwidth_limit"`
	LatencyThreshold *uint64  `yaml:"latency_threshold"`
}

// QosRule is one classification rule. Rules are evaluated in list order and
// the first match wins; the Priority field feeds the scheduled packet, it is
// not a re-sort key.
type QosRule struct {
	Name     string        `yaml:"name"`
	Priority uint8         `yaml:"priority"`
	Match    MatchCriteria `yaml:"match"`
	Action   QosAction     `yaml:"action"`
}

// QosConfig holds the rule list and the priority applied when no rule matches.
type QosConfig struct {
	DefaultPriority uint8     `yaml:"default_priority"`
	Rules           []QosRule `yaml:"rules"`
}

// LinkConfig holds the static attributes of one uplink.
type LinkConfig struct {
	Name          string  `yaml:"name"`
	Interface     string  `yaml:"interface"`
	Weight        float64 `yaml:"weight"`
	MaxBandwidth  uint64  `yaml:"max_bandwidth"`
	MinLatency    uint64  `yaml:"min_latency"`
	FailoverGroup string  `yaml:"failover_group"`
}

// FailoverConfig holds the hysteresis thresholds of the health state machine.
type FailoverConfig struct {
	Enabled             bool   `yaml:"enabled"`
	HealthCheckInterval string `yaml:"health_check_interval"`
	FailoverThreshold   uint64 `yaml:"failover_threshold"`
	RecoveryThreshold   uint64 `yaml:"recovery_threshold"`
}

// ClickHouseConfig holds the connection details for the history store.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RecorderConfig configures the metrics history daemon.
type RecorderConfig struct {
	ListenAddr    string           `yaml:"listen_addr"`
	ClickHouse    ClickHouseConfig `yaml:"clickhouse"`
	FlushInterval string           `yaml:"flush_interval"`
	BatchSize     int              `yaml:"batch_size"`
}

// AlerterConfig enables link-status change notifications.
type AlerterConfig struct {
	Enabled       bool   `yaml:"enabled"`
	CheckInterval string `yaml:"check_interval"`
}

// SMTPConfig holds the mail relay used by the alerter.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Config is the top-level configuration struct shared by all binaries.
type Config struct {
	NATS      NATSConfig      `yaml:"nats"`
	Underlay  UnderlayConfig  `yaml:"underlay"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Qos       QosConfig       `yaml:"qos"`
	Links     []LinkConfig    `yaml:"links"`
	Failover  FailoverConfig  `yaml:"failover"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Alerter   AlerterConfig   `yaml:"alerter"`
	SMTP      SMTPConfig      `yaml:"smtp"`
}

// LoadConfig reads the configuration from a YAML file, applies defaults and
// validates it. Validation failures are fatal to the caller by contract.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://127.0.0.1:4222"
	}
	if c.NATS.SampleSubject == "" {
		c.NATS.SampleSubject = "wansteer.metrics.sample"
	}
	if c.NATS.PacketSubject == "" {
		c.NATS.PacketSubject = "wansteer.packets.in"
	}
	if c.NATS.ProbeSubject == "" {
		c.NATS.ProbeSubject = "wansteer.probe.request"
	}
	if c.NATS.MetricsSubject == "" {
		c.NATS.MetricsSubject = "wansteer.metrics.request"
	}
	if c.NATS.ScheduleSubject == "" {
		c.NATS.ScheduleSubject = "wansteer.packets.schedule"
	}
	if c.NATS.StaleAfter == "" {
		c.NATS.StaleAfter = "15s"
	}
	if c.Scheduler.BatchSize <= 0 {
		c.Scheduler.BatchSize = 64
	}
	if c.Scheduler.MaxQueueSize <= 0 {
		c.Scheduler.MaxQueueSize = 10000
	}
	if c.Scheduler.HealthyThreshold == 0 {
		c.Scheduler.HealthyThreshold = 0.5
	}
	if c.Qos.DefaultPriority == 0 {
		c.Qos.DefaultPriority = 5
	}
	if c.Underlay.Probes.ProbeCount <= 0 {
		c.Underlay.Probes.ProbeCount = 10
	}
	if c.Underlay.Probes.PacketSize <= 0 {
		c.Underlay.Probes.PacketSize = 1500
	}
	if c.Failover.FailoverThreshold == 0 {
		c.Failover.FailoverThreshold = 3
	}
	if c.Failover.RecoveryThreshold == 0 {
		c.Failover.RecoveryThreshold = 5
	}
	if c.Recorder.BatchSize <= 0 {
		c.Recorder.BatchSize = 256
	}
}

// Validate checks cross-field consistency. It does not check the algorithm
// name against the selector registry; that happens at selector construction
// so registration order cannot bite.
func (c *Config) Validate() error {
	if c.Scheduler.Algorithm == "" {
		return fmt.Errorf("%w: scheduler.algorithm must be set", model.ErrInvalidConfig)
	}
	if c.Scheduler.HealthyThreshold <= 0 || c.Scheduler.HealthyThreshold > 1 {
		return fmt.Errorf("%w: scheduler.healthy_threshold must be in (0,1], got %v",
			model.ErrInvalidConfig, c.Scheduler.HealthyThreshold)
	}
	if c.Qos.DefaultPriority > 7 {
		return fmt.Errorf("%w: qos.default_priority must be 0-7, got %d",
			model.ErrInvalidConfig, c.Qos.DefaultPriority)
	}

	seen := make(map[string]bool, len(c.Links))
	for _, link := range c.Links {
		if link.Name == "" {
			return fmt.Errorf("%w: link with empty name", model.ErrInvalidConfig)
		}
		if seen[link.Name] {
			return fmt.Errorf("%w: duplicate link name %q", model.ErrInvalidConfig, link.Name)
		}
		seen[link.Name] = true
		if link.Weight < 0 {
			return fmt.Errorf("%w: link %q has negative weight", model.ErrInvalidConfig, link.Name)
		}
	}

	for _, rule := range c.Qos.Rules {
		if rule.Name == "" {
			return fmt.Errorf("%w: qos rule with empty name", model.ErrInvalidConfig)
		}
		if rule.Priority > 7 {
			return fmt.Errorf("%w: qos rule %q priority must be 0-7, got %d",
				model.ErrInvalidConfig, rule.Name, rule.Priority)
		}
		if pr := rule.Match.PortRange; pr != nil && pr.Start > pr.End {
			return fmt.Errorf("%w: qos rule %q has inverted port range %d-%d",
				model.ErrInvalidConfig, rule.Name, pr.Start, pr.End)
		}
		for _, name := range rule.Action.LinkPreference {
			if !seen[name] {
				return fmt.Errorf("%w: qos rule %q prefers unknown link %q",
					model.ErrInvalidConfig, rule.Name, name)
			}
		}
	}

	for _, iface := range c.Underlay.Interfaces {
		if iface.Name == "" {
			return fmt.Errorf("%w: interface with empty name", model.ErrInvalidConfig)
		}
		if iface.Enabled {
			if _, err := parseDuration(iface.ProbeInterval, "probe_interval"); err != nil {
				return err
			}
		}
	}

	if c.Alerter.Enabled {
		if _, err := parseDuration(c.Alerter.CheckInterval, "alerter.check_interval"); err != nil {
			return err
		}
	}

	durations := []struct {
		value, field string
	}{
		{c.NATS.StaleAfter, "nats.stale_after"},
		{c.Failover.HealthCheckInterval, "failover.health_check_interval"},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if _, err := parseDuration(d.value, d.field); err != nil {
			return err
		}
	}

	return nil
}

func parseDuration(value, field string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", model.ErrInvalidConfig, field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive duration", model.ErrInvalidConfig, field)
	}
	return d, nil
}

// Duration parses a duration config string that has already passed Validate.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
