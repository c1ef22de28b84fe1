package model

import (
	"math"
	"time"
)

// ReferenceBandwidthMbps normalizes the bandwidth term of the health score.
// A link faster than this gains no extra credit.
const ReferenceBandwidthMbps = 1000.0

// LinkMetrics is one measurement sample for a single uplink. Samples are
// immutable once produced; a new probe cycle supersedes the previous sample
// instead of mutating it.
type LinkMetrics struct {
	LatencyMs     float64   `json:"latency_ms"`
	JitterMs      float64   `json:"jitter_ms"`
	PacketLoss    float64   `json:"packet_loss"`
	BandwidthMbps float64   `json:"bandwidth_mbps"`
	SampledAt     time.Time `json:"sampled_at"`
}

// HealthScore folds latency, bandwidth and loss into a [0,1] fitness value.
// The latency penalty is unbounded while the bandwidth bonus is capped at
// the reference bandwidth, so a saturated-but-fast link cannot mask load.
func (m LinkMetrics) HealthScore() float64 {
	latencyScore := 1.0 / (1.0 + m.LatencyMs)
	bandwidthScore := math.Min(m.BandwidthMbps/ReferenceBandwidthMbps, 1.0)
	lossScore := 1.0 - m.PacketLoss

	return (latencyScore + bandwidthScore + lossScore) / 3.0
}

// IsHealthy reports whether the sample clears the configured health threshold.
func (m LinkMetrics) IsHealthy(threshold float64) bool {
	return m.HealthScore() >= threshold
}

// LinkStatus is the failover state of a link. Transitions happen only through
// the aggregator's state machine, never by direct assignment.
type LinkStatus int

const (
	StatusUp LinkStatus = iota
	StatusDegraded
	StatusDown
)

func (s LinkStatus) String() string {
	switch s {
	case StatusUp:
		return "up"
	case StatusDegraded:
		return "degraded"
	case StatusDown:
		return "down"
	default:
		return "unknown"
	}
}

// Eligible reports whether a link in this status may carry traffic.
// Degraded links are still usable; only Down links are excluded.
func (s LinkStatus) Eligible() bool {
	return s != StatusDown
}

// LinkHealth is the read-only view of one link inside a snapshot: static
// attributes from configuration plus the dynamic state derived from probing.
type LinkHealth struct {
	Name                 string      `json:"name"`
	Interface            string      `json:"interface"`
	Weight               float64     `json:"weight"`
	MaxBandwidth         uint64      `json:"max_bandwidth"`
	MinLatency           uint64      `json:"min_latency"`
	FailoverGroup        string      `json:"failover_group,omitempty"`
	Status               LinkStatus  `json:"status"`
	ConsecutiveFailures  uint64      `json:"consecutive_failures"`
	ConsecutiveSuccesses uint64      `json:"consecutive_successes"`
	LastMetrics          LinkMetrics `json:"last_metrics"`
}

// Snapshot is a consistent point-in-time copy of all links' health. It is
// published wholesale by the aggregator; readers never observe a link
// mid-update. Stale is set when the sample stream has gone quiet and the
// snapshot reflects last-known data.
type Snapshot struct {
	Links   map[string]LinkHealth `json:"links"`
	TakenAt time.Time             `json:"taken_at"`
	Stale   bool                  `json:"stale"`
}

// Packet carries the attributes the classifier and selector need. Optional
// attributes are pointers; nil means the packet does not carry that field.
type Packet struct {
	ID         uint64    `json:"id"`
	Data       []byte    `json:"data,omitempty"`
	Priority   uint8     `json:"priority"`
	SourceIP   string    `json:"source_ip"`
	DestIP     string    `json:"dest_ip"`
	Protocol   string    `json:"protocol"`
	SourcePort *uint16   `json:"source_port,omitempty"`
	DestPort   *uint16   `json:"dest_port,omitempty"`
	DSCP       *uint8    `json:"dscp,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ScheduledPacket is the pipeline's output: one per admitted packet.
// Sequence numbers are strictly increasing and never reused within the
// lifetime of one scheduler instance. Wraparound of the 64-bit counter is
// not handled; a process will not issue 2^64 packets.
type ScheduledPacket struct {
	PacketID       uint64 `json:"packet_id"`
	LinkName       string `json:"link_name"`
	SequenceNumber uint64 `json:"sequence_number"`
	Priority       uint8  `json:"priority"`
}
