package probe

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"net"
	"time"

	"wansteer/internal/config"
	"wansteer/internal/model"
	"wansteer/internal/telemetry"
)

// Prober runs the three measurements that make up one probe cycle for an
// interface. Each measurement is independently bounded by a timeout and a
// failed measurement never aborts the cycle; the caller folds failures over
// the previous sample.
type Prober struct {
	cfg config.ProbeConfig

	icmpTimeout  time.Duration
	udpTimeout   time.Duration
	testDuration time.Duration
}

// NewProber builds a prober from the shared measurement parameters.
func NewProber(cfg config.ProbeConfig) *Prober {
	return &Prober{
		cfg:          cfg,
		icmpTimeout:  config.Duration(cfg.ICMPTimeout, time.Second),
		udpTimeout:   config.Duration(cfg.UDPTimeout, 2*time.Second),
		testDuration: config.Duration(cfg.BandwidthTestDuration, 3*time.Second),
	}
}

// MeasureReachability sends a lightweight connection probe to the interface's
// reachability target and reports the round-trip latency in milliseconds.
// On timeout the measurement fails with ErrProbeTimeout and the caller keeps
// the prior value.
func (p *Prober) MeasureReachability(ctx context.Context, iface config.InterfaceConfig) (float64, error) {
	dialer := net.Dialer{Timeout: p.icmpTimeout}
	start := time.Now()

	conn, err := dialer.DialContext(ctx, "tcp", iface.Target)
	if err != nil {
		return 0, fmt.Errorf("%w: reachability probe to %s: %v", model.ErrProbeTimeout, iface.Target, err)
	}
	conn.Close()

	return float64(time.Since(start)) / float64(time.Millisecond), nil
}

// MeasureQuality sends probe_count sequenced datagrams to the interface's
// echo target and derives latency, jitter and loss from the echoes. Jitter is
// the mean absolute difference between consecutive latencies and is defined
// as 0 with fewer than two samples. Loss is unacknowledged over sent.
func (p *Prober) MeasureQuality(ctx context.Context, iface config.InterfaceConfig) (latency, jitter, loss float64, err error) {
	dialer := net.Dialer{Timeout: p.udpTimeout}
	conn, err := dialer.DialContext(ctx, "udp", iface.EchoTarget)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: quality probe to %s: %v", model.ErrProbeTimeout, iface.EchoTarget, err)
	}
	defer conn.Close()

	payload := make([]byte, 16)
	echo := make([]byte, 64)
	var latencies []float64
	lost := 0

	for seq := 0; seq < p.cfg.ProbeCount; seq++ {
		binary.BigEndian.PutUint64(payload, uint64(seq))
		binary.BigEndian.PutUint64(payload[8:], uint64(time.Now().UnixNano()))

		start := time.Now()
		if _, werr := conn.Write(payload); werr != nil {
			lost++
			continue
		}
		conn.SetReadDeadline(time.Now().Add(p.udpTimeout))
		if _, rerr := conn.Read(echo); rerr != nil {
			lost++
			continue
		}
		latencies = append(latencies, float64(time.Since(start))/float64(time.Millisecond))
	}

	if len(latencies) == 0 {
		return 0, 0, 0, fmt.Errorf("%w: quality probe to %s: all %d datagrams lost",
			model.ErrProbeTimeout, iface.EchoTarget, p.cfg.ProbeCount)
	}

	sum := 0.0
	for _, l := range latencies {
		sum += l
	}
	latency = sum / float64(len(latencies))
	jitter = meanAbsDelta(latencies)
	loss = float64(lost) / float64(p.cfg.ProbeCount)

	return latency, jitter, loss, nil
}

// meanAbsDelta is the mean absolute difference between consecutive samples.
func meanAbsDelta(latencies []float64) float64 {
	if len(latencies) < 2 {
		return 0
	}
	sum := 0.0
	for i := 1; i < len(latencies); i++ {
		sum += math.Abs(latencies[i] - latencies[i-1])
	}
	return sum / float64(len(latencies)-1)
}

// MeasureThroughput streams data at the interface's sink target for the
// configured duration and reports the achieved rate in Mbps. On failure the
// prior bandwidth value is retained by the caller.
func (p *Prober) MeasureThroughput(ctx context.Context, iface config.InterfaceConfig) (float64, error) {
	dialer := net.Dialer{Timeout: p.icmpTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", iface.SinkTarget)
	if err != nil {
		return 0, fmt.Errorf("%w: throughput probe to %s: %v", model.ErrProbeTimeout, iface.SinkTarget, err)
	}
	defer conn.Close()

	buf := make([]byte, p.cfg.PacketSize)
	deadline := time.Now().Add(p.testDuration)
	conn.SetWriteDeadline(deadline)

	start := time.Now()
	var sent int64
	for time.Now().Before(deadline) {
		n, werr := conn.Write(buf)
		sent += int64(n)
		if werr != nil {
			break
		}
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: throughput probe to %s: %v", model.ErrProbeTimeout, iface.SinkTarget, ctx.Err())
		default:
		}
	}

	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 || sent == 0 {
		return 0, fmt.Errorf("%w: throughput probe to %s: nothing sent", model.ErrProbeTimeout, iface.SinkTarget)
	}

	return float64(sent) * 8 / elapsed / 1e6, nil
}

// ProbeInterface runs one full probe cycle for an interface and folds the
// results over the previous sample: a failed measurement keeps the prior
// value instead of zeroing it, so the cycle always yields a well-formed
// sample.
func (p *Prober) ProbeInterface(ctx context.Context, iface config.InterfaceConfig, prev model.LinkMetrics) model.LinkMetrics {
	metrics := prev

	if iface.ICMPEnabled {
		if latency, err := p.MeasureReachability(ctx, iface); err == nil {
			metrics.LatencyMs = latency
		} else {
			telemetry.ProbeFailures.WithLabelValues(iface.Name, "reachability").Inc()
			log.Printf("Reachability probe failed for %s: %v", iface.Name, err)
		}
	}

	if iface.UDPEnabled {
		if latency, jitter, loss, err := p.MeasureQuality(ctx, iface); err == nil {
			metrics.LatencyMs = latency
			metrics.JitterMs = jitter
			metrics.PacketLoss = loss
		} else {
			telemetry.ProbeFailures.WithLabelValues(iface.Name, "quality").Inc()
			log.Printf("Quality probe failed for %s: %v", iface.Name, err)
		}
	}

	if iface.BandwidthTestEnabled {
		if bandwidth, err := p.MeasureThroughput(ctx, iface); err == nil {
			metrics.BandwidthMbps = bandwidth
		} else {
			telemetry.ProbeFailures.WithLabelValues(iface.Name, "throughput").Inc()
			log.Printf("Throughput probe failed for %s: %v", iface.Name, err)
		}
	}

	metrics.SampledAt = time.Now()
	return metrics
}
