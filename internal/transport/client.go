package transport

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"wansteer/internal/config"
	"wansteer/internal/model"

	"github.com/nats-io/nats.go"
)

// Client is the request/reply side of the transport: on-demand probes and
// metrics fetches against the underlay daemon, and remote scheduling against
// the scheduler. A transport timeout surfaces as ErrProbeTimeout for probes
// and ErrSchedulerUnavailable otherwise, so callers can fall back to
// last-known data instead of failing hard.
type Client struct {
	nc      *nats.Conn
	cfg     config.NATSConfig
	timeout time.Duration
}

// NewClient connects to NATS with the given per-request timeout.
func NewClient(cfg config.NATSConfig, timeout time.Duration) (*Client, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &Client{nc: nc, cfg: cfg, timeout: timeout}, nil
}

// ProbeInterface triggers one on-demand probe on the underlay daemon.
func (c *Client) ProbeInterface(name string) (model.LinkMetrics, error) {
	data, err := json.Marshal(ProbeRequest{InterfaceName: name})
	if err != nil {
		return model.LinkMetrics{}, err
	}

	msg, err := c.nc.Request(c.cfg.ProbeSubject, data, c.timeout)
	if err != nil {
		return model.LinkMetrics{}, fmt.Errorf("%w: %v", model.ErrProbeTimeout, err)
	}

	var resp ProbeResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return model.LinkMetrics{}, fmt.Errorf("malformed probe response: %w", err)
	}
	if resp.Status != statusOK {
		return model.LinkMetrics{}, decodeError(resp.Error)
	}
	return resp.Metrics, nil
}

// GetMetrics fetches the last-known samples from the underlay daemon.
func (c *Client) GetMetrics(interfaceNames ...string) (map[string]model.LinkMetrics, error) {
	data, err := json.Marshal(MetricsRequest{InterfaceNames: interfaceNames})
	if err != nil {
		return nil, err
	}

	msg, err := c.nc.Request(c.cfg.MetricsSubject, data, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSchedulerUnavailable, err)
	}

	var resp MetricsResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("malformed metrics response: %w", err)
	}
	return resp.Metrics, nil
}

// SchedulePacket submits one packet to a remote scheduler and returns the
// assigned link and sequence number.
func (c *Client) SchedulePacket(pkt *model.Packet) (model.ScheduledPacket, error) {
	data, err := json.Marshal(PacketRequest{Packet: *pkt})
	if err != nil {
		return model.ScheduledPacket{}, err
	}

	msg, err := c.nc.Request(c.cfg.ScheduleSubject, data, c.timeout)
	if err != nil {
		return model.ScheduledPacket{}, fmt.Errorf("%w: %v", model.ErrSchedulerUnavailable, err)
	}

	var resp PacketResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return model.ScheduledPacket{}, fmt.Errorf("malformed packet response: %w", err)
	}
	if resp.Status != statusOK {
		return model.ScheduledPacket{}, decodeError(resp.Error)
	}
	return resp.Scheduled, nil
}

// Close closes the NATS connection.
func (c *Client) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}
