// Package transport carries probe samples, probe/metrics requests and packet
// scheduling requests between the daemons over NATS. Frames are JSON and
// carry every LinkMetrics/ScheduledPacket field losslessly; the encoding
// itself is deliberately not part of the core's contract.
package transport

import (
	"time"

	"wansteer/internal/model"
)

// SampleMessage is one probe-cycle result published on the sample subject.
type SampleMessage struct {
	Interface string            `json:"interface"`
	Metrics   model.LinkMetrics `json:"metrics"`
}

// ProbeRequest asks the underlay daemon for an on-demand probe of one
// interface, bypassing its cycle.
type ProbeRequest struct {
	InterfaceName string `json:"interface_name"`
}

// ProbeResponse answers a ProbeRequest.
type ProbeResponse struct {
	InterfaceName string            `json:"interface_name"`
	Metrics       model.LinkMetrics `json:"metrics"`
	Status        string            `json:"status"`
	Error         string            `json:"error,omitempty"`
}

// MetricsRequest asks for the last-known sample of the named interfaces, or
// of all interfaces when the list is empty.
type MetricsRequest struct {
	InterfaceNames []string `json:"interface_names,omitempty"`
}

// MetricsResponse answers a MetricsRequest.
type MetricsResponse struct {
	Metrics   map[string]model.LinkMetrics `json:"metrics"`
	Timestamp time.Time                    `json:"timestamp"`
}

// PacketRequest asks the scheduler to schedule one packet.
type PacketRequest struct {
	Packet model.Packet `json:"packet"`
}

// PacketResponse answers a PacketRequest.
type PacketResponse struct {
	Scheduled model.ScheduledPacket `json:"scheduled"`
	Status    string                `json:"status"`
	Error     string                `json:"error,omitempty"`
}

const (
	statusOK    = "ok"
	statusError = "error"
)
