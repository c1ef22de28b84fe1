// Package capture turns raw frames into schedulable packets. It backs the
// ws-capture tool, which sniffs an ingress interface and feeds the scheduler.
package capture

import (
	"fmt"
	"time"

	"wansteer/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ParseFrame decodes a raw Ethernet frame and extracts the attributes the
// classifier needs. Non-IPv4 and non-TCP/UDP frames are rejected; the caller
// skips them.
func ParseFrame(data []byte) (*model.Packet, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)

	pkt := &model.Packet{
		Data:      data,
		Timestamp: time.Now(),
	}
	if meta := packet.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		pkt.Timestamp = meta.Timestamp
	}

	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return nil, fmt.Errorf("not an IPv4 packet")
	}
	ip := ipLayer.(*layers.IPv4)
	pkt.SourceIP = ip.SrcIP.String()
	pkt.DestIP = ip.DstIP.String()

	// DSCP is the upper six bits of the TOS byte.
	dscp := ip.TOS >> 2
	pkt.DSCP = &dscp

	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		pkt.Protocol = "TCP"
		src, dst := uint16(tcp.SrcPort), uint16(tcp.DstPort)
		pkt.SourcePort, pkt.DestPort = &src, &dst
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		pkt.Protocol = "UDP"
		src, dst := uint16(udp.SrcPort), uint16(udp.DstPort)
		pkt.SourcePort, pkt.DestPort = &src, &dst
	default:
		return nil, fmt.Errorf("not a TCP or UDP packet")
	}

	return pkt, nil
}
