package qos

import (
	"testing"

	"wansteer/internal/config"
	"wansteer/internal/model"
)

func strPtr(s string) *string { return &s }
func u8Ptr(v uint8) *uint8    { return &v }
func u16Ptr(v uint16) *uint16 { return &v }
func u64Ptr(v uint64) *uint64 { return &v }

func testQosConfig() config.QosConfig {
	return config.QosConfig{
		DefaultPriority: 5,
		Rules: []config.QosRule{
			{
				Name:     "voip",
				Priority: 7,
				Match: config.MatchCriteria{
					Protocol:  strPtr("UDP"),
					PortRange: &config.PortRange{Start: 10000, End: 20000},
					DSCP:      u8Ptr(46),
				},
				Action: config.QosAction{
					LinkPreference:   []string{"wan-primary"},
					LatencyThreshold: u64Ptr(20),
				},
			},
			{
				Name:     "any-udp",
				Priority: 3,
				Match:    config.MatchCriteria{Protocol: strPtr("UDP")},
			},
			{
				Name:     "bulk",
				Priority: 1,
				Match:    config.MatchCriteria{Protocol: strPtr("TCP")},
				Action:   config.QosAction{BandwidthLimit: u64Ptr(100)},
			},
		},
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	c := NewClassifier(testQosConfig())

	// Matches both "voip" and "any-udp"; list order decides, not priority.
	pkt := &model.Packet{
		Protocol: "UDP",
		DestPort: u16Ptr(15000),
		DSCP:     u8Ptr(46),
	}
	rule := c.Classify(pkt)
	if rule == nil {
		t.Fatal("Expected a rule match")
	}
	if rule.Name != "voip" {
		t.Errorf("Expected first rule in list order to win, but got %q", rule.Name)
	}

	// Outside the voip port range, the second rule catches it.
	pkt.DestPort = u16Ptr(53)
	rule = c.Classify(pkt)
	if rule == nil || rule.Name != "any-udp" {
		t.Errorf("Expected any-udp, but got %v", rule)
	}
}

func TestClassifyAbsentFieldsMatchLeniently(t *testing.T) {
	c := NewClassifier(testQosConfig())

	// No destination port and no DSCP marking: the port-range and DSCP
	// criteria do not constrain the packet.
	pkt := &model.Packet{Protocol: "UDP"}
	rule := c.Classify(pkt)
	if rule == nil {
		t.Fatal("Expected a rule match")
	}
	if rule.Name != "voip" {
		t.Errorf("Expected voip for a packet without port or DSCP, but got %q", rule.Name)
	}
}

func TestClassifyDSCPMismatch(t *testing.T) {
	c := NewClassifier(testQosConfig())

	pkt := &model.Packet{
		Protocol: "UDP",
		DestPort: u16Ptr(15000),
		DSCP:     u8Ptr(0),
	}
	rule := c.Classify(pkt)
	if rule == nil || rule.Name != "any-udp" {
		t.Errorf("Expected a present DSCP to be checked against the criterion, but got %v", rule)
	}
}

func TestClassifyPortRangeBoundaries(t *testing.T) {
	c := NewClassifier(testQosConfig())

	for _, port := range []uint16{10000, 20000} {
		pkt := &model.Packet{Protocol: "UDP", DestPort: u16Ptr(port), DSCP: u8Ptr(46)}
		if rule := c.Classify(pkt); rule == nil || rule.Name != "voip" {
			t.Errorf("Expected port %d inside the inclusive range", port)
		}
	}
	pkt := &model.Packet{Protocol: "UDP", DestPort: u16Ptr(20001), DSCP: u8Ptr(46)}
	if rule := c.Classify(pkt); rule != nil && rule.Name == "voip" {
		t.Error("Expected port 20001 outside the range")
	}
}

func TestClassifyNoMatch(t *testing.T) {
	c := NewClassifier(testQosConfig())

	pkt := &model.Packet{Protocol: "ICMP"}
	if rule := c.Classify(pkt); rule != nil {
		t.Errorf("Expected no match, but got %q", rule.Name)
	}
	if got := c.Priority(pkt); got != 5 {
		t.Errorf("Expected default priority 5, but got %d", got)
	}
	if prefs := c.LinkPreference(pkt); len(prefs) != 0 {
		t.Errorf("Expected no link preference, but got %v", prefs)
	}
}

func TestClassifyActionAccessors(t *testing.T) {
	c := NewClassifier(testQosConfig())

	voip := &model.Packet{Protocol: "UDP", DestPort: u16Ptr(15000), DSCP: u8Ptr(46)}
	if got := c.Priority(voip); got != 7 {
		t.Errorf("Expected priority 7, but got %d", got)
	}
	if prefs := c.LinkPreference(voip); len(prefs) != 1 || prefs[0] != "wan-primary" {
		t.Errorf("Expected preference [wan-primary], but got %v", prefs)
	}
	if lt := c.LatencyThreshold(voip); lt == nil || *lt != 20 {
		t.Errorf("Expected latency threshold 20, but got %v", lt)
	}

	bulk := &model.Packet{Protocol: "TCP"}
	if bw := c.BandwidthLimit(bulk); bw == nil || *bw != 100 {
		t.Errorf("Expected bandwidth limit 100, but got %v", bw)
	}
}
