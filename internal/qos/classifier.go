package qos

import (
	"wansteer/internal/config"
	"wansteer/internal/model"
)

// Classifier maps packets onto the configured QoS rule list. The rule set is
// immutable after construction, so a Classifier is safe for concurrent use.
type Classifier struct {
	rules           []config.QosRule
	defaultPriority uint8
}

// NewClassifier builds a classifier over the configured rules, kept in
// configuration order.
func NewClassifier(cfg config.QosConfig) *Classifier {
	rules := make([]config.QosRule, len(cfg.Rules))
	copy(rules, cfg.Rules)
	return &Classifier{rules: rules, defaultPriority: cfg.DefaultPriority}
}

// Classify returns the first rule in list order whose every present criterion
// matches the packet, or nil when no rule matches. The rule Priority field is
// deliberately not a sort key here.
func (c *Classifier) Classify(pkt *model.Packet) *config.QosRule {
	for i := range c.rules {
		if matches(pkt, &c.rules[i]) {
			return &c.rules[i]
		}
	}
	return nil
}

func matches(pkt *model.Packet, rule *config.QosRule) bool {
	m := &rule.Match

	if m.SourceIP != nil && pkt.SourceIP != *m.SourceIP {
		return false
	}
	if m.DestIP != nil && pkt.DestIP != *m.DestIP {
		return false
	}
	if m.Protocol != nil && pkt.Protocol != *m.Protocol {
		return false
	}
	// A port-range criterion only constrains packets that carry a destination
	// port. A packet without one still matches.
	if m.PortRange != nil && pkt.DestPort != nil {
		if *pkt.DestPort < m.PortRange.Start || *pkt.DestPort > m.PortRange.End {
			return false
		}
	}
	// Same leniency for DSCP.
	if m.DSCP != nil && pkt.DSCP != nil && *pkt.DSCP != *m.DSCP {
		return false
	}

	return true
}

// Priority returns the matched rule's priority, or the configured default.
func (c *Classifier) Priority(pkt *model.Packet) uint8 {
	if rule := c.Classify(pkt); rule != nil {
		return rule.Priority
	}
	return c.defaultPriority
}

// LinkPreference returns the matched rule's ordered link list. An empty
// result means no preference.
func (c *Classifier) LinkPreference(pkt *model.Packet) []string {
	if rule := c.Classify(pkt); rule != nil {
		return rule.Action.LinkPreference
	}
	return nil
}

// BandwidthLimit returns the matched rule's bandwidth cap, if any.
func (c *Classifier) BandwidthLimit(pkt *model.Packet) *uint64 {
	if rule := c.Classify(pkt); rule != nil {
		return rule.Action.BandwidthLimit
	}
	return nil
}

// LatencyThreshold returns the matched rule's latency bound, if any.
func (c *Classifier) LatencyThreshold(pkt *model.Packet) *uint64 {
	if rule := c.Classify(pkt); rule != nil {
		return rule.Action.LatencyThreshold
	}
	return nil
}
