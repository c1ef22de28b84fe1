package sched

import (
	"fmt"

	"wansteer/internal/config"
	"wansteer/internal/model"
)

// Classification is the classifier's verdict for one packet, handed to the
// selector alongside the health snapshot.
type Classification struct {
	RuleName         string
	Priority         uint8
	LinkPreference   []string
	BandwidthLimit   *uint64
	LatencyThreshold *uint64
}

// LinkSelector picks an egress link for a classified packet against the
// current health snapshot. Implementations must be side-effect-free apart
// from internal smoothing bookkeeping that never affects correctness.
type LinkSelector interface {
	SelectLink(pkt *model.Packet, cls Classification, snap model.Snapshot) (string, error)
	Name() string
}

// SelectorFactory builds a selector from the scheduler configuration.
type SelectorFactory func(cfg config.SchedulerConfig) (LinkSelector, error)

// registry maps algorithm names to their factories.
var registry = make(map[string]SelectorFactory)

// Register adds a selection algorithm under a configuration name.
func Register(name string, factory SelectorFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("selector algorithm '%s' already registered", name))
	}
	registry[name] = factory
}

// NewSelector resolves the configured algorithm name. An unknown name fails
// here, at startup, never at runtime dispatch.
func NewSelector(cfg config.SchedulerConfig) (LinkSelector, error) {
	factory, ok := registry[cfg.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownAlgorithm, cfg.Algorithm)
	}
	return factory(cfg)
}
