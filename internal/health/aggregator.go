package health

import (
	"sync"
	"sync/atomic"
	"time"

	"wansteer/internal/config"
	"wansteer/internal/model"
)

// linkState is the aggregator-private mutable state of one link. Consumers
// only ever see LinkHealth copies inside a published snapshot.
type linkState struct {
	cfg                  config.LinkConfig
	status               model.LinkStatus
	consecutiveFailures  uint64
	consecutiveSuccesses uint64
	lastMetrics          model.LinkMetrics
	hasMetrics           bool
}

// Aggregator turns the stream of per-link metrics samples into per-link
// statuses and publishes a coherent snapshot of all links.
//
// Writes go through a single mutex (one writer); reads go through an
// atomic.Value holding an immutable Snapshot that is rebuilt wholesale after
// every change, so readers are wait-free and never observe a link mid-update.
type Aggregator struct {
	mu               sync.Mutex
	links            map[string]*linkState
	byInterface      map[string][]string
	healthyThreshold float64
	failoverEnabled  bool
	failoverAfter    uint64
	recoverAfter     uint64
	stale            bool

	snapshot atomic.Value // model.Snapshot
}

// NewAggregator builds an aggregator for the configured links. Every link
// starts Up with zeroed counters.
func NewAggregator(links []config.LinkConfig, failover config.FailoverConfig, healthyThreshold float64) *Aggregator {
	a := &Aggregator{
		links:            make(map[string]*linkState, len(links)),
		byInterface:      make(map[string][]string, len(links)),
		healthyThreshold: healthyThreshold,
		failoverEnabled:  failover.Enabled,
		failoverAfter:    failover.FailoverThreshold,
		recoverAfter:     failover.RecoveryThreshold,
	}
	for _, link := range links {
		a.links[link.Name] = &linkState{cfg: link, status: model.StatusUp}
		iface := link.Interface
		if iface == "" {
			iface = link.Name
		}
		a.byInterface[iface] = append(a.byInterface[iface], link.Name)
	}
	a.publish()
	return a
}

// Ingest applies one metrics sample to the named link's state machine and
// republishes the snapshot. Samples for unknown links are ignored. Within one
// link, calls must arrive in sample order; the transport layer preserves it.
func (a *Aggregator) Ingest(linkName string, metrics model.LinkMetrics) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.links[linkName]
	if !ok {
		return
	}

	state.lastMetrics = metrics
	state.hasMetrics = true
	a.stale = false

	if a.failoverEnabled {
		a.advance(state, metrics.IsHealthy(a.healthyThreshold))
	}

	a.publish()
}

// advance runs one step of the failover state machine.
//
//	Up/Degraded -> Down  when consecutive failures reach the failover threshold
//	Down -> Up           when consecutive successes reach the recovery threshold
//
// Degraded is entered while failures accumulate below the threshold and while
// a Down link is recovering; it does not change selection eligibility.
func (a *Aggregator) advance(state *linkState, healthy bool) {
	if !healthy {
		state.consecutiveFailures++
		state.consecutiveSuccesses = 0
		if state.consecutiveFailures >= a.failoverAfter {
			state.status = model.StatusDown
		} else if state.status != model.StatusDown {
			state.status = model.StatusDegraded
		}
		return
	}

	state.consecutiveSuccesses++
	state.consecutiveFailures = 0
	if state.status == model.StatusDown {
		if state.consecutiveSuccesses >= a.recoverAfter {
			state.status = model.StatusUp
		}
		return
	}
	state.status = model.StatusUp
}

// IngestSample routes an interface's sample to every link configured on that
// interface. This is the transport-facing entry point: probes measure
// interfaces, the state machine tracks links.
func (a *Aggregator) IngestSample(interfaceName string, metrics model.LinkMetrics) {
	a.mu.Lock()
	names := a.byInterface[interfaceName]
	a.mu.Unlock()

	for _, name := range names {
		a.Ingest(name, metrics)
	}
}

// MarkStale flags the published snapshot as last-known data. Called by the
// transport watchdog when the sample stream goes quiet; stale health data is
// safer to serve than none.
func (a *Aggregator) MarkStale() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stale {
		return
	}
	a.stale = true
	a.publish()
}

// Restore seeds link state from a persisted snapshot, keeping only links that
// are still configured. Intended for startup, before probing resumes.
func (a *Aggregator) Restore(snap model.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for name, saved := range snap.Links {
		state, ok := a.links[name]
		if !ok {
			continue
		}
		state.status = saved.Status
		state.consecutiveFailures = saved.ConsecutiveFailures
		state.consecutiveSuccesses = saved.ConsecutiveSuccesses
		state.lastMetrics = saved.LastMetrics
		state.hasMetrics = !saved.LastMetrics.SampledAt.IsZero()
	}
	a.stale = true // restored data is stale until the first live sample
	a.publish()
}

// publish rebuilds the immutable snapshot. Callers must hold a.mu.
func (a *Aggregator) publish() {
	links := make(map[string]model.LinkHealth, len(a.links))
	for name, state := range a.links {
		links[name] = model.LinkHealth{
			Name:                 state.cfg.Name,
			Interface:            state.cfg.Interface,
			Weight:               state.cfg.Weight,
			MaxBandwidth:         state.cfg.MaxBandwidth,
			MinLatency:           state.cfg.MinLatency,
			FailoverGroup:        state.cfg.FailoverGroup,
			Status:               state.status,
			ConsecutiveFailures:  state.consecutiveFailures,
			ConsecutiveSuccesses: state.consecutiveSuccesses,
			LastMetrics:          state.lastMetrics,
		}
	}
	a.snapshot.Store(model.Snapshot{Links: links, TakenAt: time.Now(), Stale: a.stale})
}

// Snapshot returns the current published snapshot. The returned value is
// immutable by contract: the aggregator rebuilds a fresh map on every change
// and never touches a published one.
func (a *Aggregator) Snapshot() model.Snapshot {
	return a.snapshot.Load().(model.Snapshot)
}

// Metrics returns the last-known metrics per link, for the metrics query API.
func (a *Aggregator) Metrics() map[string]model.LinkMetrics {
	snap := a.Snapshot()
	out := make(map[string]model.LinkMetrics, len(snap.Links))
	for name, link := range snap.Links {
		out[name] = link.LastMetrics
	}
	return out
}
