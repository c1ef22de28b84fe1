package sched

import (
	"sync"

	"wansteer/internal/config"
	"wansteer/internal/model"
)

func init() {
	Register("weighted_round_robin", func(cfg config.SchedulerConfig) (LinkSelector, error) {
		return newWeightedRoundRobin(), nil
	})
}

// weightedRoundRobin scores every eligible link by its current health and
// picks the maximum. The smoothed weights carried between calls exist for
// observability and tie smoothing only; selection is reproducible from the
// snapshot alone.
type weightedRoundRobin struct {
	mu       sync.Mutex
	smoothed map[string]float64
}

func newWeightedRoundRobin() *weightedRoundRobin {
	return &weightedRoundRobin{smoothed: make(map[string]float64)}
}

func (w *weightedRoundRobin) Name() string { return "weighted_round_robin" }

// SelectLink implements the selection algorithm:
//
//  1. Candidates are the selection-eligible links (status != Down). A
//     non-empty link preference restricts candidates to the preferred links
//     that are eligible; preference is a hard constraint with no fallback.
//  2. A latency threshold further restricts candidates, but softly: when it
//     would empty the set the unrestricted eligible set is used instead.
//  3. The highest health score wins. Ties go to the higher static weight,
//     then to the lexicographically smaller name.
func (w *weightedRoundRobin) SelectLink(pkt *model.Packet, cls Classification, snap model.Snapshot) (string, error) {
	eligible := make([]model.LinkHealth, 0, len(snap.Links))
	for _, link := range snap.Links {
		if link.Status.Eligible() {
			eligible = append(eligible, link)
		}
	}

	candidates := eligible
	if len(cls.LinkPreference) > 0 {
		preferred := make([]model.LinkHealth, 0, len(cls.LinkPreference))
		for _, name := range cls.LinkPreference {
			if link, ok := snap.Links[name]; ok && link.Status.Eligible() {
				preferred = append(preferred, link)
			}
		}
		candidates = preferred
	}

	if len(candidates) == 0 {
		return "", model.ErrNoLinkAvailable
	}

	if cls.LatencyThreshold != nil {
		within := make([]model.LinkHealth, 0, len(candidates))
		for _, link := range candidates {
			if link.LastMetrics.LatencyMs <= float64(*cls.LatencyThreshold) {
				within = append(within, link)
			}
		}
		if len(within) > 0 {
			candidates = within
		}
	}

	best := candidates[0]
	bestScore := best.LastMetrics.HealthScore()
	for _, link := range candidates[1:] {
		score := link.LastMetrics.HealthScore()
		if better(link, score, best, bestScore) {
			best, bestScore = link, score
		}
	}

	w.mu.Lock()
	w.smoothed[best.Name] = 0.8*w.smoothed[best.Name] + 0.2*bestScore
	w.mu.Unlock()

	return best.Name, nil
}

// better reports whether the candidate beats the incumbent under the
// score, static weight, lexicographic name tie chain.
func better(cand model.LinkHealth, candScore float64, inc model.LinkHealth, incScore float64) bool {
	if candScore != incScore {
		return candScore > incScore
	}
	if cand.Weight != inc.Weight {
		return cand.Weight > inc.Weight
	}
	return cand.Name < inc.Name
}
