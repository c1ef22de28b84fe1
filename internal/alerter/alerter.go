// Package alerter watches the health snapshot for link status transitions
// and sends a consolidated notification when links go down or recover.
package alerter

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"wansteer/internal/config"
	"wansteer/internal/model"
)

// SnapshotSource hands the alerter the current health snapshot.
type SnapshotSource interface {
	Snapshot() model.Snapshot
}

// Alerter polls the snapshot on an interval and notifies on every status
// change observed since the previous check.
type Alerter struct {
	source        SnapshotSource
	notifier      model.Notifier
	checkInterval time.Duration

	lastStatus map[string]model.LinkStatus

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(cfg config.AlerterConfig, source SnapshotSource, notifier model.Notifier) (*Alerter, error) {
	interval, err := time.ParseDuration(cfg.CheckInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid check_interval for alerter: %w", err)
	}

	return &Alerter{
		source:        source,
		notifier:      notifier,
		checkInterval: interval,
		lastStatus:    make(map[string]model.LinkStatus),
		stopChan:      make(chan struct{}),
	}, nil
}

// Start begins the periodic status check.
func (a *Alerter) Start() {
	log.Println("Alerter started")

	a.wg.Add(1)
	defer a.wg.Done()

	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.evaluate()
		case <-a.stopChan:
			return
		}
	}
}

// Stop gracefully stops the check loop and runs one final evaluation.
func (a *Alerter) Stop() {
	log.Println("Stopping Alerter...")
	close(a.stopChan)
	a.wg.Wait()
	a.evaluate()
}

// evaluate diffs the snapshot against the previously observed statuses and
// sends one consolidated notification for all transitions.
func (a *Alerter) evaluate() {
	snap := a.source.Snapshot()

	var messages []string
	for name, link := range snap.Links {
		prev, seen := a.lastStatus[name]
		a.lastStatus[name] = link.Status
		if !seen || prev == link.Status {
			continue
		}

		messages = append(messages, fmt.Sprintf(
			"<p>Link <b>%s</b> changed from <b>%s</b> to <b>%s</b> "+
				"(score=%.3f, latency=%.1fms, loss=%.4f, failures=%d, successes=%d)</p>",
			name, prev, link.Status,
			link.LastMetrics.HealthScore(), link.LastMetrics.LatencyMs, link.LastMetrics.PacketLoss,
			link.ConsecutiveFailures, link.ConsecutiveSuccesses))
	}

	if len(messages) == 0 {
		return
	}

	log.Printf("Alerter evaluation completed. %d transition(s) detected.", len(messages))

	if a.notifier == nil {
		return
	}

	body := "<h1>WanSteer Link Status Summary</h1>" +
		"<p>The following link transitions were observed during the last check:</p><hr>" +
		strings.Join(messages, "<hr>")
	subject := fmt.Sprintf("WanSteer Link Status Summary (%d Transitions)", len(messages))

	if err := a.notifier.Send(subject, body); err != nil {
		log.Printf("ERROR: Failed to send link status notification: %v", err)
	} else {
		log.Printf("INFO: Link status notification sent successfully.")
	}
}
