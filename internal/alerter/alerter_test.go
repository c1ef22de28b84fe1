package alerter

import (
	"strings"
	"testing"

	"wansteer/internal/config"
	"wansteer/internal/model"
)

type fakeSource struct {
	snap model.Snapshot
}

func (f *fakeSource) Snapshot() model.Snapshot { return f.snap }

type fakeNotifier struct {
	subjects []string
	bodies   []string
}

func (f *fakeNotifier) Send(subject, body string) error {
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	return nil
}

func snapshotWith(status model.LinkStatus) model.Snapshot {
	return model.Snapshot{
		Links: map[string]model.LinkHealth{
			"wan-primary": {Name: "wan-primary", Status: status},
		},
	}
}

func TestAlerterNotifiesOnTransition(t *testing.T) {
	source := &fakeSource{snap: snapshotWith(model.StatusUp)}
	notifier := &fakeNotifier{}

	a, err := NewAlerter(config.AlerterConfig{CheckInterval: "1s"}, source, notifier)
	if err != nil {
		t.Fatalf("Failed to create alerter: %v", err)
	}

	// First evaluation only seeds the baseline.
	a.evaluate()
	if len(notifier.subjects) != 0 {
		t.Fatalf("Expected no notification on the first evaluation, but got %d", len(notifier.subjects))
	}

	// No change: still quiet.
	a.evaluate()
	if len(notifier.subjects) != 0 {
		t.Fatalf("Expected no notification without a transition, but got %d", len(notifier.subjects))
	}

	source.snap = snapshotWith(model.StatusDown)
	a.evaluate()
	if len(notifier.subjects) != 1 {
		t.Fatalf("Expected 1 notification after a transition, but got %d", len(notifier.subjects))
	}
	if !strings.Contains(notifier.bodies[0], "wan-primary") {
		t.Error("Expected the notification body to name the link")
	}
	if !strings.Contains(notifier.bodies[0], "down") {
		t.Error("Expected the notification body to include the new status")
	}

	// The transition was consumed; a repeat check is quiet again.
	a.evaluate()
	if len(notifier.subjects) != 1 {
		t.Errorf("Expected no repeat notification, but got %d", len(notifier.subjects))
	}
}

func TestNewAlerterRejectsBadInterval(t *testing.T) {
	if _, err := NewAlerter(config.AlerterConfig{CheckInterval: "often"}, &fakeSource{}, nil); err == nil {
		t.Error("Expected an error for an unparsable check interval")
	}
}
