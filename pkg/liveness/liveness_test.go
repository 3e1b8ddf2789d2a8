package liveness_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"proxywatch/internal/models"
	"proxywatch/pkg/liveness"
	"proxywatch/pkg/logsource"
)

// fakeSource serves canned events per client id.
type fakeSource struct {
	mu     sync.Mutex
	active map[string]bool
	err    error
}

func newFakeSource() *fakeSource {
	return &fakeSource{active: make(map[string]bool)}
}

func (f *fakeSource) setActive(clientID string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[clientID] = active
}

func (f *fakeSource) Search(_ context.Context, q logsource.Query) ([]models.ProxyEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.active[q.ClientID] {
		return []models.ProxyEvent{{ClientID: q.ClientID}}, nil
	}
	return nil, nil
}

func TestPollOnlineOffline(t *testing.T) {
	source := newFakeSource()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	tracker := liveness.NewTracker(source, 5*time.Minute, clock)

	source.setActive("c1", true)
	status, err := tracker.Poll(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if status != models.StatusOnline {
		t.Errorf("Expected Online, got %s", status)
	}

	source.setActive("c1", false)
	status, err = tracker.Poll(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if status != models.StatusOffline {
		t.Errorf("Expected Offline, got %s", status)
	}
}

func TestPollQueryError(t *testing.T) {
	source := newFakeSource()
	source.err = errors.New("store unreachable")
	tracker := liveness.NewTracker(source, 5*time.Minute, clockwork.NewFakeClock())

	if _, err := tracker.Poll(context.Background(), "c1"); err == nil {
		t.Error("Expected error when the store is unreachable")
	}
}

// TestObserveTransitionExactlyOnce: a client going quiet transitions
// Online -> Offline exactly once across repeated polls; further identical
// observations are silent.
func TestObserveTransitionExactlyOnce(t *testing.T) {
	source := newFakeSource()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	tracker := liveness.NewTracker(source, 5*time.Minute, clock)

	changed, previous := tracker.Observe("c1", models.StatusOnline)
	if !changed {
		t.Error("First online observation must report a transition")
	}
	if previous != models.StatusOffline {
		t.Errorf("Expected previous Offline, got %s", previous)
	}

	for i := 0; i < 3; i++ {
		if changed, _ := tracker.Observe("c1", models.StatusOnline); changed {
			t.Error("Repeated identical observations must be silent")
		}
	}

	changed, previous = tracker.Observe("c1", models.StatusOffline)
	if !changed {
		t.Error("Going offline must report a transition")
	}
	if previous != models.StatusOnline {
		t.Errorf("Expected previous Online, got %s", previous)
	}

	for i := 0; i < 3; i++ {
		if changed, _ := tracker.Observe("c1", models.StatusOffline); changed {
			t.Error("Staying offline must be silent")
		}
	}
}

func TestObserveFirstOfflineIsSilent(t *testing.T) {
	tracker := liveness.NewTracker(newFakeSource(), 5*time.Minute, clockwork.NewFakeClock())

	// An unseen client is assumed offline; observing it offline is not a
	// transition.
	if changed, _ := tracker.Observe("c1", models.StatusOffline); changed {
		t.Error("First offline observation must not report a transition")
	}
}

func TestStatusUnknownClient(t *testing.T) {
	tracker := liveness.NewTracker(newFakeSource(), 5*time.Minute, clockwork.NewFakeClock())

	state := tracker.Status("ghost")
	if state.Status != models.StatusOffline {
		t.Errorf("Unknown client must read as Offline, got %s", state.Status)
	}
	if state.StatusText != "Offline" {
		t.Errorf("Expected status text Offline, got %s", state.StatusText)
	}
}

func TestSnapshot(t *testing.T) {
	tracker := liveness.NewTracker(newFakeSource(), 5*time.Minute, clockwork.NewFakeClock())

	tracker.Observe("c1", models.StatusOnline)
	tracker.Observe("c2", models.StatusOffline)

	states := tracker.Snapshot()
	if len(states) != 2 {
		t.Fatalf("Expected 2 tracked clients, got %d", len(states))
	}
}
