package liveness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"proxywatch/internal/models"
	"proxywatch/pkg/logsource"
)

// DefaultWindow is how recently a client must have produced telemetry to be
// considered online.
const DefaultWindow = 5 * time.Minute

// Tracker classifies each known client as online or offline and detects
// state transitions. Entries are created lazily on first poll.
type Tracker struct {
	source logsource.Source
	window time.Duration
	clock  clockwork.Clock

	mu    sync.RWMutex
	cache map[string]*entry
}

type entry struct {
	status     models.ClientStatus
	observedAt time.Time
}

// NewTracker creates a tracker over the given telemetry source. A zero or
// negative window falls back to DefaultWindow.
func NewTracker(source logsource.Source, window time.Duration, clock clockwork.Clock) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{
		source: source,
		window: window,
		clock:  clock,
		cache:  make(map[string]*entry),
	}
}

// Poll computes the client's current status: online iff the source holds at
// least one event for the client within the liveness window.
func (t *Tracker) Poll(ctx context.Context, clientID string) (models.ClientStatus, error) {
	events, err := t.source.Search(ctx, logsource.Query{
		ClientID: clientID,
		Since:    t.clock.Now().Add(-t.window),
		Size:     1,
		SortDesc: true,
	})
	if err != nil {
		return models.StatusOffline, fmt.Errorf("liveness query for %s failed: %w", clientID, err)
	}

	if len(events) > 0 {
		return models.StatusOnline, nil
	}
	return models.StatusOffline, nil
}

// Observe compares the polled status against the cached state and updates
// the cache. It reports whether a transition occurred and what the previous
// status was. The first observation of a client counts as a transition only
// if the client is online; an unseen client is assumed offline.
func (t *Tracker) Observe(clientID string, status models.ClientStatus) (changed bool, previous models.ClientStatus) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.cache[clientID]
	if !ok {
		t.cache[clientID] = &entry{status: status, observedAt: now}
		return status != models.StatusOffline, models.StatusOffline
	}

	previous = e.status
	changed = status != previous
	e.status = status
	e.observedAt = now
	return changed, previous
}

// Status returns the cached liveness for one client. Unknown clients read as
// offline with a zero observation time.
func (t *Tracker) Status(clientID string) models.ClientLiveness {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state := models.ClientLiveness{
		ClientID: clientID,
		Status:   models.StatusOffline,
	}
	if e, ok := t.cache[clientID]; ok {
		state.Status = e.status
		state.LastObservedAt = e.observedAt
	}
	state.StatusText = state.Status.String()
	return state
}

// Snapshot returns the cached liveness for every tracked client.
func (t *Tracker) Snapshot() []models.ClientLiveness {
	t.mu.RLock()
	defer t.mu.RUnlock()

	states := make([]models.ClientLiveness, 0, len(t.cache))
	for id, e := range t.cache {
		states = append(states, models.ClientLiveness{
			ClientID:       id,
			Status:         e.status,
			StatusText:     e.status.String(),
			LastObservedAt: e.observedAt,
		})
	}
	return states
}
