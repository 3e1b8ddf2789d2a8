package stats

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"proxywatch/internal/models"
	"proxywatch/pkg/logsource"
)

// DefaultRange is how far back the aggregated view reaches.
const DefaultRange = 24 * time.Hour

// maxSampleSize caps how many events one snapshot examines.
const maxSampleSize = 1000

// Aggregator shapes raw telemetry into the snapshot streamed to dashboards.
type Aggregator struct {
	source logsource.Source
	window time.Duration
	clock  clockwork.Clock
}

// NewAggregator creates an aggregator over the given source. A zero or
// negative window falls back to DefaultRange.
func NewAggregator(source logsource.Source, window time.Duration, clock clockwork.Clock) *Aggregator {
	if window <= 0 {
		window = DefaultRange
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Aggregator{source: source, window: window, clock: clock}
}

// Snapshot builds an aggregated view of recent event volume, bucketed by
// client and by local hour of day. Events with malformed timestamps count
// toward totals but not hour buckets.
func (a *Aggregator) Snapshot(ctx context.Context) (models.VisualizationSnapshot, error) {
	now := a.clock.Now()

	events, err := a.source.Search(ctx, logsource.Query{
		Since:    now.Add(-a.window),
		Size:     maxSampleSize,
		SortDesc: true,
	})
	if err != nil {
		return models.VisualizationSnapshot{}, fmt.Errorf("snapshot query failed: %w", err)
	}

	snapshot := models.VisualizationSnapshot{
		Type:           "snapshot",
		TotalEvents:    len(events),
		EventsByClient: make(map[string]int),
		GeneratedAt:    now,
	}

	hours := make([]int, 24)
	for _, event := range events {
		client := event.ClientID
		if client == "" {
			client = models.UnknownClient
		}
		snapshot.EventsByClient[client]++

		ts, err := event.Time()
		if err != nil {
			log.Printf("Snapshot skipping hour bucket for malformed timestamp %q", event.RawTimestamp)
			continue
		}
		hours[ts.Local().Hour()]++
	}

	for hour, count := range hours {
		if count == 0 {
			continue
		}
		snapshot.EventsByHour = append(snapshot.EventsByHour, models.HourBucket{
			Hour:  hour,
			Count: count,
		})
	}

	return snapshot, nil
}
