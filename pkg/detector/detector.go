package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"proxywatch/internal/models"
	"proxywatch/pkg/config"
	"proxywatch/pkg/cooldown"
	"proxywatch/pkg/domains"
	"proxywatch/pkg/hub"
	"proxywatch/pkg/liveness"
	"proxywatch/pkg/logsource"
	"proxywatch/pkg/metrics"
	"proxywatch/pkg/roster"
)

// Alert categories keyed into the cooldown tracker.
const (
	CategoryOffHours = "outside_working_hours"
)

// Detector runs the three behavioral detection loops: restricted-domain
// matching, off-hours traffic, and client liveness. Each loop has its own
// cadence and none blocks another; they share state only through the
// synchronized trackers and hubs.
type Detector struct {
	cfg      *config.Config
	source   logsource.Source
	store    domains.Store
	matcher  *domains.Matcher
	cooldown *cooldown.Tracker
	liveness *liveness.Tracker
	roster   roster.Roster

	alertHub  *hub.Hub
	statusHub *hub.Hub

	clock   clockwork.Clock
	limiter *rate.Limiter

	stats      models.DetectorStats
	statsMutex sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a detector wired to its collaborators. A nil clock falls back
// to the real clock.
func New(cfg *config.Config, source logsource.Source, store domains.Store,
	ros roster.Roster, alertHub, statusHub *hub.Hub, clock clockwork.Clock) *Detector {

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	burst := cfg.Detection.BroadcastBurst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(cfg.Detection.BroadcastRate)
	if limit <= 0 {
		limit = rate.Inf
	}

	return &Detector{
		cfg:       cfg,
		source:    source,
		store:     store,
		matcher:   domains.NewMatcher(),
		cooldown:  cooldown.NewTracker(cfg.Detection.CooldownWindow),
		liveness:  liveness.NewTracker(source, cfg.Detection.LivenessWindow, clock),
		roster:    ros,
		alertHub:  alertHub,
		statusHub: statusHub,
		clock:     clock,
		limiter:   rate.NewLimiter(limit, burst),
	}
}

// Liveness exposes the liveness tracker for API consumers.
func (d *Detector) Liveness() *liveness.Tracker {
	return d.liveness
}

// Matcher exposes the current domain matcher snapshot.
func (d *Detector) Matcher() *domains.Matcher {
	return d.matcher
}

// Start launches the three detection loops. They run until the context is
// cancelled or Close is called.
func (d *Detector) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(3)
	go d.restrictedLoop()
	go d.offHoursLoop()
	go d.livenessLoop()

	log.Println("Detection loops started")
	return nil
}

// Close stops the detection loops and waits for them to exit.
func (d *Detector) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	return nil
}

// restrictedLoop drives restricted-domain scans on a fixed cadence. A scan
// that overruns the cadence is followed immediately by the next tick; there
// is no overlap and no skew correction.
func (d *Detector) restrictedLoop() {
	defer d.wg.Done()

	ticker := d.clock.NewTicker(d.cfg.Detection.RestrictedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.Chan():
			if err := d.ScanRestricted(d.ctx); err != nil {
				log.Printf("Restricted-domain scan failed: %v", err)
				metrics.ScansTotal.WithLabelValues("restricted", "error").Inc()
			}
		}
	}
}

func (d *Detector) offHoursLoop() {
	defer d.wg.Done()

	ticker := d.clock.NewTicker(d.cfg.Detection.OffHoursInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.Chan():
			if err := d.ScanOffHours(d.ctx); err != nil {
				log.Printf("Off-hours scan failed: %v", err)
				metrics.ScansTotal.WithLabelValues("offhours", "error").Inc()
			}
		}
	}
}

func (d *Detector) livenessLoop() {
	defer d.wg.Done()

	ticker := d.clock.NewTicker(d.cfg.Detection.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.Chan():
			if err := d.PollLiveness(d.ctx); err != nil {
				log.Printf("Liveness poll failed: %v", err)
				metrics.ScansTotal.WithLabelValues("liveness", "error").Inc()
			}
		}
	}
}

// ScanRestricted runs one restricted-domain detection pass: reload the
// restricted set, pull the newest domain-bearing events, and alert on
// distinct (client, root domain) pairs that match.
//
// The whole pass is skipped while the alert hub has no subscribers.
func (d *Detector) ScanRestricted(ctx context.Context) error {
	if d.alertHub.Count() == 0 {
		metrics.ScansTotal.WithLabelValues("restricted", "skipped").Inc()
		return nil
	}

	// A failed reload keeps the previous snapshot in effect.
	if set, err := d.store.Load(); err != nil {
		log.Printf("Restricted list reload failed, keeping previous snapshot: %v", err)
	} else {
		d.matcher.Load(set)
	}

	events, err := d.source.Search(ctx, logsource.Query{
		RequireDomain: true,
		Size:          d.cfg.Detection.BatchSize,
		SortDesc:      true,
	})
	if err != nil {
		return fmt.Errorf("restricted-domain query failed: %w", err)
	}

	metrics.EventsScanned.WithLabelValues("restricted").Add(float64(len(events)))

	type pair struct {
		client string
		domain string
	}
	seen := make(map[pair]struct{})

	for _, event := range events {
		if !event.HasDomain() {
			continue
		}

		p := pair{
			client: clientLabel(event),
			domain: domains.ExtractRootDomain(event.Domain),
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}

		if !d.matcher.Match(p.domain) {
			continue
		}

		now := d.clock.Now()
		if !d.cooldown.ShouldSend(p.client, p.domain, now) {
			d.suppress("cooldown")
			continue
		}

		message := fmt.Sprintf("Client %s visited restricted domain %s", p.client, p.domain)
		if d.broadcastAlert(models.MessageAlert, message, now) {
			d.cooldown.MarkSent(p.client, p.domain, now)
			metrics.AlertsSent.WithLabelValues("restricted_domain").Inc()
			log.Printf("ALERT: %s", message)
		}
	}

	d.updateStats(func(s *models.DetectorStats) {
		s.RestrictedScans++
		s.RestrictedDomains = d.matcher.Size()
	})
	metrics.ScansTotal.WithLabelValues("restricted", "ok").Inc()
	return nil
}

// ScanOffHours runs one off-hours detection pass over the newest
// domain-bearing events. Events with unparseable timestamps are logged and
// skipped without aborting the batch.
func (d *Detector) ScanOffHours(ctx context.Context) error {
	events, err := d.source.Search(ctx, logsource.Query{
		RequireDomain: true,
		Size:          d.cfg.Detection.BatchSize,
		SortDesc:      true,
	})
	if err != nil {
		return fmt.Errorf("off-hours query failed: %w", err)
	}

	metrics.EventsScanned.WithLabelValues("offhours").Add(float64(len(events)))

	for _, event := range events {
		ts, err := event.Time()
		if err != nil {
			log.Printf("Skipping event with malformed timestamp %q: %v", event.RawTimestamp, err)
			metrics.MalformedRecords.Inc()
			d.updateStats(func(s *models.DetectorStats) { s.MalformedRecords++ })
			continue
		}

		if !OutsideWorkingHours(ts, d.cfg.Detection.WorkStartHour, d.cfg.Detection.WorkEndHour) {
			continue
		}

		subject := event.ClientID
		if subject == "" {
			subject = clientLabel(event)
		}

		now := d.clock.Now()
		if !d.cooldown.ShouldSend(subject, CategoryOffHours, now) {
			d.suppress("cooldown")
			continue
		}

		message := fmt.Sprintf("Client %s generated traffic outside working hours at %s",
			clientLabel(event), ts.Format(time.RFC3339))
		if d.broadcastAlert(models.MessageWarning, message, now) {
			d.cooldown.MarkSent(subject, CategoryOffHours, now)
			metrics.AlertsSent.WithLabelValues(CategoryOffHours).Inc()
			log.Printf("WARNING: %s", message)
		}
	}

	d.updateStats(func(s *models.DetectorStats) { s.OffHoursScans++ })
	metrics.ScansTotal.WithLabelValues("offhours", "ok").Inc()
	return nil
}

// PollLiveness polls every rostered client and pushes a status update on the
// status hub for each transition. Transitions are not cooldown-gated; the
// liveness window already rate-limits them naturally.
func (d *Detector) PollLiveness(ctx context.Context) error {
	clients, err := d.roster.List(ctx)
	if err != nil {
		return fmt.Errorf("client roster listing failed: %w", err)
	}

	online := 0
	for _, client := range clients {
		status, err := d.liveness.Poll(ctx, client.ID)
		if err != nil {
			log.Printf("Liveness poll for %s failed: %v", client.ID, err)
			continue
		}
		if status == models.StatusOnline {
			online++
		}

		changed, previous := d.liveness.Observe(client.ID, status)
		if !changed {
			continue
		}

		log.Printf("Client %s transitioned %s -> %s", client.ID, previous, status)
		metrics.StatusTransitions.WithLabelValues(status.String()).Inc()

		payload, err := json.Marshal(models.StatusUpdate{
			ClientID: client.ID,
			Status:   status.String(),
		})
		if err != nil {
			log.Printf("Failed to encode status update for %s: %v", client.ID, err)
			continue
		}
		d.statusHub.Broadcast(payload)
	}

	metrics.ClientsOnline.Set(float64(online))
	d.updateStats(func(s *models.DetectorStats) { s.LivenessPolls++ })
	metrics.ScansTotal.WithLabelValues("liveness", "ok").Inc()
	return nil
}

// OutsideWorkingHours reports whether the local hour of t falls outside the
// [startHour, endHour) working window.
func OutsideWorkingHours(t time.Time, startHour, endHour int) bool {
	hour := t.Local().Hour()
	return hour < startHour || hour >= endHour
}

// broadcastAlert encodes and fans out one alert payload. Returns false when
// the global rate limiter withheld the send or encoding failed.
func (d *Detector) broadcastAlert(msgType models.MessageType, message string, now time.Time) bool {
	if !d.limiter.Allow() {
		d.suppress("rate_limit")
		log.Printf("Broadcast rate limit reached, dropping %s: %s", msgType, message)
		return false
	}

	payload, err := json.Marshal(models.AlertMessage{
		ID:        uuid.NewString(),
		Type:      msgType,
		Message:   message,
		Timestamp: now.Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("Failed to encode alert: %v", err)
		return false
	}

	d.alertHub.Broadcast(payload)
	d.updateStats(func(s *models.DetectorStats) {
		s.AlertsSent++
		s.LastAlertAt = now
	})
	return true
}

func (d *Detector) suppress(reason string) {
	metrics.AlertsSuppressed.WithLabelValues(reason).Inc()
	d.updateStats(func(s *models.DetectorStats) { s.AlertsSuppressed++ })
}

func (d *Detector) updateStats(fn func(*models.DetectorStats)) {
	d.statsMutex.Lock()
	defer d.statsMutex.Unlock()
	fn(&d.stats)
}

// GetStats returns a copy of the detector counters.
func (d *Detector) GetStats() models.DetectorStats {
	d.statsMutex.RLock()
	defer d.statsMutex.RUnlock()
	return d.stats
}

func clientLabel(event models.ProxyEvent) string {
	if event.ClientName != "" && event.ClientName != models.UnknownClient {
		return event.ClientName
	}
	if event.ClientID != "" {
		return event.ClientID
	}
	return models.UnknownClient
}
