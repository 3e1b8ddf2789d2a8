package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proxywatch/internal/models"
	"proxywatch/pkg/config"
	"proxywatch/pkg/domains"
	"proxywatch/pkg/hub"
	"proxywatch/pkg/logsource"
	"proxywatch/pkg/roster"
)

// DetectorInterface defines what the dashboard needs from the detector
type DetectorInterface interface {
	GetStats() models.DetectorStats
}

// LivenessReader reads cached client liveness
type LivenessReader interface {
	Status(clientID string) models.ClientLiveness
}

// SnapshotBuilder produces the aggregated view streamed to dashboards
type SnapshotBuilder interface {
	Snapshot(ctx context.Context) (models.VisualizationSnapshot, error)
}

// Dashboard serves the REST API and the three push channels: alerts, client
// status, and aggregated visualizations.
type Dashboard struct {
	cfg        *config.Config
	alertHub   *hub.Hub
	statusHub  *hub.Hub
	detector   DetectorInterface
	liveness   LivenessReader
	source     logsource.Source
	store      domains.Store
	aggregator SnapshotBuilder
	roster     roster.Roster
	clock      clockwork.Clock

	server   *http.Server
	upgrader websocket.Upgrader
}

// New creates a dashboard server wired to its collaborators.
func New(cfg *config.Config, alertHub, statusHub *hub.Hub, det DetectorInterface,
	live LivenessReader, source logsource.Source, store domains.Store,
	agg SnapshotBuilder, ros roster.Roster, clock clockwork.Clock) (*Dashboard, error) {

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Dashboard{
		cfg:        cfg,
		alertHub:   alertHub,
		statusHub:  statusHub,
		detector:   det,
		liveness:   live,
		source:     source,
		store:      store,
		aggregator: agg,
		roster:     ros,
		clock:      clock,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // dashboard frontend runs on a different origin
			},
		},
	}, nil
}

// Router builds the HTTP route table.
func (d *Dashboard) Router() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/clients", d.handleClients).Methods("GET")
	api.HandleFunc("/logs/{client_id}", d.handleClientLogs).Methods("GET")
	api.HandleFunc("/domains", d.handleDomains).Methods("GET")
	api.HandleFunc("/stats", d.handleStats).Methods("GET")

	router.HandleFunc("/ws/alert", d.handleAlertWS)
	router.HandleFunc("/ws/visualizations", d.handleVisualizationsWS)
	router.HandleFunc("/ws", d.handleStatusWS)

	router.HandleFunc("/healthz", d.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}

// Start starts the dashboard server
func (d *Dashboard) Start(ctx context.Context) error {
	d.server = &http.Server{
		Addr:    d.cfg.Dashboard.ListenAddr,
		Handler: d.Router(),
	}

	go func() {
		log.Printf("Dashboard server starting on %s", d.cfg.Dashboard.ListenAddr)
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Dashboard server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the dashboard server
func (d *Dashboard) Stop() error {
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return d.server.Shutdown(ctx)
	}
	return nil
}

// handleClients returns the roster with cached liveness status.
func (d *Dashboard) handleClients(w http.ResponseWriter, r *http.Request) {
	clients, err := d.roster.List(r.Context())
	if err != nil {
		http.Error(w, "failed to list clients", http.StatusInternalServerError)
		return
	}

	type clientView struct {
		models.Client
		Status         string    `json:"status"`
		LastObservedAt time.Time `json:"last_observed_at"`
	}

	views := make([]clientView, 0, len(clients))
	for _, client := range clients {
		state := d.liveness.Status(client.ID)
		views = append(views, clientView{
			Client:         client,
			Status:         state.StatusText,
			LastObservedAt: state.LastObservedAt,
		})
	}

	writeJSON(w, views)
}

// handleClientLogs returns recent telemetry for one client.
func (d *Dashboard) handleClientLogs(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client_id"]

	events, err := d.source.Search(r.Context(), logsource.Query{
		ClientID: clientID,
		Size:     100,
		SortDesc: true,
	})
	if err != nil {
		log.Printf("Log query for %s failed: %v", clientID, err)
		http.Error(w, "log query failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, map[string]interface{}{"logs": events})
}

// handleDomains returns the current restricted domain list.
func (d *Dashboard) handleDomains(w http.ResponseWriter, r *http.Request) {
	set, err := d.store.Load()
	if err != nil {
		log.Printf("Restricted list load failed: %v", err)
		http.Error(w, "restricted list unavailable", http.StatusServiceUnavailable)
		return
	}

	list := make([]string, 0, len(set))
	for domain := range set {
		list = append(list, domain)
	}
	sort.Strings(list)

	writeJSON(w, map[string]interface{}{"domains": list})
}

// handleStats returns detector counters.
func (d *Dashboard) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.detector.GetStats())
}

func (d *Dashboard) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleAlertWS registers the connection with the alert hub. The server only
// pushes; inbound frames are drained and ignored.
func (d *Dashboard) handleAlertWS(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	sub := newWSSubscriber(conn)
	d.alertHub.Connect(sub)
	defer func() {
		d.alertHub.Disconnect(sub)
		conn.Close()
	}()

	drain(conn)
}

// handleStatusWS registers the connection with the status hub and sends an
// initial liveness snapshot for every rostered client.
func (d *Dashboard) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	sub := newWSSubscriber(conn)

	// Register before pushing the snapshot so a transition broadcast during
	// the snapshot window is not lost. The subscriber's write lock keeps the
	// interleaved frames intact.
	d.statusHub.Connect(sub)
	defer func() {
		d.statusHub.Disconnect(sub)
		conn.Close()
	}()

	if clients, err := d.roster.List(r.Context()); err == nil {
		for _, client := range clients {
			state := d.liveness.Status(client.ID)
			update := models.StatusUpdate{ClientID: client.ID, Status: state.StatusText}
			if err := sub.SendJSON(update); err != nil {
				log.Printf("Initial status push failed: %v", err)
				return
			}
		}
	}

	drain(conn)
}

// handleVisualizationsWS streams aggregated snapshots with an application
// level heartbeat: a ping every PingInterval, with a pong expected within
// PongTimeout. A missed pong is logged but the connection is kept; transport
// failures are what terminate the stream.
func (d *Dashboard) handleVisualizationsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := newWSSubscriber(conn)

	var pongMutex sync.Mutex
	var lastPong time.Time

	// Reader records pongs and cancels the stream on transport failure.
	go func() {
		defer cancel()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			if msg.Type == string(models.MessagePong) {
				pongMutex.Lock()
				lastPong = d.clock.Now()
				pongMutex.Unlock()
			}
		}
	}()

	// One long-lived checker handles every pong deadline for the connection.
	pending := make(chan time.Time, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case pingAt := <-pending:
				select {
				case <-ctx.Done():
					return
				case <-d.clock.After(d.cfg.Dashboard.PongTimeout):
					pongMutex.Lock()
					missed := lastPong.Before(pingAt)
					pongMutex.Unlock()
					if missed {
						// Logged only; the legacy contract keeps the
						// connection open on a missed pong.
						log.Printf("No pong within %s from %s", d.cfg.Dashboard.PongTimeout, conn.RemoteAddr())
					}
				}
			}
		}
	}()

	if err := d.pushSnapshot(ctx, sub); err != nil {
		log.Printf("Initial snapshot push failed: %v", err)
		return
	}

	snapshotTicker := d.clock.NewTicker(d.cfg.Dashboard.SnapshotInterval)
	defer snapshotTicker.Stop()
	pingTicker := d.clock.NewTicker(d.cfg.Dashboard.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-snapshotTicker.Chan():
			if err := d.pushSnapshot(ctx, sub); err != nil {
				log.Printf("Snapshot push failed: %v", err)
				return
			}
		case <-pingTicker.Chan():
			pingAt := d.clock.Now()
			if err := sub.SendJSON(map[string]string{"type": string(models.MessagePing)}); err != nil {
				log.Printf("Ping failed: %v", err)
				return
			}
			select {
			case pending <- pingAt:
			default:
			}
		}
	}
}

func (d *Dashboard) pushSnapshot(ctx context.Context, sub *wsSubscriber) error {
	snapshot, err := d.aggregator.Snapshot(ctx)
	if err != nil {
		// Stale dashboards beat dead connections; keep the stream and let
		// the next tick retry.
		log.Printf("Snapshot build failed: %v", err)
		return nil
	}
	return sub.SendJSON(snapshot)
}

// drain consumes inbound frames until the connection errors out.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Response encoding error: %v", err)
	}
}
