package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"proxywatch/pkg/config"
	"proxywatch/pkg/dashboard"
	"proxywatch/pkg/detector"
	"proxywatch/pkg/domains"
	"proxywatch/pkg/hub"
	"proxywatch/pkg/logsource"
	"proxywatch/pkg/metrics"
	"proxywatch/pkg/roster"
	"proxywatch/pkg/stats"
)

const version = "0.1.0"

func main() {
	var (
		configPath  = flag.String("config", "./configs/proxywatch.yaml", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		listenAddr  = flag.String("listen", "", "Dashboard listen address (overrides config)")
		help        = flag.Bool("help", false, "Show help information")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	if *showVersion {
		fmt.Printf("proxywatch v%s\n", version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *listenAddr != "" {
		cfg.Dashboard.ListenAddr = *listenAddr
	}

	log.Printf("Starting proxywatch v%s", version)
	log.Printf("Telemetry index: %s at %s", cfg.Elastic.Index, cfg.Elastic.URL)
	log.Printf("Monitoring %d rostered clients", len(cfg.Clients))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	source, err := logsource.NewElasticSource(cfg.Elastic)
	if err != nil {
		log.Fatalf("Failed to initialize log source: %v", err)
	}

	store := domains.NewCSVStore(cfg.Restricted.CSVPath)
	clientRoster := roster.NewStatic(cfg.Clients)
	clock := clockwork.NewRealClock()

	alertHub := hub.New("alerts")
	statusHub := hub.New("status")
	wireHubMetrics(alertHub, statusHub)

	det := detector.New(cfg, source, store, clientRoster, alertHub, statusHub, clock)
	aggregator := stats.NewAggregator(source, stats.DefaultRange, clock)

	dashboardServer, err := dashboard.New(cfg, alertHub, statusHub, det,
		det.Liveness(), source, store, aggregator, clientRoster, clock)
	if err != nil {
		log.Fatalf("Failed to initialize dashboard: %v", err)
	}

	log.Println("Starting detection loops...")
	if err := det.Start(ctx); err != nil {
		log.Fatalf("Failed to start detector: %v", err)
	}

	log.Println("Starting web dashboard...")
	if err := dashboardServer.Start(ctx); err != nil {
		log.Fatalf("Failed to start dashboard: %v", err)
	}

	log.Printf("proxywatch is running")
	log.Printf("Dashboard available at http://localhost%s", cfg.Dashboard.ListenAddr)
	log.Println("Press Ctrl+C to stop...")

	<-sigChan
	log.Println("Shutting down gracefully...")

	cancel()

	if err := dashboardServer.Stop(); err != nil {
		log.Printf("Error stopping dashboard: %v", err)
	}

	if err := det.Close(); err != nil {
		log.Printf("Error stopping detector: %v", err)
	}

	log.Println("Shutdown complete")
}

// wireHubMetrics connects the subscriber gauges and failure counters to the
// two broadcast hubs.
func wireHubMetrics(alertHub, statusHub *hub.Hub) {
	alertHub.OnCountChange(func(n int) {
		metrics.HubSubscribers.WithLabelValues("alerts").Set(float64(n))
	})
	alertHub.OnSendFailure(func() {
		metrics.BroadcastFailures.WithLabelValues("alerts").Inc()
	})
	statusHub.OnCountChange(func(n int) {
		metrics.HubSubscribers.WithLabelValues("status").Set(float64(n))
	})
	statusHub.OnSendFailure(func() {
		metrics.BroadcastFailures.WithLabelValues("status").Inc()
	})
}

// loadConfig loads configuration from file or returns default config
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("Config file %s not found, using defaults", path)
		return config.DefaultConfig(), nil
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	return cfg, nil
}

func showHelp() {
	fmt.Printf(`proxywatch - proxy telemetry behavioral monitor v%s

DESCRIPTION:
    Monitors proxy telemetry for registered clients and pushes near
    real-time alerts over WebSocket channels: restricted-domain visits,
    traffic outside working hours, and client liveness transitions.

USAGE:
    %s [OPTIONS]

OPTIONS:
    -config string
        Path to configuration file (default: "./configs/proxywatch.yaml")

    -listen string
        Dashboard listen address (overrides config file setting)

    -version
        Show version information and exit

    -help
        Show this help message

CHANNELS:
    /ws/alert           restricted-domain alerts and off-hours warnings
    /ws                 client Online/Offline transitions
    /ws/visualizations  aggregated statistics, refreshed every minute

SIGNALS:
    SIGINT, SIGTERM - Graceful shutdown
`, version, os.Args[0])
}
