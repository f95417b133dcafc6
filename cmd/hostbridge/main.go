// Hostbridge Core - Task and Connection Registry
//
// This is the main entry point for the Hostbridge Core service. It owns
// the entity registry, the event correlation bridge and the session
// manager, talks to the native side through a pluggable capability
// gateway, and exposes everything to host clients over REST and
// WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/hostbridge/hostbridge-core/migrations"

	"github.com/hostbridge/hostbridge-core/internal/api"
	"github.com/hostbridge/hostbridge-core/internal/bridge"
	"github.com/hostbridge/hostbridge-core/internal/entity"
	"github.com/hostbridge/hostbridge-core/internal/gateway"
	"github.com/hostbridge/hostbridge-core/internal/gateway/mqttgw"
	"github.com/hostbridge/hostbridge-core/internal/infrastructure/config"
	"github.com/hostbridge/hostbridge-core/internal/infrastructure/database"
	"github.com/hostbridge/hostbridge-core/internal/infrastructure/logging"
	"github.com/hostbridge/hostbridge-core/internal/infrastructure/mqtt"
	"github.com/hostbridge/hostbridge-core/internal/infrastructure/tsdb"
	"github.com/hostbridge/hostbridge-core/internal/journal"
	"github.com/hostbridge/hostbridge-core/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hostbridge Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Event journal (optional)
	var eventJournal *journal.Journal
	if cfg.Journal.Enabled {
		db, openErr := database.Open(cfg.Journal.Database)
		if openErr != nil {
			return fmt.Errorf("opening journal database: %w", openErr)
		}
		defer func() {
			log.Info("closing journal database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing journal database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running journal migrations: %w", migrateErr)
		}
		log.Info("journal database ready", "path", cfg.Journal.Database.Path)

		eventJournal = journal.New(db, cfg.Journal.MaxEvents, log)
		defer func() {
			if closeErr := eventJournal.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
	} else {
		log.Info("event journal disabled")
	}

	// Telemetry (optional)
	var telemetry *tsdb.Client
	if cfg.Telemetry.Enabled {
		telemetry, err = tsdb.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting to telemetry store: %w", err)
		}
		defer func() {
			log.Info("closing telemetry connection")
			if closeErr := telemetry.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		telemetry.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		log.Info("telemetry connected",
			"url", cfg.Telemetry.URL,
			"org", cfg.Telemetry.Org,
			"bucket", cfg.Telemetry.Bucket,
		)
	} else {
		log.Info("telemetry disabled")
	}

	// Capability gateway driver
	gw, cleanup, err := buildGateway(cfg, log)
	if err != nil {
		return fmt.Errorf("starting gateway driver: %w", err)
	}
	defer cleanup()

	// Registry, bridge, hub and session manager
	registry := entity.NewRegistry()
	registry.SetLogger(log)

	hub := api.NewHub(cfg.WebSocket, log)

	b := bridge.New(gw, hub, registry)
	b.SetLogger(log)
	if eventJournal != nil {
		b.SetRecorder(eventJournal)
	}
	if telemetry != nil {
		b.SetMetrics(telemetry)
	}

	manager := session.NewManager(registry, b, gw)
	manager.SetLogger(log)
	if telemetry != nil {
		manager.SetMetrics(telemetry)
	}

	// API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Manager:     manager,
		Registry:    registry,
		Journal:     eventJournal,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Halt everything still running on the native side before the
	// deferred Close() calls unwind.
	shutdownCtx := context.WithoutCancel(ctx)
	if manager.HasRunning() {
		res := manager.StopAll(shutdownCtx)
		if !res.Success {
			log.Warn("stop-all during shutdown failed", "error", res.Message)
		}
	}

	log.Info("Hostbridge Core stopped")
	return nil
}

// buildGateway creates the configured gateway driver. The returned cleanup
// releases the driver and any transport it owns.
func buildGateway(cfg *config.Config, log *logging.Logger) (gateway.Gateway, func(), error) {
	switch strings.ToLower(cfg.Gateway.Driver) {
	case "loopback":
		gw := gateway.NewLoopback(gateway.LoopbackConfig{
			GrantedPermissions: cfg.Gateway.Loopback.GrantedPermissions,
			DeniedPermissions:  cfg.Gateway.Loopback.DeniedPermissions,
			Latency:            loopbackLatency(cfg.Gateway.Loopback.LatencyMS),
		})
		gw.SetLogger(log)
		log.Info("loopback gateway driver started")
		return gw, func() {
			if err := gw.Close(); err != nil {
				log.Error("error closing loopback gateway", "error", err)
			}
		}, nil

	case "mqtt":
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(log)
		client.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		client.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		gw := mqttgw.New(client, mqttgw.Options{
			QoS:               byte(cfg.MQTT.QoS),
			PermissionTimeout: permissionTimeout(cfg.Gateway.PermissionTimeout),
			Logger:            log,
		})
		log.Info("mqtt gateway driver started")
		return gw, func() {
			if err := gw.Close(); err != nil {
				log.Error("error closing mqtt gateway", "error", err)
			}
			log.Info("disconnecting from MQTT")
			if err := client.Close(); err != nil {
				log.Error("error closing MQTT", "error", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", gateway.ErrUnknownDriver, cfg.Gateway.Driver)
	}
}

// loopbackLatency converts the configured artificial latency to a duration.
func loopbackLatency(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// permissionTimeout converts the configured permission round-trip bound
// to a duration. Zero falls back to the driver default.
func permissionTimeout(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// getConfigPath returns the configuration file path.
// Uses HOSTBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOSTBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
