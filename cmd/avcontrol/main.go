// avcontrol is the device-control daemon for the sports-bar AV system.
//
// It owns the matrix switcher, the CEC adapter, the IR service client and
// the audio processor connection, and exposes them over MQTT:
//   - TV control with CEC/IR method selection and fallback
//   - matrix routing and audio parameter writes
//   - audio meter state and history (MQTT + InfluxDB)
//
// Configuration is read from SPORTSBAR_CONFIG or configs/config.yaml.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	_ "github.com/nerrad567/sportsbar-av/migrations"

	"github.com/nerrad567/sportsbar-av/internal/audit"
	"github.com/nerrad567/sportsbar-av/internal/control"
	"github.com/nerrad567/sportsbar-av/internal/device"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/config"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/database"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/influxdb"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/logging"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
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

// run is the daemon body, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting avcontrol",
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

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing useful to do on shutdown
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"site", cfg.Site.ID,
	)

	unlock, err := acquireLock(cfg.Daemon.LockFile)
	if err != nil {
		return err
	}
	defer unlock()

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// TV catalogue
	registry, err := loadRegistry(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	controlLog := audit.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Device bridges
	hw := startHardware(ctx, cfg, mqttClient, influxClient, log)
	defer hw.stop(log)

	// Orchestrator and MQTT command bridge
	orchestrator := control.NewOrchestrator(hw.controlConfig(cfg))
	orchestrator.SetLogger(log)
	orchestrator.SetOnResult(resultSink(controlLog, influxClient, log))

	commandBridge, err := control.NewBridge(control.BridgeConfig{
		Broker:       mqttClient,
		Orchestrator: orchestrator,
		Devices:      registry,
		Router:       hw.router(),
		Audio:        hw.audioSetter(),
		Batch: control.BatchOptions{
			Sequential:   cfg.Control.Sequential,
			DelayBetween: cfg.Control.DelayBetween,
			Parallelism:  cfg.Control.Parallelism,
		},
	})
	if err != nil {
		return fmt.Errorf("creating control bridge: %w", err)
	}
	commandBridge.SetLogger(log)
	if err := commandBridge.Start(ctx); err != nil {
		return fmt.Errorf("starting control bridge: %w", err)
	}
	defer func() {
		log.Info("stopping control bridge")
		commandBridge.Stop()
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"tvs", registry.Count(),
		"commands", len(control.Commands()),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	stats := orchestrator.Stats()
	log.Info("avcontrol stopped",
		"controls", stats.Total,
		"failed", stats.Failed,
		"fallbacks", stats.Fallbacks,
	)
	return nil
}

// getConfigPath returns SPORTSBAR_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("SPORTSBAR_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// acquireLock takes the daemon lock file so two daemons never drive the
// same matrix and CEC bus.
func acquireLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another avcontrol holds %s", path)
	}
	return func() { _ = lock.Unlock() }, nil //nolint:errcheck // released on exit regardless
}

// loadRegistry seeds the TV table from the devices file (if configured)
// and warms the registry cache.
func loadRegistry(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (*device.Registry, error) {
	repo := device.NewSQLiteRepository(db.DB)

	if cfg.DevicesFile != "" {
		tvs, err := device.LoadSeedFile(cfg.DevicesFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Warn("devices file not found, skipping seed", "path", cfg.DevicesFile)
		case err != nil:
			return nil, fmt.Errorf("loading devices file: %w", err)
		default:
			created, seedErr := device.Seed(ctx, repo, tvs, log)
			if seedErr != nil {
				return nil, fmt.Errorf("seeding devices: %w", seedErr)
			}
			log.Info("devices seeded", "path", cfg.DevicesFile, "created", created, "in_file", len(tvs))
		}
	}

	registry := device.NewRegistry(repo)
	registry.SetLogger(log)
	if err := registry.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading device registry: %w", err)
	}
	log.Info("device registry initialised", "tvs", registry.Count())
	return registry, nil
}

// resultSink records every control result in the control log and, when
// enabled, InfluxDB.
func resultSink(repo audit.Repository, influxClient *influxdb.Client, log *logging.Logger) func(control.Result) {
	return func(res control.Result) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := repo.Record(ctx, audit.FromResult(res)); err != nil {
			log.Warn("failed to record control result", "id", res.ID, "error", err)
		}

		if influxClient != nil {
			influxClient.WriteControlResult(influxdb.ControlPoint{
				DeviceID:     res.DeviceID,
				Command:      res.Command,
				Method:       string(res.Method),
				Success:      res.Success,
				FallbackUsed: res.FallbackUsed,
				Duration:     res.Duration,
				At:           res.Timestamp,
			})
		}
	}
}

// healthCheck verifies infrastructure connections. Device bridges are
// allowed to come up late and are not checked here.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
