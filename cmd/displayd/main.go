// displayd - monitor brightness control service
//
// displayd discovers every attached monitor, binds each one to the backend
// that can control it (DDC/CI, WMI, HDR SDR white level) and exposes a
// uniform brightness and contrast contract over a local HTTP API and MQTT.
//
// Usage:
//
//	displayd [--config path] [--preclude id]... [--preclear id]... [--simulate file] [--diagnose]
//
// --diagnose runs one reconciliation, round-trips every monitor and prints a
// JSON report on stdout instead of starting the service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-displays/internal/api"
	"github.com/nerrad567/gray-logic-displays/internal/bridge"
	"github.com/nerrad567/gray-logic-displays/internal/calibration"
	"github.com/nerrad567/gray-logic-displays/internal/diagnostics"
	"github.com/nerrad567/gray-logic-displays/internal/display"
	"github.com/nerrad567/gray-logic-displays/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-displays/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-displays/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-displays/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-displays/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
	"github.com/nerrad567/gray-logic-displays/internal/platform"
	"github.com/nerrad567/gray-logic-displays/internal/platform/native"
	"github.com/nerrad567/gray-logic-displays/internal/platform/simulated"
	"github.com/nerrad567/gray-logic-displays/internal/reconcile"
	"github.com/nerrad567/gray-logic-displays/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path, used when it exists and neither
// --config nor DISPLAYD_CONFIG is set.
const defaultConfigPath = "configs/displayd.yaml"

// sensorTimeout bounds the one-off ambient light sensor query.
const sensorTimeout = 5 * time.Second

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flags holds the parsed command line.
type flags struct {
	configPath string
	preclude   []string
	preclear   []string
	simulate   string
	diagnose   bool
}

// parseFlags parses process arguments.
func parseFlags(args []string) (flags, error) {
	var f flags
	fs := pflag.NewFlagSet("displayd", pflag.ContinueOnError)
	fs.StringVarP(&f.configPath, "config", "c", "", "path to the YAML configuration file")
	fs.StringArrayVar(&f.preclude, "preclude", nil, "monitor identity never to enumerate (repeatable)")
	fs.StringArrayVar(&f.preclear, "preclear", nil, "monitor identity to bind to DDC/CI without detection (repeatable)")
	fs.StringVar(&f.simulate, "simulate", "", "run against the simulated monitors described in this YAML file")
	fs.BoolVar(&f.diagnose, "diagnose", false, "print a diagnostic report and exit")

	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	if fs.NArg() > 0 {
		return flags{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return f, nil
}

// getConfigPath resolves the configuration file. An empty result means
// defaults plus environment overrides.
func getConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv("DISPLAYD_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// loadConfig loads the configuration and merges command-line overrides.
func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Load(getConfigPath(f.configPath))
	if err != nil {
		return nil, err
	}

	if f.simulate != "" {
		cfg.Display.Platform = config.PlatformSimulated
		cfg.Display.SimulatedFile = f.simulate
	}
	cfg.Display.Precluded = append(cfg.Display.Precluded, f.preclude...)
	cfg.Display.Precleared = append(cfg.Display.Precleared, f.preclear...)

	if f.diagnose {
		// stdout carries the report.
		cfg.Logging.Output = "stderr"
	}
	return cfg, nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Process arguments without the program name
//   - stdout: Destination of the --diagnose report
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, stdout io.Writer) error {
	log := logging.Default()

	f, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(f)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("starting displayd",
		"version", version,
		"commit", commit,
		"build_date", date,
		"platform", cfg.Display.Platform,
	)

	p, err := openPlatform(cfg.Display)
	if err != nil {
		return fmt.Errorf("opening platform: %w", err)
	}
	defer func() {
		if closeErr := p.Close(); closeErr != nil {
			log.Error("error closing platform", "error", closeErr)
		}
	}()

	store := calibration.NewStore(calibration.Options{
		Capacity:  cfg.Calibration.Capacity,
		Persister: calibration.JSONFile{Path: cfg.Calibration.Path},
		Logger:    log.Component("calibration"),
	})
	store.Load()
	defer func() {
		if flushErr := store.Flush(); flushErr != nil {
			log.Error("error saving calibration", "error", flushErr)
		}
	}()

	reconciler := newReconciler(ctx, p, cfg, store, log)

	if f.diagnose {
		return runDiagnostics(ctx, reconciler, stdout)
	}

	// Stopped before the deferred final Flush above runs.
	flushCtx, stopFlush := context.WithCancel(ctx)
	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		store.AutoFlush(flushCtx, cfg.Calibration.FlushInterval)
	}()
	defer func() {
		stopFlush()
		<-flushDone
	}()

	var recorders display.Recorders

	var db *database.DB
	if cfg.Database.HistoryEnabled {
		db, err = openDatabase(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	}

	var history *display.SQLiteHistoryRepository
	if db != nil {
		history = display.NewSQLiteHistoryRepository(db.DB)
		if cfg.Database.HistoryRetention > 0 {
			pruned, pruneErr := history.Prune(ctx, cfg.Database.HistoryRetention)
			if pruneErr != nil {
				log.Warn("history prune failed", "error", pruneErr)
			} else if pruned > 0 {
				log.Info("pruned history", "rows", pruned)
			}
		}
		recorders = append(recorders, display.NewHistoryRecorder(history))
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		recorders = append(recorders, telemetryRecorder{client: influxClient})
	} else {
		log.Info("InfluxDB disabled")
	}

	registry := display.NewRegistry(reconciler, display.Options{
		Recorder:        recorders,
		RefreshInterval: cfg.Display.RefreshInterval,
		Logger:          log.Component("display"),
	})
	defer func() {
		if closeErr := registry.Close(); closeErr != nil {
			log.Error("error closing registry", "error", closeErr)
		}
	}()
	if influxClient != nil {
		registry.AddListener(scanMetrics(registry, influxClient))
	}

	// A failed first scan leaves an empty roster; Watch retries on the next
	// detected change.
	if scan, scanErr := registry.Scan(ctx); scanErr != nil {
		log.Warn("initial scan failed", "error", scanErr)
	} else {
		log.Info("monitors discovered", "monitors", scan.Monitors, "roster_id", scan.ID)
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		b, bridgeErr := bridge.NewBridge(bridge.BridgeOptions{
			MQTTClient: mqttClient,
			Registry:   registry,
			Topics:     mqttClient.Topics(),
			QoS:        byte(cfg.MQTT.QoS),
			Version:    version,
			Logger:     log.Component("bridge"),
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", bridgeErr)
		}
		if startErr := b.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			b.Stop()
		}()
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log.Component("api"),
			Registry: registry,
			DB:       db,
			Version:  version,
		}
		if history != nil {
			deps.History = history
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		srv, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, watching for monitor changes")

	if err := registry.Watch(ctx, cfg.Display.ProbeInterval); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watching monitors: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")
	// Deferred Close() calls run in reverse order: API, bridge, MQTT,
	// registry, InfluxDB, database, calibration, platform.
	log.Info("displayd stopped")
	return nil
}

// openPlatform selects the OS backend.
func openPlatform(cfg config.DisplayConfig) (platform.Platform, error) {
	switch cfg.Platform {
	case config.PlatformSimulated:
		sim, err := simulated.Load(cfg.SimulatedFile)
		if err != nil {
			return nil, err
		}
		return sim, nil
	default:
		return native.New()
	}
}

// newReconciler builds the reconciler from configuration. Platform facts
// that never change while running are queried once here.
func newReconciler(ctx context.Context, p platform.Platform, cfg *config.Config, store *calibration.Store, log *logging.Logger) *reconcile.Reconciler {
	sensorCtx, cancel := context.WithTimeout(ctx, sensorTimeout)
	defer cancel()

	var env monitor.Environment
	present, err := p.AmbientLightSensor(sensorCtx)
	if err != nil {
		log.Warn("ambient light sensor query failed", "error", err)
	}
	env.AmbientLightSensor = present

	return reconcile.New(p, reconcile.Options{
		Precluded:   monitor.NewIdentitySet(cfg.Display.Precluded...),
		Precleared:  monitor.NewIdentitySet(cfg.Display.Precleared...),
		EnableHDR:   cfg.Display.EnableHDR,
		Timeout:     cfg.Display.EnumerationTimeout,
		Calibration: store,
		Environment: env,
		Controller: monitor.Options{
			InitialAllowance: cfg.Display.Confidence.Initial,
			NormalAllowance:  cfg.Display.Confidence.Normal,
			Logger:           log.Component("monitor"),
		},
		Logger: log.Component("reconcile"),
	})
}

// runDiagnostics prints one probe report as indented JSON.
func runDiagnostics(ctx context.Context, scanner diagnostics.Scanner, stdout io.Writer) error {
	report, err := diagnostics.Run(ctx, scanner, diagnostics.Options{Version: version})
	if err != nil {
		return fmt.Errorf("running diagnostics: %w", err)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// openDatabase opens the SQLite database and applies migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Path)

	applied, err := db.Migrate(ctx, migrations.Source())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete", "applied", len(applied))
	return db, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// Disabled components are nil and skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
