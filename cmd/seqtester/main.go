// SequenceTester - hardware simulation harness
//
// This is the main entry point for the sequence tester. It runs a simulated
// camera whose frames carry a packed snapshot of every device setting, so
// acquisition engines can be tested against known device state without
// real hardware.
//
// Frames are archived to SQLite, streamed over WebSocket, and optionally
// published over MQTT and summarised in InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/seqtester/internal/api"
	"github.com/nerrad567/seqtester/internal/archive"
	"github.com/nerrad567/seqtester/internal/camera"
	"github.com/nerrad567/seqtester/internal/command"
	"github.com/nerrad567/seqtester/internal/infrastructure/config"
	"github.com/nerrad567/seqtester/internal/infrastructure/database"
	"github.com/nerrad567/seqtester/internal/infrastructure/influxdb"
	"github.com/nerrad567/seqtester/internal/infrastructure/logging"
	"github.com/nerrad567/seqtester/internal/infrastructure/mqtt"
	"github.com/nerrad567/seqtester/internal/setting"
	"github.com/nerrad567/seqtester/migrations"
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

// pruneInterval is how often archived frames past retention are deleted.
const pruneInterval = 10 * time.Minute

func main() {
	// Cancel on Ctrl+C or SIGTERM so deferred cleanup runs.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting sequence tester",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version).With("tester_id", cfg.Tester.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open frame archive
	db, err := database.Open(cfg.Database)
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	frames := archive.NewSQLiteRepository(db.DB)
	if cfg.Database.RetentionHours > 0 {
		go pruneFrames(ctx, frames, time.Duration(cfg.Database.RetentionHours)*time.Hour, log)
	}

	// Setting logger and simulated camera
	settings := setting.NewLogger()
	settings.SetLogger(log.Component("setting"))

	sim := camera.NewSimulator(settings, camera.Config{
		Name:          cfg.Camera.Name,
		BufferSize:    cfg.Camera.BufferSize,
		MaxBufferSize: cfg.Camera.MaxBufferSize,
		ExposureMs:    cfg.Camera.ExposureMs,
	})
	sim.SetLogger(log.Component("camera"))
	sim.AddSink(frames)
	log.Info("camera simulator ready", "camera", sim.Name(), "run_id", sim.RunID())

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg, settings, sim, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sim.AddSink(camera.NewMetricsSink(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start HTTP API
	apiServer, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Logger:        log.Component("api"),
		Settings:      settings,
		Camera:        sim,
		Frames:        frames,
		MQTT:          mqttClient,
		DB:            db,
		FrameInterval: time.Duration(cfg.Camera.FrameInterval) * time.Millisecond,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	sim.AddSink(apiServer.Hub())

	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops any running sequence)
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("sequence tester stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SEQTESTER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SEQTESTER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads the configuration file. A missing file at the default
// path falls back to built-in defaults; an explicitly configured path must
// exist.
func loadConfig(log *logging.Logger) (*config.Config, error) {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err == nil {
		log.Info("configuration loaded", "path", configPath)
		return cfg, nil
	}

	if configPath != defaultConfigPath || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg, err = config.Default()
	if err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}
	log.Warn("config file not found, using defaults", "path", configPath)
	return cfg, nil
}

// connectMQTT connects to the broker, subscribes to setting commands and
// registers the frame publisher as a camera sink.
func connectMQTT(cfg *config.Config, settings *setting.Logger, sim *camera.Simulator, log *logging.Logger) (*mqtt.Client, error) {
	topics := mqtt.Topics{TesterID: cfg.Tester.ID}

	client, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	qos := byte(cfg.MQTT.QoS)

	handler := command.NewHandler(settings, topics, client, qos)
	handler.SetLogger(log.Component("command"))
	if err := client.Subscribe(topics.AllCommands(), qos, handler.HandleMessage); err != nil {
		client.Close() //nolint:errcheck // best effort on error path
		return nil, fmt.Errorf("subscribing to commands: %w", err)
	}
	log.Info("listening for setting commands", "topic", topics.AllCommands())

	sim.AddSink(camera.NewMQTTSink(client, topics.Frame, qos))
	return client, nil
}

// pruneFrames deletes archived frames older than retention until ctx ends.
func pruneFrames(ctx context.Context, frames archive.Repository, retention time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := frames.Prune(ctx, retention)
			if err != nil {
				log.Error("pruning archived frames", "error", err)
				continue
			}
			if n > 0 {
				log.Info("pruned archived frames", "deleted", n, "retention", retention)
			}
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (nil if disabled)
//   - influxClient: InfluxDB client to check (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
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
