package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/depthcore/internal/api"
	"github.com/nerrad567/depthcore/internal/bridges/structurecore"
	"github.com/nerrad567/depthcore/internal/capture"
	"github.com/nerrad567/depthcore/internal/infrastructure/config"
	"github.com/nerrad567/depthcore/internal/infrastructure/database"
	"github.com/nerrad567/depthcore/internal/infrastructure/influxdb"
	"github.com/nerrad567/depthcore/internal/infrastructure/logging"
	"github.com/nerrad567/depthcore/internal/infrastructure/mqtt"
	"github.com/nerrad567/depthcore/internal/sensor"
	"github.com/nerrad567/depthcore/internal/structure"
	"github.com/nerrad567/depthcore/internal/telemetry"
	"github.com/nerrad567/depthcore/internal/watch"
	"github.com/nerrad567/depthcore/migrations"
)

const (
	// historyRetention is how long sensor events are kept.
	historyRetention = 30 * 24 * time.Hour

	pruneInterval = 24 * time.Hour
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sensor service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), config.Path(*configPath))
		},
	}
}

// run is the service lifecycle, separated from the command for testability.
//
// Parameters:
//   - ctx: Cancelled on shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting depthcore",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database
	db, err := database.Open(database.Config{
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Capture layer and manager
	layer, err := openLayer(cfg.Capture)
	if err != nil {
		return err
	}
	opts := []structure.Option{
		structure.WithLogger(log.Component("structure")),
		structure.WithQueueSize(cfg.Capture.DispatchQueue),
		structure.WithDiscoveryTimeout(cfg.Capture.DiscoveryTimeout),
	}
	if cfg.Capture.SingleSession {
		opts = append(opts, structure.WithSingleSession())
	}
	mgr := structure.NewManager(layer, opts...)
	defer mgr.Close()

	// Sensor registry, subscribed before enumeration so no event is missed
	registry := sensor.NewRegistry(
		sensor.NewSQLiteRepository(db.DB),
		sensor.NewSQLiteEventHistoryRepository(db.DB),
		sensor.DefaultQueueSize,
	)
	registry.SetLogger(log.Component("sensor"))
	registry.SetInfoSource(func(serial string) (capture.SensorInfo, bool) {
		d, ok := mgr.DeviceBySerial(serial)
		if !ok {
			return capture.SensorInfo{}, false
		}
		info := d.SensorInfo()
		return info, info.Identified()
	})
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading sensor registry: %w", refreshErr)
	}
	registry.Start()
	defer registry.Close()
	mgr.Router().Subscribe(registry.HandleNotification)
	log.Info("sensor registry initialised", "sensors", registry.Count())

	if initErr := mgr.Initialize(ctx); initErr != nil {
		return fmt.Errorf("initialising capture layer: %w", initErr)
	}
	log.Info("capture layer initialised", "driver", cfg.Capture.Driver, "sessions", layer.NumSessions())

	// MQTT
	var (
		mqttClient *mqtt.Client
		bridge     *structurecore.Bridge
	)
	if cfg.MQTT.Enabled {
		topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
		mqttClient, err = mqtt.Connect(cfg.MQTT,
			mqtt.WithWill(structurecore.HealthTopic(topics), structurecore.LWTPayload()))
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
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
			log.Error("InfluxDB write error", "error", err, "failed_batches", influxClient.FailedBatches())
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Devices
	devices := configureDevices(ctx, mgr, registry, cfg.Sensors, log)
	defer func() {
		for _, d := range devices {
			d.Close()
		}
	}()

	loop := structure.NewUpdateLoop(mgr, cfg.Capture.TickInterval)
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	go loop.Run(loopCtx) //nolint:errcheck // returns ctx.Err() on shutdown

	// Bridge
	if mqttClient != nil {
		bridge, err = structurecore.NewBridge(structurecore.Options{
			MQTT:    mqttClient,
			Topics:  mqttClient.Topics(),
			Devices: structurecore.FromManager(mgr),
			Sensors: mgr.NumDevices,
			Version: version,
			Logger:  log.Component("bridge"),
		})
		if err != nil {
			return fmt.Errorf("creating bridge: %w", err)
		}
		mgr.Router().Subscribe(bridge.HandleNotification)
		if startErr := bridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping bridge")
			bridge.Stop()
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
			bridge.HandleReconnect()
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("bridge started", "commands", mqttClient.Topics().AllCommands())
	}

	// Settings watcher
	if cfg.Capture.SettingsFile != "" {
		watcher, watchErr := watch.New(cfg.Capture.SettingsFile, watch.FromManager(mgr), log.Component("watch"))
		if watchErr != nil {
			return fmt.Errorf("creating settings watcher: %w", watchErr)
		}
		if startErr := watcher.Start(); startErr != nil {
			return fmt.Errorf("starting settings watcher: %w", startErr)
		}
		defer watcher.Stop()
		mgr.Router().Subscribe(watcher.HandleNotification)
	}

	// Telemetry
	if influxClient != nil {
		sensors, routerStats := telemetry.FromManager(mgr)
		sampler := telemetry.NewSampler(telemetry.Config{
			Interval: cfg.GetSampleInterval(),
			Sink:     influxClient,
			Sensors:  sensors,
			Router:   routerStats,
			Logger:   log.Component("telemetry"),
		})
		sampler.Start(ctx)
		defer sampler.Stop()
		log.Info("telemetry sampler started", "interval", cfg.GetSampleInterval())
	}

	// API
	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log.Component("api"),
		Sensors:     registry,
		Devices:     api.DevicesFromManager(mgr),
		RouterStats: mgr.Router().Stats,
		DB:          db.DB,
		Version:     version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	mgr.Router().Subscribe(server.Hub().HandleNotification)
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	go pruneLoop(ctx, registry, log)

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred teardown runs in reverse: API, telemetry, watcher, bridge,
	// update loop, devices, InfluxDB, MQTT, registry, manager, database.
	log.Info("depthcore stopped")
	return nil
}

// configureDevices creates a Device per sensors[] entry, attaches it and
// starts streaming for auto_start entries. Entries that fail to configure
// are logged and skipped.
func configureDevices(ctx context.Context, mgr *structure.Manager, registry *sensor.Registry, sensors []config.SensorConfig, log *logging.Logger) []*structure.Device {
	devices := make([]*structure.Device, 0, len(sensors))
	for i, sc := range sensors {
		settings := sc.Settings
		settings.Serial = sc.Serial

		d := structure.NewDevice(mgr)
		d.SetLogger(log.Component("device").With("index", i))
		if !d.Configure(ctx, settings) {
			log.Error("sensor not configured", "index", i, "serial", sc.Serial)
			continue
		}
		devices = append(devices, d)

		if serial := d.Serial(); capture.IsKnownSerial(serial) {
			if err := registry.Register(ctx, serial, sc.Name); err != nil {
				log.Warn("registering sensor name failed", "serial", serial, "error", err)
			}
		}

		if !sc.AutoStart {
			continue
		}
		if sc.StartTimeout == 0 {
			d.Start(0)
			continue
		}
		go func(d *structure.Device, timeout time.Duration) {
			if !d.Start(timeout) {
				log.Warn("auto start timed out", "serial", d.Serial(), "timeout", timeout)
			}
		}(d, sc.StartTimeout)
	}
	log.Info("devices configured", "configured", len(devices), "requested", len(sensors))
	return devices
}

// pruneLoop deletes sensor events older than historyRetention, once at
// startup and then daily.
func pruneLoop(ctx context.Context, registry *sensor.Registry, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		if _, err := registry.PruneHistory(ctx, historyRetention); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("pruning sensor history failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
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
