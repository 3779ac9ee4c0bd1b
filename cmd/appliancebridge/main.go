// Appliance Bridge - register translation for smart-home appliances
//
// This is the main entry point for the appliance bridge. It translates the
// raw register values appliances report over MQTT into semantic properties
// for a home-automation hub, and turns hub commands back into register
// writes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/api"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/audit"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/auth"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/bridges/hub"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/bridges/registers"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/device"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/discovery"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/engine"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/models"
	"github.com/nerrad567/gray-logic-appliance-bridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// shutdownTimeout bounds how long devices get to drain and persist.
const shutdownTimeout = 15 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runToken mints an API bearer token signed with the configured secret.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	scope := fs.String("scope", auth.ScopeControl, "token scope: read or control")
	ttl := fs.Duration("ttl", 0, "token lifetime (default security.jwt.token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: appliancebridge token [-scope read|control] [-ttl 720h] <subject>")
	}

	cfg, err := config.Load(config.GetConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = time.Duration(cfg.Security.JWT.TokenTTL) * time.Minute
	}

	token, err := auth.IssueToken(cfg.Security.JWT.Secret, fs.Arg(0), *scope, lifetime)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup wiring is sequential by nature
	log := logging.Default()
	log.Info("starting appliance bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.GetConfigPath()
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

	ms, err := migrations.All()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	applied, err := db.Migrate(ctx, ms)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path(), "migrations_applied", applied)

	// MQTT
	topics := mqtt.Topics{Base: cfg.Hub.BaseTopic, Registers: cfg.Registers.TopicPrefix}
	availability := topics.BridgeStatus(cfg.Bridge.ID)

	mqttClient, err := mqtt.Connect(cfg.MQTT, availability)
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

	// InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub lives for the whole run so devices can publish to it
	// whether or not the HTTP API is enabled.
	wsHub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	wsCtx, wsCancel := context.WithCancel(ctx)
	defer wsCancel()
	go wsHub.Run(wsCtx)

	// Devices and bridges
	manager := device.NewManager()
	manager.SetLogger(log.Component("devices"))

	commandLog := audit.NewSQLiteRepository(db.DB)
	auditLog := log.Component("audit")

	transport, err := registers.New(registers.Options{
		Client: mqttClient,
		Topics: topics,
		Sink:   manager,
		QoS:    byte(cfg.MQTT.QoS),
		Logger: log.Component("registers"),
	})
	if err != nil {
		return fmt.Errorf("creating register transport: %w", err)
	}

	hubBridge, err := hub.New(hub.Options{
		Client:            mqttClient,
		Topics:            topics,
		Commander:         newAuditedManager(manager, commandLog, audit.SourceHub, auditLog),
		QoS:               byte(cfg.MQTT.QoS),
		Discovery:         cfg.Hub.Discovery,
		DiscoveryPrefix:   cfg.Hub.DiscoveryPrefix,
		AvailabilityTopic: availability,
		Origin:            discovery.Origin{Name: logging.ServiceName, SWVersion: version},
		Logger:            log.Component("hub"),
	})
	if err != nil {
		return fmt.Errorf("creating hub bridge: %w", err)
	}

	failureLog := device.NewSQLiteFailureLog(db.DB)
	failureLog.SetLogger(log.Component("failures"))
	failureLog.Start()
	defer failureLog.Stop()

	publishers := device.FanOut{hubBridge, wsHub}
	if influxClient != nil {
		publishers = append(publishers, influxClient)
	}

	devices, err := buildDevices(cfg, deviceDeps{
		Publisher:  publishers,
		Sender:     transport,
		Observer:   failureLog,
		Repository: device.NewSQLiteSnapshotRepository(db.DB),
		Logger:     log.Component("device"),
	})
	if err != nil {
		return err
	}
	for _, d := range devices {
		if addErr := manager.Add(d); addErr != nil {
			return fmt.Errorf("registering device: %w", addErr)
		}
		hubBridge.AddDevice(d)
	}
	if len(devices) == 0 {
		log.Warn("no devices configured")
	}

	if startErr := manager.Start(ctx); startErr != nil {
		return fmt.Errorf("starting devices: %w", startErr)
	}
	defer func() {
		log.Info("stopping devices")
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := manager.Stop(stopCtx); stopErr != nil {
			log.Error("error stopping devices", "error", stopErr)
		}
	}()

	if startErr := transport.Start(); startErr != nil {
		return fmt.Errorf("starting register transport: %w", startErr)
	}
	defer func() {
		log.Info("stopping register transport")
		if stopErr := transport.Stop(); stopErr != nil {
			log.Error("error stopping register transport", "error", stopErr)
		}
	}()

	if startErr := hubBridge.Start(); startErr != nil {
		return fmt.Errorf("starting hub bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping hub bridge")
		hubBridge.Stop()
	}()
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected, resyncing hub")
		hubBridge.Resync()
	})

	// Health reporting
	health := hub.NewHealthReporter(hub.HealthReporterConfig{
		BridgeID:  cfg.Bridge.ID,
		Version:   version,
		Topic:     topics.BridgeHealth(cfg.Bridge.ID),
		Interval:  cfg.GetHealthInterval(),
		Publisher: mqttClient,
		Devices:   manager,
		Transport: transport,
		Commands:  hubBridge,
		Logger:    log.Component("health"),
	})
	if pubErr := health.PublishStarting(); pubErr != nil {
		log.Warn("publishing starting status failed", "error", pubErr)
	}
	health.Start(ctx)
	defer health.Stop()

	// HTTP API (optional)
	if cfg.API.Enabled {
		checks := map[string]api.HealthChecker{
			"database": db,
			"mqtt":     mqttClient,
		}
		if influxClient != nil {
			checks["influxdb"] = influxClient
		}
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.Component("api"),
			Devices:  newAuditedManager(manager, commandLog, audit.SourceAPI, auditLog),
			Failures: failureLog,
			Commands: commandLog,
			Checks:   checks,
			Hub:      wsHub,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr := server.Start(ctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("HTTP API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"devices", manager.Count(),
		"instance_id", health.InstanceID(),
	)

	<-ctx.Done()

	// Deferred calls run in reverse order: API, health, hub bridge,
	// register transport, devices (drain and persist), InfluxDB, MQTT,
	// database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// auditedManager records every property write made through it in the
// command log.
type auditedManager struct {
	*device.Manager
	writes *audit.Recorder
}

func newAuditedManager(m *device.Manager, repo audit.Repository, source string, logger audit.Logger) auditedManager {
	return auditedManager{Manager: m, writes: audit.NewRecorder(m, repo, source, logger)}
}

// SetProperty shadows device.Manager.SetProperty.
func (m auditedManager) SetProperty(ctx context.Context, deviceID, name string, v field.Value) error {
	return m.writes.SetProperty(ctx, deviceID, name, v)
}

// deviceDeps are shared by every configured device.
type deviceDeps struct {
	Publisher  engine.Publisher
	Sender     engine.RawSender
	Observer   engine.Observer
	Repository device.SnapshotRepository
	Logger     device.Logger
}

// buildDevices creates one device per configured entry.
func buildDevices(cfg *config.Config, deps deviceDeps) ([]*device.Device, error) {
	out := make([]*device.Device, 0, len(cfg.Devices))
	for _, dc := range cfg.Devices {
		model, err := models.Lookup(dc.Model)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w (known models: %v)", dc.ID, err, models.IDs())
		}
		d, err := device.New(device.Options{
			ID:              dc.ID,
			Name:            dc.Name,
			Model:           model,
			Publisher:       deps.Publisher,
			Sender:          deps.Sender,
			Observer:        deps.Observer,
			Repository:      deps.Repository,
			MaxCascadeDepth: cfg.Engine.MaxCascadeDepth,
			QueueSize:       cfg.Engine.QueueSize,
			PersistInterval: cfg.GetPersistInterval(),
			Logger:          deps.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating device %s: %w", dc.ID, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// healthCheck verifies all infrastructure connections are healthy.
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
