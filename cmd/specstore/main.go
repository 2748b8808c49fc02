// Specstore - device specification store
//
// specstore opens the configured wide-column backend, wires the
// specification repository to its event and telemetry sinks and serves
// Prometheus metrics until it receives a shutdown signal.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-specstore/internal/device"
	"github.com/nerrad567/gray-logic-specstore/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-specstore/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-specstore/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-specstore/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-specstore/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-specstore/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-specstore/internal/uid"
	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn"
	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn/memstore"
	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn/pebblestore"
	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn/sqlitestore"
	"github.com/nerrad567/gray-logic-specstore/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath   = "configs/config.yaml"
	healthCheckInterval = 30 * time.Second
	shutdownTimeout     = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application body, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting specstore",
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
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	ids := uid.NewRegistry(store, cfg.Registry.Category, uid.WithTable(cfg.Registry.Table))
	ids.SetLogger(log)

	prom := metrics.New()
	if ps, ok := store.(*pebblestore.Store); ok {
		if err := prom.RegisterStoreStats(pebbleStats(ps)...); err != nil {
			return fmt.Errorf("registering pebble metrics: %w", err)
		}
	}
	observers := device.Observers{prom}
	opts := []device.Option{device.WithTable(cfg.Store.Table)}

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		opts = append(opts, device.WithEventPublisher(mqtt.NewEventPublisher(mqttClient, byte(cfg.MQTT.QoS))))
	} else {
		log.Info("MQTT disabled, lifecycle events are not published")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
		observers = append(observers, influxdb.NewOperationObserver(influxClient, map[string]string{
			"backend": cfg.Store.Backend,
		}))
	} else {
		log.Info("InfluxDB disabled")
	}

	repo := device.NewStoreRepository(store, ids, append(opts, device.WithObserver(observers))...)
	repo.SetLogger(log)

	if err := store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	prom.SetStoreUp(true)
	log.Info("store healthy", "backend", cfg.Store.Backend)

	if cfg.Metrics.Enabled {
		stop := serve(cfg.Metrics, buildRouter(cfg.Metrics, prom, store), log)
		defer stop()
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	watchHealth(ctx, store, prom, log)

	log.Info("specstore stopped")
	return nil
}

// getConfigPath returns SPECSTORE_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("SPECSTORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openStore opens the configured backend. The returned func closes it and
// anything it owns.
func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (widecolumn.Client, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPebble:
		store, err := pebblestore.Open(cfg.Store.Path, pebblestore.WithSync(cfg.Store.Sync))
		if err != nil {
			return nil, nil, fmt.Errorf("opening pebble store: %w", err)
		}
		log.Info("pebble store opened", "path", cfg.Store.Path, "sync", cfg.Store.Sync)
		return store, func() {
			log.Info("closing pebble store")
			if err := store.Close(); err != nil {
				log.Error("error closing pebble store", "error", err)
			}
		}, nil

	case config.BackendSQLite:
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Store.Path,
			WALMode:     cfg.Store.SQLite.WALMode,
			BusyTimeout: cfg.Store.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("sqlite store opened", "path", cfg.Store.Path)
		store := sqlitestore.New(db)
		return store, func() {
			log.Info("closing sqlite store")
			_ = store.Close()
			if err := db.Close(); err != nil {
				log.Error("error closing database", "error", err)
			}
		}, nil

	case config.BackendMemory:
		log.Warn("using in-memory store, data is lost on shutdown")
		store := memstore.New()
		return store, func() { _ = store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// serve starts the operations endpoint and returns a func that shuts it
// down.
func serve(cfg config.MetricsConfig, handler http.Handler, log *logging.Logger) func() {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("operations endpoint listening", "addr", cfg.Listen, "metrics_path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("operations endpoint failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("error stopping operations endpoint", "error", err)
		}
	}
}

// watchHealth checks the store periodically until ctx is done.
func watchHealth(ctx context.Context, store widecolumn.Client, m *metrics.Metrics, log *logging.Logger) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received, cleaning up")
			return
		case <-ticker.C:
			if err := store.HealthCheck(ctx); err != nil {
				log.Error("store health check failed", "error", err)
				m.SetStoreUp(false)
				continue
			}
			m.SetStoreUp(true)
		}
	}
}
