package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"respira-data/internal/config"
	httpapi "respira-data/internal/http"
	"respira-data/internal/ingest"
	"respira-data/internal/logger"
	"respira-data/internal/mqttpub"
	"respira-data/internal/objectstore"
	"respira-data/internal/repository"
	"respira-data/internal/service"
	"respira-data/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "respira-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	var kv store.KV = store.NewRedisKV(redisClient)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, using in-memory presence store", zap.Error(err))
		kv = store.NewMemoryKV()
	}

	// Postgres with in-memory fallback for local dev.
	telemetryRepo := repository.TelemetryRepository(repository.NewMemoryTelemetryRepository())
	configRepo := repository.DeviceConfigRepository(repository.NewMemoryDeviceConfigRepository())
	ecgRepo := repository.ECGRepository(repository.NewMemoryECGRepository())
	var db *sql.DB
	var health service.Pinger
	if cfg.DBEnabled {
		if d, err := repository.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			health = d
			telemetryRepo = repository.NewPostgresTelemetryRepository(db)
			configRepo = repository.NewPostgresDeviceConfigRepository(db)
			ecgRepo = repository.NewPostgresECGRepository(db)
			log.Info("DB enabled for respira-data")
		} else {
			log.Warn("DB enabled but connection failed, falling back to in-memory repositories", zap.Error(err))
		}
	}

	// Object store for ECG artifacts: GCS, or in-memory when no bucket
	// credentials are configured.
	var objects objectstore.Store
	var gcs *objectstore.GCSStore
	if cfg.Storage.CredentialsFile != "" || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		g, err := objectstore.NewGCSStore(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsFile)
		if err != nil {
			log.Fatal("failed to initialize object store", zap.Error(err))
		}
		gcs = g
		objects = g
	} else {
		log.Warn("no storage credentials configured, using in-memory object store")
		objects = objectstore.NewMemoryStore(cfg.Storage.Bucket)
	}

	// Optional outbound MQTT channel for config push and acknowledgments.
	var publisher mqttpub.Publisher
	var mqttClient *mqttpub.Client
	if cfg.MQTT.Broker != "" {
		c, err := mqttpub.NewClient(&cfg.MQTT)
		if err != nil {
			log.Warn("MQTT broker unreachable, config push disabled", zap.Error(err))
		} else {
			mqttClient = c
			publisher = c
			log.Info("MQTT config channel enabled", zap.String("broker", cfg.MQTT.Broker))
		}
	}

	var analysis *service.AnalysisClient
	if cfg.Analysis.HttpAddress != "" {
		analysis = service.NewAnalysisClient(cfg.Analysis.HttpAddress, cfg.Analysis.AuthToken, log)
	}

	telemetrySvc := service.NewTelemetryService(telemetryRepo, configRepo, ingest.NewSectionDecoder(), publisher, kv, health, log)
	ecgSvc := service.NewECGService(ecgRepo, objects, analysis, health, log)

	router := httpapi.NewRouter(log)
	router.RegisterRootRoutes("respira-data", version)
	telemetryHandler := httpapi.NewTelemetryHandler(telemetrySvc, log)
	router.RegisterIoTRoutes(telemetryHandler)
	router.RegisterDeviceRoutes(httpapi.NewDeviceHandler(configRepo, telemetryRepo, kv, log), telemetryHandler)
	router.RegisterECGRoutes(httpapi.NewECGHandler(ecgSvc, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)

	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if gcs != nil {
		_ = gcs.Close()
	}
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}
}
