package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-events/internal/analytics"
	"ms-events/internal/auth"
	"ms-events/internal/cache"
	"ms-events/internal/config"
	"ms-events/internal/database/migrations"
	eventsdb "ms-events/internal/events/db"
	events "ms-events/internal/events/service"
	"ms-events/internal/i18n"
	"ms-events/internal/kafka"
	"ms-events/internal/logger"
	partdb "ms-events/internal/participation/db"
	partredis "ms-events/internal/participation/redis"
	participation "ms-events/internal/participation/service"
	"ms-events/internal/qr"
	"ms-events/internal/sse"
	"ms-events/internal/web"
)

func verifyConnections(cfg config.DatabaseConfig, logger *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := cfg.ConnectTries
	if maxRetries < 1 {
		maxRetries = 1
	}

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

// csrfKey derives the 32-byte CSRF key. Without a configured key a random one
// is used, which invalidates open forms on every restart.
func csrfKey(configured string, logger *logger.Logger) []byte {
	if configured != "" {
		sum := sha256.Sum256([]byte(configured))
		return sum[:]
	}
	logger.Warn("CONFIG", "CSRF_AUTH_KEY not set, using a random key")
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		logger.Fatal("CONFIG", fmt.Sprintf("Failed to generate CSRF key: %v", err))
	}
	return key
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, logger *logger.Logger) auth.Verifier {
	if cfg.OIDCIssuer != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
		if err != nil {
			logger.Fatal("AUTH", fmt.Sprintf("Failed to discover OIDC issuer %s: %v", cfg.OIDCIssuer, err))
		}
		logger.Info("AUTH", "Verifying access tokens against OIDC issuer "+cfg.OIDCIssuer)
		return v
	}
	logger.Info("AUTH", "Verifying HS256 access tokens with JWT_SECRET")
	return auth.NewHS256Verifier(cfg.JWTSecret, "")
}

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logger.NewLogger(cfg.App.LogDir)
	defer logger.Close()

	logger.Info("APP", "Starting EventHub initialization")
	if dotenv {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	} else {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}

	ctx := context.Background()
	loc := cfg.Location()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(cfg.Database.DSN, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
			SeedData:      cfg.Database.SeedData,
		}, logger)
		if err := runner.RunMigrations(); err != nil {
			logger.Fatal("MIGRATION", fmt.Sprintf("Failed to run migrations: %v", err))
		}
		if err := runner.Close(); err != nil {
			logger.Warn("MIGRATION", fmt.Sprintf("Failed to close migrator: %v", err))
		}
	}

	logger.Info("APP", "Verifying database connections")
	bunDB := verifyConnections(cfg.Database, logger)
	defer bunDB.Close()

	var publisher kafka.Publisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		if topics, err := kafka.ListTopics(ctx, cfg.Kafka.Brokers); err == nil {
			logger.Info("KAFKA", fmt.Sprintf("Available topics: %v", topics))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		publisher = producer
		logger.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		logger.Info("KAFKA", "Kafka disabled, domain events will not be published")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.InitializeRedis(cfg.Redis, logger)
		if err != nil {
			// both users of Redis degrade gracefully
			logger.Warn("REDIS", "Continuing without category cache and toggle lock")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	analyticsService := analytics.NewService(bunDB)

	eventService := events.NewEventService(&eventsdb.DB{Bun: bunDB}, publisher, cfg.Kafka.Topics, loc, logger)
	eventService.Analytics = analyticsService

	emitter := sse.NewParticipantEventEmitter()
	manager := participation.NewManager(&partdb.DB{Bun: bunDB}, publisher, cfg.Kafka.Topics, logger)
	manager.Events = emitter

	if redisClient != nil {
		eventService.Categories = cache.NewRedisCategoryCache(redisClient, cfg.Redis.CategoryCacheTTL)
		manager.Locker = partredis.NewToggleLock(redisClient, cfg.Redis.ToggleLockTTL)
	}

	srv := &web.Server{
		Events:        eventService,
		Participation: manager,
		Analytics:     analyticsService,
		Emitter:       emitter,
		Translator:    i18n.NewTranslator(cfg.App.DefaultLocale, logger),
		QR:            qr.NewQRGenerator(cfg.App.BaseURL),
		Verifier:      newVerifier(ctx, cfg.Auth, logger),
		Logger:        logger,
		App:           cfg.App,
		Auth:          cfg.Auth,
		Location:      loc,
		CSRFKey:       csrfKey(cfg.App.CSRFKey, logger),
	}

	logger.Info("HTTP", "Setting up router and middleware")
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 EventHub running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ EventHub shutdown complete")
	}
}
