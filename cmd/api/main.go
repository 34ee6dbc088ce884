package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/workflow-insights-backend/internal/api/rest"
	"github.com/davidleathers/workflow-insights-backend/internal/api/websocket"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/auth"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/cache"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/config"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/database"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/repository"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/workflow-insights-backend/internal/metrics"
	"github.com/davidleathers/workflow-insights-backend/internal/service/accounts"
	"github.com/davidleathers/workflow-insights-backend/internal/service/reporting"
)

func main() {
	var (
		configPath = flag.String("config", config.DefaultPath, "Path to configuration file")
		migrate    = flag.Bool("migrate", false, "Apply database migrations before serving")
	)
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := run(cfg, *migrate); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run(cfg *config.Config, migrate bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.Setup(ctx, telemetry.Settings{
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     cfg.Version,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Enabled:     cfg.Telemetry.Enabled,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Failed to shutdown telemetry: %v", err)
		}
	}()

	slogger := telemetry.SetupLogger(cfg.LogLevel)
	slog.SetDefault(slogger)

	logger, err := telemetry.NewZapLogger(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	registry, err := metrics.NewRegistry(cfg.Telemetry.ServiceName)
	if err != nil {
		return err
	}

	if migrate {
		m, err := database.NewMigrator(cfg.Database.URL, database.DefaultMigrationsDir, logger)
		if err != nil {
			return err
		}
		err = m.Up(0)
		_ = m.Close()
		if err != nil {
			return err
		}
	}

	pool, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	healthCheckers := map[string]rest.HealthChecker{
		"database": func(ctx context.Context) error {
			UpdateDBConnectionPoolMetrics(pool.Stat())
			return database.HealthCheck(ctx, pool)
		},
	}

	var reportCache reporting.Cache
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(&cfg.Redis, logger)
		if err != nil {
			return err
		}
		rc, err := cache.NewReportCache(client, cfg.Redis.ReportTTL, logger)
		if err != nil {
			_ = client.Close()
			return err
		}
		defer rc.Close()
		reportCache = rc
		healthCheckers["redis"] = rc.Ping
	} else {
		logger.Warn("redis not configured, reports are read from the database only")
	}

	hub := websocket.NewRunHub(logger, cfg.Server.CORSOrigins)
	go hub.Run(ctx)
	defer hub.Stop()

	tokens, err := auth.NewJWTService(cfg.Security.JWTSecret, cfg.Security.TokenExpiry)
	if err != nil {
		return err
	}

	accountService, err := accounts.NewService(repository.NewAccountRepository(pool), tokens, logger)
	if err != nil {
		return err
	}

	pipeline, err := reporting.BuildPipeline(cfg, registry, logger)
	if err != nil {
		return err
	}
	reportService, err := reporting.NewService(
		pipeline,
		repository.NewReportRepository(pool),
		reportCache,
		reporting.Notifiers{hub, analysisCounter{}},
		registry,
		logger,
	)
	if err != nil {
		return err
	}

	server, err := rest.NewServer(cfg, rest.Dependencies{
		Accounts:       accountService,
		Reports:        reportService,
		Tokens:         tokens,
		Hub:            hub,
		Registry:       registry,
		MetricsHandler: MetricsHandler(),
		HealthCheckers: healthCheckers,
		Logger:         slogger,
		Outer:          []rest.Middleware{InstrumentHTTPHandler},
	})
	if err != nil {
		return err
	}

	logger.Info("workflow insights API ready",
		zap.Int("port", cfg.Server.Port),
		zap.String("environment", cfg.Environment),
		zap.Bool("cache", reportCache != nil),
	)
	return server.Start(ctx)
}
