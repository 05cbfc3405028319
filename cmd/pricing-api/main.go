// Command pricing-api serves the dynamic pricing HTTP surface: price
// quotes, outcome ingestion, and model-version introspection.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jengu-tech/pricing-service/internal/abtest"
	"github.com/jengu-tech/pricing-service/internal/bandit"
	"github.com/jengu-tech/pricing-service/internal/blobstore"
	"github.com/jengu-tech/pricing-service/internal/cache"
	"github.com/jengu-tech/pricing-service/internal/competitor"
	"github.com/jengu-tech/pricing-service/internal/config"
	"github.com/jengu-tech/pricing-service/internal/drift"
	"github.com/jengu-tech/pricing-service/internal/driftsvc"
	"github.com/jengu-tech/pricing-service/internal/httpapi"
	"github.com/jengu-tech/pricing-service/internal/metrics"
	"github.com/jengu-tech/pricing-service/internal/modelregistry"
	"github.com/jengu-tech/pricing-service/internal/obslog"
	"github.com/jengu-tech/pricing-service/internal/outcomes"
	"github.com/jengu-tech/pricing-service/internal/pricing"
	"github.com/jengu-tech/pricing-service/internal/storage"
)

const serviceVersion = "1.0.0"

// zapQuoteLogger implements pricing.QuoteLogger by emitting one structured
// log line per scoring decision.
type zapQuoteLogger struct {
	logger *zap.Logger
}

func (l zapQuoteLogger) LogQuote(entry pricing.QuoteLogEntry) {
	l.logger.Info("quote scored",
		zap.String("property_id", entry.PropertyID),
		zap.String("user_id", entry.UserID),
		zap.String("price", entry.Price.String()),
		zap.String("pricing_method", entry.PricingMethod),
		zap.String("experiment_id", entry.ExperimentID),
		zap.String("action_id", entry.ActionID),
		zap.Strings("reasons", entry.Reasons),
		zap.Float64("latency_ms", entry.LatencyMS),
	)
}

func main() {
	cfg, err := config.Load(os.Getenv("PRICING_CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := obslog.New(obslog.Config{
		Level:       cfg.LogLevel,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	defer logger.Sync() //nolint:errcheck

	dsn, ok := config.Secret(cfg.Storage.PostgresDSNEnvVar)
	if !ok {
		logger.Fatal("postgres DSN not set", zap.String("env_var", cfg.Storage.PostgresDSNEnvVar))
	}
	if err := storage.Migrate(dsn); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to get underlying sql.DB", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	redisAddr, ok := config.Secret(cfg.Storage.RedisAddrEnvVar)
	if !ok {
		redisAddr = "localhost:6379"
	}
	redisCache := cache.New(redisAddr, logger.Logger)
	defer redisCache.Close() //nolint:errcheck

	competitorAPIKey, _ := config.Secret(cfg.CompetitorGateway.APIKeyEnvVar)
	gateway := competitor.New(cfg.CompetitorGateway, competitorAPIKey, logger.Logger)
	cachedGateway := competitor.NewCachedGateway(
		gateway, redisCache,
		cfg.CompetitorGateway.MaxConcurrentFetches,
		cfg.CompetitorGateway.NearTermLeadDays,
		cfg.CompetitorGateway.CacheTTLNearTerm,
		cfg.CompetitorGateway.CacheTTLFarTerm,
	)

	blobRoot := os.Getenv("PRICING_MODEL_BLOB_ROOT")
	if blobRoot == "" {
		blobRoot = "data/models"
	}
	blobs := blobstore.NewFilesystemStore(blobRoot)
	modelStore := modelregistry.NewPostgresStore(db)
	registry := modelregistry.New(modelStore, blobs, redisCache, 10*time.Minute, logger.Logger)
	scorer := modelregistry.NewConversionScorer(registry)

	experimentStore := abtest.NewPostgresConfigStore(db)
	experimentResults := abtest.NewPostgresResultLogger(db)
	experiments := abtest.New(experimentStore, experimentResults)

	banditState := cfg.Bandit.StateDir
	banditRouter := bandit.New(cfg.Bandit, blobs)
	if banditState != "" {
		if err := banditRouter.LoadState(context.Background(), banditState); err != nil {
			logger.Warn("no prior bandit state found, starting from priors", zap.Error(err))
		}
	}

	outcomeStore := outcomes.New(db)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	pipeline := pricing.New(cachedGateway, scorer, experiments, banditRouter, logger.Logger, zapQuoteLogger{logger: logger.Logger}, cfg)

	driftChecker := driftsvc.New(outcomeStore, drift.Config{
		MinSamples:             cfg.Drift.MinSamples,
		KSPValueThreshold:      cfg.Drift.KSPValueThreshold,
		PSIThreshold:           cfg.Drift.PSIThreshold,
		PSIBuckets:             cfg.Drift.PSIBuckets,
		DriftedFractionTrigger: cfg.Drift.DriftedFractionTrigger,
	}, 14*24*time.Hour, 7*24*time.Hour)

	server := httpapi.New(pipeline, outcomeStore, registry, driftChecker, logger, m, serviceVersion)
	router := server.Router()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	port := os.Getenv("PRICING_API_PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("pricing-api listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down pricing-api")
	if banditState != "" {
		if err := banditRouter.SaveState(context.Background(), banditState); err != nil {
			logger.Warn("failed to persist bandit state on shutdown", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("pricing-api exited cleanly")
}
