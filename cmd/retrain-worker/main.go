// Command retrain-worker runs the weekly model retrain cycle (C9) on a
// cron-style interval, grounded on original_source/training/
// retrain_weekly.py's --all-properties CLI mode, and exposes a small gin
// admin surface to trigger a sweep on demand and inspect the last result.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jengu-tech/pricing-service/internal/blobstore"
	"github.com/jengu-tech/pricing-service/internal/config"
	"github.com/jengu-tech/pricing-service/internal/domain"
	"github.com/jengu-tech/pricing-service/internal/modelregistry"
	"github.com/jengu-tech/pricing-service/internal/obslog"
	"github.com/jengu-tech/pricing-service/internal/outcomes"
	"github.com/jengu-tech/pricing-service/internal/retrain"
)

// noopBlobCache disables the registry's read-through cache for this
// worker — it only ever writes newly published artifacts, never re-serves
// hot ones, so caching buys nothing here.
type noopBlobCache struct{}

func (noopBlobCache) GetModelBlob(context.Context, string, domain.ModelType, string) ([]byte, bool) {
	return nil, false
}

func (noopBlobCache) SetModelBlob(context.Context, string, domain.ModelType, string, []byte, time.Duration) {
}

var modelTypes = []domain.ModelType{domain.ModelConversion, domain.ModelADR, domain.ModelRevPAR}

// lastRun caches the most recent sweep summary per model type for /status.
type lastRun struct {
	mu      sync.RWMutex
	results map[domain.ModelType]retrain.SweepSummary
	at      map[domain.ModelType]time.Time
}

func newLastRun() *lastRun {
	return &lastRun{results: make(map[domain.ModelType]retrain.SweepSummary), at: make(map[domain.ModelType]time.Time)}
}

func (l *lastRun) record(modelType domain.ModelType, summary retrain.SweepSummary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results[modelType] = summary
	l.at[modelType] = time.Now()
}

func (l *lastRun) snapshot() gin.H {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := gin.H{}
	for modelType, summary := range l.results {
		out[string(modelType)] = gin.H{
			"ran_at":               l.at[modelType],
			"successful":           summary.Successful,
			"skipped":              summary.Skipped,
			"failed":               summary.Failed,
			"trained_not_deployed": summary.TrainedNotDeployed,
		}
	}
	return out
}

func main() {
	cfg, err := config.Load(os.Getenv("PRICING_CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := obslog.New(obslog.Config{
		Level:       cfg.LogLevel,
		ServiceName: cfg.ServiceName + "-retrain-worker",
		Environment: cfg.Environment,
	})
	defer logger.Sync() //nolint:errcheck

	dsn, ok := config.Secret(cfg.Storage.PostgresDSNEnvVar)
	if !ok {
		logger.Fatal("postgres DSN not set", zap.String("env_var", cfg.Storage.PostgresDSNEnvVar))
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	outcomeStore := outcomes.New(db)
	modelStore := modelregistry.NewPostgresStore(db)

	blobRoot := os.Getenv("PRICING_MODEL_BLOB_ROOT")
	if blobRoot == "" {
		blobRoot = "data/models"
	}

	trainerURL := os.Getenv("PRICING_TRAINER_URL")
	if trainerURL == "" {
		trainerURL = "http://localhost:9090"
	}
	trainer := retrain.NewHTTPTrainer(trainerURL, 5*time.Minute)

	registry := buildRegistry(modelStore, blobRoot, logger.Logger)
	datasetBuilder := retrain.NewSimpleDatasetBuilder(outcomeStore)
	orchestrator := retrain.New(outcomeStore, datasetBuilder, trainer, registry, cfg.Retrain, logger.Logger)

	runs := newLastRun()

	runAll := func(ctx context.Context) {
		for _, modelType := range modelTypes {
			summary, err := orchestrator.RetrainAll(ctx, outcomeStore, modelType)
			if err != nil {
				logger.Error("retrain sweep failed", zap.String("model_type", string(modelType)), zap.Error(err))
				continue
			}
			runs.record(modelType, summary)
			logger.Info("retrain sweep complete",
				zap.String("model_type", string(modelType)),
				zap.Int("deployed", summary.Successful),
				zap.Int("skipped", summary.Skipped),
				zap.Int("failed", summary.Failed))
		}
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, runs.snapshot())
	})
	r.POST("/trigger", func(c *gin.Context) {
		go runAll(context.Background())
		c.JSON(http.StatusAccepted, gin.H{"triggered": true})
	})

	port := os.Getenv("RETRAIN_WORKER_PORT")
	if port == "" {
		port = "8081"
	}
	srv := &http.Server{Addr: ":" + port, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("retrain-worker admin surface listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("admin server failed", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(cfg.Retrain.RunInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("retrain-worker started", zap.Duration("interval", cfg.Retrain.RunInterval))
	for {
		select {
		case <-ticker.C:
			runAll(context.Background())
		case <-quit:
			logger.Info("shutting down retrain-worker")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("admin server forced to shutdown", zap.Error(err))
			}
			return
		}
	}
}

func buildRegistry(store *modelregistry.PostgresStore, blobRoot string, logger *zap.Logger) *modelregistry.Registry {
	blobs := blobstore.NewFilesystemStore(blobRoot)
	return modelregistry.New(store, blobs, noopBlobCache{}, 0, logger)
}
