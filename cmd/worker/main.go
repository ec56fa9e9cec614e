// Worker binary: consumes recompute jobs, rebuilds constituency aggregates
// and publishes the deltas, with metrics exposed alongside.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcelojr/votemap/internal/app/results"
	"github.com/marcelojr/votemap/internal/app/worker"
	"github.com/marcelojr/votemap/internal/domain"
	"github.com/marcelojr/votemap/internal/platform/broadcast"
	"github.com/marcelojr/votemap/internal/platform/clock"
	"github.com/marcelojr/votemap/internal/platform/config"
	"github.com/marcelojr/votemap/internal/platform/health"
	"github.com/marcelojr/votemap/internal/platform/logger"
	"github.com/marcelojr/votemap/internal/platform/migrations"
	postgresstorage "github.com/marcelojr/votemap/internal/platform/storage/postgres"
	redisstorage "github.com/marcelojr/votemap/internal/platform/storage/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	// Same GORM connection and migrations as the API to keep one schema.
	db, err := postgresstorage.Open(ctx, cfg.PostgresDSN())
	if err != nil {
		logger.Fatal("postgres connection failed", "err", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("sql.DB unwrap failed", "err", err)
	}
	defer sqlDB.Close()

	if cfg.AutoMigrate {
		if err := migrations.Run(db); err != nil {
			logger.Fatal("auto migration failed", "err", err)
		}
	}

	redisClient, err := redisstorage.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis connection failed", "err", err)
	}
	defer redisClient.Close()

	systemClock := clock.NewSystemClock()
	electionRepo := postgresstorage.NewElectionRepository(db)
	ledger := postgresstorage.NewVoteLedger(db)
	resultRepo := postgresstorage.NewResultRepository(db)
	resultsSvc := results.NewService(electionRepo, resultRepo, ledger, systemClock)

	counter := redisstorage.NewCounter(redisClient, cfg.CounterKeyPrefix)
	queue := redisstorage.NewRecomputeQueue(redisClient, cfg.QueueKey)
	publisher := broadcast.NewRedisPublisher(redisClient, cfg.BroadcastChannels)
	checker := health.NewChecker(sqlDB, redisClient)

	if cfg.WorkerMetricsAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/readyz", checker.ReadyHandler())
			logger.Info("worker metrics listening", "addr", cfg.WorkerMetricsAddress)
			if err := http.ListenAndServe(cfg.WorkerMetricsAddress, mux); err != nil {
				logger.Error("worker metrics server error", "err", err)
			}
		}()
	}

	processor := worker.NewRecomputeProcessor(
		resultsSvc,
		ledger,
		counter,
		publisher,
		queue,
		cfg.RecomputeMaxAttempts,
		logger.L(),
	)

	logger.Info("worker started, waiting for jobs")
	err = queue.Consume(ctx, func(ctx context.Context, job domain.RecomputeJob) error {
		if err := processor.Process(ctx, job); err != nil {
			logger.Error("recompute job failed", "election", job.ElectionID,
				"constituency", job.ConstituencyID, "err", err)
		}
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.Fatal("worker stopped with error", "err", err)
	}

	logger.Info("worker stopped")
}
