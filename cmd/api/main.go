// API binary: loads configuration, wires dependencies and serves HTTP.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcelojr/votemap/internal/app/httpapi"
	"github.com/marcelojr/votemap/internal/app/identity"
	"github.com/marcelojr/votemap/internal/app/results"
	"github.com/marcelojr/votemap/internal/app/voting"
	"github.com/marcelojr/votemap/internal/domain"
	"github.com/marcelojr/votemap/internal/platform/broadcast"
	"github.com/marcelojr/votemap/internal/platform/clock"
	"github.com/marcelojr/votemap/internal/platform/config"
	"github.com/marcelojr/votemap/internal/platform/health"
	"github.com/marcelojr/votemap/internal/platform/ids"
	"github.com/marcelojr/votemap/internal/platform/logger"
	"github.com/marcelojr/votemap/internal/platform/migrations"
	"github.com/marcelojr/votemap/internal/platform/ratelimit"
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

	// Redis backs the live counters, the recompute queue, the limiter and
	// the broadcaster; without it votes still commit but stay silent.
	redisClient, err := redisstorage.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis connection failed", "err", err)
	}
	defer redisClient.Close()

	idGen := ids.NewGenerator()
	systemClock := clock.NewSystemClock()

	electionRepo := postgresstorage.NewElectionRepository(db)
	constituencyRepo := postgresstorage.NewConstituencyRepository(db)
	candidateRepo := postgresstorage.NewCandidateRepository(db)
	deviceRepo := postgresstorage.NewDeviceRepository(db, idGen)
	sessionRepo := postgresstorage.NewSessionRepository(db)
	ledger := postgresstorage.NewVoteLedger(db)
	resultRepo := postgresstorage.NewResultRepository(db)
	auditRepo := postgresstorage.NewAuditRepository(db)

	counter := redisstorage.NewCounter(redisClient, cfg.CounterKeyPrefix)
	queue := redisstorage.NewRecomputeQueue(redisClient, cfg.QueueKey)
	publisher := broadcast.NewRedisPublisher(redisClient, cfg.BroadcastChannels)

	var limiter domain.RateLimiter = ratelimit.NewNoop()
	if cfg.RateLimitEnabled {
		window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitMaxActions, window, cfg.RateLimitKeyPrefix, logger.L())
	}

	identitySvc := identity.NewService(
		electionRepo,
		deviceRepo,
		sessionRepo,
		systemClock,
		idGen,
		time.Duration(cfg.SessionTTLMinutes)*time.Minute,
		cfg.IPHashSalt,
	)
	resultsSvc := results.NewService(electionRepo, resultRepo, ledger, systemClock)
	votingSvc := voting.NewService(
		identitySvc,
		electionRepo,
		constituencyRepo,
		candidateRepo,
		ledger,
		auditRepo,
		counter,
		queue,
		resultsSvc,
		publisher,
		systemClock,
		idGen,
		cfg.IPHashSalt,
		logger.L(),
	)

	router := chi.NewRouter()
	checker := health.NewChecker(sqlDB, redisClient)

	api := httpapi.New(identitySvc, votingSvc, resultsSvc, limiter, logger.L())
	api.Register(router)
	router.Get("/readyz", checker.ReadyHandler())
	router.Handle("/metrics", promhttp.Handler())

	logger.Info("api listening", "addr", cfg.HTTPAddress)
	if err := http.ListenAndServe(cfg.HTTPAddress, router); err != nil {
		logger.Fatal("http server error", "err", err)
	}
}
