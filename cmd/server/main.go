package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/tradedesk/internal/adapter/api"
	"github.com/V4T54L/tradedesk/internal/adapter/api/handler"
	"github.com/V4T54L/tradedesk/internal/adapter/auth"
	"github.com/V4T54L/tradedesk/internal/adapter/ledger"
	"github.com/V4T54L/tradedesk/internal/adapter/ledger/local"
	"github.com/V4T54L/tradedesk/internal/adapter/metrics"
	kafkarepo "github.com/V4T54L/tradedesk/internal/adapter/repository/kafka"
	"github.com/V4T54L/tradedesk/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/tradedesk/internal/adapter/repository/redis"
	"github.com/V4T54L/tradedesk/internal/adapter/repository/sqlite"
	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/pkg/config"
	"github.com/V4T54L/tradedesk/internal/pkg/journal"
	"github.com/V4T54L/tradedesk/internal/pkg/logger"
	"github.com/V4T54L/tradedesk/internal/pkg/ratelimiter"
	"github.com/V4T54L/tradedesk/internal/pkg/tenantkey"
	"github.com/V4T54L/tradedesk/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel, cfg.RedactFieldList()...)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- Start Metrics Server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		logger.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	layout := tenantkey.Layout{Root: cfg.DataDir}

	// --- Catalog Stores ---
	registry := sqlite.NewRegistry(logger)
	defer registry.Close()

	var db *sql.DB
	if cfg.PostgresURL != "" {
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
	}

	var desks domain.DeskRepository
	switch cfg.DeskStore {
	case "postgres":
		repo := postgres.NewDeskRepository(db, logger)
		if err := repo.Migrate(ctx); err != nil {
			logger.Error("failed to migrate desk catalog", "error", err)
			os.Exit(1)
		}
		desks = repo
	default:
		repo, err := sqlite.OpenDeskRepository(layout.DesksCatalog())
		if err != nil {
			logger.Error("failed to open desk catalog", "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		desks = repo
	}

	// --- Token Resolution ---
	var (
		baseResolver domain.IdentityResolver = auth.HexResolver{}
		tokenStore   handler.TokenStore
	)
	switch cfg.TokenSource {
	case "postgres":
		tokens := postgres.NewTokenRepository(db, logger)
		if err := tokens.Migrate(ctx); err != nil {
			logger.Error("failed to migrate token table", "error", err)
			os.Exit(1)
		}
		baseResolver, tokenStore = tokens, tokens
	case "jwt":
		baseResolver = auth.NewJWTResolver(cfg.JWTSecret)
	}
	resolver := auth.NewCachedResolver(baseResolver, cfg.TokenCacheTTL, logger, m)
	go pruneTokens(ctx, resolver, cfg.TokenCacheTTL)

	// --- Note Event Publishers ---
	sseBroker := handler.NewSSEBroker(ctx, logger)
	publishers := []domain.NotePublisher{sseBroker}
	var noteEvents handler.NoteEventLog
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("could not connect to redis, note events will be spooled", "error", err)
		}

		spool, err := journal.Open(filepath.Join(cfg.DataDir, "spool"), cfg.JournalSegmentSize, cfg.JournalMaxDiskSize, logger)
		if err != nil {
			logger.Error("failed to open note event spool", "error", err)
			os.Exit(1)
		}
		defer spool.Close()

		publisher := redisrepo.NewNotePublisher(redisClient, logger, cfg.NoteStreamKey, cfg.NoteStreamMaxLen, spool)
		if err := publisher.ReplaySpool(ctx); err != nil {
			logger.Warn("note spool not replayed at startup", "error", err)
		}
		go publisher.StartHealthCheck(ctx, 5*time.Second)
		publishers = append(publishers, publisher)
		noteEvents = redisrepo.NewNoteStream(redisClient, logger, cfg.NoteStreamKey)
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafkarepo.NewNoteProducer(kafkarepo.NewWriter(cfg.KafkaBrokers, cfg.KafkaNoteTopic), logger)
		defer producer.Close()
		publishers = append(publishers, producer)
		logger.Info("publishing note events to kafka", "topic", cfg.KafkaNoteTopic)
	}

	// --- Ledger Actor Pool ---
	pool := ledger.NewPool(ledger.PoolConfig{
		Connector: local.Connector{
			SegmentSize: cfg.JournalSegmentSize,
			MaxDiskSize: cfg.JournalMaxDiskSize,
			Latency:     cfg.LocalLedgerLatency,
			Logger:      logger,
		},
		QueueSize: cfg.ActorQueueSize,
		Logger:    logger,
		Metrics:   m,
	})

	orch := usecase.NewOrchestrator(usecase.Config{
		Layout:        layout,
		Pool:          pool,
		Catalogs:      registry,
		Desks:         desks,
		Compiler:      local.Compiler{},
		Publishers:    publishers,
		MarketBaseURL: cfg.MarketBaseURL,
		Logger:        logger,
		Metrics:       m,
	})
	restored, err := orch.RestoreDesks(ctx)
	if err != nil {
		logger.Error("failed to restore desks", "error", err)
		os.Exit(1)
	}
	logger.Info("desk restore finished", "restored", restored)

	// --- HTTP Server ---
	limiter := ratelimiter.New(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute)
	adminHandler := handler.NewAdminHandler(orch, tokenStore, resolver, noteEvents, logger)
	router := api.NewRouter(cfg, logger, api.Deps{
		Service:  orch,
		Resolver: resolver,
		Limiter:  limiter,
		Broker:   sseBroker,
		Admin:    adminHandler,
		Metrics:  m,
	})
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting api server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}
	if err := pool.Close(shutdownCtx); err != nil {
		logger.Error("ledger actors did not drain before shutdown deadline", "error", err)
	}

	logger.Info("servers shut down gracefully")
}

// pruneTokens drops expired token cache entries until ctx is done.
func pruneTokens(ctx context.Context, r *auth.CachedResolver, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Prune()
		}
	}
}
