package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/omniwallet/omniwallet/internal/api"
	"github.com/omniwallet/omniwallet/internal/api/middleware"
	"github.com/omniwallet/omniwallet/internal/bridge"
	"github.com/omniwallet/omniwallet/internal/chain"
	"github.com/omniwallet/omniwallet/internal/config"
	"github.com/omniwallet/omniwallet/internal/db"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/ledger"
	"github.com/omniwallet/omniwallet/internal/models"
	"github.com/omniwallet/omniwallet/internal/observability"
	"github.com/omniwallet/omniwallet/internal/rates"
	"github.com/omniwallet/omniwallet/internal/service"
	"github.com/omniwallet/omniwallet/internal/snapshot"
	"github.com/omniwallet/omniwallet/internal/wallet"
	"github.com/omniwallet/omniwallet/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server, saga workers, and background loops,
// blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pool *pgxpool.Pool
	var redisClient *redis.Client
	var walletStore wallet.Store
	var transferLedger ledger.Ledger
	var snapshotCache snapshot.Cache

	if cfg.DemoMode {
		logger.Info("demo mode: using in-memory storage")
		walletStore = wallet.NewMemoryStore()
		transferLedger = ledger.NewMemoryLedger()
		snapshotCache = snapshot.NewMemoryCache()
	} else {
		pool, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		walletStore = wallet.NewPostgresStore(pool)
		transferLedger = ledger.NewPostgresLedger(pool)

		if strings.TrimSpace(cfg.RedisURL) != "" {
			redisClient, err = newRedisClient(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("connect redis: %w", err)
			}
			defer redisClient.Close()
			snapshotCache = snapshot.NewRedisCache(redisClient, cfg.SnapshotRetention)
		} else {
			snapshotCache = snapshot.NewMemoryCache()
		}
	}

	oracle := rates.NewStaticOracle()
	signer := chain.NewStaticSigner()
	adapters := make([]chain.Adapter, 0, len(cfg.Backends))
	simAdapters := make(map[string]*chain.SimAdapter, len(cfg.Backends))
	for _, b := range cfg.Backends {
		b := b
		sim := chain.NewSimAdapter(b, signer, func(c context.Context, native int64) (int64, error) {
			rate, err := oracle.Rate(c, b.NativeUnit, service.NormalizedUnit)
			if err != nil {
				return 0, err
			}
			return domain.NewAmount(native, b.NativeUnit).Convert(service.NormalizedUnit, rate).Micros, nil
		})
		simAdapters[b.ID] = sim
		adapters = append(adapters, sim)
	}

	registry, err := chain.NewRegistry(cfg.Backends, adapters)
	if err != nil {
		return fmt.Errorf("build backend registry: %w", err)
	}

	if cfg.DemoMode {
		// New demo wallets start funded so transfers can be exercised
		// immediately.
		walletStore = &seedingStore{
			Store:    walletStore,
			adapters: simAdapters,
			amount:   cfg.DemoSeedBalanceUnit,
		}
	}

	chainBridge := bridge.NewSimBridge(registry)
	agg := service.NewAggregator(walletStore, registry, snapshotCache, cfg.SnapshotTTL)
	coord := service.NewCoordinator(walletStore, transferLedger, registry, chainBridge, oracle, agg,
		service.WithConfirmBackoff(cfg.ConfirmPollInitial, cfg.ConfirmPollMax, cfg.ConfirmWaitBudget),
		service.WithQueueDepth(cfg.TransferQueueDepth),
	)
	coord.Start(ctx, cfg.TransferWorkers)
	logger.Info("transfer workers started", zap.Int("workers", cfg.TransferWorkers))

	resumeWorker := worker.NewResumeWorker(coord).WithInterval(cfg.ResumeInterval)
	stopResume := resumeWorker.Run(ctx)
	reconciliationWorker := worker.NewReconciliationWorker(coord).WithInterval(cfg.ReconcileInterval)
	stopReconciliation := reconciliationWorker.Run(ctx)

	router := api.NewRouter(cfg, logger, pool, redisCmdable(redisClient), walletStore, registry, coord, agg)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	stopResume()
	stopReconciliation()
	coord.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// seedingStore funds each newly created wallet on its simulated backend.
// Demo mode only.
type seedingStore struct {
	wallet.Store
	adapters map[string]*chain.SimAdapter
	amount   int64
}

func (s *seedingStore) Create(ctx context.Context, w *models.Wallet) error {
	if err := s.Store.Create(ctx, w); err != nil {
		return err
	}
	if sim, ok := s.adapters[w.BackendID]; ok && s.amount > 0 {
		sim.Fund(w.Address, s.amount)
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// redisCmdable avoids handing a typed-nil *redis.Client to interface fields.
func redisCmdable(client *redis.Client) redis.Cmdable {
	if client == nil {
		return nil
	}
	return client
}
