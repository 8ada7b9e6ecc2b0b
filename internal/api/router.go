package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/omniwallet/omniwallet/internal/api/handler"
	"github.com/omniwallet/omniwallet/internal/api/middleware"
	"github.com/omniwallet/omniwallet/internal/api/spec"
	"github.com/omniwallet/omniwallet/internal/chain"
	"github.com/omniwallet/omniwallet/internal/config"
	"github.com/omniwallet/omniwallet/internal/service"
	"github.com/omniwallet/omniwallet/internal/wallet"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type Router struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *pgxpool.Pool
	redis    redis.Cmdable
	wallets  wallet.Store
	registry *chain.Registry
	coord    *service.Coordinator
	agg      *service.Aggregator
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *pgxpool.Pool,
	redisClient redis.Cmdable,
	wallets wallet.Store,
	registry *chain.Registry,
	coord *service.Coordinator,
	agg *service.Aggregator,
) *Router {
	return &Router{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		redis:    redisClient,
		wallets:  wallets,
		registry: registry,
		coord:    coord,
		agg:      agg,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	walletHandler := handler.NewWalletHandler(api.wallets, api.registry)
	portfolioHandler := handler.NewPortfolioHandler(api.agg, api.wallets)
	transferHandler := handler.NewTransferHandler(api.coord, api.wallets)
	backendHandler := handler.NewBackendHandler(api.registry)
	reconciliationHandler := handler.NewReconciliationHandler(api.coord)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Get("/healthz", healthHandler.Live)
		r.Get("/readyz", healthHandler.Ready)
		r.Handle("/metrics", promhttp.Handler())
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.WalletRateLimitRPS))

		// Wallets
		r.Post("/v1/wallets", walletHandler.Create)
		r.Get("/v1/wallets", walletHandler.List)
		r.Get("/v1/wallets/{id}", walletHandler.Get)
		r.Get("/v1/wallets/{id}/balance", portfolioHandler.Balance)

		// Portfolio
		r.Get("/v1/portfolio/{avatarID}", portfolioHandler.Get)

		// Backends
		r.Get("/v1/backends", backendHandler.List)

		// Transfers
		r.Post("/v1/transfers", transferHandler.Create)
		r.Get("/v1/transfers", transferHandler.List)
		r.Get("/v1/transfers/{requestID}", transferHandler.Get)
		r.Post("/v1/transfers/{requestID}/cancel", transferHandler.Cancel)

		// Operator endpoints
		r.With(middleware.RequireRole(handler.AdminRole)).Get("/v1/reconciliation", reconciliationHandler.List)
	})

	return r
}
