package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/studyshare/studyshare-backend/api/routes"
	"github.com/studyshare/studyshare-backend/internal/auth"
	"github.com/studyshare/studyshare-backend/internal/cache"
	"github.com/studyshare/studyshare-backend/internal/catalog"
	"github.com/studyshare/studyshare-backend/internal/enrollments"
	"github.com/studyshare/studyshare-backend/internal/ratings"
	"github.com/studyshare/studyshare-backend/internal/users"
	"github.com/studyshare/studyshare-backend/pkg/config"
	"github.com/studyshare/studyshare-backend/pkg/db"
	"github.com/studyshare/studyshare-backend/pkg/logger"
	"github.com/studyshare/studyshare-backend/pkg/metrics"
	"github.com/studyshare/studyshare-backend/pkg/migrate"
	"github.com/studyshare/studyshare-backend/pkg/redis"
	"github.com/studyshare/studyshare-backend/pkg/sslcommerz"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	store, err := cache.NewRedisStore(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cache store", err)
		os.Exit(1)
	}
	invalidator, err := cache.NewInvalidator(store, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build cache invalidator", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)
	cacheMetrics := metrics.NewCacheMetrics(registry)

	gateway, err := sslcommerz.NewClient(context.Background(), cfg.SSLCommerz, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build payment gateway client", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	enrollmentRepo := enrollments.NewRepository(dbClient.DB())

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Repo:         catalogRepo,
		Tx:           dbClient,
		Store:        store,
		Invalidator:  invalidator,
		Enrollments:  enrollmentRepo,
		CacheConfig:  cfg.Cache,
		CacheMetrics: cacheMetrics,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	enrollmentService, err := enrollments.NewService(enrollments.ServiceParams{
		Repo:          enrollmentRepo,
		Contributions: catalogRepo,
		Tx:            dbClient,
		Gateway:       gateway,
		Invalidator:   invalidator,
		Store:         store,
		CacheConfig:   cfg.Cache,
		GatewayConfig: cfg.SSLCommerz,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create enrollment service", err)
		os.Exit(1)
	}

	ratingService, err := ratings.NewService(ratings.ServiceParams{
		Repo:          ratings.NewRepository(dbClient.DB()),
		Contributions: catalogRepo,
		Enrollments:   enrollmentRepo,
		Tx:            dbClient,
		Invalidator:   invalidator,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create rating service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"sandbox": cfg.SSLCommerz.Sandbox,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			HTTPMetrics: httpMetrics,
			Registry:    registry,
			Auth:        authService,
			Catalog:     catalogService,
			Enrollments: enrollmentService,
			Ratings:     ratingService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
