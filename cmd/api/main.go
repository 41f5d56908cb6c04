package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	_ "github.com/schoolhub-dev/schoolhub-api/api/swagger"
	"github.com/schoolhub-dev/schoolhub-api/internal/handler"
	"github.com/schoolhub-dev/schoolhub-api/internal/repository"
	"github.com/schoolhub-dev/schoolhub-api/internal/router"
	"github.com/schoolhub-dev/schoolhub-api/internal/service"
	"github.com/schoolhub-dev/schoolhub-api/pkg/cache"
	"github.com/schoolhub-dev/schoolhub-api/pkg/config"
	"github.com/schoolhub-dev/schoolhub-api/pkg/database"
	"github.com/schoolhub-dev/schoolhub-api/pkg/logger"
)

// @title SchoolHub API
// @version 0.1.0
// @description School management backend with dashboard aggregation
// @BasePath /api
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API stays up without Redis; dashboard responses are simply
		// recomputed on every request.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	}

	userRepo := repository.NewUserRepository(db)
	admissionRepo := repository.NewAdmissionRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "schoolhub-api",
	})
	userService := service.NewUserService(userRepo, validate, logr)
	admissionService := service.NewAdmissionService(admissionRepo, userRepo, cacheService, validate, logr)
	dashboardService := service.NewDashboardService(service.DashboardServiceParams{
		Admissions: admissionRepo,
		Users:      userRepo,
		Cache:      cacheService,
		Logger:     logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:    cfg.Dashboard.CacheTTL,
			RecentLimit: cfg.Dashboard.RecentLimit,
			TrendMonths: cfg.Dashboard.TrendMonths,
		},
	})

	engine := router.New(router.Dependencies{
		Config:     cfg,
		Logger:     logr,
		DB:         db,
		Redis:      redisClient,
		Metrics:    metricsService,
		Auth:       authService,
		Dashboard:  handler.NewDashboardHandler(dashboardService),
		Admissions: handler.NewAdmissionHandler(admissionService, cfg.Exports.Enabled),
		Users:      handler.NewUserHandler(userService),
		AuthH:      handler.NewAuthHandler(authService),
		MetricsH:   handler.NewMetricsHandler(metricsService),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
