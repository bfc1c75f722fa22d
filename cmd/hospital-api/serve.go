package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/hims-api/internal/handler"
	"github.com/noah-isme/hims-api/internal/middleware"
	"github.com/noah-isme/hims-api/internal/models"
	"github.com/noah-isme/hims-api/internal/repository"
	"github.com/noah-isme/hims-api/internal/service"
	"github.com/noah-isme/hims-api/pkg/cache"
	"github.com/noah-isme/hims-api/pkg/config"
	"github.com/noah-isme/hims-api/pkg/database"
	"github.com/noah-isme/hims-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/hims-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/hims-api/pkg/middleware/requestid"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	cfg, logr, err := bootstrap()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Migrations.AutoMigrate {
		count, err := database.NewMigrator(db, logr).Up(ctx)
		if err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		logr.Info("migrations checked", zap.Int("applied", count))
	}

	redisClient := cache.NewOptionalRedis(ctx, cfg.Redis, logr)
	if redisClient != nil {
		defer redisClient.Close()
	}

	metricsSvc := service.NewMetricsService()
	auditSvc := service.NewAuditService(repository.NewAuditRepository(db), metricsSvc, logr, service.AuditConfig{
		Workers:      cfg.Audit.Workers,
		BufferSize:   cfg.Audit.BufferSize,
		MaxRetries:   cfg.Audit.MaxRetries,
		RetryDelay:   cfg.Audit.RetryDelay,
		WriteTimeout: cfg.Audit.WriteTimeout,
	})
	auditSvc.Start(context.WithoutCancel(ctx))
	defer auditSvc.Stop()

	authSvc := newAuthService(db, cfg, logr)
	router := newRouter(cfg, logr, db, redisClient, metricsSvc, auditSvc, authSvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logr.Info("server stopped")
	return nil
}

func newRouter(
	cfg *config.Config,
	logr *zap.Logger,
	db *sqlx.DB,
	redisClient *redis.Client,
	metricsSvc *service.MetricsService,
	auditSvc *service.AuditService,
	authSvc *service.AuthService,
) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := service.NewValidator()
	clientRepo := repository.NewClientRepository(db)
	programRepo := repository.NewProgramRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	integritySvc := service.NewIntegrityService(clientRepo, enrollmentRepo, programRepo, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, clientRepo, programRepo, integritySvc, validate, logr)
	clientSvc := service.NewClientService(clientRepo, enrollmentSvc, integritySvc, validate, logr)
	programSvc := service.NewProgramService(programRepo, validate, logr)
	analyticsSvc := service.NewAnalyticsService(repository.NewAnalyticsRepository(db), metricsSvc, logr, cfg.Analytics.TrendDays)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	guards := handler.RouteGuards{
		Authenticate: middleware.JWT(authSvc),
		AdminOnly:    middleware.RequireRoles(models.RoleAdmin),
		Audit: func(entity models.AuditEntityType) gin.HandlerFunc {
			return middleware.Audit(auditSvc, entity)
		},
	}
	if cfg.RateLimit.Enabled {
		counter := repository.NewRateLimitRepository(redisClient)
		guards.AuthLimit = middleware.RateLimit(counter, middleware.RateLimitRule{
			Scope:  "auth",
			Limit:  cfg.RateLimit.AuthLimit,
			Window: cfg.RateLimit.AuthWindow,
		}, metricsSvc, logr)
		guards.APILimit = middleware.RateLimit(counter, middleware.RateLimitRule{
			Scope:  "api",
			Limit:  cfg.RateLimit.APILimit,
			Window: cfg.RateLimit.APIWindow,
		}, metricsSvc, logr)
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Clients:     handler.NewClientHandler(clientSvc, enrollmentSvc),
		Programs:    handler.NewProgramHandler(programSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Analytics:   handler.NewAnalyticsHandler(analyticsSvc),
		Audit:       handler.NewAuditHandler(auditSvc),
		Metrics:     handler.NewMetricsHandler(metricsSvc, db),
	}, guards)

	return r
}
