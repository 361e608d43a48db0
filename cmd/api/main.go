package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sis-enrollment-api/api/swagger"
	"github.com/noah-isme/sis-enrollment-api/internal/handler"
	"github.com/noah-isme/sis-enrollment-api/internal/middleware"
	"github.com/noah-isme/sis-enrollment-api/internal/repository"
	"github.com/noah-isme/sis-enrollment-api/internal/service"
	"github.com/noah-isme/sis-enrollment-api/pkg/cache"
	"github.com/noah-isme/sis-enrollment-api/pkg/config"
	"github.com/noah-isme/sis-enrollment-api/pkg/database"
	"github.com/noah-isme/sis-enrollment-api/pkg/export"
	"github.com/noah-isme/sis-enrollment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sis-enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sis-enrollment-api/pkg/middleware/requestid"
)

// @title SIS Enrollment API
// @version 1.0.0
// @description Enrollment approval workflow and quarter payment gate
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, quarter cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	policy := service.NewPaymentPolicy(cfg.Workflow.RequiredPaymentPercent)

	accounts := repository.NewAccountRepository(db)
	quarters := repository.NewQuarterRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	steps := repository.NewApprovalStepRepository(db)
	gatePayments := repository.NewEnrollmentPaymentRepository(db)
	notes := repository.NewPromissoryNoteRepository(db)

	quarterCache := service.NewCacheService(repository.NewCacheRepository(redisClient, "sis:"), metrics, cfg.Workflow.QuarterCacheTTL, logr, redisClient != nil)

	quarterSvc := service.NewQuarterService(db, quarters, accounts, logr,
		service.WithQuarterCache(quarterCache),
		service.WithQuarterMetrics(metrics),
		service.WithQuarterPolicy(policy),
	)
	accountSvc := service.NewAccountService(db, accounts, quarterSvc, logr, service.WithAccountMetrics(metrics))
	workflowSvc := service.NewWorkflowService(db, service.WorkflowRepositories{
		Students:    repository.NewStudentRepository(db),
		Courses:     repository.NewCourseRepository(db),
		Enrollments: enrollments,
		Steps:       steps,
		Payments:    gatePayments,
		Periods:     repository.NewEnrollmentPeriodRepository(db),
	}, quarterSvc, accountSvc, logr,
		service.WithWorkflowMetrics(metrics),
		service.WithWorkflowPolicy(policy),
		service.WithEnrollmentWindows(cfg.Workflow.EnforceEnrollmentWindows),
	)
	noteSvc := service.NewPromissoryNoteService(db, notes, enrollments, steps, gatePayments, accountSvc, quarterSvc, metrics, logr)
	tokens := service.NewTokenService(service.TokenConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Expiration: cfg.JWT.Expiration,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.RequestMetrics(metrics, "/health", "/ready", "/metrics"))

	ops := handler.NewMetricsHandler(metrics, db)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction && cfg.Docs.Enabled {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Enrollment: handler.NewEnrollmentHandler(workflowSvc, noteSvc),
		Approval:   handler.NewApprovalHandler(workflowSvc),
		Notes:      handler.NewPromissoryNoteHandler(noteSvc),
		Payment:    handler.NewPaymentHandler(accountSvc, export.NewReceiptRenderer(cfg.Receipts.InstitutionName), logr),
		Student:    handler.NewStudentHandler(accountSvc, quarterSvc),
		Quarter:    handler.NewQuarterHandler(quarterSvc),
	}, middleware.JWT(tokens))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
