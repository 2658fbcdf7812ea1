package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-enrollment-api/api/swagger"
	"github.com/noah-isme/course-enrollment-api/internal/handler"
	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	"github.com/noah-isme/course-enrollment-api/pkg/cache"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	"github.com/noah-isme/course-enrollment-api/pkg/database"
	"github.com/noah-isme/course-enrollment-api/pkg/export"
	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
	"github.com/noah-isme/course-enrollment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-enrollment-api/pkg/middleware/requestid"
)

// @title Course Enrollment API
// @version 1.0.0
// @description Class enrollment with per-class waitlists and automatic promotion.
// @BasePath /api/v1
// @schemes http
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	checks := map[string]handler.Pinger{"postgres": db}
	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer client.Close()
		cacheRepo = repository.NewCacheRepository(client, logr)
		checks["redis"] = cache.Probe{Client: client}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ClassTTL, logr, cfg.Cache.Enabled)

	store := repository.NewStore(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	consistencyRepo := repository.NewConsistencyRepository(db)

	events := service.NewEventService(auditRepo, cacheSvc, metricsSvc, logr)
	eventQueue := jobs.NewQueue("enrollment-events", events.Handle, jobs.QueueConfig{
		Workers:      cfg.Events.Workers,
		BufferSize:   256,
		MaxRetries:   cfg.Events.Retries,
		RetryDelay:   200 * time.Millisecond,
		DrainTimeout: 5 * time.Second,
		Logger:       logr,
	})
	eventQueue.Start(context.Background())
	events.AttachQueue(eventQueue)

	validate := validator.New()
	waitlistSvc := service.NewWaitlistService(store, classRepo, waitlistRepo, events, service.WaitlistLimits{
		MaxPerClass:   cfg.Enrollment.MaxWaitlistSize,
		MaxPerStudent: cfg.Enrollment.MaxWaitlistsPerUser,
	}, logr)
	promotionSvc := service.NewPromotionService(classRepo, enrollmentRepo, waitlistSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentDeps{
		Store:       store,
		Classes:     classRepo,
		Students:    studentRepo,
		Instructors: instructorRepo,
		Enrollments: enrollmentRepo,
		Waitlists:   waitlistSvc,
		Promotions:  promotionSvc,
		Events:      events,
		Metrics:     metricsSvc,
	}, validate, logr)
	classSvc := service.NewClassService(service.ClassDeps{
		Store:       store,
		Classes:     classRepo,
		Instructors: instructorRepo,
		Enrollments: enrollmentRepo,
		Waitlists:   waitlistRepo,
		Promotions:  promotionSvc,
		Cache:       cacheSvc,
		Events:      events,
	}, service.ClassConfig{
		DefaultMaxEnrollment: cfg.Enrollment.DefaultMaxEnrollment,
		ListingTTL:           cfg.Cache.ClassTTL,
	}, validate, logr)
	instructorSvc := service.NewInstructorService(classRepo, instructorRepo, enrollmentRepo, waitlistSvc,
		export.NewCSVExporter(), export.NewPDFExporter(), logr)
	consistencySvc := service.NewConsistencyService(consistencyRepo, metricsSvc, logr)
	authSvc := service.NewAuthService(cfg.JWT)

	var scheduler *cron.Cron
	if cfg.Consistency.Enabled {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.Consistency.Schedule, func() { consistencySvc.Run(ctx) }); err != nil {
			logr.Fatal("invalid consistency audit schedule", zap.String("schedule", cfg.Consistency.Schedule), zap.Error(err))
		}
		scheduler.Start()
		logr.Info("consistency audit scheduled", zap.String("schedule", cfg.Consistency.Schedule))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.RouterDeps{
		Auth:        authSvc,
		Audit:       auditRepo,
		Logger:      logr,
		Students:    handler.NewStudentHandler(classSvc, enrollmentSvc, waitlistSvc),
		Instructors: handler.NewInstructorHandler(instructorSvc, enrollmentSvc),
		Registrar:   handler.NewRegistrarHandler(classSvc, enrollmentSvc, consistencySvc),
		Metrics:     handler.NewMetricsHandler(metricsSvc.Handler(), checks),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

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
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	eventQueue.Stop()
}
