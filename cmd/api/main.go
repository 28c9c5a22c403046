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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/clinicbook/clinic-api/api/swagger"
	"github.com/clinicbook/clinic-api/internal/handler"
	"github.com/clinicbook/clinic-api/internal/middleware"
	"github.com/clinicbook/clinic-api/internal/models"
	"github.com/clinicbook/clinic-api/internal/repository"
	"github.com/clinicbook/clinic-api/internal/service"
	"github.com/clinicbook/clinic-api/pkg/cache"
	"github.com/clinicbook/clinic-api/pkg/config"
	"github.com/clinicbook/clinic-api/pkg/database"
	"github.com/clinicbook/clinic-api/pkg/jobs"
	"github.com/clinicbook/clinic-api/pkg/logger"
	corsmiddleware "github.com/clinicbook/clinic-api/pkg/middleware/cors"
	reqidmiddleware "github.com/clinicbook/clinic-api/pkg/middleware/requestid"
	"github.com/clinicbook/clinic-api/pkg/storage"
)

// @title Clinic Booking API
// @version 1.0.0
// @description Appointment booking backend for clinics
// @BasePath /api
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	doctorRepo := repository.NewDoctorRepository(db)
	clinicRepo := repository.NewClinicRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	apptRepo := repository.NewAppointmentRepository(db)
	exportRepo := repository.NewExportRepository(db)

	metrics := service.NewMetricsService()
	validate := validator.New()

	availabilityCacheOn := cfg.Booking.AvailabilityCache
	var cacheRepo *repository.CacheRepository
	if availabilityCacheOn {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, availability cache disabled", "error", err)
			availabilityCacheOn = false
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close()
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Booking.AvailabilityCacheTTL, logr, availabilityCacheOn)

	authSvc := service.NewAuthService(userRepo, patientRepo, doctorRepo, clinicRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	availabilitySvc := service.NewAvailabilityService(doctorRepo, scheduleRepo, apptRepo, cacheSvc, cfg.Booking.AvailabilityCacheTTL, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, apptRepo, doctorRepo, availabilitySvc, db, validate, logr, cfg.Booking.DeleteLookaheadDays)
	apptSvc := service.NewAppointmentService(apptRepo, patientRepo, doctorRepo, availabilitySvc, db, metrics, validate, logr)
	doctorSvc := service.NewDoctorService(doctorRepo, userRepo, clinicRepo, scheduleRepo, validate, logr)
	patientSvc := service.NewPatientService(patientRepo, userRepo, validate, logr)
	clinicSvc := service.NewClinicService(clinicRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		localStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(exportRepo, apptRepo, doctorRepo, patientRepo, userRepo, localStorage, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
		}, metrics, logr)
		exportQueue = jobs.NewQueue("exports", exportSvc.Process, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportSvc.SetQueue(exportQueue)
		exportQueue.Start(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	clinicHandler := handler.NewClinicHandler(clinicSvc)
	doctorHandler := handler.NewDoctorHandler(doctorSvc, availabilitySvc)
	patientHandler := handler.NewPatientHandler(patientSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	apptHandler := handler.NewAppointmentHandler(apptSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	api.GET("/clinics", clinicHandler.List)
	api.GET("/clinics/:id", clinicHandler.Get)
	api.GET("/doctors", doctorHandler.List)
	api.GET("/doctors/available", doctorHandler.Available)
	api.GET("/doctors/:id", doctorHandler.Get)
	api.GET("/doctors/:id/schedules", scheduleHandler.ListForDoctor)

	authed := api.Group("", middleware.JWT(authSvc))
	authed.POST("/auth/logout", authHandler.Logout)

	authed.GET("/users/me", userHandler.Me)
	authed.PUT("/users/me", userHandler.UpdateMe)

	authed.GET("/appointments", apptHandler.List)
	authed.POST("/appointments", apptHandler.Create)
	authed.GET("/appointments/:id", apptHandler.Get)
	authed.PATCH("/appointments/:id/status", apptHandler.UpdateStatus)

	authed.GET("/patients/:id", patientHandler.Get)
	authed.PUT("/patients/:id", patientHandler.Update)

	staff := authed.Group("", middleware.RequireRoles(models.RoleDoctor, models.RoleAdmin))
	staff.POST("/schedules", scheduleHandler.Create)
	staff.PUT("/schedules/:id", scheduleHandler.Update)
	staff.DELETE("/schedules/:id", scheduleHandler.Delete)
	staff.PUT("/doctors/:id", doctorHandler.Update)

	admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/users", userHandler.List)
	admin.GET("/users/:id", userHandler.Get)
	admin.PATCH("/users/:id/active", userHandler.SetActive)
	admin.POST("/clinics", clinicHandler.Create)
	admin.PUT("/clinics/:id", clinicHandler.Update)
	admin.DELETE("/clinics/:id", clinicHandler.Delete)

	if cfg.Exports.Enabled {
		exportHandler := handler.NewExportHandler(exportSvc)
		// Download is authenticated by the signed token itself.
		api.GET("/exports/download/:token", exportHandler.Download)
		staff.POST("/exports", exportHandler.Request)
		staff.GET("/exports", exportHandler.List)
		staff.GET("/exports/:id", exportHandler.Status)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown did not complete cleanly", "error", err)
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
}
