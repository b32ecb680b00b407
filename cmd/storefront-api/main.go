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
	"go.uber.org/zap"

	_ "github.com/saveyours/booking-api/api/swagger"
	"github.com/saveyours/booking-api/internal/handler"
	"github.com/saveyours/booking-api/internal/repository"
	"github.com/saveyours/booking-api/internal/service"
	"github.com/saveyours/booking-api/pkg/cache"
	"github.com/saveyours/booking-api/pkg/config"
	"github.com/saveyours/booking-api/pkg/database"
	"github.com/saveyours/booking-api/pkg/jobs"
	"github.com/saveyours/booking-api/pkg/logger"
	"github.com/saveyours/booking-api/pkg/mailer"
	"github.com/saveyours/booking-api/pkg/webhook"
)

// @title SaveYours Booking API
// @version 1.0.0
// @description Class sessions, seat allocation and online course vouchers for the SaveYours training storefront
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to open database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, session cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, "saveyours")
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.SessionsTTL, logr, cfg.Cache.Enabled)

	classRepo := repository.NewClassRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	voucherRepo := repository.NewVoucherRepository(db)

	notifier, err := service.NewNotificationService(mailer.New(cfg.Mail, logr), service.NotificationConfig{
		DefaultLocation: cfg.Storefront.DefaultLocation,
		SupportEmail:    cfg.Storefront.SupportEmail,
		PoliciesURL:     cfg.Storefront.PoliciesURL,
	}, metrics, logr)
	if err != nil {
		logr.Fatal("failed to load email templates", zap.Error(err))
	}
	mailQueue := jobs.NewQueue("mail", notifier.Deliver, jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.MaxRetries,
		RetryDelay: cfg.Mail.RetryDelay,
		Logger:     logr,
		DeadLetter: notifier.DeadLetter,
	})
	notifier.UseQueue(mailQueue)
	// Outlives the signal context so in-flight requests can still enqueue mail
	// while the server drains.
	mailQueue.Start(context.Background())

	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AdminEmail:        cfg.Admin.Email,
		AdminPasswordHash: cfg.Admin.PasswordHash,
		AdminName:         cfg.Admin.Name,
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	classSvc := service.NewClassService(classRepo, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, classRepo, cacheSvc, cfg.Storefront.DefaultLocation, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, cacheSvc, validate, logr)
	voucherSvc := service.NewVoucherService(voucherRepo, sessionRepo, enrollmentRepo, notifier, metrics, validate, logr)
	allocationSvc := service.NewAllocationService(sessionRepo, enrollmentRepo, voucherRepo, notifier, cacheSvc, metrics, validate, logr)
	webhookSvc := service.NewWebhookService(webhook.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.Tolerance), allocationSvc, metrics, logr)
	exportSvc := service.NewExportService(sessionRepo, enrollmentRepo, logr)

	r := newRouter(cfg, logr, metrics, authSvc, routeHandlers{
		auth:        handler.NewAuthHandler(authSvc),
		classes:     handler.NewClassHandler(classSvc),
		sessions:    handler.NewSessionHandler(sessionSvc, exportSvc),
		enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		vouchers:    handler.NewVoucherHandler(voucherSvc, logr),
		allocations: handler.NewAllocationHandler(allocationSvc, logr),
		webhooks:    handler.NewWebhookHandler(webhookSvc),
		metrics:     handler.NewMetricsHandler(metrics, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "db_driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	mailQueue.Stop()
}
