package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/saveyours/booking-api/internal/handler"
	"github.com/saveyours/booking-api/internal/middleware"
	"github.com/saveyours/booking-api/internal/models"
	"github.com/saveyours/booking-api/internal/service"
	"github.com/saveyours/booking-api/pkg/config"
	"github.com/saveyours/booking-api/pkg/logger"
	corsmiddleware "github.com/saveyours/booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/saveyours/booking-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	auth        *handler.AuthHandler
	classes     *handler.ClassHandler
	sessions    *handler.SessionHandler
	enrollments *handler.EnrollmentHandler
	vouchers    *handler.VoucherHandler
	allocations *handler.AllocationHandler
	webhooks    *handler.WebhookHandler
	metrics     *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, tokens middleware.TokenValidator, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.GET("/classes", h.classes.List)
	api.GET("/classes/:id", h.classes.Get)
	api.GET("/sessions", h.sessions.ListPublic)
	api.GET("/sessions/:id", h.sessions.GetPublic)
	api.POST("/webhooks/payments", h.webhooks.Payment)
	api.POST("/admin/login", h.auth.Login)

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(tokens), middleware.RequireRoles(models.RoleAdmin))

	admin.GET("/me", h.auth.Me)
	admin.POST("/classes", h.classes.Create)

	admin.GET("/sessions", h.sessions.List)
	admin.POST("/sessions", h.sessions.Create)
	admin.GET("/sessions/:id", h.sessions.Get)
	admin.PATCH("/sessions/:id", h.sessions.Update)
	admin.POST("/sessions/:id/cancel", h.sessions.Cancel)
	admin.GET("/sessions/:id/roster", h.sessions.Roster)
	admin.GET("/sessions/:id/vouchers", h.vouchers.List)
	admin.POST("/sessions/:id/vouchers", h.vouchers.Add)
	admin.GET("/sessions/:id/vouchers/stats", h.vouchers.Stats)
	admin.POST("/sessions/:id/vouchers/backfill", h.vouchers.Backfill)

	admin.GET("/enrollments", h.enrollments.List)
	admin.GET("/enrollments/:id", h.enrollments.Get)
	admin.POST("/enrollments/:id/complete", h.enrollments.Complete)
	admin.PUT("/enrollments/:id/online-course", h.enrollments.SetOnlineCourse)
	admin.POST("/enrollments/:id/cancel", h.enrollments.Cancel)
	admin.POST("/enrollments/:id/restore", h.enrollments.Restore)

	admin.POST("/vouchers/delete", h.vouchers.DeleteMany)
	admin.GET("/vouchers/:id", h.vouchers.Get)
	admin.PUT("/vouchers/:id", h.vouchers.Update)
	admin.DELETE("/vouchers/:id", h.vouchers.Delete)
	admin.POST("/vouchers/:id/release", h.vouchers.Release)
	admin.POST("/vouchers/:id/assign", h.vouchers.Assign)

	admin.POST("/allocations", h.allocations.Create)

	return r
}
