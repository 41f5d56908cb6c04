package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/schoolhub-dev/schoolhub-api/internal/handler"
	"github.com/schoolhub-dev/schoolhub-api/internal/middleware"
	"github.com/schoolhub-dev/schoolhub-api/internal/models"
	"github.com/schoolhub-dev/schoolhub-api/internal/service"
	"github.com/schoolhub-dev/schoolhub-api/pkg/config"
	"github.com/schoolhub-dev/schoolhub-api/pkg/logger"
	corsmiddleware "github.com/schoolhub-dev/schoolhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/schoolhub-dev/schoolhub-api/pkg/middleware/requestid"
)

// Dependencies carries everything route registration needs.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sqlx.DB
	Redis   *redis.Client
	Metrics *service.MetricsService

	Auth       *service.AuthService
	Dashboard  *handler.DashboardHandler
	Admissions *handler.AdmissionHandler
	Users      *handler.UserHandler
	AuthH      *handler.AuthHandler
	MetricsH   *handler.MetricsHandler
}

// New builds the gin engine with middleware and all routes registered.
func New(deps Dependencies) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.MetricsH.Health)
	r.GET("/ready", readiness(deps.DB, deps.Redis))
	r.GET("/metrics", deps.MetricsH.Prometheus)

	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.Config.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.AuthH.Login)
		auth.POST("/refresh", deps.AuthH.Refresh)
		auth.POST("/logout", middleware.JWT(deps.Auth), deps.AuthH.Logout)
		auth.POST("/change-password", middleware.JWT(deps.Auth), deps.AuthH.ChangePassword)
		auth.GET("/me", middleware.JWT(deps.Auth), deps.AuthH.Me)
	}

	dashboard := api.Group("/dashboard", middleware.JWT(deps.Auth))
	{
		dashboard.GET("/overview", deps.Dashboard.Overview)
		dashboard.GET("/quick-stats", deps.Dashboard.QuickStats)
	}

	admissions := api.Group("/admissions", middleware.JWT(deps.Auth))
	{
		staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
		admissions.GET("", deps.Admissions.List)
		admissions.GET("/export", staff, deps.Admissions.Export)
		admissions.GET("/:id", deps.Admissions.Get)
		admissions.POST("", staff, deps.Admissions.Create)
		admissions.PATCH("/:id/status", staff, deps.Admissions.UpdateStatus)
	}

	users := api.Group("/users", middleware.JWT(deps.Auth))
	{
		admin := middleware.RequireRoles(models.RoleAdmin)
		users.GET("", admin, deps.Users.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), deps.Users.Get)
		users.POST("", admin, deps.Users.Create)
		users.PUT("/:id", admin, deps.Users.Update)
		users.DELETE("/:id", admin, deps.Users.Delete)
	}

	return r
}

// readiness probes the backing stores so the endpoint reflects whether the
// service can actually serve requests.
func readiness(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "cache": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
