package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/docflow-api/internal/handler"
	internalmiddleware "github.com/noah-isme/docflow-api/internal/middleware"
	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/realtime"
	"github.com/noah-isme/docflow-api/internal/service"
	"github.com/noah-isme/docflow-api/pkg/config"
	"github.com/noah-isme/docflow-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/docflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/docflow-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by Setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Files         *handler.FileHandler
	Notifications *handler.NotificationHandler
	Reminders     *handler.ReminderHandler
	Metrics       *handler.MetricsHandler
	Realtime      *realtime.Handler
}

// Setup builds the gin engine with the global middleware chain and all routes.
func Setup(cfg *config.Config, logr *zap.Logger, tokens internalmiddleware.TokenValidator, metrics *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	r.GET("/ws", h.Realtime.Serve)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/signup", h.Auth.SignUp)
	api.POST("/auth/signin", h.Auth.SignIn)
	api.GET("/files/shared/:token", h.Files.ViewShared)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(tokens))
	secured.PATCH("/auth/password", h.Auth.ChangePassword)
	secured.GET("/auth/me", h.Auth.Me)

	files := secured.Group("/files")
	files.POST("", h.Files.Upload)
	files.GET("", h.Files.List)
	files.GET("/:id", h.Files.Get)
	files.GET("/:id/view", h.Files.View)
	files.POST("/:id/view-link", h.Files.CreateViewLink)
	files.GET("/:id/history/export", h.Files.ExportHistory)
	files.PATCH("/:id/status", h.Files.UpdateStatus)
	files.POST("/:id/forward", h.Files.Forward)
	files.POST("/:id/review", h.Files.Review)
	files.DELETE("/:id", h.Files.Delete)

	notifications := secured.Group("/notifications")
	notifications.GET("", h.Notifications.ListUnread)
	notifications.GET("/all", h.Notifications.ListAll)
	notifications.PATCH("/read-all", h.Notifications.MarkAllRead)
	notifications.PATCH("/:id/read", h.Notifications.MarkRead)

	secured.POST("/reminders/suggest", h.Reminders.Suggest)

	admin := secured.Group("/admin")
	admin.Use(internalmiddleware.RequireRoles(models.RoleAdmin))
	admin.GET("/users", h.Users.List)
	admin.POST("/users", h.Users.Create)
	admin.GET("/users/:id", h.Users.Get)
	admin.PUT("/users/:id", h.Users.Update)
	admin.DELETE("/users/:id", h.Users.Delete)
	admin.GET("/metrics/summary", h.Metrics.Summary)

	return r
}
