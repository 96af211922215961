package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "tempmail/bot/internal/auth/jwt"
	"tempmail/bot/internal/config"
	"tempmail/bot/internal/health"
	"tempmail/bot/internal/middleware"
	"tempmail/bot/internal/monitoring"
	"tempmail/bot/internal/service"
	"tempmail/bot/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	SessionService *service.SessionService
	AdminService   *service.AdminService
	JWTManager     *jwtpkg.Manager
	WebSocketHub   *websocket.Hub        // 可选，为空时不注册推送流
	HealthChecker  *health.HealthChecker // 可选，为空时只有 /health
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	mon := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	router.Use(mon.PanicRecovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(mon.HTTPMetrics())

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"*"}
	}
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			corsConfig.AllowOrigins = nil
			corsConfig.AllowAllOrigins = true
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 健康检查与指标
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.HealthChecker != nil {
		router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyEndpoint))
	}
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	sessionHandler := NewSessionHandler(deps.SessionService, deps.JWTManager, deps.Logger)
	adminHandler := NewAdminHandler(deps.AdminService)
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)

	v1 := router.Group("/v1")

	// 推送流使用 user 角色令牌，由处理器自行校验
	if deps.WebSocketHub != nil {
		v1.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
	}

	// 聊天网关接口
	gateway := v1.Group("")
	gateway.Use(jwtAuth.RequireRole(jwtpkg.RoleGateway, jwtpkg.RoleAdmin))
	{
		gateway.POST("/users/:owner", sessionHandler.RegisterUser)

		gateway.POST("/sessions/:owner", sessionHandler.CreateSession)
		gateway.GET("/sessions/:owner", sessionHandler.GetSession)
		gateway.GET("/sessions/:owner/messages", sessionHandler.ListMessages)
		gateway.GET("/sessions/:owner/messages/:id", sessionHandler.GetMessage)
	}

	// 管理接口
	admin := v1.Group("/admin")
	admin.Use(jwtAuth.RequireRole(jwtpkg.RoleAdmin))
	{
		admin.GET("/stats", adminHandler.GetStats)
		admin.POST("/broadcast", middleware.BodySizeLimit(middleware.SmallBodyLimit), adminHandler.Broadcast)
	}

	return router
}
