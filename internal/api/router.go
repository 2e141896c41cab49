package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/spotmap-go/internal/handler"
	"github.com/jengzang/spotmap-go/internal/logging"
	"github.com/jengzang/spotmap-go/internal/middleware"
	"github.com/jengzang/spotmap-go/internal/service"
)

// Deps are the services the router exposes
type Deps struct {
	Spots    *service.SpotService
	Sessions *service.SessionService
	Limiter  *middleware.RateLimiter
	Logger   *zap.Logger
}

// SetupRouter 设置路由
func SetupRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(logging.OrNop(deps.Logger)))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Spot backend is running",
		})
	})

	spotHandler := handler.NewSpotHandler(deps.Spots)
	authHandler := handler.NewAuthHandler(deps.Sessions)
	requireAuth := middleware.Auth(deps.Sessions)
	limit := middleware.RateLimit(deps.Limiter)

	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/session", limit, authHandler.SignIn)
			authGroup.GET("/me", requireAuth, authHandler.Me)
		}

		spots := v1.Group("/spots")
		{
			spots.GET("/public", spotHandler.ListPublicSpots)
			spots.POST("/public", limit, requireAuth, spotHandler.CreatePublicSpot)
		}
	}

	return r
}
