package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finbridge/sms-gateway/internal/adapter/http/middleware"
)

type RouterDeps struct {
	MessageHandler     *MessageHandler
	WebhookHandler     *WebhookHandler
	HealthHandler      *HealthHandler
	WebSocketHandler   *WebSocketHandler
	Logger             *zap.Logger
	RateLimitPerSecond int
}

func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Tracing())
	r.Use(middleware.Logging(deps.Logger))

	r.GET("/health", deps.HealthHandler.Liveness)
	r.GET("/health/ready", deps.HealthHandler.Readiness)

	r.GET("/ws", deps.WebSocketHandler.Handle)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(deps.RateLimitPerSecond))
	{
		messages := v1.Group("/messages")
		{
			messages.POST("", deps.MessageHandler.Submit)
			messages.GET("/status", deps.MessageHandler.Status)
		}
	}

	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/:provider/report", deps.WebhookHandler.Report)
		webhooks.POST("/:provider/inbound", deps.WebhookHandler.Inbound)
	}

	return r
}
