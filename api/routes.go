package api

import (
	"backend/api/handlers/chat"
	"backend/internal/config"
	"backend/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 注册全部路由
func RegisterRoutes(router *gin.Engine, cfg *config.Config, chatHandler *chat.ChatHandler) {
	// 全局中间件
	router.Use(RequestLogger())
	router.Use(CORS(cfg.CORS))
	router.Use(metrics.PrometheusMiddleware())
	router.Use(gin.Recovery())

	// 系统端点
	router.GET("/health", HealthCheck())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 业务端点
	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/chat", chatHandler.Chat)
		apiGroup.POST("/retrieve", chatHandler.Retrieve)
	}
}
