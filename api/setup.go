package api

import (
	"backend/api/handlers/chat"
	"backend/internal/chatbot"
	"backend/internal/config"
	"backend/internal/querylog"

	"github.com/gin-gonic/gin"
)

// SetupRouter 组装 HTTP 路由
// queryLog 为 nil 时表示禁用查询日志
func SetupRouter(cfg *config.Config, assistant *chatbot.Assistant, retriever chatbot.ChunkRetriever, queryLog *querylog.Service) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	router := gin.New()

	chatHandler := chat.NewChatHandler(assistant, retriever, queryLog, cfg.RAG.TopK)
	RegisterRoutes(router, cfg, chatHandler)

	return router
}
