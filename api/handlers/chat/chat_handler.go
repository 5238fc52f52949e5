package chat

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"backend/api/handlers/common"
	"backend/internal/chatbot"
	"backend/internal/logger"
	"backend/internal/querylog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatRequest 对话请求
type ChatRequest struct {
	Query string `json:"query" binding:"required"`
}

// maxTopK 单次检索条数上限
const maxTopK = 20

// RetrieveRequest 检索请求
type RetrieveRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

// ChatHandler 对话与检索API处理器
// 助手实例持有会话记忆，跨请求共享，因此对话调用需要串行化
type ChatHandler struct {
	mu        sync.Mutex
	assistant *chatbot.Assistant
	retriever chatbot.ChunkRetriever
	queryLog  *querylog.Service // 可为 nil（禁用查询日志）
	topK      int
}

// NewChatHandler 创建对话处理器
func NewChatHandler(assistant *chatbot.Assistant, retriever chatbot.ChunkRetriever, queryLog *querylog.Service, topK int) *ChatHandler {
	if topK <= 0 {
		topK = chatbot.DefaultTopK
	}
	return &ChatHandler{
		assistant: assistant,
		retriever: retriever,
		queryLog:  queryLog,
		topK:      topK,
	}
}

// Chat 处理一轮对话
// @Summary 对话问答
// @Description 基于知识库检索与对话记忆回答车辆保养问题
// @Tags 对话
// @Accept json
// @Produce json
// @Param request body ChatRequest true "用户问题"
// @Success 200 {object} map[string]interface{} "助手回复"
// @Failure 400 {object} map[string]interface{} "参数错误"
// @Router /api/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Success: false,
			Code:    "invalid_request",
			Message: "query 不能为空",
		})
		return
	}

	start := time.Now()

	h.mu.Lock()
	response := h.assistant.Ask(c.Request.Context(), req.Query)
	memoryLength := h.assistant.Memory().Len()
	retrieved := h.assistant.LastRetrievedCount()
	h.mu.Unlock()

	h.recordQuery(c, req.Query, response, retrieved, time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"response":      response,
		"memory_length": memoryLength,
	})
}

// Retrieve 仅检索，不生成回复
// @Summary 语义检索
// @Description 返回与查询最相关的知识块，用于调试检索质量
// @Tags 对话
// @Accept json
// @Produce json
// @Param request body RetrieveRequest true "检索查询"
// @Success 200 {object} map[string]interface{} "检索结果"
// @Failure 400 {object} map[string]interface{} "参数错误"
// @Router /api/retrieve [post]
func (h *ChatHandler) Retrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Success: false,
			Code:    "invalid_request",
			Message: "query 不能为空",
		})
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = h.topK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	chunks, err := h.retriever.Retrieve(c.Request.Context(), req.Query, topK)
	if err != nil {
		// 检索失败按零结果处理，不向客户端报错
		logger.Warn("检索失败", zap.Error(err), zap.String("query", req.Query))
		chunks = []string{}
	}
	if chunks == nil {
		chunks = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"query":            req.Query,
		"retrieved_chunks": chunks,
	})
}

// recordQuery 写入查询日志；失败只打日志
func (h *ChatHandler) recordQuery(c *gin.Context, query, response string, retrieved int, latency time.Duration) {
	if h.queryLog == nil {
		return
	}
	entry := &querylog.RagQueryLog{
		Query:          query,
		TopK:           h.topK,
		RetrievedCount: retrieved,
		Backend:        string(h.assistant.Backend()),
		FallbackUsed:   strings.HasPrefix(response, chatbot.FallbackNote),
		LatencyMs:      latency.Milliseconds(),
	}
	if err := h.queryLog.Record(c.Request.Context(), entry); err != nil {
		logger.Warn("查询日志写入失败", zap.Error(err))
	}
}
