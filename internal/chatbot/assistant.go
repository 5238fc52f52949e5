package chatbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backend/internal/ai"
	"backend/internal/metrics"
	"backend/internal/rag"

	"go.uber.org/zap"
)

// SystemPrompt 助手的系统提示词
const SystemPrompt = "You are an expert vehicle maintenance assistant. You help fleet managers " +
	"and vehicle owners understand maintenance needs, interpret risk scores, " +
	"and provide actionable service recommendations. " +
	"Use the provided context to give accurate, specific answers. " +
	"If you don't know something, say so rather than guessing. " +
	"Keep responses concise but informative."

// FallbackNote 远端调用失败时在规则回复前追加的说明
// 不向最终用户透出原始错误细节
const FallbackNote = "LLM API unavailable. Falling back to knowledge base.\n\n"

// DefaultTopK 默认检索条数
const DefaultTopK = 3

// ChunkRetriever 检索器接口，编排器只依赖这一能力
type ChunkRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

// Options 助手构造参数
// Backend 在构造时一次性确定，实例生命周期内不再变化
type Options struct {
	Backend   ai.Backend     // 响应生成后端
	Client    ai.ModelClient // 远端客户端；规则回退模式为 nil
	Retriever ChunkRetriever // 可为 nil（无检索能力）
	MaxTurns  int            // 对话记忆轮数上限
	TopK      int            // 检索条数，默认 3
	MaxTokens int            // 远端生成 Token 上限，默认 512
	Timeout   time.Duration  // 远端调用超时，默认 30s
	Logger    *zap.Logger    // 可为 nil
}

// Assistant 对话式车辆保养助手
// 组合检索增强与远端生成；远端失败时确定性地回退到规则合成
// 一个实例对应一个会话，跨会话共享需要外部串行化
type Assistant struct {
	backend   ai.Backend
	client    ai.ModelClient
	retriever ChunkRetriever
	memory    *ConversationMemory
	topK      int
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger

	lastRetrieved int
}

// New 创建助手
func New(opts Options) *Assistant {
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	backend := opts.Backend
	if backend == "" || opts.Client == nil {
		backend = ai.BackendRuleBased
	}

	return &Assistant{
		backend:   backend,
		client:    opts.Client,
		retriever: opts.Retriever,
		memory:    NewConversationMemory(opts.MaxTurns),
		topK:      topK,
		maxTokens: maxTokens,
		timeout:   timeout,
		logger:    logger,
	}
}

// Backend 当前使用的响应生成后端
func (a *Assistant) Backend() ai.Backend {
	return a.backend
}

// Memory 对话记忆（由本实例独占）
func (a *Assistant) Memory() *ConversationMemory {
	return a.memory
}

// LastRetrievedCount 最近一次 Ask 实际使用的知识块数量
func (a *Assistant) LastRetrievedCount() int {
	return a.lastRetrieved
}

// Ask 处理一个用户问题并返回回复
// 对任何格式正确的问题都返回非空字符串，内部错误一律降级而不上抛
func (a *Assistant) Ask(ctx context.Context, question string) string {
	// 1. 检索相关知识；检索失败等同于零上下文
	var chunks []string
	if a.retriever != nil {
		retrieved, err := a.retriever.Retrieve(ctx, question, a.topK)
		if err != nil {
			a.logger.Warn("检索失败，继续无上下文回答", zap.Error(err))
		} else {
			chunks = retrieved
		}
	}
	a.lastRetrieved = len(chunks)
	if len(chunks) == 1 && chunks[0] == rag.IndexUnavailableMessage {
		// 降级哨兵是提示语而非知识块，不计入检索数量
		a.lastRetrieved = 0
	}

	// 2. 问题入记忆
	a.memory.Add(RoleUser, question)

	// 3. 按后端分派
	metrics.ChatRequestsTotal.WithLabelValues(string(a.backend)).Inc()
	var response string
	switch a.backend {
	case ai.BackendGroq, ai.BackendHuggingFace:
		response = a.callRemote(ctx, question, chunks)
	default:
		response = RuleBasedResponse(question, chunks)
	}

	// 4. 回复入记忆
	a.memory.Add(RoleAssistant, response)
	return response
}

// callRemote 调用远端后端；任何失败都回退到规则合成并附加说明
func (a *Assistant) callRemote(ctx context.Context, question string, chunks []string) string {
	prompt := a.buildPrompt(question, chunks)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.ChatCompletion(ctx, &ai.ChatCompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   a.maxTokens,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		a.logger.Warn("远端后端调用失败，回退规则合成",
			zap.String("backend", string(a.backend)),
			zap.Error(err),
		)
		metrics.ChatFallbacksTotal.WithLabelValues(string(a.backend)).Inc()
		return FallbackNote + RuleBasedResponse(question, chunks)
	}

	return resp.Content
}

// buildPrompt 构建组合提示词：系统提示 + 编号知识块 + 对话历史 + 新问题
func (a *Assistant) buildPrompt(question string, chunks []string) string {
	parts := []string{SystemPrompt}

	if len(chunks) > 0 {
		parts = append(parts, "\n--- Relevant Knowledge ---")
		for i, chunk := range chunks {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, chunk))
		}
		parts = append(parts, "--- End Knowledge ---\n")
	}

	if history := a.memory.ContextString(); history != "" {
		parts = append(parts, "Conversation so far:\n"+history)
	}

	parts = append(parts, "\nUser question: "+question)
	parts = append(parts, "\nProvide a helpful, concise answer:")
	return strings.Join(parts, "\n")
}
