package openai

import (
	"context"
	"strings"
	"time"

	"backend/pkg/aiinterface"

	openai "github.com/sashabaranov/go-openai"
)

// Client OpenAI 协议客户端适配器
// 适用于所有兼容 OpenAI Chat Completions 协议的服务（Groq 等）
type Client struct {
	client     *openai.Client
	provider   string
	modelID    string
	maxRetries int
}

// NewClient 创建 OpenAI 协议客户端
func NewClient(config *aiinterface.ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeAuth,
			Message: "API Key 不能为空",
		}
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient.Timeout = time.Duration(config.Timeout) * time.Second
	}

	// 设置默认值
	maxRetries := config.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	provider := config.Provider
	if provider == "" {
		provider = "openai"
	}

	return &Client{
		client:     openai.NewClientWithConfig(clientConfig),
		provider:   provider,
		modelID:    config.Model,
		maxRetries: maxRetries,
	}, nil
}

// ChatCompletion 对话补全（非流式）
func (c *Client) ChatCompletion(ctx context.Context, req *aiinterface.ChatCompletionRequest) (*aiinterface.ChatCompletionResponse, error) {
	// 转换消息格式
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	// 构建请求
	openaiReq := openai.ChatCompletionRequest{
		Model:       c.modelID,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}

	// 调用 API（有限重试 + 指数退避）
	var resp openai.ChatCompletionResponse
	var err error
	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.client.CreateChatCompletion(ctx, openaiReq)
		if err == nil {
			break
		}

		if !isRetryableError(err) {
			break
		}

		if i < c.maxRetries {
			backoff := time.Duration(1<<uint(i)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, wrapError(ctx.Err())
			}
		}
	}

	if err != nil {
		return nil, wrapError(err)
	}

	// 转换响应
	if len(resp.Choices) == 0 {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeServerError,
			Message: "API 返回空响应",
		}
	}

	return &aiinterface.ChatCompletionResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: aiinterface.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Name 返回客户端名称
func (c *Client) Name() string {
	return c.provider
}

// Close 关闭客户端
func (c *Client) Close() error {
	// HTTP 客户端无需显式关闭
	return nil
}

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	// 简化判断：网络错误和服务器错误可重试
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "connection") ||
		strings.Contains(errMsg, "rate limit") ||
		strings.Contains(errMsg, "500") ||
		strings.Contains(errMsg, "502") ||
		strings.Contains(errMsg, "503") ||
		strings.Contains(errMsg, "504")
}

// wrapError 包装错误并归类
func wrapError(err error) *aiinterface.ClientError {
	errMsg := strings.ToLower(err.Error())

	var errType aiinterface.ErrorType
	switch {
	case strings.Contains(errMsg, "401") || strings.Contains(errMsg, "403"):
		errType = aiinterface.ErrorTypeAuth
	case strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "429"):
		errType = aiinterface.ErrorTypeRateLimit
	case strings.Contains(errMsg, "400") || strings.Contains(errMsg, "invalid"):
		errType = aiinterface.ErrorTypeInvalidParams
	case strings.Contains(errMsg, "500") || strings.Contains(errMsg, "502") || strings.Contains(errMsg, "503"):
		errType = aiinterface.ErrorTypeServerError
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "deadline"):
		errType = aiinterface.ErrorTypeNetwork
	default:
		errType = aiinterface.ErrorTypeUnknown
	}

	return &aiinterface.ClientError{
		Type:    errType,
		Message: "文本生成 API 调用失败",
		Err:     err,
	}
}
