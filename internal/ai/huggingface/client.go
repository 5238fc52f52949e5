package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"backend/pkg/aiinterface"
)

// Client HuggingFace Inference API 文本生成客户端
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建 HuggingFace 客户端
func NewClient(config *aiinterface.ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeAuth,
			Message: "HuggingFace Token 不能为空",
		}
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co/models"
	}
	model := config.Model
	if model == "" {
		model = "microsoft/Phi-3-mini-4k-instruct"
	}
	timeout := 30 * time.Second
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}

	return &Client{
		apiKey:  config.APIKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// hfGenerateRequest 请求结构
type hfGenerateRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		MaxNewTokens int     `json:"max_new_tokens"`
		Temperature  float64 `json:"temperature"`
	} `json:"parameters"`
}

// hfGenerateResponse 响应结构（数组形式）
type hfGenerateResponse []struct {
	GeneratedText string `json:"generated_text"`
}

// ChatCompletion 对话补全
// Inference API 是单段文本接口，消息列表被拼接为一段提示词提交
func (c *Client) ChatCompletion(ctx context.Context, req *aiinterface.ChatCompletionRequest) (*aiinterface.ChatCompletionResponse, error) {
	reqBody := hfGenerateRequest{Inputs: flattenMessages(req.Messages)}
	reqBody.Parameters.MaxNewTokens = req.MaxTokens
	if reqBody.Parameters.MaxNewTokens <= 0 {
		reqBody.Parameters.MaxNewTokens = 512
	}
	reqBody.Parameters.Temperature = req.Temperature

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeInvalidParams,
			Message: "序列化请求失败",
			Err:     err,
		}
	}

	url := c.baseURL + "/" + c.model
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeInvalidParams,
			Message: "创建请求失败",
			Err:     err,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeNetwork,
			Message: "HuggingFace API 请求失败",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeNetwork,
			Message: "读取响应失败",
			Err:     err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &aiinterface.ClientError{
			Type:    classifyStatus(resp.StatusCode),
			Message: fmt.Sprintf("HuggingFace API 错误 %d", resp.StatusCode),
			Err:     fmt.Errorf("%s", string(respBody)),
		}
	}

	var result hfGenerateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeServerError,
			Message: "解析响应失败",
			Err:     err,
		}
	}
	if len(result) == 0 {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeServerError,
			Message: "API 返回空响应",
		}
	}

	return &aiinterface.ChatCompletionResponse{
		Model:   c.model,
		Content: strings.TrimSpace(result[0].GeneratedText),
	}, nil
}

// Name 返回客户端名称
func (c *Client) Name() string {
	return "huggingface"
}

// Close 关闭客户端
func (c *Client) Close() error {
	return nil
}

// flattenMessages 将消息列表拼接为单段提示词
func flattenMessages(messages []aiinterface.Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		parts = append(parts, msg.Content)
	}
	return strings.Join(parts, "\n\n")
}

// classifyStatus 将 HTTP 状态码归类为客户端错误类型
func classifyStatus(status int) aiinterface.ErrorType {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return aiinterface.ErrorTypeAuth
	case status == http.StatusTooManyRequests:
		return aiinterface.ErrorTypeRateLimit
	case status >= 500:
		return aiinterface.ErrorTypeServerError
	case status >= 400:
		return aiinterface.ErrorTypeInvalidParams
	default:
		return aiinterface.ErrorTypeUnknown
	}
}
