package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HuggingFaceEmbeddingProvider HuggingFace Inference API Embedding 提供者
// 通过 feature-extraction 管线调用 sentence-transformers 模型
// 构建索引与查询必须使用同一模型，否则向量空间不一致、检索结果无意义
type HuggingFaceEmbeddingProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// HuggingFaceEmbeddingConfig HuggingFace Embedding 配置
type HuggingFaceEmbeddingConfig struct {
	APIKey  string
	Model   string // 默认 sentence-transformers/all-MiniLM-L6-v2
	BaseURL string
	Timeout time.Duration
}

// NewHuggingFaceEmbeddingProvider 创建 HuggingFace Embedding 提供者
func NewHuggingFaceEmbeddingProvider(config *HuggingFaceEmbeddingConfig) *HuggingFaceEmbeddingProvider {
	if config.BaseURL == "" {
		config.BaseURL = "https://api-inference.huggingface.co/pipeline/feature-extraction"
	}
	if config.Model == "" {
		config.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &HuggingFaceEmbeddingProvider{
		apiKey:  config.APIKey,
		model:   config.Model,
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// hfEmbeddingRequest 请求结构
type hfEmbeddingRequest struct {
	Inputs  []string `json:"inputs"`
	Options struct {
		WaitForModel bool `json:"wait_for_model"`
	} `json:"options"`
}

// Embed 单条向量化
func (p *HuggingFaceEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return embeddings[0], nil
}

// EmbedBatch 批量向量化
func (p *HuggingFaceEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Inference API 对单次请求体量敏感，分批提交
	const maxBatchSize = 64
	var allEmbeddings [][]float32

	for i := 0; i < len(texts); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		embeddings, err := p.embedBatchInternal(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i/maxBatchSize, err)
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

// embedBatchInternal 内部批量向量化
func (p *HuggingFaceEmbeddingProvider) embedBatchInternal(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := hfEmbeddingRequest{Inputs: texts}
	reqBody.Options.WaitForModel = true

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := p.baseURL + "/" + p.model
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	// feature-extraction 返回形如 [[...], [...]] 的二维数组，与输入顺序一致
	var embeddings [][]float32
	if err := json.Unmarshal(respBody, &embeddings); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(embeddings), len(texts))
	}

	return embeddings, nil
}

// GetModel 获取模型名称
func (p *HuggingFaceEmbeddingProvider) GetModel() string {
	return p.model
}

// GetProviderName 获取提供者名称
func (p *HuggingFaceEmbeddingProvider) GetProviderName() string {
	return "huggingface"
}
