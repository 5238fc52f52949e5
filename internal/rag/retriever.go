package rag

import (
	"context"
	"fmt"
	"time"

	"backend/internal/metrics"
)

// IndexUnavailableMessage 索引不可用时返回的哨兵消息
// 降级状态下检索结果固定为只含此消息的单元素序列，而不是报错或返回空
const IndexUnavailableMessage = "RAG index not available. Please ensure embedding credentials are configured."

// Retriever 语义检索器
// provider 为 nil 时处于降级（stub）模式；索引构建完成后检索是只读操作，
// 可被多个会话并发调用
type Retriever struct {
	provider EmbeddingProvider
	index    *VectorIndex
	chunks   []string
}

// NewStubRetriever 创建降级模式的检索器
// 用于嵌入服务凭证缺失或索引构建失败的场景
func NewStubRetriever() *Retriever {
	return &Retriever{}
}

// NewRetriever 创建检索器
// 优先从 indexDir 加载缓存的索引；缓存缺失或不完整时从语料重新构建，
// 构建成功后回写缓存（写入失败仅记为建议性问题，不影响检索）
// provider 为 nil 时直接返回降级模式检索器
func NewRetriever(ctx context.Context, provider EmbeddingProvider, chunks []string, indexDir string) (*Retriever, error) {
	if provider == nil {
		return NewStubRetriever(), nil
	}

	if indexDir != "" {
		if index, cachedChunks, err := LoadIndex(indexDir); err == nil {
			return &Retriever{provider: provider, index: index, chunks: cachedChunks}, nil
		}
	}

	index, err := BuildIndex(ctx, provider, chunks)
	if err != nil {
		return nil, fmt.Errorf("构建向量索引失败: %w", err)
	}

	if indexDir != "" {
		// 缓存仅用于加速下次启动，失败不致命
		if err := index.Save(indexDir, chunks); err != nil {
			return &Retriever{provider: provider, index: index, chunks: chunks}, nil
		}
	}

	return &Retriever{provider: provider, index: index, chunks: chunks}, nil
}

// Available 是否处于可检索状态（非降级模式）
func (r *Retriever) Available() bool {
	return r.provider != nil && r.index != nil
}

// Size 索引中的文本块数量；降级模式返回 0
func (r *Retriever) Size() int {
	if r.index == nil {
		return 0
	}
	return r.index.Size()
}

// Retrieve 检索与查询最相关的至多 k 个文本块，按相似度降序排列
// 降级模式返回单元素哨兵序列；越界位置（索引与语料不一致）被静默丢弃，
// 因此结果长度可能小于 k，但绝不包含越界文本块
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if !r.Available() {
		metrics.RetrievalsTotal.WithLabelValues("stub").Inc()
		return []string{IndexUnavailableMessage}, nil
	}
	if k <= 0 {
		return nil, fmt.Errorf("k 必须为正数: %d", k)
	}

	start := time.Now()

	// 查询必须使用与建库相同的模型和归一化流程
	queryVec, err := r.provider.Embed(ctx, query)
	if err != nil {
		metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	hits := r.index.Search(NormalizeL2(queryVec), k)

	results := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.Position < 0 || hit.Position >= len(r.chunks) {
			continue
		}
		results = append(results, r.chunks[hit.Position])
	}

	metrics.RetrievalsTotal.WithLabelValues("ok").Inc()
	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	return results, nil
}
