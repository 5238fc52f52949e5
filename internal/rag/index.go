package rag

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// 索引缓存文件名：向量文件与平行的文本块文件
// 两者必须同时存在且数量一致才可信任，否则调用方重新构建
const (
	indexFileName  = "index.gob"
	chunksFileName = "chunks.gob"
)

// ErrIndexNotFound 索引缓存缺失或不完整
var ErrIndexNotFound = errors.New("向量索引缓存不存在或不完整")

// SearchHit 一次相似度检索命中的位置与得分
type SearchHit struct {
	Position int     // 文本块在语料中的位置
	Score    float32 // 内积得分（向量已归一化，等价余弦相似度）
}

// VectorIndex 扁平内积索引
// 持有与语料平行的有序归一化向量序列；构建完成后只读，可被多个会话并发检索
type VectorIndex struct {
	vectors [][]float32
	dim     int
}

// BuildIndex 批量向量化文本块并构建索引
// 所有向量在入库前做 L2 归一化，保证内积等于余弦相似度
func BuildIndex(ctx context.Context, provider EmbeddingProvider, chunks []string) (*VectorIndex, error) {
	if provider == nil {
		return nil, fmt.Errorf("缺少 Embedding 提供者")
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("语料为空，无法构建索引")
	}

	embeddings, err := provider.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("批量向量化失败: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("向量数量 %d 与文本块数量 %d 不一致", len(embeddings), len(chunks))
	}

	dim := 0
	vectors := make([][]float32, len(embeddings))
	for i, emb := range embeddings {
		if len(emb) == 0 {
			return nil, fmt.Errorf("第 %d 个文本块向量为空", i)
		}
		if dim == 0 {
			dim = len(emb)
		}
		if len(emb) != dim {
			return nil, fmt.Errorf("第 %d 个向量维度 %d 与期望 %d 不一致", i, len(emb), dim)
		}
		vectors[i] = NormalizeL2(emb)
	}

	return &VectorIndex{vectors: vectors, dim: dim}, nil
}

// Size 返回索引中的向量数量
func (idx *VectorIndex) Size() int {
	return len(idx.vectors)
}

// Dimension 返回向量维度
func (idx *VectorIndex) Dimension() int {
	return idx.dim
}

// Search 对查询向量做全量内积检索，返回得分降序的前 k 个位置
// 只读操作，不修改索引状态
func (idx *VectorIndex) Search(queryVec []float32, k int) []SearchHit {
	if k <= 0 || len(idx.vectors) == 0 || len(queryVec) != idx.dim {
		return nil
	}

	hits := make([]SearchHit, len(idx.vectors))
	for i, vec := range idx.vectors {
		hits[i] = SearchHit{Position: i, Score: dotProduct(queryVec, vec)}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Position < hits[b].Position
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Save 将索引与平行文本块列表写入目录
// 缓存仅为加速启动；写入失败不影响检索正确性，下次启动重新构建即可
func (idx *VectorIndex) Save(dir string, chunks []string) error {
	if len(chunks) != len(idx.vectors) {
		return fmt.Errorf("文本块数量 %d 与向量数量 %d 不一致，拒绝写入", len(chunks), len(idx.vectors))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建索引目录失败: %w", err)
	}
	if err := writeGob(filepath.Join(dir, indexFileName), idx.vectors); err != nil {
		return fmt.Errorf("写入向量文件失败: %w", err)
	}
	if err := writeGob(filepath.Join(dir, chunksFileName), chunks); err != nil {
		return fmt.Errorf("写入文本块文件失败: %w", err)
	}
	return nil
}

// LoadIndex 从目录加载索引与平行文本块列表
// 任一文件缺失、损坏或数量不一致时返回 ErrIndexNotFound，调用方应重新构建
func LoadIndex(dir string) (*VectorIndex, []string, error) {
	var vectors [][]float32
	if err := readGob(filepath.Join(dir, indexFileName), &vectors); err != nil {
		return nil, nil, ErrIndexNotFound
	}
	var chunks []string
	if err := readGob(filepath.Join(dir, chunksFileName), &chunks); err != nil {
		return nil, nil, ErrIndexNotFound
	}
	if len(vectors) == 0 || len(vectors) != len(chunks) {
		return nil, nil, ErrIndexNotFound
	}

	dim := len(vectors[0])
	for _, vec := range vectors {
		if len(vec) != dim {
			return nil, nil, ErrIndexNotFound
		}
	}

	return &VectorIndex{vectors: vectors, dim: dim}, chunks, nil
}

// NormalizeL2 返回 L2 归一化后的新向量；零向量原样返回副本
func NormalizeL2(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)

	out := make([]float32, len(vec))
	if norm == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// dotProduct 两个等长向量的内积
func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// writeGob 以 gob 编码写文件
func writeGob(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return gob.NewEncoder(file).Encode(value)
}

// readGob 以 gob 编码读文件
func readGob(path string, value any) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return gob.NewDecoder(file).Decode(value)
}
