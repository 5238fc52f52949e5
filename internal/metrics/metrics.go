package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmai_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vmai_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 对话指标
var (
	// ChatRequestsTotal 对话请求总数
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmai_chat_requests_total",
			Help: "对话请求总数",
		},
		[]string{"backend"},
	)

	// ChatFallbacksTotal 远端失败后回退规则合成的次数
	ChatFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmai_chat_fallbacks_total",
			Help: "远端后端失败回退次数",
		},
		[]string{"backend"},
	)
)

// RAG 检索指标
var (
	// RetrievalsTotal 检索总数
	RetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmai_rag_retrievals_total",
			Help: "语义检索总数",
		},
		[]string{"mode"}, // ok, stub, error
	)

	// RetrievalDuration 检索耗时（秒），含查询向量化
	RetrievalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vmai_rag_retrieval_duration_seconds",
			Help:    "语义检索耗时分布",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// IndexSize 当前索引中的向量数量
	IndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmai_rag_index_size",
			Help: "向量索引规模",
		},
	)
)
