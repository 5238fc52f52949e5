package ai

import (
	"fmt"

	"backend/internal/ai/huggingface"
	"backend/internal/ai/openai"
)

// Backend 响应生成后端
// 在编排器构造时按凭证优先级一次性确定，实例生命周期内不再变化
type Backend string

const (
	// BackendGroq Groq API（OpenAI 兼容协议），优先级最高
	BackendGroq Backend = "groq"

	// BackendHuggingFace HuggingFace Inference API，次优先
	BackendHuggingFace Backend = "huggingface"

	// BackendRuleBased 规则回退，无需任何凭证，始终可用
	BackendRuleBased Backend = "rule-based"
)

// SelectBackend 按凭证优先级确定后端：groq > huggingface > rule-based
// 两个凭证都缺失时进入规则回退模式
func SelectBackend(groqKey, hfKey string) Backend {
	switch {
	case groqKey != "":
		return BackendGroq
	case hfKey != "":
		return BackendHuggingFace
	default:
		return BackendRuleBased
	}
}

// NewClient 为选定后端创建文本生成客户端
// 规则回退模式返回 nil 客户端（编排器不会调用远端）
func NewClient(backend Backend, config *ClientConfig) (ModelClient, error) {
	switch backend {
	case BackendGroq:
		// Groq 兼容 OpenAI 协议，复用 openai 驱动
		return openai.NewClient(config)
	case BackendHuggingFace:
		return huggingface.NewClient(config)
	case BackendRuleBased:
		return nil, nil
	default:
		return nil, fmt.Errorf("未知后端: %s", backend)
	}
}
