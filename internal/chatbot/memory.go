package chatbot

import "strings"

// 对话角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxTurns 默认保留的对话轮数（一轮 = 用户 + 助手各一条）
const DefaultMaxTurns = 10

// Turn 一条对话记录
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationMemory 滑动窗口对话记忆
// 条目上限为 2×maxTurns，超出后从最早的条目开始淘汰（FIFO）
// 由单个编排器独占，跨会话共享需要外部串行化
type ConversationMemory struct {
	turns    []Turn
	maxTurns int
}

// NewConversationMemory 创建对话记忆，maxTurns <= 0 时取 DefaultMaxTurns
func NewConversationMemory(maxTurns int) *ConversationMemory {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &ConversationMemory{maxTurns: maxTurns}
}

// Add 追加一条对话记录并裁剪到窗口上限
// 对内容不做任何校验：空串、超长、非 ASCII 文本都原样存储
func (m *ConversationMemory) Add(role, content string) {
	m.turns = append(m.turns, Turn{Role: role, Content: content})
	if limit := m.maxTurns * 2; len(m.turns) > limit {
		m.turns = m.turns[len(m.turns)-limit:]
	}
}

// ContextString 将对话历史渲染为提示词上下文
// 每条记录一行 "User: ..." 或 "Assistant: ..."，无历史时返回空串
func (m *ConversationMemory) ContextString() string {
	if len(m.turns) == 0 {
		return ""
	}
	lines := make([]string, len(m.turns))
	for i, turn := range m.turns {
		prefix := "Assistant"
		if turn.Role == RoleUser {
			prefix = "User"
		}
		lines[i] = prefix + ": " + turn.Content
	}
	return strings.Join(lines, "\n")
}

// Clear 清空对话历史
func (m *ConversationMemory) Clear() {
	m.turns = nil
}

// Len 当前的条目数量
func (m *ConversationMemory) Len() int {
	return len(m.turns)
}

// Turns 返回对话历史副本，按时间顺序
func (m *ConversationMemory) Turns() []Turn {
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}
