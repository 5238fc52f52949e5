package chatbot

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationMemory_AddAndLen(t *testing.T) {
	m := NewConversationMemory(10)
	require.Equal(t, 0, m.Len())

	m.Add(RoleUser, "多久换一次机油？")
	m.Add(RoleAssistant, "一般 5000-10000 公里。")

	assert.Equal(t, 2, m.Len())

	turns := m.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, RoleAssistant, turns[1].Role)
}

func TestConversationMemory_Eviction(t *testing.T) {
	// maxTurns=2 时窗口上限为 4 条记录
	m := NewConversationMemory(2)

	for i := 0; i < 5; i++ {
		m.Add(RoleUser, fmt.Sprintf("问题 %d", i))
		m.Add(RoleAssistant, fmt.Sprintf("回答 %d", i))
	}

	if m.Len() != 4 {
		t.Fatalf("窗口应收敛到 4 条记录, 实际 %d", m.Len())
	}

	// 保留的必须是时间上最新的 4 条，且相对顺序不变
	turns := m.Turns()
	assert.Equal(t, "问题 3", turns[0].Content)
	assert.Equal(t, "回答 3", turns[1].Content)
	assert.Equal(t, "问题 4", turns[2].Content)
	assert.Equal(t, "回答 4", turns[3].Content)
}

func TestConversationMemory_ContextString(t *testing.T) {
	m := NewConversationMemory(10)
	assert.Equal(t, "", m.ContextString())

	m.Add(RoleUser, "刹车片多久检查？")
	m.Add(RoleAssistant, "建议每 10000 公里检查一次。")

	ctx := m.ContextString()
	lines := strings.Split(ctx, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "User: 刹车片多久检查？", lines[0])
	assert.Equal(t, "Assistant: 建议每 10000 公里检查一次。", lines[1])
}

func TestConversationMemory_Clear(t *testing.T) {
	m := NewConversationMemory(10)
	m.Add(RoleUser, "hello")
	m.Add(RoleAssistant, "hi")

	m.Clear()

	assert.Equal(t, 0, m.Len())
	assert.Equal(t, "", m.ContextString())
}

func TestConversationMemory_DefaultMaxTurns(t *testing.T) {
	// 非法的 maxTurns 回落到默认值
	m := NewConversationMemory(0)

	for i := 0; i < 30; i++ {
		m.Add(RoleUser, "q")
		m.Add(RoleAssistant, "a")
	}

	assert.Equal(t, DefaultMaxTurns*2, m.Len())
}
