package chatbot

import (
	"fmt"
	"strings"
)

// maxChunkDisplay 规则回复中单个文本块的展示长度上限
const maxChunkDisplay = 300

// noContextResponse 无检索结果时的固定回复，绝不编造具体事实
const noContextResponse = "I'm your vehicle maintenance AI assistant. I can help with questions about " +
	"maintenance schedules, risk factors, service recommendations, and interpreting " +
	"vehicle health data. Please ask a specific question about vehicle maintenance."

// topicalNote 关键词触发的补充提示
type topicalNote struct {
	keywords []string
	note     string
}

// topicalNotes 按固定优先级排列的提示表
// 自上而下取第一个命中的类别，最多追加一条提示
var topicalNotes = []topicalNote{
	{
		keywords: []string{"risk", "score", "predict"},
		note: "\nOur ML model uses XGBoost and identifies these top risk factors: " +
			"Reported Issues, Brake Condition (Worn Out), Battery Status (Weak), " +
			"Service History, and Maintenance History.",
	},
	{
		keywords: []string{"oil", "change", "service"},
		note: "\nTip: Regular servicing based on manufacturer schedules " +
			"is the best way to prevent costly repairs.",
	},
	{
		keywords: []string{"brake", "tire", "battery"},
		note: "\nThese components are critical safety items and top predictors " +
			"of maintenance needs. Inspect them regularly.",
	},
}

// RuleBasedResponse 确定性的规则回复合成
// 远端后端不可用时的回退路径，也是无凭证时的唯一路径
func RuleBasedResponse(question string, chunks []string) string {
	if len(chunks) == 0 {
		return noContextResponse
	}

	qLower := strings.ToLower(question)

	parts := []string{"Based on our vehicle maintenance knowledge base:\n"}
	for i, chunk := range chunks {
		display := chunk
		// 按字符截断，避免拆散多字节字符
		if runes := []rune(display); len(runes) > maxChunkDisplay {
			display = string(runes[:maxChunkDisplay]) + "..."
		}
		parts = append(parts, fmt.Sprintf("  %d. %s", i+1, display))
	}

	if note, ok := matchTopicalNote(qLower); ok {
		parts = append(parts, note)
	}

	return strings.Join(parts, "\n")
}

// matchTopicalNote 在提示表中查找第一个命中的类别
func matchTopicalNote(qLower string) (string, bool) {
	for _, entry := range topicalNotes {
		for _, keyword := range entry.keywords {
			if strings.Contains(qLower, keyword) {
				return entry.note, true
			}
		}
	}
	return "", false
}
