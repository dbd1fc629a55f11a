package node

import (
	"strings"

	wfmodel "nexus-marketing-api/internal/workflow/model"
)

// BuildHistoryBlock 将最近的对话历史拼为提示词片段。
// 单条消息过长时按 rune 截断，避免历史撑爆上下文。
func BuildHistoryBlock(history []wfmodel.HistoryTurn) string {
	if len(history) == 0 {
		return "(no prior messages)"
	}
	const maxTurnRunes = 600
	lines := make([]string, 0, len(history))
	for _, t := range history {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		role := strings.TrimSpace(t.Role)
		if role == "" {
			role = "user"
		}
		lines = append(lines, role+": "+TruncateByRunes(content, maxTurnRunes))
	}
	if len(lines) == 0 {
		return "(no prior messages)"
	}
	return strings.Join(lines, "\n")
}
