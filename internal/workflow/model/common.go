package model

import "time"

// HistoryTurn 传入模型的一条历史消息
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type LLMUsageMeta struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Temperature      float64
	GeneratedAt      time.Time
}
