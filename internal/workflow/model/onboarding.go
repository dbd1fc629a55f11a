package model

import "encoding/json"

// OnboardingReplyInput 定义了引导对话回复生成器的输入参数
type OnboardingReplyInput struct {
	Step      string
	Draft     json.RawMessage
	Utterance string
	History   []HistoryTurn

	Language  string
	Persona   string
	Objective string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// OnboardingIntent 模型标注的用户意图
type OnboardingIntent string

const (
	IntentNone         OnboardingIntent = "none"
	IntentUploadLogo   OnboardingIntent = "upload_logo"
	IntentGenerateLogo OnboardingIntent = "generate_logo"
)

// OnboardingReplyOutput 引导对话回复生成结果
type OnboardingReplyOutput struct {
	AssistantMessage string
	Intent           OnboardingIntent

	Meta LLMUsageMeta
}
