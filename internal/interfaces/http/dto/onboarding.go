// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"encoding/json"
	"time"

	"nexus-marketing-api/internal/application/onboarding"
	"nexus-marketing-api/internal/domain/entity"
	wfmodel "nexus-marketing-api/internal/workflow/model"
)

// CreateOnboardingSessionRequest 创建引导会话请求，body 可为空
type CreateOnboardingSessionRequest struct {
	Language string `json:"language,omitempty"`
}

// OnboardingSessionResponse 引导会话响应
type OnboardingSessionResponse struct {
	ID                   string               `json:"id"`
	Step                 string               `json:"step"`
	Status               string               `json:"status"`
	Draft                *entity.CompanyDraft `json:"draft,omitempty"`
	CompanyIntroAttempts int                  `json:"company_intro_attempts"`
	CreatedCompanyID     *string              `json:"created_company_id,omitempty"`
	CreatedAt            string               `json:"created_at"`
	UpdatedAt            string               `json:"updated_at"`
}

func ToOnboardingSessionResponse(s *entity.OnboardingSession) *OnboardingSessionResponse {
	if s == nil {
		return nil
	}
	draft, _ := s.CompanyDraft()
	return &OnboardingSessionResponse{
		ID:                   s.ID,
		Step:                 string(s.Step),
		Status:               string(s.Status),
		Draft:                draft,
		CompanyIntroAttempts: s.CompanyIntroAttempts,
		CreatedCompanyID:     s.CreatedCompanyID,
		CreatedAt:            s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            s.UpdatedAt.Format(time.RFC3339),
	}
}

// OnboardingTurnResponse 会话轮次响应
type OnboardingTurnResponse struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	Step       string `json:"step"`
	Affordance string `json:"affordance,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	Metadata   any    `json:"metadata,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func ToOnboardingTurnResponse(t *entity.OnboardingTurn) *OnboardingTurnResponse {
	if t == nil {
		return nil
	}
	resp := &OnboardingTurnResponse{
		ID:         t.ID,
		Role:       string(t.Role),
		Content:    t.Content,
		Step:       string(t.Step),
		Affordance: string(t.Affordance),
		ImageURL:   t.ImageURL,
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
	}
	if len(t.Metadata) > 0 {
		resp.Metadata = json.RawMessage(t.Metadata)
	}
	return resp
}

// OnboardingTurnListResponse 轮次列表响应
type OnboardingTurnListResponse struct {
	Turns []*OnboardingTurnResponse `json:"turns"`
}

// SendOnboardingMessageRequest 发送消息请求
type SendOnboardingMessageRequest struct {
	Utterance string `json:"utterance" binding:"required"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// SendOnboardingMessageResponse 发送消息响应
type SendOnboardingMessageResponse struct {
	Session       *OnboardingSessionResponse `json:"session"`
	UserTurnID    string                     `json:"user_turn_id"`
	AssistantTurn *OnboardingTurnResponse    `json:"assistant_turn"`
	CompanyID     *string                    `json:"company_id,omitempty"`
	Usage         *LLMUsageResponse          `json:"usage,omitempty"`
	DurationMs    int                        `json:"duration_ms"`
}

// LLMUsageResponse 单次 LLM 调用用量
type LLMUsageResponse struct {
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	GeneratedAt      string `json:"generated_at"`
}

func ToLLMUsageResponse(meta *wfmodel.LLMUsageMeta) *LLMUsageResponse {
	if meta == nil {
		return nil
	}
	return &LLMUsageResponse{
		Provider:         meta.Provider,
		Model:            meta.Model,
		PromptTokens:     meta.PromptTokens,
		CompletionTokens: meta.CompletionTokens,
		GeneratedAt:      meta.GeneratedAt.Format(time.RFC3339),
	}
}

func ToSendOnboardingMessageResponse(result *onboarding.TurnResult) *SendOnboardingMessageResponse {
	if result == nil {
		return nil
	}
	resp := &SendOnboardingMessageResponse{
		Session:       ToOnboardingSessionResponse(result.Session),
		AssistantTurn: ToOnboardingTurnResponse(result.AssistantTurn),
		CompanyID:     result.CompanyID,
		Usage:         ToLLMUsageResponse(result.Usage),
		DurationMs:    result.DurationMs,
	}
	if result.UserTurn != nil {
		resp.UserTurnID = result.UserTurn.ID
	}
	return resp
}
