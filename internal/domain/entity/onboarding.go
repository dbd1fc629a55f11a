// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// ConversationStep 引导对话步骤
type ConversationStep string

const (
	StepLanguageSelect ConversationStep = "language_select"
	StepUserIntro      ConversationStep = "user_intro"
	StepCompanyIntro   ConversationStep = "company_intro"
	StepWebsiteVerify  ConversationStep = "website_verify"
	StepGoals          ConversationStep = "goals"
	StepBrandingLogo   ConversationStep = "branding_logo"
	StepBrandingStyle  ConversationStep = "branding_style"
	StepBrandingFiles  ConversationStep = "branding_files"
	StepDesignPrefs    ConversationStep = "design_prefs"
	StepPlanning       ConversationStep = "planning"
	StepApproval       ConversationStep = "approval"
)

// OnboardingStatus 会话状态
type OnboardingStatus string

const (
	OnboardingStatusActive    OnboardingStatus = "active"
	OnboardingStatusCompleted OnboardingStatus = "completed"
	OnboardingStatusAbandoned OnboardingStatus = "abandoned"
)

// TurnAffordance 附着在助手回复上的前端可操作提示
type TurnAffordance string

const (
	AffordanceNone          TurnAffordance = ""
	AffordanceSiteApproval  TurnAffordance = "site_approval"
	AffordanceGoalPicker    TurnAffordance = "goal_picker"
	AffordanceLogoApproval  TurnAffordance = "logo_approval"
	AffordanceUploadRequest TurnAffordance = "upload_request"
	AffordancePlanApproval  TurnAffordance = "plan_approval"
)

// OnboardingSession 引导会话实体
type OnboardingSession struct {
	ID                   string           `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID             string           `json:"tenant_id" gorm:"type:uuid;index;not null"`
	Step                 ConversationStep `json:"step" gorm:"type:varchar(32);not null;default:'language_select'"`
	Status               OnboardingStatus `json:"status" gorm:"type:varchar(32);not null;default:'active'"`
	Draft                json.RawMessage  `json:"draft" gorm:"type:jsonb;not null"`
	CompanyIntroAttempts int              `json:"company_intro_attempts" gorm:"not null;default:0"`
	CreatedCompanyID     *string          `json:"created_company_id,omitempty" gorm:"type:uuid"`
	CreatedAt            time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt            time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

func (OnboardingSession) TableName() string {
	return "onboarding_sessions"
}

func NewOnboardingSession(tenantID string) *OnboardingSession {
	now := time.Now()
	return &OnboardingSession{
		TenantID:  tenantID,
		Step:      StepLanguageSelect,
		Status:    OnboardingStatusActive,
		Draft:     json.RawMessage("{}"),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive 检查会话是否可以继续接收消息
func (s *OnboardingSession) IsActive() bool {
	return s.Status == OnboardingStatusActive
}

// CompanyDraft 反序列化当前草稿
func (s *OnboardingSession) CompanyDraft() (*CompanyDraft, error) {
	draft := &CompanyDraft{}
	if len(s.Draft) == 0 {
		return draft, nil
	}
	if err := json.Unmarshal(s.Draft, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// SetCompanyDraft 序列化并写回草稿
func (s *OnboardingSession) SetCompanyDraft(draft *CompanyDraft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	s.Draft = raw
	return nil
}

// OnboardingTurn 会话轮次记录
type OnboardingTurn struct {
	ID         string           `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID  string           `json:"session_id" gorm:"type:uuid;index;not null"`
	Role       Role             `json:"role" gorm:"type:varchar(16);not null"`
	Content    string           `json:"content" gorm:"type:text;not null"`
	Step       ConversationStep `json:"step" gorm:"type:varchar(32);not null"`
	Affordance TurnAffordance   `json:"affordance,omitempty" gorm:"type:varchar(32)"`
	ImageURL   string           `json:"image_url,omitempty" gorm:"type:text"`
	Metadata   json.RawMessage  `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time        `json:"created_at" gorm:"autoCreateTime"`
}

func (OnboardingTurn) TableName() string {
	return "onboarding_turns"
}

func NewOnboardingTurn(sessionID string, role Role, content string, step ConversationStep) *OnboardingTurn {
	return &OnboardingTurn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Step:      step,
		CreatedAt: time.Now(),
	}
}
