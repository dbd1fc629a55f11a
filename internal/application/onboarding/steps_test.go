package onboarding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nexus-marketing-api/internal/domain/entity"
)

func TestDefaultNextLinearFlow(t *testing.T) {
	tests := []struct {
		from entity.ConversationStep
		to   entity.ConversationStep
	}{
		{entity.StepLanguageSelect, entity.StepUserIntro},
		{entity.StepUserIntro, entity.StepCompanyIntro},
		{entity.StepCompanyIntro, entity.StepGoals},
		{entity.StepWebsiteVerify, entity.StepGoals},
		{entity.StepGoals, entity.StepBrandingLogo},
		{entity.StepBrandingLogo, entity.StepBrandingLogo},
		{entity.StepBrandingStyle, entity.StepBrandingStyle},
		{entity.StepBrandingFiles, entity.StepDesignPrefs},
		{entity.StepDesignPrefs, entity.StepPlanning},
		{entity.StepPlanning, entity.StepApproval},
		{entity.StepApproval, entity.StepApproval},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.to, defaultNext(tt.from), "from %s", tt.from)
	}
}

func TestObjectiveForIncludesDraftHints(t *testing.T) {
	draft := &entity.CompanyDraft{UserName: "Sam", CompanyName: "Acme", Industry: "food"}

	assert.Contains(t, ObjectiveFor(entity.StepCompanyIntro, draft), "Sam")
	assert.Contains(t, ObjectiveFor(entity.StepGoals, draft), "food")
	assert.Contains(t, ObjectiveFor(entity.StepBrandingLogo, draft), "Acme")

	// 空草稿也能拿到基础目标
	base := ObjectiveFor(entity.StepCompanyIntro, &entity.CompanyDraft{})
	assert.NotEmpty(t, base)
	assert.NotContains(t, base, "Sam")
}

func TestObjectiveForUnknownStep(t *testing.T) {
	got := ObjectiveFor(entity.ConversationStep("made_up"), nil)
	assert.Equal(t, "Continue the onboarding conversation naturally.", got)
}

func TestAffordanceOnEnter(t *testing.T) {
	assert.Equal(t, entity.AffordanceSiteApproval, affordanceOnEnter(entity.StepWebsiteVerify))
	assert.Equal(t, entity.AffordanceGoalPicker, affordanceOnEnter(entity.StepGoals))
	assert.Equal(t, entity.AffordanceUploadRequest, affordanceOnEnter(entity.StepBrandingFiles))
	assert.Equal(t, entity.AffordancePlanApproval, affordanceOnEnter(entity.StepApproval))
	assert.Equal(t, entity.AffordanceNone, affordanceOnEnter(entity.StepBrandingStyle))
	assert.Equal(t, entity.AffordanceNone, affordanceOnEnter(entity.StepUserIntro))
}

func TestValidStep(t *testing.T) {
	assert.True(t, ValidStep(entity.StepLanguageSelect))
	assert.True(t, ValidStep(entity.StepApproval))
	assert.False(t, ValidStep(entity.ConversationStep("made_up")))
	assert.False(t, ValidStep(entity.ConversationStep("")))
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"English please", "en"},
		{"عربي", "ar"},
		{"Arabic", "ar"},
		{"ar", "ar"},
		{"EN", "en"},
		{"je préfère le français", "en"}, // 不支持的语言回退默认
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLanguage(tt.in, "en"), tt.in)
	}
	assert.Equal(t, "ar", parseLanguage("whatever", "ar"))
	assert.Equal(t, "en", parseLanguage("whatever", ""))
}
