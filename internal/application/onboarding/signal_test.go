package onboarding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nexus-marketing-api/internal/domain/entity"
)

func TestDetectSignalSentinels(t *testing.T) {
	tests := []struct {
		name      string
		step      entity.ConversationStep
		utterance string
		want      UtteranceSignal
	}{
		{"approve site", entity.StepWebsiteVerify, "/approve site", UtteranceSignal{Kind: SignalApproveSite}},
		{"approve site uppercase", entity.StepWebsiteVerify, "/APPROVE SITE", UtteranceSignal{Kind: SignalApproveSite}},
		{"edit site", entity.StepWebsiteVerify, "/edit site", UtteranceSignal{Kind: SignalEditSite}},
		{"approve logo", entity.StepBrandingStyle, "/approve logo", UtteranceSignal{Kind: SignalApproveLogo}},
		{"retry logo", entity.StepBrandingStyle, "/retry logo", UtteranceSignal{Kind: SignalRetryLogo}},
		{"approve plan", entity.StepApproval, "/approve plan", UtteranceSignal{Kind: SignalApprovePlan}},
		{"file with name", entity.StepBrandingFiles, "/file logo.png", UtteranceSignal{Kind: SignalFile, FileName: "logo.png"}},
		{"file with spaces", entity.StepBrandingFiles, "/file  brand kit.zip ", UtteranceSignal{Kind: SignalFile, FileName: "brand kit.zip"}},
		{"goal toggle", entity.StepGoals, "/goal brand awareness", UtteranceSignal{Kind: SignalGoalToggle, Goal: "brand awareness"}},
		{"file without name", entity.StepBrandingFiles, "/file ", UtteranceSignal{Kind: SignalPlainText}},
		{"goal without name", entity.StepGoals, "/goal ", UtteranceSignal{Kind: SignalPlainText}},
		{"unknown command", entity.StepGoals, "/fly me to the moon", UtteranceSignal{Kind: SignalPlainText}},
		{"surrounding whitespace", entity.StepApproval, "  /approve plan  ", UtteranceSignal{Kind: SignalApprovePlan}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSignal(tt.step, tt.utterance))
		})
	}
}

func TestDetectSignalURLOnlyAtCompanyIntro(t *testing.T) {
	got := DetectSignal(entity.StepCompanyIntro, "check out https://acme.example.com/about, it explains everything")
	assert.Equal(t, SignalURL, got.Kind)
	assert.Equal(t, "https://acme.example.com/about", got.URL)

	// 同一句话在其他步骤按普通文本处理
	for _, step := range []entity.ConversationStep{entity.StepUserIntro, entity.StepGoals, entity.StepDesignPrefs} {
		got := DetectSignal(step, "check out https://acme.example.com/about")
		assert.Equal(t, SignalPlainText, got.Kind, "step %s", step)
	}
}

func TestDetectSignalURLTrimsTrailingPunctuation(t *testing.T) {
	tests := []struct {
		utterance string
		want      string
	}{
		{"our site is https://acme.example.com.", "https://acme.example.com"},
		{"https://acme.example.com;", "https://acme.example.com"},
		{"(see https://acme.example.com)", "https://acme.example.com"},
		{"http://acme.example.com/shop?ref=1", "http://acme.example.com/shop?ref=1"},
	}
	for _, tt := range tests {
		got := DetectSignal(entity.StepCompanyIntro, tt.utterance)
		assert.Equal(t, SignalURL, got.Kind, tt.utterance)
		assert.Equal(t, tt.want, got.URL, tt.utterance)
	}
}

func TestDetectSignalPlainText(t *testing.T) {
	got := DetectSignal(entity.StepGoals, "I want more customers")
	assert.Equal(t, SignalPlainText, got.Kind)
	assert.Empty(t, got.URL)
	assert.Empty(t, got.Goal)
}
