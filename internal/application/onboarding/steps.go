package onboarding

import (
	"fmt"
	"strings"

	"nexus-marketing-api/internal/domain/entity"
)

// stepObjective 每一步的策略目标：目标描述 + 基于草稿的上下文提示。
// 目标文本交给 LLM 渲染，因此措辞是自由的，这里只约束“这一步要问什么”。
type stepObjective struct {
	Goal  string
	Hints func(d *entity.CompanyDraft) string
}

var stepObjectives = map[entity.ConversationStep]stepObjective{
	entity.StepLanguageSelect: {
		Goal: "Welcome the user and confirm which language they prefer for the rest of the conversation.",
	},
	entity.StepUserIntro: {
		Goal: "Ask for the user's name and what they are passionate about, keep it light.",
	},
	entity.StepCompanyIntro: {
		Goal: "Ask about their company: what it is called and what it does. Mention they can just paste their website URL instead.",
		Hints: func(d *entity.CompanyDraft) string {
			if d.UserName != "" {
				return fmt.Sprintf("Address the user by name (%s).", d.UserName)
			}
			return ""
		},
	},
	entity.StepWebsiteVerify: {
		Goal: "Present the website analysis card and ask the user to confirm or correct it.",
	},
	entity.StepGoals: {
		Goal: "Ask which marketing goals matter most to them right now, suggest picking from the shown options.",
		Hints: func(d *entity.CompanyDraft) string {
			if d.Industry != "" {
				return fmt.Sprintf("Relate the suggestions to their industry (%s).", d.Industry)
			}
			return ""
		},
	},
	entity.StepBrandingLogo: {
		Goal: "Ask whether they already have a logo to upload, or whether we should generate one for them.",
		Hints: func(d *entity.CompanyDraft) string {
			if d.CompanyName != "" {
				return fmt.Sprintf("Refer to the company by name (%s).", d.CompanyName)
			}
			return ""
		},
	},
	entity.StepBrandingStyle: {
		Goal: "Ask them to describe the style they want for their logo: mood, colors, inspiration.",
	},
	entity.StepBrandingFiles: {
		Goal: "Ask them to upload their logo or brand files using the upload control.",
	},
	entity.StepDesignPrefs: {
		Goal: "Ask about their visual and tone preferences for marketing content.",
		Hints: func(d *entity.CompanyDraft) string {
			if len(d.BrandColors) > 0 {
				return fmt.Sprintf("You may reference their brand colors (%s).", strings.Join(d.BrandColors, ", "))
			}
			return ""
		},
	},
	entity.StepPlanning: {
		Goal: "Summarize what you have learned about the company and ask if they are ready to see their marketing plan.",
		Hints: func(d *entity.CompanyDraft) string {
			var parts []string
			if d.CompanyName != "" {
				parts = append(parts, "company "+d.CompanyName)
			}
			if len(d.Goals) > 0 {
				parts = append(parts, "goals: "+strings.Join(d.Goals, ", "))
			}
			if len(parts) == 0 {
				return ""
			}
			return "Recap " + strings.Join(parts, "; ") + "."
		},
	},
	entity.StepApproval: {
		Goal: "The plan proposal has been presented. Answer questions about it and remind them they can approve it when ready.",
	},
}

// ObjectiveFor 返回某一步提供给生成器的完整目标描述
func ObjectiveFor(step entity.ConversationStep, draft *entity.CompanyDraft) string {
	spec, ok := stepObjectives[step]
	if !ok {
		return "Continue the onboarding conversation naturally."
	}
	goal := spec.Goal
	if spec.Hints != nil && draft != nil {
		if hint := strings.TrimSpace(spec.Hints(draft)); hint != "" {
			goal = goal + " " + hint
		}
	}
	return goal
}

// defaultNext 默认线性推进。条件分支（URL、logo 意图、审批哨兵）在引擎里处理。
func defaultNext(step entity.ConversationStep) entity.ConversationStep {
	switch step {
	case entity.StepLanguageSelect:
		return entity.StepUserIntro
	case entity.StepUserIntro:
		return entity.StepCompanyIntro
	case entity.StepCompanyIntro:
		return entity.StepGoals
	case entity.StepWebsiteVerify:
		return entity.StepGoals
	case entity.StepGoals:
		return entity.StepBrandingLogo
	case entity.StepBrandingLogo:
		return entity.StepBrandingLogo
	case entity.StepBrandingStyle:
		return entity.StepBrandingStyle
	case entity.StepBrandingFiles:
		return entity.StepDesignPrefs
	case entity.StepDesignPrefs:
		return entity.StepPlanning
	case entity.StepPlanning:
		return entity.StepApproval
	default:
		return step
	}
}

// affordanceOnEnter 进入某一步时，助手消息应携带的 UI 操作提示
func affordanceOnEnter(step entity.ConversationStep) entity.TurnAffordance {
	switch step {
	case entity.StepWebsiteVerify:
		return entity.AffordanceSiteApproval
	case entity.StepGoals:
		return entity.AffordanceGoalPicker
	case entity.StepBrandingFiles:
		return entity.AffordanceUploadRequest
	case entity.StepApproval:
		return entity.AffordancePlanApproval
	default:
		return entity.AffordanceNone
	}
}

// ValidStep 校验步骤枚举
func ValidStep(step entity.ConversationStep) bool {
	_, ok := stepObjectives[step]
	return ok
}
