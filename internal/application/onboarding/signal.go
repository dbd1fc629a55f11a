package onboarding

import (
	"regexp"
	"strings"

	"nexus-marketing-api/internal/domain/entity"
)

// SignalKind 单轮用户输入的分类结果
type SignalKind string

const (
	SignalPlainText   SignalKind = "plain_text"
	SignalURL         SignalKind = "url_detected"
	SignalApproveSite SignalKind = "approve_site"
	SignalEditSite    SignalKind = "edit_site"
	SignalApproveLogo SignalKind = "approve_logo"
	SignalRetryLogo   SignalKind = "retry_logo"
	SignalFile        SignalKind = "file_attached"
	SignalGoalToggle  SignalKind = "goal_toggle"
	SignalApprovePlan SignalKind = "approve_plan"
)

// UtteranceSignal 带载荷的输入信号。
// URL 仅在 Kind 为 SignalURL 时有效，FileName/Goal 同理。
type UtteranceSignal struct {
	Kind     SignalKind
	URL      string
	FileName string
	Goal     string
}

var urlPattern = regexp.MustCompile(`(https?://[^\s]+)`)

// DetectSignal 在状态机之前运行一次，把用户输入归类为信号。
// 约定：以 "/" 开头的句子是 UI 控件回传的哨兵指令，不会进入 LLM 上下文；
// URL 检测只在 company_intro 步骤生效，其余步骤把 URL 当普通文本。
func DetectSignal(step entity.ConversationStep, utterance string) UtteranceSignal {
	u := strings.TrimSpace(utterance)

	if strings.HasPrefix(u, "/") {
		lower := strings.ToLower(u)
		switch {
		case lower == "/approve site":
			return UtteranceSignal{Kind: SignalApproveSite}
		case lower == "/edit site":
			return UtteranceSignal{Kind: SignalEditSite}
		case lower == "/approve logo":
			return UtteranceSignal{Kind: SignalApproveLogo}
		case lower == "/retry logo":
			return UtteranceSignal{Kind: SignalRetryLogo}
		case lower == "/approve plan":
			return UtteranceSignal{Kind: SignalApprovePlan}
		case strings.HasPrefix(lower, "/file "):
			name := strings.TrimSpace(u[len("/file "):])
			if name != "" {
				return UtteranceSignal{Kind: SignalFile, FileName: name}
			}
		case strings.HasPrefix(lower, "/goal "):
			goal := strings.TrimSpace(u[len("/goal "):])
			if goal != "" {
				return UtteranceSignal{Kind: SignalGoalToggle, Goal: goal}
			}
		}
		// 未识别的指令按普通文本处理
		return UtteranceSignal{Kind: SignalPlainText}
	}

	if step == entity.StepCompanyIntro {
		if m := urlPattern.FindString(u); m != "" {
			return UtteranceSignal{Kind: SignalURL, URL: strings.TrimRight(m, ".,;)")}
		}
	}

	return UtteranceSignal{Kind: SignalPlainText}
}
