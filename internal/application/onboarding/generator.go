package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	workflowchain "nexus-marketing-api/internal/workflow/chain"
	wfmodel "nexus-marketing-api/internal/workflow/model"
	"nexus-marketing-api/internal/workflow/node"
	workflowport "nexus-marketing-api/internal/workflow/port"
	"nexus-marketing-api/pkg/logger"
)

// onboardingReplyEnvelope 解析 LLM 返回 JSON 的信封
type onboardingReplyEnvelope struct {
	AssistantMessage string `json:"assistant_message"`
	Intent           string `json:"intent"`
}

// ReplyGenerator 引导对话回复生成器：Prompt 渲染 -> LLM 调用 (Structured Output) -> 结果解析
type ReplyGenerator struct {
	chain *workflowchain.OnboardingReplyChain
}

func NewReplyGenerator(factory workflowport.ChatModelFactory) *ReplyGenerator {
	return &ReplyGenerator{
		chain: workflowchain.NewOnboardingReplyChain(factory),
	}
}

func (g *ReplyGenerator) Generate(ctx context.Context, in *wfmodel.OnboardingReplyInput) (*wfmodel.OnboardingReplyOutput, error) {
	if g == nil || g.chain == nil {
		return nil, fmt.Errorf("onboarding reply workflow not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}

	outMsg, err := g.chain.Invoke(ctx, in)
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}

	raw := node.ExtractJSONObject(outMsg.Content)
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty onboarding reply output")
	}

	var env onboardingReplyEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		logger.Error(ctx, "failed to unmarshal onboarding reply output", err, "raw", raw)
		return nil, fmt.Errorf("invalid onboarding reply output: %w", err)
	}
	if strings.TrimSpace(env.AssistantMessage) == "" {
		return nil, fmt.Errorf("onboarding reply missing assistant_message")
	}

	meta := wfmodel.LLMUsageMeta{Provider: strings.TrimSpace(in.Provider), Model: strings.TrimSpace(in.Model), GeneratedAt: time.Now().UTC()}
	if in.Temperature != nil {
		meta.Temperature = float64(*in.Temperature)
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		meta.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
	}

	intent := wfmodel.OnboardingIntent(strings.TrimSpace(env.Intent))
	switch intent {
	case wfmodel.IntentUploadLogo, wfmodel.IntentGenerateLogo:
	default:
		intent = wfmodel.IntentNone
	}

	return &wfmodel.OnboardingReplyOutput{
		AssistantMessage: strings.TrimSpace(env.AssistantMessage),
		Intent:           intent,
		Meta:             meta,
	}, nil
}

// SiteAnalyzer 网站分析：失败时返回“空但合法”的摘要而不是中断本轮
type SiteAnalyzer struct {
	chain *workflowchain.SiteAnalysisChain
}

func NewSiteAnalyzer(factory workflowport.ChatModelFactory) *SiteAnalyzer {
	return &SiteAnalyzer{
		chain: workflowchain.NewSiteAnalysisChain(factory),
	}
}

// Analyze 分析网站。返回的 error 仅代表输入/配置问题；
// LLM 侧失败会被降级为空摘要，由调用方决定话术。
func (a *SiteAnalyzer) Analyze(ctx context.Context, in *wfmodel.SiteAnalysisInput) (*wfmodel.SiteAnalysisOutput, error) {
	if a == nil || a.chain == nil {
		return nil, fmt.Errorf("site analysis workflow not configured")
	}
	if in == nil || strings.TrimSpace(in.URL) == "" {
		return nil, fmt.Errorf("url is required")
	}

	meta := wfmodel.LLMUsageMeta{Provider: strings.TrimSpace(in.Provider), Model: strings.TrimSpace(in.Model), GeneratedAt: time.Now().UTC()}

	outMsg, err := a.chain.Invoke(ctx, in)
	if err != nil {
		logger.Warn(ctx, "site analysis failed, falling back to empty summary", "url", in.URL, "error", err.Error())
		return &wfmodel.SiteAnalysisOutput{Meta: meta}, nil
	}
	if outMsg == nil {
		return &wfmodel.SiteAnalysisOutput{Meta: meta}, nil
	}

	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		meta.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
	}

	raw := node.ExtractJSONObject(outMsg.Content)
	out := &wfmodel.SiteAnalysisOutput{}
	if strings.TrimSpace(raw) == "" {
		out.Meta = meta
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		logger.Warn(ctx, "site analysis output malformed, falling back to empty summary", "raw", raw)
		return &wfmodel.SiteAnalysisOutput{Meta: meta}, nil
	}
	out.Meta = meta
	return out, nil
}
