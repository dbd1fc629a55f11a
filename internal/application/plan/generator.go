// Package plan 实现营销方案的生成交接：画像校验、结构化生成、整体落库。
package plan

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
	apperrors "nexus-marketing-api/pkg/errors"
	"nexus-marketing-api/pkg/logger"
)

// planEnvelope 解析 LLM 返回 JSON 的信封
type planEnvelope struct {
	StrategySummary string             `json:"strategy_summary"`
	WeeklyThemes    []string           `json:"weekly_themes"`
	Posts           []wfmodel.PlanPost `json:"posts"`
	Ads             []wfmodel.PlanAd   `json:"ads"`
}

// Generator 营销方案生成器：Prompt 渲染 -> LLM 调用 -> 严格形状校验。
// 形状不合法一律返回 GenerationFailed，绝不产出缺数组的半成品方案。
type Generator struct {
	chain *workflowchain.MarketingPlanChain
}

func NewGenerator(factory workflowport.ChatModelFactory) *Generator {
	return &Generator{
		chain: workflowchain.NewMarketingPlanChain(factory),
	}
}

func (g *Generator) Generate(ctx context.Context, in *wfmodel.PlanGenerateInput) (*wfmodel.PlanGenerateOutput, error) {
	if g == nil || g.chain == nil {
		return nil, fmt.Errorf("marketing plan workflow not configured")
	}
	if in == nil || len(in.Profile) == 0 {
		return nil, fmt.Errorf("profile is required")
	}

	outMsg, err := g.chain.Invoke(ctx, in)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeLLMCallFailed, "plan generation call failed")
	}
	if outMsg == nil {
		return nil, apperrors.New(apperrors.CodeGenerationFailed, "empty llm response")
	}

	raw := node.ExtractJSONObject(outMsg.Content)
	if strings.TrimSpace(raw) == "" {
		return nil, apperrors.New(apperrors.CodeGenerationFailed, "no json object in plan response")
	}

	var env planEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		logger.Error(ctx, "failed to unmarshal plan output", err, "raw", node.TruncateByRunes(raw, 2000))
		return nil, apperrors.Wrap(err, apperrors.CodeGenerationFailed, "malformed plan output")
	}

	if err := validateEnvelope(&env); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeGenerationFailed, "incomplete plan output")
	}

	meta := wfmodel.LLMUsageMeta{Provider: strings.TrimSpace(in.Provider), Model: strings.TrimSpace(in.Model), GeneratedAt: time.Now().UTC()}
	if in.Temperature != nil {
		meta.Temperature = float64(*in.Temperature)
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		meta.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
	}

	return &wfmodel.PlanGenerateOutput{
		StrategySummary: strings.TrimSpace(env.StrategySummary),
		WeeklyThemes:    env.WeeklyThemes,
		Posts:           env.Posts,
		Ads:             env.Ads,
		Meta:            meta,
	}, nil
}

func validateEnvelope(env *planEnvelope) error {
	if strings.TrimSpace(env.StrategySummary) == "" {
		return fmt.Errorf("missing strategy_summary")
	}
	if len(env.WeeklyThemes) == 0 {
		return fmt.Errorf("missing weekly_themes")
	}
	if len(env.Posts) == 0 {
		return fmt.Errorf("missing posts")
	}
	if len(env.Ads) == 0 {
		return fmt.Errorf("missing ads")
	}
	for i, p := range env.Posts {
		if strings.TrimSpace(p.Platform) == "" || strings.TrimSpace(p.Type) == "" || strings.TrimSpace(p.Content) == "" {
			return fmt.Errorf("post %d incomplete", i)
		}
	}
	for i, a := range env.Ads {
		if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Platform) == "" || strings.TrimSpace(a.Objective) == "" {
			return fmt.Errorf("ad campaign %d incomplete", i)
		}
		if len(a.AdSets) == 0 {
			return fmt.Errorf("ad campaign %d has no ad sets", i)
		}
	}
	return nil
}
