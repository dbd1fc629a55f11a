package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "nexus-marketing-api/internal/domain/service"
	wfmodel "nexus-marketing-api/internal/workflow/model"
	wfnode "nexus-marketing-api/internal/workflow/node"
	workflowport "nexus-marketing-api/internal/workflow/port"
	workflowprompt "nexus-marketing-api/internal/workflow/prompt"
	"nexus-marketing-api/pkg/logger"
)

type MarketingPlanChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.PlanGenerateInput, *schema.Message]
	chainErr  error
}

func NewMarketingPlanChain(factory workflowport.ChatModelFactory) *MarketingPlanChain {
	return &MarketingPlanChain{factory: factory}
}

func (c *MarketingPlanChain) Invoke(ctx context.Context, in *wfmodel.PlanGenerateInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

type marketingPlanChainState struct {
	In       *wfmodel.PlanGenerateInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *MarketingPlanChain) getChain() (compose.Runnable[*wfmodel.PlanGenerateInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *MarketingPlanChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.PlanGenerateInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.PlanGenerateInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.PlanGenerateInput) (*marketingPlanChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			if len(in.Profile) == 0 {
				return nil, fmt.Errorf("profile is empty")
			}
			return &marketingPlanChainState{In: in}, nil
		}),
		compose.WithNodeName("marketing_plan.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *marketingPlanChainState) (*marketingPlanChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptMarketingPlanV1)
			if err != nil {
				return nil, err
			}
			lang := strings.TrimSpace(st.In.Language)
			if lang == "" {
				lang = "en"
			}
			msgs, err := tpl.Format(ctx, map[string]any{
				"profile_json": strings.TrimSpace(string(st.In.Profile)),
				"language":     lang,
			})
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("marketing_plan.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *marketingPlanChainState) (*marketingPlanChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			if c.factory == nil {
				return nil, fmt.Errorf("llm factory not configured")
			}

			ctx = llmctx.WithWorkflowProvider(ctx, "plan_generation", strings.TrimSpace(st.In.Provider))
			chatModel, err := c.factory.Get(ctx, strings.TrimSpace(st.In.Provider))
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, buildMarketingPlanModelOptions(st.In, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"provider", strings.TrimSpace(st.In.Provider),
					"model", strings.TrimSpace(st.In.Model),
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildMarketingPlanModelOptions(st.In, false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("marketing_plan.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *marketingPlanChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("marketing_plan.finalize"),
	)

	return chain.Compile(ctx)
}

func buildMarketingPlanModelOptions(in *wfmodel.PlanGenerateInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in == nil {
		return opts
	}
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}

	if enableSchema {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   "marketing_plan",
					"strict": false,
					"schema": marketingPlanJSONSchema(),
				},
			},
		}))
	}

	return opts
}

func marketingPlanJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"strategy_summary", "weekly_themes", "posts", "ads"},
		"properties": map[string]any{
			"strategy_summary": map[string]any{"type": "string"},
			"weekly_themes": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"posts": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"platform", "type", "content", "date"},
					"properties": map[string]any{
						"platform": map[string]any{
							"type": "string",
							"enum": []any{"instagram", "facebook", "linkedin", "tiktok", "x"},
						},
						"type": map[string]any{
							"type": "string",
							"enum": []any{"image", "video", "carousel", "text"},
						},
						"content": map[string]any{"type": "string"},
						"date":    map[string]any{"type": "string"},
					},
				},
			},
			"ads": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"name", "platform", "objective", "budget", "ad_sets"},
					"properties": map[string]any{
						"name":     map[string]any{"type": "string"},
						"platform": map[string]any{"type": "string"},
						"objective": map[string]any{
							"type": "string",
							"enum": []any{"awareness", "traffic", "leads", "sales"},
						},
						"budget": map[string]any{"type": "number"},
						"ad_sets": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type":                 "object",
								"additionalProperties": false,
								"required":             []any{"target_audience", "copy"},
								"properties": map[string]any{
									"target_audience": map[string]any{"type": "string"},
									"copy":            map[string]any{"type": "string"},
									"creative_url":    map[string]any{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}
}
