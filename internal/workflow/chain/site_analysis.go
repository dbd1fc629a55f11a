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

type SiteAnalysisChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.SiteAnalysisInput, *schema.Message]
	chainErr  error
}

func NewSiteAnalysisChain(factory workflowport.ChatModelFactory) *SiteAnalysisChain {
	return &SiteAnalysisChain{factory: factory}
}

func (c *SiteAnalysisChain) Invoke(ctx context.Context, in *wfmodel.SiteAnalysisInput) (*schema.Message, error) {
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

type siteAnalysisChainState struct {
	In       *wfmodel.SiteAnalysisInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *SiteAnalysisChain) getChain() (compose.Runnable[*wfmodel.SiteAnalysisInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *SiteAnalysisChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.SiteAnalysisInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.SiteAnalysisInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.SiteAnalysisInput) (*siteAnalysisChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			if strings.TrimSpace(in.URL) == "" {
				return nil, fmt.Errorf("url is empty")
			}
			return &siteAnalysisChainState{In: in}, nil
		}),
		compose.WithNodeName("site_analysis.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *siteAnalysisChainState) (*siteAnalysisChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptSiteAnalysisV1)
			if err != nil {
				return nil, err
			}
			lang := strings.TrimSpace(st.In.Language)
			if lang == "" {
				lang = "en"
			}
			msgs, err := tpl.Format(ctx, map[string]any{
				"url":      strings.TrimSpace(st.In.URL),
				"language": lang,
			})
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("site_analysis.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *siteAnalysisChainState) (*siteAnalysisChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			if c.factory == nil {
				return nil, fmt.Errorf("llm factory not configured")
			}

			ctx = llmctx.WithWorkflowProvider(ctx, "site_analysis", strings.TrimSpace(st.In.Provider))
			chatModel, err := c.factory.Get(ctx, strings.TrimSpace(st.In.Provider))
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, buildSiteAnalysisModelOptions(st.In, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"provider", strings.TrimSpace(st.In.Provider),
					"model", strings.TrimSpace(st.In.Model),
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildSiteAnalysisModelOptions(st.In, false)...)
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
		compose.WithNodeName("site_analysis.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *siteAnalysisChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("site_analysis.finalize"),
	)

	return chain.Compile(ctx)
}

func buildSiteAnalysisModelOptions(in *wfmodel.SiteAnalysisInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 3)
	if in == nil {
		return opts
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
					"name":   "site_analysis",
					"strict": false,
					"schema": siteAnalysisJSONSchema(),
				},
			},
		}))
	}

	return opts
}

func siteAnalysisJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"company_name", "industry", "description", "target_audience", "suggested_goals", "detected_colors", "detected_fonts", "services"},
		"properties": map[string]any{
			"company_name":    map[string]any{"type": "string"},
			"industry":        map[string]any{"type": "string"},
			"description":     map[string]any{"type": "string"},
			"target_audience": map[string]any{"type": "string"},
			"suggested_goals": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"detected_colors": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"detected_fonts": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"services": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	}
}
