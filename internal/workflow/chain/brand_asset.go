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

type BrandAssetChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.BrandAssetInput, *schema.Message]
	chainErr  error
}

func NewBrandAssetChain(factory workflowport.ChatModelFactory) *BrandAssetChain {
	return &BrandAssetChain{factory: factory}
}

func (c *BrandAssetChain) Invoke(ctx context.Context, in *wfmodel.BrandAssetInput) (*schema.Message, error) {
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

type brandAssetChainState struct {
	In       *wfmodel.BrandAssetInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *BrandAssetChain) getChain() (compose.Runnable[*wfmodel.BrandAssetInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *BrandAssetChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.BrandAssetInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.BrandAssetInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.BrandAssetInput) (*brandAssetChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			switch in.Kind {
			case wfmodel.BrandAssetColors, wfmodel.BrandAssetTypography, wfmodel.BrandAssetVoice:
			default:
				return nil, fmt.Errorf("unknown brand asset kind: %s", in.Kind)
			}
			return &brandAssetChainState{In: in}, nil
		}),
		compose.WithNodeName("brand_asset.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *brandAssetChainState) (*brandAssetChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptBrandAssetV1)
			if err != nil {
				return nil, err
			}
			lang := strings.TrimSpace(st.In.Language)
			if lang == "" {
				lang = "en"
			}
			msgs, err := tpl.Format(ctx, map[string]any{
				"kind":         string(st.In.Kind),
				"profile_json": strings.TrimSpace(string(st.In.Profile)),
				"language":     lang,
			})
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("brand_asset.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *brandAssetChainState) (*brandAssetChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			if c.factory == nil {
				return nil, fmt.Errorf("llm factory not configured")
			}

			ctx = llmctx.WithWorkflowProvider(ctx, "brand_asset", strings.TrimSpace(st.In.Provider))
			chatModel, err := c.factory.Get(ctx, strings.TrimSpace(st.In.Provider))
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, buildBrandAssetModelOptions(st.In, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"provider", strings.TrimSpace(st.In.Provider),
					"model", strings.TrimSpace(st.In.Model),
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildBrandAssetModelOptions(st.In, false)...)
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
		compose.WithNodeName("brand_asset.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *brandAssetChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("brand_asset.finalize"),
	)

	return chain.Compile(ctx)
}

func buildBrandAssetModelOptions(in *wfmodel.BrandAssetInput, enableSchema bool) []model.Option {
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
					"name":   "brand_asset",
					"strict": false,
					"schema": brandAssetJSONSchema(),
				},
			},
		}))
	}

	return opts
}

func brandAssetJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"colors": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"text": map[string]any{"type": "string"},
		},
	}
}
