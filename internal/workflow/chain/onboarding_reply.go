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

var defaultPromptRegistry = workflowprompt.NewRegistry()

type OnboardingReplyChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.OnboardingReplyInput, *schema.Message]
	chainErr  error
}

func NewOnboardingReplyChain(factory workflowport.ChatModelFactory) *OnboardingReplyChain {
	return &OnboardingReplyChain{factory: factory}
}

func (c *OnboardingReplyChain) Invoke(ctx context.Context, in *wfmodel.OnboardingReplyInput) (*schema.Message, error) {
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

type onboardingReplyChainState struct {
	In       *wfmodel.OnboardingReplyInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *OnboardingReplyChain) getChain() (compose.Runnable[*wfmodel.OnboardingReplyInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *OnboardingReplyChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.OnboardingReplyInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.OnboardingReplyInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.OnboardingReplyInput) (*onboardingReplyChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			return &onboardingReplyChainState{In: in}, nil
		}),
		compose.WithNodeName("onboarding_reply.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *onboardingReplyChainState) (*onboardingReplyChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			msgs, err := formatOnboardingReplyMessages(ctx, st.In)
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("onboarding_reply.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *onboardingReplyChainState) (*onboardingReplyChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			if c.factory == nil {
				return nil, fmt.Errorf("llm factory not configured")
			}

			ctx = llmctx.WithWorkflowProvider(ctx, "onboarding_reply", strings.TrimSpace(st.In.Provider))
			chatModel, err := c.factory.Get(ctx, strings.TrimSpace(st.In.Provider))
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, buildOnboardingReplyModelOptions(st.In, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"provider", strings.TrimSpace(st.In.Provider),
					"model", strings.TrimSpace(st.In.Model),
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildOnboardingReplyModelOptions(st.In, false)...)
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
		compose.WithNodeName("onboarding_reply.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *onboardingReplyChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("onboarding_reply.finalize"),
	)

	return chain.Compile(ctx)
}

func formatOnboardingReplyMessages(ctx context.Context, in *wfmodel.OnboardingReplyInput) ([]*schema.Message, error) {
	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptOnboardingReplyV1)
	if err != nil {
		return nil, err
	}
	draft := "{}"
	if len(in.Draft) > 0 {
		draft = strings.TrimSpace(string(in.Draft))
		if draft == "" {
			draft = "{}"
		}
	}
	lang := strings.TrimSpace(in.Language)
	if lang == "" {
		lang = "en"
	}
	vars := map[string]any{
		"step":          strings.TrimSpace(in.Step),
		"objective":     strings.TrimSpace(in.Objective),
		"persona":       strings.TrimSpace(in.Persona),
		"language":      lang,
		"draft_json":    draft,
		"history_block": wfnode.BuildHistoryBlock(in.History),
		"utterance":     strings.TrimSpace(in.Utterance),
	}
	return tpl.Format(ctx, vars)
}

func buildOnboardingReplyModelOptions(in *wfmodel.OnboardingReplyInput, enableSchema bool) []model.Option {
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
					"name":   "onboarding_reply",
					"strict": false,
					"schema": onboardingReplyJSONSchema(),
				},
			},
		}))
	}

	return opts
}

func onboardingReplyJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"assistant_message", "intent"},
		"properties": map[string]any{
			"assistant_message": map[string]any{"type": "string"},
			"intent": map[string]any{
				"type": "string",
				"enum": []any{"none", "upload_logo", "generate_logo"},
			},
		},
	}
}
