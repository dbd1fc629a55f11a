package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wfmodel "nexus-marketing-api/internal/workflow/model"
	apperrors "nexus-marketing-api/pkg/errors"
)

// scriptedChatModel 按脚本依次返回响应，记录调用次数
type scriptedChatModel struct {
	mu        sync.Mutex
	responses []string
	calls     int
	err       error
}

func (m *scriptedChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("scripted model exhausted")
	}
	content := m.responses[0]
	m.responses = m.responses[1:]
	return &schema.Message{
		Role:    schema.Assistant,
		Content: content,
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{PromptTokens: 200, CompletionTokens: 800, TotalTokens: 1000},
		},
	}, nil
}

func (m *scriptedChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("stream not supported")
}

func (m *scriptedChatModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type scriptedFactory struct {
	model *scriptedChatModel
}

func (f *scriptedFactory) Get(_ context.Context, _ string) (model.BaseChatModel, error) {
	return f.model, nil
}

const validPlanJSON = `{
  "strategy_summary": "Build local awareness through daily social presence.",
  "weekly_themes": ["launch week", "customer stories"],
  "posts": [
    {"platform": "instagram", "type": "image", "content": "Fresh out of the oven!", "date": "2026-09-01"},
    {"platform": "facebook", "type": "text", "content": "Meet the bakers behind Acme.", "date": "2026-09-03"}
  ],
  "ads": [
    {
      "name": "Neighborhood Launch",
      "platform": "meta",
      "objective": "awareness",
      "budget": 150,
      "ad_sets": [
        {"target_audience": "locals within 5km", "copy": "Your new favorite bakery just opened."}
      ]
    }
  ]
}`

func testProfile(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"company_name":    "Acme Bakery",
		"industry":        "food",
		"goals":           []string{"awareness"},
		"target_audience": "locals",
		"language":        "en",
	})
	require.NoError(t, err)
	return raw
}

func newTestGenerator(responses ...string) (*Generator, *scriptedChatModel) {
	chat := &scriptedChatModel{responses: responses}
	return NewGenerator(&scriptedFactory{model: chat}), chat
}

func TestGenerateParsesValidPlan(t *testing.T) {
	g, chat := newTestGenerator(validPlanJSON)

	out, err := g.Generate(context.Background(), &wfmodel.PlanGenerateInput{
		Profile:  testProfile(t),
		Language: "en",
		Provider: "openai",
		Model:    "gpt-4o",
	})
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, 1, chat.callCount())
	assert.Equal(t, "Build local awareness through daily social presence.", out.StrategySummary)
	assert.Len(t, out.WeeklyThemes, 2)
	require.Len(t, out.Posts, 2)
	assert.Equal(t, "instagram", out.Posts[0].Platform)
	require.Len(t, out.Ads, 1)
	require.Len(t, out.Ads[0].AdSets, 1)
	assert.Equal(t, 150.0, out.Ads[0].Budget)

	assert.Equal(t, "openai", out.Meta.Provider)
	assert.Equal(t, 200, out.Meta.PromptTokens)
	assert.Equal(t, 800, out.Meta.CompletionTokens)
}

func TestGenerateAcceptsFencedJSON(t *testing.T) {
	g, _ := newTestGenerator("Here is your plan:\n```json\n" + validPlanJSON + "\n```")

	out, err := g.Generate(context.Background(), &wfmodel.PlanGenerateInput{Profile: testProfile(t)})
	require.NoError(t, err)
	assert.Len(t, out.Posts, 2)
}

func TestGenerateRejectsEmptyProfile(t *testing.T) {
	g, chat := newTestGenerator(validPlanJSON)

	_, err := g.Generate(context.Background(), nil)
	require.Error(t, err)

	_, err = g.Generate(context.Background(), &wfmodel.PlanGenerateInput{})
	require.Error(t, err)
	assert.Equal(t, 0, chat.callCount())
}

func TestGenerateWrapsLLMFailure(t *testing.T) {
	g, chat := newTestGenerator()
	chat.err = fmt.Errorf("provider unavailable")

	_, err := g.Generate(context.Background(), &wfmodel.PlanGenerateInput{Profile: testProfile(t)})
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeLLMCallFailed, appErr.Code)
}

func TestGenerateRejectsNonJSONOutput(t *testing.T) {
	g, _ := newTestGenerator("Sorry, I cannot produce a plan right now.")

	_, err := g.Generate(context.Background(), &wfmodel.PlanGenerateInput{Profile: testProfile(t)})
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeGenerationFailed, appErr.Code)
}

func TestGenerateRejectsIncompleteShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing strategy", `{"strategy_summary": "", "weekly_themes": ["w1"], "posts": [{"platform": "x", "type": "text", "content": "hi"}], "ads": [{"name": "a", "platform": "meta", "objective": "awareness", "ad_sets": [{"target_audience": "all", "copy": "c"}]}]}`},
		{"missing themes", `{"strategy_summary": "s", "weekly_themes": [], "posts": [{"platform": "x", "type": "text", "content": "hi"}], "ads": [{"name": "a", "platform": "meta", "objective": "awareness", "ad_sets": [{"target_audience": "all", "copy": "c"}]}]}`},
		{"missing posts", `{"strategy_summary": "s", "weekly_themes": ["w1"], "posts": [], "ads": [{"name": "a", "platform": "meta", "objective": "awareness", "ad_sets": [{"target_audience": "all", "copy": "c"}]}]}`},
		{"missing ads", `{"strategy_summary": "s", "weekly_themes": ["w1"], "posts": [{"platform": "x", "type": "text", "content": "hi"}], "ads": []}`},
		{"post without content", `{"strategy_summary": "s", "weekly_themes": ["w1"], "posts": [{"platform": "x", "type": "text", "content": ""}], "ads": [{"name": "a", "platform": "meta", "objective": "awareness", "ad_sets": [{"target_audience": "all", "copy": "c"}]}]}`},
		{"ad without ad sets", `{"strategy_summary": "s", "weekly_themes": ["w1"], "posts": [{"platform": "x", "type": "text", "content": "hi"}], "ads": [{"name": "a", "platform": "meta", "objective": "awareness", "ad_sets": []}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGenerator(tt.body)
			_, err := g.Generate(context.Background(), &wfmodel.PlanGenerateInput{Profile: testProfile(t)})
			require.Error(t, err)
			appErr := apperrors.AsAppError(err)
			require.NotNil(t, appErr)
			assert.Equal(t, apperrors.CodeGenerationFailed, appErr.Code)
		})
	}
}
