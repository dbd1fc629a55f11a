package quota

import (
	"context"
	"fmt"
	"strings"

	"nexus-marketing-api/internal/domain/entity"
	"nexus-marketing-api/internal/domain/repository"
	"nexus-marketing-api/internal/domain/service"
)

type LLMUsageRecorder struct {
	usageRepo repository.LLMUsageEventRepository
}

func NewLLMUsageRecorder(usageRepo repository.LLMUsageEventRepository) *LLMUsageRecorder {
	return &LLMUsageRecorder{
		usageRepo: usageRepo,
	}
}

// Record 记录一次 LLM 调用流水。best-effort：落库失败不回传给主流程。
func (r *LLMUsageRecorder) Record(ctx context.Context, in service.LLMUsageInput) error {
	if r == nil || r.usageRepo == nil {
		return nil
	}

	tenantID := strings.TrimSpace(in.TenantID)
	if tenantID == "" {
		return nil
	}
	if in.PromptTokens < 0 || in.CompletionTokens < 0 {
		return fmt.Errorf("invalid token usage")
	}

	evt := &entity.LLMUsageEvent{
		TenantID:         tenantID,
		Purpose:          entity.LLMUsagePurpose(strings.TrimSpace(in.Workflow)),
		Provider:         strings.TrimSpace(in.Provider),
		Model:            strings.TrimSpace(in.Model),
		TokensPrompt:     in.PromptTokens,
		TokensCompletion: in.CompletionTokens,
		DurationMs:       in.DurationMs,
	}
	if sid := strings.TrimSpace(in.SessionID); sid != "" {
		evt.SessionID = &sid
	}
	_ = r.usageRepo.Create(ctx, evt)
	return nil
}
