// Package quota 提供租户配额相关能力
package quota

import (
	"context"
	"fmt"
	"time"

	"nexus-marketing-api/internal/domain/entity"
	"nexus-marketing-api/internal/domain/repository"
)

// TokenQuotaExceededError 表示租户 Token 日配额已耗尽
type TokenQuotaExceededError struct {
	TenantID string
	Max      int64
	Used     int64
}

func (e TokenQuotaExceededError) Error() string {
	return fmt.Sprintf("token quota exceeded: tenant=%s used=%d max=%d", e.TenantID, e.Used, e.Max)
}

// SessionQuotaExceededError 表示租户当日会话配额已耗尽
type SessionQuotaExceededError struct {
	TenantID string
	Max      int
	Used     int64
}

func (e SessionQuotaExceededError) Error() string {
	return fmt.Sprintf("session quota exceeded: tenant=%s used=%d max=%d", e.TenantID, e.Used, e.Max)
}

// TokenQuotaChecker 用于检查租户 Token 与会话日配额
type TokenQuotaChecker struct {
	llmRepo     repository.LLMUsageEventRepository
	sessionRepo repository.OnboardingSessionRepository
	now         func() time.Time
}

func NewTokenQuotaChecker(llmRepo repository.LLMUsageEventRepository, sessionRepo repository.OnboardingSessionRepository) *TokenQuotaChecker {
	return &TokenQuotaChecker{
		llmRepo:     llmRepo,
		sessionRepo: sessionRepo,
		now:         time.Now,
	}
}

// CheckDailyTokens 检查租户是否还有当日 Token 配额。
// 返回：used/max（便于客户端展示），以及是否超过配额的 error。
func (c *TokenQuotaChecker) CheckDailyTokens(ctx context.Context, tenantID string, quota *entity.TenantQuota) (used int64, max int64, err error) {
	if quota == nil || quota.MaxTokensPerDay <= 0 {
		return 0, 0, nil
	}

	start, end := c.todayWindow()
	used, err = c.llmRepo.GetTokenUsage(ctx, tenantID, start, end)
	if err != nil {
		return 0, quota.MaxTokensPerDay, err
	}
	if used >= quota.MaxTokensPerDay {
		return used, quota.MaxTokensPerDay, TokenQuotaExceededError{
			TenantID: tenantID,
			Max:      quota.MaxTokensPerDay,
			Used:     used,
		}
	}
	return used, quota.MaxTokensPerDay, nil
}

// CheckDailySessions 检查租户当日新建会话配额
func (c *TokenQuotaChecker) CheckDailySessions(ctx context.Context, tenantID string, quota *entity.TenantQuota) error {
	if quota == nil || quota.MaxSessionsPerDay <= 0 {
		return nil
	}
	if c.sessionRepo == nil {
		return nil
	}

	start, _ := c.todayWindow()
	used, err := c.sessionRepo.CountCreatedSince(ctx, tenantID, start)
	if err != nil {
		return err
	}
	if used >= int64(quota.MaxSessionsPerDay) {
		return SessionQuotaExceededError{
			TenantID: tenantID,
			Max:      quota.MaxSessionsPerDay,
			Used:     used,
		}
	}
	return nil
}

func (c *TokenQuotaChecker) todayWindow() (time.Time, time.Time) {
	now := c.now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
