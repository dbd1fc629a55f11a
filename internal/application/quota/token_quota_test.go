package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-marketing-api/internal/domain/entity"
	"nexus-marketing-api/internal/domain/repository"
	"nexus-marketing-api/internal/domain/service"
)

type fakeUsageRepo struct {
	events []*entity.LLMUsageEvent
}

func (r *fakeUsageRepo) Create(_ context.Context, evt *entity.LLMUsageEvent) error {
	r.events = append(r.events, evt)
	return nil
}

func (r *fakeUsageRepo) GetTokenUsage(_ context.Context, tenantID string, start, end time.Time) (int64, error) {
	var total int64
	for _, e := range r.events {
		if e.TenantID == tenantID && !e.CreatedAt.Before(start) && e.CreatedAt.Before(end) {
			total += int64(e.TokensPrompt + e.TokensCompletion)
		}
	}
	return total, nil
}

type fakeSessionCounter struct {
	count int64
	since time.Time
}

func (r *fakeSessionCounter) Create(context.Context, *entity.OnboardingSession) error { return nil }
func (r *fakeSessionCounter) GetByID(context.Context, string) (*entity.OnboardingSession, error) {
	return nil, nil
}
func (r *fakeSessionCounter) GetByIDForUpdate(context.Context, string) (*entity.OnboardingSession, error) {
	return nil, nil
}
func (r *fakeSessionCounter) Update(context.Context, *entity.OnboardingSession) error { return nil }
func (r *fakeSessionCounter) CountCreatedSince(_ context.Context, _ string, since time.Time) (int64, error) {
	r.since = since
	return r.count, nil
}

var _ repository.OnboardingSessionRepository = (*fakeSessionCounter)(nil)

func fixedChecker(usage *fakeUsageRepo, sessions *fakeSessionCounter, at time.Time) *TokenQuotaChecker {
	c := NewTokenQuotaChecker(usage, sessions)
	c.now = func() time.Time { return at }
	return c
}

func TestCheckDailyTokensUnlimited(t *testing.T) {
	c := fixedChecker(&fakeUsageRepo{}, &fakeSessionCounter{}, time.Now())

	used, max, err := c.CheckDailyTokens(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.Zero(t, used)
	assert.Zero(t, max)

	_, _, err = c.CheckDailyTokens(context.Background(), "t1", &entity.TenantQuota{MaxTokensPerDay: 0})
	require.NoError(t, err)
}

func TestCheckDailyTokensCountsOnlyToday(t *testing.T) {
	at := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
	usage := &fakeUsageRepo{events: []*entity.LLMUsageEvent{
		{TenantID: "t1", TokensPrompt: 40, TokensCompletion: 10, CreatedAt: at.Add(-2 * time.Hour)},
		// 昨天的用量不计入
		{TenantID: "t1", TokensPrompt: 900, CreatedAt: at.Add(-24 * time.Hour)},
		// 其他租户不计入
		{TenantID: "t2", TokensPrompt: 900, CreatedAt: at.Add(-time.Hour)},
	}}
	c := fixedChecker(usage, &fakeSessionCounter{}, at)

	used, max, err := c.CheckDailyTokens(context.Background(), "t1", &entity.TenantQuota{MaxTokensPerDay: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(50), used)
	assert.Equal(t, int64(100), max)
}

func TestCheckDailyTokensExceeded(t *testing.T) {
	at := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
	usage := &fakeUsageRepo{events: []*entity.LLMUsageEvent{
		{TenantID: "t1", TokensPrompt: 100, CreatedAt: at.Add(-time.Hour)},
	}}
	c := fixedChecker(usage, &fakeSessionCounter{}, at)

	used, max, err := c.CheckDailyTokens(context.Background(), "t1", &entity.TenantQuota{MaxTokensPerDay: 100})
	require.Error(t, err)
	assert.Equal(t, int64(100), used)
	assert.Equal(t, int64(100), max)

	var quotaErr TokenQuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, "t1", quotaErr.TenantID)
	assert.Equal(t, int64(100), quotaErr.Used)
}

func TestCheckDailySessions(t *testing.T) {
	at := time.Date(2026, 8, 31, 3, 30, 0, 0, time.UTC)
	sessions := &fakeSessionCounter{count: 2}
	c := fixedChecker(&fakeUsageRepo{}, sessions, at)

	require.NoError(t, c.CheckDailySessions(context.Background(), "t1", &entity.TenantQuota{MaxSessionsPerDay: 3}))
	// 窗口从当日 UTC 零点起算
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), sessions.since)

	err := c.CheckDailySessions(context.Background(), "t1", &entity.TenantQuota{MaxSessionsPerDay: 2})
	var quotaErr SessionQuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 2, quotaErr.Max)

	require.NoError(t, c.CheckDailySessions(context.Background(), "t1", nil))
}

func TestLLMUsageRecorder(t *testing.T) {
	repo := &fakeUsageRepo{}
	rec := NewLLMUsageRecorder(repo)

	require.NoError(t, rec.Record(context.Background(), service.LLMUsageInput{
		TenantID:         "t1",
		SessionID:        "s1",
		Workflow:         "onboarding_reply",
		Provider:         "openai",
		Model:            "gpt-4o-mini",
		PromptTokens:     12,
		CompletionTokens: 7,
		DurationMs:       340,
	}))
	require.Len(t, repo.events, 1)
	evt := repo.events[0]
	assert.Equal(t, entity.LLMUsagePurposeOnboarding, evt.Purpose)
	assert.Equal(t, 12, evt.TokensPrompt)
	require.NotNil(t, evt.SessionID)
	assert.Equal(t, "s1", *evt.SessionID)

	// 缺租户直接忽略
	require.NoError(t, rec.Record(context.Background(), service.LLMUsageInput{Workflow: "x"}))
	assert.Len(t, repo.events, 1)

	// 非法用量拒绝
	err := rec.Record(context.Background(), service.LLMUsageInput{TenantID: "t1", PromptTokens: -1})
	assert.Error(t, err)
}
