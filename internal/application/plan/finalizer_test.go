package plan

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-marketing-api/internal/domain/entity"
	"nexus-marketing-api/internal/domain/repository"
	"nexus-marketing-api/internal/domain/service"
	apperrors "nexus-marketing-api/pkg/errors"
)

type fakeTx struct{}

func (fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeTenantCtx struct{}

func (fakeTenantCtx) SetTenant(context.Context, string) error { return nil }
func (fakeTenantCtx) ClearTenant(context.Context) error       { return nil }

type memSessionRepo struct {
	sessions map[string]*entity.OnboardingSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*entity.OnboardingSession)}
}

func (r *memSessionRepo) Create(_ context.Context, s *entity.OnboardingSession) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*entity.OnboardingSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.OnboardingSession, error) {
	return r.GetByID(ctx, id)
}

func (r *memSessionRepo) Update(_ context.Context, s *entity.OnboardingSession) error {
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) CountCreatedSince(_ context.Context, tenantID string, since time.Time) (int64, error) {
	var n int64
	for _, s := range r.sessions {
		if s.TenantID == tenantID && !s.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type memCompanyRepo struct {
	companies map[string]*entity.Company
}

func newMemCompanyRepo() *memCompanyRepo {
	return &memCompanyRepo{companies: make(map[string]*entity.Company)}
}

func (r *memCompanyRepo) Create(_ context.Context, c *entity.Company) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.companies[c.ID] = c
	return nil
}

func (r *memCompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	return r.companies[id], nil
}

func (r *memCompanyRepo) GetBySessionID(_ context.Context, sessionID string) (*entity.Company, error) {
	for _, c := range r.companies {
		if c.SessionID != nil && *c.SessionID == sessionID {
			return c, nil
		}
	}
	return nil, nil
}

func (r *memCompanyRepo) Update(_ context.Context, c *entity.Company) error {
	r.companies[c.ID] = c
	return nil
}

func (r *memCompanyRepo) List(_ context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Company], error) {
	var items []*entity.Company
	for _, c := range r.companies {
		if c.TenantID == tenantID {
			items = append(items, c)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), pagination), nil
}

func (r *memCompanyRepo) CountByTenant(_ context.Context, tenantID string) (int64, error) {
	var n int64
	for _, c := range r.companies {
		if c.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

type memPlanRepo struct {
	plans map[string]*entity.MarketingPlan // keyed by company id
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{plans: make(map[string]*entity.MarketingPlan)}
}

func (r *memPlanRepo) Upsert(_ context.Context, plan *entity.MarketingPlan) error {
	if existing, ok := r.plans[plan.CompanyID]; ok {
		plan.ID = existing.ID
	} else if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	r.plans[plan.CompanyID] = plan
	return nil
}

func (r *memPlanRepo) GetByCompanyID(_ context.Context, companyID string) (*entity.MarketingPlan, error) {
	return r.plans[companyID], nil
}

func (r *memPlanRepo) DeleteByCompanyID(_ context.Context, companyID string) error {
	delete(r.plans, companyID)
	return nil
}

type recordedUsage struct {
	inputs []service.LLMUsageInput
}

func (r *recordedUsage) Record(_ context.Context, in service.LLMUsageInput) error {
	r.inputs = append(r.inputs, in)
	return nil
}

type finalizerFixture struct {
	finalizer *Finalizer
	chat      *scriptedChatModel
	sessions  *memSessionRepo
	companies *memCompanyRepo
	plans     *memPlanRepo
	usage     *recordedUsage
}

func newFinalizerFixture(responses ...string) *finalizerFixture {
	chat := &scriptedChatModel{responses: responses}
	sessions := newMemSessionRepo()
	companies := newMemCompanyRepo()
	plans := newMemPlanRepo()
	usage := &recordedUsage{}

	finalizer := NewFinalizer(
		fakeTx{},
		fakeTenantCtx{},
		sessions,
		companies,
		plans,
		NewGenerator(&scriptedFactory{model: chat}),
		usage,
		nil,
		nil,
	)
	return &finalizerFixture{finalizer: finalizer, chat: chat, sessions: sessions, companies: companies, plans: plans, usage: usage}
}

func completeDraft() *entity.CompanyDraft {
	return &entity.CompanyDraft{
		Language:       "en",
		CompanyName:    "Acme Bakery",
		Industry:       "food",
		TargetAudience: "locals",
		Goals:          []string{"awareness"},
	}
}

func (f *finalizerFixture) seedSession(t *testing.T, draft *entity.CompanyDraft) *entity.OnboardingSession {
	t.Helper()
	session := entity.NewOnboardingSession("tenant-1")
	session.Step = entity.StepApproval
	require.NoError(t, session.SetCompanyDraft(draft))
	require.NoError(t, f.sessions.Create(context.Background(), session))
	return session
}

func TestFinalizeIncompleteProfileFailsBeforeGeneration(t *testing.T) {
	f := newFinalizerFixture(validPlanJSON)
	session := f.seedSession(t, &entity.CompanyDraft{Language: "en", CompanyName: "Acme"})

	_, err := f.finalizer.Finalize(context.Background(), "tenant-1", session.ID, nil)
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeIncompleteProfile, appErr.Code)
	assert.Contains(t, appErr.Detail, "industry")
	assert.Contains(t, appErr.Detail, "goals")

	// 任何生成调用都未发生，也没有公司被固化
	assert.Equal(t, 0, f.chat.callCount())
	assert.Empty(t, f.companies.companies)
}

func TestFinalizeUnknownSession(t *testing.T) {
	f := newFinalizerFixture(validPlanJSON)
	_, err := f.finalizer.Finalize(context.Background(), "tenant-1", uuid.NewString(), nil)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestFinalizePromotesDraftAndPersistsPlan(t *testing.T) {
	f := newFinalizerFixture(validPlanJSON)
	session := f.seedSession(t, completeDraft())

	res, err := f.finalizer.Finalize(context.Background(), "tenant-1", session.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Company)
	require.NotNil(t, res.Plan)

	assert.Equal(t, "Acme Bakery", res.Company.Name)
	assert.Len(t, res.Plan.Posts, 2)
	assert.Len(t, res.Plan.Ads, 1)
	assert.Equal(t, []string{"launch week", "customer stories"}, []string(res.Plan.WeeklyThemes))

	// 会话被标记完成并指向新公司
	got, err := f.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OnboardingStatusCompleted, got.Status)
	require.NotNil(t, got.CreatedCompanyID)
	assert.Equal(t, res.Company.ID, *got.CreatedCompanyID)

	stored, err := f.plans.GetByCompanyID(context.Background(), res.Company.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, res.Plan.ID, stored.ID)

	require.Len(t, f.usage.inputs, 1)
	assert.Equal(t, "plan_generation", f.usage.inputs[0].Workflow)
	assert.Equal(t, 200, f.usage.inputs[0].PromptTokens)
}

func TestFinalizeReusesPromotedCompany(t *testing.T) {
	f := newFinalizerFixture(validPlanJSON)
	session := f.seedSession(t, completeDraft())

	company, err := entity.NewCompanyFromDraft("tenant-1", session.ID, completeDraft())
	require.NoError(t, err)
	require.NoError(t, f.companies.Create(context.Background(), company))
	session.Status = entity.OnboardingStatusCompleted
	session.CreatedCompanyID = &company.ID
	require.NoError(t, f.sessions.Update(context.Background(), session))

	res, err := f.finalizer.Finalize(context.Background(), "tenant-1", session.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, company.ID, res.Company.ID)
	assert.Len(t, f.companies.companies, 1)
}

func TestFinalizeConflictsWithoutRegenerate(t *testing.T) {
	f := newFinalizerFixture(validPlanJSON, validPlanJSON)
	session := f.seedSession(t, completeDraft())

	first, err := f.finalizer.Finalize(context.Background(), "tenant-1", session.ID, nil)
	require.NoError(t, err)

	// 二次交接必须显式 regenerate
	_, err = f.finalizer.Finalize(context.Background(), "tenant-1", session.ID, nil)
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
	assert.Equal(t, 1, f.chat.callCount())

	// 带 regenerate 整体替换，方案 ID 保持不变
	second, err := f.finalizer.Finalize(context.Background(), "tenant-1", session.ID, &FinalizeInput{Regenerate: true})
	require.NoError(t, err)
	assert.Equal(t, first.Plan.ID, second.Plan.ID)
	assert.Equal(t, 2, f.chat.callCount())
}

func TestFinalizeGenerationFailureLeavesNoPlan(t *testing.T) {
	f := newFinalizerFixture(`{"strategy_summary": "s", "weekly_themes": [], "posts": [], "ads": []}`)
	session := f.seedSession(t, completeDraft())

	_, err := f.finalizer.Finalize(context.Background(), "tenant-1", session.ID, nil)
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeGenerationFailed, appErr.Code)

	// 生成失败不落方案，草稿保留可重试
	got, err := f.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CreatedCompanyID)
	stored, err := f.plans.GetByCompanyID(context.Background(), *got.CreatedCompanyID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}
