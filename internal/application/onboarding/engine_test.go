package onboarding

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-marketing-api/internal/application/quota"
	"nexus-marketing-api/internal/config"
	"nexus-marketing-api/internal/domain/entity"
	"nexus-marketing-api/internal/domain/repository"
	"nexus-marketing-api/internal/domain/service"
	apperrors "nexus-marketing-api/pkg/errors"
)

// ---- fakes ----

type fakeTx struct{}

func (fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeTenantCtx struct{}

func (fakeTenantCtx) SetTenant(context.Context, string) error { return nil }
func (fakeTenantCtx) ClearTenant(context.Context) error       { return nil }

type memTenantRepo struct {
	mu      sync.Mutex
	tenants map[string]*entity.Tenant
}

func newMemTenantRepo() *memTenantRepo {
	return &memTenantRepo{tenants: make(map[string]*entity.Tenant)}
}

func (r *memTenantRepo) Create(_ context.Context, tenant *entity.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *memTenantRepo) GetByID(_ context.Context, id string) (*entity.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tenants[id], nil
}

func (r *memTenantRepo) GetBySlug(_ context.Context, slug string) (*entity.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return nil, nil
}

func (r *memTenantRepo) Update(_ context.Context, tenant *entity.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *memTenantRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tenants, id)
	return nil
}

func (r *memTenantRepo) List(_ context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Tenant], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		items = append(items, t)
	}
	return repository.NewPagedResult(items, int64(len(items)), pagination), nil
}

func (r *memTenantRepo) UpdateStatus(_ context.Context, id string, status entity.TenantStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tenants[id]; ok {
		t.Status = status
	}
	return nil
}

func (r *memTenantRepo) ExistsBySlug(_ context.Context, slug string) (bool, error) {
	t, _ := r.GetBySlug(context.Background(), slug)
	return t != nil, nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*entity.OnboardingSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*entity.OnboardingSession)}
}

func (r *memSessionRepo) Create(_ context.Context, session *entity.OnboardingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*entity.OnboardingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (r *memSessionRepo) Update(_ context.Context, session *entity.OnboardingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *memSessionRepo) CountCreatedSince(_ context.Context, tenantID string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.TenantID == tenantID && !s.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type memTurnRepo struct {
	mu    sync.Mutex
	turns []*entity.OnboardingTurn
}

func (r *memTurnRepo) Create(_ context.Context, turn *entity.OnboardingTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	cp := *turn
	r.turns = append(r.turns, &cp)
	return nil
}

func (r *memTurnRepo) ListBySession(_ context.Context, sessionID string, pagination repository.Pagination) (*repository.PagedResult[*entity.OnboardingTurn], error) {
	items := r.bySession(sessionID)
	return repository.NewPagedResult(items, int64(len(items)), pagination), nil
}

func (r *memTurnRepo) ListRecent(_ context.Context, sessionID string, limit int) ([]*entity.OnboardingTurn, error) {
	items := r.bySession(sessionID)
	if len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

func (r *memTurnRepo) bySession(sessionID string) []*entity.OnboardingTurn {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*entity.OnboardingTurn
	for _, t := range r.turns {
		if t.SessionID == sessionID {
			items = append(items, t)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items
}

type memCompanyRepo struct {
	mu        sync.Mutex
	companies map[string]*entity.Company
}

func newMemCompanyRepo() *memCompanyRepo {
	return &memCompanyRepo{companies: make(map[string]*entity.Company)}
}

func (r *memCompanyRepo) Create(_ context.Context, company *entity.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	r.companies[company.ID] = company
	return nil
}

func (r *memCompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.companies[id], nil
}

func (r *memCompanyRepo) GetBySessionID(_ context.Context, sessionID string) (*entity.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.companies {
		if c.SessionID != nil && *c.SessionID == sessionID {
			return c, nil
		}
	}
	return nil, nil
}

func (r *memCompanyRepo) Update(_ context.Context, company *entity.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.companies[company.ID] = company
	return nil
}

func (r *memCompanyRepo) List(_ context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Company], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*entity.Company
	for _, c := range r.companies {
		if c.TenantID == tenantID {
			items = append(items, c)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), pagination), nil
}

func (r *memCompanyRepo) CountByTenant(_ context.Context, tenantID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.companies {
		if c.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

type memUsageRepo struct {
	mu     sync.Mutex
	events []*entity.LLMUsageEvent
}

func (r *memUsageRepo) Create(_ context.Context, event *entity.LLMUsageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *memUsageRepo) GetTokenUsage(_ context.Context, tenantID string, start, end time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, e := range r.events {
		if e.TenantID == tenantID && !e.CreatedAt.Before(start) && e.CreatedAt.Before(end) {
			total += int64(e.TokensPrompt + e.TokensCompletion)
		}
	}
	return total, nil
}

type recordedUsage struct {
	mu     sync.Mutex
	inputs []service.LLMUsageInput
}

func (r *recordedUsage) Record(_ context.Context, in service.LLMUsageInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, in)
	return nil
}

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
			Usage: &schema.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
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

type fakeImageGen struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (g *fakeImageGen) GenerateImage(_ context.Context, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.url, nil
}

func (g *fakeImageGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// ---- fixture ----

type engineFixture struct {
	engine      *Engine
	model       *scriptedChatModel
	imageGen    *fakeImageGen
	tenants     *memTenantRepo
	sessions    *memSessionRepo
	turns       *memTurnRepo
	companies   *memCompanyRepo
	usage       *recordedUsage
	usageEvents *memUsageRepo
}

func newEngineFixture(t *testing.T, responses ...string) *engineFixture {
	t.Helper()

	cfg := &config.Config{
		Onboarding: config.OnboardingConfig{
			HistoryWindow:          20,
			CompanyIntroRetryLimit: 3,
			DefaultLanguage:        "en",
		},
	}

	chat := &scriptedChatModel{responses: responses}
	factory := &scriptedFactory{model: chat}
	imageGen := &fakeImageGen{url: "https://cdn.example.com/logo.png"}

	tenants := newMemTenantRepo()
	sessions := newMemSessionRepo()
	turns := &memTurnRepo{}
	companies := newMemCompanyRepo()
	usageRepo := &memUsageRepo{}
	usage := &recordedUsage{}

	engine := NewEngine(
		cfg,
		fakeTx{},
		fakeTenantCtx{},
		tenants,
		sessions,
		turns,
		companies,
		NewReplyGenerator(factory),
		NewSiteAnalyzer(factory),
		imageGen,
		FixedPersonaSelector("curious"),
		quota.NewTokenQuotaChecker(usageRepo, sessions),
		usage,
		nil,
	)

	return &engineFixture{
		engine:      engine,
		model:       chat,
		imageGen:    imageGen,
		tenants:     tenants,
		sessions:    sessions,
		turns:       turns,
		companies:   companies,
		usage:       usage,
		usageEvents: usageRepo,
	}
}

func (f *engineFixture) seedTenant(t *testing.T, q *entity.TenantQuota) string {
	t.Helper()
	tenant := entity.NewTenant("Acme", "acme")
	if q != nil {
		tenant.Quota = q
	}
	require.NoError(t, f.tenants.Create(context.Background(), tenant))
	return tenant.ID
}

func (f *engineFixture) seedSession(t *testing.T, tenantID string, step entity.ConversationStep, draft *entity.CompanyDraft) *entity.OnboardingSession {
	t.Helper()
	session := entity.NewOnboardingSession(tenantID)
	session.Step = step
	if draft != nil {
		require.NoError(t, session.SetCompanyDraft(draft))
	}
	require.NoError(t, f.sessions.Create(context.Background(), session))
	return session
}

func replyJSON(message, intent string) string {
	return fmt.Sprintf(`{"assistant_message": %q, "intent": %q}`, message, intent)
}

func draftOf(t *testing.T, f *engineFixture, sessionID string) *entity.CompanyDraft {
	t.Helper()
	session, err := f.sessions.GetByID(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	draft, err := session.CompanyDraft()
	require.NoError(t, err)
	return draft
}

// ---- tests ----

func TestHandleTurnRejectsEmptyUtterance(t *testing.T) {
	f := newEngineFixture(t)
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepLanguageSelect, nil)

	_, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "   "})
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeValidationFailed, appErr.Code)
}

func TestHandleTurnRejectsClosedSession(t *testing.T) {
	f := newEngineFixture(t)
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepGoals, nil)
	session.Status = entity.OnboardingStatusCompleted
	require.NoError(t, f.sessions.Update(context.Background(), session))

	_, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "hello"})
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)
	assert.Equal(t, 0, f.model.callCount())
}

func TestHandleTurnLanguageSelect(t *testing.T) {
	f := newEngineFixture(t, replyJSON("Nice to meet you!", "none"))
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepLanguageSelect, nil)

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "عربي"})
	require.NoError(t, err)

	assert.Equal(t, entity.StepUserIntro, res.Session.Step)
	assert.Equal(t, "ar", draftOf(t, f, session.ID).Language)
	assert.Equal(t, "Nice to meet you!", res.AssistantTurn.Content)
	assert.Equal(t, 1, f.model.callCount())
	require.NotNil(t, res.Usage)
	assert.Equal(t, 10, res.Usage.PromptTokens)
}

func TestHandleTurnURLShortCircuitsToSiteAnalysis(t *testing.T) {
	analysis := `{"company_name": "Acme Bakery", "industry": "food", "description": "Fresh bread daily", "target_audience": "locals", "suggested_goals": ["awareness"], "detected_colors": ["#112233"], "detected_fonts": ["Inter"], "services": ["bakery"]}`
	f := newEngineFixture(t, analysis)
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepCompanyIntro, &entity.CompanyDraft{Language: "en", UserName: "Sam"})

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "our site is https://acme.example.com, have a look"})
	require.NoError(t, err)

	// 一次网站分析调用，本轮没有额外的文本生成
	assert.Equal(t, 1, f.model.callCount())
	assert.Equal(t, entity.StepWebsiteVerify, res.Session.Step)
	assert.Equal(t, entity.AffordanceSiteApproval, res.AssistantTurn.Affordance)

	draft := draftOf(t, f, session.ID)
	assert.Equal(t, "https://acme.example.com", draft.Website)
	require.NotNil(t, draft.SiteSummary)
	assert.True(t, draft.SiteSummary.Valid)
	assert.Equal(t, "Acme Bakery", draft.SiteSummary.CompanyName)
	// 摘要仅暂存，未经确认不合入草稿
	assert.Empty(t, draft.CompanyName)
}

func TestHandleTurnApproveSiteMergesSummary(t *testing.T) {
	f := newEngineFixture(t, replyJSON("Great, let's pick goals.", "none"))
	tenantID := f.seedTenant(t, nil)
	draft := &entity.CompanyDraft{
		Language: "en",
		Website:  "https://acme.example.com",
		SiteSummary: &entity.SiteSummary{
			URL:            "https://acme.example.com",
			CompanyName:    "Acme Bakery",
			Industry:       "food",
			Description:    "Fresh bread daily",
			SuggestedGoals: []string{"awareness"},
			DetectedColors: []string{"#112233"},
			Valid:          true,
		},
	}
	session := f.seedSession(t, tenantID, entity.StepWebsiteVerify, draft)

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "/approve site"})
	require.NoError(t, err)

	assert.Equal(t, entity.StepGoals, res.Session.Step)
	got := draftOf(t, f, session.ID)
	assert.Equal(t, "Acme Bakery", got.CompanyName)
	assert.Equal(t, "food", got.Industry)
	assert.Equal(t, []string{"awareness"}, got.Goals)
	assert.Equal(t, []string{"#112233"}, got.BrandColors)
}

func TestHandleTurnEditSiteDiscardsSummary(t *testing.T) {
	f := newEngineFixture(t, replyJSON("No problem, tell me about the company.", "none"))
	tenantID := f.seedTenant(t, nil)
	draft := &entity.CompanyDraft{
		Language:    "en",
		Website:     "https://acme.example.com",
		SiteSummary: &entity.SiteSummary{CompanyName: "Acme Bakery", Valid: true},
	}
	session := f.seedSession(t, tenantID, entity.StepWebsiteVerify, draft)

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "/edit site"})
	require.NoError(t, err)

	assert.Equal(t, entity.StepCompanyIntro, res.Session.Step)
	got := draftOf(t, f, session.ID)
	assert.Nil(t, got.SiteSummary)
	assert.Empty(t, got.Website)
	assert.Empty(t, got.CompanyName)
}

func TestHandleTurnGoalToggleSkipsGeneration(t *testing.T) {
	f := newEngineFixture(t)
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepGoals, &entity.CompanyDraft{Language: "en", CompanyName: "Acme"})

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "/goal awareness"})
	require.NoError(t, err)

	assert.Equal(t, 0, f.model.callCount())
	assert.Equal(t, entity.StepGoals, res.Session.Step)
	assert.Equal(t, entity.AffordanceGoalPicker, res.AssistantTurn.Affordance)
	assert.Equal(t, []string{"awareness"}, draftOf(t, f, session.ID).Goals)

	// 再次切换同一目标会移除它
	_, err = f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "/goal awareness"})
	require.NoError(t, err)
	assert.Empty(t, draftOf(t, f, session.ID).Goals)
	assert.Equal(t, 0, f.model.callCount())
}

func TestHandleTurnIntentRoutesLogoBranch(t *testing.T) {
	f := newEngineFixture(t, replyJSON("Want me to design one?", "generate_logo"))
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepBrandingLogo, &entity.CompanyDraft{Language: "en", CompanyName: "Acme"})

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "I don't have a logo yet"})
	require.NoError(t, err)

	assert.Equal(t, entity.StepBrandingStyle, res.Session.Step)
	assert.Equal(t, 1, f.model.callCount())
	assert.Equal(t, 0, f.imageGen.callCount())
}

func TestHandleTurnIntentRoutesUploadBranch(t *testing.T) {
	f := newEngineFixture(t, replyJSON("Send it over!", "upload_logo"))
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepBrandingLogo, &entity.CompanyDraft{Language: "en", CompanyName: "Acme"})

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "we already have one"})
	require.NoError(t, err)

	assert.Equal(t, entity.StepBrandingFiles, res.Session.Step)
	assert.Equal(t, entity.AffordanceUploadRequest, res.AssistantTurn.Affordance)
}

func TestHandleTurnBrandingStyleGeneratesLogo(t *testing.T) {
	f := newEngineFixture(t)
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepBrandingStyle, &entity.CompanyDraft{Language: "en", CompanyName: "Acme"})

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "minimalist, warm colors"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.imageGen.callCount())
	assert.Equal(t, 0, f.model.callCount())
	assert.Equal(t, entity.StepBrandingStyle, res.Session.Step)
	assert.Equal(t, entity.AffordanceLogoApproval, res.AssistantTurn.Affordance)
	assert.Equal(t, "https://cdn.example.com/logo.png", res.AssistantTurn.ImageURL)

	draft := draftOf(t, f, session.ID)
	assert.Equal(t, "minimalist, warm colors", draft.BrandStyle)
	assert.Equal(t, "https://cdn.example.com/logo.png", draft.PendingLogoURL)
}

func TestHandleTurnLogoFailureLeavesStateUnchanged(t *testing.T) {
	f := newEngineFixture(t)
	f.imageGen.err = fmt.Errorf("image provider down")
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepBrandingStyle, &entity.CompanyDraft{Language: "en", CompanyName: "Acme"})

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "minimalist"})
	require.NoError(t, err)

	assert.Equal(t, FailureMessage("en"), res.AssistantTurn.Content)
	assert.Equal(t, entity.StepBrandingStyle, res.Session.Step)

	// 失败轮不落任何草稿变更
	draft := draftOf(t, f, session.ID)
	assert.Empty(t, draft.BrandStyle)
	assert.Empty(t, draft.PendingLogoURL)
	assert.Contains(t, string(res.AssistantTurn.Metadata), `"degraded":true`)

	// 连续第二次失败同样不破坏状态，用户重发被当作全新一轮
	res, err = f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "minimalist"})
	require.NoError(t, err)
	assert.Equal(t, entity.StepBrandingStyle, res.Session.Step)
	assert.Equal(t, 2, f.imageGen.callCount())
	assert.Empty(t, draftOf(t, f, session.ID).BrandStyle)
}

func TestHandleTurnApproveLogoAdvances(t *testing.T) {
	f := newEngineFixture(t, replyJSON("Logo saved. Any design preferences?", "none"))
	tenantID := f.seedTenant(t, nil)
	draft := &entity.CompanyDraft{Language: "en", CompanyName: "Acme", BrandStyle: "minimalist", PendingLogoURL: "https://cdn.example.com/logo.png"}
	session := f.seedSession(t, tenantID, entity.StepBrandingStyle, draft)

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "/approve logo"})
	require.NoError(t, err)

	assert.Equal(t, entity.StepDesignPrefs, res.Session.Step)
	got := draftOf(t, f, session.ID)
	assert.Equal(t, "https://cdn.example.com/logo.png", got.LogoRef)
	assert.Empty(t, got.PendingLogoURL)
}

func TestHandleTurnRetryLogoRegenerates(t *testing.T) {
	f := newEngineFixture(t)
	tenantID := f.seedTenant(t, nil)
	draft := &entity.CompanyDraft{Language: "en", CompanyName: "Acme", BrandStyle: "minimalist", PendingLogoURL: "https://cdn.example.com/old.png"}
	session := f.seedSession(t, tenantID, entity.StepBrandingStyle, draft)

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "/retry logo"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.imageGen.callCount())
	assert.Equal(t, entity.StepBrandingStyle, res.Session.Step)
	assert.Equal(t, "https://cdn.example.com/logo.png", draftOf(t, f, session.ID).PendingLogoURL)
}

func TestHandleTurnFileAttachment(t *testing.T) {
	f := newEngineFixture(t, replyJSON("Got it. Any design preferences?", "none"))
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepBrandingFiles, &entity.CompanyDraft{Language: "en", CompanyName: "Acme"})

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "/file logo.png"})
	require.NoError(t, err)

	assert.Equal(t, entity.StepDesignPrefs, res.Session.Step)
	got := draftOf(t, f, session.ID)
	assert.Equal(t, []string{"logo.png"}, got.Assets)
	assert.Equal(t, "logo.png", got.LogoRef)
}

func TestHandleTurnCompanyIntroRetryCap(t *testing.T) {
	f := newEngineFixture(t,
		replyJSON("What's the company called?", "none"),
		replyJSON("Could you share the company name?", "none"),
		replyJSON("Alright, noted!", "none"),
	)
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepCompanyIntro, &entity.CompanyDraft{Language: "en", UserName: "Sam"})

	// 前两轮无法识别公司名，停在原步骤并累计追问次数
	for i := 1; i <= 2; i++ {
		res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "???!"})
		require.NoError(t, err)
		assert.Equal(t, entity.StepCompanyIntro, res.Session.Step)
		assert.Equal(t, i, res.Session.CompanyIntroAttempts)
	}

	// 第三轮到达上限，按字面接受
	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "???!"})
	require.NoError(t, err)
	assert.Equal(t, entity.StepGoals, res.Session.Step)
	assert.Equal(t, "???!", draftOf(t, f, session.ID).CompanyName)
}

func TestHandleTurnPlanningIsDeterministic(t *testing.T) {
	f := newEngineFixture(t)
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepPlanning, &entity.CompanyDraft{Language: "en", CompanyName: "Acme"})

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "sounds good"})
	require.NoError(t, err)

	assert.Equal(t, 0, f.model.callCount())
	assert.Equal(t, entity.StepApproval, res.Session.Step)
	assert.Equal(t, entity.AffordancePlanApproval, res.AssistantTurn.Affordance)
	assert.Equal(t, PlanReadyMessage("en", "Acme"), res.AssistantTurn.Content)
}

func TestHandleTurnApprovePlanCompletesSession(t *testing.T) {
	f := newEngineFixture(t)
	tenantID := f.seedTenant(t, nil)
	draft := &entity.CompanyDraft{
		Language:       "en",
		CompanyName:    "Acme",
		Industry:       "food",
		TargetAudience: "locals",
		Goals:          []string{"awareness"},
	}
	session := f.seedSession(t, tenantID, entity.StepApproval, draft)

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "/approve plan"})
	require.NoError(t, err)

	assert.Equal(t, 0, f.model.callCount())
	require.NotNil(t, res.CompanyID)
	assert.Equal(t, entity.OnboardingStatusCompleted, res.Session.Status)
	require.NotNil(t, res.Session.CreatedCompanyID)

	company, err := f.companies.GetByID(context.Background(), *res.CompanyID)
	require.NoError(t, err)
	require.NotNil(t, company)
	assert.Equal(t, "Acme", company.Name)
	require.NotNil(t, company.SessionID)
	assert.Equal(t, session.ID, *company.SessionID)
}

func TestHandleTurnRecordsUsage(t *testing.T) {
	f := newEngineFixture(t, replyJSON("Hello!", "none"))
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepGoals, &entity.CompanyDraft{Language: "en", CompanyName: "Acme"})

	_, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "growth please"})
	require.NoError(t, err)

	require.Len(t, f.usage.inputs, 1)
	in := f.usage.inputs[0]
	assert.Equal(t, "onboarding_reply", in.Workflow)
	assert.Equal(t, 10, in.PromptTokens)
	assert.Equal(t, 5, in.CompletionTokens)
	assert.Equal(t, tenantID, in.TenantID)
}

func TestHandleTurnGenerationFailureKeepsDraft(t *testing.T) {
	f := newEngineFixture(t)
	f.model.err = fmt.Errorf("provider unavailable")
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepUserIntro, &entity.CompanyDraft{Language: "en"})

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "I'm Sam"})
	require.NoError(t, err)

	assert.Equal(t, FailureMessage("en"), res.AssistantTurn.Content)
	assert.Equal(t, entity.StepUserIntro, res.Session.Step)
	// 生成失败时，本轮中途写入的草稿字段也一并丢弃
	assert.Empty(t, draftOf(t, f, session.ID).UserName)
}

func TestHandleTurnArabicFailureMessage(t *testing.T) {
	f := newEngineFixture(t)
	f.model.err = fmt.Errorf("provider unavailable")
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.StepGoals, &entity.CompanyDraft{Language: "ar", CompanyName: "Acme"})

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "نمو"})
	require.NoError(t, err)
	assert.Equal(t, FailureMessage("ar"), res.AssistantTurn.Content)
}

func TestCreateSessionEnforcesDailyQuota(t *testing.T) {
	f := newEngineFixture(t)
	tenantID := f.seedTenant(t, &entity.TenantQuota{MaxSessionsPerDay: 1})

	_, err := f.engine.CreateSession(context.Background(), tenantID, "")
	require.NoError(t, err)

	_, err = f.engine.CreateSession(context.Background(), tenantID, "")
	require.Error(t, err)
	var quotaErr quota.SessionQuotaExceededError
	assert.ErrorAs(t, err, &quotaErr)
}

func TestCreateSessionUnknownTenant(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.CreateSession(context.Background(), uuid.NewString(), "")
	assert.ErrorIs(t, err, apperrors.ErrTenantNotFound)
}

func TestCreateSessionSeedsRequestedLanguage(t *testing.T) {
	f := newEngineFixture(t)
	tenantID := f.seedTenant(t, nil)

	session, err := f.engine.CreateSession(context.Background(), tenantID, "Arabic")
	require.NoError(t, err)
	assert.Equal(t, entity.StepUserIntro, session.Step)
	assert.Equal(t, "ar", draftOf(t, f, session.ID).Language)

	// 不带语言时仍从选语言步骤开始
	session, err = f.engine.CreateSession(context.Background(), tenantID, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StepLanguageSelect, session.Step)
}

func TestHandleTurnTokenQuotaExhausted(t *testing.T) {
	f := newEngineFixture(t)
	tenantID := f.seedTenant(t, &entity.TenantQuota{MaxTokensPerDay: 1})
	session := f.seedSession(t, tenantID, entity.StepGoals, &entity.CompanyDraft{Language: "en"})

	// 预先写入一条耗尽配额的流水
	require.NoError(t, f.usageEvents.Create(context.Background(), &entity.LLMUsageEvent{
		TenantID:     tenantID,
		TokensPrompt: 5,
		CreatedAt:    time.Now().UTC(),
	}))

	_, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "hello"})
	require.Error(t, err)
	var quotaErr quota.TokenQuotaExceededError
	assert.ErrorAs(t, err, &quotaErr)
	assert.True(t, strings.Contains(err.Error(), "token quota exceeded"))
}

func TestHandleTurnStaleApproveLogoWithoutPendingConcept(t *testing.T) {
	f := newEngineFixture(t)
	tenantID := f.seedTenant(t, nil)
	// 上一轮出图失败后 PendingLogoURL 为空，用户仍按下旧的批准按钮
	session := f.seedSession(t, tenantID, entity.StepBrandingStyle, &entity.CompanyDraft{Language: "en", CompanyName: "Acme"})

	res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "/approve logo"})
	require.NoError(t, err)

	assert.Equal(t, 0, f.model.callCount())
	assert.Equal(t, 0, f.imageGen.callCount())
	assert.Equal(t, StaleControlMessage("en"), res.AssistantTurn.Content)
	assert.Equal(t, entity.StepBrandingStyle, res.Session.Step)

	got := draftOf(t, f, session.ID)
	assert.Empty(t, got.BrandStyle)
	assert.Empty(t, got.LogoRef)
}

func TestHandleTurnStaleControlsNeverReachGeneration(t *testing.T) {
	cases := []struct {
		name      string
		step      entity.ConversationStep
		utterance string
	}{
		{"approve site outside verify", entity.StepGoals, "/approve site"},
		{"edit site outside verify", entity.StepGoals, "/edit site"},
		{"goal toggle outside goals", entity.StepUserIntro, "/goal awareness"},
		{"retry logo without style", entity.StepBrandingStyle, "/retry logo"},
		{"file outside uploads", entity.StepGoals, "/file logo.png"},
		{"approve plan outside approval", entity.StepPlanning, "/approve plan"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newEngineFixture(t)
			tenantID := f.seedTenant(t, nil)
			session := f.seedSession(t, tenantID, tc.step, &entity.CompanyDraft{Language: "ar", CompanyName: "Acme"})

			res, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: tc.utterance})
			require.NoError(t, err)

			assert.Equal(t, 0, f.model.callCount())
			assert.Equal(t, 0, f.imageGen.callCount())
			assert.Equal(t, StaleControlMessage("ar"), res.AssistantTurn.Content)
			assert.Equal(t, tc.step, res.Session.Step)
		})
	}
}

func TestHandleTurnRejectsUnknownStep(t *testing.T) {
	f := newEngineFixture(t)
	tenantID := f.seedTenant(t, nil)
	session := f.seedSession(t, tenantID, entity.ConversationStep("bogus"), &entity.CompanyDraft{Language: "en"})

	_, err := f.engine.HandleTurn(context.Background(), tenantID, session.ID, &TurnInput{Utterance: "hello"})
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeInternalError, appErr.Code)
	assert.Equal(t, 0, f.model.callCount())
}
