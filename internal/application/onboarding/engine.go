// Package onboarding 实现引导对话引擎：信号分类、步骤状态机、单轮编排。
package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nexus-marketing-api/internal/application/quota"
	"nexus-marketing-api/internal/config"
	"nexus-marketing-api/internal/domain/entity"
	"nexus-marketing-api/internal/domain/repository"
	"nexus-marketing-api/internal/domain/service"
	"nexus-marketing-api/internal/infrastructure/messaging"
	wfmodel "nexus-marketing-api/internal/workflow/model"
	workflowport "nexus-marketing-api/internal/workflow/port"
	apperrors "nexus-marketing-api/pkg/errors"
	"nexus-marketing-api/pkg/logger"
	"nexus-marketing-api/pkg/metrics"
)

// TurnInput 一轮用户输入
type TurnInput struct {
	Utterance string
	Provider  string
	Model     string
}

// TurnResult 一轮编排的结果
type TurnResult struct {
	Session       *entity.OnboardingSession
	UserTurn      *entity.OnboardingTurn
	AssistantTurn *entity.OnboardingTurn
	CompanyID     *string
	Usage         *wfmodel.LLMUsageMeta
	DurationMs    int
}

// turnOutcome 状态机 + 生成调用的中间产物，由后置事务原子落库。
type turnOutcome struct {
	sessionID     string
	nextStep      entity.ConversationStep
	draft         *entity.CompanyDraft
	introAttempts int
	message       string
	affordance    entity.TurnAffordance
	imageURL      string
	siteSummary   *entity.SiteSummary
	completed     bool
	failed        bool
	signal        SignalKind
	workflow      string
	usage         *wfmodel.LLMUsageMeta
}

// Engine 引导对话引擎。每轮严格串行：
// 前置事务（配额 + 行锁 + 用户消息落库）-> 至多一次生成调用 -> 后置事务（状态落库）。
type Engine struct {
	cfg *config.Config

	txMgr     repository.Transactor
	tenantCtx repository.TenantContextManager

	tenantRepo  repository.TenantRepository
	sessionRepo repository.OnboardingSessionRepository
	turnRepo    repository.OnboardingTurnRepository
	companyRepo repository.CompanyRepository

	reply    *ReplyGenerator
	analyzer *SiteAnalyzer
	imageGen workflowport.ImageGenerator

	personas PersonaSelector

	quotaChecker *quota.TokenQuotaChecker
	usage        service.LLMUsageRecorder

	producer *messaging.Producer
}

func NewEngine(
	cfg *config.Config,
	txMgr repository.Transactor,
	tenantCtx repository.TenantContextManager,
	tenantRepo repository.TenantRepository,
	sessionRepo repository.OnboardingSessionRepository,
	turnRepo repository.OnboardingTurnRepository,
	companyRepo repository.CompanyRepository,
	reply *ReplyGenerator,
	analyzer *SiteAnalyzer,
	imageGen workflowport.ImageGenerator,
	personas PersonaSelector,
	quotaChecker *quota.TokenQuotaChecker,
	usage service.LLMUsageRecorder,
	producer *messaging.Producer,
) *Engine {
	return &Engine{
		cfg:          cfg,
		txMgr:        txMgr,
		tenantCtx:    tenantCtx,
		tenantRepo:   tenantRepo,
		sessionRepo:  sessionRepo,
		turnRepo:     turnRepo,
		companyRepo:  companyRepo,
		reply:        reply,
		analyzer:     analyzer,
		imageGen:     imageGen,
		personas:     personas,
		quotaChecker: quotaChecker,
		usage:        usage,
		producer:     producer,
	}
}

// CreateSession 创建会话。请求带 language 时直接固化进草稿并跳过选语言步骤；
// 否则语言在 language_select 步骤由用户选定后才固化。
func (e *Engine) CreateSession(ctx context.Context, tenantID, language string) (*entity.OnboardingSession, error) {
	if err := e.withTenantTx(ctx, tenantID, func(txCtx context.Context) error {
		tenant, err := e.tenantRepo.GetByID(txCtx, tenantID)
		if err != nil {
			return err
		}
		if tenant == nil {
			return apperrors.ErrTenantNotFound
		}
		if err := e.quotaChecker.CheckDailySessions(txCtx, tenantID, tenant.Quota); err != nil {
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}

	session := entity.NewOnboardingSession(tenantID)
	if strings.TrimSpace(language) != "" {
		draft := &entity.CompanyDraft{}
		draft.SetLanguage(normalizeLang(language))
		if err := session.SetCompanyDraft(draft); err != nil {
			return nil, err
		}
		session.Step = defaultNext(entity.StepLanguageSelect)
	}
	if err := e.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	metrics.ActiveSessions.Inc()
	return session, nil
}

// HandleTurn 编排一轮对话。
//
// 1. 预处理事务：租户 + 配额检查，行锁会话，落库用户消息。
// 2. 事务外执行状态机决策与至多一次生成调用（文本 / 网站分析 / 出图）。
// 3. 后置事务：重新锁行并检查会话仍然存活，应用步骤与草稿变更，落库助手消息。
//
// 生成调用失败不让本轮失败：返回本地化的“请再说一遍”话术，步骤与草稿保持不变，
// 用户原样重发会被当作全新一轮处理。
func (e *Engine) HandleTurn(ctx context.Context, tenantID, sessionID string, in *TurnInput) (*TurnResult, error) {
	if in == nil || strings.TrimSpace(in.Utterance) == "" {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "utterance must not be empty")
	}
	utterance := strings.TrimSpace(in.Utterance)

	var session *entity.OnboardingSession
	var userTurn *entity.OnboardingTurn

	// 1. 预处理事务
	if err := e.withTenantTx(ctx, tenantID, func(txCtx context.Context) error {
		tenant, err := e.tenantRepo.GetByID(txCtx, tenantID)
		if err != nil {
			return err
		}
		if tenant == nil {
			return apperrors.ErrTenantNotFound
		}
		if _, _, quotaErr := e.quotaChecker.CheckDailyTokens(txCtx, tenantID, tenant.Quota); quotaErr != nil {
			return quotaErr
		}

		session, err = e.sessionRepo.GetByIDForUpdate(txCtx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return apperrors.ErrSessionNotFound
		}
		if !session.IsActive() {
			return apperrors.ErrSessionClosed
		}
		if !ValidStep(session.Step) {
			return apperrors.New(apperrors.CodeInternalError, "unknown conversation step").WithDetail(string(session.Step))
		}

		userTurn = entity.NewOnboardingTurn(sessionID, entity.RoleUser, utterance, session.Step)
		return e.turnRepo.Create(txCtx, userTurn)
	}); err != nil {
		return nil, err
	}

	draft, err := session.CompanyDraft()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "corrupted session draft")
	}

	// 2. 状态机 + 生成调用（事务外）
	start := time.Now()
	outcome := e.runTurn(ctx, session, draft, utterance, in)
	durationMs := int(time.Since(start).Milliseconds())

	e.recordUsage(ctx, tenantID, sessionID, outcome, durationMs)

	// 3. 后置事务
	var assistantTurn *entity.OnboardingTurn
	var companyID *string
	if err := e.withTenantTx(ctx, tenantID, func(txCtx context.Context) error {
		session, err = e.sessionRepo.GetByIDForUpdate(txCtx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return apperrors.ErrSessionNotFound
		}
		// 会话在生成期间被关闭：丢弃结果，不再应用任何变更
		if !session.IsActive() {
			return apperrors.ErrSessionClosed
		}

		if !outcome.failed {
			session.Step = outcome.nextStep
			session.CompanyIntroAttempts = outcome.introAttempts
			if err := session.SetCompanyDraft(outcome.draft); err != nil {
				return err
			}

			if outcome.completed {
				company, err := entity.NewCompanyFromDraft(tenantID, sessionID, outcome.draft)
				if err != nil {
					return err
				}
				if err := e.companyRepo.Create(txCtx, company); err != nil {
					return err
				}
				companyID = &company.ID
				session.Status = entity.OnboardingStatusCompleted
				session.CreatedCompanyID = companyID
			}

			if err := e.sessionRepo.Update(txCtx, session); err != nil {
				return err
			}
		}

		assistantTurn = entity.NewOnboardingTurn(sessionID, entity.RoleAssistant, outcome.message, session.Step)
		assistantTurn.Affordance = outcome.affordance
		assistantTurn.ImageURL = outcome.imageURL
		assistantTurn.Metadata = e.turnMetadata(outcome, durationMs)
		return e.turnRepo.Create(txCtx, assistantTurn)
	}); err != nil {
		logger.Error(ctx, "failed to persist onboarding turn", err, "session_id", sessionID)
		return nil, err
	}

	e.afterTurn(ctx, tenantID, session, outcome, companyID, durationMs)

	result := &TurnResult{
		Session:       session,
		UserTurn:      userTurn,
		AssistantTurn: assistantTurn,
		CompanyID:     companyID,
		Usage:         outcome.usage,
		DurationMs:    durationMs,
	}
	return result, nil
}

// runTurn 运行信号分类 + 状态机，并执行本轮至多一次的生成调用
func (e *Engine) runTurn(ctx context.Context, session *entity.OnboardingSession, draft *entity.CompanyDraft, utterance string, in *TurnInput) *turnOutcome {
	signal := DetectSignal(session.Step, utterance)
	lang := draft.Language
	if lang == "" {
		lang = e.cfg.Onboarding.DefaultLanguage
	}

	out := &turnOutcome{
		sessionID:     session.ID,
		nextStep:      session.Step,
		draft:         draft,
		introAttempts: session.CompanyIntroAttempts,
		signal:        signal.Kind,
	}

	switch signal.Kind {
	case SignalURL:
		return e.analyzeWebsite(ctx, out, lang, signal.URL, in)

	case SignalApproveSite:
		if session.Step == entity.StepWebsiteVerify && draft.SiteSummary != nil {
			draft.MergeSiteSummary(draft.SiteSummary)
			out.nextStep = defaultNext(session.Step)
			return e.generateReply(ctx, out, lang, utterance, in)
		}
		return e.staleControlTurn(out, session, lang)

	case SignalEditSite:
		if session.Step == entity.StepWebsiteVerify {
			draft.SiteSummary = nil
			draft.Website = ""
			out.nextStep = entity.StepCompanyIntro
			return e.generateReply(ctx, out, lang, utterance, in)
		}
		return e.staleControlTurn(out, session, lang)

	case SignalGoalToggle:
		if session.Step == entity.StepGoals {
			before := len(draft.Goals)
			draft.ToggleGoal(signal.Goal)
			out.message = GoalToggledMessage(lang, signal.Goal, len(draft.Goals) > before)
			out.affordance = entity.AffordanceGoalPicker
			return out
		}
		return e.staleControlTurn(out, session, lang)

	case SignalApproveLogo:
		if session.Step == entity.StepBrandingStyle && draft.PendingLogoURL != "" {
			draft.LogoRef = draft.PendingLogoURL
			draft.PendingLogoURL = ""
			out.nextStep = entity.StepDesignPrefs
			return e.generateReply(ctx, out, lang, utterance, in)
		}
		return e.staleControlTurn(out, session, lang)

	case SignalRetryLogo:
		if session.Step == entity.StepBrandingStyle && draft.BrandStyle != "" {
			return e.generateLogo(ctx, out, lang, draft.BrandStyle)
		}
		return e.staleControlTurn(out, session, lang)

	case SignalFile:
		if session.Step == entity.StepBrandingFiles {
			draft.AddAsset(signal.FileName)
			if draft.LogoRef == "" {
				draft.LogoRef = signal.FileName
			}
			out.nextStep = defaultNext(session.Step)
			return e.generateReply(ctx, out, lang, utterance, in)
		}
		return e.staleControlTurn(out, session, lang)

	case SignalApprovePlan:
		if session.Step == entity.StepApproval {
			out.completed = true
			out.message = CompletedMessage(lang)
			return out
		}
		return e.staleControlTurn(out, session, lang)
	}

	return e.plainTextTurn(ctx, out, session, lang, utterance, in)
}

func (e *Engine) plainTextTurn(ctx context.Context, out *turnOutcome, session *entity.OnboardingSession, lang, utterance string, in *TurnInput) *turnOutcome {
	draft := out.draft

	switch session.Step {
	case entity.StepLanguageSelect:
		draft.SetLanguage(parseLanguage(utterance, e.cfg.Onboarding.DefaultLanguage))
		lang = draft.Language
		out.nextStep = defaultNext(session.Step)

	case entity.StepUserIntro:
		draft.UserName = truncateRunes(utterance, 80)
		out.nextStep = defaultNext(session.Step)

	case entity.StepCompanyIntro:
		if looksLikeCompanyName(utterance) {
			draft.CompanyName = truncateRunes(utterance, 120)
			out.nextStep = defaultNext(session.Step)
		} else {
			out.introAttempts = session.CompanyIntroAttempts + 1
			// 追问次数到顶后不再空转，按字面接受作为公司名
			if out.introAttempts >= e.introRetryLimit() {
				draft.CompanyName = truncateRunes(utterance, 120)
				out.nextStep = defaultNext(session.Step)
			}
		}

	case entity.StepGoals:
		out.nextStep = defaultNext(session.Step)

	case entity.StepBrandingStyle:
		// 每条自由文本都当作风格描述，触发一次出图
		styled := e.generateLogo(ctx, out, lang, utterance)
		if !styled.failed {
			styled.draft.BrandStyle = utterance
		}
		return styled

	case entity.StepDesignPrefs:
		draft.DesignPrefs = utterance
		out.nextStep = defaultNext(session.Step)

	case entity.StepPlanning:
		// 规划到审批是确定性转移，不消耗生成调用
		out.nextStep = defaultNext(session.Step)
		out.message = PlanReadyMessage(lang, draft.CompanyName)
		out.affordance = entity.AffordancePlanApproval
		return out

	case entity.StepBrandingLogo, entity.StepWebsiteVerify, entity.StepBrandingFiles, entity.StepApproval:
		// 停留在原步骤，由生成器继续引导
	}

	return e.generateReply(ctx, out, lang, utterance, in)
}

// generateReply 调用文本生成，失败时回退为本地化重试话术并保持状态不变
func (e *Engine) generateReply(ctx context.Context, out *turnOutcome, lang, utterance string, in *TurnInput) *turnOutcome {
	history, err := e.recentHistory(ctx, out)
	if err != nil {
		return e.failTurn(ctx, out, lang, err)
	}

	draftJSON, err := json.Marshal(out.draft)
	if err != nil {
		return e.failTurn(ctx, out, lang, err)
	}

	reply, err := e.reply.Generate(ctx, &wfmodel.OnboardingReplyInput{
		Step:      string(out.nextStep),
		Draft:     draftJSON,
		Utterance: utterance,
		History:   history,
		Language:  lang,
		Persona:   e.personas.Pick(),
		Objective: ObjectiveFor(out.nextStep, out.draft),
		Provider:  in.Provider,
		Model:     in.Model,
	})
	if err != nil {
		return e.failTurn(ctx, out, lang, err)
	}

	// 结构化意图路由 branding_logo 的分支，替代对生成文本的关键字嗅探
	if out.nextStep == entity.StepBrandingLogo {
		switch reply.Intent {
		case wfmodel.IntentUploadLogo:
			out.nextStep = entity.StepBrandingFiles
		case wfmodel.IntentGenerateLogo:
			out.nextStep = entity.StepBrandingStyle
		}
	}

	out.message = reply.AssistantMessage
	if out.affordance == entity.AffordanceNone {
		out.affordance = affordanceOnEnter(out.nextStep)
	}
	out.workflow = "onboarding_reply"
	out.usage = &reply.Meta
	return out
}

// analyzeWebsite 网站分析短路：本轮不再调用文本生成
func (e *Engine) analyzeWebsite(ctx context.Context, out *turnOutcome, lang, url string, in *TurnInput) *turnOutcome {
	analysis, err := e.analyzer.Analyze(ctx, &wfmodel.SiteAnalysisInput{
		URL:      url,
		Language: lang,
		Provider: in.Provider,
		Model:    in.Model,
	})
	if err != nil {
		return e.failTurn(ctx, out, lang, err)
	}

	summary := &entity.SiteSummary{
		URL:            url,
		CompanyName:    analysis.CompanyName,
		Industry:       analysis.Industry,
		Description:    analysis.Description,
		TargetAudience: analysis.TargetAudience,
		SuggestedGoals: analysis.SuggestedGoals,
		DetectedColors: analysis.DetectedColors,
		DetectedFonts:  analysis.DetectedFonts,
		Services:       analysis.Services,
		Valid:          analysis.CompanyName != "" || analysis.Description != "" || len(analysis.Services) > 0,
	}

	out.draft.Website = url
	out.draft.SiteSummary = summary
	out.nextStep = entity.StepWebsiteVerify
	out.message = SiteCardMessage(lang, url)
	out.affordance = entity.AffordanceSiteApproval
	out.siteSummary = summary
	out.workflow = "site_analysis"
	out.usage = &analysis.Meta
	return out
}

// generateLogo 出图：失败时步骤与草稿都保持不变
func (e *Engine) generateLogo(ctx context.Context, out *turnOutcome, lang, style string) *turnOutcome {
	prompt := logoPrompt(out.draft, style)
	imageURL, err := e.imageGen.GenerateImage(ctx, prompt)
	if err != nil {
		return e.failTurn(ctx, out, lang, err)
	}

	out.draft.PendingLogoURL = imageURL
	out.message = LogoConceptMessage(lang)
	out.affordance = entity.AffordanceLogoApproval
	out.imageURL = imageURL
	out.workflow = "brand_asset"
	return out
}

// staleControlTurn 哨兵指令与当前步骤不匹配（例如失败轮之后重按过期的控件）：
// 指令绝不转发给任何生成能力，原地重发当前步骤的操作提示。
func (e *Engine) staleControlTurn(out *turnOutcome, session *entity.OnboardingSession, lang string) *turnOutcome {
	out.message = StaleControlMessage(lang)
	out.affordance = affordanceOnEnter(session.Step)
	return out
}

func (e *Engine) failTurn(ctx context.Context, out *turnOutcome, lang string, cause error) *turnOutcome {
	logger.Error(ctx, "generative call failed, substituting retry message", cause, "step", string(out.nextStep))
	return &turnOutcome{
		sessionID:     out.sessionID,
		nextStep:      out.nextStep,
		draft:         out.draft,
		introAttempts: out.introAttempts,
		message:       FailureMessage(lang),
		signal:        out.signal,
		failed:        true,
	}
}

func (e *Engine) recentHistory(ctx context.Context, out *turnOutcome) ([]wfmodel.HistoryTurn, error) {
	window := e.cfg.Onboarding.HistoryWindow
	if window <= 0 {
		window = 20
	}
	turns, err := e.turnRepo.ListRecent(ctx, out.sessionID, window)
	if err != nil {
		return nil, err
	}
	history := make([]wfmodel.HistoryTurn, 0, len(turns))
	for _, t := range turns {
		history = append(history, wfmodel.HistoryTurn{Role: string(t.Role), Content: t.Content})
	}
	return history, nil
}

func (e *Engine) withTenantTx(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	if e.txMgr == nil || e.tenantCtx == nil {
		return fmt.Errorf("transaction dependencies not configured")
	}
	return e.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.tenantCtx.SetTenant(txCtx, tenantID); err != nil {
			return err
		}
		return fn(txCtx)
	})
}

func (e *Engine) recordUsage(ctx context.Context, tenantID, sessionID string, out *turnOutcome, durationMs int) {
	if e.usage == nil || out.usage == nil {
		return
	}
	_ = e.usage.Record(ctx, service.LLMUsageInput{
		TenantID:         tenantID,
		SessionID:        sessionID,
		Workflow:         out.workflow,
		Provider:         out.usage.Provider,
		Model:            out.usage.Model,
		PromptTokens:     out.usage.PromptTokens,
		CompletionTokens: out.usage.CompletionTokens,
		DurationMs:       durationMs,
	})
}

func (e *Engine) afterTurn(ctx context.Context, tenantID string, session *entity.OnboardingSession, out *turnOutcome, companyID *string, durationMs int) {
	status := "ok"
	if out.failed {
		status = "error"
	}
	metrics.OnboardingTurnsTotal.WithLabelValues(tenantID, string(session.Step), status).Inc()
	metrics.OnboardingTurnDuration.WithLabelValues(tenantID, string(session.Step)).Observe(float64(durationMs) / 1000)

	if out.completed && companyID != nil {
		lang := out.draft.Language
		if lang == "" {
			lang = e.cfg.Onboarding.DefaultLanguage
		}
		metrics.OnboardingCompletedTotal.WithLabelValues(tenantID, lang).Inc()
		metrics.ActiveSessions.Dec()
		if e.producer != nil {
			if _, err := e.producer.PublishOnboardingCompleted(ctx, &messaging.OnboardingCompletedMessage{
				TenantID:  tenantID,
				SessionID: session.ID,
				CompanyID: *companyID,
				Language:  lang,
			}); err != nil {
				logger.Warn(ctx, "failed to publish onboarding completed event", "error", err.Error())
			}
		}
	}
}

func (e *Engine) turnMetadata(out *turnOutcome, durationMs int) json.RawMessage {
	meta := map[string]any{
		"signal":      string(out.signal),
		"duration_ms": durationMs,
	}
	if out.failed {
		meta["degraded"] = true
	}
	if out.usage != nil {
		meta["usage"] = out.usage
	}
	if out.siteSummary != nil {
		meta["site_summary"] = out.siteSummary
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return raw
}

func (e *Engine) introRetryLimit() int {
	if e.cfg != nil && e.cfg.Onboarding.CompanyIntroRetryLimit > 0 {
		return e.cfg.Onboarding.CompanyIntroRetryLimit
	}
	return 3
}

func logoPrompt(draft *entity.CompanyDraft, style string) string {
	name := draft.CompanyName
	if name == "" {
		name = "the company"
	}
	return fmt.Sprintf("Vector logo for %s. Style: %s. Minimalist, clean background.", name, style)
}

func parseLanguage(utterance, fallback string) string {
	u := strings.ToLower(strings.TrimSpace(utterance))
	switch {
	case strings.Contains(u, "عرب") || strings.Contains(u, "arabic") || u == "ar":
		return "ar"
	case strings.Contains(u, "english") || strings.Contains(u, "انجليزي") || u == "en":
		return "en"
	}
	if fallback != "" {
		return fallback
	}
	return "en"
}

func looksLikeCompanyName(utterance string) bool {
	hasWord := false
	for _, r := range utterance {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') || r > 127 {
			hasWord = true
			break
		}
	}
	return hasWord && len([]rune(utterance)) <= 200
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
