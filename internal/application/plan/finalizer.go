package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nexus-marketing-api/internal/domain/entity"
	"nexus-marketing-api/internal/domain/repository"
	"nexus-marketing-api/internal/domain/service"
	"nexus-marketing-api/internal/infrastructure/messaging"
	redisinfra "nexus-marketing-api/internal/infrastructure/persistence/redis"
	wfmodel "nexus-marketing-api/internal/workflow/model"
	apperrors "nexus-marketing-api/pkg/errors"
	"nexus-marketing-api/pkg/logger"
	"nexus-marketing-api/pkg/metrics"
)

// FinalizeInput 交接请求
type FinalizeInput struct {
	Provider   string
	Model      string
	Regenerate bool
}

// FinalizeResult 交接结果
type FinalizeResult struct {
	Company    *entity.Company
	Plan       *entity.MarketingPlan
	Usage      *wfmodel.LLMUsageMeta
	DurationMs int
}

// Finalizer 把完成信息收集的会话草稿交接为持久化的营销方案。
// 非幂等：同一公司重复交接会整体替换旧方案，因此二次调用必须显式带 regenerate。
type Finalizer struct {
	txMgr     repository.Transactor
	tenantCtx repository.TenantContextManager

	sessionRepo repository.OnboardingSessionRepository
	companyRepo repository.CompanyRepository
	planRepo    repository.MarketingPlanRepository

	generator *Generator
	usage     service.LLMUsageRecorder
	producer  *messaging.Producer
	cache     *redisinfra.Cache
}

func NewFinalizer(
	txMgr repository.Transactor,
	tenantCtx repository.TenantContextManager,
	sessionRepo repository.OnboardingSessionRepository,
	companyRepo repository.CompanyRepository,
	planRepo repository.MarketingPlanRepository,
	generator *Generator,
	usage service.LLMUsageRecorder,
	producer *messaging.Producer,
	cache *redisinfra.Cache,
) *Finalizer {
	return &Finalizer{
		txMgr:       txMgr,
		tenantCtx:   tenantCtx,
		sessionRepo: sessionRepo,
		companyRepo: companyRepo,
		planRepo:    planRepo,
		generator:   generator,
		usage:       usage,
		producer:    producer,
		cache:       cache,
	}
}

// Finalize 执行一次完整交接：
//
// 1. 前置事务：锁定会话，校验画像完备性（不完整则在任何外部调用之前失败），
// 必要时把草稿固化为公司画像，并检查既有方案的 regenerate 语义。
// 2. 事务外：一次结构化生成调用，形状不合法直接失败，草稿保留可重试。
// 3. 后置事务：整体 Upsert 方案（保留方案 ID），事务提交后失效缓存并发布事件。
func (f *Finalizer) Finalize(ctx context.Context, tenantID, sessionID string, in *FinalizeInput) (*FinalizeResult, error) {
	if in == nil {
		in = &FinalizeInput{}
	}

	var session *entity.OnboardingSession
	var company *entity.Company
	var draft *entity.CompanyDraft

	if err := f.withTenantTx(ctx, tenantID, func(txCtx context.Context) error {
		var err error
		session, err = f.sessionRepo.GetByIDForUpdate(txCtx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return apperrors.ErrSessionNotFound
		}

		draft, err = session.CompanyDraft()
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternalError, "corrupted session draft")
		}
		if missing := draft.MissingForPlan(); len(missing) > 0 {
			return apperrors.New(apperrors.CodeIncompleteProfile, "company profile incomplete").WithDetail("missing: "+strings.Join(missing, ", "))
		}

		if session.CreatedCompanyID != nil {
			company, err = f.companyRepo.GetByID(txCtx, *session.CreatedCompanyID)
			if err != nil {
				return err
			}
			if company == nil {
				return apperrors.ErrCompanyNotFound
			}
		} else {
			company, err = entity.NewCompanyFromDraft(tenantID, sessionID, draft)
			if err != nil {
				return err
			}
			if err := f.companyRepo.Create(txCtx, company); err != nil {
				return err
			}
			session.Status = entity.OnboardingStatusCompleted
			session.CreatedCompanyID = &company.ID
			if err := f.sessionRepo.Update(txCtx, session); err != nil {
				return err
			}
		}

		existing, err := f.planRepo.GetByCompanyID(txCtx, company.ID)
		if err != nil {
			return err
		}
		if existing != nil && !in.Regenerate {
			return apperrors.New(apperrors.CodeConflict, "a plan already exists for this company, set regenerate to replace it")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	profile, err := json.Marshal(draft)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to encode profile")
	}
	lang := draft.Language
	if lang == "" {
		lang = company.Language
	}

	start := time.Now()
	out, err := f.generator.Generate(ctx, &wfmodel.PlanGenerateInput{
		Profile:  profile,
		Language: lang,
		Provider: in.Provider,
		Model:    in.Model,
	})
	duration := time.Since(start)
	durationMs := int(duration.Milliseconds())

	if err != nil {
		metrics.PlanGenerationTotal.WithLabelValues(tenantID, "error").Inc()
		return nil, err
	}
	metrics.PlanGenerationTotal.WithLabelValues(tenantID, "ok").Inc()
	metrics.PlanGenerationDuration.WithLabelValues(tenantID).Observe(duration.Seconds())

	f.recordUsage(ctx, tenantID, sessionID, out, durationMs)

	plan := buildPlanEntity(tenantID, company.ID, out)

	if err := f.withTenantTx(ctx, tenantID, func(txCtx context.Context) error {
		return f.planRepo.Upsert(txCtx, plan)
	}); err != nil {
		logger.Error(ctx, "failed to persist marketing plan", err, "company_id", company.ID)
		return nil, err
	}

	f.afterFinalize(ctx, tenantID, company.ID, plan)

	return &FinalizeResult{
		Company:    company,
		Plan:       plan,
		Usage:      &out.Meta,
		DurationMs: durationMs,
	}, nil
}

// buildPlanEntity 将生成结果映射为实体，帖子与广告条数一一对应，不做静默裁剪
func buildPlanEntity(tenantID, companyID string, out *wfmodel.PlanGenerateOutput) *entity.MarketingPlan {
	plan := &entity.MarketingPlan{
		TenantID:        tenantID,
		CompanyID:       companyID,
		StrategySummary: out.StrategySummary,
		WeeklyThemes:    out.WeeklyThemes,
	}

	plan.Posts = make([]entity.PlannedPost, 0, len(out.Posts))
	for _, p := range out.Posts {
		plan.Posts = append(plan.Posts, entity.PlannedPost{
			Platform:      p.Platform,
			Type:          p.Type,
			Content:       p.Content,
			ScheduledDate: p.Date,
		})
	}

	plan.Ads = make([]entity.AdCampaign, 0, len(out.Ads))
	for _, a := range out.Ads {
		adSets := make([]entity.AdSet, 0, len(a.AdSets))
		for _, s := range a.AdSets {
			adSets = append(adSets, entity.AdSet{
				TargetAudience: s.TargetAudience,
				Copy:           s.Copy,
				CreativeURL:    s.CreativeURL,
			})
		}
		plan.Ads = append(plan.Ads, entity.AdCampaign{
			Name:      a.Name,
			Platform:  a.Platform,
			Objective: a.Objective,
			Budget:    a.Budget,
			AdSets:    adSets,
		})
	}
	return plan
}

func (f *Finalizer) recordUsage(ctx context.Context, tenantID, sessionID string, out *wfmodel.PlanGenerateOutput, durationMs int) {
	if f.usage == nil {
		return
	}
	_ = f.usage.Record(ctx, service.LLMUsageInput{
		TenantID:         tenantID,
		SessionID:        sessionID,
		Workflow:         "plan_generation",
		Provider:         out.Meta.Provider,
		Model:            out.Meta.Model,
		PromptTokens:     out.Meta.PromptTokens,
		CompletionTokens: out.Meta.CompletionTokens,
		DurationMs:       durationMs,
	})
}

func (f *Finalizer) afterFinalize(ctx context.Context, tenantID, companyID string, plan *entity.MarketingPlan) {
	if f.cache != nil {
		if err := f.cache.InvalidatePlan(ctx, tenantID, companyID); err != nil {
			logger.Warn(ctx, "failed to invalidate plan cache", "error", err.Error())
		}
	}
	if f.producer != nil {
		if _, err := f.producer.PublishPlanGenerated(ctx, &messaging.PlanGeneratedMessage{
			TenantID:  tenantID,
			CompanyID: companyID,
			PlanID:    plan.ID,
			PostCount: len(plan.Posts),
			AdCount:   len(plan.Ads),
		}); err != nil {
			logger.Warn(ctx, "failed to publish plan generated event", "error", err.Error())
		}
	}
}

func (f *Finalizer) withTenantTx(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	if f.txMgr == nil || f.tenantCtx == nil {
		return fmt.Errorf("transaction dependencies not configured")
	}
	return f.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := f.tenantCtx.SetTenant(txCtx, tenantID); err != nil {
			return err
		}
		return fn(txCtx)
	})
}
