// Package brand 实现品牌资产的批量再生成：配色、字体语调文案与 Logo 并发生成，
// 部分失败不丢弃已成功的结果。
package brand

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"nexus-marketing-api/internal/domain/entity"
	"nexus-marketing-api/internal/domain/repository"
	"nexus-marketing-api/internal/domain/service"
	"nexus-marketing-api/internal/infrastructure/messaging"
	redisinfra "nexus-marketing-api/internal/infrastructure/persistence/redis"
	workflowchain "nexus-marketing-api/internal/workflow/chain"
	wfmodel "nexus-marketing-api/internal/workflow/model"
	"nexus-marketing-api/internal/workflow/node"
	workflowport "nexus-marketing-api/internal/workflow/port"
	apperrors "nexus-marketing-api/pkg/errors"
	"nexus-marketing-api/pkg/logger"
)

// RegenerateInput 批量再生成请求
type RegenerateInput struct {
	Provider string
	Model    string

	// Kinds 为空时生成全部类别（含 Logo）
	Kinds []wfmodel.BrandAssetKind
	Logo  bool
}

// RegenerateResult 批量再生成结果。Failed 列出未成功的类别。
type RegenerateResult struct {
	Company *entity.Company
	Assets  *entity.BrandAssets
	Failed  []string
}

// Regenerator 品牌资产再生成器
type Regenerator struct {
	txMgr     repository.Transactor
	tenantCtx repository.TenantContextManager

	companyRepo repository.CompanyRepository

	chain    *workflowchain.BrandAssetChain
	imageGen workflowport.ImageGenerator

	usage    service.LLMUsageRecorder
	producer *messaging.Producer
	cache    *redisinfra.Cache
}

func NewRegenerator(
	txMgr repository.Transactor,
	tenantCtx repository.TenantContextManager,
	companyRepo repository.CompanyRepository,
	factory workflowport.ChatModelFactory,
	imageGen workflowport.ImageGenerator,
	usage service.LLMUsageRecorder,
	producer *messaging.Producer,
	cache *redisinfra.Cache,
) *Regenerator {
	return &Regenerator{
		txMgr:       txMgr,
		tenantCtx:   tenantCtx,
		companyRepo: companyRepo,
		chain:       workflowchain.NewBrandAssetChain(factory),
		imageGen:    imageGen,
		usage:       usage,
		producer:    producer,
		cache:       cache,
	}
}

// Regenerate 并发生成请求的资产类别并合并结果。
// 每个类别独立成败：只要有一个成功就落库；全部失败才返回错误。
func (r *Regenerator) Regenerate(ctx context.Context, tenantID, companyID string, in *RegenerateInput) (*RegenerateResult, error) {
	if in == nil {
		in = &RegenerateInput{}
	}
	kinds := in.Kinds
	wantLogo := in.Logo
	if len(kinds) == 0 {
		kinds = []wfmodel.BrandAssetKind{wfmodel.BrandAssetColors, wfmodel.BrandAssetTypography, wfmodel.BrandAssetVoice}
		wantLogo = true
	}

	var company *entity.Company
	if err := r.withTenantTx(ctx, tenantID, func(txCtx context.Context) error {
		var err error
		company, err = r.companyRepo.GetByID(txCtx, companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return apperrors.ErrCompanyNotFound
		}
		return nil
	}); err != nil {
		return nil, err
	}

	profile, err := json.Marshal(company)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to encode company profile")
	}

	assets, err := company.Brand()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "corrupted brand assets")
	}

	var mu sync.Mutex
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, kind := range kinds {
		g.Go(func() error {
			out, genErr := r.generateAsset(gctx, tenantID, company, profile, kind, in)
			mu.Lock()
			defer mu.Unlock()
			if genErr != nil {
				logger.Warn(gctx, "brand asset generation failed", "kind", string(kind), "error", genErr.Error())
				failed = append(failed, string(kind))
				return nil
			}
			switch kind {
			case wfmodel.BrandAssetColors:
				assets.Colors = out.Colors
			case wfmodel.BrandAssetTypography:
				assets.Typography = out.Text
			case wfmodel.BrandAssetVoice:
				assets.Voice = out.Text
			}
			return nil
		})
	}

	if wantLogo && r.imageGen != nil {
		g.Go(func() error {
			prompt := fmt.Sprintf("Vector logo for %s. Style: %s. Minimalist, clean background.", company.Name, company.Industry)
			url, genErr := r.imageGen.GenerateImage(gctx, prompt)
			mu.Lock()
			defer mu.Unlock()
			if genErr != nil {
				logger.Warn(gctx, "logo regeneration failed", "error", genErr.Error())
				failed = append(failed, "logo")
				return nil
			}
			assets.LogoURL = url
			return nil
		})
	}

	_ = g.Wait()

	total := len(kinds)
	if wantLogo {
		total++
	}
	if len(failed) == total {
		return nil, apperrors.New(apperrors.CodeGenerationFailed, "all brand asset generations failed")
	}

	if err := company.SetBrand(assets); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to encode brand assets")
	}

	if err := r.withTenantTx(ctx, tenantID, func(txCtx context.Context) error {
		return r.companyRepo.Update(txCtx, company)
	}); err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.InvalidateCompany(ctx, tenantID, companyID); err != nil {
			logger.Warn(ctx, "failed to invalidate company cache", "error", err.Error())
		}
	}

	if r.producer != nil {
		if _, err := r.producer.PublishAuditLog(ctx, &messaging.AuditLogMessage{
			TenantID:     tenantID,
			Action:       "brand_assets.regenerate",
			ResourceType: "company",
			ResourceID:   companyID,
			Metadata:     map[string]interface{}{"failed": failed},
		}); err != nil {
			logger.Warn(ctx, "failed to publish audit log", "error", err.Error())
		}
	}

	return &RegenerateResult{Company: company, Assets: assets, Failed: failed}, nil
}

// brandAssetEnvelope 解析 LLM 返回 JSON 的信封
type brandAssetEnvelope struct {
	Colors []string `json:"colors"`
	Text   string   `json:"text"`
}

func (r *Regenerator) generateAsset(ctx context.Context, tenantID string, company *entity.Company, profile json.RawMessage, kind wfmodel.BrandAssetKind, in *RegenerateInput) (*wfmodel.BrandAssetOutput, error) {
	start := time.Now()
	outMsg, err := r.chain.Invoke(ctx, &wfmodel.BrandAssetInput{
		Kind:     kind,
		Profile:  profile,
		Language: company.Language,
		Provider: in.Provider,
		Model:    in.Model,
	})
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}

	raw := node.ExtractJSONObject(outMsg.Content)
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("no json object in brand asset response")
	}
	var env brandAssetEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("malformed brand asset output: %w", err)
	}
	if kind == wfmodel.BrandAssetColors && len(env.Colors) == 0 {
		return nil, fmt.Errorf("brand asset output missing colors")
	}
	if kind != wfmodel.BrandAssetColors && strings.TrimSpace(env.Text) == "" {
		return nil, fmt.Errorf("brand asset output missing text")
	}

	if r.usage != nil && outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		_ = r.usage.Record(ctx, service.LLMUsageInput{
			TenantID:         tenantID,
			Workflow:         "brand_asset",
			Provider:         in.Provider,
			Model:            in.Model,
			PromptTokens:     outMsg.ResponseMeta.Usage.PromptTokens,
			CompletionTokens: outMsg.ResponseMeta.Usage.CompletionTokens,
			DurationMs:       int(time.Since(start).Milliseconds()),
		})
	}

	return &wfmodel.BrandAssetOutput{Colors: env.Colors, Text: env.Text}, nil
}

func (r *Regenerator) withTenantTx(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	if r.txMgr == nil || r.tenantCtx == nil {
		return fmt.Errorf("transaction dependencies not configured")
	}
	return r.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := r.tenantCtx.SetTenant(txCtx, tenantID); err != nil {
			return err
		}
		return fn(txCtx)
	})
}
