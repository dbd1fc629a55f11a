package handler

import (
	wfmodel "nexus-marketing-api/internal/workflow/model"

	"nexus-marketing-api/internal/application/brand"
	"nexus-marketing-api/internal/config"
	"nexus-marketing-api/internal/domain/repository"
	"nexus-marketing-api/internal/interfaces/http/dto"
	"nexus-marketing-api/internal/interfaces/http/middleware"
	"nexus-marketing-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CompanyHandler 公司画像与营销方案查询处理器
type CompanyHandler struct {
	cfg *config.Config

	companyRepo repository.CompanyRepository
	planRepo    repository.MarketingPlanRepository

	regenerator *brand.Regenerator
}

func NewCompanyHandler(
	cfg *config.Config,
	companyRepo repository.CompanyRepository,
	planRepo repository.MarketingPlanRepository,
	regenerator *brand.Regenerator,
) *CompanyHandler {
	return &CompanyHandler{
		cfg:         cfg,
		companyRepo: companyRepo,
		planRepo:    planRepo,
		regenerator: regenerator,
	}
}

// ListCompanies 公司列表
// @Summary 公司列表
// @Tags Company
// @Produce json
// @Success 200 {object} dto.Response[dto.CompanyListResponse]
// @Router /v1/companies [get]
func (h *CompanyHandler) ListCompanies(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantIDFromGin(c)

	pageReq := dto.BindPage(c)
	result, err := h.companyRepo.List(ctx, tenantID, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list companies", err)
		dto.InternalError(c, "failed to list companies")
		return
	}

	companies := make([]*dto.CompanyResponse, 0, len(result.Items))
	for i := range result.Items {
		companies = append(companies, dto.ToCompanyResponse(result.Items[i]))
	}

	dto.SuccessWithPage(c, &dto.CompanyListResponse{Companies: companies}, dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total)))
}

// GetCompany 公司详情
// @Summary 公司详情
// @Tags Company
// @Produce json
// @Param cid path string true "公司ID"
// @Success 200 {object} dto.Response[dto.CompanyResponse]
// @Router /v1/companies/{cid} [get]
func (h *CompanyHandler) GetCompany(c *gin.Context) {
	ctx := c.Request.Context()
	companyID := dto.BindCompanyID(c)

	company, err := h.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		logger.Error(ctx, "failed to get company", err)
		dto.InternalError(c, "failed to get company")
		return
	}
	if company == nil {
		dto.NotFound(c, "company not found")
		return
	}

	dto.Success(c, dto.ToCompanyResponse(company))
}

// GetPlan 公司营销方案
// @Summary 公司营销方案
// @Tags Company
// @Produce json
// @Param cid path string true "公司ID"
// @Success 200 {object} dto.Response[dto.MarketingPlanResponse]
// @Router /v1/companies/{cid}/plan [get]
func (h *CompanyHandler) GetPlan(c *gin.Context) {
	ctx := c.Request.Context()
	companyID := dto.BindCompanyID(c)

	plan, err := h.planRepo.GetByCompanyID(ctx, companyID)
	if err != nil {
		logger.Error(ctx, "failed to get marketing plan", err)
		dto.InternalError(c, "failed to get plan")
		return
	}
	if plan == nil {
		dto.NotFound(c, "plan not found")
		return
	}

	dto.Success(c, dto.ToMarketingPlanResponse(plan))
}

// RegenerateBrandAssets 品牌资产批量再生成
// @Summary 品牌资产再生成
// @Tags Company
// @Accept json
// @Produce json
// @Param cid path string true "公司ID"
// @Param body body dto.RegenerateBrandAssetsRequest false "再生成请求"
// @Success 200 {object} dto.Response[dto.RegenerateBrandAssetsResponse]
// @Router /v1/companies/{cid}/brand-assets/regenerate [post]
func (h *CompanyHandler) RegenerateBrandAssets(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantIDFromGin(c)
	companyID := dto.BindCompanyID(c)

	var req dto.RegenerateBrandAssetsRequest
	_ = c.ShouldBindJSON(&req) // 允许空 body

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	kinds := make([]wfmodel.BrandAssetKind, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		switch wfmodel.BrandAssetKind(k) {
		case wfmodel.BrandAssetColors, wfmodel.BrandAssetTypography, wfmodel.BrandAssetVoice:
			kinds = append(kinds, wfmodel.BrandAssetKind(k))
		default:
			dto.BadRequest(c, "unknown brand asset kind: "+k)
			return
		}
	}

	result, err := h.regenerator.Regenerate(ctx, tenantID, companyID, &brand.RegenerateInput{
		Provider: provider,
		Model:    model,
		Kinds:    kinds,
		Logo:     req.Logo,
	})
	if err != nil {
		logger.Error(ctx, "failed to regenerate brand assets", err, "company_id", companyID)
		respondError(c, err)
		return
	}

	dto.Success(c, dto.ToRegenerateBrandAssetsResponse(result))
}
