// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"nexus-marketing-api/internal/application/brand"
	"nexus-marketing-api/internal/application/plan"
	"nexus-marketing-api/internal/domain/entity"
)

// CompanyResponse 公司画像响应
type CompanyResponse struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Industry       string              `json:"industry,omitempty"`
	Description    string              `json:"description,omitempty"`
	Website        string              `json:"website,omitempty"`
	TargetAudience string              `json:"target_audience,omitempty"`
	Language       string              `json:"language"`
	Goals          []string            `json:"goals,omitempty"`
	BrandAssets    *entity.BrandAssets `json:"brand_assets,omitempty"`
	SessionID      *string             `json:"session_id,omitempty"`
	CreatedAt      string              `json:"created_at"`
	UpdatedAt      string              `json:"updated_at"`
}

func ToCompanyResponse(c *entity.Company) *CompanyResponse {
	if c == nil {
		return nil
	}
	assets, _ := c.Brand()
	return &CompanyResponse{
		ID:             c.ID,
		Name:           c.Name,
		Industry:       c.Industry,
		Description:    c.Description,
		Website:        c.Website,
		TargetAudience: c.TargetAudience,
		Language:       c.Language,
		Goals:          c.Goals,
		BrandAssets:    assets,
		SessionID:      c.SessionID,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
	}
}

// CompanyListResponse 公司列表响应
type CompanyListResponse struct {
	Companies []*CompanyResponse `json:"companies"`
}

// PlannedPostResponse 方案内帖子
type PlannedPostResponse struct {
	ID            string `json:"id"`
	Platform      string `json:"platform"`
	Type          string `json:"type"`
	Content       string `json:"content"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
}

// AdSetResponse 广告组
type AdSetResponse struct {
	TargetAudience string `json:"target_audience"`
	Copy           string `json:"copy"`
	CreativeURL    string `json:"creative_url,omitempty"`
}

// AdCampaignResponse 广告投放
type AdCampaignResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Platform  string           `json:"platform"`
	Objective string           `json:"objective"`
	Budget    float64          `json:"budget"`
	AdSets    []*AdSetResponse `json:"ad_sets"`
}

// MarketingPlanResponse 营销方案响应
type MarketingPlanResponse struct {
	ID              string                 `json:"id"`
	CompanyID       string                 `json:"company_id"`
	StrategySummary string                 `json:"strategy_summary"`
	WeeklyThemes    []string               `json:"weekly_themes"`
	Posts           []*PlannedPostResponse `json:"posts"`
	Ads             []*AdCampaignResponse  `json:"ads"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at"`
}

func ToMarketingPlanResponse(p *entity.MarketingPlan) *MarketingPlanResponse {
	if p == nil {
		return nil
	}
	resp := &MarketingPlanResponse{
		ID:              p.ID,
		CompanyID:       p.CompanyID,
		StrategySummary: p.StrategySummary,
		WeeklyThemes:    p.WeeklyThemes,
		Posts:           make([]*PlannedPostResponse, 0, len(p.Posts)),
		Ads:             make([]*AdCampaignResponse, 0, len(p.Ads)),
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.Format(time.RFC3339),
	}
	for i := range p.Posts {
		post := p.Posts[i]
		resp.Posts = append(resp.Posts, &PlannedPostResponse{
			ID:            post.ID,
			Platform:      post.Platform,
			Type:          post.Type,
			Content:       post.Content,
			ScheduledDate: post.ScheduledDate,
		})
	}
	for i := range p.Ads {
		ad := p.Ads[i]
		adResp := &AdCampaignResponse{
			ID:        ad.ID,
			Name:      ad.Name,
			Platform:  ad.Platform,
			Objective: ad.Objective,
			Budget:    ad.Budget,
			AdSets:    make([]*AdSetResponse, 0, len(ad.AdSets)),
		}
		for _, s := range ad.AdSets {
			adResp.AdSets = append(adResp.AdSets, &AdSetResponse{
				TargetAudience: s.TargetAudience,
				Copy:           s.Copy,
				CreativeURL:    s.CreativeURL,
			})
		}
		resp.Ads = append(resp.Ads, adResp)
	}
	return resp
}

// FinalizePlanRequest 交接请求，body 可为空
type FinalizePlanRequest struct {
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	Regenerate bool   `json:"regenerate,omitempty"`
}

// FinalizePlanResponse 交接响应
type FinalizePlanResponse struct {
	Company    *CompanyResponse       `json:"company"`
	Plan       *MarketingPlanResponse `json:"plan"`
	Usage      *LLMUsageResponse      `json:"usage,omitempty"`
	DurationMs int                    `json:"duration_ms"`
}

func ToFinalizePlanResponse(result *plan.FinalizeResult) *FinalizePlanResponse {
	if result == nil {
		return nil
	}
	return &FinalizePlanResponse{
		Company:    ToCompanyResponse(result.Company),
		Plan:       ToMarketingPlanResponse(result.Plan),
		Usage:      ToLLMUsageResponse(result.Usage),
		DurationMs: result.DurationMs,
	}
}

// RegenerateBrandAssetsRequest 品牌资产再生成请求
type RegenerateBrandAssetsRequest struct {
	Provider string   `json:"provider,omitempty"`
	Model    string   `json:"model,omitempty"`
	Kinds    []string `json:"kinds,omitempty"`
	Logo     bool     `json:"logo,omitempty"`
}

// RegenerateBrandAssetsResponse 品牌资产再生成响应
type RegenerateBrandAssetsResponse struct {
	Company *CompanyResponse    `json:"company"`
	Assets  *entity.BrandAssets `json:"assets"`
	Failed  []string            `json:"failed,omitempty"`
}

func ToRegenerateBrandAssetsResponse(result *brand.RegenerateResult) *RegenerateBrandAssetsResponse {
	if result == nil {
		return nil
	}
	return &RegenerateBrandAssetsResponse{
		Company: ToCompanyResponse(result.Company),
		Assets:  result.Assets,
		Failed:  result.Failed,
	}
}
