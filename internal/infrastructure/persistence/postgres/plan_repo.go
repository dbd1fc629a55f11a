// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"nexus-marketing-api/internal/domain/entity"
)

// MarketingPlanRepository 营销方案仓储实现
type MarketingPlanRepository struct {
	client *Client
}

// NewMarketingPlanRepository 创建营销方案仓储
func NewMarketingPlanRepository(client *Client) *MarketingPlanRepository {
	return &MarketingPlanRepository{client: client}
}

// Upsert 以公司为粒度整体替换方案。
// 已存在时保留方案 ID，帖子与广告先删后建，保证重新生成后内容完全一致。
func (r *MarketingPlanRepository) Upsert(ctx context.Context, plan *entity.MarketingPlan) error {
	ctx, span := tracer.Start(ctx, "postgres.MarketingPlanRepository.Upsert")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var existing entity.MarketingPlan
	err := db.First(&existing, "company_id = ?", plan.CompanyID).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		if err := db.Create(plan).Error; err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create marketing plan: %w", err)
		}
		return nil
	case err != nil:
		span.RecordError(err)
		return fmt.Errorf("failed to load existing marketing plan: %w", err)
	}

	plan.ID = existing.ID
	plan.CreatedAt = existing.CreatedAt

	if err := db.Where("plan_id = ?", existing.ID).Delete(&entity.PlannedPost{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete old planned posts: %w", err)
	}
	if err := db.Where("plan_id = ?", existing.ID).Delete(&entity.AdCampaign{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete old ad campaigns: %w", err)
	}
	for i := range plan.Posts {
		plan.Posts[i].PlanID = existing.ID
		plan.Posts[i].ID = ""
	}
	for i := range plan.Ads {
		plan.Ads[i].PlanID = existing.ID
		plan.Ads[i].ID = ""
	}

	if err := db.Session(&gorm.Session{FullSaveAssociations: true}).Save(plan).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update marketing plan: %w", err)
	}
	return nil
}

func (r *MarketingPlanRepository) GetByCompanyID(ctx context.Context, companyID string) (*entity.MarketingPlan, error) {
	ctx, span := tracer.Start(ctx, "postgres.MarketingPlanRepository.GetByCompanyID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var plan entity.MarketingPlan
	if err := db.Preload("Posts").Preload("Ads").First(&plan, "company_id = ?", companyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get marketing plan: %w", err)
	}
	return &plan, nil
}

func (r *MarketingPlanRepository) DeleteByCompanyID(ctx context.Context, companyID string) error {
	ctx, span := tracer.Start(ctx, "postgres.MarketingPlanRepository.DeleteByCompanyID")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var plan entity.MarketingPlan
	err := db.First(&plan, "company_id = ?", companyID).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load marketing plan: %w", err)
	}

	if err := db.Where("plan_id = ?", plan.ID).Delete(&entity.PlannedPost{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete planned posts: %w", err)
	}
	if err := db.Where("plan_id = ?", plan.ID).Delete(&entity.AdCampaign{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete ad campaigns: %w", err)
	}
	if err := db.Delete(&entity.MarketingPlan{}, "id = ?", plan.ID).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete marketing plan: %w", err)
	}
	return nil
}
