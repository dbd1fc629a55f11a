// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"nexus-marketing-api/internal/domain/entity"
)

// MarketingPlanRepository 营销方案仓储接口。
// Upsert 以公司为粒度整体替换：旧方案的帖子与广告先删后建。
type MarketingPlanRepository interface {
	Upsert(ctx context.Context, plan *entity.MarketingPlan) error
	GetByCompanyID(ctx context.Context, companyID string) (*entity.MarketingPlan, error)
	DeleteByCompanyID(ctx context.Context, companyID string) error
}
