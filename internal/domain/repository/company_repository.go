// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"nexus-marketing-api/internal/domain/entity"
)

// CompanyRepository 公司仓储接口
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	GetBySessionID(ctx context.Context, sessionID string) (*entity.Company, error)
	Update(ctx context.Context, company *entity.Company) error
	List(ctx context.Context, tenantID string, pagination Pagination) (*PagedResult[*entity.Company], error)
	CountByTenant(ctx context.Context, tenantID string) (int64, error)
}
