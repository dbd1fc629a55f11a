// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"nexus-marketing-api/internal/domain/entity"
	"nexus-marketing-api/internal/domain/repository"
)

// CompanyRepository 公司仓储实现
type CompanyRepository struct {
	client *Client
}

// NewCompanyRepository 创建公司仓储
func NewCompanyRepository(client *Client) *CompanyRepository {
	return &CompanyRepository{client: client}
}

func (r *CompanyRepository) Create(ctx context.Context, company *entity.Company) error {
	ctx, span := tracer.Start(ctx, "postgres.CompanyRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(company).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	ctx, span := tracer.Start(ctx, "postgres.CompanyRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var company entity.Company
	if err := db.First(&company, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &company, nil
}

func (r *CompanyRepository) GetBySessionID(ctx context.Context, sessionID string) (*entity.Company, error) {
	ctx, span := tracer.Start(ctx, "postgres.CompanyRepository.GetBySessionID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var company entity.Company
	if err := db.First(&company, "session_id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get company by session: %w", err)
	}
	return &company, nil
}

func (r *CompanyRepository) Update(ctx context.Context, company *entity.Company) error {
	ctx, span := tracer.Start(ctx, "postgres.CompanyRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(company).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update company: %w", err)
	}
	return nil
}

func (r *CompanyRepository) List(ctx context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Company], error) {
	ctx, span := tracer.Start(ctx, "postgres.CompanyRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Company{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count companies: %w", err)
	}

	var companies []*entity.Company
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&companies).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	return repository.NewPagedResult(companies, total, pagination), nil
}

func (r *CompanyRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.CompanyRepository.CountByTenant")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.Company{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count companies: %w", err)
	}
	return count, nil
}
