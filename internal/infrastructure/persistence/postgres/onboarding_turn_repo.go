// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"nexus-marketing-api/internal/domain/entity"
	"nexus-marketing-api/internal/domain/repository"
)

type OnboardingTurnRepository struct {
	client *Client
}

func NewOnboardingTurnRepository(client *Client) *OnboardingTurnRepository {
	return &OnboardingTurnRepository{client: client}
}

func (r *OnboardingTurnRepository) Create(ctx context.Context, turn *entity.OnboardingTurn) error {
	ctx, span := tracer.Start(ctx, "postgres.OnboardingTurnRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(turn).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create onboarding turn: %w", err)
	}
	return nil
}

func (r *OnboardingTurnRepository) ListBySession(ctx context.Context, sessionID string, pagination repository.Pagination) (*repository.PagedResult[*entity.OnboardingTurn], error) {
	ctx, span := tracer.Start(ctx, "postgres.OnboardingTurnRepository.ListBySession")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.OnboardingTurn{}).Where("session_id = ?", sessionID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count onboarding turns: %w", err)
	}

	var turns []*entity.OnboardingTurn
	if err := query.Order("created_at ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&turns).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list onboarding turns: %w", err)
	}

	return repository.NewPagedResult(turns, total, pagination), nil
}

// ListRecent 返回最近 limit 条消息，按时间升序排列
func (r *OnboardingTurnRepository) ListRecent(ctx context.Context, sessionID string, limit int) ([]*entity.OnboardingTurn, error) {
	ctx, span := tracer.Start(ctx, "postgres.OnboardingTurnRepository.ListRecent")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}

	db := getDB(ctx, r.client.db)
	var turns []*entity.OnboardingTurn
	if err := db.Model(&entity.OnboardingTurn{}).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&turns).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list recent onboarding turns: %w", err)
	}

	// 倒序查询后翻转为时间升序
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
