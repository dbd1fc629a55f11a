// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nexus-marketing-api/internal/domain/entity"
)

type OnboardingSessionRepository struct {
	client *Client
}

func NewOnboardingSessionRepository(client *Client) *OnboardingSessionRepository {
	return &OnboardingSessionRepository{client: client}
}

func (r *OnboardingSessionRepository) Create(ctx context.Context, session *entity.OnboardingSession) error {
	ctx, span := tracer.Start(ctx, "postgres.OnboardingSessionRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(session).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create onboarding session: %w", err)
	}
	return nil
}

func (r *OnboardingSessionRepository) GetByID(ctx context.Context, id string) (*entity.OnboardingSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.OnboardingSessionRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var session entity.OnboardingSession
	if err := db.First(&session, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get onboarding session: %w", err)
	}
	return &session, nil
}

func (r *OnboardingSessionRepository) GetByIDForUpdate(ctx context.Context, id string) (*entity.OnboardingSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.OnboardingSessionRepository.GetByIDForUpdate")
	defer span.End()

	db := getDB(ctx, r.client.db).Clauses(clause.Locking{Strength: "UPDATE"})
	var session entity.OnboardingSession
	if err := db.First(&session, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get onboarding session for update: %w", err)
	}
	return &session, nil
}

func (r *OnboardingSessionRepository) Update(ctx context.Context, session *entity.OnboardingSession) error {
	ctx, span := tracer.Start(ctx, "postgres.OnboardingSessionRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(session).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update onboarding session: %w", err)
	}
	return nil
}

func (r *OnboardingSessionRepository) CountCreatedSince(ctx context.Context, tenantID string, since time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.OnboardingSessionRepository.CountCreatedSince")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.OnboardingSession{}).
		Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count onboarding sessions: %w", err)
	}
	return count, nil
}
