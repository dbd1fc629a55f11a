// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"nexus-marketing-api/internal/domain/entity"
)

type OnboardingSessionRepository interface {
	Create(ctx context.Context, session *entity.OnboardingSession) error
	GetByID(ctx context.Context, id string) (*entity.OnboardingSession, error)
	GetByIDForUpdate(ctx context.Context, id string) (*entity.OnboardingSession, error)
	Update(ctx context.Context, session *entity.OnboardingSession) error
	CountCreatedSince(ctx context.Context, tenantID string, since time.Time) (int64, error)
}

type OnboardingTurnRepository interface {
	Create(ctx context.Context, turn *entity.OnboardingTurn) error
	ListBySession(ctx context.Context, sessionID string, pagination Pagination) (*PagedResult[*entity.OnboardingTurn], error)
	ListRecent(ctx context.Context, sessionID string, limit int) ([]*entity.OnboardingTurn, error)
}
