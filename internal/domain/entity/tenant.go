// Package entity 定义领域实体
package entity

import (
	"time"
)

// TenantStatus 租户状态
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusDeleted   TenantStatus = "deleted"
)

// TenantQuota 租户配额
type TenantQuota struct {
	MaxCompanies      int   `json:"max_companies"`
	MaxSessionsPerDay int   `json:"max_sessions_per_day"`
	MaxTokensPerDay   int64 `json:"max_tokens_per_day"`
}

// TenantSettings 租户设置
type TenantSettings struct {
	DefaultModel    string `json:"default_model,omitempty"`
	DefaultLanguage string `json:"default_language,omitempty"`
}

// Tenant 租户实体
type Tenant struct {
	ID        string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string          `json:"name" gorm:"type:varchar(255);not null"`
	Slug      string          `json:"slug" gorm:"type:varchar(128);uniqueIndex;not null"`
	Settings  *TenantSettings `json:"settings,omitempty" gorm:"type:jsonb;serializer:json"`
	Quota     *TenantQuota    `json:"quota,omitempty" gorm:"type:jsonb;serializer:json"`
	Status    TenantStatus    `json:"status" gorm:"type:varchar(32);not null;default:'active'"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// NewTenant 创建新租户
func NewTenant(name, slug string) *Tenant {
	now := time.Now()
	return &Tenant{
		Name:   name,
		Slug:   slug,
		Status: TenantStatusActive,
		Quota: &TenantQuota{
			MaxCompanies:      100,
			MaxSessionsPerDay: 500,
			MaxTokensPerDay:   1000000,
		},
		Settings:  &TenantSettings{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive 检查租户是否活跃
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}
