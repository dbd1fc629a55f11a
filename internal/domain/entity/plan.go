// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/lib/pq"
)

// MarketingPlan 营销方案实体
type MarketingPlan struct {
	ID              string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID        string         `json:"tenant_id" gorm:"type:uuid;index;not null"`
	CompanyID       string         `json:"company_id" gorm:"type:uuid;uniqueIndex;not null"`
	StrategySummary string         `json:"strategy_summary" gorm:"type:text;not null"`
	WeeklyThemes    pq.StringArray `json:"weekly_themes" gorm:"type:text[]"`
	Posts           []PlannedPost  `json:"posts" gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE"`
	Ads             []AdCampaign   `json:"ads" gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

func (MarketingPlan) TableName() string {
	return "marketing_plans"
}

// PlannedPost 计划内的社媒帖子
type PlannedPost struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PlanID        string    `json:"plan_id" gorm:"type:uuid;index;not null"`
	Platform      string    `json:"platform" gorm:"type:varchar(32);not null"`
	Type          string    `json:"type" gorm:"type:varchar(32);not null"`
	Content       string    `json:"content" gorm:"type:text;not null"`
	ScheduledDate string    `json:"scheduled_date" gorm:"type:varchar(32)"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (PlannedPost) TableName() string {
	return "planned_posts"
}

// AdSet 广告组
type AdSet struct {
	TargetAudience string `json:"target_audience"`
	Copy           string `json:"copy"`
	CreativeURL    string `json:"creative_url,omitempty"`
}

// AdCampaign 广告投放计划
type AdCampaign struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PlanID    string    `json:"plan_id" gorm:"type:uuid;index;not null"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	Platform  string    `json:"platform" gorm:"type:varchar(32);not null"`
	Objective string    `json:"objective" gorm:"type:varchar(64);not null"`
	Budget    float64   `json:"budget" gorm:"not null;default:0"`
	AdSets    []AdSet   `json:"ad_sets" gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (AdCampaign) TableName() string {
	return "ad_campaigns"
}
