// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/lib/pq"
)

// BrandAssets 公司品牌资产
type BrandAssets struct {
	LogoURL     string   `json:"logo_url,omitempty"`
	Colors      []string `json:"colors,omitempty"`
	Typography  string   `json:"typography,omitempty"`
	Voice       string   `json:"voice,omitempty"`
	Assets      []string `json:"assets,omitempty"`
	DesignPrefs string   `json:"design_prefs,omitempty"`
}

// Company 公司画像实体，由引导会话确认后落库
type Company struct {
	ID             string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID       string          `json:"tenant_id" gorm:"type:uuid;index;not null"`
	Name           string          `json:"name" gorm:"type:varchar(255);not null"`
	Industry       string          `json:"industry" gorm:"type:varchar(128)"`
	Description    string          `json:"description" gorm:"type:text"`
	Website        string          `json:"website" gorm:"type:varchar(512)"`
	TargetAudience string          `json:"target_audience" gorm:"type:text"`
	Language       string          `json:"language" gorm:"type:varchar(8);not null;default:'en'"`
	Goals          pq.StringArray  `json:"goals" gorm:"type:text[]"`
	BrandAssets    json.RawMessage `json:"brand_assets,omitempty" gorm:"type:jsonb"`
	SessionID      *string         `json:"session_id,omitempty" gorm:"type:uuid"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Company) TableName() string {
	return "companies"
}

// NewCompanyFromDraft 由确认后的草稿生成公司实体
func NewCompanyFromDraft(tenantID, sessionID string, draft *CompanyDraft) (*Company, error) {
	assets := BrandAssets{
		LogoURL:     draft.LogoRef,
		Colors:      draft.BrandColors,
		Typography:  strings.Join(draft.BrandFonts, ", "),
		Assets:      draft.Assets,
		DesignPrefs: draft.DesignPrefs,
	}
	raw, err := json.Marshal(assets)
	if err != nil {
		return nil, err
	}
	lang := draft.Language
	if lang == "" {
		lang = "en"
	}
	now := time.Now()
	sid := sessionID
	return &Company{
		TenantID:       tenantID,
		Name:           draft.CompanyName,
		Industry:       draft.Industry,
		Description:    draft.Description,
		Website:        draft.Website,
		TargetAudience: draft.TargetAudience,
		Language:       lang,
		Goals:          pq.StringArray(draft.Goals),
		BrandAssets:    raw,
		SessionID:      &sid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Brand 反序列化品牌资产
func (c *Company) Brand() (*BrandAssets, error) {
	assets := &BrandAssets{}
	if len(c.BrandAssets) == 0 {
		return assets, nil
	}
	if err := json.Unmarshal(c.BrandAssets, assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// SetBrand 序列化并写回品牌资产
func (c *Company) SetBrand(assets *BrandAssets) error {
	raw, err := json.Marshal(assets)
	if err != nil {
		return err
	}
	c.BrandAssets = raw
	return nil
}
