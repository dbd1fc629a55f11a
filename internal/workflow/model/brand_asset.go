package model

import "encoding/json"

// BrandAssetKind 品牌资产类别
type BrandAssetKind string

const (
	BrandAssetColors     BrandAssetKind = "colors"
	BrandAssetTypography BrandAssetKind = "typography"
	BrandAssetVoice      BrandAssetKind = "voice"
)

// BrandAssetInput 品牌资产生成工作流输入
type BrandAssetInput struct {
	Kind     BrandAssetKind
	Profile  json.RawMessage
	Language string

	Provider string
	Model    string

	MaxTokens *int
}

// BrandAssetOutput 品牌资产生成结果。
// Colors 仅在 Kind 为 colors 时填充，其余类别使用 Text。
type BrandAssetOutput struct {
	Colors []string `json:"colors,omitempty"`
	Text   string   `json:"text,omitempty"`

	Meta LLMUsageMeta `json:"-"`
}
