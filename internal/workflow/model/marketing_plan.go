package model

import "encoding/json"

// PlanGenerateInput 营销方案生成工作流输入
type PlanGenerateInput struct {
	Profile  json.RawMessage
	Language string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// PlanPost 方案中的帖子
type PlanPost struct {
	Platform string `json:"platform"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	Date     string `json:"date"`
}

// PlanAdSet 方案中的广告组
type PlanAdSet struct {
	TargetAudience string `json:"target_audience"`
	Copy           string `json:"copy"`
	CreativeURL    string `json:"creative_url,omitempty"`
}

// PlanAd 方案中的广告投放
type PlanAd struct {
	Name      string      `json:"name"`
	Platform  string      `json:"platform"`
	Objective string      `json:"objective"`
	Budget    float64     `json:"budget"`
	AdSets    []PlanAdSet `json:"ad_sets"`
}

// PlanGenerateOutput 营销方案生成结果
type PlanGenerateOutput struct {
	StrategySummary string     `json:"strategy_summary"`
	WeeklyThemes    []string   `json:"weekly_themes"`
	Posts           []PlanPost `json:"posts"`
	Ads             []PlanAd   `json:"ads"`

	Meta LLMUsageMeta `json:"-"`
}
