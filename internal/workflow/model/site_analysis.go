package model

// SiteAnalysisInput 网站分析工作流输入
type SiteAnalysisInput struct {
	URL      string
	Language string

	Provider string
	Model    string

	MaxTokens *int
}

// SiteAnalysisOutput 网站分析结果
type SiteAnalysisOutput struct {
	CompanyName    string   `json:"company_name"`
	Industry       string   `json:"industry"`
	Description    string   `json:"description"`
	TargetAudience string   `json:"target_audience"`
	SuggestedGoals []string `json:"suggested_goals"`
	DetectedColors []string `json:"detected_colors"`
	DetectedFonts  []string `json:"detected_fonts"`
	Services       []string `json:"services"`

	Meta LLMUsageMeta `json:"-"`
}
