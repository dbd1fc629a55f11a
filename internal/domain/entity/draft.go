// Package entity 定义领域实体
package entity

// SiteSummary 网站分析结果
type SiteSummary struct {
	URL            string   `json:"url,omitempty"`
	CompanyName    string   `json:"company_name,omitempty"`
	Industry       string   `json:"industry,omitempty"`
	Description    string   `json:"description,omitempty"`
	TargetAudience string   `json:"target_audience,omitempty"`
	SuggestedGoals []string `json:"suggested_goals,omitempty"`
	DetectedColors []string `json:"detected_colors,omitempty"`
	DetectedFonts  []string `json:"detected_fonts,omitempty"`
	Services       []string `json:"services,omitempty"`
	Valid          bool     `json:"valid"`
}

// CompanyDraft 引导过程中逐步累积的公司画像草稿
type CompanyDraft struct {
	Language       string       `json:"language,omitempty"`
	UserName       string       `json:"user_name,omitempty"`
	CompanyName    string       `json:"company_name,omitempty"`
	Industry       string       `json:"industry,omitempty"`
	Description    string       `json:"description,omitempty"`
	Website        string       `json:"website,omitempty"`
	TargetAudience string       `json:"target_audience,omitempty"`
	Goals          []string     `json:"goals,omitempty"`
	LogoRef        string       `json:"logo_ref,omitempty"`
	PendingLogoURL string       `json:"pending_logo_url,omitempty"`
	BrandStyle     string       `json:"brand_style,omitempty"`
	BrandColors    []string     `json:"brand_colors,omitempty"`
	BrandFonts     []string     `json:"brand_fonts,omitempty"`
	Assets         []string     `json:"assets,omitempty"`
	DesignPrefs    string       `json:"design_prefs,omitempty"`
	SiteSummary    *SiteSummary `json:"site_summary,omitempty"`
}

// SetLanguage 设置语言，已设置时保持不变
func (d *CompanyDraft) SetLanguage(lang string) {
	if d.Language == "" && lang != "" {
		d.Language = lang
	}
}

// ToggleGoal 目标开关：不存在则加入，存在则移除
func (d *CompanyDraft) ToggleGoal(goal string) {
	for i, g := range d.Goals {
		if g == goal {
			d.Goals = append(d.Goals[:i], d.Goals[i+1:]...)
			return
		}
	}
	d.Goals = append(d.Goals, goal)
}

// AddAsset 追加品牌素材引用
func (d *CompanyDraft) AddAsset(ref string) {
	if ref == "" {
		return
	}
	d.Assets = append(d.Assets, ref)
}

// MergeSiteSummary 将确认后的网站分析结果合入草稿。
// 只填充草稿中尚为空的字段，用户已说的内容优先。
func (d *CompanyDraft) MergeSiteSummary(s *SiteSummary) {
	if s == nil {
		return
	}
	if d.CompanyName == "" {
		d.CompanyName = s.CompanyName
	}
	if d.Industry == "" {
		d.Industry = s.Industry
	}
	if d.Description == "" {
		d.Description = s.Description
	}
	if d.TargetAudience == "" {
		d.TargetAudience = s.TargetAudience
	}
	if len(d.Goals) == 0 && len(s.SuggestedGoals) > 0 {
		d.Goals = append(d.Goals, s.SuggestedGoals...)
	}
	if len(d.BrandColors) == 0 {
		d.BrandColors = append(d.BrandColors, s.DetectedColors...)
	}
	if len(d.BrandFonts) == 0 {
		d.BrandFonts = append(d.BrandFonts, s.DetectedFonts...)
	}
	d.SiteSummary = s
}

// MissingForPlan 返回生成营销方案前仍缺失的关键字段
func (d *CompanyDraft) MissingForPlan() []string {
	var missing []string
	if d.CompanyName == "" {
		missing = append(missing, "company_name")
	}
	if d.Industry == "" {
		missing = append(missing, "industry")
	}
	if len(d.Goals) == 0 {
		missing = append(missing, "goals")
	}
	if d.TargetAudience == "" {
		missing = append(missing, "target_audience")
	}
	return missing
}
