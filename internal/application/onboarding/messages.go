package onboarding

import (
	"fmt"
	"strings"
)

// 本包的固定话术按语言给出。除了英文/阿拉伯文之外的语言回退到英文。
// 失败话术必须保持“对话中的口吻”，不能把底层错误文本漏给用户。

const (
	langEnglish = "en"
	langArabic  = "ar"
)

func normalizeLang(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	if strings.HasPrefix(l, "ar") {
		return langArabic
	}
	return langEnglish
}

// FailureMessage 生成能力失败时的可重试话术
func FailureMessage(lang string) string {
	if normalizeLang(lang) == langArabic {
		return "انقطع الاتصال للحظة! هل يمكنك إعادة ما قلته؟"
	}
	return "My connection flickered! Can you say that again?"
}

// SiteCardMessage 网站分析卡片的引导语
func SiteCardMessage(lang, url string) string {
	if normalizeLang(lang) == langArabic {
		return fmt.Sprintf("ألقيت نظرة على %s، هذا ما وجدته. هل يبدو صحيحًا؟", url)
	}
	return fmt.Sprintf("I took a look at %s and here is what I found. Does this look right?", url)
}

// LogoConceptMessage 出图后的引导语
func LogoConceptMessage(lang string) string {
	if normalizeLang(lang) == langArabic {
		return "إليك تصورًا للشعار! هل يعجبك، أم نجرب اتجاهًا آخر؟"
	}
	return "Here is a logo concept for you! Love it, or should we try another direction?"
}

// StaleControlMessage 控件指令与当前步骤不匹配时的提示语
func StaleControlMessage(lang string) string {
	if normalizeLang(lang) == langArabic {
		return "هذا الزر غير متاح الآن. لنكمل من حيث توقفنا!"
	}
	return "That button isn't available right now. Let's pick up where we left off!"
}

// GoalToggledMessage 勾选/取消目标后的确认语
func GoalToggledMessage(lang, goal string, added bool) string {
	if normalizeLang(lang) == langArabic {
		if added {
			return fmt.Sprintf("أضفت \"%s\" إلى أهدافك. هل هناك المزيد؟", goal)
		}
		return fmt.Sprintf("أزلت \"%s\" من أهدافك.", goal)
	}
	if added {
		return fmt.Sprintf("Added %q to your goals. Anything else?", goal)
	}
	return fmt.Sprintf("Removed %q from your goals.", goal)
}

// PlanReadyMessage 进入审批步骤时的话术
func PlanReadyMessage(lang, companyName string) string {
	name := strings.TrimSpace(companyName)
	if normalizeLang(lang) == langArabic {
		if name == "" {
			return "لقد جمعت كل ما أحتاجه! خطتك التسويقية جاهزة للمراجعة. وافق عليها وسأبدأ العمل."
		}
		return fmt.Sprintf("جمعت كل ما أحتاجه عن %s! خطتك التسويقية جاهزة للمراجعة. وافق عليها وسأبدأ العمل.", name)
	}
	if name == "" {
		return "I have everything I need! Your marketing plan is ready for review. Approve it and I will get to work."
	}
	return fmt.Sprintf("I have everything I need about %s! Your marketing plan is ready for review. Approve it and I will get to work.", name)
}

// CompletedMessage 会话完成时的话术
func CompletedMessage(lang string) string {
	if normalizeLang(lang) == langArabic {
		return "رائع! حفظت ملف شركتك وسأجهز خطتك التسويقية الآن."
	}
	return "Amazing! I've saved your company profile and I'm putting your marketing plan together now."
}
