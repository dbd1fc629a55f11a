// Package router 提供 HTTP 路由配置
package router

import (
	"nexus-marketing-api/internal/interfaces/http/handler"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	onboardingHandler *handler.OnboardingHandler,
	companyHandler *handler.CompanyHandler,
) {
	// 引导会话
	sessions := v1.Group("/onboarding-sessions")
	{
		sessions.POST("", onboardingHandler.CreateSession)
		sessions.GET("/:sid", onboardingHandler.GetSession)
		sessions.GET("/:sid/turns", onboardingHandler.ListTurns)
		sessions.POST("/:sid/messages", onboardingHandler.SendMessage)
		sessions.POST("/:sid/finalize", onboardingHandler.Finalize)
	}

	// 公司画像与营销方案
	companies := v1.Group("/companies")
	{
		companies.GET("", companyHandler.ListCompanies)
		companies.GET("/:cid", companyHandler.GetCompany)
		companies.GET("/:cid/plan", companyHandler.GetPlan)
		companies.POST("/:cid/brand-assets/regenerate", companyHandler.RegenerateBrandAssets)
	}
}
