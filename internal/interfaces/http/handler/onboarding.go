package handler

import (
	"nexus-marketing-api/internal/application/onboarding"
	"nexus-marketing-api/internal/application/plan"
	"nexus-marketing-api/internal/config"
	"nexus-marketing-api/internal/domain/repository"
	"nexus-marketing-api/internal/interfaces/http/dto"
	"nexus-marketing-api/internal/interfaces/http/middleware"
	"nexus-marketing-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// OnboardingHandler 引导会话处理器
type OnboardingHandler struct {
	cfg *config.Config

	engine    *onboarding.Engine
	finalizer *plan.Finalizer

	sessionRepo repository.OnboardingSessionRepository
	turnRepo    repository.OnboardingTurnRepository
}

func NewOnboardingHandler(
	cfg *config.Config,
	engine *onboarding.Engine,
	finalizer *plan.Finalizer,
	sessionRepo repository.OnboardingSessionRepository,
	turnRepo repository.OnboardingTurnRepository,
) *OnboardingHandler {
	return &OnboardingHandler{
		cfg:         cfg,
		engine:      engine,
		finalizer:   finalizer,
		sessionRepo: sessionRepo,
		turnRepo:    turnRepo,
	}
}

// CreateSession 创建引导会话
// @Summary 创建引导会话
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param body body dto.CreateOnboardingSessionRequest false "创建请求"
// @Success 201 {object} dto.Response[dto.OnboardingSessionResponse]
// @Router /v1/onboarding-sessions [post]
func (h *OnboardingHandler) CreateSession(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantIDFromGin(c)

	var req dto.CreateOnboardingSessionRequest
	_ = c.ShouldBindJSON(&req) // 允许空 body

	session, err := h.engine.CreateSession(ctx, tenantID, req.Language)
	if err != nil {
		logger.Error(ctx, "failed to create onboarding session", err)
		respondError(c, err)
		return
	}

	dto.Created(c, dto.ToOnboardingSessionResponse(session))
}

// GetSession 获取会话详情
// @Summary 获取引导会话
// @Tags Onboarding
// @Produce json
// @Param sid path string true "会话ID"
// @Success 200 {object} dto.Response[dto.OnboardingSessionResponse]
// @Router /v1/onboarding-sessions/{sid} [get]
func (h *OnboardingHandler) GetSession(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := dto.BindSessionID(c)

	session, err := h.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		logger.Error(ctx, "failed to get onboarding session", err)
		dto.InternalError(c, "failed to get session")
		return
	}
	if session == nil {
		dto.NotFound(c, "session not found")
		return
	}

	dto.Success(c, dto.ToOnboardingSessionResponse(session))
}

// ListTurns 获取会话轮次
// @Summary 获取会话轮次
// @Tags Onboarding
// @Produce json
// @Param sid path string true "会话ID"
// @Success 200 {object} dto.Response[dto.OnboardingTurnListResponse]
// @Router /v1/onboarding-sessions/{sid}/turns [get]
func (h *OnboardingHandler) ListTurns(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := dto.BindSessionID(c)

	pageReq := dto.BindPage(c)
	result, err := h.turnRepo.ListBySession(ctx, sessionID, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list onboarding turns", err)
		dto.InternalError(c, "failed to list turns")
		return
	}

	turns := make([]*dto.OnboardingTurnResponse, 0, len(result.Items))
	for i := range result.Items {
		turns = append(turns, dto.ToOnboardingTurnResponse(result.Items[i]))
	}

	dto.SuccessWithPage(c, &dto.OnboardingTurnListResponse{Turns: turns}, dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total)))
}

// SendMessage 处理一轮引导对话。
// 编排逻辑全部在 onboarding.Engine 中：配额检查、信号分类、状态机流转、
// 至多一次生成调用、失败降级话术。Handler 只做参数解析和响应映射。
//
// @Summary 发送消息
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param sid path string true "会话ID"
// @Param body body dto.SendOnboardingMessageRequest true "消息内容"
// @Success 200 {object} dto.Response[dto.SendOnboardingMessageResponse]
// @Router /v1/onboarding-sessions/{sid}/messages [post]
func (h *OnboardingHandler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantIDFromGin(c)
	sessionID := dto.BindSessionID(c)

	var req dto.SendOnboardingMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	result, err := h.engine.HandleTurn(ctx, tenantID, sessionID, &onboarding.TurnInput{
		Utterance: req.Utterance,
		Provider:  provider,
		Model:     model,
	})
	if err != nil {
		logger.Error(ctx, "failed to handle onboarding turn", err, "session_id", sessionID)
		respondError(c, err)
		return
	}

	dto.Success(c, dto.ToSendOnboardingMessageResponse(result))
}

// Finalize 交接：把完成的会话草稿固化为公司画像并生成营销方案
// @Summary 生成营销方案
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param sid path string true "会话ID"
// @Param body body dto.FinalizePlanRequest false "交接请求"
// @Success 200 {object} dto.Response[dto.FinalizePlanResponse]
// @Router /v1/onboarding-sessions/{sid}/finalize [post]
func (h *OnboardingHandler) Finalize(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantIDFromGin(c)
	sessionID := dto.BindSessionID(c)

	var req dto.FinalizePlanRequest
	_ = c.ShouldBindJSON(&req) // 允许空 body

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	result, err := h.finalizer.Finalize(ctx, tenantID, sessionID, &plan.FinalizeInput{
		Provider:   provider,
		Model:      model,
		Regenerate: req.Regenerate,
	})
	if err != nil {
		logger.Error(ctx, "failed to finalize plan", err, "session_id", sessionID)
		respondError(c, err)
		return
	}

	dto.Success(c, dto.ToFinalizePlanResponse(result))
}
