package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nexus-marketing-api/internal/application/quota"
	"nexus-marketing-api/internal/config"
	"nexus-marketing-api/internal/interfaces/http/dto"
	apperrors "nexus-marketing-api/pkg/errors"
)

// resolveProviderModel 解析 LLM Provider 和 Model
func resolveProviderModel(cfg *config.Config, provider, model string) (string, string, error) {
	if cfg == nil {
		return "", "", fmt.Errorf("server config not configured")
	}

	p := strings.TrimSpace(provider)
	if p == "" {
		p = strings.TrimSpace(cfg.LLM.DefaultProvider)
	}
	if p == "" {
		return "", "", fmt.Errorf("llm provider not specified")
	}
	if len(p) > 32 {
		return "", "", fmt.Errorf("llm provider too long")
	}

	providerCfg, ok := cfg.LLM.Providers[p]
	if !ok {
		return "", "", fmt.Errorf("llm provider not found: %s", p)
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = strings.TrimSpace(providerCfg.Model)
	}
	if len(m) > 64 {
		return "", "", fmt.Errorf("llm model too long")
	}
	return p, m, nil
}

// respondError 将应用错误映射为 HTTP 响应
func respondError(c *gin.Context, err error) {
	var quotaErr quota.TokenQuotaExceededError
	if errors.As(err, &quotaErr) {
		dto.Error(c, http.StatusTooManyRequests, quotaErr.Error())
		return
	}
	var sessionQuotaErr quota.SessionQuotaExceededError
	if errors.As(err, &sessionQuotaErr) {
		dto.Error(c, http.StatusTooManyRequests, sessionQuotaErr.Error())
		return
	}

	if appErr := apperrors.AsAppError(err); appErr != nil {
		dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
		})
		return
	}

	dto.InternalError(c, "internal server error")
}
