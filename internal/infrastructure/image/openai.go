// Package image 提供图片生成客户端实现
package image

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"nexus-marketing-api/internal/config"
	"nexus-marketing-api/pkg/metrics"
)

var tracer = otel.Tracer("image")

// OpenAIGenerator 基于 OpenAI 兼容接口的图片生成器
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	size   string
}

// NewOpenAIGenerator 创建图片生成器
func NewOpenAIGenerator(cfg *config.Config) *OpenAIGenerator {
	imgCfg := cfg.Image

	clientCfg := openai.DefaultConfig(imgCfg.APIKey)
	if strings.TrimSpace(imgCfg.BaseURL) != "" {
		clientCfg.BaseURL = imgCfg.BaseURL
	}
	timeout := imgCfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := imgCfg.Model
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	size := imgCfg.Size
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		size:   size,
	}
}

// GenerateImage 生成图片并返回 URL
func (g *OpenAIGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "image.GenerateImage")
	span.SetAttributes(attribute.String("image.model", g.model))
	defer span.End()

	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           g.size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		span.RecordError(err)
		metrics.ImageGenerationTotal.WithLabelValues("openai", "error").Inc()
		return "", fmt.Errorf("failed to generate image: %w", err)
	}
	if len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].URL) == "" {
		metrics.ImageGenerationTotal.WithLabelValues("openai", "empty").Inc()
		return "", fmt.Errorf("image response contains no url")
	}

	metrics.ImageGenerationTotal.WithLabelValues("openai", "success").Inc()
	return resp.Data[0].URL, nil
}
