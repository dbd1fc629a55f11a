package port

import "context"

// ImageGenerator 定义工作流层对图片生成能力的最小依赖（port）。
type ImageGenerator interface {
	// GenerateImage 根据提示词生成图片，返回可访问的图片 URL。
	GenerateImage(ctx context.Context, prompt string) (string, error)
}
