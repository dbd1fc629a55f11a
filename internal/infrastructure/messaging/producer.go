// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nexus-marketing-api/pkg/metrics"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		metrics.RedisStreamProcessed.WithLabelValues(string(stream), "error").Inc()
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	metrics.RedisStreamProcessed.WithLabelValues(string(stream), "published").Inc()
	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishOnboardingCompleted 发布引导完成事件
func (p *Producer) PublishOnboardingCompleted(ctx context.Context, evt *OnboardingCompletedMessage) (string, error) {
	msg, err := NewMessage(evt.SessionID, "onboarding_completed", evt.TenantID, evt.CompanyID, evt)
	if err != nil {
		return "", err
	}

	msg.SetMetadata("language", evt.Language)
	return p.Publish(ctx, StreamOnboardingCompleted, msg)
}

// PublishPlanGenerated 发布方案生成事件
func (p *Producer) PublishPlanGenerated(ctx context.Context, evt *PlanGeneratedMessage) (string, error) {
	msg, err := NewMessage(evt.PlanID, "plan_generated", evt.TenantID, evt.CompanyID, evt)
	if err != nil {
		return "", err
	}

	return p.Publish(ctx, StreamPlanGenerated, msg)
}

// PublishAuditLog 发布审计日志
func (p *Producer) PublishAuditLog(ctx context.Context, log *AuditLogMessage) (string, error) {
	msg, err := NewMessage(log.RequestID, "audit", log.TenantID, "", log)
	if err != nil {
		return "", err
	}

	return p.Publish(ctx, StreamAuditLog, msg)
}

// OnboardingCompletedMessage 引导完成消息
type OnboardingCompletedMessage struct {
	TenantID  string `json:"tenant_id"`
	SessionID string `json:"session_id"`
	CompanyID string `json:"company_id"`
	Language  string `json:"language"`
}

// PlanGeneratedMessage 方案生成消息
type PlanGeneratedMessage struct {
	TenantID  string `json:"tenant_id"`
	CompanyID string `json:"company_id"`
	PlanID    string `json:"plan_id"`
	PostCount int    `json:"post_count"`
	AdCount   int    `json:"ad_count"`
}

// AuditLogMessage 审计日志消息
type AuditLogMessage struct {
	TenantID     string                 `json:"tenant_id"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	RequestID    string                 `json:"request_id"`
	TraceID      string                 `json:"trace_id,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}
