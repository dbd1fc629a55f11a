//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"time"

	"github.com/google/wire"

	"nexus-marketing-api/internal/application/brand"
	"nexus-marketing-api/internal/application/onboarding"
	"nexus-marketing-api/internal/application/plan"
	"nexus-marketing-api/internal/application/quota"
	"nexus-marketing-api/internal/config"
	"nexus-marketing-api/internal/domain/repository"
	"nexus-marketing-api/internal/domain/service"
	"nexus-marketing-api/internal/infrastructure/image"
	"nexus-marketing-api/internal/infrastructure/llm"
	"nexus-marketing-api/internal/infrastructure/messaging"
	"nexus-marketing-api/internal/infrastructure/persistence/postgres"
	"nexus-marketing-api/internal/infrastructure/persistence/redis"
	"nexus-marketing-api/internal/interfaces/http/handler"
	"nexus-marketing-api/internal/interfaces/http/router"
	workflowport "nexus-marketing-api/internal/workflow/port"
)

// DataLayer 数据层依赖容器
type DataLayer struct {
	// PostgreSQL
	PgClient      *postgres.Client
	TxManager     *postgres.TxManager
	TenantContext *postgres.TenantContext
	TenantRepo    *postgres.TenantRepository
	SessionRepo   *postgres.OnboardingSessionRepository
	TurnRepo      *postgres.OnboardingTurnRepository
	CompanyRepo   *postgres.CompanyRepository
	PlanRepo      *postgres.MarketingPlanRepository
	LLMUsageRepo  *postgres.LLMUsageEventRepository

	// Redis
	RedisClient *redis.Client
	Cache       *redis.Cache
	RateLimiter *redis.RateLimiter

	// Messaging
	Producer *messaging.Producer
}

// PostgresOnlyDataLayer 仅包含 PostgreSQL 的数据层（用于 bootstrap）
type PostgresOnlyDataLayer struct {
	PgClient      *postgres.Client
	TxManager     *postgres.TxManager
	TenantContext *postgres.TenantContext
	TenantRepo    *postgres.TenantRepository
	SessionRepo   *postgres.OnboardingSessionRepository
	TurnRepo      *postgres.OnboardingTurnRepository
	CompanyRepo   *postgres.CompanyRepository
	PlanRepo      *postgres.MarketingPlanRepository
	LLMUsageRepo  *postgres.LLMUsageEventRepository
}

// InitializeDataLayer 初始化数据层
func InitializeDataLayer(ctx context.Context, cfg *config.Config) (*DataLayer, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		wire.Struct(new(DataLayer), "*"),
	)
	return nil, nil, nil
}

// InitializePostgresOnly 仅初始化 PostgreSQL 数据层（用于 bootstrap）
func InitializePostgresOnly(ctx context.Context, cfg *config.Config) (*PostgresOnlyDataLayer, func(), error) {
	wire.Build(
		PostgresSet,
		wire.Struct(new(PostgresOnlyDataLayer), "*"),
	)
	return nil, nil, nil
}

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		LLMSet,
		ApplicationSet,
		RouterSet,
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewTenantContext,
	postgres.NewTenantRepository,
	postgres.NewOnboardingSessionRepository,
	postgres.NewOnboardingTurnRepository,
	postgres.NewCompanyRepository,
	postgres.NewMarketingPlanRepository,
	postgres.NewLLMUsageEventRepository,
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
)

// LLMSet LLM 与图片生成提供者集合
var LLMSet = wire.NewSet(
	llm.NewEinoFactory,
	image.NewOpenAIGenerator,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	wire.Bind(new(workflowport.ImageGenerator), new(*image.OpenAIGenerator)),
)

// ApplicationSet 应用层提供者集合
var ApplicationSet = wire.NewSet(
	quota.NewTokenQuotaChecker,
	quota.NewLLMUsageRecorder,
	wire.Bind(new(service.LLMUsageRecorder), new(*quota.LLMUsageRecorder)),
	onboarding.NewReplyGenerator,
	onboarding.NewSiteAnalyzer,
	ProvidePersonaSelector,
	onboarding.NewEngine,
	plan.NewGenerator,
	plan.NewFinalizer,
	brand.NewRegenerator,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	handler.NewHealthHandler,
	handler.NewOnboardingHandler,
	handler.NewCompanyHandler,
	wire.Struct(new(router.Dependencies), "*"),
	router.New,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	// 接口绑定
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.TenantContextManager), new(*postgres.TenantContext)),
	wire.Bind(new(repository.TenantRepository), new(*postgres.TenantRepository)),
	wire.Bind(new(repository.OnboardingSessionRepository), new(*postgres.OnboardingSessionRepository)),
	wire.Bind(new(repository.OnboardingTurnRepository), new(*postgres.OnboardingTurnRepository)),
	wire.Bind(new(repository.CompanyRepository), new(*postgres.CompanyRepository)),
	wire.Bind(new(repository.MarketingPlanRepository), new(*postgres.MarketingPlanRepository)),
	wire.Bind(new(repository.LLMUsageEventRepository), new(*postgres.LLMUsageEventRepository)),
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvidePersonaSelector 提供回复人设选择器
func ProvidePersonaSelector() onboarding.PersonaSelector {
	return onboarding.NewRandomPersonaSelector(time.Now().UnixNano())
}
