package di

import (
	"context"
	"fmt"

	"ai-assistant-hub/backend/ai"
	"ai-assistant-hub/backend/internal/api"
	"ai-assistant-hub/backend/internal/repository"
	"ai-assistant-hub/backend/internal/service"
	"ai-assistant-hub/backend/internal/ws"
	"ai-assistant-hub/backend/pkg/cache"
	"ai-assistant-hub/backend/pkg/config"
	"ai-assistant-hub/backend/pkg/jwt"
	"ai-assistant-hub/backend/pkg/logger"
	"ai-assistant-hub/backend/pkg/observability"
	"ai-assistant-hub/backend/pkg/secrets"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	DB     *gorm.DB
	Config *config.Config
	Logger *logger.Logger

	JWTService *jwt.Service
	AIClient   *ai.Client
	Redis      *redis.Client
	History    *cache.HistoryCache
	Metrics    *observability.Metrics

	UserService         *service.UserService
	AssistantService    *service.AssistantService
	KBService           *service.KBService
	ConversationService *service.ConversationService
	Stager              *service.Stager

	AuthHandler      *api.AuthHandler
	AssistantHandler *api.AssistantHandler
	DocumentHandler  *api.DocumentHandler
	SessionHandler   *api.SessionHandler
	TurnHandler      *api.TurnHandler
	HealthHandler    *api.HealthHandler
	WSHandler        *ws.Handler
}

// New wires the application graph from configuration down to the
// transport handlers.
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	if cfg == nil {
		cfg = config.Get()
	}
	if log == nil {
		log = logger.GetGlobal()
	}

	c := &Container{DB: db, Config: cfg, Logger: log}

	c.JWTService = jwt.NewService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)

	if err := secrets.Init(log); err != nil {
		return nil, fmt.Errorf("failed to initialize secrets manager: %w", err)
	}
	apiKey := secrets.GetSecretWithDefault(context.Background(), "answering-api-key", cfg.Answering.APIKey)

	aiClient, err := ai.NewClient(ai.ClientConfig{
		BaseURL: cfg.Answering.BaseURL,
		APIKey:  apiKey,
		Timeout: cfg.Answering.Timeout,
		Chunking: ai.ChunkingPolicy{
			MaxChunkSizeTokens: cfg.KnowledgeBase.MaxChunkSizeTokens,
			ChunkOverlapTokens: cfg.KnowledgeBase.ChunkOverlapTokens,
		},
		BatchPollInterval: cfg.KnowledgeBase.BatchPollInterval,
		BatchPollTimeout:  cfg.KnowledgeBase.BatchPollTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create answering client: %w", err)
	}
	c.AIClient = aiClient

	if cfg.Redis.Enabled {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := c.Redis.Ping(context.Background()).Err(); err != nil {
			log.Warn("redis unreachable, history cache disabled", "addr", cfg.Redis.Addr, "error", err.Error())
			c.Redis = nil
		} else {
			c.History = cache.NewHistoryCache(c.Redis, cfg.Redis.HistoryTTL, cfg.Redis.DirtyMarkerTTL)
		}
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	c.Metrics = metrics

	assistants := repository.NewGormAssistantRepository(db)
	documents := repository.NewGormDocumentRepository(db)
	grants := repository.NewGormGrantRepository(db)
	sessions := repository.NewGormSessionRepository(db)
	messages := repository.NewGormMessageRepository(db)

	c.Stager = service.NewStager(service.StagerConfig{
		StagingDir:      cfg.Uploads.StagingDir,
		MaxBytes:        cfg.Uploads.MaxBytes,
		AllowedMimeList: cfg.Uploads.AllowedMimeList,
	}, log)

	c.UserService = service.NewUserService(db, c.JWTService, log)

	c.KBService = service.NewKBService(assistants, documents, aiClient, c.Stager, log)
	c.KBService.SetMetrics(metrics)

	c.AssistantService = service.NewAssistantService(assistants, grants, c.KBService, cfg.Answering.DefaultModel, log)

	guard := service.NewAccessGuard(grants)
	c.ConversationService = service.NewConversationService(
		sessions, messages, assistants, documents,
		guard, aiClient, c.History, cfg.Answering.DefaultModel, log,
	)
	c.ConversationService.SetMetrics(metrics)

	c.AuthHandler = api.NewAuthHandler(c.UserService, c.JWTService, log)
	c.AssistantHandler = api.NewAssistantHandler(c.AssistantService, log)
	c.DocumentHandler = api.NewDocumentHandler(c.KBService, c.Stager, log)
	c.SessionHandler = api.NewSessionHandler(c.ConversationService, log)
	c.TurnHandler = api.NewTurnHandler(c.ConversationService, log)
	c.HealthHandler = api.NewHealthHandler(db)
	c.WSHandler = ws.NewHandler(c.ConversationService, log)

	return c, nil
}

// Close releases long-lived resources
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("failed to close redis client", "error", err.Error())
		}
	}
}
