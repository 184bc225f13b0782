package bootstrap

import (
	"context"
	"fmt"
	"log"

	"ai-assistant-be/internal/config"
	"ai-assistant-be/internal/controller"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/internal/service"
	"ai-assistant-be/internal/websocket"
	"ai-assistant-be/pkg/actions"
	"ai-assistant-be/pkg/database"
	"ai-assistant-be/pkg/enrich"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/fallback"
	"ai-assistant-be/pkg/generation"
	"ai-assistant-be/pkg/llm/factory"
	"ai-assistant-be/pkg/media"
	pktNats "ai-assistant-be/pkg/nats"
	"ai-assistant-be/pkg/resilient"

	"github.com/redis/go-redis/v9"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type Container struct {
	AssistantController controller.IAssistantController

	AssistantService    service.IAssistantService
	ConversationService service.IConversationService // nil without a database
	ConsumerService     service.IConsumerService     // nil without a database

	Bus          *events.Bus
	WebSocketHub *websocket.Hub
	Logger       logger.ILogger

	closers []func()
}

// NewContainer wires every component. Optional infrastructure (database,
// NATS, Redis, OpenAI media) is skipped with a warning when not configured.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	zl := sysLogger.Zap()
	c := &Container{Logger: sysLogger}

	// Persistence
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, !cfg.IsProduction(), model.AutoMigrateModels()...)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		c.ConversationService = service.NewConversationService(unitofwork.NewRepositoryFactory(db))
		if sqlDB, err := db.DB(); err == nil {
			c.closers = append(c.closers, func() { sqlDB.Close() })
		}
	} else {
		log.Println("[WARN] DB_CONNECTION_STRING not set, conversations stay ephemeral")
	}

	acts, err := NewActions(ctx, cfg, c.ConversationService, zl)
	if err != nil {
		return nil, err
	}

	opts, err := ControllerOptions(cfg, zl)
	if err != nil {
		return nil, err
	}

	// Event bus
	c.Bus = events.NewBus(zl)
	c.closers = append(c.closers, func() { c.Bus.Close() })

	// NATS
	var terminal service.EventPublisher
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, zl)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			terminal = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	// Redis
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		c.closers = append(c.closers, func() { rdb.Close() })
	}

	c.WebSocketHub = websocket.NewHub(rdb, logger.NewIsolatedLogger("logs/websocket.log"))

	deps := service.AssistantDeps{
		Base:              cfg.GenerationConfig(""),
		TTL:               cfg.App.ContextTTL,
		Actions:           acts,
		Bus:               c.Bus,
		Terminal:          terminal,
		Logger:            sysLogger,
		ControllerOptions: opts,
	}
	if c.ConversationService != nil {
		deps.Creator = c.ConversationService
		c.ConsumerService = service.NewConsumerService(c.Bus, c.ConversationService, sysLogger)
	}
	c.AssistantService = service.NewAssistantService(deps)

	c.AssistantController = controller.NewAssistantController(
		c.AssistantService,
		c.ConversationService,
		c.WebSocketHub,
		cfg.Auth.JWTSecret,
		sysLogger,
	)

	return c, nil
}

// Start attaches the bus consumers; they stop when ctx is done.
func (c *Container) Start(ctx context.Context) error {
	if err := c.WebSocketHub.Consume(ctx, c.Bus); err != nil {
		return err
	}
	if c.ConsumerService != nil {
		if err := c.ConsumerService.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close stops every controller, then releases infrastructure in reverse
// order of creation.
func (c *Container) Close() {
	c.AssistantService.Shutdown()
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

// NewActions builds the remote actions for the configured providers. Image
// and speech generation need an OpenAI key; without one, media requests
// fail at dispatch.
func NewActions(ctx context.Context, cfg *config.Config, history actions.HistoryLoader, zl *zap.Logger) (*actions.RemoteActions, error) {
	provider, err := factory.NewLLMProvider(ctx, factory.ProviderConfig{
		Type:    cfg.Ai.LLMProvider,
		Model:   cfg.Ai.LLMModel,
		BaseURL: cfg.LLMBaseURL(),
		APIKey:  cfg.LLMAPIKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	opts := []actions.Option{actions.WithLogger(zl)}
	if history != nil {
		opts = append(opts, actions.WithHistoryLoader(history))
	}
	if cfg.Ai.OpenAIKey != "" {
		client := openai.NewClient(cfg.Ai.OpenAIKey)
		opts = append(opts,
			actions.WithImageGenerator(media.NewOpenAIImages(client, cfg.Ai.ImageModel, "")),
			actions.WithSpeech(media.NewOpenAISpeech(client, cfg.Ai.SpeechModel)),
		)
	} else {
		log.Println("[WARN] OPENAI_API_KEY not set, image and podcast generation unavailable")
	}

	return actions.New(provider, opts...), nil
}

// ControllerOptions returns the components every controller may share.
func ControllerOptions(cfg *config.Config, zl *zap.Logger) ([]generation.Option, error) {
	opts := []generation.Option{
		generation.WithLogger(zl),
		generation.WithInvoker(resilient.New(resilient.WithLogger(zl))),
		generation.WithProcessor(enrich.NewProcessor()),
	}
	if path := cfg.Assistant.FallbackRepliesFile; path != "" {
		replies, err := fallback.Load(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, generation.WithFallback(replies))
	}
	return opts, nil
}
