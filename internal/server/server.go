package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"pomelo/internal/ai"
	"pomelo/internal/config"
	"pomelo/internal/handler"
	"pomelo/internal/pkg/cache"
	"pomelo/internal/pkg/mongodb"
	"pomelo/internal/pkg/siliconflow"
	"pomelo/internal/pkg/storage"
	"pomelo/internal/pkg/storagefactory"
	"pomelo/internal/pkg/tokenizer"
	"pomelo/internal/repository"
	"pomelo/internal/server/middleware"
	"pomelo/internal/service"
	"pomelo/internal/session"
)

// Server HTTP 服务器
// MongoDB、Redis 和对象存储都是可选依赖，连不上只降级不阻止启动
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	mongo  *mongodb.Client
	redis  *cache.RedisCache
	store  storage.Storage

	sessions *session.Manager
	chatSvc  *service.ChatService
}

// New 创建服务器实例
func New(cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建 Gin 引擎
	engine := gin.New()

	// 初始化 MongoDB (可选)
	var mongoClient *mongodb.Client
	if cfg.Mongo.URI != "" {
		client, err := mongodb.New(&cfg.Mongo)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to MongoDB, continuing without conversation archive")
		} else {
			mongoClient = client
			log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

			// 创建索引
			if err := mongoClient.EnsureIndexes(context.Background()); err != nil {
				log.Warn().Err(err).Msg("failed to ensure indexes")
			}
		}
	}

	// 初始化 Redis (可选)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without completion cache")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	// 初始化对象存储 (可选)
	var store storage.Storage
	if cfg.Storage.Type != "" {
		st, err := storagefactory.NewStorage(&cfg.Storage)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize storage, speech audio will be returned inline")
		} else {
			store = st
			log.Info().Str("type", st.GetStorageType()).Msg("initialized storage")
		}
	}

	// 硅基流动客户端，所有 AI 能力共用一个实例
	sfClient, err := siliconflow.NewClient(siliconflow.Config{
		APIKey:     cfg.AI.APIKey,
		BaseURL:    cfg.AI.BaseURL,
		Timeout:    cfg.AI.Timeout,
		MaxRetries: cfg.AI.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	// 会话管理与对话服务
	sessions := session.NewManager(&cfg.AI, tokenizer.New())

	var convRepo *repository.ConversationRepo
	if mongoClient != nil {
		convRepo = repository.NewConversationRepo(mongoClient.Database())
	}

	aiClient := ai.NewClient(&cfg.AI, sfClient)
	chatSvc := service.NewChatService(sessions, aiClient, convRepo, redisCache, cfg.Redis.CacheTTL)

	srv := &Server{
		cfg:      cfg,
		engine:   engine,
		mongo:    mongoClient,
		redis:    redisCache,
		store:    store,
		sessions: sessions,
		chatSvc:  chatSvc,
	}

	srv.setupRoutes(sfClient, convRepo)

	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(sfClient *siliconflow.Client, convRepo *repository.ConversationRepo) {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler(convRepo != nil, s.redis != nil, s.store != nil)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 本地存储时由本进程直接提供音频文件访问
	if s.cfg.Storage.Type == "local" && s.cfg.Storage.Local != nil {
		s.engine.Static("/storage", s.cfg.Storage.Local.BasePath)
	}

	chatHandler := handler.NewChatHandler(s.chatSvc)
	sessionHandler := handler.NewSessionHandler(s.sessions)
	conversationHandler := handler.NewConversationHandler(convRepo)
	speechHandler := handler.NewSpeechHandler(service.NewSpeechService(&s.cfg.AI, sfClient, s.store))
	transcriptionHandler := handler.NewTranscriptionHandler(service.NewTranscriptionService(&s.cfg.AI, sfClient))
	visionHandler := handler.NewVisionHandler(service.NewVisionService(&s.cfg.AI, sfClient))

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		// 对话接口
		v1.POST("/chat", chatHandler.Chat)
		v1.POST("/chat/stream", chatHandler.ChatStream)

		// 会话管理接口
		v1.POST("/sessions", sessionHandler.Create)
		v1.GET("/sessions", sessionHandler.List)
		v1.GET("/sessions/:id", sessionHandler.Get)
		v1.POST("/sessions/:id/reset", sessionHandler.Reset)
		v1.DELETE("/sessions/:id", sessionHandler.Delete)

		// 历史对话接口（依赖 MongoDB）
		v1.GET("/conversations", conversationHandler.List)
		v1.GET("/conversations/:id", conversationHandler.Get)
		v1.DELETE("/conversations/:id", conversationHandler.Delete)

		// 多模态接口
		v1.POST("/audio/speech", speechHandler.Synthesize)
		v1.POST("/audio/transcriptions", transcriptionHandler.Transcribe)
		v1.POST("/vision/describe", visionHandler.Describe)
	}
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		// 关闭连接
		if s.mongo != nil {
			if err := s.mongo.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to close MongoDB connection")
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close Redis connection")
			}
		}

		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
