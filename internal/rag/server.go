// Package ragsvc wires the docqa pipeline into an HTTP server.
package ragsvc

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/pkg/rag/parser"
	"github.com/kart-io/docqa/internal/rag/biz"
	"github.com/kart-io/docqa/internal/rag/handler"
	"github.com/kart-io/docqa/internal/rag/metrics"
	"github.com/kart-io/docqa/internal/rag/router"
	"github.com/kart-io/docqa/internal/rag/store"
	"github.com/kart-io/docqa/pkg/component/database"
	"github.com/kart-io/docqa/pkg/component/milvus"
	"github.com/kart-io/docqa/pkg/component/redis"
	"github.com/kart-io/docqa/pkg/infra/app"
	"github.com/kart-io/docqa/pkg/infra/middleware"
	"github.com/kart-io/docqa/pkg/infra/pool"
	"github.com/kart-io/docqa/pkg/infra/tracing"
	"github.com/kart-io/docqa/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/docqa/pkg/llm/ollama"
	_ "github.com/kart-io/docqa/pkg/llm/openai"
	cacheopts "github.com/kart-io/docqa/pkg/options/cache"
	dbopts "github.com/kart-io/docqa/pkg/options/database"
	httpopts "github.com/kart-io/docqa/pkg/options/http"
	llmopts "github.com/kart-io/docqa/pkg/options/llm"
	logopts "github.com/kart-io/docqa/pkg/options/logger"
	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
	poolopts "github.com/kart-io/docqa/pkg/options/pool"
	ragopts "github.com/kart-io/docqa/pkg/options/rag"
	tracingopts "github.com/kart-io/docqa/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "docqa"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	DatabaseOptions  *dbopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	CacheOptions     *cacheopts.Options
	PoolOptions      *poolopts.Options
	TracingOptions   *tracingopts.Options
}

// Server represents the docqa server.
type Server struct {
	cfg     *Config
	httpSrv *http.Server
	service *biz.Service
	pool    *pool.Pool
	closers []func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting docqa service", app.VersionFields()...)

	s := &Server{cfg: cfg}
	ready := false
	defer func() {
		if !ready {
			s.close()
		}
	}()
	health := middleware.NewHealthManager(app.GetVersion(), 0)

	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions, Name, app.GetVersion())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.closers = append(s.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	})

	// 2. 初始化文档元数据存储
	dbClient, err := database.New(ctx, cfg.DatabaseOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	s.closers = append(s.closers, func() { _ = dbClient.Close() })
	health.RegisterChecker("database", dbClient.Ping)

	documents := store.NewDocumentRepository(dbClient.DB())
	if err := documents.AutoMigrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate document table: %w", err)
	}

	// 3. 初始化向量索引
	index, err := s.newIndex(ctx)
	if err != nil {
		return nil, err
	}
	health.RegisterChecker("index", func(ctx context.Context) error {
		stats, err := index.Stats(ctx)
		if err != nil {
			return err
		}
		if stats.Status != store.StatusGreen {
			return fmt.Errorf("collection %s is %s", stats.Collection, stats.Status)
		}
		return nil
	})

	// 4. 初始化 LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 5. 初始化 Redis 缓存，连接失败时降级为无缓存
	var queryCache *biz.QueryCache
	if cfg.CacheOptions.Enabled {
		redisClient, err := redis.New(ctx, cfg.CacheOptions.Redis)
		if err != nil {
			logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		} else {
			s.closers = append(s.closers, func() { _ = redisClient.Close() })
			health.RegisterChecker("redis", func(ctx context.Context) error {
				st := redisClient.HealthWithStats(ctx)
				if !st.Healthy {
					return fmt.Errorf("%s (timeouts=%d, idle=%d)", st.Error, st.Timeouts, st.IdleConns)
				}
				return nil
			})

			queryCache = biz.NewQueryCache(redisClient.Client(), biz.QueryCacheConfig{
				Enabled:   true,
				TTL:       cfg.CacheOptions.TTL,
				KeyPrefix: cfg.CacheOptions.KeyPrefix + "query:",
			})
			if cfg.CacheOptions.EmbeddingTTL > 0 {
				embedProvider = llm.NewCachedEmbeddingProvider(embedProvider, redisClient.Client(), &llm.EmbeddingCacheConfig{
					Enabled:   true,
					TTL:       cfg.CacheOptions.EmbeddingTTL,
					KeyPrefix: cfg.CacheOptions.KeyPrefix + "emb:",
					Namespace: cfg.EmbeddingOptions.Provider + ":" + cfg.EmbeddingOptions.Model,
				})
			}
			logger.Infow("Redis cache initialized",
				"addr", cfg.CacheOptions.Redis.Addr(),
				"ttl", cfg.CacheOptions.TTL,
				"embedding_ttl", cfg.CacheOptions.EmbeddingTTL,
			)
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 6. 初始化 Biz 层
	var counter biz.TokenCounter = biz.RuneCounter{}
	if tc, err := biz.NewTiktokenCounter(cfg.RAGOptions.TokenEncoding); err != nil {
		logger.Warnw("tiktoken encoding unavailable, counting runes instead",
			"encoding", cfg.RAGOptions.TokenEncoding,
			"error", err.Error(),
		)
	} else {
		counter = tc
	}

	ingestPool, err := pool.NewPool("ingest", cfg.PoolOptions.Config())
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest pool: %w", err)
	}

	s.pool = ingestPool
	s.closers = append(s.closers, ingestPool.Release)

	m := metrics.New()
	service, err := biz.NewService(cfg.serviceConfig(), biz.Dependencies{
		Parser:    parser.New(parser.WithRecognizer(parser.NewTesseractRecognizer(cfg.RAGOptions.OCRCommand, cfg.RAGOptions.OCRLanguages))),
		Index:     index,
		Documents: documents,
		Embedding: embedProvider,
		Chat:      chatProvider,
		Counter:   counter,
		Cache:     queryCache,
		Pool:      s.pool,
		Metrics:   m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create docqa service: %w", err)
	}
	s.service = service
	logger.Infow("docqa service initialized",
		"collection", cfg.MilvusOptions.Collection,
		"cache.enabled", queryCache != nil,
		"token_budget", cfg.RAGOptions.TokenBudget,
	)

	// 7. 初始化 HTTP 层
	gin.SetMode(cfg.HTTPOptions.Mode)
	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger("/healthz", "/metrics", "/version"),
		middleware.Tracing("/healthz", "/metrics", "/version"),
	)

	ragHandler := handler.NewRAGHandler(s.service, handler.Config{
		MaxFileSize:  cfg.RAGOptions.MaxFileSize,
		QueryTimeout: cfg.RAGOptions.QueryTimeout,
		MaxTopK:      cfg.RAGOptions.MaxTopK,
	})
	var metricsHandler http.Handler
	if cfg.HTTPOptions.EnableMetrics {
		metricsHandler = m.Handler()
	}
	router.Register(engine, Name, ragHandler, health, metricsHandler)

	s.httpSrv = &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	ready = true
	logger.Info("docqa service is ready")
	return s, nil
}

func (s *Server) newIndex(ctx context.Context) (store.VectorIndex, error) {
	cfg := s.cfg
	if !cfg.MilvusOptions.Enabled {
		logger.Infow("Using in-memory vector index",
			"collection", cfg.MilvusOptions.Collection,
			"dimension", cfg.RAGOptions.EmbeddingDim,
		)
		return store.NewMemoryIndex(cfg.MilvusOptions.Collection, cfg.RAGOptions.EmbeddingDim), nil
	}

	client, err := milvus.New(ctx, cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	s.closers = append(s.closers, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(closeCtx)
	})

	index, err := store.NewMilvusIndex(ctx, client, store.MilvusIndexConfig{
		Collection: cfg.MilvusOptions.Collection,
		Dimension:  cfg.RAGOptions.EmbeddingDim,
		NList:      cfg.MilvusOptions.NList,
		NProbe:     cfg.MilvusOptions.NProbe,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare milvus collection: %w", err)
	}
	logger.Infow("Milvus index initialized",
		"address", cfg.MilvusOptions.Address,
		"collection", cfg.MilvusOptions.Collection,
	)
	return index, nil
}

func (cfg *Config) serviceConfig() biz.Config {
	rag := cfg.RAGOptions

	embedder := biz.DefaultEmbedderConfig()
	embedder.BatchSize = cfg.EmbeddingOptions.BatchSize
	embedder.MaxAttempts = cfg.EmbeddingOptions.MaxAttempts
	embedder.InitialBackoff = cfg.EmbeddingOptions.InitialBackoff
	embedder.CallTimeout = cfg.EmbeddingOptions.Timeout

	return biz.Config{
		Collection: cfg.MilvusOptions.Collection,
		Chunker: biz.ChunkerConfig{
			MaxLen:  rag.ChunkSize,
			Overlap: rag.ChunkOverlap,
		},
		Embedder: embedder,
		Retriever: biz.RetrieverConfig{
			TopK:         rag.TopK,
			MaxTopK:      rag.MaxTopK,
			IndexTimeout: rag.IndexTimeout,
		},
		Generator: biz.GeneratorConfig{
			SystemPrompt:    rag.SystemPrompt,
			NoContextPrompt: rag.NoContextPrompt,
			MaxAttempts:     cfg.ChatOptions.MaxAttempts,
			InitialBackoff:  cfg.ChatOptions.InitialBackoff,
			MaxBackoff:      embedder.MaxBackoff,
			CallTimeout:     cfg.ChatOptions.Timeout,
		},
		TokenBudget:  rag.TokenBudget,
		MaxFileSize:  rag.MaxFileSize,
		IndexTimeout: rag.IndexTimeout,
		JobTimeout:   cfg.PoolOptions.JobTimeout,
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	if dir := s.cfg.RAGOptions.PreloadDir; dir != "" {
		go s.preload(ctx, dir)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down docqa service...")
	timeout := s.cfg.HTTPOptions.ShutdownTimeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("http server shutdown failed", "error", err.Error())
	}
	if err := s.pool.ReleaseTimeout(timeout); err != nil {
		logger.Warnw("ingest pool did not drain in time", "error", err.Error())
	}
	logger.Info("docqa service stopped")
	return nil
}

func (s *Server) preload(ctx context.Context, dir string) {
	results, err := s.service.IngestDirectory(ctx, dir)
	if err != nil {
		logger.Errorw("preload failed", "dir", dir, "error", err.Error())
		return
	}
	chunks := 0
	for _, r := range results {
		chunks += r.Chunks
	}
	logger.Infow("preload finished", "dir", dir, "documents", len(results), "chunks", chunks)
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Database: %s\n", cfg.DatabaseOptions.Driver)
	if cfg.MilvusOptions.Enabled {
		fmt.Printf("  Vector index: milvus (%s)\n", cfg.MilvusOptions.Address)
	} else {
		fmt.Println("  Vector index: memory")
	}
}
