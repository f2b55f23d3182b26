package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/docqna/internal/ai"
	"github.com/xxxsen/docqna/internal/config"
	"github.com/xxxsen/docqna/internal/db"
	"github.com/xxxsen/docqna/internal/embedcache"
	"github.com/xxxsen/docqna/internal/filestore"
	"github.com/xxxsen/docqna/internal/handler"
	"github.com/xxxsen/docqna/internal/job"
	"github.com/xxxsen/docqna/internal/middleware"
	"github.com/xxxsen/docqna/internal/repo"
	"github.com/xxxsen/docqna/internal/schedule"
	"github.com/xxxsen/docqna/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "docqna",
		Short: "docqna backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run docqna server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildAI(cfg config.AIConfig, cacheRepo *repo.EmbeddingCacheRepo) (*ai.Manager, error) {
	completers := make([]ai.CompleterEntry, 0, len(cfg.Completion))
	for _, pc := range cfg.Completion {
		provider, err := ai.NewProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init completion provider %s: %w", pc.Provider, err)
		}
		completers = append(completers, ai.CompleterEntry{
			Name:      pc.Provider,
			Completer: ai.NewCompleter(provider, pc.Model),
		})
	}
	embedders := make([]ai.EmbedderEntry, 0, len(cfg.Embedding))
	for _, pc := range cfg.Embedding {
		provider, err := ai.NewEmbedProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init embedding provider %s: %w", pc.Provider, err)
		}
		embedders = append(embedders, ai.EmbedderEntry{
			Name:     pc.Provider,
			Embedder: ai.NewEmbedder(provider, pc.Model),
		})
	}

	embedder := ai.NewGroupEmbedder(embedders)
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	embedder = embedcache.WrapLRUCacheToEmbedder(embedder, cfg.CacheSize, time.Duration(cfg.CacheTTLHours)*time.Hour)

	return ai.NewManager(embedder, ai.NewGroupCompleter(completers), ai.ManagerConfig{
		Timeout:       cfg.Timeout,
		MaxInputChars: cfg.MaxInputChars,
	}), nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
	)

	userRepo := repo.NewUserRepo(conn)
	chatRepo := repo.NewChatRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	convRepo := repo.NewConversationRepo(conn)
	cacheRepo := repo.NewEmbeddingCacheRepo(conn)

	manager, err := buildAI(cfg.AI, cacheRepo)
	if err != nil {
		return err
	}

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	chatService := service.NewChatService(chatRepo, convRepo, chunkRepo)
	retrievalService := service.NewRetrievalService(chunkRepo, manager, cfg.AI.TopK)
	answerService := service.NewAnswerService(chatRepo, convRepo, retrievalService, manager, cfg.AI.ContextChunks)
	uploadService := service.NewUploadService(chatRepo, chunkRepo, manager, store, service.UploadConfig{
		MaxFileSize:  cfg.Upload.MaxFileSize,
		ChunkSize:    cfg.Upload.ChunkSize,
		ChunkOverlap: cfg.Upload.ChunkOverlap,
	})

	deps := handler.RouterDeps{
		Auth:            handler.NewAuthHandler(authService),
		Chats:           handler.NewChatHandler(chatService),
		Uploads:         handler.NewUploadHandler(uploadService, cfg.Upload.MaxFileSize),
		Ask:             handler.NewAskHandler(answerService),
		JWTSecret:       []byte(cfg.JWTSecret),
		UploadRateLimit: time.Duration(cfg.Upload.RateLimitSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewOrphanCleanupJob(chunkRepo, convRepo, 1000), "*/30 * * * *"); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(cacheRepo, 30), "0 4 * * *"); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
