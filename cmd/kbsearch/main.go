package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/kbsearch/internal/config"
	"github.com/xxxsen/kbsearch/internal/db"
	"github.com/xxxsen/kbsearch/internal/handler"
	"github.com/xxxsen/kbsearch/internal/middleware"
	"github.com/xxxsen/kbsearch/internal/repo"
	"github.com/xxxsen/kbsearch/internal/search"
	"github.com/xxxsen/kbsearch/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "kbsearch",
		Short: "knowledge base retrieval server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run kbsearch server",
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

func runServer(cfg *config.Config, conn *sqlx.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.Bool("rerank_enabled", cfg.Rerank.Enabled),
	)

	chunkRepo := repo.NewChunkRepo(conn)
	engine := search.NewEngine(chunkRepo)
	var reranker *search.Reranker
	if cfg.Rerank.Enabled {
		reranker = search.NewReranker(search.RerankerOptions{
			Endpoint:       cfg.Rerank.Endpoint,
			APIKey:         cfg.Rerank.APIKey,
			Model:          cfg.Rerank.Model,
			Timeout:        time.Duration(cfg.Rerank.TimeoutSec) * time.Second,
			CandidateLimit: cfg.Rerank.CandidateLimit,
			KeepTop:        cfg.Rerank.KeepTop,
			DocMaxChars:    cfg.Rerank.DocMaxChars,
		})
	}
	searchService := service.NewSearchService(engine, reranker)

	deps := handler.RouterDeps{
		Search: handler.NewSearchHandler(searchService),
		Health: handler.NewHealthHandler(conn),
	}

	webEngine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := webEngine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
