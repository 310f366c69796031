package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/careerrec/internal/handler"
	"github.com/xxxsen/careerrec/internal/job"
	"github.com/xxxsen/careerrec/internal/middleware"
	"github.com/xxxsen/careerrec/internal/repo"
	"github.com/xxxsen/careerrec/internal/schedule"
	"github.com/xxxsen/careerrec/internal/service"
)

func newRunCmd(configPath *string) *cobra.Command {
	var reindexOnStart bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the recommendation http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(cmd.Context(), a, reindexOnStart)
		},
	}
	cmd.Flags().BoolVar(&reindexOnStart, "reindex", false, "re-embed the stored catalog before serving")
	return cmd
}

func runServer(ctx context.Context, a *app, reindexOnStart bool) error {
	cfg := a.cfg
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_index", cfg.VectorIndex.Type),
		zap.String("rerank", cfg.Rerank.Type),
		zap.String("embedding", cfg.Embedding.Provider),
	)

	recommendService, err := a.recommendService()
	if err != nil {
		return err
	}
	scheduler, err := a.startScheduler(ctx, reindexOnStart)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	deps := handler.RouterDeps{
		Recommend: handler.NewRecommendHandler(
			recommendService,
			service.NewExportService(),
			service.NewPageRenderer(),
			cfg.Recommend.CommonRoles,
			cfg.Recommend.PerCategory,
		),
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			middleware.RateLimit(time.Duration(cfg.RateLimit)*time.Second),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

// startScheduler registers the maintenance jobs. It returns nil when there is no database to work on.
func (a *app) startScheduler(ctx context.Context, reindexOnStart bool) (*schedule.CronScheduler, error) {
	if a.db == nil {
		if reindexOnStart {
			return nil, fmt.Errorf("--reindex requires database config")
		}
		return nil, nil
	}
	ingest, err := a.ingestService()
	if err != nil {
		return nil, err
	}
	reindex := job.NewReindexJob(repo.NewResourceRepo(a.db), ingest)
	if reindexOnStart {
		if err := reindex.Run(ctx); err != nil {
			return nil, err
		}
	}
	sc := a.cfg.Schedule
	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(reindex, sc.ReindexSpec); err != nil {
		return nil, err
	}
	cleanup := job.NewEmbeddingCacheCleanupJob(repo.NewEmbeddingCacheRepo(a.db), sc.CacheKeepDays)
	if err := scheduler.AddJob(cleanup, sc.CacheCleanupSpec); err != nil {
		return nil, err
	}
	scheduler.Start(ctx)
	return scheduler, nil
}
