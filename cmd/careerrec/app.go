package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careerrec/internal/ai"
	"github.com/xxxsen/careerrec/internal/catalog"
	"github.com/xxxsen/careerrec/internal/config"
	"github.com/xxxsen/careerrec/internal/db"
	"github.com/xxxsen/careerrec/internal/embedcache"
	"github.com/xxxsen/careerrec/internal/filestore"
	"github.com/xxxsen/careerrec/internal/linkpreview"
	"github.com/xxxsen/careerrec/internal/repo"
	"github.com/xxxsen/careerrec/internal/rerank"
	"github.com/xxxsen/careerrec/internal/service"
	"github.com/xxxsen/careerrec/internal/vectorindex"
)

// app holds the components shared by every command. Optional parts stay nil until built.
type app struct {
	cfg   *config.Config
	db    *sql.DB
	store filestore.Store
}

func loadApp(configPath string) (*app, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
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

	a := &app{cfg: cfg}
	if cfg.Database.Enabled() {
		sqlDB, err := db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		a.db = sqlDB
	}
	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init file store: %w", err)
	}
	a.store = store
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *app) requireDB() error {
	if a.db == nil {
		return fmt.Errorf("database config is required")
	}
	return nil
}

// embedder stacks the lru cache over the optional db cache over the provider.
func (a *app) embedder() (ai.IEmbedder, error) {
	provider, err := ai.NewEmbedProvider(a.cfg.Embedding.Provider, a.cfg.Embedding.Data)
	if err != nil {
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}
	e := ai.NewEmbedder(provider, a.cfg.Embedding.Model)
	if a.cfg.EmbedCache.UseDB {
		if err := a.requireDB(); err != nil {
			return nil, err
		}
		e = embedcache.WrapDBCacheToEmbedder(e, repo.NewEmbeddingCacheRepo(a.db))
	}
	ttl := time.Duration(a.cfg.EmbedCache.LruTTLSeconds) * time.Second
	return embedcache.WrapLruCacheToEmbedder(e, a.cfg.EmbedCache.LruSize, ttl), nil
}

func (a *app) generator() (ai.IStructuredGenerator, error) {
	if a.cfg.Generation.Provider == "" {
		return nil, fmt.Errorf("generation.provider is required")
	}
	provider, err := ai.NewGenerateProvider(a.cfg.Generation.Provider, a.cfg.Generation.Data)
	if err != nil {
		return nil, fmt.Errorf("init generation provider: %w", err)
	}
	return ai.NewGenerator(provider, a.cfg.Generation.Model, a.cfg.Generation.Timeout), nil
}

func (a *app) index() (vectorindex.Index, error) {
	idx, err := vectorindex.New(a.cfg.VectorIndex, vectorindex.Deps{DB: a.db})
	if err != nil {
		return nil, fmt.Errorf("init vector index: %w", err)
	}
	return idx, nil
}

func (a *app) ingestService() (*service.IngestService, error) {
	e, err := a.embedder()
	if err != nil {
		return nil, err
	}
	idx, err := a.index()
	if err != nil {
		return nil, err
	}
	return service.NewIngestService(e, idx, a.cfg.Ingest.BatchSize), nil
}

func (a *app) recommendService() (*service.RecommendService, error) {
	e, err := a.embedder()
	if err != nil {
		return nil, err
	}
	idx, err := a.index()
	if err != nil {
		return nil, err
	}
	reranker, err := rerank.New(a.cfg.Rerank)
	if err != nil {
		return nil, fmt.Errorf("init reranker: %w", err)
	}
	return service.NewRecommendService(e, idx, reranker, a.cfg.Recommend.Categories, a.cfg.Recommend.TopK), nil
}

// enrichService builds the enricher; the generator is only required for classification.
func (a *app) enrichService(withGenerator bool) (*service.EnrichService, error) {
	var gen ai.IStructuredGenerator
	if withGenerator {
		g, err := a.generator()
		if err != nil {
			return nil, err
		}
		gen = g
	}
	lp := a.cfg.LinkPreview
	timeout := time.Duration(lp.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	previewer := linkpreview.New(lp.BaseURL, lp.APIKey,
		linkpreview.WithRate(lp.RequestsPerSecond),
		linkpreview.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	ec := a.cfg.Enrich
	return service.NewEnrichService(previewer, gen, service.EnrichConfig{
		MaxAttempts: ec.MaxAttempts,
		BaseDelay:   time.Duration(ec.BaseDelayMs) * time.Millisecond,
		RowDelay:    time.Duration(ec.RowDelayMs) * time.Millisecond,
		MaxRoles:    ec.MaxRoles,
		MaxTokens:   ec.MaxTokens,
		Categories:  a.cfg.Recommend.Categories,
	}), nil
}

func (a *app) readTable(ctx context.Context, key string) (*catalog.Table, error) {
	rc, err := a.store.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	defer rc.Close()
	table, err := catalog.Read(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return table, nil
}

func (a *app) writeTable(ctx context.Context, key string, table *catalog.Table) error {
	var buf bytes.Buffer
	if err := table.Write(&buf); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return a.saveBytes(ctx, key, buf.Bytes())
}

func (a *app) saveBytes(ctx context.Context, key string, data []byte) error {
	if err := a.store.Save(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
