package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"

	"github.com/xxxsen/careerrec/internal/model"
)

type Config struct {
	Port          int               `json:"port"`
	LogConfig     logger.LogConfig  `json:"log_config"`
	Database      DatabaseConfig    `json:"database"`
	Embedding     ProviderConfig    `json:"embedding"`
	EmbedCache    EmbedCacheConfig  `json:"embed_cache"`
	Generation    ProviderConfig    `json:"generation"`
	VectorIndex   BackendConfig     `json:"vector_index"`
	Rerank        BackendConfig     `json:"rerank"`
	LinkPreview   LinkPreviewConfig `json:"link_preview"`
	FileStore     FileStoreConfig   `json:"file_store"`
	Recommend     RecommendConfig   `json:"recommend"`
	Ingest        IngestConfig      `json:"ingest"`
	Enrich        EnrichConfig      `json:"enrich"`
	Schedule      ScheduleConfig    `json:"schedule"`
	CORSAllowlist []string          `json:"cors_allowlist"`
	RateLimit     int               `json:"rate_limit_seconds"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c DatabaseConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

// ProviderConfig selects an ai provider by name; Data is decoded by the provider factory.
type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Timeout  int         `json:"timeout"`
	Data     interface{} `json:"data"`
}

type EmbedCacheConfig struct {
	LruSize       int  `json:"lru_size"`
	LruTTLSeconds int  `json:"lru_ttl_seconds"`
	UseDB         bool `json:"use_db"`
}

type BackendConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type LinkPreviewConfig struct {
	APIKey            string  `json:"api_key"`
	BaseURL           string  `json:"base_url"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Timeout           int     `json:"timeout"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type RecommendConfig struct {
	TopK        int      `json:"top_k"`
	PerCategory int      `json:"per_category"`
	Categories  []string `json:"categories"`
	CommonRoles []string `json:"common_roles"`
}

type IngestConfig struct {
	BatchSize int `json:"batch_size"`
}

type EnrichConfig struct {
	MaxAttempts int `json:"max_attempts"`
	BaseDelayMs int `json:"base_delay_ms"`
	RowDelayMs  int `json:"row_delay_ms"`
	MaxRoles    int `json:"max_roles"`
	MaxTokens   int `json:"max_tokens"`
}

type ScheduleConfig struct {
	ReindexSpec      string `json:"reindex_spec"`
	CacheCleanupSpec string `json:"cache_cleanup_spec"`
	CacheKeepDays    int    `json:"cache_keep_days"`
}

var DefaultCommonRoles = []string{
	"Data Scientist",
	"Data Analyst",
	"Machine Learning",
	"Data Engineer",
	"Business Intelligence Analyst",
	"Software Engineer",
	"Product Analyst",
	"Quantitative Analyst",
	"Business Analyst",
}

func Load(path string) (*Config, error) {
	// .env is optional; it only supplies api keys that are missing from the config file.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Port == 0 {
		c.Port = 8990
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if strings.TrimSpace(c.Embedding.Provider) == "" {
		return fmt.Errorf("embedding.provider is required")
	}
	if strings.TrimSpace(c.Embedding.Model) == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.VectorIndex.Type == "" {
		return fmt.Errorf("vector_index.type is required")
	}
	if c.Rerank.Type == "" {
		c.Rerank.Type = "none"
	}
	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}
	if c.EmbedCache.LruSize == 0 {
		c.EmbedCache.LruSize = 1000
	}
	if c.EmbedCache.LruTTLSeconds == 0 {
		c.EmbedCache.LruTTLSeconds = 3600
	}
	if c.EmbedCache.UseDB && !c.Database.Enabled() {
		return fmt.Errorf("embed_cache.use_db requires database config")
	}
	if c.Recommend.TopK <= 0 {
		c.Recommend.TopK = 20
	}
	if c.Recommend.PerCategory <= 0 {
		c.Recommend.PerCategory = 5
	}
	if c.Recommend.PerCategory > 20 {
		return fmt.Errorf("recommend.per_category must be between 1 and 20")
	}
	if len(c.Recommend.Categories) == 0 {
		c.Recommend.Categories = append([]string(nil), model.DefaultCategories...)
	}
	if len(c.Recommend.CommonRoles) == 0 {
		c.Recommend.CommonRoles = append([]string(nil), DefaultCommonRoles...)
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 1
	}
	if c.Enrich.MaxAttempts <= 0 {
		c.Enrich.MaxAttempts = 5
	}
	if c.Enrich.BaseDelayMs <= 0 {
		c.Enrich.BaseDelayMs = 1000
	}
	if c.Enrich.RowDelayMs < 0 {
		return fmt.Errorf("enrich.row_delay_ms must not be negative")
	}
	if c.Enrich.RowDelayMs == 0 {
		c.Enrich.RowDelayMs = 1000
	}
	if c.Enrich.MaxRoles <= 0 {
		c.Enrich.MaxRoles = 4
	}
	if c.Enrich.MaxTokens <= 0 {
		c.Enrich.MaxTokens = 256
	}
	if c.LinkPreview.BaseURL == "" {
		c.LinkPreview.BaseURL = "https://api.linkpreview.net"
	}
	c.LinkPreview.APIKey = SecretOrEnv(c.LinkPreview.APIKey, "LINK_PREVIEW_API_KEY")
	if c.Schedule.CacheKeepDays <= 0 {
		c.Schedule.CacheKeepDays = 30
	}
	if (c.Schedule.ReindexSpec != "" || c.Schedule.CacheCleanupSpec != "") && !c.Database.Enabled() {
		return fmt.Errorf("schedule requires database config")
	}
	return nil
}

// SecretOrEnv returns value when set, otherwise the named environment variable.
func SecretOrEnv(value, envKey string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv(envKey))
}
