package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/careerrec/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FillsDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"embedding": {"provider": "gemini", "model": "gemini-embedding-001"},
		"vector_index": {"type": "memory"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8990, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "none", cfg.Rerank.Type)
	require.Equal(t, "local", cfg.FileStore.Type)
	require.Equal(t, 20, cfg.Recommend.TopK)
	require.Equal(t, 5, cfg.Recommend.PerCategory)
	require.Equal(t, model.DefaultCategories, cfg.Recommend.Categories)
	require.Equal(t, DefaultCommonRoles, cfg.Recommend.CommonRoles)
	require.Equal(t, 1, cfg.Ingest.BatchSize)
	require.Equal(t, 5, cfg.Enrich.MaxAttempts)
	require.Equal(t, 1000, cfg.Enrich.BaseDelayMs)
	require.Equal(t, 1000, cfg.Enrich.RowDelayMs)
	require.Equal(t, 4, cfg.Enrich.MaxRoles)
	require.Equal(t, "https://api.linkpreview.net", cfg.LinkPreview.BaseURL)
}

func TestLoad_RequiresEmbedding(t *testing.T) {
	path := writeConfig(t, `{"vector_index": {"type": "memory"}}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsScheduleWithoutDatabase(t *testing.T) {
	path := writeConfig(t, `{
		"embedding": {"provider": "gemini", "model": "m"},
		"vector_index": {"type": "memory"},
		"schedule": {"reindex_spec": "0 3 * * *"}
	}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsLargePerCategory(t *testing.T) {
	path := writeConfig(t, `{
		"embedding": {"provider": "gemini", "model": "m"},
		"vector_index": {"type": "memory"},
		"recommend": {"per_category": 50}
	}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestSecretOrEnv(t *testing.T) {
	t.Setenv("CAREERREC_TEST_KEY", " from-env ")
	require.Equal(t, "inline", SecretOrEnv("inline", "CAREERREC_TEST_KEY"))
	require.Equal(t, "from-env", SecretOrEnv("", "CAREERREC_TEST_KEY"))
	require.Equal(t, "", SecretOrEnv("", "CAREERREC_TEST_KEY_MISSING"))
}
