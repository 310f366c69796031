package ai

import (
	"strings"

	"github.com/openai/openai-go/v3/option"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

type openrouterConfig struct {
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url"`
	HTTPReferer string `json:"http_referer"`
	XTitle      string `json:"x_title"`
}

// OpenRouter speaks the chat completions protocol, so it reuses the openai client.
func createOpenRouterFactory(args interface{}) (IGenerateProvider, error) {
	cfg := &openrouterConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	var extra []option.RequestOption
	if cfg.HTTPReferer != "" {
		extra = append(extra, option.WithHeader("HTTP-Referer", cfg.HTTPReferer))
	}
	if cfg.XTitle != "" {
		extra = append(extra, option.WithHeader("X-Title", cfg.XTitle))
	}
	return newOpenAIProvider("openrouter", firstNonEmpty(cfg.APIKey, "OPENROUTER_API_KEY"), baseURL, 0, extra...), nil
}

func init() {
	Register("openrouter", createOpenRouterFactory)
}
