package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	TaskTypeQuery    = "RETRIEVAL_QUERY"
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
)

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
}

type IGenerateProvider interface {
	Name() string
	GenerateJSON(ctx context.Context, model string, req *GenerateRequest, out interface{}) error
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

// IStructuredGenerator produces an object matching req.Schema and decodes it into out.
type IStructuredGenerator interface {
	GenerateJSON(ctx context.Context, req *GenerateRequest, out interface{}) error
}

type GenerateRequest struct {
	System      string
	Prompt      string
	SchemaName  string
	Schema      *Schema
	MaxTokens   int
	Temperature float32
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text, taskType)
}

func (e *embedder) ModelName() string {
	return e.model
}

type generator struct {
	provider IGenerateProvider
	model    string
	timeout  time.Duration
}

func NewGenerator(p IGenerateProvider, model string, timeoutSeconds int) IStructuredGenerator {
	return &generator{provider: p, model: model, timeout: time.Duration(timeoutSeconds) * time.Second}
}

func (g *generator) GenerateJSON(ctx context.Context, req *GenerateRequest, out interface{}) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.provider.GenerateJSON(ctx, g.model, req, out)
}

type GenerateFactory func(args interface{}) (IGenerateProvider, error)

type EmbedFactory func(args interface{}) (IEmbedProvider, error)

var (
	registry      = map[string]GenerateFactory{}
	embedRegistry = map[string]EmbedFactory{}
)

func Register(name string, factory GenerateFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func RegisterEmbed(name string, factory EmbedFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewGenerateProvider(name string, args interface{}) (IGenerateProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("generation.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported generation provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("embedding.provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embedding provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		// providers may rely on environment variables only
		args = map[string]interface{}{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}

// decodeJSONOutput tolerates fenced code blocks around the generated object.
func decodeJSONOutput(output string, out interface{}) error {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	if clean == "" {
		return fmt.Errorf("empty ai response")
	}
	if err := json.Unmarshal([]byte(clean), out); err != nil {
		return fmt.Errorf("parse ai response: %w", err)
	}
	return nil
}

// firstNonEmpty returns value or the first set environment variable among envKeys.
func firstNonEmpty(value string, envKeys ...string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	for _, key := range envKeys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
