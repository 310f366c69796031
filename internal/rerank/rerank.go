package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/careerrec/internal/config"
)

var ErrDisabled = errors.New("rerank disabled")

// Document is one candidate handed to the reranker. Score is filled on output.
type Document struct {
	ID    string
	Text  string
	Score float32
}

type Reranker interface {
	// Rerank returns up to topN documents in descending relevance to query.
	Rerank(ctx context.Context, query string, docs []Document, topN int) ([]Document, error)
}

type Factory func(args interface{}) (Reranker, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.BackendConfig) (Reranker, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		key = "none"
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported rerank type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode rerank config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode rerank config: %w", err)
	}
	return nil
}

// noneReranker always fails, so callers serve results in vector order with a warning.
type noneReranker struct{}

func (noneReranker) Rerank(ctx context.Context, query string, docs []Document, topN int) ([]Document, error) {
	return nil, ErrDisabled
}

func init() {
	Register("none", func(args interface{}) (Reranker, error) {
		return noneReranker{}, nil
	})
}
